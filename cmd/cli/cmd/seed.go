package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"costpilot/core/engine"
	"costpilot/core/synth"
	"costpilot/internal/config"
	"costpilot/internal/logging"
)

var (
	seedUser         string
	seedSubscription string
	seedScenario     string
	seedDays         int
	seedClear        bool
	seedValue        int64
	seedValueSet     bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed synthetic billing data for a scenario",
	Long: `Seed generates synthetic daily cost rows for one of the built-in
scenarios (normal, spike, noisy_increases, missing_data,
idle_resources), replaces the user's data with them, and runs one
evaluation so the result is immediately visible.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := uuid.Parse(seedUser)
		if err != nil {
			return fmt.Errorf("invalid --user: %w", err)
		}

		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		cfg := config.Get()
		eng := engine.New(st, cfg.Detection.Threshold(), logging.Logger)
		seeder := synth.NewSeeder(st, eng, logging.Logger)

		req := synth.SeedRequest{
			UserID:         userID,
			SubscriptionID: seedSubscription,
			Scenario:       seedScenario,
			Days:           seedDays,
			ClearExisting:  seedClear,
		}
		if seedValueSet {
			req.Seed = &seedValue
		}

		result, err := seeder.Seed(ctx, req)
		if err != nil {
			return err
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedUser, "user", "", "user id to seed (required)")
	seedCmd.Flags().StringVar(&seedSubscription, "subscription", "", "subscription id (default: built-in dev subscription)")
	seedCmd.Flags().StringVar(&seedScenario, "scenario", "normal", "scenario: normal, spike, noisy_increases, missing_data, idle_resources")
	seedCmd.Flags().IntVar(&seedDays, "days", 30, "days of history to generate (7-60)")
	seedCmd.Flags().BoolVar(&seedClear, "clear", false, "wipe all of the user's cost data first, not just the window")
	seedCmd.Flags().Int64Var(&seedValue, "seed", 0, "random seed for reproducible data")
	seedCmd.MarkFlagRequired("user")

	seedCmd.PreRun = func(cmd *cobra.Command, args []string) {
		seedValueSet = cmd.Flags().Changed("seed")
	}
}
