package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"costpilot/core/engine"
	"costpilot/core/types"
	"costpilot/internal/config"
	"costpilot/internal/logging"
)

var detectUser string

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Run spike evaluation",
	Long: `Detect evaluates the latest complete billing date against the spike
rules. With --user it evaluates one user and prints the dashboard
summary; without it, every user with recent cost rows is evaluated.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		cfg := config.Get()
		eng := engine.New(st, cfg.Detection.Threshold(), logging.Logger)

		if detectUser == "" {
			evaluated, err := eng.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Evaluated %d user(s).\n", evaluated)
			return nil
		}

		userID, err := uuid.Parse(detectUser)
		if err != nil {
			return fmt.Errorf("invalid --user: %w", err)
		}
		currentDate := types.DateOf(time.Now().UTC())
		if _, err := eng.EvaluateUser(ctx, userID, currentDate); err != nil {
			return err
		}
		summary, err := eng.Summary(ctx, userID, currentDate)
		if err != nil {
			return err
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(summary)
	},
}

func init() {
	detectCmd.Flags().StringVar(&detectUser, "user", "", "evaluate a single user and print the summary")
}
