package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"costpilot/core/engine"
	"costpilot/core/types"
	"costpilot/core/waste"
	"costpilot/internal/config"
	"costpilot/internal/logging"
	"costpilot/store"
)

var (
	wasteUser         string
	wasteSubscription string
	wasteInventory    string
)

var wasteCmd = &cobra.Command{
	Use:   "waste",
	Short: "Scan for and list waste findings",
}

var wasteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's waste findings",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := uuid.Parse(wasteUser)
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
		findings, err := eng.WasteList(ctx, userID)
		if err != nil {
			return err
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(findings)
	},
}

var wasteScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Classify an inventory snapshot into waste findings",
	Long: `Scan reads an inventory snapshot (unattached disks, unused public
IPs, stopped VMs) from a JSON file, classifies it against the user's
cost history, and replaces the stored findings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := uuid.Parse(wasteUser)
		if err != nil {
			return fmt.Errorf("invalid --user: %w", err)
		}

		data, err := os.ReadFile(wasteInventory)
		if err != nil {
			return fmt.Errorf("reading inventory file: %w", err)
		}
		var snapshot types.InventorySnapshot
		if err := json.Unmarshal(data, &snapshot); err != nil {
			return fmt.Errorf("decoding inventory file: %w", err)
		}

		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		target := store.Target{UserID: userID, SubscriptionID: wasteSubscription}
		scanner := waste.NewScanner(st, fixedInventory{snapshot}, logging.Logger)
		count, err := scanner.Scan(ctx, []store.Target{target})
		if err != nil {
			return err
		}
		fmt.Printf("Persisted %d waste finding(s).\n", count)
		return nil
	},
}

// fixedInventory serves a pre-loaded snapshot for every target
type fixedInventory struct {
	snapshot types.InventorySnapshot
}

func (f fixedInventory) Snapshot(_ context.Context, _ store.Target) (types.InventorySnapshot, error) {
	return f.snapshot, nil
}

func init() {
	wasteCmd.PersistentFlags().StringVar(&wasteUser, "user", "", "user id (required)")
	wasteCmd.MarkPersistentFlagRequired("user")

	wasteScanCmd.Flags().StringVar(&wasteSubscription, "subscription", "", "subscription id for the scan target")
	wasteScanCmd.Flags().StringVar(&wasteInventory, "inventory", "", "path to inventory snapshot JSON (required)")
	wasteScanCmd.MarkFlagRequired("inventory")

	wasteCmd.AddCommand(wasteListCmd)
	wasteCmd.AddCommand(wasteScanCmd)
}
