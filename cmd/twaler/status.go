package main

import (
	"context"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"twaler/pkg/checkpoint"
	"twaler/pkg/config"
	"twaler/pkg/ledger"
	"twaler/pkg/logger"
	"twaler/pkg/ui"
)

var statusTarget string

var statusCmd = &cobra.Command{
	Use:   "status <instance>",
	Short: "Show the checkpoint and ledger of a crawl instance",
	Example: `  twaler status cache/2024.01.02.03.04.05
  twaler status cache/2024.01.02.03.04.05 --target 42`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVarP(&statusTarget, "target", "t", "", "also show when each kind of this target was last fetched")
}

func runStatus(cmd *cobra.Command, args []string) error {
	instance := args[0]

	cp, err := checkpoint.Load(instance)
	if err != nil {
		return err
	}
	ui.PrintPanel(ui.RenderCheckpoint(cp))

	cfg, err := loadConfig(nil)
	if err != nil {
		cfg = config.DefaultConfig()
	}
	path := filepath.Join(instance, cfg.Cache.LedgerFile)
	if !fileExists(path) {
		return nil
	}

	l, err := ledger.Open(path, logger.NewNopLogger())
	if err != nil {
		return err
	}
	defer l.Close()

	return printLedger(cmd.Context(), l, cp.RunID)
}

func printLedger(ctx context.Context, l *ledger.Ledger, runID string) error {
	outcomes, err := l.Outcomes(ctx, runID)
	if err != nil {
		return err
	}

	byStatus := map[ledger.Status]int{}
	for _, o := range outcomes {
		byStatus[o.Status]++
	}
	ui.PrintInfo("Ledger", fmt.Sprintf("%d fetches: %d ok, %d failed, %d skipped",
		len(outcomes), byStatus[ledger.StatusOK], byStatus[ledger.StatusFailed], byStatus[ledger.StatusSkipped]))

	if statusTarget == "" {
		return nil
	}
	updated, err := l.Updated(ctx, statusTarget)
	if err != nil {
		return err
	}
	if len(updated) == 0 {
		ui.PrintDim("no successful fetch recorded for " + statusTarget)
		return nil
	}
	var rows []ui.Row
	for _, kind := range slices.Sorted(maps.Keys(updated)) {
		at := updated[kind]
		rows = append(rows, ui.Row{Label: kind, Value: at.Local().Format(time.DateTime) + " (" + humanize.Time(at) + ")"})
	}
	ui.PrintPanel(ui.RenderRows(rows))
	return nil
}
