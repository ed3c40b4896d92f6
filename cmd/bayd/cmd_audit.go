package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bay-scheduler-backend/internal/audit"
	"bay-scheduler-backend/internal/store"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Run one integrity sweep and report overlapping tasks",
	Long:  "Scans every active task for overlapping windows on the same bay. Exits non-zero when any are found.",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()
		gormDB, err := initDatabase()
		if err != nil {
			return err
		}

		// Findings are printed here; no alerts are persisted from the CLI.
		svc := audit.NewService(cfg.Audit, store.NewGormStore(gormDB), nil, logger)
		findings, err := svc.SweepOnce(cmd.Context())
		if err != nil {
			return err
		}
		for _, f := range findings {
			fmt.Fprintf(cmd.OutOrStdout(), "bay %s: %s overlaps %s during [%s, %s)\n",
				f.BayID, f.TaskIDs[0], f.TaskIDs[1],
				f.Overlap.Start.Format("2006-01-02T15:04:05Z07:00"), f.Overlap.End.Format("2006-01-02T15:04:05Z07:00"))
		}
		if len(findings) > 0 {
			logger.Warn("integrity sweep found overlaps", zap.Int("count", len(findings)))
			return fmt.Errorf("%d overlapping task pairs", len(findings))
		}
		fmt.Fprintln(cmd.OutOrStdout(), "no overlaps found")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
}
