package main

import (
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()
		gormDB, err := initDatabase()
		if err != nil {
			return err
		}
		sqlDB, err := gormDB.DB()
		if err == nil {
			sqlDB.Close()
		}
		logger.Info("migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
