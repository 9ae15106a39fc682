package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"messenger-service/internal/maintenance"
)

var maintenanceCmd = &cobra.Command{
	Use:   "maintenance",
	Short: "Inspect and repair the messenger database",
}

func init() {
	maintenanceCmd.PersistentFlags().String(dsnFlag, "", "Postgres DSN of the messenger database")
	viper.BindPFlag(dsnFlag, maintenanceCmd.PersistentFlags().Lookup(dsnFlag))

	cleanupCmd := maintenanceReport("cleanup", "Delete orphaned, duplicate and invalid rows",
		func(ctx context.Context, s *maintenance.Service, cmd *cobra.Command) (any, error) {
			execute, _ := cmd.Flags().GetBool("execute")
			return s.Cleanup(ctx, !execute)
		})
	cleanupCmd.Flags().Bool("execute", false, "Delete rows instead of only counting them")

	maintenanceCmd.AddCommand(
		maintenanceReport("status", "Row counts and samples per table",
			func(ctx context.Context, s *maintenance.Service, _ *cobra.Command) (any, error) {
				return s.TableStatus(ctx)
			}),
		maintenanceReport("duplicates", "Duplicate friendships and participants",
			func(ctx context.Context, s *maintenance.Service, _ *cobra.Command) (any, error) {
				return s.FindDuplicates(ctx)
			}),
		maintenanceReport("invalid", "Rows violating data rules",
			func(ctx context.Context, s *maintenance.Service, _ *cobra.Command) (any, error) {
				return s.FindInvalid(ctx)
			}),
		maintenanceReport("orphans", "Rows pointing at missing parents",
			func(ctx context.Context, s *maintenance.Service, _ *cobra.Command) (any, error) {
				return s.FindOrphans(ctx)
			}),
		cleanupCmd,
	)
	rootCmd.AddCommand(maintenanceCmd)
}

type reportFunc func(ctx context.Context, s *maintenance.Service, cmd *cobra.Command) (any, error)

func maintenanceReport(use, short string, run reportFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn := viper.GetString(dsnFlag)
			if dsn == "" {
				return errors.New("--dsn or MESSENGER_DSN is required")
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			pool, err := maintenance.Open(ctx, dsn)
			if err != nil {
				return errors.Wrap(err, "connect database")
			}
			defer pool.Close()

			report, err := run(ctx, maintenance.New(pool, maintenance.WithLogger(newLogger())), cmd)
			if err != nil {
				return errors.Wrap(err, use)
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
