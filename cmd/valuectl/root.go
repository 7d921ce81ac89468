package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/codyseavey/inventory-valuator/internal/app"
	"github.com/codyseavey/inventory-valuator/internal/config"
	"github.com/codyseavey/inventory-valuator/internal/logging"
)

type env struct {
	app    *app.App
	logger *zap.Logger
}

// withApp loads configuration, builds the services and hands them to run.
// Logs go to stderr at warn level unless --verbose is set.
func withApp(cmd *cobra.Command, run func(e *env) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level := "warn"
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = "debug"
	}
	logger, err := logging.New(level, "console")
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("Failed to close database", zap.Error(err))
		}
	}()

	return run(&env{app: a, logger: logger})
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "valuectl",
		Short:         "Value Steam inventories and manage stored valuations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newValueCmd(),
		newExportCmd(),
		newImportCmd(),
		newResetCmd(),
		newStatsCmd(),
	)
	return root
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
