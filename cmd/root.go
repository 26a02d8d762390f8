package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tractorcare/tractorcare-go/cmd/analyze"
	"github.com/tractorcare/tractorcare-go/cmd/baseline"
	"github.com/tractorcare/tractorcare-go/cmd/machine"
	"github.com/tractorcare/tractorcare-go/cmd/schedule"
	"github.com/tractorcare/tractorcare-go/cmd/usage"
	"github.com/tractorcare/tractorcare-go/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tractorcare",
		Short: "TractorCare CLI",
		Long:  `Predictive maintenance for farm tractors: engine sound analysis, baseline tracking and manufacturer maintenance schedules.`,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, settings); err != nil {
		cobra.CheckErr(err)
	}

	// Add sub-commands to the root command.
	subcommands := []*cobra.Command{
		machine.Command(settings),
		baseline.Command(settings),
		analyze.Command(settings),
		schedule.Command(settings),
		usage.Command(settings),
	}
	rootCmd.AddCommand(subcommands...)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return conf.ValidateSettings(settings)
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
