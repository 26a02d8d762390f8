// Package baseline implements the acoustic baseline commands.
package baseline

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tractorcare/tractorcare-go/internal/bootstrap"
	"github.com/tractorcare/tractorcare-go/internal/conf"
)

// Command creates the baseline command and its subcommands.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Manage machine sound baselines",
		Long:  `Collect healthy-engine recordings into a per-machine acoustic baseline. Recordings are scored against the active baseline during analysis.`,
	}

	cmd.AddCommand(
		startCommand(settings),
		addCommand(settings),
		finalizeCommand(settings),
		statusCommand(settings),
		listCommand(settings),
		deleteCommand(settings),
		reactivateCommand(settings),
	)

	return cmd
}

func startCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "start [machine-id]",
		Short: "Start collecting baseline samples",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap.Open(settings)
			if err != nil {
				return err
			}
			defer rt.Close()

			session, err := rt.Builder.StartCollection(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Collecting baseline for %s: 0/%d samples\n", args[0], session.TargetSamples)
			return nil
		},
	}
}

func addCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "add [machine-id] [input.wav...]",
		Short: "Add healthy-engine recordings to the collection",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap.Open(settings)
			if err != nil {
				return err
			}
			defer rt.Close()

			machineID := args[0]
			for _, inputFile := range args[1:] {
				wavData, err := os.ReadFile(inputFile)
				if err != nil {
					return fmt.Errorf("reading %s: %w", inputFile, err)
				}
				session, err := rt.Builder.AddSample(machineID, wavData)
				if err != nil {
					return fmt.Errorf("adding %s: %w", inputFile, err)
				}
				fmt.Printf("Added %s: %d/%d samples\n", inputFile, session.CollectedSamples, session.TargetSamples)
			}
			return nil
		},
	}
}

func finalizeCommand(settings *conf.Settings) *cobra.Command {
	var loadCondition string

	cmd := &cobra.Command{
		Use:   "finalize [machine-id]",
		Short: "Compute and activate the baseline from collected samples",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap.Open(settings)
			if err != nil {
				return err
			}
			defer rt.Close()

			baseline, err := rt.Builder.Finalize(args[0], loadCondition)
			if err != nil {
				return err
			}

			fmt.Printf("Baseline %d active for %s: %d samples, confidence %.2f\n",
				baseline.ID, args[0], baseline.SampleCount, baseline.Confidence)
			return nil
		},
	}

	cmd.Flags().StringVar(&loadCondition, "load-condition", "", "Operating load during the recordings, e.g. normal or idle (defaults to normal)")

	return cmd
}

func statusCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "status [machine-id]",
		Short: "Show baseline and collection status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap.Open(settings)
			if err != nil {
				return err
			}
			defer rt.Close()

			report, err := rt.Builder.Status(args[0])
			if err != nil {
				return err
			}

			if report.HasActive {
				fmt.Printf("Active baseline %d: %d samples, confidence %.2f, created %s\n",
					report.ActiveBaselineID, report.SampleCount, report.Confidence,
					report.CreatedAt.Format("2006-01-02"))
			} else {
				fmt.Println("No active baseline.")
			}
			if report.Collecting {
				fmt.Printf("Collection in progress: %d/%d samples\n",
					report.CollectedSamples, report.TargetSamples)
			}
			return nil
		},
	}
}

func listCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "list [machine-id]",
		Short: "List all baselines for a machine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap.Open(settings)
			if err != nil {
				return err
			}
			defer rt.Close()

			baselines, err := rt.DS.ListBaselines(args[0])
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tSAMPLES\tCONFIDENCE\tENGINE HOURS\tCREATED")
			for i := range baselines {
				b := &baselines[i]
				fmt.Fprintf(w, "%d\t%s\t%d\t%.2f\t%.1f\t%s\n",
					b.ID, b.Status, b.SampleCount, b.Confidence, b.EngineHours,
					b.CreatedAt.Format("2006-01-02"))
			}
			return w.Flush()
		},
	}
}

func deleteCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [machine-id]",
		Short: "Archive the active baseline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap.Open(settings)
			if err != nil {
				return err
			}
			defer rt.Close()

			archived, err := rt.Builder.Delete(args[0])
			if err != nil {
				return err
			}
			if !archived {
				fmt.Printf("No active baseline for %s\n", args[0])
				return nil
			}
			fmt.Printf("Active baseline archived for %s\n", args[0])
			return nil
		},
	}
}

func reactivateCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "reactivate [machine-id] [baseline-id]",
		Short: "Reactivate an archived baseline",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			baselineID, err := strconv.ParseUint(args[1], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid baseline id %q: %w", args[1], err)
			}

			rt, err := bootstrap.Open(settings)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.Builder.Reactivate(args[0], uint(baselineID)); err != nil {
				return err
			}

			fmt.Printf("Baseline %d active for %s\n", baselineID, args[0])
			return nil
		},
	}
}
