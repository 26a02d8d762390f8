// Package usage implements the usage logging commands.
package usage

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/tractorcare/tractorcare-go/internal/bootstrap"
	"github.com/tractorcare/tractorcare-go/internal/conf"
)

// Command creates the usage command and its subcommands.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Log and summarize machine usage",
	}

	cmd.AddCommand(
		logCommand(settings),
		statsCommand(settings),
	)

	return cmd
}

func logCommand(settings *conf.Settings) *cobra.Command {
	var (
		date  string
		notes string
	)

	cmd := &cobra.Command{
		Use:   "log [machine-id] [end-hours]",
		Short: "Log a day's usage by the engine-hours reading",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			endHours, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid engine hours %q: %w", args[1], err)
			}

			var day time.Time
			if date != "" {
				day, err = time.Parse("2006-01-02", date)
				if err != nil {
					return fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", date, err)
				}
			}

			rt, err := bootstrap.Open(settings)
			if err != nil {
				return err
			}
			defer rt.Close()

			usage, err := rt.Engine.LogUsage(args[0], day, endHours, notes)
			if err != nil {
				return err
			}

			fmt.Printf("Logged %.1f hours for %s (%.1f -> %.1f)\n",
				usage.HoursUsed, args[0], usage.StartHours, usage.EndHours)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Usage date (YYYY-MM-DD), defaults to today")
	cmd.Flags().StringVar(&notes, "notes", "", "Free-form notes, e.g. the work done")

	return cmd
}

func statsCommand(settings *conf.Settings) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "stats [machine-id]",
		Short: "Summarize usage over a window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap.Open(settings)
			if err != nil {
				return err
			}
			defer rt.Close()

			since := rt.Predictor.Now().AddDate(0, 0, -days)
			stats, err := rt.Engine.UsageSummary(args[0], since)
			if err != nil {
				return err
			}

			fmt.Printf("Usage for %s since %s:\n", args[0], since.Format("2006-01-02"))
			fmt.Printf("  Entries:     %d\n", stats.Entries)
			fmt.Printf("  Total hours: %.1f\n", stats.TotalHours)
			fmt.Printf("  Daily avg:   %.2f\n", stats.DailyAvg)

			logs, err := rt.DS.UsageSince(args[0], since)
			if err != nil {
				return err
			}
			if len(logs) == 0 {
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DATE\tHOURS\tCLOCK\tNOTES")
			for i := range logs {
				l := &logs[i]
				fmt.Fprintf(w, "%s\t%.1f\t%.1f\t%s\n",
					l.Date.Format("2006-01-02"), l.HoursUsed, l.EndHours, l.Notes)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "Window size in days")

	return cmd
}
