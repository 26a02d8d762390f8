// Package schedule implements the maintenance schedule commands.
package schedule

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/tractorcare/tractorcare-go/internal/bootstrap"
	"github.com/tractorcare/tractorcare-go/internal/conf"
	"github.com/tractorcare/tractorcare-go/internal/datastore"
)

// Command creates the schedule command and its subcommands.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Maintenance schedules, predictions and records",
	}

	cmd.AddCommand(
		predictCommand(settings),
		alertsCommand(settings),
		recordCommand(settings),
		tasksCommand(settings),
	)

	return cmd
}

func predictCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "predict [machine-id]",
		Short: "Predict due and overdue maintenance tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap.Open(settings)
			if err != nil {
				return err
			}
			defer rt.Close()

			machine, err := rt.DS.GetMachine(args[0])
			if err != nil {
				return err
			}
			history, err := rt.DS.MaintenanceHistory(args[0])
			if err != nil {
				return err
			}
			predictions, err := rt.Predictor.PredictAll(&machine, history)
			if err != nil {
				return err
			}

			if len(predictions) == 0 {
				fmt.Printf("No maintenance due for %s\n", args[0])
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TASK\tSTATUS\tPRIORITY\tPROGRESS\tDUE\tEST. MIN\tSOURCE")
			for i := range predictions {
				p := &predictions[i]
				fmt.Fprintf(w, "%s\t%s\t%s\t%.0f%%\t%s\t%d\t%s\n",
					p.TaskName, p.Status, p.Priority, p.Progress*100,
					p.DueDate.Format("2006-01-02"), p.EstimatedMinutes, p.Source)
			}
			return w.Flush()
		},
	}
}

func alertsCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "alerts [machine-id]",
		Short: "Generate and list the machine's maintenance alerts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap.Open(settings)
			if err != nil {
				return err
			}
			defer rt.Close()

			alerts, err := rt.Engine.GenerateAlerts(args[0])
			if err != nil {
				return err
			}

			if len(alerts) == 0 {
				fmt.Printf("No open alerts for %s\n", args[0])
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TASK\tTYPE\tPRIORITY\tSTATUS\tDUE\tDESCRIPTION")
			for i := range alerts {
				a := &alerts[i]
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					a.TaskName, a.AlertType, a.Priority, a.Status,
					a.DueDate.Format("2006-01-02"), a.Description)
			}
			return w.Flush()
		},
	}
}

func recordCommand(settings *conf.Settings) *cobra.Command {
	var (
		date        string
		hours       float64
		minutes     int
		performedBy string
		notes       string
	)

	cmd := &cobra.Command{
		Use:   "record [machine-id] [task-name]",
		Short: "Record completed maintenance",
		Long:  `Record a completed maintenance task. Open alerts for the task are resolved and the engine-hours clock advances when the completion hours are ahead of it.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var completed time.Time
			if date != "" {
				var err error
				completed, err = time.Parse("2006-01-02", date)
				if err != nil {
					return fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", date, err)
				}
			}

			rt, err := bootstrap.Open(settings)
			if err != nil {
				return err
			}
			defer rt.Close()

			record := &datastore.MaintenanceRecord{
				MachineID:         args[0],
				TaskName:          args[1],
				CompletionDate:    completed,
				CompletionHours:   hours,
				ActualTimeMinutes: minutes,
				PerformedBy:       performedBy,
				Notes:             notes,
			}
			if err := rt.Engine.RecordMaintenance(record); err != nil {
				return err
			}

			fmt.Printf("Recorded %s for %s\n", args[1], args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Completion date (YYYY-MM-DD), defaults to today")
	cmd.Flags().Float64Var(&hours, "hours", 0, "Engine hours at completion, defaults to the machine's clock")
	cmd.Flags().IntVar(&minutes, "minutes", 0, "Actual time spent in minutes")
	cmd.Flags().StringVar(&performedBy, "performed-by", "", "Who performed the task")
	cmd.Flags().StringVar(&notes, "notes", "", "Free-form notes")

	return cmd
}

func tasksCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks [model]",
		Short: "List the maintenance tasks for a model",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap.Open(settings)
			if err != nil {
				return err
			}
			defer rt.Close()

			if len(args) == 0 {
				fmt.Println("Supported models:")
				for _, model := range rt.Catalog.Models() {
					fmt.Printf("  %s\n", model)
				}
				return nil
			}

			schedule, err := rt.Catalog.Schedule(args[0])
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TASK\tPRIORITY\tHOURS\tDAYS\tEST. MIN\tDESCRIPTION")
			for i := range schedule.Tasks {
				t := &schedule.Tasks[i]
				fmt.Fprintf(w, "%s\t%s\t%.0f\t%d\t%d\t%s\n",
					t.Name, t.Priority, t.IntervalHours, t.IntervalDays,
					t.EstimatedMinutes, t.Description)
			}
			return w.Flush()
		},
	}
}
