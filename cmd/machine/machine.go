// Package machine implements the machine registry commands.
package machine

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/tractorcare/tractorcare-go/internal/bootstrap"
	"github.com/tractorcare/tractorcare-go/internal/conf"
	"github.com/tractorcare/tractorcare-go/internal/datastore"
)

// Command creates the machine command and its subcommands.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "machine",
		Short: "Manage registered machines",
	}

	cmd.AddCommand(
		addCommand(settings),
		listCommand(settings),
		showCommand(settings),
		hoursCommand(settings),
	)

	return cmd
}

func addCommand(settings *conf.Settings) *cobra.Command {
	var (
		model        string
		manufacturer string
		purchaseDate string
		engineHours  float64
		usage        string
	)

	cmd := &cobra.Command{
		Use:   "add [machine-id]",
		Short: "Register a new machine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			purchased, err := time.Parse("2006-01-02", purchaseDate)
			if err != nil {
				return fmt.Errorf("invalid purchase date %q, expected YYYY-MM-DD: %w", purchaseDate, err)
			}

			rt, err := bootstrap.Open(settings)
			if err != nil {
				return err
			}
			defer rt.Close()

			if _, err := rt.Catalog.Schedule(model); err != nil {
				return err
			}

			machine := &datastore.Machine{
				MachineID:      args[0],
				Model:          model,
				Make:           manufacturer,
				PurchaseDate:   purchased,
				EngineHours:    engineHours,
				UsageIntensity: usage,
				BaselineStatus: datastore.BaselinePending,
			}
			if err := rt.DS.SaveMachine(machine); err != nil {
				return err
			}

			fmt.Printf("Registered %s (%s, %.1f engine hours)\n", machine.MachineID, machine.Model, machine.EngineHours)
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "Catalog model, e.g. MF_240 (required)")
	cmd.Flags().StringVar(&manufacturer, "make", "", "Manufacturer name")
	cmd.Flags().StringVar(&purchaseDate, "purchase-date", time.Now().Format("2006-01-02"), "Purchase date (YYYY-MM-DD)")
	cmd.Flags().Float64Var(&engineHours, "hours", 0, "Current engine hours")
	cmd.Flags().StringVar(&usage, "usage", datastore.UsageModerate, "Usage intensity: light, moderate, heavy, extreme")
	_ = cmd.MarkFlagRequired("model")

	return cmd
}

func listCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered machines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap.Open(settings)
			if err != nil {
				return err
			}
			defer rt.Close()

			machines, err := rt.DS.ListMachines()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "MACHINE\tMODEL\tHOURS\tUSAGE\tBASELINE\tHEALTH")
			for i := range machines {
				m := &machines[i]
				fmt.Fprintf(w, "%s\t%s\t%.1f\t%s\t%s\t%s\n",
					m.MachineID, m.Model, m.EngineHours, m.UsageIntensity, m.BaselineStatus, m.HealthStatus)
			}
			return w.Flush()
		},
	}
}

func showCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "show [machine-id]",
		Short: "Show a machine's health and open alerts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap.Open(settings)
			if err != nil {
				return err
			}
			defer rt.Close()

			summary, err := rt.Engine.Summary(args[0])
			if err != nil {
				return err
			}

			m := &summary.Machine
			fmt.Printf("Machine:       %s (%s %s)\n", m.MachineID, m.Make, m.Model)
			fmt.Printf("Engine hours:  %.1f\n", m.EngineHours)
			fmt.Printf("Usage:         %s\n", m.UsageIntensity)
			fmt.Printf("Baseline:      %s\n", m.BaselineStatus)
			fmt.Printf("Health:        %d (%s), %d overdue of %d open alerts, %d anomalies last 7 days\n",
				summary.Health.Score, summary.Health.Status,
				summary.Health.OverdueAlerts, summary.Health.OpenAlerts,
				summary.Health.RecentAnomalies)
			if summary.LastMaintenance != nil {
				fmt.Printf("Last service:  %s\n", summary.LastMaintenance.Format("2006-01-02"))
			}

			if len(summary.Alerts) == 0 {
				fmt.Println("No open alerts.")
				return nil
			}
			fmt.Printf("Open work:     %d min estimated\n", summary.TotalEstimatedMinutes)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TASK\tPRIORITY\tSTATUS\tDUE\tDESCRIPTION")
			for i := range summary.Alerts {
				a := &summary.Alerts[i]
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					a.TaskName, a.Priority, a.Status, a.DueDate.Format("2006-01-02"), a.Description)
			}
			return w.Flush()
		},
	}
}

func hoursCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "hours [machine-id] [engine-hours]",
		Short: "Update a machine's engine hours",
		Long:  `Update a machine's engine-hours clock. The clock never goes backwards; lower values are rejected.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			hours, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid engine hours %q: %w", args[1], err)
			}

			rt, err := bootstrap.Open(settings)
			if err != nil {
				return err
			}
			defer rt.Close()

			machine, err := rt.DS.UpdateEngineHours(args[0], hours)
			if err != nil {
				return err
			}

			fmt.Printf("%s now at %.1f engine hours\n", machine.MachineID, machine.EngineHours)
			return nil
		},
	}
}
