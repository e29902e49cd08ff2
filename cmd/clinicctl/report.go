package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hackgods/opd-frontdesk/internal/report"
)

type reportFlags struct {
	from, to, doctor, date string
	format                 string
	view                   string
}

func newReportCommand() *cobra.Command {
	var f reportFlags

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print clinic reports as a table, CSV or JSON",
	}
	cmd.PersistentFlags().StringVar(&f.format, "format", "table", "output format: table, csv or json")
	cmd.PersistentFlags().StringVar(&f.view, "view", "stats", "table and csv rows: stats or detail")

	run := func(build func(cmd *cobra.Command, gen *report.Generator) (any, error)) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.store.Close()

			rep, err := build(cmd, report.NewGenerator(e.store))
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), rep, f)
		}
	}

	summary := &cobra.Command{
		Use:   "summary",
		Short: "Headline counts for today",
		Args:  cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, gen *report.Generator) (any, error) {
			return gen.SummaryStats(cmd.Context())
		}),
	}

	daily := &cobra.Command{
		Use:   "daily",
		Short: "Appointments and consultations of one day",
		Args:  cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, gen *report.Generator) (any, error) {
			return gen.DailySummary(cmd.Context(), f.date)
		}),
	}
	daily.Flags().StringVar(&f.date, "date", "", "day as YYYY-MM-DD, defaults to today")

	visits := &cobra.Command{
		Use:   "visits",
		Short: "OPD visits in a date range",
		Args:  cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, gen *report.Generator) (any, error) {
			return gen.PatientVisits(cmd.Context(), f.from, f.to, f.doctor)
		}),
	}

	appointments := &cobra.Command{
		Use:   "appointments",
		Short: "Appointments and completion rate in a date range",
		Args:  cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, gen *report.Generator) (any, error) {
			return gen.Appointments(cmd.Context(), f.from, f.to, f.doctor)
		}),
	}

	doctor := &cobra.Command{
		Use:   "doctor NAME",
		Short: "Consultations of one doctor in a date range",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(cmd *cobra.Command, gen *report.Generator) (any, error) {
				return gen.DoctorConsultations(cmd.Context(), args[0], f.from, f.to)
			})(cmd, args)
		},
	}

	for _, c := range []*cobra.Command{visits, appointments, doctor} {
		c.Flags().StringVar(&f.from, "from", "", "first day as YYYY-MM-DD")
		c.Flags().StringVar(&f.to, "to", "", "last day as YYYY-MM-DD")
		_ = c.MarkFlagRequired("from")
		_ = c.MarkFlagRequired("to")
	}
	visits.Flags().StringVar(&f.doctor, "doctor", "", "only this doctor")
	appointments.Flags().StringVar(&f.doctor, "doctor", "", "only this doctor")

	cmd.AddCommand(summary, daily, visits, appointments, doctor)
	return cmd
}

func writeReport(w io.Writer, rep any, f reportFlags) error {
	if f.format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	var t report.Table
	switch f.view {
	case "stats":
		t = report.Stats(rep)
	case "detail":
		t = report.Detail(rep)
	default:
		return fmt.Errorf("unknown view %q, want stats or detail", f.view)
	}

	switch f.format {
	case "csv":
		return report.WriteCSV(w, t)
	case "table":
		report.RenderTable(w, t)
		return nil
	}
	return fmt.Errorf("unknown format %q, want table, csv or json", f.format)
}
