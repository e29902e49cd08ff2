package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hackgods/opd-frontdesk/internal/appointment"
	"github.com/hackgods/opd-frontdesk/internal/clinic"
	redisclient "github.com/hackgods/opd-frontdesk/internal/redis"
	"github.com/hackgods/opd-frontdesk/internal/report"
)

func newDoctorsCommand() *cobra.Command {
	var doctorsFile string

	cmd := &cobra.Command{
		Use:   "doctors",
		Short: "List doctors, their departments and daily slots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if doctorsFile == "" {
				doctorsFile = os.Getenv("DOCTORS_FILE")
			}
			dir, err := appointment.LoadDirectory(doctorsFile)
			if err != nil {
				return err
			}
			t := report.Table{Header: []string{"Doctor", "Department", "Slots"}}
			for _, d := range dir.Doctors() {
				t.Rows = append(t.Rows, []string{d.Name, d.Department, strings.Join(d.Slots, " ")})
			}
			report.RenderTable(cmd.OutOrStdout(), t)
			return nil
		},
	}
	cmd.Flags().StringVar(&doctorsFile, "doctors-file", "", "JSON doctor profiles, defaults to DOCTORS_FILE or the built-in list")
	return cmd
}

func newSlotsCommand() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "slots DOCTOR",
		Short: "Show a doctor's free appointment slots for a day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.store.Close()

			dir, err := appointment.LoadDirectory(e.cfg.DoctorsFile)
			if err != nil {
				return err
			}
			if _, ok := dir.Lookup(args[0]); !ok {
				return fmt.Errorf("unknown doctor %q", args[0])
			}
			if date == "" {
				date = time.Now().Format(clinic.DateLayout)
			}

			// Read-only: the locker is never taken here.
			svc := appointment.NewService(e.store, redisclient.NewMemorySlotLocker(e.cfg.LockTTL), dir, e.log)
			free, err := svc.AvailableSlots(cmd.Context(), args[0], date)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(free) == 0 {
				fmt.Fprintf(out, "%s has no free slots on %s\n", args[0], date)
				return nil
			}
			fmt.Fprintf(out, "%s on %s: %s\n", args[0], date, strings.Join(free, " "))
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day as YYYY-MM-DD, defaults to today")
	return cmd
}
