package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/hackgods/opd-frontdesk/internal/clinic"
	"github.com/hackgods/opd-frontdesk/internal/report"
)

var errBackupsUnsupported = errors.New("backups need STORE_DRIVER=json")

func newBackupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create, list and restore JSON store backups",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Bundle every collection into a new backup file",
		Args:  cobra.NoArgs,
		RunE: withBackups(func(cmd *cobra.Command, args []string, store *clinic.JSONRepository) error {
			path, err := store.CreateBackup(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List backups, newest first",
		Args:  cobra.NoArgs,
		RunE: withBackups(func(cmd *cobra.Command, args []string, store *clinic.JSONRepository) error {
			backups, err := store.ListBackups(cmd.Context())
			if err != nil {
				return err
			}
			t := report.Table{Header: []string{"Name", "Size", "Modified"}}
			for _, b := range backups {
				t.Rows = append(t.Rows, []string{b.Name, strconv.FormatInt(b.Size, 10), b.ModTime.Format(time.DateTime)})
			}
			report.RenderTable(cmd.OutOrStdout(), t)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "restore NAME",
		Short: "Replace the store contents with a listed backup",
		Args:  cobra.ExactArgs(1),
		RunE: withBackups(func(cmd *cobra.Command, args []string, store *clinic.JSONRepository) error {
			path, err := findBackup(cmd.Context(), store, args[0])
			if err != nil {
				return err
			}
			if err := store.RestoreBackup(cmd.Context(), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %s\n", path)
			return nil
		}),
	})

	return cmd
}

func withBackups(fn func(cmd *cobra.Command, args []string, store *clinic.JSONRepository) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.store.Close()

		if e.store.JSON == nil {
			return errBackupsUnsupported
		}
		return fn(cmd, args, e.store.JSON)
	}
}

func findBackup(ctx context.Context, store *clinic.JSONRepository, name string) (string, error) {
	backups, err := store.ListBackups(ctx)
	if err != nil {
		return "", err
	}
	for _, b := range backups {
		if b.Name == name {
			return b.Path, nil
		}
	}
	return "", fmt.Errorf("no backup named %q, see clinicctl backup list", name)
}
