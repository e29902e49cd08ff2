package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/opd-frontdesk/internal/config"
	"github.com/hackgods/opd-frontdesk/internal/db"
)

// env bundles what every subcommand needs once the store is open.
type env struct {
	cfg   config.Config
	log   zerolog.Logger
	store *db.Store
}

var verbose bool

func main() {
	root := &cobra.Command{
		Use:   "clinicctl",
		Short: "Offline tooling for the OPD front desk record store",
		Long: `clinicctl reads the same record store as the front desk server. It prints
reports, shows free appointment slots and manages JSON store backups.
Store selection follows the server environment (STORE_DRIVER, DATA_DIR, POSTGRES_DSN).`,
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log store activity to stderr")

	root.AddCommand(newReportCommand())
	root.AddCommand(newDoctorsCommand())
	root.AddCommand(newSlotsCommand())
	root.AddCommand(newBackupCommand())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// openEnv loads config and opens the store. Logs go to stderr so stdout stays
// clean for CSV and JSON output.
func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	store, err := db.OpenStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log, store: store}, nil
}
