package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pkoernig/borrowing-engine-go/circulation/postgresengine"
)

const dsnEnvVar = "CIRCULATION_POSTGRES_DSN"

var errMissingDSN = errors.New("no database DSN configured, set " + dsnEnvVar + " or pass --dsn")

type cliConfig struct {
	dsn string
}

func newRootCmd() *cobra.Command {
	cfg := &cliConfig{}

	rootCmd := &cobra.Command{
		Use:           "circadmin",
		Short:         "Operations CLI for the circulation database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			_ = godotenv.Load()

			if cfg.dsn == "" {
				cfg.dsn = os.Getenv(dsnEnvVar)
			}

			if cfg.dsn == "" {
				return errMissingDSN
			}

			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfg.dsn, "dsn", "", "postgres DSN (defaults to "+dsnEnvVar+")")

	rootCmd.AddCommand(
		newMigrateCmd(cfg),
		newSeedCmd(cfg),
		newRegisterMemberCmd(cfg),
		newAddBookCmd(cfg),
		newCheckoutCmd(cfg),
		newReturnCmd(cfg),
		newRestockCmd(cfg),
		newSetStatusCmd(cfg),
	)

	return rootCmd
}

// connectEngine opens a pgx pool for the configured DSN and builds an engine
// on top of it. The returned closer must be called when the command is done.
func connectEngine(ctx context.Context, cfg *cliConfig) (*postgresengine.Engine, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.dsn)
	if err != nil {
		return nil, nil, err
	}

	engine, err := postgresengine.NewEngineFromPGXPool(pool,
		postgresengine.WithLogger(slog.New(slog.NewTextHandler(os.Stderr, nil))))
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	return engine, pool.Close, nil
}
