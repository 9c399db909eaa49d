package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/DukeRupert/reelscout/internal"
	"github.com/DukeRupert/reelscout/internal/kv"
)

// app holds the connections commands open on demand.
type app struct {
	logger    *slog.Logger
	openDB    func(ctx context.Context) (*sql.DB, error)
	openStore func(ctx context.Context, redisURL, prefix string) (kv.Store, func(), error)
}

func defaultApp() *app {
	return &app{
		logger: internal.NewLogger(os.Stderr, "development", os.Getenv("LOG_LEVEL")),
		openDB: func(ctx context.Context) (*sql.DB, error) {
			dsn := os.Getenv("DATABASE_URL")
			if dsn == "" {
				return nil, fmt.Errorf("DATABASE_URL is required")
			}
			db, err := sql.Open("pgx", dsn)
			if err != nil {
				return nil, fmt.Errorf("open database: %w", err)
			}
			if err := db.PingContext(ctx); err != nil {
				db.Close()
				return nil, fmt.Errorf("ping database: %w", err)
			}
			return db, nil
		},
		openStore: func(ctx context.Context, redisURL, prefix string) (kv.Store, func(), error) {
			client, err := kv.NewRedisClientFromURL(ctx, redisURL)
			if err != nil {
				return nil, nil, err
			}
			return kv.NewRedis(client, prefix, 0), func() { _ = client.Close() }, nil
		},
	}
}

// newRootCmd returns the root command for reelctl.
func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "reelctl",
		Short:         "reelscout operator tool",
		Long:          "reelctl applies database migrations, prints the tier table and inspects search lockouts.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newMigrateCmd(a))
	rootCmd.AddCommand(newTiersCmd())
	rootCmd.AddCommand(newLockoutCmd(a))

	return rootCmd
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
