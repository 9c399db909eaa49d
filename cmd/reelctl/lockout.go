package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/DukeRupert/reelscout/internal"
	"github.com/DukeRupert/reelscout/internal/ratelimit"
)

type lockoutFlags struct {
	redisURL string
	prefix   string
	scope    string
}

// newLockoutCmd returns the lockout command group. Lockout state lives in the
// shared Redis store; an in-memory server store cannot be reached from here.
func newLockoutCmd(a *app) *cobra.Command {
	flags := &lockoutFlags{}

	lockout := &cobra.Command{
		Use:   "lockout",
		Short: "Inspect or clear search lockouts",
	}

	lockout.PersistentFlags().StringVar(&flags.redisURL, "redis-url", os.Getenv("REDIS_URL"), "Redis URL (default $REDIS_URL)")
	lockout.PersistentFlags().StringVar(&flags.prefix, "prefix", envOr("REDIS_PREFIX", "reelscout:"), "key prefix used by the server")
	lockout.PersistentFlags().StringVar(&flags.scope, "scope", "search", "guarded action")

	open := func(cmd *cobra.Command) (*ratelimit.Limiter, func(), error) {
		if flags.redisURL == "" {
			return nil, nil, fmt.Errorf("--redis-url or REDIS_URL is required")
		}
		store, closeStore, err := a.openStore(cmd.Context(), flags.redisURL, flags.prefix)
		if err != nil {
			return nil, nil, err
		}
		maxAttempts, duration := internal.LockoutFromEnv()
		limiter := ratelimit.New(ratelimit.Config{
			Scope:           flags.scope,
			MaxAttempts:     maxAttempts,
			LockoutDuration: duration,
		}, store, nil, a.logger)
		return limiter, closeStore, nil
	}

	lockout.AddCommand(&cobra.Command{
		Use:   "status <key>",
		Short: "Show attempts and remaining lock time for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limiter, closeStore, err := open(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			status, err := limiter.CheckStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(status)
		},
	})

	lockout.AddCommand(&cobra.Command{
		Use:   "clear <key>",
		Short: "Remove the lockout record of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limiter, closeStore, err := open(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := limiter.Reset(cmd.Context(), args[0]); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "cleared %s lockout for %s\n", flags.scope, args[0])
			return nil
		},
	})

	return lockout
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
