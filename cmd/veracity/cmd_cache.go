package main

import (
	"fmt"

	"github.com/spboyer/veracity/internal/cache"
	"github.com/spf13/cobra"
)

func newCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the detection result cache",
		Long: `Manage the detection result cache.

The cache stores consensus results so the same text scored by the same
ensemble is not sent to the providers again. Entries are keyed by the
ensemble fingerprint and the whitespace-normalized text.`,
	}

	cmd.AddCommand(newCacheClearCommand())

	return cmd
}

func newCacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear the detection result cache",
		Long: `Clear all cached detection results, on disk or in Redis depending on
cache.redis_url. Works even when cache.enabled is false.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadProject()
			if err != nil {
				return err
			}

			ttl, err := cfg.CacheTTL()
			if err != nil {
				return err
			}

			c, err := cache.Open(cfg.Cache.Dir, cfg.Cache.RedisURL, ttl)
			if err != nil {
				return fmt.Errorf("opening cache: %w", err)
			}
			defer closeCache(c)

			if err := c.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clearing cache: %w", err)
			}

			where := cfg.Cache.Dir
			if cfg.Cache.RedisURL != "" {
				where = "redis"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cache cleared: %s\n", where)
			return nil
		},
	}
}
