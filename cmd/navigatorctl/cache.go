package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/defi-academy/navigator/internal/domain/shared"
	"github.com/defi-academy/navigator/internal/infrastructure/persistence/redis"
)

func newCacheCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the Redis risk cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Drop every cached risk assessment",
		Long:  "Drop every cached risk assessment. Run it after publishing a catalog so stale revisions do not linger until their TTL.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			client, err := c.redisClient(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			n, err := redis.NewRiskCache(client).Purge(ctx)
			if err != nil {
				return fmt.Errorf("purge risk cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d cached assessments\n", n)
			return nil
		},
	})
	return cmd
}

func (c *cli) redisClient(ctx context.Context) (*redis.Client, error) {
	rc := c.cfg.Redis
	if rc.Disabled {
		return nil, shared.NewConfigurationError("navigatorctl", "cache", "redis is disabled (REDIS_DISABLED)")
	}

	cfg := redis.DefaultConfig()
	if rc.URL != "" {
		parsed, err := redis.ParseURL(rc.URL)
		if err != nil {
			return nil, shared.WrapError("navigatorctl", "cache", shared.ErrConfiguration, "invalid REDIS_URL", err)
		}
		cfg = parsed
	} else {
		cfg.Host = rc.Host
		cfg.Port = rc.Port
		cfg.Password = rc.Password
		cfg.DB = rc.DB
	}
	cfg.DialTimeout = rc.DialTimeout
	cfg.ReadTimeout = rc.ReadTimeout
	cfg.WriteTimeout = rc.WriteTimeout
	cfg.PoolSize = 2
	cfg.MinIdleConns = 0

	return redis.NewClient(ctx, cfg)
}
