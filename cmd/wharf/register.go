package main

import (
	"fmt"
	"time"

	"github.com/aretw0/wharf/internal/deployment"
	"github.com/aretw0/wharf/pkg/adapters/redis"
	"github.com/spf13/cobra"
)

type fixedPort int

func (p fixedPort) Port() int { return int(p) }

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Announce an already running endpoint to the admin API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		opts := []deployment.Option{
			deployment.WithLogger(logger),
			deployment.WithTimeout(cfg.HandshakeTimeout),
		}
		if cfg.Redis.Addr != "" {
			store := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
				redis.WithPrefix(cfg.Redis.Prefix),
				redis.WithTTL(cfg.Redis.TTL),
			)
			defer store.Close()
			opts = append(opts,
				deployment.WithStore(store),
				deployment.WithLocker(redis.NewLocker(store.Client(), cfg.Redis.Prefix), cfg.HandshakeTimeout),
			)
		}

		registrar := deployment.New(cfg.AdminURL, deployment.Advertised{
			Protocol: cfg.AdvertisedProtocol,
			Host:     cfg.AdvertisedHost,
		}, fixedPort(cfg.ListenPort), opts...)

		start := time.Now()
		outcome, err := registrar.Announce(cmd.Context())
		if err != nil {
			return fmt.Errorf("registering %s: %w", registrar.URI(), err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%s)\n", registrar.URI(), outcome, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(registerCmd)
	registerCmd.Flags().IntP("port", "p", 9080, "Port the endpoint listens on")
	registerCmd.Flags().String("admin-url", "", "Admin API base URL")
}
