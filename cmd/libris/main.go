package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/libris/internal/profile"
	"github.com/hrygo/libris/server"
	"github.com/hrygo/libris/store"
	"github.com/hrygo/libris/store/db"
)

const version = "0.1.0"

var (
	rootCmd = &cobra.Command{
		Use:   "libris",
		Short: `A school library REST service with an in-process response cache.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			instanceProfile, err := loadProfile()
			if err != nil {
				return err
			}
			return run(instanceProfile)
		},
	}
)

func init() {
	viper.SetDefault("mode", "demo")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 8081)

	rootCmd.PersistentFlags().String("mode", "demo", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 8081, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver")
	rootCmd.PersistentFlags().String("dsn", "", "database source name (aka. DSN)")
	rootCmd.PersistentFlags().Int("cache-capacity", profile.DefaultCacheCapacity, "maximum number of cached responses")
	rootCmd.PersistentFlags().String("cache-ttl", profile.DefaultCacheTTL.String(), "default cache entry lifetime (duration or seconds)")
	rootCmd.PersistentFlags().String("cache-sweep-interval", profile.DefaultCacheSweepInterval.String(), "interval between expired-entry sweeps (duration or seconds)")
	rootCmd.PersistentFlags().Float64("rate-limit", profile.DefaultRateLimit, "requests per second allowed per client IP")
	rootCmd.PersistentFlags().Int("rate-burst", profile.DefaultRateBurst, "request burst allowed per client IP")

	for _, name := range []string{
		"mode", "addr", "port", "data", "driver", "dsn",
		"cache-capacity", "cache-ttl", "cache-sweep-interval", "rate-limit", "rate-burst",
	} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("libris")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func loadProfile() (*profile.Profile, error) {
	ttl, err := profile.ParseSeconds(viper.GetString("cache-ttl"))
	if err != nil {
		return nil, err
	}
	sweep, err := profile.ParseSeconds(viper.GetString("cache-sweep-interval"))
	if err != nil {
		return nil, err
	}

	instanceProfile := &profile.Profile{
		Mode:               viper.GetString("mode"),
		Addr:               viper.GetString("addr"),
		Port:               viper.GetInt("port"),
		Data:               viper.GetString("data"),
		Driver:             viper.GetString("driver"),
		DSN:                viper.GetString("dsn"),
		Version:            version,
		CacheCapacity:      viper.GetInt("cache-capacity"),
		CacheDefaultTTL:    ttl,
		CacheSweepInterval: sweep,
		RateLimit:          viper.GetFloat64("rate-limit"),
		RateBurst:          viper.GetInt("rate-burst"),
	}
	if err := instanceProfile.Validate(); err != nil {
		return nil, err
	}
	return instanceProfile, nil
}

func run(instanceProfile *profile.Profile) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(instanceProfile)}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbDriver, err := db.NewDBDriver(instanceProfile)
	if err != nil {
		return err
	}
	storeInstance := store.New(dbDriver, instanceProfile)
	if err := storeInstance.Migrate(ctx); err != nil {
		_ = storeInstance.Close()
		return err
	}

	s, err := server.NewServer(ctx, instanceProfile, storeInstance, logger)
	if err != nil {
		_ = storeInstance.Close()
		return err
	}

	c := make(chan os.Signal, 1)
	// Trigger graceful shutdown on SIGINT or SIGTERM.
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	if err := s.Start(ctx); err != nil {
		_ = storeInstance.Close()
		return err
	}
	printGreetings(instanceProfile)

	done := make(chan error, 1)
	go func() { done <- s.Wait() }()

	select {
	case sig := <-c:
		logger.Info("received signal", slog.String("signal", sig.String()))
		s.Shutdown(ctx)
		return nil
	case err := <-done:
		s.Shutdown(ctx)
		return err
	}
}

func logLevel(p *profile.Profile) slog.Level {
	if p.IsDev() {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func printGreetings(p *profile.Profile) {
	fmt.Printf("libris %s started successfully!\n", p.Version)
	if p.IsDev() {
		fmt.Fprintf(os.Stderr, "Development mode is enabled\n")
		fmt.Fprintf(os.Stderr, "Database: %s\n", p.DSN)
	}
	fmt.Printf("Server running on port %d\n", p.Port)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
