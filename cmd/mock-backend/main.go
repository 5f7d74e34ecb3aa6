package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tradebot/dashboard/internal/logging"
	"github.com/tradebot/dashboard/internal/mockapi"
)

var (
	addr         string
	secret       string
	schedule     string
	seedUser     string
	logLevel     string
	tokenTTL     time.Duration
	maxConns     int
	pingInterval time.Duration
	noSimulation bool
)

var rootCmd = &cobra.Command{
	Use:           "mock-backend",
	Short:         "In-memory trading bot backend for development",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&addr, "addr", "127.0.0.1:8000", "listen address")
	f.StringVar(&secret, "secret", envOr("MOCK_JWT_SECRET", "mock-backend-secret"), "HS256 signing secret")
	f.StringVar(&schedule, "schedule", mockapi.DefaultSchedule, "cron schedule (with seconds) for simulated trades")
	f.StringVar(&seedUser, "seed-user", "demo@example.com:password123", "email:password registered at startup; empty to skip")
	f.StringVar(&logLevel, "log-level", "info", "log level")
	f.DurationVar(&tokenTTL, "token-ttl", 24*time.Hour, "lifetime of issued credentials")
	f.IntVar(&maxConns, "max-conns", 4, "feed connections allowed per user (0 = unlimited)")
	f.DurationVar(&pingInterval, "ping-interval", 30*time.Second, "feed keepalive ping interval")
	f.BoolVar(&noSimulation, "no-simulation", false, "disable the trade simulator")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func run(cmd *cobra.Command, args []string) error {
	logging.Console(logLevel)

	store := mockapi.NewStore(nil)
	if seedUser != "" {
		email, password, ok := strings.Cut(seedUser, ":")
		if !ok {
			return fmt.Errorf("--seed-user must be email:password")
		}
		if err := store.Register(email, password); err != nil {
			return fmt.Errorf("seeding user: %w", err)
		}
		log.Info().Str("email", email).Msg("seeded user")
	}

	hub := mockapi.NewHub(maxConns, pingInterval)
	srv := mockapi.New(store, hub, mockapi.Options{
		Secret:   []byte(secret),
		TokenTTL: tokenTTL,
	})

	if !noSimulation {
		sim := mockapi.NewSimulator(store, hub, schedule, nil)
		if err := sim.Start(); err != nil {
			return fmt.Errorf("starting simulator: %w", err)
		}
		defer sim.Stop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(addr) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
