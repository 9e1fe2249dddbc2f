// Command remotia opens a control session to a remote device: it keeps the
// realtime command channel alive and serves a local status/metrics endpoint
// with the session's state.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/remotia/remotia/pkg/auth"
	"github.com/remotia/remotia/pkg/channel"
	"github.com/remotia/remotia/pkg/config"
	"github.com/remotia/remotia/pkg/observability"
	"github.com/remotia/remotia/pkg/permission"
	"github.com/remotia/remotia/pkg/statusapi"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "remotia: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("remotia", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file (default: ~/.remotia/config.yaml)")
	deviceID := fs.String("device", "", "device id to control (overrides config)")
	owner := fs.Bool("owner", false, "connect as the device owner (overrides config)")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromPath(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if *deviceID != "" {
		cfg.Device.ID = *deviceID
		cfg.Device.Owner = *owner
	}
	if cfg.Device.ID == "" {
		return fmt.Errorf("no device id configured; pass -device or set device.id")
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := observability.NewLogger("remotia", level)

	tokens, err := loadTokens(cfg.Auth.TokenFile)
	if err != nil {
		return err
	}
	store := auth.NewStore(tokens)
	refresher := auth.NewRefresher(cfg.API.RefreshURL, store, logger)
	resolver := permission.NewResolver(cfg.API.BaseURL, store, logger)

	if id := store.Identity(); id != nil {
		logger = &observability.Logger{Logger: logger.With(slog.String("user_id", id.UserID))}
	}

	ch, err := channel.New(channel.Options{
		GatewayURL:     cfg.Gateway.URL,
		DeviceID:       cfg.Device.ID,
		IsOwner:        cfg.Device.Owner,
		Tokens:         refresher,
		Permissions:    resolver,
		Policy:         permission.Policy{Strict: cfg.Permissions.Strict},
		ReconnectDelay: cfg.Gateway.ReconnectDelay,
		PingInterval:   cfg.Gateway.PingInterval,
		PingTimeout:    cfg.Gateway.PingTimeout,
		Logger:         logger,
		OnStateChange: func(state channel.State) {
			logger.Info("connection state changed", slog.String("state", state.String()))
		},
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)

	if cfg.Status.Enabled {
		status := statusapi.New(cfg.Status.Bind, ch, logger)
		group.Go(status.ListenAndServe)
		group.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return status.Shutdown(shutdownCtx)
		})
	}

	group.Go(func() error {
		if err := ch.Connect(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		ch.Disconnect()
		return nil
	})

	return group.Wait()
}

// loadTokens reads the bootstrap access/refresh token pair from the token
// file written at login.
func loadTokens(path string) (auth.Tokens, error) {
	if path == "" {
		return auth.Tokens{}, fmt.Errorf("auth.token_file is not configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return auth.Tokens{}, fmt.Errorf("reading token file: %w", err)
	}
	var tokens auth.Tokens
	if err := yaml.Unmarshal(data, &tokens); err != nil {
		return auth.Tokens{}, fmt.Errorf("parsing token file: %w", err)
	}
	if tokens.Refresh == "" && tokens.Access == "" {
		return auth.Tokens{}, fmt.Errorf("token file holds no tokens")
	}
	return tokens, nil
}
