package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	oshttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kidoku/internal/backend"
	"kidoku/internal/backend/firebase"
	"kidoku/internal/backend/local"
	"kidoku/internal/commands"
	"kidoku/internal/config"
	"kidoku/internal/http"
	"kidoku/internal/notify"
	"kidoku/internal/session"
	"kidoku/internal/ws"

	"golang.org/x/sync/errgroup"
)

// provider is a complete backend: auth, profiles and messages.
type provider interface {
	backend.ProfileStore
	backend.MessageStore
	NewAuth() backend.Auth
	Close() error
}

func setupLogging(cfg *config.Config) error {
	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

func openProvider(ctx context.Context, cfg *config.Config) (provider, error) {
	switch cfg.Backend {
	case config.BackendFirebase:
		return firebase.New(ctx, firebase.Config{
			ProjectID:       cfg.FirebaseProjectID,
			APIKey:          cfg.FirebaseAPIKey,
			CredentialsFile: cfg.CredentialsFile,
		})
	case config.BackendLocal:
		return local.New(cfg.DBFile)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// notifiers returns the notifier shared by all sessions and, for web push,
// the per-connection push settings.
func notifiers(cfg *config.Config) (notify.Notifier, *notify.WebPushConfig, error) {
	switch cfg.Notifier {
	case config.NotifierLog:
		return notify.Log{}, nil, nil
	case config.NotifierExpo:
		n, err := notify.NewExpo(notify.ExpoConfig{Token: cfg.ExpoToken, TTL: cfg.DismissAfter})
		if err != nil {
			return nil, nil, err
		}
		return n, nil, nil
	case config.NotifierWebPush:
		return nil, &notify.WebPushConfig{
			PublicKey:  cfg.VAPIDPublicKey,
			PrivateKey: cfg.VAPIDPrivateKey,
			Subscriber: cfg.VAPIDSubscriber,
			TTL:        cfg.DismissAfter,
		}, nil
	default:
		return nil, nil, nil
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}
	if err := setupLogging(cfg); err != nil {
		return err
	}

	if cfg.AddUser != "" {
		return commands.AddUser(ctx, cfg.AddUser, cfg.AddUserNickname, cfg)
	}

	p, err := openProvider(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	shared, webPush, err := notifiers(cfg)
	if err != nil {
		return err
	}

	sessions := ws.NewServer(ws.ServerConfig{
		NewSession: func(n notify.Notifier) ws.ChatSession {
			return session.New(session.Config{
				Auth:         p.NewAuth(),
				Profiles:     p,
				Messages:     p,
				Notifier:     n,
				DismissAfter: cfg.DismissAfter,
				Focused:      true,
			})
		},
		Shared:  shared,
		WebPush: webPush,
	})
	apiServer := http.NewAPIServer(sessions, cfg.APIAddr)

	slog.Info("starting", "backend", cfg.Backend, "notifier", cfg.Notifier)

	g, gCtx := errgroup.WithContext(ctx)

	// Start API Server
	g.Go(func() error {
		err := apiServer.Start()
		if err != nil && err != oshttp.ErrServerClosed {
			return err
		}
		return nil
	})

	// Wait for context cancellation (signal)
	g.Go(func() error {
		<-gCtx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("API server shutdown error", "error", err)
		}
		return nil
	})

	return g.Wait()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}
