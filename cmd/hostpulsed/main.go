package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hostpulse/hostpulse/internal/alerts"
	"github.com/hostpulse/hostpulse/internal/collector"
	"github.com/hostpulse/hostpulse/internal/config"
	"github.com/hostpulse/hostpulse/internal/credentials"
	"github.com/hostpulse/hostpulse/internal/notify"
	"github.com/hostpulse/hostpulse/internal/storage"
	"github.com/hostpulse/hostpulse/internal/store"
	"github.com/hostpulse/hostpulse/internal/vault"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("hostpulsed starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"collect_interval", cfg.Collect.Interval,
		"evaluate_interval", cfg.Evaluate.Interval,
		"retention", cfg.Store.Retention,
		"db_path", cfg.DB.Path,
		"http_port", cfg.Notify.HTTPPort,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Credential vault — key comes from the environment, never the file.
	key := cfg.Vault.Key()
	if key == "" {
		slog.Error("vault key not set", "env", cfg.Vault.KeyEnv)
		os.Exit(1)
	}
	vlt, err := vault.NewFromString(key)
	if err != nil {
		slog.Error("failed to initialise vault", "err", err)
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DB.Path)
	if err != nil {
		slog.Error("failed to open database", "path", cfg.DB.Path, "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := storage.Migrate(db); err != nil {
		slog.Error("failed to run migrations", "err", err)
		os.Exit(1)
	}

	hostStore := storage.NewHostStore(db)
	ruleStore := storage.NewRuleStore(db)
	eventStore := storage.NewEventStore(db)
	credStore := storage.NewCredentialStore(db)
	directory := credentials.NewDirectory(credStore, vlt)

	// Metric window store with background TTL eviction.
	metrics := store.New(cfg.Store.Retention)
	go metrics.Run(ctx)

	// Collection loop: SSH probe every host on the collect interval.
	runner := collector.NewRunner(cfg.Collect.Timeout)
	scheduler := collector.NewScheduler(hostStore, directory, runner, metrics,
		cfg.Collect.Interval, cfg.Collect.Timeout, cfg.Collect.MaxBackoff, cfg.Collect.Workers)
	go scheduler.Run(ctx)

	// Notification channels: configured webhooks plus the WebSocket hub.
	dispatcher := notify.NewMulti()
	for _, target := range cfg.Notify.Webhooks {
		dispatcher.Register(target.Name, notify.NewWebhook(target))
	}
	hub := notify.NewHub()
	if cfg.Notify.WSEnabled {
		dispatcher.Register("ws_broadcast", hub)
		go hub.Run(ctx)
	}

	// Alert evaluation loop.
	engine := alerts.NewEngine(ruleStore, eventStore, hostStore, metrics, dispatcher,
		cfg.Evaluate.Interval, cfg.Collect.Interval)
	go engine.Run(ctx)

	// Hot-reload is deliberately conservative: only webhook targets are
	// swappable at runtime; interval or storage changes need a restart.
	go func() {
		err := config.Watch(ctx, *configPath, cfg, func(next *config.Config) {
			for _, target := range next.Notify.Webhooks {
				dispatcher.Register(target.Name, notify.NewWebhook(target))
			}
			slog.Info("webhook targets refreshed", "count", len(next.Notify.Webhooks))
		})
		if err != nil {
			slog.Error("config watcher failed", "err", err)
		}
	}()

	httpMux := http.NewServeMux()
	httpMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	if cfg.Notify.WSEnabled {
		httpMux.Handle("/ws/alerts", hub)
	}

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Notify.HTTPPort),
		Handler: httpMux,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Notify.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("hostpulsed shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}
