package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Vodeneev/betrunner/internal/engine"
	"github.com/Vodeneev/betrunner/internal/engine/browser"
	pkgconfig "github.com/Vodeneev/betrunner/internal/pkg/config"
	"github.com/Vodeneev/betrunner/internal/pkg/events"
	"github.com/Vodeneev/betrunner/internal/pkg/health"
	"github.com/Vodeneev/betrunner/internal/pkg/health/handlers"
	"github.com/Vodeneev/betrunner/internal/pkg/logging"
	"github.com/Vodeneev/betrunner/internal/pkg/metrics"
	"github.com/Vodeneev/betrunner/internal/pkg/notify"
	"github.com/Vodeneev/betrunner/internal/pkg/storage"
	"github.com/Vodeneev/betrunner/internal/telegram"
	"github.com/Vodeneev/betrunner/internal/worker"
)

const (
	defaultConfigPath = "configs/betrunner.yaml"
	serviceName       = "betrunner"
	shutdownTimeout   = 30 * time.Second
)

type flags struct {
	configPath     string
	runFor         time.Duration
	testConnection bool
}

func main() {
	if err := run(); err != nil {
		slog.Error("Betrunner failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	f := parseFlags()

	appConfig, err := pkgconfig.Load(f.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	_, logCloser, err := logging.SetupLogger(&appConfig.Logging, serviceName)
	if err != nil {
		slog.Warn("Failed to setup logging, continuing with default logger", "error", err)
	} else {
		defer logCloser.Close()
	}
	slog.Info("Config loaded", "path", f.configPath)

	ctx, cancel := createContext(f.runFor)
	defer cancel()
	setupSignalHandler(ctx, cancel)

	decider, deciderCloser, err := buildDecider(&appConfig.Engine)
	if err != nil {
		return err
	}
	defer deciderCloser.Close()

	hub := events.NewHub()
	go hub.Run(ctx)

	eng := engine.New(
		engine.Credentials{Username: appConfig.Betting.Username, Password: appConfig.Betting.Password},
		decider,
		engine.WithObserver(engine.MultiObserver{engine.SlogObserver{}, hub}),
		engine.WithStepTimeout(appConfig.Engine.StepTimeout),
	)

	if f.testConnection {
		return testConnection(ctx, eng)
	}

	if err := appConfig.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	store, err := openHistory(appConfig)
	if err != nil {
		return err
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	pipeline := metrics.NewPipeline(reg)

	bot, err := telegram.NewBot(appConfig.Telegram.Token)
	if err != nil {
		return err
	}
	channel := telegram.NewChannel(bot, appConfig.Telegram.ChatID, appConfig.Telegram.UpdateTimeout)

	notifiers := notify.Multi{notify.LogNotifier{}}
	if appConfig.Telegram.NotifyBetChatID != 0 || appConfig.Telegram.NotifyErrorChatID != 0 {
		tgNotifier := telegram.NewNotifier(bot, appConfig.Telegram.NotifyBetChatID, appConfig.Telegram.NotifyErrorChatID)
		defer tgNotifier.Stop()
		notifiers = append(notifiers, tgNotifier)
	}

	opts := []worker.Option{
		worker.WithNotifier(notifiers),
		worker.WithMetrics(pipeline),
		worker.WithIdleInterval(appConfig.Engine.IdleInterval),
		worker.WithPublisher(hub),
	}

	if appConfig.Redis.Addr != "" {
		dedup, err := storage.NewRedisDeduplicator(appConfig.Redis.Addr, appConfig.Redis.Password, appConfig.Redis.DB, appConfig.Redis.DedupTTL)
		if err != nil {
			slog.Warn("Redis unavailable, update dedup disabled", "addr", appConfig.Redis.Addr, "error", err)
		} else {
			defer dedup.Close()
			opts = append(opts, worker.WithDeduplicator(dedup))
		}
	}

	if appConfig.Kafka.Brokers != "" {
		publisher := events.NewKafkaPublisher(appConfig.Kafka.Brokers, appConfig.Kafka.Topic)
		defer publisher.Close()
		opts = append(opts, worker.WithPublisher(publisher))
		slog.Info("Publishing outcomes to kafka", "brokers", appConfig.Kafka.Brokers, "topic", appConfig.Kafka.Topic)
	}

	w := worker.New(channel, eng, store, opts...)

	if appConfig.HTTP.Port > 0 {
		deps := health.Deps{
			Store:          store,
			Metrics:        pipeline.Handler(),
			Events:         hub.Handler(ctx),
			AllowedOrigins: appConfig.HTTP.AllowedOrigins,
			Checks: []handlers.HealthFunc{func(*http.Request) error {
				if !w.Running() {
					return errors.New("worker is not running")
				}
				return nil
			}},
		}
		if p, ok := store.(pinger); ok {
			deps.Checks = append(deps.Checks, func(r *http.Request) error { return p.Ping(r.Context()) })
		}
		if err := health.Run(ctx, health.AddrFor(appConfig.HTTP.Port), serviceName, deps, appConfig.HTTP.ReadHeaderTimeout); err != nil {
			return err
		}
	}

	channel.Start(ctx)
	runErr := w.Run(ctx)

	logoutCtx, logoutCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer logoutCancel()
	if err := eng.Logout(logoutCtx); err != nil {
		slog.Warn("Logout on shutdown failed", "error", err)
	}

	slog.Info("Betrunner stopped")
	return runErr
}

func parseFlags() flags {
	var f flags

	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = defaultConfigPath
	}

	flag.StringVar(&f.configPath, "config", defaultConfig, "Path to config file (can be set via CONFIG_PATH env var)")
	flag.DurationVar(&f.runFor, "run-for", 0, "Auto-stop after duration (e.g. 10m). 0 = run until SIGINT/SIGTERM")
	flag.BoolVar(&f.testConnection, "test-connection", false, "Check the betting platform is reachable and exit")
	flag.Parse()
	return f
}

func buildDecider(cfg *pkgconfig.EngineConfig) (engine.StepDecider, io.Closer, error) {
	switch cfg.Decider {
	case "", "static":
		return engine.AlwaysSucceed, nopCloser{}, nil
	case "random":
		slog.Warn("Using random step decider; bets are simulated", "success_rate", cfg.SuccessRate)
		return engine.NewRandomDecider(cfg.SuccessRate, time.Now().UnixNano()), nopCloser{}, nil
	case "browser":
		d, err := browser.NewDecider(cfg.Browser)
		if err != nil {
			return nil, nil, err
		}
		return d, d, nil
	}
	return nil, nil, fmt.Errorf("unknown engine.decider %q", cfg.Decider)
}

func openHistory(cfg *pkgconfig.Config) (storage.HistoryStorage, error) {
	switch cfg.History.Backend {
	case "postgres":
		store, err := storage.NewPostgresHistoryStorage(&cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres history: %w", err)
		}
		slog.Info("Bet history stored in postgres")
		return store, nil
	default:
		store := storage.LoadOrInit(cfg.History.Path)
		slog.Info("Bet history stored in file", "path", store.Path())
		return store, nil
	}
}

func testConnection(ctx context.Context, eng *engine.Engine) error {
	if err := eng.TestConnection(ctx); err != nil {
		return err
	}
	fmt.Println("Connection to the betting platform established")
	return nil
}

func createContext(runFor time.Duration) (context.Context, context.CancelFunc) {
	if runFor > 0 {
		return context.WithTimeout(context.Background(), runFor)
	}
	return context.WithCancel(context.Background())
}

func setupSignalHandler(ctx context.Context, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal, finishing current bet...", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
}

type pinger interface {
	Ping(ctx context.Context) error
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
