// Package main is the entry point for the auto-shutdown scheduler.
//
// It loads configuration, restores persisted timer settings, and runs the
// host loop that counts down to the next shutdown deadline. Operators drive
// the scheduler from the interactive console and the admin HTTP API. Warnings
// fan out to the log, the console, and optionally SQS and a webhook.
//
// The process exits when the deadline is reached (after the configured stop
// command has run) or on SIGINT/SIGTERM.
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

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"autoshutdown/internal/api"
	"autoshutdown/internal/commands"
	"autoshutdown/internal/config"
	"autoshutdown/internal/console"
	"autoshutdown/internal/host"
	"autoshutdown/internal/notifications"
	"autoshutdown/internal/scheduler"
	"autoshutdown/internal/store"
	"autoshutdown/internal/types"
)

const (
	webhookTimeout  = 10 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(config.NewBuildInfo().String())
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	ctx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()
	// The stopper cancels this context once the host has been told to stop.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var con *console.Console
	logger := newLogger(os.Stdout, cfg.SlogLevel())
	if cfg.Console.Enabled {
		rl, err := console.NewReader(cfg.Console.Prompt)
		if err != nil {
			return fmt.Errorf("creating console: %w", err)
		}
		con, logger = newConsole(rl, cfg.SlogLevel())
	}
	slog.SetDefault(logger)
	logger.Info("autoshutdown starting",
		"environment", cfg.Environment,
		"server", cfg.ServerName,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"state_backend", cfg.State.Backend,
	)

	settings, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	dispatcher, err := newDispatcher(ctx, cfg, con, logger)
	if err != nil {
		return err
	}

	clock := types.RealClock{}
	sched := scheduler.NewDeadlineScheduler(scheduler.NewSchedulerState(), settings, clock, logger)
	sched.Restore(ctx)

	var stopper types.Stopper
	if cfg.Host.StopCommand != "" {
		stopper = host.NewCommandStopper(cfg.Host.StopCommand, cfg.Host.StopTimeout, cancel, logger)
	} else {
		stopper = host.CancelStopper(cancel, logger)
	}

	controller := scheduler.NewShutdownController(sched, dispatcher, stopper, logger)
	loop := host.NewLoop(controller, cfg.Scheduler.TickInterval, logger, host.WithClock(clock))
	svc := commands.NewService(loop, sched, controller, clock, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error { return loop.Run(gctx) })

	if cfg.HTTP.Enabled {
		srv, err := api.NewServer(svc, cfg.HTTP.AdminKeyHash.Unmask(), logger)
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		runHTTPServer(gctx, g, srv, cfg.HTTP.Port, logger)
	}

	if con != nil {
		g.Go(func() error {
			// Leaving the console keeps the scheduler running.
			if err := con.Run(gctx, svc); err != nil {
				logger.Error("console stopped", "error", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("autoshutdown stopped cleanly")
	return nil
}

// openStore selects the settings backend. A database that cannot be reached
// at startup is not fatal: Restore warns and the scheduler starts from
// defaults.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (scheduler.SettingsStore, func(), error) {
	if cfg.State.Backend != config.BackendPostgres {
		logger.Info("using file settings store", "path", cfg.State.File)
		return store.NewFileStore(cfg.State.File), func() {}, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.State.DatabaseURL.Unmask())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing database URL: %w", err)
	}
	poolCfg.MaxConns = cfg.State.MaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating database pool: %w", err)
	}

	s := store.NewPostgresStore(pool, cfg.ServerName)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.State.AcquireTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		logger.Warn("database not reachable at startup", "error", err)
		return s, pool.Close, nil
	}
	if err := s.EnsureSchema(ctx); err != nil {
		logger.Warn("failed to ensure settings schema", "error", err)
	}
	return s, pool.Close, nil
}

// newDispatcher builds the warning fan-out from the configured sinks.
func newDispatcher(ctx context.Context, cfg *config.Config, con *console.Console, logger *slog.Logger) (*notifications.Dispatcher, error) {
	sinks := []notifications.Sink{notifications.NewLogSink(logger)}
	var metrics notifications.Metrics = notifications.NoopMetrics{}

	if con != nil {
		sinks = append(sinks, console.NewSink(con.Stdout()))
	}

	if cfg.NeedsAWS() {
		awsCfg, err := loadAWSConfig(ctx, cfg.AWS)
		if err != nil {
			return nil, err
		}
		if cfg.Notify.SQSQueueURL != "" {
			sinks = append(sinks, notifications.NewSQSSink(sqs.NewFromConfig(awsCfg), cfg.Notify.SQSQueueURL, cfg.ServerName, logger))
		}
		if cfg.Observability.MetricsEnabled {
			metrics = notifications.NewCloudWatchMetrics(cloudwatch.NewFromConfig(awsCfg), cfg.Observability.MetricNamespace, logger)
		}
	}

	if url := cfg.Notify.WebhookURL.Unmask(); url != "" {
		wh, err := notifications.NewWebhookSink(url, cfg.ServerName, &http.Client{Timeout: webhookTimeout}, logger)
		if err != nil {
			return nil, fmt.Errorf("creating webhook sink: %w", err)
		}
		sinks = append(sinks, wh)
	}

	return notifications.NewDispatcher(cfg.Notify.DispatchBuffer, metrics, logger, sinks...), nil
}

// loadAWSConfig resolves credentials from the default chain. EndpointURL
// points the clients at a local emulator.
func loadAWSConfig(ctx context.Context, c config.AWSConfig) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(c.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	if c.EndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(c.EndpointURL)
	}
	return awsCfg, nil
}

// runHTTPServer serves the admin API until ctx ends, then shuts down with a
// bounded grace period.
func runHTTPServer(ctx context.Context, g *errgroup.Group, srv *api.Server, port string, logger *slog.Logger) {
	addr := ":" + port
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "error", err)
		}
		return nil
	})
}

// newConsole builds the console and a logger writing through its reader, so
// log lines never garble the prompt.
func newConsole(rl console.LineReader, level slog.Level) (*console.Console, *slog.Logger) {
	logger := newLogger(rl.Stdout(), level)
	return console.NewWithReader(rl, logger), logger
}

// newLogger creates a structured JSON logger writing to w.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
