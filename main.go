package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OliverSchlueter/goutils/sloki"
	"github.com/OliverSchlueter/smteepee/internal/config"
	"github.com/OliverSchlueter/smteepee/internal/messagehandler"
	"github.com/OliverSchlueter/smteepee/internal/messages"
	"github.com/OliverSchlueter/smteepee/internal/messages/database/fake"
	"github.com/OliverSchlueter/smteepee/internal/messages/database/file"
	redisdb "github.com/OliverSchlueter/smteepee/internal/messages/database/redis"
	"github.com/OliverSchlueter/smteepee/internal/metrics"
	"github.com/OliverSchlueter/smteepee/internal/smtp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var rootCmd = &cobra.Command{
	Use:          "smteepee",
	Short:        "A tiny SMTP listener that stores every message it receives",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")

		cfg, err := config.Load(path)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return run(ctx, cfg)
	},
}

func init() {
	rootCmd.Flags().StringP("config", "c", "", "Path to a TOML configuration file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	lokiService := sloki.NewService(sloki.Configuration{
		URL:          cfg.Log.LokiURL,
		Service:      "smteepee",
		ConsoleLevel: cfg.Log.Level,
		LokiLevel:    slog.LevelInfo,
		EnableLoki:   cfg.Log.LokiURL != "",
	})
	slog.SetDefault(slog.New(lokiService))

	// messages
	db, closeDB, err := openDB(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeDB()

	ms := messages.NewStore(messages.Configuration{
		DB: db,
	})

	// dkim
	var signer *smtp.Signer
	if cfg.DKIM.KeyFile != "" {
		signer, err = smtp.LoadDKIMSigner(cfg.DKIM.KeyFile, cfg.Domain, cfg.DKIM.Selector)
		if err != nil {
			return fmt.Errorf("load DKIM key: %w", err)
		}
		slog.Info("DKIM signing enabled", "selector", cfg.DKIM.Selector, "domain", cfg.Domain)
	}

	// metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// smtp server
	smtpServer := smtp.NewServer(smtp.Configuration{
		Domain:      cfg.Domain,
		Addr:        cfg.Addr,
		IdleTimeout: cfg.IdleTimeout,
		Messages:    ms,
		Signer:      signer,
		Metrics:     metrics.New(reg),
	})
	httpListener, err := bind(cfg.HTTP.Addr, smtpServer)
	if err != nil {
		return err
	}

	// http api
	var httpServer *http.Server
	if httpListener != nil {
		mux := http.NewServeMux()
		messagehandler.New(ms).Register("/api", mux)
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

		httpServer = &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := httpServer.Serve(httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("HTTP server stopped", sloki.WrapError(err))
			}
		}()
		slog.Info("Started HTTP server", "addr", httpListener.Addr().String())
	}

	slog.Info("Started SMTP server")
	err = smtpServer.Serve(ctx)

	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Graceful HTTP shutdown failed", sloki.WrapError(err))
		}
	}

	slog.Info("Stopped")
	return err
}

// bind opens the HTTP listener, unless httpAddr is empty, and then the SMTP
// listener. Nothing is left bound when it fails.
func bind(httpAddr string, smtpServer *smtp.Server) (net.Listener, error) {
	var httpListener net.Listener
	if httpAddr != "" {
		l, err := net.Listen("tcp", httpAddr)
		if err != nil {
			return nil, fmt.Errorf("listen on %s: %w", httpAddr, err)
		}
		httpListener = l
	}

	if _, err := smtpServer.Listen(); err != nil {
		if httpListener != nil {
			httpListener.Close()
		}
		return nil, err
	}
	return httpListener, nil
}

// openDB returns the message backend selected by the storage driver and a
// function releasing it.
func openDB(ctx context.Context, cfg config.Storage) (messages.DB, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Driver {
	case config.DriverFile:
		slog.Info("Storing messages on disk", "dir", cfg.Dir)
		return file.NewDB(cfg.Dir), noop, nil

	case config.DriverMemory:
		slog.Info("Storing messages in memory")
		return fake.NewDB(), noop, nil

	case config.DriverRedis:
		db := redisdb.NewDB(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

		pingCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		if err := db.Ping(pingCtx); err != nil {
			db.Close()
			return nil, nil, err
		}

		slog.Info("Storing messages in redis", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
		return db, db.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
