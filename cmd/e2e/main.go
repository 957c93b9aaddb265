package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/OliverSchlueter/goutils/sloki"
	"github.com/OliverSchlueter/smteepee/internal/messages"
	"github.com/OliverSchlueter/smteepee/internal/messages/database/fake"
	"github.com/OliverSchlueter/smteepee/internal/metrics"
	"github.com/OliverSchlueter/smteepee/internal/smtp"
	"github.com/prometheus/client_golang/prometheus"
)

const domain = "localhost"

// Runs a listener in process, submits one message through it and prints
// what was stored.
func main() {
	lokiService := sloki.NewService(sloki.Configuration{
		URL:          "http://localhost:3100/loki/api/v1/push",
		Service:      "smteepee-e2e",
		ConsoleLevel: slog.LevelDebug,
		LokiLevel:    slog.LevelInfo,
		EnableLoki:   false,
	})
	slog.SetDefault(slog.New(lokiService))

	if err := run(); err != nil {
		slog.Error("End to end run failed", sloki.WrapError(err))
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// messages
	ms := messages.NewStore(messages.Configuration{
		DB: fake.NewDB(),
	})

	// smtp server
	srv := smtp.NewServer(smtp.Configuration{
		Domain:   domain,
		Addr:     "127.0.0.1:0",
		Messages: ms,
		Metrics:  metrics.New(prometheus.NewRegistry()),
	})
	addr, err := srv.Listen()
	if err != nil {
		return err
	}

	serveCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(serveCtx)
	}()

	// client
	lines, err := smtp.ComposeLines("peter@otherdomain.com", []string{"oliver@" + domain}, "Hello from e2e", "It works.")
	if err != nil {
		return err
	}
	if err := smtp.SendMail(ctx, addr.String(), "peter@otherdomain.com", []string{"oliver@" + domain}, lines); err != nil {
		return err
	}

	// Serve waits for the session, so the message is stored once it returns.
	stop()
	if err := <-done; err != nil {
		return err
	}

	stored, err := ms.List(ctx)
	if err != nil {
		return err
	}
	for _, m := range stored {
		slog.Info("Stored message", "id", m.ID, "from", m.From, "to", m.To, "size", m.Size())
	}
	return nil
}
