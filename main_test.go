package main

import (
	"context"
	"net"
	"testing"

	"github.com/OliverSchlueter/smteepee/internal/config"
	"github.com/OliverSchlueter/smteepee/internal/messages"
	"github.com/OliverSchlueter/smteepee/internal/smtp"
	"github.com/alicebob/miniredis/v2"
)

func TestOpenDB(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()

	tests := []struct {
		name    string
		storage config.Storage
	}{
		{"file", config.Storage{Driver: config.DriverFile, Dir: t.TempDir()}},
		{"memory", config.Storage{Driver: config.DriverMemory}},
		{"redis", config.Storage{Driver: config.DriverRedis, RedisAddr: mr.Addr()}},
	}

	for _, test := range tests {
		db, closeDB, err := openDB(context.Background(), test.storage)
		if err != nil {
			t.Errorf("%s: Expected no error, got %v", test.name, err)
			continue
		}

		store := messages.NewStore(messages.Configuration{DB: db})
		created, err := store.Create(context.Background(), messages.Message{Data: []string{"hello"}})
		if err != nil {
			t.Errorf("%s: Failed to create message: %v", test.name, err)
		}
		if _, err := store.Get(context.Background(), created.ID); err != nil {
			t.Errorf("%s: Failed to get message: %v", test.name, err)
		}

		if err := closeDB(); err != nil {
			t.Errorf("%s: Failed to close: %v", test.name, err)
		}
	}
}

func TestOpenDBErrors(t *testing.T) {
	if _, _, err := openDB(context.Background(), config.Storage{Driver: "s3"}); err == nil {
		t.Error("Expected an error for an unknown driver")
	}

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	addr := mr.Addr()
	mr.Close()

	if _, _, err := openDB(context.Background(), config.Storage{Driver: config.DriverRedis, RedisAddr: addr}); err == nil {
		t.Error("Expected an error for an unreachable redis")
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	addr := l.Addr().String()
	l.Close()
	return addr
}

func TestBindReleasesHTTPWhenSMTPFails(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	defer taken.Close()

	httpAddr := freeAddr(t)
	srv := smtp.NewServer(smtp.Configuration{Addr: taken.Addr().String()})

	if _, err := bind(httpAddr, srv); err == nil {
		t.Fatal("Expected an error when the SMTP address is taken")
	}

	l, err := net.Listen("tcp", httpAddr)
	if err != nil {
		t.Fatalf("Expected the HTTP address to be released, got %v", err)
	}
	l.Close()
}

func TestBindHTTPFailureLeavesSMTPUnbound(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	defer taken.Close()

	srv := smtp.NewServer(smtp.Configuration{Addr: "127.0.0.1:0"})
	if _, err := bind(taken.Addr().String(), srv); err == nil {
		t.Fatal("Expected an error when the HTTP address is taken")
	}

	if err := srv.Serve(context.Background()); err == nil {
		t.Error("Expected the SMTP server to be unbound")
	}
}

func TestBindWithoutHTTP(t *testing.T) {
	srv := smtp.NewServer(smtp.Configuration{Addr: "127.0.0.1:0"})

	httpListener, err := bind("", srv)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if httpListener != nil {
		t.Error("Expected no HTTP listener when the address is empty")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := srv.Serve(ctx); err != nil {
		t.Errorf("Expected Serve to stop cleanly, got %v", err)
	}
}
