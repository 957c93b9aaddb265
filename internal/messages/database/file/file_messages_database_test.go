package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/OliverSchlueter/smteepee/internal/messages"
)

func TestInsertWritesEmlAndMetadata(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "received")
	db := NewDB(dir)
	at := time.UnixMilli(1700000000123)

	m, err := db.InsertMessage(context.Background(), messages.Message{
		ID:         "one",
		ReceivedAt: at,
		From:       "MAIL FROM:<a@example.com>",
		To:         []string{"RCPT TO:<b@example.com>"},
		Data:       []string{"hello world"},
	})
	if err != nil {
		t.Fatalf("Failed to insert message: %v", err)
	}

	if m.FileName != "1700000000123.eml" {
		t.Errorf("Expected file name '1700000000123.eml', got '%s'", m.FileName)
	}

	data, err := os.ReadFile(filepath.Join(dir, m.FileName))
	if err != nil {
		t.Fatalf("Failed to read eml: %v", err)
	}
	if string(data) != "hello world\r\n" {
		t.Errorf("Expected eml 'hello world\\r\\n', got %q", data)
	}

	got, err := db.GetMessage(context.Background(), "one")
	if err != nil {
		t.Fatalf("Failed to get message: %v", err)
	}
	if got.From != "MAIL FROM:<a@example.com>" || len(got.To) != 1 || got.FileName != m.FileName {
		t.Errorf("Expected stored metadata to round trip, got %+v", got)
	}
	if !got.ReceivedAt.Equal(at) {
		t.Errorf("Expected receive time %v, got %v", at, got.ReceivedAt)
	}
}

func TestInsertSameMillisecond(t *testing.T) {
	dir := t.TempDir()
	db := NewDB(dir)
	at := time.UnixMilli(1700000000123)

	first, err := db.InsertMessage(context.Background(), messages.Message{ID: "one", ReceivedAt: at})
	if err != nil {
		t.Fatalf("Failed to insert first message: %v", err)
	}
	second, err := db.InsertMessage(context.Background(), messages.Message{ID: "two", ReceivedAt: at})
	if err != nil {
		t.Fatalf("Failed to insert second message: %v", err)
	}

	if first.FileName == second.FileName {
		t.Errorf("Expected distinct file names, both are '%s'", first.FileName)
	}
	if !strings.HasPrefix(second.FileName, "1700000000123-") {
		t.Errorf("Expected suffixed file name, got '%s'", second.FileName)
	}

	all, err := db.GetMessages(context.Background())
	if err != nil {
		t.Fatalf("Failed to list messages: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 messages, got %d", len(all))
	}
}

func TestInsertDuplicateID(t *testing.T) {
	db := NewDB(t.TempDir())

	if _, err := db.InsertMessage(context.Background(), messages.Message{ID: "one", ReceivedAt: time.Now()}); err != nil {
		t.Fatalf("Failed to insert message: %v", err)
	}

	_, err := db.InsertMessage(context.Background(), messages.Message{ID: "one", ReceivedAt: time.Now()})
	if !errors.Is(err, messages.ErrMessageAlreadyExists) {
		t.Errorf("Expected ErrMessageAlreadyExists, got %v", err)
	}
}

func TestGetMessagesMissingDirectory(t *testing.T) {
	db := NewDB(filepath.Join(t.TempDir(), "nope"))

	all, err := db.GetMessages(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(all) != 0 {
		t.Errorf("Expected no messages, got %d", len(all))
	}

	_, err = db.GetMessage(context.Background(), "one")
	if !errors.Is(err, messages.ErrMessageNotFound) {
		t.Errorf("Expected ErrMessageNotFound, got %v", err)
	}
}

func TestInsertWithUndecodableMetadata(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.json"), []byte("not json"), 0o644); err != nil {
		t.Fatalf("Failed to write junk file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "1700000000000.json"), []byte(`{"id":"trunc`), 0o644); err != nil {
		t.Fatalf("Failed to write truncated file: %v", err)
	}

	db := NewDB(dir)
	if _, err := db.InsertMessage(context.Background(), messages.Message{ID: "one", ReceivedAt: time.Now()}); err != nil {
		t.Fatalf("Expected insert to succeed next to bad metadata, got %v", err)
	}

	all, err := db.GetMessages(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(all) != 1 || all[0].ID != "one" {
		t.Errorf("Expected only the valid message, got %+v", all)
	}

	if _, err := db.GetMessage(context.Background(), "one"); err != nil {
		t.Errorf("Expected to get the message, got %v", err)
	}
}

func TestIndexRebuiltFromDirectory(t *testing.T) {
	dir := t.TempDir()

	if _, err := NewDB(dir).InsertMessage(context.Background(), messages.Message{ID: "one", ReceivedAt: time.Now()}); err != nil {
		t.Fatalf("Failed to insert message: %v", err)
	}

	reopened := NewDB(dir)
	if _, err := reopened.GetMessage(context.Background(), "one"); err != nil {
		t.Errorf("Expected the message to be found after reopening, got %v", err)
	}

	_, err := reopened.InsertMessage(context.Background(), messages.Message{ID: "one", ReceivedAt: time.Now()})
	if !errors.Is(err, messages.ErrMessageAlreadyExists) {
		t.Errorf("Expected ErrMessageAlreadyExists after reopening, got %v", err)
	}
}

func TestInsertLeavesNoTemporaryFiles(t *testing.T) {
	dir := t.TempDir()
	db := NewDB(dir)

	if _, err := db.InsertMessage(context.Background(), messages.Message{ID: "one", ReceivedAt: time.UnixMilli(1700000000123)}); err != nil {
		t.Fatalf("Failed to insert message: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read dir: %v", err)
	}

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	if strings.Join(names, ",") != "1700000000123.eml,1700000000123.json" {
		t.Errorf("Expected only the eml and json files, got %v", names)
	}
}
