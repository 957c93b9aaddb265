package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/OliverSchlueter/goutils/idgen"
	"github.com/OliverSchlueter/goutils/sloki"
	"github.com/OliverSchlueter/smteepee/internal/messages"
)

const maxNameAttempts = 5

// DB stores every message as <dir>/<unix millis>.eml next to a .json file
// holding its metadata. IDs are indexed in memory, built from the directory
// on first use.
type DB struct {
	dir   string
	mu    sync.Mutex
	index map[string]string // id -> sidecar path
}

func NewDB(dir string) *DB {
	return &DB{
		dir: dir,
	}
}

func (db *DB) InsertMessage(ctx context.Context, m messages.Message) (messages.Message, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.loadIndex(); err != nil {
		return messages.Message{}, err
	}
	if _, ok := db.index[m.ID]; ok {
		return messages.Message{}, messages.ErrMessageAlreadyExists
	}

	if err := os.MkdirAll(db.dir, 0o755); err != nil {
		return messages.Message{}, fmt.Errorf("could not create message directory: %w", err)
	}

	base := strconv.FormatInt(m.ReceivedAt.UnixMilli(), 10)
	name := base
	for attempt := 0; ; attempt++ {
		f, err := os.OpenFile(filepath.Join(db.dir, name+".eml"), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			if errors.Is(err, fs.ErrExist) && attempt < maxNameAttempts {
				name = base + "-" + idgen.GenerateID(6)
				continue
			}
			return messages.Message{}, fmt.Errorf("could not create message file: %w", err)
		}

		_, err = f.Write(m.Body())
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return messages.Message{}, fmt.Errorf("could not write message file: %w", err)
		}
		break
	}

	m.FileName = name + ".eml"

	data, err := json.Marshal(m)
	if err != nil {
		return messages.Message{}, err
	}

	path := filepath.Join(db.dir, name+".json")
	if err := writeFileAtomic(path, data); err != nil {
		return messages.Message{}, fmt.Errorf("could not write message metadata: %w", err)
	}

	db.index[m.ID] = path
	return m, nil
}

func (db *DB) GetMessage(ctx context.Context, id string) (*messages.Message, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.loadIndex(); err != nil {
		return nil, err
	}

	path, ok := db.index[id]
	if !ok {
		return nil, messages.ErrMessageNotFound
	}

	m, err := readSidecar(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			delete(db.index, id)
			return nil, messages.ErrMessageNotFound
		}
		return nil, err
	}
	return m, nil
}

func (db *DB) GetMessages(ctx context.Context) ([]messages.Message, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := []messages.Message{}
	err := db.scan(func(path string, m *messages.Message) {
		out = append(out, *m)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (db *DB) loadIndex() error {
	if db.index != nil {
		return nil
	}

	index := map[string]string{}
	err := db.scan(func(path string, m *messages.Message) {
		index[m.ID] = path
	})
	if err != nil {
		return err
	}

	db.index = index
	return nil
}

// scan calls fn for every readable sidecar in the directory. Sidecars that
// cannot be read or decoded are logged and skipped.
func (db *DB) scan(fn func(path string, m *messages.Message)) error {
	paths, err := filepath.Glob(filepath.Join(db.dir, "*.json"))
	if err != nil {
		return err
	}

	for _, path := range paths {
		m, err := readSidecar(path)
		if err != nil {
			slog.Warn("Skipping unreadable message metadata", sloki.WrapError(err), "file", filepath.Base(path))
			continue
		}
		fn(path, m)
	}
	return nil
}

func readSidecar(path string) (*messages.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m messages.Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("could not decode %s: %w", filepath.Base(path), err)
	}
	if m.ID == "" {
		return nil, fmt.Errorf("%s has no message id", filepath.Base(path))
	}
	return &m, nil
}

// writeFileAtomic writes to a temporary file in the same directory and
// renames it over path, so readers never see a partial file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}
