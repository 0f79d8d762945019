package engine

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

// lockTimeout bounds how long a snapshot read or write waits for another
// process holding the collection file.
var lockTimeout = 5 * time.Second

// Persistence handles the disk I/O for the MemDialer. Each collection is a
// single JSON file mapping public identifiers to documents.
type Persistence struct {
	DataDir string
	mu      sync.Mutex // Protects concurrent writes to the filesystem
	saved   map[string]uint64
}

// NewPersistence initializes a persistence handler.
func NewPersistence(dir string) (*Persistence, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating data dir %s", dir)
	}
	return &Persistence{DataDir: dir, saved: make(map[string]uint64)}, nil
}

func (p *Persistence) path(collection string) string {
	return filepath.Join(p.DataDir, collection+".json")
}

// lock takes the cross-process lock of a collection file.
func (p *Persistence) lock(collection string) (*flock.Flock, error) {
	fl := flock.New(p.path(collection) + ".lock")
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	locked, err := fl.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil {
		return nil, errors.Wrapf(err, "locking snapshot for %s", collection)
	}
	if !locked {
		return nil, errors.Errorf("snapshot for %s is locked by another process", collection)
	}
	return fl, nil
}

// SaveCollection writes a collection snapshot atomically. Snapshots are
// numbered by seq; one older than the last written snapshot is dropped.
func (p *Persistence) SaveCollection(collection string, seq uint64, data map[string]map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if seq <= p.saved[collection] {
		return nil
	}

	fl, err := p.lock(collection)
	if err != nil {
		return err
	}
	defer fl.Unlock()

	filePath := p.path(collection)
	tempPath := filePath + ".tmp"

	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding snapshot")
	}
	if err := os.WriteFile(tempPath, bytes, 0644); err != nil {
		return errors.Wrap(err, "writing snapshot")
	}
	// Rename is atomic: readers see either the old file or the new one.
	if err := os.Rename(tempPath, filePath); err != nil {
		return errors.Wrap(err, "replacing snapshot")
	}
	p.saved[collection] = seq
	return nil
}

// Load returns the saved documents of a collection keyed by public
// identifier. A missing file is an empty collection.
func (p *Persistence) Load(collection string) (map[string]map[string]any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fl, err := p.lock(collection)
	if err != nil {
		return nil, err
	}
	defer fl.Unlock()

	content, err := os.ReadFile(p.path(collection))
	if errors.Is(err, os.ErrNotExist) {
		return map[string]map[string]any{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading snapshot for %s", collection)
	}

	var data map[string]map[string]any
	if err := json.Unmarshal(content, &data); err != nil {
		return nil, errors.Wrapf(err, "decoding snapshot for %s", collection)
	}
	if data == nil {
		data = map[string]map[string]any{}
	}
	return data, nil
}
