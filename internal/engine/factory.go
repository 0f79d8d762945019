package engine

import (
	"fmt"
	"time"
)

// Options selects and configures a store backend.
type Options struct {
	Backend        string
	MongoURL       string
	Database       string
	Collection     string
	DataDir        string
	ConnectTimeout time.Duration
}

// NewDialer creates a Dialer based on the backend name.
//
// Supported backends:
//
//	"mongo"  - MongoDB at MongoURL (default)
//	"memory" - in-process collection, snapshotted to DataDir when set
func NewDialer(opts Options) (Dialer, error) {
	switch opts.Backend {
	case "mongo", "":
		return &MongoDialer{
			URL:            opts.MongoURL,
			Database:       opts.Database,
			Collection:     opts.Collection,
			ConnectTimeout: opts.ConnectTimeout,
		}, nil
	case "memory":
		if opts.DataDir == "" {
			return NewMemDialer(opts.Collection, nil, nil), nil
		}
		p, err := NewPersistence(opts.DataDir)
		if err != nil {
			return nil, err
		}
		initial, err := p.Load(opts.Collection)
		if err != nil {
			return nil, err
		}
		return NewMemDialer(opts.Collection, initial, p), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %q (supported: mongo, memory)", opts.Backend)
	}
}
