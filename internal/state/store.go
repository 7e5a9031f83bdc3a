// Package state persists the last-known-applied snapshot of every managed
// node. The engine depends only on the Load/Save/Delete contract; backends
// decide where records live.
package state

import (
	"context"
	"fmt"

	"github.com/relish-io/relish/internal/ir"
)

// Store is the persistence contract for state records. Save and Delete act
// on a single node and must be atomic per record: a crash mid-write never
// yields a record mixing old and new contents. Load returns an empty map on
// first run.
type Store interface {
	Load(ctx context.Context) (map[string]*ir.StateRecord, error)
	Save(ctx context.Context, nodeID string, record *ir.StateRecord) error
	Delete(ctx context.Context, nodeID string) error

	// Meta and WriteMeta carry workspace metadata (serial, lineage, outputs).
	Meta(ctx context.Context) (*ir.Meta, error)
	WriteMeta(ctx context.Context, meta *ir.Meta) error

	// Lock and Unlock guard a run against concurrent writers.
	Lock() error
	Unlock() error
}

// Config selects and configures a backend.
type Config struct {
	Type    string // "local" (default) or "s3"
	Path    string // local: state directory
	Options map[string]string
}

// NewStore creates a state store from configuration.
func NewStore(cfg Config) (Store, error) {
	switch cfg.Type {
	case "", "local":
		if cfg.Path == "" {
			return nil, fmt.Errorf("local backend requires a state directory")
		}
		return NewLocalStore(cfg.Path), nil
	case "s3":
		return newS3Store(cfg.Options)
	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.Type)
	}
}
