package state

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/relish-io/relish/internal/ir"
)

// LocalStore keeps one JSON file per node under <dir>/resources/, plus a
// meta.json. Writes go through a temp file and rename, so a record is never
// observed half-written.
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

func (s *LocalStore) resourcesDir() string {
	return filepath.Join(s.dir, "resources")
}

func (s *LocalStore) recordPath(nodeID string) string {
	return filepath.Join(s.resourcesDir(), url.PathEscape(nodeID)+".json")
}

func (s *LocalStore) Load(ctx context.Context) (map[string]*ir.StateRecord, error) {
	records := make(map[string]*ir.StateRecord)

	entries, err := os.ReadDir(s.resourcesDir())
	if os.IsNotExist(err) {
		return records, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state directory %s: %w", s.resourcesDir(), err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(s.resourcesDir(), entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read state record %s: %w", entry.Name(), err)
		}
		raw, err = DecryptRecord(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt state record %s: %w", entry.Name(), err)
		}

		var rec ir.StateRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("corrupt state record %s: %w", entry.Name(), err)
		}
		records[rec.NodeID] = &rec
	}
	return records, nil
}

func (s *LocalStore) Save(ctx context.Context, nodeID string, record *ir.StateRecord) error {
	if err := os.MkdirAll(s.resourcesDir(), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state record %s: %w", nodeID, err)
	}
	data, err = EncryptRecord(append(data, '\n'))
	if err != nil {
		return fmt.Errorf("failed to encrypt state record %s: %w", nodeID, err)
	}

	return s.writeAtomic(s.recordPath(nodeID), data)
}

func (s *LocalStore) Delete(ctx context.Context, nodeID string) error {
	if err := os.Remove(s.recordPath(nodeID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete state record %s: %w", nodeID, err)
	}
	return nil
}

func (s *LocalStore) Meta(ctx context.Context) (*ir.Meta, error) {
	raw, err := os.ReadFile(filepath.Join(s.dir, "meta.json"))
	if os.IsNotExist(err) {
		return &ir.Meta{Version: 1, Lineage: uuid.NewString()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state metadata: %w", err)
	}
	raw, err = DecryptRecord(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt state metadata: %w", err)
	}

	var meta ir.Meta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("corrupt state metadata: %w", err)
	}
	return &meta, nil
}

func (s *LocalStore) WriteMeta(ctx context.Context, meta *ir.Meta) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state metadata: %w", err)
	}
	data, err = EncryptRecord(append(data, '\n'))
	if err != nil {
		return fmt.Errorf("failed to encrypt state metadata: %w", err)
	}
	return s.writeAtomic(filepath.Join(s.dir, "meta.json"), data)
}

// writeAtomic writes to a temp file in the target directory and renames it
// over the destination.
func (s *LocalStore) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Lock acquires a lock file to prevent concurrent runs against the same
// state directory. Locks older than 10 minutes are considered stale.
func (s *LocalStore) Lock() error {
	lockPath := s.lockPath()
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	if info, err := os.Stat(lockPath); err == nil {
		if time.Since(info.ModTime()) > 10*time.Minute {
			os.Remove(lockPath)
		} else {
			return fmt.Errorf("state is locked by another process (lock file: %s); "+
				"remove the lock file manually if no other run is active", lockPath)
		}
	}

	content := fmt.Sprintf("pid=%d\ntime=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(lockPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	return nil
}

// Unlock releases the state lock.
func (s *LocalStore) Unlock() error {
	if err := os.Remove(s.lockPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

func (s *LocalStore) lockPath() string {
	return filepath.Join(s.dir, ".lock")
}
