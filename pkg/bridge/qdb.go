package bridge

import (
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"playrelay/pkg/persistence"
)

// qdbSnapshot is the on-disk shape of the user moderation cache: a
// single YAML snapshot rather than an append-only binary log.
type qdbSnapshot struct {
	Users map[int32]UserFlags `yaml:"users"`
}

// qdbDirAndBase splits a configured qdb path into a directory FileStore
// can create and a filename relative to it, defaulting a bare filename
// (e.g. "qdb.bin") to the current directory.
func qdbDirAndBase(path string) (dir, base string) {
	dir, base = filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	return dir, base
}

// LoadQdb populates Users from path, if it exists. A missing file is
// not an error: it means no snapshot has been written yet, which is
// the normal state on a server's first run. Call this once, before
// Run, so the cache is warm before the bridge connection (re)populates
// it from the central server.
func (c *Client) LoadQdb(path string) error {
	if path == "" {
		return nil
	}
	dir, base := qdbDirAndBase(path)
	store, err := persistence.NewFileStore(dir)
	if err != nil {
		return fmt.Errorf("qdb file store: %w", err)
	}
	if !store.Exists(base) {
		return nil
	}
	var snap qdbSnapshot
	if err := store.Load(base, &snap); err != nil {
		return fmt.Errorf("qdb load: %w", err)
	}
	c.Users.Restore(snap.Users)
	logrus.WithFields(logrus.Fields{
		"path":  path,
		"users": len(snap.Users),
	}).Info("restored qdb snapshot")
	return nil
}

// SaveQdb writes the current user cache to path. Called periodically
// by cmd/server so a restart doesn't start with an empty moderation
// cache while waiting for the central server to repush it.
func (c *Client) SaveQdb(path string) error {
	if path == "" {
		return nil
	}
	dir, base := qdbDirAndBase(path)
	store, err := persistence.NewFileStore(dir)
	if err != nil {
		return fmt.Errorf("qdb file store: %w", err)
	}
	snap := qdbSnapshot{Users: c.Users.Snapshot()}
	if err := store.Save(base, snap); err != nil {
		return fmt.Errorf("qdb save: %w", err)
	}
	return nil
}
