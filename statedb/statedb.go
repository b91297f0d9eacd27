// Package statedb persists the bridge's cursor state — the one thing that
// must survive a restart so relay never skips a confirmed log. The file
// format and write discipline (write-if-changed, atomic rename, advisory
// lock) mirror go-ethereum's own on-disk config and chain data handling.
package statedb

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofrs/flock"
	"github.com/naoina/toml"

	"github.com/parity-relay/bridge/bridgeerr"
)

// State is the full persisted cursor set for one running bridge. Every
// field is a block number or contract address recorded once and only ever
// advanced forward, never rewound, while the daemon is healthy.
type State struct {
	MainContractAddress               common.Address `toml:"main_contract_address"`
	SideContractAddress               common.Address `toml:"side_contract_address"`
	MainDeployedAtBlock                uint64         `toml:"main_deployed_at_block"`
	SideDeployedAtBlock                uint64         `toml:"side_deployed_at_block"`
	LastMainToSideSignAtBlock          uint64         `toml:"last_main_to_side_sign_at_block"`
	LastSideToMainSignaturesAtBlock    uint64         `toml:"last_side_to_main_signatures_at_block"`
	LastSideToMainSignAtBlock          uint64         `toml:"last_side_to_main_sign_at_block"`
}

// tomlSettings fixes field names to the snake_case keys the original TOML
// database used, rather than naoina/toml's default reflect-based guess.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey: func(rt reflect.Type, field string) string { return field },
}

// DB is a TOML file backed State store. A DB holds an advisory file lock
// for its lifetime so two bridge processes can't run against the same
// state file at once — a last-resort safety net, not a substitute for
// operators not doing that in the first place.
//
// mu guards state: Read is called from the status HTTP server's goroutine
// while Write is called from the Bridge's main loop, so the in-memory copy
// needs its own lock independent of the on-disk advisory one.
type DB struct {
	path string
	lock *flock.Flock

	mu    sync.RWMutex
	state State
}

// Open loads the State at path, taking an advisory lock on it. It returns
// a bridgeerr with category MissingFile if path doesn't exist — the
// caller (cmd/bridge) is expected to treat that as fatal: the database
// must be seeded by `deploy` before a bridge can run.
func Open(path string) (*DB, error) {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, bridgeerr.New(bridgeerr.IO, fmt.Sprintf("locking state database %s", path), err)
	}
	if !locked {
		return nil, bridgeerr.New(bridgeerr.IO, fmt.Sprintf("state database %s is already locked by another process", path), nil)
	}

	f, err := os.Open(path)
	if err != nil {
		lock.Unlock()
		if os.IsNotExist(err) {
			return nil, bridgeerr.New(bridgeerr.MissingFile, fmt.Sprintf("state database %s does not exist; run deploy first", path), err)
		}
		return nil, bridgeerr.New(bridgeerr.IO, fmt.Sprintf("opening state database %s", path), err)
	}
	defer f.Close()

	var state State
	if err := tomlSettings.NewDecoder(f).Decode(&state); err != nil {
		lock.Unlock()
		return nil, bridgeerr.New(bridgeerr.Config, fmt.Sprintf("parsing state database %s", path), err)
	}

	return &DB{path: path, lock: lock, state: state}, nil
}

// Create writes a brand-new State to path, failing if a file already
// exists there — used by cmd/deploy once contracts are deployed.
func Create(path string, state State) (*DB, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, bridgeerr.New(bridgeerr.IO, fmt.Sprintf("state database %s already exists", path), nil)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, bridgeerr.New(bridgeerr.IO, fmt.Sprintf("locking state database %s", path), err)
	}
	if !locked {
		return nil, bridgeerr.New(bridgeerr.IO, fmt.Sprintf("state database %s is already locked by another process", path), nil)
	}

	db := &DB{path: path, lock: lock}
	if err := db.Write(state); err != nil {
		lock.Unlock()
		return nil, err
	}
	return db, nil
}

// Read returns the last state written to, or loaded from, disk.
func (db *DB) Read() State {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.state
}

// Write persists state to disk, atomically (write to a temp file in the
// same directory, then rename over the old one) so a crash mid-write can
// never leave a half-written, unparseable database behind. A write whose
// state is unchanged from what's already on disk is a no-op, matching the
// original database's write-if-changed discipline.
func (db *DB) Write(state State) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if state == db.state {
		return nil
	}

	dir := filepath.Dir(db.path)
	tmp, err := os.CreateTemp(dir, ".statedb-*.tmp")
	if err != nil {
		return bridgeerr.New(bridgeerr.IO, "creating temporary state database file", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if err := tomlSettings.NewEncoder(tmp).Encode(&state); err != nil {
		tmp.Close()
		return bridgeerr.New(bridgeerr.IO, "encoding state database", err)
	}
	if err := tmp.Close(); err != nil {
		return bridgeerr.New(bridgeerr.IO, "closing temporary state database file", err)
	}
	if err := os.Rename(tmpPath, db.path); err != nil {
		return bridgeerr.New(bridgeerr.IO, "replacing state database file", err)
	}

	db.state = state
	return nil
}

// Close releases the advisory lock. It does not flush anything — every
// Write already fsync-free-atomically replaced the file on disk.
func (db *DB) Close() error {
	return db.lock.Unlock()
}
