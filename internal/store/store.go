// Package store persists the active signal set and the closed, labeled history.
//
// The active set and the closed log are two distinct durable stores. Every
// write goes through a temp-file-then-rename so a concurrent reader can never
// observe a partial file.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"swingscan-go/internal/signal"
)

var (
	// ErrDuplicateActiveSignal rejects a second open signal for an instrument.
	ErrDuplicateActiveSignal = errors.New("instrument already has an active signal")
	// ErrCorruptStore is fatal for the affected store; the cycle must abort
	// rather than write partial state over it.
	ErrCorruptStore = errors.New("signal store corrupt")
)

// Repository is the durable home of active signals, the closed log, and the
// per-cycle scan snapshot.
type Repository struct {
	mu           sync.Mutex
	activePath   string
	logPath      string
	snapshotPath string
}

// New builds a repository over the three store paths. Parent directories are
// created lazily on first write.
func New(activePath, logPath, snapshotPath string) *Repository {
	return &Repository{
		activePath:   activePath,
		logPath:      logPath,
		snapshotPath: snapshotPath,
	}
}

// ListActive returns the current open signals. A missing file is an empty set.
func (r *Repository) ListActive() ([]signal.Signal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadActive()
}

// AddActive appends a new open signal, failing with ErrDuplicateActiveSignal
// when the instrument already has one.
func (r *Repository) AddActive(sig signal.Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	active, err := r.loadActive()
	if err != nil {
		return err
	}
	for _, existing := range active {
		if existing.Symbol == sig.Symbol {
			return fmt.Errorf("%w: %s", ErrDuplicateActiveSignal, sig.Symbol)
		}
	}
	return r.writeActive(append(active, sig))
}

// ReplaceActive atomically swaps the whole active set, used after a tracking pass.
func (r *Repository) ReplaceActive(sigs []signal.Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writeActive(sigs)
}

func (r *Repository) loadActive() ([]signal.Signal, error) {
	data, err := os.ReadFile(r.activePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read active store: %w", err)
	}
	var active []signal.Signal
	if err := json.Unmarshal(data, &active); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptStore, r.activePath, err)
	}
	return active, nil
}

func (r *Repository) writeActive(sigs []signal.Signal) error {
	if sigs == nil {
		sigs = []signal.Signal{}
	}
	data, err := json.MarshalIndent(sigs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal active store: %w", err)
	}
	return writeFileAtomic(r.activePath, data)
}

// writeFileAtomic writes to a temp file in the destination directory and
// renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp store file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace store file: %w", err)
	}
	return nil
}
