// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package client

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/aplane-algo/apecho/internal/util"
)

// DefaultDebounce is how long the ledger must be quiet before a change is
// reported.
const DefaultDebounce = 250 * time.Millisecond

// LedgerWatcher reports changes to a ledger file. The parent directory is
// watched rather than the file itself, because the ledger is replaced by
// rename on every save.
type LedgerWatcher struct {
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
}

// NewLedgerWatcher starts watching path. Events that happen after it
// returns are reported by Run. The directory must exist.
func NewLedgerWatcher(path string, debounce time.Duration) (*LedgerWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch ledger directory: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &LedgerWatcher{path: abs, debounce: debounce, watcher: w}, nil
}

// Run calls onChange once per burst of changes to the ledger file, until
// ctx is cancelled. onChange runs on Run's goroutine. The watcher is closed
// when Run returns.
func (lw *LedgerWatcher) Run(ctx context.Context, onChange func()) error {
	defer func() { _ = lw.watcher.Close() }()

	// Debounce timer to coalesce the write + rename of a save
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-lw.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != lw.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				timer.Reset(lw.debounce)
			}

		case <-timer.C:
			util.Debug("ledger changed", "path", lw.path)
			onChange()

		case err, ok := <-lw.watcher.Errors:
			if !ok {
				return nil
			}
			util.Logger.Warn("ledger watcher error", "error", err)
		}
	}
}

// Watch is NewLedgerWatcher followed by Run.
func Watch(ctx context.Context, path string, onChange func()) error {
	lw, err := NewLedgerWatcher(path, DefaultDebounce)
	if err != nil {
		return err
	}
	return lw.Run(ctx, onChange)
}
