// Package syncer keeps local state reconciled against the backend by polling
// the full snapshot and replacing the collection only when it changed.
package syncer

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/starford/mimir/internal/engine"
	"github.com/starford/mimir/internal/models"
)

// Fetcher is the snapshot source the reconciler polls.
type Fetcher interface {
	FetchNotes(ctx context.Context) (*models.Snapshot, error)
}

// Reconciler polls the backend at a fixed interval and swaps the engine's
// collection when the server is newer. A scheduled tick is skipped while the
// initial load is pending, while a local edit session is active, or while the
// view is hidden; a forced check bypasses all three guards.
type Reconciler struct {
	client   Fetcher
	engine   *engine.Engine
	interval time.Duration
	logger   *slog.Logger

	// onChange runs after every applied replacement, so the current UI
	// filter state can be re-evaluated against the new collection.
	onChange func()

	visible atomic.Bool
	forceCh chan forceReq
}

type forceReq struct {
	ctx  context.Context
	done chan error
}

// New creates a Reconciler. onChange may be nil.
func New(client Fetcher, eng *engine.Engine, interval time.Duration, logger *slog.Logger, onChange func()) *Reconciler {
	r := &Reconciler{
		client:   client,
		engine:   eng,
		interval: interval,
		logger:   logger,
		onChange: onChange,
		forceCh:  make(chan forceReq),
	}
	r.visible.Store(true)
	return r
}

// SetVisible records whether the presentation layer is currently visible.
// Hidden views suspend scheduled polling.
func (r *Reconciler) SetVisible(visible bool) {
	r.visible.Store(visible)
}

// Run performs the initial load and then polls until ctx is cancelled.
// Forced checks arrive through Force and run on the same loop, so a forced
// and a scheduled reconciliation never interleave against the collection.
func (r *Reconciler) Run(ctx context.Context) error {
	if err := r.initialLoad(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("syncer: stopped")
			return nil

		case <-ticker.C:
			if err := r.tick(ctx, false); err != nil {
				// Poll failures are retried on the next tick; local state
				// stays untouched.
				r.logger.Warn("syncer: poll failed", slog.String("error", err.Error()))
			}

		case req := <-r.forceCh:
			req.done <- r.tick(req.ctx, true)
		}
	}
}

// Force runs an immediate reconciliation, bypassing the edit-session and
// visibility guards. Used after every local mutation so the authoritative
// result is absorbed instead of guessed at.
func (r *Reconciler) Force(ctx context.Context) error {
	req := forceReq{ctx: ctx, done: make(chan error, 1)}
	select {
	case r.forceCh <- req:
		return <-req.done
	case <-ctx.Done():
		return ctx.Err()
	}
}

// initialLoad fetches the first snapshot. Its failure is surfaced, unlike a
// poll failure, so the caller can report "cannot connect".
func (r *Reconciler) initialLoad(ctx context.Context) error {
	snap, err := r.client.FetchNotes(ctx)
	if err != nil {
		return err
	}
	if err := r.engine.Replace(snap); err != nil {
		return err
	}
	r.logger.Info("syncer: initial load complete", slog.Int("notes", r.engine.Len()))
	if r.onChange != nil {
		r.onChange()
	}
	return nil
}

func (r *Reconciler) tick(ctx context.Context, force bool) error {
	if !force {
		if !r.engine.Loaded() || r.engine.Editing() || !r.visible.Load() {
			return nil
		}
	}

	snap, err := r.client.FetchNotes(ctx)
	if err != nil {
		return err
	}

	if !r.changed(snap) {
		return nil
	}

	if err := r.engine.Replace(snap); err != nil {
		return err
	}
	r.logger.Debug("syncer: collection replaced", slog.Int("notes", r.engine.Len()))
	if r.onChange != nil {
		r.onChange()
	}
	return nil
}

// changed reports whether the server snapshot differs from local state:
// either the cardinality moved, or some server note is absent locally or
// strictly newer. A cardinality-preserving swap (one deleted, one added) is
// caught by the absent-locally case.
func (r *Reconciler) changed(snap *models.Snapshot) bool {
	if r.engine.Len() != len(snap.Notes) {
		return true
	}

	stamps := r.engine.Stamps()
	for _, rec := range snap.Notes {
		local, ok := stamps[rec.Path]
		if !ok || rec.LastModified > local {
			return true
		}
	}
	return false
}
