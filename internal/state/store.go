package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shellform-io/shellform/internal/logging"
)

// ErrLockTimeout reports that the exclusive state lock could not be acquired
// within the caller's timeout.
var ErrLockTimeout = errors.New("timed out waiting for the state lock")

// ErrWorkspaceMismatch reports that the persisted document belongs to a
// different workspace than the one requested for this run.
var ErrWorkspaceMismatch = errors.New("workspace mismatch")

// Backend is one storage and locking implementation behind the Store.
type Backend interface {
	// Lock acquires the exclusive cross-process lock, waiting up to timeout.
	Lock(ctx context.Context, timeout time.Duration) error

	// Unlock releases the lock.
	Unlock(ctx context.Context) error

	// Load reads the persisted document, or an empty one if none exists.
	Load(ctx context.Context) (*Document, error)

	// Store atomically replaces the persisted document wholesale. A reader
	// never observes a torn document.
	Store(ctx context.Context, doc *Document) error
}

// Store opens lock-scoped sessions against a backend.
type Store struct {
	backend Backend
}

// NewStore returns a store over a backend.
func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// Open acquires the lock within timeout, loads the document and checks the
// workspace guard: an empty document adopts the requested workspace, a
// non-matching one is fatal. The session holds the lock until Close.
func (s *Store) Open(ctx context.Context, workspace string, timeout time.Duration) (*Session, error) {
	if err := s.backend.Lock(ctx, timeout); err != nil {
		return nil, err
	}

	doc, err := s.backend.Load(ctx)
	if err != nil {
		if uerr := s.backend.Unlock(ctx); uerr != nil {
			logging.Warn("failed to release state lock after load error", "error", uerr)
		}
		return nil, err
	}

	if doc.Workspace == "" {
		doc.Workspace = workspace
	} else if doc.Workspace != workspace {
		if uerr := s.backend.Unlock(ctx); uerr != nil {
			logging.Warn("failed to release state lock after workspace mismatch", "error", uerr)
		}
		return nil, fmt.Errorf("%w: state belongs to workspace '%s' but '%s' was requested", ErrWorkspaceMismatch, doc.Workspace, workspace)
	}

	return &Session{backend: s.backend, Doc: doc}, nil
}

// Session wraps the loaded document while the exclusive lock is held.
type Session struct {
	backend Backend
	closed  bool

	// Doc is the in-memory document. Mutations become durable on Write.
	Doc *Document
}

// Write persists the current document wholesale. Safe to call many times;
// every successful write is durable on its own, which the engine relies on
// for crash-safe checkpoints before risky operations.
func (s *Session) Write(ctx context.Context) error {
	if s.closed {
		return errors.New("state session is closed")
	}
	return s.backend.Store(ctx, s.Doc)
}

// Close releases the lock. Safe to call when Write was never invoked, and
// safe to call twice.
func (s *Session) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.backend.Unlock(ctx)
}
