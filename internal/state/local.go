package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// LocalBackend stores the document as a JSON file next to a lock file.
// Writes go through a temp file and rename so a concurrent reader never sees
// a torn document, and a document with no resources removes the file.
type LocalBackend struct {
	path string
	lock *flock.Flock
}

// NewLocalBackend returns a backend for a state file path. The lock file is
// the path with a ".lock" suffix.
func NewLocalBackend(path string) *LocalBackend {
	return &LocalBackend{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

func (b *LocalBackend) Lock(ctx context.Context, timeout time.Duration) error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	locked, err := b.lock.TryLockContext(lockCtx, 250*time.Millisecond)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w (lock file: %s)", ErrLockTimeout, b.lock.Path())
		}
		return fmt.Errorf("acquiring state lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("%w (lock file: %s)", ErrLockTimeout, b.lock.Path())
	}
	return nil
}

func (b *LocalBackend) Unlock(context.Context) error {
	if err := b.lock.Unlock(); err != nil {
		return fmt.Errorf("releasing state lock: %w", err)
	}
	return nil
}

func (b *LocalBackend) Load(context.Context) (*Document, error) {
	raw, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewDocument(""), nil
		}
		return nil, fmt.Errorf("reading state file %s: %w", b.path, err)
	}

	if IsEncrypted(raw) {
		raw, err = Decrypt(raw)
		if err != nil {
			return nil, err
		}
	}
	return unmarshalDocument(raw)
}

func (b *LocalBackend) Store(_ context.Context, doc *Document) error {
	if len(doc.Resources) == 0 {
		if err := os.Remove(b.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing empty state file %s: %w", b.path, err)
		}
		return nil
	}

	data, err := marshalDocument(doc)
	if err != nil {
		return err
	}
	data, err = Encrypt(data)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(b.path), filepath.Base(b.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp state file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("setting state file permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), b.path); err != nil {
		return fmt.Errorf("replacing state file %s: %w", b.path, err)
	}
	return nil
}
