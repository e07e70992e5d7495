// Package file implements storage.KV as one file per key inside a directory.
package file

import (
	"context"
	"os"
	"path/filepath"
	"regexp"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-funnel/internal/storage"
)

var _ storage.KV = (*KV)(nil)

var validKey = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// KV stores each key as <dir>/<key>.json.
type KV struct {
	dir string
}

// New creates the directory if needed and returns a KV rooted at it.
func New(dir string) (*KV, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrapf(err, "create storage dir %s", dir)
	}
	return &KV{dir: dir}, nil
}

func (s *KV) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", errors.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.dir, key+".json"), nil
}

// Get reads the snapshot stored under key.
func (s *KV) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, errors.Wrapf(err, "read %s", key)
	}
	return data, nil
}

// Put replaces the snapshot under key. The value is written to a temporary
// file in the same directory and renamed over the target, so readers observe
// either the old or the new snapshot, never a torn one.
func (s *KV) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return errors.Wrapf(err, "create temp file for %s", key)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "write %s", key)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "sync %s", key)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", key)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return errors.Wrapf(err, "rename %s", key)
	}
	return nil
}

// Delete removes the snapshot under key. Deleting an absent key is not an error.
func (s *KV) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(err, "delete %s", key)
	}
	return nil
}
