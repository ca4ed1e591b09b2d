package blob

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sports-intake/internal/model"
)

const localScheme = "local://"

// Local keeps artifacts under a directory.
type Local struct {
	dir string
}

// NewLocal creates the directory if needed.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "blob: create dir %s", dir)
	}
	return &Local{dir: dir}, nil
}

func (l *Local) Put(_ context.Context, key, _ string, data []byte) (string, error) {
	p, err := l.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", eris.Wrapf(err, "blob: create dir for %s", key)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", eris.Wrapf(err, "blob: write %s", key)
	}
	return localScheme + key, nil
}

func (l *Local) Get(_ context.Context, ref string) ([]byte, error) {
	p, err := l.refPath(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrapf(model.ErrNotFound, "blob %s", ref)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "blob: read %s", ref)
	}
	return data, nil
}

func (l *Local) Delete(_ context.Context, ref string) error {
	p, err := l.refPath(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return eris.Wrapf(err, "blob: delete %s", ref)
	}
	return nil
}

func (l *Local) refPath(ref string) (string, error) {
	key, ok := strings.CutPrefix(ref, localScheme)
	if !ok {
		return "", eris.Wrapf(model.ErrInvalidInput, "blob: not a local ref %q", ref)
	}
	return l.path(key)
}

// path resolves key inside the root and rejects traversal.
func (l *Local) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" {
		return "", eris.Wrap(model.ErrInvalidInput, "blob: empty key")
	}
	return filepath.Join(l.dir, clean), nil
}
