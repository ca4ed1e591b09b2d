// Package blob stores uploaded artifacts on local disk or in S3.
package blob

import (
	"context"
	"path"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sports-intake/internal/config"
)

// Store persists raw upload bytes and hands back an opaque reference.
type Store interface {
	Put(ctx context.Context, key, mediaType string, data []byte) (string, error)
	// Get returns an error wrapping model.ErrNotFound when ref does not exist.
	Get(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
}

// New builds the store selected by cfg.Driver.
func New(ctx context.Context, cfg config.BlobConfig) (Store, error) {
	switch cfg.Driver {
	case "local", "":
		return NewLocal(cfg.Dir)
	case "s3":
		return NewS3(ctx, cfg)
	default:
		return nil, eris.Errorf("blob: unknown driver %q", cfg.Driver)
	}
}

// Key derives an object key for a submission upload, keeping the file extension.
func Key(prefix, submissionID, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return prefix + submissionID + ext
}
