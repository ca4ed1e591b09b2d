package blob

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sports-intake/internal/config"
	"github.com/sells-group/sports-intake/internal/model"
)

func TestLocal_RoundTrip(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	ref, err := l.Put(ctx, "submissions/abc.jpg", "image/jpeg", []byte("jpeg bytes"))
	require.NoError(t, err)
	assert.Equal(t, "local://submissions/abc.jpg", ref)

	data, err := l.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))

	require.NoError(t, l.Delete(ctx, ref))
	_, err = l.Get(ctx, ref)
	assert.True(t, errors.Is(err, model.ErrNotFound))

	// deleting twice is fine
	assert.NoError(t, l.Delete(ctx, ref))
}

func TestLocal_RejectsForeignRef(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = l.Get(context.Background(), "s3://bucket/key")
	assert.True(t, errors.Is(err, model.ErrInvalidInput))
}

func TestLocal_KeyStaysInsideRoot(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLocal(dir)
	require.NoError(t, err)

	p, err := l.path("../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, dir+"/etc/passwd", p)

	_, err = l.path("")
	assert.Error(t, err)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "submissions/abc.pdf", Key("submissions/", "abc", "Schedule.PDF"))
	assert.Equal(t, "abc", Key("", "abc", ""))
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := New(context.Background(), config.BlobConfig{Driver: "gcs"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")

	st, err := New(context.Background(), config.BlobConfig{Driver: "local", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &Local{}, st)
}
