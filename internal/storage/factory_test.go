package storage_test

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MiRedo238/Chemsphere-sub000/internal/config"
	"github.com/MiRedo238/Chemsphere-sub000/internal/storage"
	"github.com/MiRedo238/Chemsphere-sub000/pkg/checksum"
)

// memStorage is a minimal in-memory Storage for factory and Archive tests.
type memStorage struct {
	objects map[string][]byte
}

func (m *memStorage) Put(_ context.Context, p string, r io.Reader, ct string) (*storage.Object, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[p] = data
	return &storage.Object{Path: p, Size: int64(len(data)), Checksum: checksum.Sum(data), ContentType: ct}, nil
}

func (m *memStorage) Open(_ context.Context, p string) (io.ReadCloser, error) {
	data, ok := m.objects[p]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStorage) Delete(_ context.Context, p string) error {
	delete(m.objects, p)
	return nil
}

func (m *memStorage) URL(_ context.Context, p string, _ time.Duration) (string, error) {
	return "mem://" + p, nil
}

func (m *memStorage) Exists(_ context.Context, p string) (bool, error) {
	_, ok := m.objects[p]
	return ok, nil
}

func (m *memStorage) List(context.Context, string) ([]storage.Object, error) { return nil, nil }

func TestRegister_AddsFactory(t *testing.T) {
	storage.Register("test-backend", func(_ *config.Config) (storage.Storage, error) {
		return &memStorage{}, nil
	})
	assert.Contains(t, storage.Registered(), "test-backend")

	cfg := &config.Config{}
	cfg.Storage.DefaultBackend = "test-backend"
	s, err := storage.NewStorage(cfg)
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestNewStorage_UnknownBackend(t *testing.T) {
	for _, name := range []string{"", "completely-unknown-backend"} {
		cfg := &config.Config{}
		cfg.Storage.DefaultBackend = name
		_, err := storage.NewStorage(cfg)
		assert.Error(t, err, "backend %q", name)
	}
}

func TestArchivePath(t *testing.T) {
	at := time.Date(2026, 10, 16, 9, 30, 5, 0, time.FixedZone("PHT", 8*3600))
	assert.Equal(t, "exports/chemicals/20261016T013005Z.csv", storage.ArchivePath("chemicals", at))
}

func TestCleanPath(t *testing.T) {
	ok := map[string]string{
		"exports/chemicals/a.csv":    "exports/chemicals/a.csv",
		"exports//equipment/./b.csv": "exports/equipment/b.csv",
		"exports\\usage_logs\\c.csv": "exports/usage_logs/c.csv",
	}
	for in, want := range ok {
		got, err := storage.CleanPath(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	for _, bad := range []string{"", "/etc/passwd", "../secrets", "exports/../../x"} {
		_, err := storage.CleanPath(bad)
		assert.Error(t, err, bad)
	}
}

func TestArchive(t *testing.T) {
	m := &memStorage{}
	at := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	data := []byte("name,quantity\nEthanol,4\n")

	obj, err := storage.Archive(context.Background(), m, "chemicals", at, data)
	require.NoError(t, err)
	assert.Equal(t, "exports/chemicals/20261016T000000Z.csv", obj.Path)
	assert.EqualValues(t, len(data), obj.Size)
	assert.Equal(t, checksum.Sum(data), obj.Checksum)
	assert.Equal(t, storage.CSVContentType, obj.ContentType)
	assert.True(t, strings.HasPrefix(obj.URL, "mem://exports/"))
}
