package cache

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/objcache/objcache/internal/metadata"
	"github.com/objcache/objcache/internal/remote"
)

// memoryBackend serves objects from a map and counts Open calls.
type memoryBackend struct {
	mu      sync.Mutex
	objects map[string]string
	opens   atomic.Int32
	fail    error
	// gate, when set, is called before the object is served.
	gate func()
}

func newMemoryBackend(objects map[string]string) *memoryBackend {
	return &memoryBackend{objects: objects}
}

func (b *memoryBackend) Open(ctx context.Context, container, key string) (io.ReadCloser, error) {
	b.opens.Add(1)
	if b.gate != nil {
		b.gate()
	}
	if b.fail != nil {
		return nil, b.fail
	}
	b.mu.Lock()
	body, ok := b.objects[container+"/"+key]
	b.mu.Unlock()
	if !ok {
		return nil, remote.ErrObjectNotFound
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestFetcher(t *testing.T, backends map[string]remote.Backend) *Fetcher {
	t.Helper()
	reg := remote.NewRegistry()
	for scheme, backend := range backends {
		reg.MustRegister(scheme, backend)
	}
	fetcher, err := NewFetcher(FetcherOptions{
		StagingDir: filepath.Join(t.TempDir(), "staging"),
		Registry:   reg,
		Logger:     quietLogger(),
	})
	if err != nil {
		t.Fatalf("fetcher init error: %v", err)
	}
	return fetcher
}

func newTestMetadataStore(t *testing.T) *metadata.Store {
	t.Helper()
	store, err := metadata.Open(filepath.Join(t.TempDir(), "db.sqlite3"), metadata.Options{})
	if err != nil {
		t.Fatalf("metadata open error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func stagingFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("read staging dir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}
