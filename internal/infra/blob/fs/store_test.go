package fs

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"vivariumcore/internal/blob/blobtest"
	"vivariumcore/internal/blob/core"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestFilesystemStoreContract(t *testing.T) {
	blobtest.RunStoreContract(t, func(t *testing.T) core.Store { return newStore(t) })
}

func TestPutWritesDataAndSidecar(t *testing.T) {
	s := newStore(t)
	info, err := s.Put(context.Background(), "exports/snap.json", strings.NewReader("{}"), core.PutOptions{ContentType: "application/json"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	// sha256("{}")
	if info.ETag != "44136fa355b3678a1146ad16f7e8649e94fb4fc21fe77e8310c060f61caaff8a" {
		t.Fatalf("etag = %s", info.ETag)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "exports", "snap.json.meta")); err != nil {
		t.Fatalf("sidecar missing: %v", err)
	}
	if !strings.HasPrefix(info.URL, "file://") {
		t.Fatalf("url = %s", info.URL)
	}
	leftovers, _ := filepath.Glob(filepath.Join(s.Root(), "exports", ".tmp-*"))
	if len(leftovers) != 0 {
		t.Fatalf("temp files left behind: %v", leftovers)
	}
}

func TestConcurrentPutsOfSameKeyHaveOneWinner(t *testing.T) {
	s := newStore(t)
	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Put(context.Background(), "race", bytes.NewReader([]byte("x")), core.PutOptions{})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	wins := 0
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case !errors.Is(err, core.ErrExists):
			t.Fatalf("unexpected error %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func TestRejectsUnsafeKeys(t *testing.T) {
	s := newStore(t)
	for _, key := range []string{"../escape", "/abs", "x.meta"} {
		if _, err := s.Put(context.Background(), key, strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrInvalidKey) {
			t.Errorf("Put(%q) expected ErrInvalidKey, got %v", key, err)
		}
	}
}

func TestPresignReturnsFileURL(t *testing.T) {
	s := newStore(t)
	u, err := s.PresignURL(context.Background(), "a/b", core.SignedURLOptions{})
	if err != nil || !strings.HasSuffix(u, "/a/b") {
		t.Fatalf("presign = %q, %v", u, err)
	}
}

func TestCorruptSidecarSurfaces(t *testing.T) {
	s := newStore(t)
	if _, err := s.Put(context.Background(), "k", strings.NewReader("x"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := os.WriteFile(filepath.Join(s.Root(), "k.meta"), []byte("{"), 0o644); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	if _, err := s.Head(context.Background(), "k"); err == nil || errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected decode error, got %v", err)
	}
	if _, err := s.List(context.Background(), ""); err == nil {
		t.Fatalf("expected list error")
	}
}

func TestNewDefaultsRoot(t *testing.T) {
	t.Chdir(t.TempDir())
	s, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if filepath.Base(s.Root()) != "blobdata" {
		t.Fatalf("root = %s", s.Root())
	}
}
