// Package blobtest holds the behavioural contract shared by every blob backend.
package blobtest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"

	"vivariumcore/internal/blob/core"
)

// RunStoreContract exercises create-only puts, reads, listing and deletion.
func RunStoreContract(t *testing.T, open func(t *testing.T) core.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("PutGetHead", func(t *testing.T) {
		store := open(t)
		opts := core.PutOptions{ContentType: "application/json", Metadata: map[string]string{"facilities": "2"}}
		info, err := store.Put(ctx, "exports/a.json", bytes.NewReader([]byte(`{"a":1}`)), opts)
		if err != nil {
			t.Fatalf("put: %v", err)
		}
		if info.Key != "exports/a.json" || info.Size != 7 {
			t.Fatalf("unexpected put info %+v", info)
		}
		got, rc, err := store.Get(ctx, "exports/a.json")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		body, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil || string(body) != `{"a":1}` {
			t.Fatalf("body = %q, %v", body, err)
		}
		if got.ContentType != "application/json" {
			t.Fatalf("content type = %q", got.ContentType)
		}
		if diff := cmp.Diff(opts.Metadata, got.Metadata); diff != "" {
			t.Fatalf("metadata mismatch (-want +got):\n%s", diff)
		}
		head, err := store.Head(ctx, "exports/a.json")
		if err != nil || head.Size != 7 {
			t.Fatalf("head = %+v, %v", head, err)
		}
	})

	t.Run("PutIsCreateOnly", func(t *testing.T) {
		store := open(t)
		if _, err := store.Put(ctx, "k", bytes.NewReader([]byte("v1")), core.PutOptions{}); err != nil {
			t.Fatalf("put: %v", err)
		}
		if _, err := store.Put(ctx, "k", bytes.NewReader([]byte("v2")), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
			t.Fatalf("expected ErrExists, got %v", err)
		}
	})

	t.Run("MissingObjects", func(t *testing.T) {
		store := open(t)
		if _, _, err := store.Get(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("get: expected ErrNotFound, got %v", err)
		}
		if _, err := store.Head(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("head: expected ErrNotFound, got %v", err)
		}
		if ok, err := store.Delete(ctx, "missing"); err != nil || ok {
			t.Fatalf("delete missing = %v, %v", ok, err)
		}
	})

	t.Run("ListByPrefixOrdered", func(t *testing.T) {
		store := open(t)
		for _, key := range []string{"exports/b.json", "other/x", "exports/a.json"} {
			if _, err := store.Put(ctx, key, bytes.NewReader([]byte(key)), core.PutOptions{}); err != nil {
				t.Fatalf("put %s: %v", key, err)
			}
		}
		list, err := store.List(ctx, "exports/")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		var keys []string
		for _, info := range list {
			keys = append(keys, info.Key)
		}
		if diff := cmp.Diff([]string{"exports/a.json", "exports/b.json"}, keys); diff != "" {
			t.Fatalf("keys mismatch (-want +got):\n%s", diff)
		}
		all, err := store.List(ctx, "")
		if err != nil || len(all) != 3 {
			t.Fatalf("list all = %d, %v", len(all), err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		store := open(t)
		if _, err := store.Put(ctx, "gone", bytes.NewReader([]byte("x")), core.PutOptions{}); err != nil {
			t.Fatalf("put: %v", err)
		}
		if ok, err := store.Delete(ctx, "gone"); err != nil || !ok {
			t.Fatalf("delete = %v, %v", ok, err)
		}
		if _, err := store.Head(ctx, "gone"); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("expected deleted object missing, got %v", err)
		}
	})

	t.Run("PresignRejectsWrites", func(t *testing.T) {
		store := open(t)
		if _, err := store.PresignURL(ctx, "k", core.SignedURLOptions{Method: "PUT"}); !errors.Is(err, core.ErrUnsupported) {
			t.Fatalf("expected ErrUnsupported, got %v", err)
		}
	})
}
