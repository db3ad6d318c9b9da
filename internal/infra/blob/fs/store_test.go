package fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"lineagecore/internal/infra/blob/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	info, err := store.Put(ctx, "query-results/abc.json", bytes.NewReader([]byte(`{"rows":[]}`)), core.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"job": "abc"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 11 || info.ContentType != "application/json" || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}

	got, rc, err := store.Get(ctx, "query-results/abc.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != `{"rows":[]}` {
		t.Fatalf("unexpected payload %q", data)
	}
	if got.Metadata["job"] != "abc" {
		t.Fatalf("unexpected metadata %+v", got.Metadata)
	}
}

func TestPutRejectsOverwrite(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	if _, err := store.Put(ctx, "k", bytes.NewReader([]byte("a")), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Put(ctx, "k", bytes.NewReader([]byte("b")), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected exists error, got %v", err)
	}
}

func TestGetMissing(t *testing.T) {
	store := newTestStore(t)
	if _, _, err := store.Get(context.Background(), "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.Head(context.Background(), "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestResolveRejectsTraversal(t *testing.T) {
	store := newTestStore(t)
	for _, key := range []string{"", "/abs", "../escape", "a/../../b"} {
		if _, err := store.Head(context.Background(), key); err == nil {
			t.Fatalf("expected rejection for key %q", key)
		}
	}
}

func TestDeleteAndList(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	for _, key := range []string{"query-results/a.json", "query-results/b.json", "other/c.json"} {
		if _, err := store.Put(ctx, key, bytes.NewReader([]byte("x")), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}

	infos, err := store.List(ctx, "query-results/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "query-results/a.json" {
		t.Fatalf("unexpected listing %+v", infos)
	}

	existed, err := store.Delete(ctx, "query-results/a.json")
	if err != nil || !existed {
		t.Fatalf("delete: existed=%v err=%v", existed, err)
	}
	existed, err = store.Delete(ctx, "query-results/a.json")
	if err != nil || existed {
		t.Fatalf("second delete: existed=%v err=%v", existed, err)
	}
}

func TestPresignURL(t *testing.T) {
	store := newTestStore(t)
	url, err := store.PresignURL(context.Background(), "query-results/a.json", core.SignedURLOptions{})
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if url != "http://local.blob/query-results/a.json" {
		t.Fatalf("unexpected url %q", url)
	}
}
