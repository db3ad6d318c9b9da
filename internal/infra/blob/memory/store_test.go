package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"lineagecore/internal/infra/blob/core"
)

func TestPutGetDelete(t *testing.T) {
	ctx := context.Background()
	store := New()

	if _, err := store.Put(ctx, "a/b", bytes.NewReader([]byte("payload")), core.PutOptions{ContentType: "text/plain"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Put(ctx, "a/b", bytes.NewReader([]byte("other")), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected exists error, got %v", err)
	}

	info, rc, err := store.Get(ctx, "a/b")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "payload" || info.ContentType != "text/plain" || info.Size != 7 {
		t.Fatalf("unexpected blob %q %+v", data, info)
	}

	existed, err := store.Delete(ctx, "a/b")
	if err != nil || !existed {
		t.Fatalf("delete: existed=%v err=%v", existed, err)
	}
	if _, _, err := store.Get(ctx, "a/b"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestListByPrefix(t *testing.T) {
	ctx := context.Background()
	store := New()
	for _, key := range []string{"x/1", "x/2", "y/1"} {
		if _, err := store.Put(ctx, key, bytes.NewReader(nil), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	infos, err := store.List(ctx, "x/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "x/1" || infos[1].Key != "x/2" {
		t.Fatalf("unexpected listing %+v", infos)
	}
}
