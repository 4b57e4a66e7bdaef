package memory

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestPutGetDelete(t *testing.T) {
	kv, err := New(128)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer kv.Close()
	ctx := context.Background()

	if err := kv.Put(ctx, "k1", []byte("v1"), 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	item, err := kv.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if item == nil || string(item.Data) != "v1" {
		t.Fatalf("expected v1, got %v", item)
	}
	if item.ExpiresAt != nil {
		t.Fatal("zero ttl must mean no expiration")
	}

	if err := kv.Delete(ctx, "k1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	item, err = kv.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get after delete failed: %v", err)
	}
	if item != nil {
		t.Fatal("expected nil after delete")
	}

	// Deleting an absent key is not an error.
	if err := kv.Delete(ctx, "never-existed"); err != nil {
		t.Fatalf("Delete of absent key failed: %v", err)
	}
}

func TestGetMissingKey(t *testing.T) {
	kv, err := New(128)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer kv.Close()

	item, err := kv.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if item != nil {
		t.Fatal("missing key must yield (nil, nil)")
	}
}

func TestExpiry(t *testing.T) {
	kv, err := New(128)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer kv.Close()
	ctx := context.Background()

	if err := kv.Put(ctx, "short", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	item, err := kv.Get(ctx, "short")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if item != nil {
		t.Fatal("expired item must be dropped on read")
	}
}

func TestPutCopiesData(t *testing.T) {
	kv, err := New(128)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer kv.Close()
	ctx := context.Background()

	data := []byte("original")
	if err := kv.Put(ctx, "k", data, 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	data[0] = 'X'

	item, err := kv.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(item.Data) != "original" {
		t.Fatalf("stored data aliased the caller's buffer: %q", item.Data)
	}
}

func TestListPrefixAndPagination(t *testing.T) {
	kv, err := New(1024)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer kv.Close()
	ctx := context.Background()

	for i := 0; i < 150; i++ {
		key := fmt.Sprintf("session:%03d", i)
		if err := kv.Put(ctx, key, []byte("x"), 0); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	if err := kv.Put(ctx, "other:1", []byte("x"), 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	var keys []string
	cursor := ""
	pages := 0
	for {
		page, err := kv.List(ctx, "session:", cursor)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		keys = append(keys, page.Keys...)
		pages++
		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}

	if len(keys) != 150 {
		t.Fatalf("expected 150 keys, got %d", len(keys))
	}
	if pages < 2 {
		t.Fatalf("expected pagination across multiple pages, got %d", pages)
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] >= keys[i] {
			t.Fatalf("keys out of order: %q >= %q", keys[i-1], keys[i])
		}
	}
	for _, key := range keys {
		if key == "other:1" {
			t.Fatal("prefix filter leaked an unrelated key")
		}
	}
}
