package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

func exerciseAckStore(t *testing.T, store AckStore, sessionID string) {
	t.Helper()
	ctx := context.Background()

	members, err := store.Members(ctx, sessionID)
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(members) != 0 {
		t.Fatalf("expected empty set, got %v", members)
	}

	if err := store.Add(ctx, sessionID, "sale-1", "sale-2"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.Add(ctx, sessionID, "sale-2"); err != nil {
		t.Fatalf("add again: %v", err)
	}
	if err := store.Add(ctx, sessionID); err != nil {
		t.Fatalf("empty add: %v", err)
	}
	members, err = store.Members(ctx, sessionID)
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %v", members)
	}

	other, err := store.Members(ctx, sessionID+"-other")
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("sets must be per session, got %v", other)
	}

	if err := store.Clear(ctx, sessionID); err != nil {
		t.Fatalf("clear: %v", err)
	}
	members, err = store.Members(ctx, sessionID)
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(members) != 0 {
		t.Fatalf("expected empty set after clear, got %v", members)
	}
}

func TestMemoryAckStore(t *testing.T) {
	exerciseAckStore(t, NewMemoryAckStore(), "sess-1")
}

func TestMemoryAckStoreReturnsCopy(t *testing.T) {
	store := NewMemoryAckStore()
	ctx := context.Background()
	_ = store.Add(ctx, "sess-1", "sale-1")

	members, _ := store.Members(ctx, "sess-1")
	members["sale-9"] = struct{}{}

	again, _ := store.Members(ctx, "sess-1")
	if _, leaked := again["sale-9"]; leaked {
		t.Fatalf("caller mutation leaked into the store")
	}
}

func TestRedisAckStoreIntegration(t *testing.T) {
	addr := os.Getenv("STOCKMASTER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("STOCKMASTER_TEST_REDIS_ADDR is not set")
	}

	store := NewRedisAckStore(addr, os.Getenv("STOCKMASTER_TEST_REDIS_PASSWORD"), 0)
	t.Cleanup(func() { _ = store.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		t.Fatalf("ping redis: %v", err)
	}

	sessionID := "it-" + time.Now().UTC().Format("20060102150405.000000000")
	t.Cleanup(func() { _ = store.Clear(context.Background(), sessionID) })
	exerciseAckStore(t, store, sessionID)
}
