package presence

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
)

// newTestStore creates a Store connected to a local Redis instance and removes
// test presence keys before returning. Tests that call this helper require a
// running Redis on localhost:6379.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	cleanup := func() {
		iter := client.Scan(ctx, 0, keyPrefix+"test_*", 100).Iterator()
		for iter.Next(ctx) {
			client.Del(ctx, iter.Val())
		}
		client.Del(ctx, onlineKey)
	}
	cleanup()
	t.Cleanup(func() {
		cleanup()
		client.Close()
	})

	return &Store{client: client, serverName: "test-server"}
}

func TestConnectAndOnline(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Connect(ctx, "test_s1", "ada"); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if err := store.Connect(ctx, "test_s2", ""); err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	online, err := store.Online(ctx)
	if err != nil {
		t.Fatalf("online failed: %v", err)
	}
	if online != 2 {
		t.Errorf("expected 2 online, got %d", online)
	}
}

func TestDisconnectRemovesSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Connect(ctx, "test_s1", "ada"); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if err := store.Disconnect(ctx, "test_s1"); err != nil {
		t.Fatalf("disconnect failed: %v", err)
	}

	online, err := store.Online(ctx)
	if err != nil {
		t.Fatalf("online failed: %v", err)
	}
	if online != 0 {
		t.Errorf("expected 0 online, got %d", online)
	}

	exists, err := store.client.Exists(ctx, keyPrefix+"test_s1").Result()
	if err != nil {
		t.Fatalf("exists failed: %v", err)
	}
	if exists != 0 {
		t.Errorf("session hash not removed")
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Disconnect(ctx, "test_never_connected"); err != nil {
		t.Fatalf("disconnect of unknown session failed: %v", err)
	}
}
