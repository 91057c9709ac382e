package cache

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis connects to a local Redis on DB 15 and skips when none is running.
// The integration build tag covers the same paths against a container.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestNewManager(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	manager := NewManager(client, Config{})
	if manager.redis != client {
		t.Error("Manager redis client not set correctly")
	}
	if manager.Config().DefaultTTL != 30*time.Second {
		t.Errorf("DefaultTTL = %v, want 30s", manager.Config().DefaultTTL)
	}
}

func TestNewManager_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewManager should panic with nil redis client")
		}
	}()
	NewManager(nil, DefaultConfig())
}

func TestManager_SetAndGet(t *testing.T) {
	manager := NewManager(setupTestRedis(t), DefaultConfig())
	ctx := context.Background()
	key := Key{Endpoint: "/vehicles"}

	entry := &Entry{
		Body:       []byte(`{"vehicles":[]}`),
		ETag:       `"abc123"`,
		Expires:    time.Now().Add(5 * time.Minute),
		StatusCode: 200,
		Header:     http.Header{"Content-Type": {"application/json"}},
		StoredAt:   time.Now(),
	}

	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got.Body) != string(entry.Body) {
		t.Errorf("Body = %s, want %s", got.Body, entry.Body)
	}
	if got.ETag != entry.ETag {
		t.Errorf("ETag = %s, want %s", got.ETag, entry.ETag)
	}
	if got.Header.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %s, want application/json", got.Header.Get("Content-Type"))
	}
}

func TestManager_Get_CacheMiss(t *testing.T) {
	manager := NewManager(setupTestRedis(t), DefaultConfig())

	_, err := manager.Get(context.Background(), Key{Endpoint: "/nonexistent"})
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get() error = %v, want ErrCacheMiss", err)
	}
}

func TestManager_Get_InvalidEntry(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client, DefaultConfig())
	ctx := context.Background()
	key := Key{Endpoint: "/images"}

	if err := client.Set(ctx, key.String(), "not json", time.Minute).Err(); err != nil {
		t.Fatalf("raw Set failed: %v", err)
	}

	_, err := manager.Get(ctx, key)
	if !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("Get() error = %v, want ErrInvalidEntry", err)
	}
}

func TestManager_ExpiredEntries(t *testing.T) {
	manager := NewManager(setupTestRedis(t), DefaultConfig())
	ctx := context.Background()

	plain := Key{Endpoint: "/plain"}
	if err := manager.Set(ctx, plain, &Entry{Body: []byte("x"), Expires: time.Now().Add(-time.Hour)}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := manager.Get(ctx, plain); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expired entry without validators: error = %v, want ErrCacheMiss", err)
	}

	tagged := Key{Endpoint: "/tagged"}
	if err := manager.Set(ctx, tagged, &Entry{Body: []byte("x"), ETag: `"v1"`, Expires: time.Now().Add(-time.Second)}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := manager.Get(ctx, tagged)
	if err != nil {
		t.Fatalf("expired entry with ETag: Get failed: %v", err)
	}
	if !got.IsExpired() {
		t.Error("entry should be reported as expired so the caller revalidates")
	}
}

func TestManager_Delete(t *testing.T) {
	manager := NewManager(setupTestRedis(t), DefaultConfig())
	ctx := context.Background()
	key := Key{Endpoint: "/vehicles"}

	if err := manager.Set(ctx, key, &Entry{Body: []byte("x"), Expires: time.Now().Add(time.Minute)}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := manager.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get after Delete: error = %v, want ErrCacheMiss", err)
	}
}

func TestManager_Extend(t *testing.T) {
	manager := NewManager(setupTestRedis(t), Config{DefaultTTL: time.Minute, MaxTTL: 20 * time.Minute})
	ctx := context.Background()
	key := Key{Endpoint: "/vehicles"}

	if err := manager.Set(ctx, key, &Entry{Body: []byte("x"), ETag: `"v1"`, Expires: time.Now().Add(time.Minute)}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	newExpires := time.Now().Add(10 * time.Minute)
	if err := manager.Extend(ctx, key, newExpires); err != nil {
		t.Fatalf("Extend failed: %v", err)
	}

	got, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get after Extend failed: %v", err)
	}
	if diff := got.Expires.Sub(newExpires); diff < -time.Second || diff > time.Second {
		t.Errorf("Expires = %v, want %v", got.Expires, newExpires)
	}

	if err := manager.Extend(ctx, key, time.Now().Add(24*time.Hour)); err != nil {
		t.Fatalf("Extend failed: %v", err)
	}
	got, _ = manager.Get(ctx, key)
	if got.TTL() > 20*time.Minute {
		t.Errorf("TTL = %v, want capped at 20m", got.TTL())
	}
}

func TestManager_Set_NilEntry(t *testing.T) {
	manager := NewManager(setupTestRedis(t), DefaultConfig())

	if err := manager.Set(context.Background(), Key{Endpoint: "/x"}, nil); err == nil {
		t.Error("Set with nil entry should return error")
	}
}
