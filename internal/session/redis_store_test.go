package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"taskboard/api/internal/store"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	rs, err := NewRedisStore(context.Background(), "redis://"+s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	t.Cleanup(func() { _ = rs.Close() })
	return rs, s
}

func TestNewRedisStore(t *testing.T) {
	rs, _ := setupTestRedis(t)
	if err := rs.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestNewRedisStoreBadURL(t *testing.T) {
	if _, err := NewRedisStore(context.Background(), "not-a-url"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSaveAndLookupSession(t *testing.T) {
	rs, s := setupTestRedis(t)
	ctx := context.Background()

	if err := rs.SaveSession(ctx, "hash-1", "usr_1", time.Now().Add(24*time.Hour)); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	userID, err := rs.LookupSession(ctx, "hash-1")
	if err != nil {
		t.Fatalf("LookupSession failed: %v", err)
	}
	if userID != "usr_1" {
		t.Errorf("expected usr_1, got %s", userID)
	}
	if ttl := s.TTL("session:hash-1"); ttl <= 0 || ttl > 24*time.Hour {
		t.Errorf("unexpected ttl %v", ttl)
	}
}

func TestLookupExpiredSession(t *testing.T) {
	rs, s := setupTestRedis(t)
	ctx := context.Background()

	if err := rs.SaveSession(ctx, "hash-1", "usr_1", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	s.FastForward(2 * time.Minute)

	_, err := rs.LookupSession(ctx, "hash-1")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveAlreadyExpiredSession(t *testing.T) {
	rs, _ := setupTestRedis(t)
	err := rs.SaveSession(context.Background(), "hash-1", "usr_1", time.Now().Add(-time.Second))
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestRevokeSession(t *testing.T) {
	rs, _ := setupTestRedis(t)
	ctx := context.Background()

	if err := rs.SaveSession(ctx, "hash-1", "usr_1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	if err := rs.SaveSession(ctx, "hash-2", "usr_2", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	if err := rs.RevokeSession(ctx, "hash-1"); err != nil {
		t.Fatalf("RevokeSession failed: %v", err)
	}

	if _, err := rs.LookupSession(ctx, "hash-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected revoked session to be gone, got %v", err)
	}
	if userID, err := rs.LookupSession(ctx, "hash-2"); err != nil || userID != "usr_2" {
		t.Errorf("expected hash-2 to survive, got %q %v", userID, err)
	}

	// revoking twice is not an error
	if err := rs.RevokeSession(ctx, "hash-1"); err != nil {
		t.Errorf("second revoke failed: %v", err)
	}
}

func TestLookupCorruptSession(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	rs := NewRedisStoreWithClient(client)
	t.Cleanup(func() { _ = rs.Close() })

	if err := s.Set("session:bad", "{not json"); err != nil {
		t.Fatal(err)
	}
	if _, err := rs.LookupSession(context.Background(), "bad"); err == nil {
		t.Fatal("expected unmarshal error")
	}
}

func TestContextSource(t *testing.T) {
	ctx := WithIdentity(context.Background(), Identity{UserID: "usr_1", UserName: "Ada"})
	identity, err := ContextSource{}.CurrentUser(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !identity.Authenticated() || identity.UserName != "Ada" {
		t.Errorf("unexpected identity %+v", identity)
	}

	anon, _ := ContextSource{}.CurrentUser(context.Background())
	if anon.Authenticated() {
		t.Error("empty context should be anonymous")
	}
}
