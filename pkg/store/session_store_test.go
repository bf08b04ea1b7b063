package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"ivisionary/pkg/domain"
)

func testSession() domain.Session {
	return domain.Session{ID: "admin", Email: "admin@example.es", Username: "Admin", Role: domain.RoleAdmin, IsVerified: true}
}

func TestMemorySessionStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore()
	if err := s.SaveSession(ctx, "sid", testSession(), 0); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := s.GetSession(ctx, "sid")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got != testSession() {
		t.Fatalf("session mismatch: %+v", got)
	}
	deleted, err := s.DeleteSession(ctx, "sid")
	if err != nil || !deleted {
		t.Fatalf("delete: deleted=%v err=%v", deleted, err)
	}
	if _, ok, _ := s.GetSession(ctx, "sid"); ok {
		t.Fatalf("expected session to be gone")
	}
	if deleted, _ := s.DeleteSession(ctx, "sid"); deleted {
		t.Fatalf("second delete should report nothing removed")
	}
}

func TestMemorySessionStoreExpiresWithTTL(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	_ = s.SaveSession(ctx, "sid", testSession(), time.Minute)
	now = now.Add(2 * time.Minute)
	if _, ok, _ := s.GetSession(ctx, "sid"); ok {
		t.Fatalf("expected expired session")
	}
}

func TestRedisSessionStoreSurvivesNewClient(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	first := NewRedisSessionStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:session")
	if err := first.SaveSession(ctx, "sid", testSession(), 0); err != nil {
		t.Fatalf("save: %v", err)
	}
	if ttl := mr.TTL("test:session:sid"); ttl != 0 {
		t.Fatalf("expected no expiry, got %v", ttl)
	}

	second := NewRedisSessionStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:session")
	got, ok, err := second.GetSession(ctx, "sid")
	if err != nil || !ok {
		t.Fatalf("get from fresh client: ok=%v err=%v", ok, err)
	}
	if got.Role != domain.RoleAdmin || got.Email != "admin@example.es" {
		t.Fatalf("unexpected session: %+v", got)
	}

	deleted, err := second.DeleteSession(ctx, "sid")
	if err != nil || !deleted {
		t.Fatalf("delete: deleted=%v err=%v", deleted, err)
	}
	if mr.Exists("test:session:sid") {
		t.Fatalf("expected key removed")
	}
}

func TestRedisSessionStoreAppliesTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	s := NewRedisSessionStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "")
	if err := s.SaveSession(ctx, "sid", testSession(), time.Hour); err != nil {
		t.Fatalf("save: %v", err)
	}
	mr.FastForward(2 * time.Hour)
	if _, ok, err := s.GetSession(ctx, "sid"); err != nil || ok {
		t.Fatalf("expected expired session, ok=%v err=%v", ok, err)
	}
}
