package store

import (
	"context"
	"testing"
	"time"

	"ivisionary/pkg/domain"
)

var _ Store = (*MemoryStore)(nil)
var _ Store = (*GormStore)(nil)
var _ AuditArchive = (*GormStore)(nil)
var _ SessionStore = (*RedisSessionStore)(nil)
var _ SessionStore = (*MemorySessionStore)(nil)

func TestSeededMemoryStoreHoldsDemoCatalogue(t *testing.T) {
	ctx := context.Background()
	m := NewSeededMemoryStore(time.Now())

	videos, err := m.ListVideos(ctx, domain.VideoFilter{})
	if err != nil {
		t.Fatalf("list videos: %v", err)
	}
	if len(videos) != 3 || videos[0].Title != "Ocean Waves" || videos[2].Title != "Mountain Adventure" {
		t.Fatalf("unexpected seed videos: %+v", videos)
	}

	nature, _ := m.ListVideos(ctx, domain.VideoFilter{Category: "nature"})
	if len(nature) != 2 {
		t.Fatalf("expected 2 nature videos, got %d", len(nature))
	}
	search, _ := m.ListVideos(ctx, domain.VideoFilter{Search: "TIMELAPSE"})
	if len(search) != 1 || search[0].ID != "2" {
		t.Fatalf("tag search mismatch: %+v", search)
	}

	cats, _ := m.ListCategories(ctx)
	for i, c := range cats {
		if c.Order != i+1 {
			t.Fatalf("category %s order = %d, want %d", c.Name, c.Order, i+1)
		}
	}

	reports, _ := m.ListReports(ctx)
	if len(reports) != 3 || reports[1].Status != domain.ReportReviewed {
		t.Fatalf("unexpected seed reports: %+v", reports)
	}
	notes, _ := m.ListNotifications(ctx)
	if len(notes) != 1 || notes[0].Read || notes[0].Priority != domain.PriorityHigh {
		t.Fatalf("unexpected seed notifications: %+v", notes)
	}
}

func TestMemoryStoreVideoCopiesAreIsolated(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	v := domain.Video{ID: "v1", Title: "t", Tags: []string{"a"}}
	if err := m.CreateVideo(ctx, v); err != nil {
		t.Fatalf("create: %v", err)
	}
	v.Tags[0] = "mutated"
	got, ok, _ := m.GetVideo(ctx, "v1")
	if !ok || got.Tags[0] != "a" {
		t.Fatalf("stored video aliased caller slice: %+v", got)
	}
	deleted, _ := m.DeleteVideo(ctx, "v1")
	if !deleted {
		t.Fatalf("expected delete")
	}
	if _, ok, _ := m.GetVideo(ctx, "v1"); ok {
		t.Fatalf("expected video gone")
	}
}

func TestMemoryStoreNotificationsNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	_ = m.SaveNotification(ctx, domain.Notification{ID: "a"})
	_ = m.SaveNotification(ctx, domain.Notification{ID: "b"})
	_ = m.SaveNotification(ctx, domain.Notification{ID: "a", Read: true})

	notes, _ := m.ListNotifications(ctx)
	if len(notes) != 2 || notes[0].ID != "b" || notes[1].ID != "a" || !notes[1].Read {
		t.Fatalf("unexpected order: %+v", notes)
	}
	changed, _ := m.MarkAllNotificationsRead(ctx)
	if changed != 1 {
		t.Fatalf("changed = %d, want 1", changed)
	}
}

func TestMemoryStoreUserLookups(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	expires := time.Now().Add(time.Hour)
	u := domain.User{
		ID:                       "u1",
		Username:                 "alice",
		Email:                    "alice@x.com",
		Provider:                 "firebase",
		ProviderUID:              "fb-1",
		VerificationTokenHash:    "hash",
		VerificationTokenExpires: &expires,
	}
	_ = m.SaveUser(ctx, u)

	if _, ok, _ := m.GetUserByEmail(ctx, "ALICE@x.com"); !ok {
		t.Fatalf("email lookup should be case-insensitive")
	}
	if _, ok, _ := m.GetUserByUsername(ctx, "alice"); !ok {
		t.Fatalf("username lookup failed")
	}
	if _, ok, _ := m.GetUserByProvider(ctx, "firebase", "fb-1"); !ok {
		t.Fatalf("provider lookup failed")
	}
	if _, ok, _ := m.GetUserByVerificationHash(ctx, "hash", time.Now()); !ok {
		t.Fatalf("verification lookup failed")
	}
	if _, ok, _ := m.GetUserByVerificationHash(ctx, "hash", expires.Add(time.Second)); ok {
		t.Fatalf("expired verification token must not match")
	}
	if n, _ := m.UserCount(ctx); n != 1 {
		t.Fatalf("user count = %d", n)
	}
}
