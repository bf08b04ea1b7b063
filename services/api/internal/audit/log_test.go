package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"ivisionary/internal/util"
	"ivisionary/pkg/domain"
	"ivisionary/pkg/store"
)

type recordingSink struct {
	entries []domain.AuditEntry
	err     error
}

func (s *recordingSink) Publish(_ context.Context, e domain.AuditEntry) error {
	s.entries = append(s.entries, e)
	return s.err
}

func failingResolver() IPResolver {
	return ResolverFunc(func(context.Context) (string, error) { return "", errors.New("offline") })
}

func TestAddRecordsResolvedIP(t *testing.T) {
	sink := &recordingSink{}
	log := NewLog(nil, sink)
	ctx := util.ContextWithClientIP(context.Background(), "203.0.113.5")

	entry := log.Add(ctx, ActionLogin, map[string]string{"email": "admin@example.es"})

	if entry.Status != domain.AuditSuccess || entry.IPAddress != "203.0.113.5" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if log.Len() != 1 || len(sink.entries) != 1 {
		t.Fatalf("expected one stored and one published entry, got %d/%d", log.Len(), len(sink.entries))
	}
}

func TestAddMarksLookupFailure(t *testing.T) {
	sink := &recordingSink{}
	log := NewLog(failingResolver(), sink)

	entry := log.Add(context.Background(), ActionLoginFailed, "x@example.com")

	if entry.Status != domain.AuditError || entry.IPAddress != UnknownIP {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if log.Len() != 1 {
		t.Fatalf("expected exactly one entry, got %d", log.Len())
	}
	if len(sink.entries) != 0 {
		t.Fatalf("failed lookups are not forwarded")
	}
}

func TestAddSwallowsSinkErrors(t *testing.T) {
	log := NewLog(nil, &recordingSink{err: errors.New("down")})
	ctx := util.ContextWithClientIP(context.Background(), "198.51.100.1")
	if entry := log.Add(ctx, ActionLogout, nil); entry.Status != domain.AuditSuccess {
		t.Fatalf("sink failure must not change entry status: %+v", entry)
	}
	if log.Len() != 1 {
		t.Fatalf("expected entry to be kept")
	}
}

func TestQueries(t *testing.T) {
	log := NewLog(nil, nil)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	step := 0
	log.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Minute)
	}
	a := util.ContextWithClientIP(context.Background(), "10.0.0.1")
	b := util.ContextWithClientIP(context.Background(), "10.0.0.2")
	log.Add(a, ActionLogin, nil)       // 12:01
	log.Add(b, ActionLoginFailed, nil) // 12:02
	log.Add(a, ActionLogout, nil)      // 12:03

	all := log.List()
	if len(all) != 3 || all[0].Action != ActionLogout {
		t.Fatalf("expected newest first, got %+v", all)
	}
	if got := log.ByIP("10.0.0.1"); len(got) != 2 {
		t.Fatalf("ByIP returned %d entries", len(got))
	}
	inRange := log.ByDateRange(base.Add(time.Minute), base.Add(2*time.Minute))
	if len(inRange) != 2 {
		t.Fatalf("date range must be inclusive, got %d", len(inRange))
	}

	log.Clear()
	if log.Len() != 0 || len(log.List()) != 0 {
		t.Fatalf("expected empty log after clear")
	}
}

func TestLookupResolver(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"ip": "192.0.2.44"})
	}))
	defer srv.Close()

	ip, err := NewLookupResolver(srv.URL).ResolveIP(context.Background())
	if err != nil || ip != "192.0.2.44" {
		t.Fatalf("resolve: %q %v", ip, err)
	}

	chain := ChainResolver{ContextResolver{}, NewLookupResolver(srv.URL)}
	ip, err = chain.ResolveIP(util.ContextWithClientIP(context.Background(), "203.0.113.1"))
	if err != nil || ip != "203.0.113.1" {
		t.Fatalf("chain should prefer context ip, got %q %v", ip, err)
	}
	ip, err = chain.ResolveIP(context.Background())
	if err != nil || ip != "192.0.2.44" {
		t.Fatalf("chain should fall back to lookup, got %q %v", ip, err)
	}
}

func TestHTTPSink(t *testing.T) {
	var got domain.AuditEntry
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	entry := domain.AuditEntry{ID: "a1", Action: ActionLogin, IPAddress: "10.1.1.1", Status: domain.AuditSuccess}
	if err := NewHTTPSink(srv.URL).Publish(context.Background(), entry); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got.ID != "a1" || got.Action != ActionLogin {
		t.Fatalf("unexpected posted entry: %+v", got)
	}
}

func TestRedisStreamSink(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	sink := NewRedisStreamSink(client, "test:audit")
	entry := domain.AuditEntry{ID: "e1", Timestamp: time.Now().UTC(), Action: ActionLogin, Details: map[string]string{"email": "a@b.c"}, IPAddress: "10.0.0.9", Status: domain.AuditSuccess}
	if err := sink.Publish(context.Background(), entry); err != nil {
		t.Fatalf("publish: %v", err)
	}
	msgs, err := client.XRange(context.Background(), "test:audit", "-", "+").Result()
	if err != nil {
		t.Fatalf("xrange: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Values["action"] != ActionLogin || msgs[0].Values["ip_address"] != "10.0.0.9" {
		t.Fatalf("unexpected stream contents: %+v", msgs)
	}
}

func TestArchiveSink(t *testing.T) {
	mem := store.NewMemoryStore()
	sink := MultiSink{NoopSink{}, NewArchiveSink(mem)}
	if err := sink.Publish(context.Background(), domain.AuditEntry{ID: "x", Action: ActionLogout}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got := mem.AuditEntries(); len(got) != 1 || got[0].ID != "x" {
		t.Fatalf("unexpected archive: %+v", got)
	}
}
