package app

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"ivisionary/internal/util"
	"ivisionary/pkg/domain"
	"ivisionary/pkg/mail"
	"ivisionary/pkg/store"
	"ivisionary/services/api/internal/audit"
	"ivisionary/services/api/internal/security"
)

const testSecret = "test-secret-0123456789"

type testEnv struct {
	app      *App
	store    *store.MemoryStore
	sessions *store.MemorySessionStore
	mailer   *mail.RecordingMailer
	audit    *audit.Log
}

func newTestEnv(t *testing.T, mutate ...func(*Config)) testEnv {
	t.Helper()
	env := testEnv{
		store:    store.NewSeededMemoryStore(time.Now().UTC()),
		sessions: store.NewMemorySessionStore(),
		mailer:   &mail.RecordingMailer{},
		audit:    audit.NewLog(nil, nil),
	}
	cfg := Config{
		JWTSecret:   testSecret,
		FrontendURL: "http://localhost:5173",
		Store:       env.store,
		Sessions:    env.sessions,
		Mailer:      env.mailer,
		Audit:       env.audit,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	env.app = a
	return env
}

func ipContext(ip string) context.Context {
	return util.ContextWithClientIP(context.Background(), ip)
}

func TestNewRejectsShortSecret(t *testing.T) {
	if _, err := New(Config{JWTSecret: "short"}); err == nil {
		t.Fatalf("expected error for short jwt secret")
	}
}

func TestDemoAdminLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := ipContext("203.0.113.10")

	session, token, err := env.app.Login(ctx, "admin@example.es", "admin")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if session.Role != domain.RoleAdmin || session.ID != DemoAdminID || !session.IsVerified {
		t.Fatalf("unexpected admin session: %+v", session)
	}
	if token == "" || env.sessions.Len() != 1 {
		t.Fatalf("expected a stored session")
	}
	got, ok := env.app.SessionFromToken(ctx, token)
	if !ok || got.Email != "admin@example.es" {
		t.Fatalf("session from token: %+v %v", got, ok)
	}
	entries := env.audit.List()
	if len(entries) != 1 || entries[0].Action != audit.ActionLogin || entries[0].IPAddress != "203.0.113.10" {
		t.Fatalf("unexpected audit trail: %+v", entries)
	}
}

func TestLoginRejectsOtherPairs(t *testing.T) {
	env := newTestEnv(t)
	pairs := [][2]string{
		{"admin@example.es", "wrong"},
		{"someone@example.com", "admin"},
		{"", ""},
	}
	for _, p := range pairs {
		if _, _, err := env.app.Login(context.Background(), p[0], p[1]); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("Login(%q,%q) err = %v, want invalid credentials", p[0], p[1], err)
		}
	}
	entries := env.audit.List()
	if len(entries) != len(pairs) {
		t.Fatalf("expected one audit entry per attempt, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Action != audit.ActionLoginFailed || e.Status != domain.AuditError || e.IPAddress != audit.UnknownIP {
			t.Fatalf("unexpected entry: %+v", e)
		}
	}
	if env.sessions.Len() != 0 {
		t.Fatalf("failed logins must not create sessions")
	}
}

func TestLogoutRemovesSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, token, err := env.app.Login(ctx, "admin@example.es", "admin")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := env.app.Logout(ctx, token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok := env.app.SessionFromToken(ctx, token); ok {
		t.Fatalf("session must be gone after logout")
	}
	if env.sessions.Len() != 0 {
		t.Fatalf("session store still holds %d sessions", env.sessions.Len())
	}
	if err := env.app.Logout(ctx, token); err != nil {
		t.Fatalf("second logout must be a no-op: %v", err)
	}
	if env.audit.List()[0].Action != audit.ActionLogout || env.audit.Len() != 2 {
		t.Fatalf("expected one login and one logout entry, got %+v", env.audit.List())
	}
}

func TestUpdateProfileMergesNonEmptyFields(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, token, _ := env.app.Login(ctx, "admin@example.es", "admin")

	got, err := env.app.UpdateProfile(ctx, token, domain.ProfileUpdate{Subscription: "pro"})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if got.Username != "Admin" || got.Subscription != "pro" || got.Email != "admin@example.es" {
		t.Fatalf("unexpected merge: %+v", got)
	}
	stored, _ := env.app.SessionFromToken(ctx, token)
	if stored.Subscription != "pro" {
		t.Fatalf("merge not persisted: %+v", stored)
	}

	if _, err := env.app.UpdateProfile(ctx, "not-a-token", domain.ProfileUpdate{Username: "x"}); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected no active session, got %v", err)
	}
}

func registerVerified(t *testing.T, env testEnv, username, email, password string) domain.User {
	t.Helper()
	ctx := context.Background()
	if _, err := env.app.Register(ctx, RegisterInput{Username: username, Email: email, Password: password}); err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	sent := env.mailer.Sent()
	link := sent[len(sent)-1].URL
	user, err := env.app.VerifyEmail(ctx, link[strings.LastIndex(link, "/")+1:])
	if err != nil {
		t.Fatalf("verify %s: %v", email, err)
	}
	return user
}

func TestUpdateProfileWritesRegisteredAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := registerVerified(t, env, "alice", "alice@x.com", "StrongPass1!")
	registerVerified(t, env, "bob", "bob@x.com", "StrongPass1!")
	_, token, err := env.app.Login(ctx, "alice@x.com", "StrongPass1!")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	got, err := env.app.UpdateProfile(ctx, token, domain.ProfileUpdate{Username: "alicia", Email: "Alicia@X.com", Subscription: "premium"})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if got.Username != "alicia" || got.Email != "alicia@x.com" {
		t.Fatalf("unexpected session: %+v", got)
	}
	stored, ok, _ := env.store.GetUserByID(ctx, alice.ID)
	if !ok || stored.Username != "alicia" || stored.Email != "alicia@x.com" || stored.Subscription != "premium" {
		t.Fatalf("stored user not updated: %+v", stored)
	}

	conflicts := []domain.ProfileUpdate{
		{Email: "bob@x.com"},
		{Username: "bob"},
		{Email: "admin@example.es"},
	}
	for _, update := range conflicts {
		if _, err := env.app.UpdateProfile(ctx, token, update); !errors.Is(err, ErrUserAlreadyExists) {
			t.Fatalf("UpdateProfile(%+v) err = %v, want user already exists", update, err)
		}
	}
	stored, _, _ = env.store.GetUserByID(ctx, alice.ID)
	if stored.Username != "alicia" || stored.Email != "alicia@x.com" {
		t.Fatalf("rejected updates must not be stored: %+v", stored)
	}
	if session, _ := env.app.SessionFromToken(ctx, token); session.Email != "alicia@x.com" {
		t.Fatalf("rejected updates must not reach the session: %+v", session)
	}
	if _, _, err := env.app.Login(ctx, "admin@example.es", "StrongPass1!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("admin address must not reach a registered account, got %v", err)
	}
}

type ttlRecorder struct {
	*store.MemorySessionStore
	mu   sync.Mutex
	last time.Duration
}

func (r *ttlRecorder) SaveSession(ctx context.Context, id string, s domain.Session, ttl time.Duration) error {
	r.mu.Lock()
	r.last = ttl
	r.mu.Unlock()
	return r.MemorySessionStore.SaveSession(ctx, id, s, ttl)
}

func (r *ttlRecorder) lastTTL() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func TestUpdateProfileKeepsTokenDeadline(t *testing.T) {
	sessions := &ttlRecorder{MemorySessionStore: store.NewMemorySessionStore()}
	var mu sync.Mutex
	offset := time.Duration(0)
	env := newTestEnv(t, func(c *Config) {
		c.Sessions = sessions
		c.SessionTTL = time.Hour
		c.Now = func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return time.Now().UTC().Add(offset)
		}
	})
	advance := func(d time.Duration) {
		mu.Lock()
		offset = d
		mu.Unlock()
	}
	ctx := context.Background()
	_, token, err := env.app.Login(ctx, "admin@example.es", "admin")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if got := sessions.lastTTL(); got != time.Hour {
		t.Fatalf("login ttl = %v, want 1h", got)
	}

	advance(40 * time.Minute)
	if _, err := env.app.UpdateProfile(ctx, token, domain.ProfileUpdate{Subscription: "pro"}); err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if got := sessions.lastTTL(); got <= 0 || got > 20*time.Minute {
		t.Fatalf("update ttl = %v, want the 20m left on the token", got)
	}

	advance(2 * time.Hour)
	if _, err := env.app.UpdateProfile(ctx, token, domain.ProfileUpdate{Subscription: "basic"}); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected no active session past the token deadline, got %v", err)
	}
}

func TestSessionsSurviveRestartWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	sessions := store.NewRedisSessionStore(client, "test:session")

	first := newTestEnv(t, func(c *Config) { c.Sessions = sessions })
	_, token, err := first.app.Login(context.Background(), "admin@example.es", "admin")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	restarted := newTestEnv(t, func(c *Config) { c.Sessions = sessions })
	if s, ok := restarted.app.SessionFromToken(context.Background(), token); !ok || s.Role != domain.RoleAdmin {
		t.Fatalf("session lost across restart: %+v %v", s, ok)
	}
}

func TestRegisterVerifyLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.app.Register(ctx, RegisterInput{Username: "alice", Email: "Alice@Example.com", Password: "Wonderland1!"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.IsVerified || user.VerificationTokenHash == "" {
		t.Fatalf("new user must be unverified with a token: %+v", user)
	}
	if _, _, err := env.app.Login(ctx, "alice@example.com", "Wonderland1!"); !errors.Is(err, ErrEmailNotVerified) {
		t.Fatalf("expected unverified login to fail, got %v", err)
	}

	sent := env.mailer.Sent()
	if len(sent) != 1 || sent[0].To != "alice@example.com" {
		t.Fatalf("unexpected mail: %+v", sent)
	}
	token := sent[0].URL[strings.LastIndex(sent[0].URL, "/")+1:]
	if _, err := env.app.VerifyEmail(ctx, token); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if _, err := env.app.VerifyEmail(ctx, token); !errors.Is(err, ErrInvalidVerificationToken) {
		t.Fatalf("token must be single use, got %v", err)
	}

	session, _, err := env.app.Login(ctx, "alice@example.com", "Wonderland1!")
	if err != nil {
		t.Fatalf("login after verify: %v", err)
	}
	if session.Role != domain.RoleUser || session.Username != "alice" {
		t.Fatalf("unexpected session: %+v", session)
	}
	stored, _, _ := env.store.GetUserByEmail(ctx, "alice@example.com")
	if stored.LastLogin == nil {
		t.Fatalf("last login not recorded")
	}

	if _, err := env.app.Register(ctx, RegisterInput{Username: "alice", Email: "other@example.com", Password: "Wonderland1!"}); !errors.Is(err, ErrUserAlreadyExists) {
		t.Fatalf("expected duplicate username to fail, got %v", err)
	}
}

func TestRegisterMailFailureClearsToken(t *testing.T) {
	env := newTestEnv(t)
	env.mailer.Err = errors.New("smtp down")
	ctx := context.Background()

	_, err := env.app.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "Wonderland1!"})
	if !errors.Is(err, ErrVerificationEmail) {
		t.Fatalf("expected verification email error, got %v", err)
	}
	stored, ok, _ := env.store.GetUserByEmail(ctx, "alice@example.com")
	if !ok {
		t.Fatalf("user must remain stored")
	}
	if stored.IsVerified || stored.VerificationTokenHash != "" || stored.VerificationTokenExpires != nil {
		t.Fatalf("expected unverified user with cleared token: %+v", stored)
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.app.Register(context.Background(), RegisterInput{Username: "al", Email: "nope", Password: "short"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	fields := map[string]bool{}
	for _, f := range verr.Fields {
		fields[f.Field] = true
	}
	if !fields["username"] || !fields["email"] || !fields["password"] {
		t.Fatalf("unexpected fields: %+v", verr.Fields)
	}
}

func TestUpsertIdentity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := Identity{Provider: "google", UID: "g-1", Email: "bob@example.com", DisplayName: "Bob", EmailVerified: true}

	first, token, err := env.app.UpsertIdentity(ctx, id)
	if err != nil || token == "" {
		t.Fatalf("upsert: %v", err)
	}
	id.DisplayName = "Bobby"
	second, _, err := env.app.UpsertIdentity(ctx, id)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if first.ID != second.ID || second.Username != "Bobby" {
		t.Fatalf("expected same account refreshed: %+v / %+v", first, second)
	}
	if n, _ := env.store.UserCount(ctx); n != 1 {
		t.Fatalf("expected one user, got %d", n)
	}
}

func TestUpsertIdentityLinksRegisteredAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := registerVerified(t, env, "alice", "alice@x.com", "StrongPass1!")

	session, _, err := env.app.UpsertIdentity(ctx, Identity{Provider: "google", UID: "g-1", Email: "alice@x.com", DisplayName: "alice", EmailVerified: true})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if session.ID != alice.ID || session.Username != "alice" {
		t.Fatalf("expected the registered account, got %+v", session)
	}
	if n, _ := env.store.UserCount(ctx); n != 1 {
		t.Fatalf("expected one account, got %d", n)
	}
	stored, _, _ := env.store.GetUserByID(ctx, alice.ID)
	if stored.Provider != "google" || stored.ProviderUID != "g-1" || stored.PasswordHash == "" {
		t.Fatalf("provider not linked: %+v", stored)
	}
	for i := 0; i < 20; i++ {
		if _, _, err := env.app.Login(ctx, "alice@x.com", "StrongPass1!"); err != nil {
			t.Fatalf("password login %d after identity sign-in: %v", i, err)
		}
	}

	if _, _, err := env.app.UpsertIdentity(ctx, Identity{Provider: "github", UID: "gh-7", Email: "alice@x.com", EmailVerified: true}); !errors.Is(err, ErrUserAlreadyExists) {
		t.Fatalf("second provider for a linked address: err = %v", err)
	}
	if _, _, err := env.app.UpsertIdentity(ctx, Identity{Provider: "google", UID: "g-9", Email: "admin@example.es", EmailVerified: true}); !errors.Is(err, ErrUserAlreadyExists) {
		t.Fatalf("admin address: err = %v", err)
	}

	carol, _, err := env.app.UpsertIdentity(ctx, Identity{Provider: "google", UID: "g-2", Email: "carol@x.com", DisplayName: "alice", EmailVerified: true})
	if err != nil {
		t.Fatalf("upsert carol: %v", err)
	}
	if carol.Username != "alice2" {
		t.Fatalf("username = %q, want a free suffixed name", carol.Username)
	}
}

func TestUpsertIdentityRefusesUnverifiedTakeover(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	registerVerified(t, env, "dave", "dave@x.com", "StrongPass1!")

	if _, _, err := env.app.UpsertIdentity(ctx, Identity{Provider: "google", UID: "g-3", Email: "dave@x.com"}); !errors.Is(err, ErrUserAlreadyExists) {
		t.Fatalf("unverified provider e-mail: err = %v", err)
	}
	if n, _ := env.store.UserCount(ctx); n != 1 {
		t.Fatalf("expected one account, got %d", n)
	}
}

func TestVideoRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	added, err := env.app.AddVideo(ctx, domain.Video{
		Title:       "Ocean",
		Description: "Waves at dusk",
		Category:    "Nature",
		Duration:    "0:30",
		PreviewURL:  "https://cdn.example.com/ocean.mp4",
		Likes:       99,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if added.ID == "" || added.Likes != 0 || added.Downloads != 0 || added.CreatedAt.IsZero() {
		t.Fatalf("unexpected defaults: %+v", added)
	}
	got, err := env.app.GetVideoByID(ctx, added.ID)
	if err != nil || got.Title != "Ocean" {
		t.Fatalf("get: %+v %v", got, err)
	}

	title := "Ocean at night"
	updated, err := env.app.UpdateVideo(ctx, added.ID, domain.VideoPatch{Title: &title})
	if err != nil || updated.Title != title || updated.Description != "Waves at dusk" {
		t.Fatalf("update: %+v %v", updated, err)
	}

	if err := env.app.DeleteVideo(ctx, added.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.app.GetVideoByID(ctx, added.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAddVideoValidation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.app.AddVideo(context.Background(), domain.Video{Title: "x", PreviewURL: "ftp://host/file"})
	var verr *ValidationError
	if !errors.As(err, &verr) || len(verr.Fields) != 4 {
		t.Fatalf("expected description, category, duration and url errors, got %v", err)
	}
}

func TestUploadThumbnail(t *testing.T) {
	env := newTestEnv(t)
	v, err := env.app.UploadThumbnail(context.Background(), "1", "cover.png", "image/png", strings.NewReader("png"), 3)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.Contains(v.Thumbnail, "thumbnails/1/cover.png") {
		t.Fatalf("unexpected thumbnail url %q", v.Thumbnail)
	}
	if _, err := env.app.CreateUploadURL(context.Background(), 0); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected unavailable without video host, got %v", err)
	}
}

func orders(t *testing.T, cats []domain.Category) map[string]int {
	t.Helper()
	out := make(map[string]int, len(cats))
	for _, c := range cats {
		out[c.ID] = c.Order
	}
	return out
}

func assertPermutation(t *testing.T, cats []domain.Category) {
	t.Helper()
	seen := make(map[int]bool, len(cats))
	for _, c := range cats {
		if c.Order < 1 || c.Order > len(cats) || seen[c.Order] {
			t.Fatalf("orders are not a permutation of 1..%d: %+v", len(cats), cats)
		}
		seen[c.Order] = true
	}
}

func TestMoveCategorySwapsWithNeighbour(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cats, err := env.app.MoveCategory(ctx, "2", domain.MoveUp)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	got := orders(t, cats)
	if got["2"] != 1 || got["1"] != 2 || got["3"] != 3 {
		t.Fatalf("unexpected orders after move: %v", got)
	}
	if cats[0].ID != "2" {
		t.Fatalf("listing must be sorted by order")
	}
	if cats, _ = env.app.MoveCategory(ctx, "2", domain.MoveUp); orders(t, cats)["2"] != 1 {
		t.Fatalf("moving the first category up must be a no-op")
	}
}

func TestCategoryOrdersStayPermutation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		if _, err := env.app.AddCategory(ctx, CategoryInput{Name: "Extra", Subcategories: []string{"A", "B"}}); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		cats, _ := env.app.ListCategories(ctx)
		target := cats[rng.Intn(len(cats))]
		dir := domain.MoveUp
		if rng.Intn(2) == 1 {
			dir = domain.MoveDown
		}
		if _, err := env.app.MoveCategory(ctx, target.ID, dir); err != nil {
			t.Fatalf("move: %v", err)
		}
	}
	cats, _ := env.app.ListCategories(ctx)
	assertPermutation(t, cats)

	if err := env.app.DeleteCategory(ctx, cats[1].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	cats, _ = env.app.ListCategories(ctx)
	if len(cats) != 6 {
		t.Fatalf("expected 6 categories, got %d", len(cats))
	}
	assertPermutation(t, cats)
}

func TestConcurrentCategoryMutations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = env.app.AddCategory(ctx, CategoryInput{Name: "Parallel"})
				return
			}
			_, _ = env.app.MoveCategory(ctx, "1", domain.MoveDown)
		}(i)
	}
	wg.Wait()
	cats, _ := env.app.ListCategories(ctx)
	if len(cats) != 7 {
		t.Fatalf("expected 7 categories, got %d", len(cats))
	}
	assertPermutation(t, cats)
}

func TestCategoryRejectsDuplicateSubcategories(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.app.AddCategory(context.Background(), CategoryInput{Name: "Sports", Subcategories: []string{"Surf", "surf"}})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestReports(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	r, err := env.app.AddReport(ctx, "V009", "Spam")
	if err != nil || r.Status != domain.ReportPending {
		t.Fatalf("add report: %+v %v", r, err)
	}
	pending, _ := env.app.PendingReports(ctx)
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending reports, got %d", len(pending))
	}
	if _, err := env.app.UpdateReportStatus(ctx, r.ID, domain.ReportReviewed); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if _, err := env.app.UpdateReportStatus(ctx, r.ID, "Pendiente"); err == nil {
		t.Fatalf("expected invalid status error")
	}
	byVideo, _ := env.app.ReportsByVideo(ctx, "V009")
	if len(byVideo) != 1 || byVideo[0].Status != domain.ReportReviewed {
		t.Fatalf("unexpected reports for video: %+v", byVideo)
	}
	if err := env.app.DeleteReport(ctx, r.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := env.app.DeleteReport(ctx, r.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestNotifications(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	before, _ := env.app.UnreadNotificationCount(ctx)

	n, err := env.app.AddNotification(ctx, domain.Notification{Type: "video_request", Message: "New request", Priority: domain.PriorityHigh})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	list, _ := env.app.ListNotifications(ctx)
	if list[0].ID != n.ID || list[0].Read {
		t.Fatalf("new notification must be unread and first: %+v", list[0])
	}
	if got, _ := env.app.UnreadNotificationCount(ctx); got != before+1 {
		t.Fatalf("unread = %d, want %d", got, before+1)
	}
	if _, err := env.app.MarkNotificationRead(ctx, n.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if _, err := env.app.MarkAllNotificationsRead(ctx); err != nil {
		t.Fatalf("mark all: %v", err)
	}
	if got, _ := env.app.UnreadNotificationCount(ctx); got != 0 {
		t.Fatalf("expected no unread notifications, got %d", got)
	}
}

func TestFailedLoginAlertRaisesNotification(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	thresholds := security.NewThresholds(domain.SecurityThresholds{LoginAttempts: 2, TimeWindow: 15, SuspiciousRequests: 100})
	env := newTestEnv(t, func(c *Config) {
		c.Thresholds = thresholds
		c.Alerter = security.NewAuditAlerter(client, "test:alerts", thresholds)
	})
	ctx := ipContext("198.51.100.7")
	for i := 0; i < 3; i++ {
		_, _, _ = env.app.Login(ctx, "admin@example.es", "nope")
	}

	list, _ := env.app.ListNotifications(context.Background())
	alerts := 0
	for _, n := range list {
		if n.Type == "security_alert" {
			alerts++
			if n.Priority != domain.PriorityHigh {
				t.Fatalf("alert must be high priority: %+v", n)
			}
		}
	}
	if alerts != 1 {
		t.Fatalf("expected exactly one alert, got %d", alerts)
	}

	snap := env.app.Security()
	if len(snap.Suspicious) != 1 || snap.Suspicious[0].Type != domain.ActivityLoginAttempts {
		t.Fatalf("unexpected snapshot: %+v", snap.Suspicious)
	}
}

func TestUserAdministration(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.app.demoAdminSession()

	u, err := env.app.CreateUser(ctx, admin, NewUserInput{Username: "carol", Email: "carol@example.com", Password: "Carol1234!"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !u.IsVerified || u.Role != domain.RoleUser {
		t.Fatalf("unexpected user: %+v", u)
	}
	locked := domain.StatusLocked
	if _, err := env.app.UpdateUser(ctx, admin, u.ID, UserUpdate{Status: &locked}); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if _, _, err := env.app.Login(ctx, "carol@example.com", "Carol1234!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("locked account must not log in, got %v", err)
	}
	self := domain.Session{ID: u.ID, Email: u.Email, Role: domain.RoleAdmin}
	if err := env.app.DeleteUser(ctx, self, u.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("self delete must be refused, got %v", err)
	}
	if err := env.app.DeleteUser(ctx, admin, u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := env.app.DeleteUser(ctx, admin, u.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestBillingConfigAndProducts(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.PublishableKey = "pk_test_123" })
	ctx := context.Background()

	cfg := env.app.BillingConfig()
	if cfg.PublishableKey != "pk_test_123" || cfg.Products.Pro.Prices.Monthly != 50 {
		t.Fatalf("unexpected default config: %+v", cfg)
	}
	cfg.PublishableKey = ""
	cfg.Products.Basic.Prices.Monthly = 35
	updated, err := env.app.UpdateBillingConfig(cfg)
	if err != nil || updated.PublishableKey != "pk_test_123" || updated.Products.Basic.Prices.Monthly != 35 {
		t.Fatalf("update config: %+v %v", updated, err)
	}

	if _, err := env.app.CreateProduct(ctx, domain.ProductInput{Name: ""}); err == nil {
		t.Fatalf("expected validation error")
	}
	p, err := env.app.CreateProduct(ctx, domain.ProductInput{Name: "Basic", MonthlyPrice: 30, YearlyPrice: 300})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if list, _ := env.app.ListProducts(ctx); len(list) != 1 || list[0].ID != p.ID {
		t.Fatalf("unexpected products: %+v", list)
	}
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, _, _ = env.app.Login(ctx, "admin@example.es", "admin")

	sum, err := env.app.Dashboard(ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if sum.Videos != 3 || sum.Categories != 3 || sum.PendingReports != 2 || sum.AuditEntries != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
}
