package store

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"ivisionary/pkg/domain"
)

// MemoryStore keeps every repository in-process. Changes are lost on restart.
type MemoryStore struct {
	mu sync.RWMutex

	users map[string]domain.User // key: user ID

	videos      map[string]domain.Video
	videoOrder  []string
	categories  map[string]domain.Category
	reports     map[string]domain.Report
	reportOrder []string
	notes       map[string]domain.Notification
	noteOrder   []string // newest first
	audit       []domain.AuditEntry
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[string]domain.User),
		videos:     make(map[string]domain.Video),
		categories: make(map[string]domain.Category),
		reports:    make(map[string]domain.Report),
		notes:      make(map[string]domain.Notification),
	}
}

// NewSeededMemoryStore returns a store preloaded with the demo catalogue.
func NewSeededMemoryStore(now time.Time) *MemoryStore {
	m := NewMemoryStore()
	ctx := context.Background()
	for _, v := range SeedVideos(now) {
		_ = m.CreateVideo(ctx, v)
	}
	_ = m.SaveCategories(ctx, SeedCategories()...)
	for _, r := range SeedReports(now) {
		_ = m.SaveReport(ctx, r)
	}
	for _, n := range SeedNotifications(now) {
		_ = m.SaveNotification(ctx, n)
	}
	return m
}

// users

func (m *MemoryStore) SaveUser(_ context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *MemoryStore) GetUserByID(_ context.Context, id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) GetUserByEmail(_ context.Context, email string) (domain.User, bool, error) {
	return m.findUser(func(u domain.User) bool { return strings.EqualFold(u.Email, email) })
}

func (m *MemoryStore) GetUserByUsername(_ context.Context, username string) (domain.User, bool, error) {
	return m.findUser(func(u domain.User) bool { return u.Username == username })
}

func (m *MemoryStore) GetUserByProvider(_ context.Context, provider, uid string) (domain.User, bool, error) {
	return m.findUser(func(u domain.User) bool { return u.Provider == provider && u.ProviderUID == uid })
}

func (m *MemoryStore) GetUserByVerificationHash(_ context.Context, hash string, now time.Time) (domain.User, bool, error) {
	if hash == "" {
		return domain.User{}, false, nil
	}
	return m.findUser(func(u domain.User) bool {
		return u.VerificationTokenHash == hash &&
			u.VerificationTokenExpires != nil &&
			u.VerificationTokenExpires.After(now)
	})
}

func (m *MemoryStore) findUser(match func(domain.User) bool) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if match(u) {
			return u, true, nil
		}
	}
	return domain.User{}, false, nil
}

// ListUsers returns users ordered by creation time.
func (m *MemoryStore) ListUsers(_ context.Context) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		res = append(res, u)
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

func (m *MemoryStore) DeleteUser(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.users[id]
	delete(m.users, id)
	return ok, nil
}

func (m *MemoryStore) UserCount(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}

// videos

// ListVideos returns videos in insertion order.
func (m *MemoryStore) ListVideos(_ context.Context, filter domain.VideoFilter) ([]domain.Video, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Video, 0, len(m.videoOrder))
	for _, id := range m.videoOrder {
		v, ok := m.videos[id]
		if ok && MatchVideo(v, filter) {
			res = append(res, cloneVideo(v))
		}
	}
	return res, nil
}

func (m *MemoryStore) GetVideo(_ context.Context, id string) (domain.Video, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.videos[id]
	return cloneVideo(v), ok, nil
}

func (m *MemoryStore) CreateVideo(_ context.Context, v domain.Video) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.videos[v.ID]; !exists {
		m.videoOrder = append(m.videoOrder, v.ID)
	}
	m.videos[v.ID] = cloneVideo(v)
	return nil
}

func (m *MemoryStore) UpdateVideo(ctx context.Context, v domain.Video) error {
	return m.CreateVideo(ctx, v)
}

func (m *MemoryStore) DeleteVideo(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.videos[id]; !ok {
		return false, nil
	}
	delete(m.videos, id)
	m.videoOrder = removeID(m.videoOrder, id)
	return true, nil
}

// MatchVideo applies a catalogue filter. Search matches title, description
// and tags case-insensitively.
func MatchVideo(v domain.Video, filter domain.VideoFilter) bool {
	if filter.Category != "" && !strings.EqualFold(v.Category, filter.Category) {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(filter.Search))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(v.Title), q) || strings.Contains(strings.ToLower(v.Description), q) {
		return true
	}
	for _, tag := range v.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

func cloneVideo(v domain.Video) domain.Video {
	v.Tags = slices.Clone(v.Tags)
	return v
}

// categories

// ListCategories returns categories sorted by order.
func (m *MemoryStore) ListCategories(_ context.Context) ([]domain.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Category, 0, len(m.categories))
	for _, c := range m.categories {
		c.Subcategories = slices.Clone(c.Subcategories)
		res = append(res, c)
	}
	SortCategories(res)
	return res, nil
}

func (m *MemoryStore) SaveCategories(_ context.Context, cats ...domain.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range cats {
		c.Subcategories = slices.Clone(c.Subcategories)
		m.categories[c.ID] = c
	}
	return nil
}

func (m *MemoryStore) DeleteCategory(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.categories[id]
	delete(m.categories, id)
	return ok, nil
}

// SortCategories orders by Order, then ID for a stable listing.
func SortCategories(cats []domain.Category) {
	sort.SliceStable(cats, func(i, j int) bool {
		if cats[i].Order != cats[j].Order {
			return cats[i].Order < cats[j].Order
		}
		return cats[i].ID < cats[j].ID
	})
}

// reports

func (m *MemoryStore) ListReports(_ context.Context) ([]domain.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Report, 0, len(m.reportOrder))
	for _, id := range m.reportOrder {
		if r, ok := m.reports[id]; ok {
			res = append(res, r)
		}
	}
	return res, nil
}

func (m *MemoryStore) GetReport(_ context.Context, id string) (domain.Report, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reports[id]
	return r, ok, nil
}

func (m *MemoryStore) SaveReport(_ context.Context, r domain.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.reports[r.ID]; !exists {
		m.reportOrder = append(m.reportOrder, r.ID)
	}
	m.reports[r.ID] = r
	return nil
}

func (m *MemoryStore) DeleteReport(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reports[id]; !ok {
		return false, nil
	}
	delete(m.reports, id)
	m.reportOrder = removeID(m.reportOrder, id)
	return true, nil
}

// notifications

func (m *MemoryStore) ListNotifications(_ context.Context) ([]domain.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Notification, 0, len(m.noteOrder))
	for _, id := range m.noteOrder {
		if n, ok := m.notes[id]; ok {
			res = append(res, n)
		}
	}
	return res, nil
}

func (m *MemoryStore) GetNotification(_ context.Context, id string) (domain.Notification, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.notes[id]
	return n, ok, nil
}

// SaveNotification prepends new notifications and replaces existing ones in place.
func (m *MemoryStore) SaveNotification(_ context.Context, n domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.notes[n.ID]; !exists {
		m.noteOrder = append([]string{n.ID}, m.noteOrder...)
	}
	m.notes[n.ID] = n
	return nil
}

func (m *MemoryStore) MarkAllNotificationsRead(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	changed := 0
	for id, n := range m.notes {
		if !n.Read {
			n.Read = true
			m.notes[id] = n
			changed++
		}
	}
	return changed, nil
}

// audit archive

func (m *MemoryStore) AppendAuditEntry(_ context.Context, e domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, e)
	return nil
}

// AuditEntries returns archived entries in append order.
func (m *MemoryStore) AuditEntries() []domain.AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.audit)
}

func removeID(ids []string, id string) []string {
	filtered := ids[:0]
	for _, item := range ids {
		if item != id {
			filtered = append(filtered, item)
		}
	}
	return filtered
}
