package store

import (
	"context"
	"time"

	"ivisionary/pkg/domain"
)

// UserStore persists registered accounts.
type UserStore interface {
	SaveUser(ctx context.Context, u domain.User) error
	GetUserByID(ctx context.Context, id string) (domain.User, bool, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error)
	GetUserByUsername(ctx context.Context, username string) (domain.User, bool, error)
	GetUserByProvider(ctx context.Context, provider, uid string) (domain.User, bool, error)
	// GetUserByVerificationHash returns the user holding an unexpired token hash.
	GetUserByVerificationHash(ctx context.Context, hash string, now time.Time) (domain.User, bool, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	DeleteUser(ctx context.Context, id string) (bool, error)
	UserCount(ctx context.Context) (int, error)
}

// SessionStore persists sessions under their token id.
// A zero ttl keeps the session until it is deleted.
type SessionStore interface {
	SaveSession(ctx context.Context, id string, s domain.Session, ttl time.Duration) error
	GetSession(ctx context.Context, id string) (domain.Session, bool, error)
	DeleteSession(ctx context.Context, id string) (bool, error)
}

// VideoRepository persists the video catalogue.
type VideoRepository interface {
	ListVideos(ctx context.Context, filter domain.VideoFilter) ([]domain.Video, error)
	GetVideo(ctx context.Context, id string) (domain.Video, bool, error)
	CreateVideo(ctx context.Context, v domain.Video) error
	UpdateVideo(ctx context.Context, v domain.Video) error
	DeleteVideo(ctx context.Context, id string) (bool, error)
}

// CategoryRepository persists admin categories. Callers serialize
// mutations so that orders stay a permutation of 1..N.
type CategoryRepository interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	// SaveCategories upserts all given categories atomically.
	SaveCategories(ctx context.Context, cats ...domain.Category) error
	DeleteCategory(ctx context.Context, id string) (bool, error)
}

// ReportRepository persists content reports in submission order.
type ReportRepository interface {
	ListReports(ctx context.Context) ([]domain.Report, error)
	GetReport(ctx context.Context, id string) (domain.Report, bool, error)
	SaveReport(ctx context.Context, r domain.Report) error
	DeleteReport(ctx context.Context, id string) (bool, error)
}

// NotificationRepository persists admin notifications, newest first.
type NotificationRepository interface {
	ListNotifications(ctx context.Context) ([]domain.Notification, error)
	GetNotification(ctx context.Context, id string) (domain.Notification, bool, error)
	SaveNotification(ctx context.Context, n domain.Notification) error
	MarkAllNotificationsRead(ctx context.Context) (int, error)
}

// AuditArchive is an optional durable copy of the audit trail.
type AuditArchive interface {
	AppendAuditEntry(ctx context.Context, e domain.AuditEntry) error
}

// Store bundles every repository the API needs.
type Store interface {
	UserStore
	VideoRepository
	CategoryRepository
	ReportRepository
	NotificationRepository
}
