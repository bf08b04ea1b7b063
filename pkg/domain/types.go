package domain

import "time"

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

type UserStatus string

const (
	StatusActive UserStatus = "active"
	StatusLocked UserStatus = "locked"
)

// Session is the authenticated identity held for one bearer token.
type Session struct {
	ID           string   `json:"id"`
	Email        string   `json:"email"`
	Username     string   `json:"username"`
	Role         UserRole `json:"role"`
	IsVerified   bool     `json:"isVerified"`
	Subscription string   `json:"subscription,omitempty"`
}

// ProfileUpdate is a partial session. Empty fields are left untouched.
type ProfileUpdate struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	Subscription string `json:"subscription"`
}

type User struct {
	ID                       string     `json:"id"`
	Username                 string     `json:"username"`
	Email                    string     `json:"email"`
	PasswordHash             string     `json:"-"`
	Role                     UserRole   `json:"role"`
	Status                   UserStatus `json:"status"`
	IsVerified               bool       `json:"isVerified"`
	VerificationTokenHash    string     `json:"-"`
	VerificationTokenExpires *time.Time `json:"-"`
	Provider                 string     `json:"provider,omitempty"`
	ProviderUID              string     `json:"providerUid,omitempty"`
	PhotoURL                 string     `json:"photoURL,omitempty"`
	Subscription             string     `json:"subscription,omitempty"`
	CreatedAt                time.Time  `json:"createdAt"`
	UpdatedAt                time.Time  `json:"updatedAt"`
	LastLogin                *time.Time `json:"lastLogin,omitempty"`
}

// Session projects a stored user onto the session shape.
func (u User) Session() Session {
	return Session{
		ID:           u.ID,
		Email:        u.Email,
		Username:     u.Username,
		Role:         u.Role,
		IsVerified:   u.IsVerified,
		Subscription: u.Subscription,
	}
}

type AuditStatus string

const (
	AuditSuccess AuditStatus = "success"
	AuditError   AuditStatus = "error"
)

type AuditEntry struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Action    string      `json:"action"`
	Details   any         `json:"details,omitempty"`
	IPAddress string      `json:"ipAddress"`
	Status    AuditStatus `json:"status"`
}

type Video struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Tags        []string  `json:"tags"`
	PreviewURL  string    `json:"previewUrl"`
	DownloadURL string    `json:"downloadUrl"`
	Thumbnail   string    `json:"thumbnail"`
	Duration    string    `json:"duration"`
	Quality     string    `json:"quality"`
	StreamUID   string    `json:"streamUid,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	Likes       int       `json:"likes"`
	Downloads   int       `json:"downloads"`
}

// VideoPatch carries the fields of an update. Nil fields are unchanged.
type VideoPatch struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Category    *string   `json:"category"`
	Tags        *[]string `json:"tags"`
	PreviewURL  *string   `json:"previewUrl"`
	DownloadURL *string   `json:"downloadUrl"`
	Thumbnail   *string   `json:"thumbnail"`
	Duration    *string   `json:"duration"`
	Quality     *string   `json:"quality"`
	StreamUID   *string   `json:"streamUid"`
	Likes       *int      `json:"likes"`
	Downloads   *int      `json:"downloads"`
}

// Apply merges the non-nil fields of p into v.
func (p VideoPatch) Apply(v Video) Video {
	if p.Title != nil {
		v.Title = *p.Title
	}
	if p.Description != nil {
		v.Description = *p.Description
	}
	if p.Category != nil {
		v.Category = *p.Category
	}
	if p.Tags != nil {
		v.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.PreviewURL != nil {
		v.PreviewURL = *p.PreviewURL
	}
	if p.DownloadURL != nil {
		v.DownloadURL = *p.DownloadURL
	}
	if p.Thumbnail != nil {
		v.Thumbnail = *p.Thumbnail
	}
	if p.Duration != nil {
		v.Duration = *p.Duration
	}
	if p.Quality != nil {
		v.Quality = *p.Quality
	}
	if p.StreamUID != nil {
		v.StreamUID = *p.StreamUID
	}
	if p.Likes != nil {
		v.Likes = *p.Likes
	}
	if p.Downloads != nil {
		v.Downloads = *p.Downloads
	}
	return v
}

// VideoFilter narrows a catalogue listing. Zero value lists everything.
type VideoFilter struct {
	Category string
	Search   string
}

// VideoCategory is the catalogue's fixed category tree.
type VideoCategory struct {
	Name          string   `json:"name"`
	Subcategories []string `json:"subcategories"`
}

type Category struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Subcategories []string `json:"subcategories"`
	Order         int      `json:"order"`
}

type MoveDirection string

const (
	MoveUp   MoveDirection = "up"
	MoveDown MoveDirection = "down"
)

type ReportStatus string

const (
	ReportPending  ReportStatus = "pending"
	ReportReviewed ReportStatus = "reviewed"
)

// Valid reports whether s is a known report status.
func (s ReportStatus) Valid() bool {
	return s == ReportPending || s == ReportReviewed
}

type Report struct {
	ID        string       `json:"id"`
	VideoID   string       `json:"videoId"`
	Reason    string       `json:"reason"`
	Status    ReportStatus `json:"status"`
	Timestamp time.Time    `json:"timestamp"`
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

type Notification struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Read      bool           `json:"read"`
	Priority  Priority       `json:"priority"`
	Data      map[string]any `json:"data,omitempty"`
}

// SecurityThresholds configures the suspicious-activity snapshot.
// TimeWindow is expressed in minutes.
type SecurityThresholds struct {
	LoginAttempts      int `json:"loginAttempts"`
	TimeWindow         int `json:"timeWindow"`
	SuspiciousRequests int `json:"suspiciousRequests"`
}

// Window returns TimeWindow as a duration.
func (t SecurityThresholds) Window() time.Duration {
	return time.Duration(t.TimeWindow) * time.Minute
}

// DefaultSecurityThresholds mirrors the admin panel defaults.
func DefaultSecurityThresholds() SecurityThresholds {
	return SecurityThresholds{
		LoginAttempts:      5,
		TimeWindow:         15,
		SuspiciousRequests: 100,
	}
}

type ActivityType string

const (
	ActivityLoginAttempts ActivityType = "login_attempts"
	ActivityHighRequests  ActivityType = "high_requests"
)

type SuspiciousActivity struct {
	IP           string       `json:"ip"`
	Type         ActivityType `json:"type"`
	Count        int          `json:"count"`
	LastActivity time.Time    `json:"lastActivity"`
}

type BlockedIP struct {
	IP        string    `json:"ip"`
	BlockedAt time.Time `json:"blockedAt"`
	Reason    string    `json:"reason"`
}

// PlanPrices holds the EUR amounts of a subscription plan.
type PlanPrices struct {
	Monthly float64 `json:"monthly"`
	Yearly  float64 `json:"yearly"`
}

type Plan struct {
	ID      string     `json:"id"`
	PriceID string     `json:"priceId,omitempty"`
	Name    string     `json:"name"`
	Prices  PlanPrices `json:"prices"`
}

type BillingPlans struct {
	Basic    Plan `json:"basic"`
	Pro      Plan `json:"pro"`
	ProUltra Plan `json:"proUltra"`
}

// BillingConfig is what the browser needs to start a checkout.
type BillingConfig struct {
	PublishableKey string       `json:"publishableKey"`
	Products       BillingPlans `json:"products"`
}

type Price struct {
	ID        string  `json:"id"`
	ProductID string  `json:"productId,omitempty"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Interval  string  `json:"interval"`
	Active    bool    `json:"active"`
}

// Product is a payment-processor product with its recurring prices.
type Product struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Active      bool              `json:"active"`
	Features    []string          `json:"features,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Monthly     *Price            `json:"monthly,omitempty"`
	Yearly      *Price            `json:"yearly,omitempty"`
}

// ProductInput creates or updates a product and its two recurring prices.
type ProductInput struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Features     []string `json:"features"`
	MonthlyPrice float64  `json:"monthlyPrice"`
	YearlyPrice  float64  `json:"yearlyPrice"`
	MonthlyID    string   `json:"monthlyPriceId,omitempty"`
	YearlyID     string   `json:"yearlyPriceId,omitempty"`
}

// DashboardSummary backs the console's default panel.
type DashboardSummary struct {
	Users               int `json:"users"`
	Videos              int `json:"videos"`
	Categories          int `json:"categories"`
	PendingReports      int `json:"pendingReports"`
	UnreadNotifications int `json:"unreadNotifications"`
	AuditEntries        int `json:"auditEntries"`
	SuspiciousIPs       int `json:"suspiciousIps"`
}
