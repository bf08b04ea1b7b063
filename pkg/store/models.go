package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID                       string `gorm:"primaryKey"`
	Username                 string `gorm:"uniqueIndex;not null"`
	Email                    string `gorm:"uniqueIndex;not null"`
	PasswordHash             string
	Role                     string  `gorm:"not null"`
	Status                   string  `gorm:"not null;default:active"`
	IsVerified               bool    `gorm:"not null;default:false"`
	VerificationTokenHash    *string `gorm:"index"`
	VerificationTokenExpires *time.Time
	Provider                 string `gorm:"index:idx_user_provider"`
	ProviderUID              string `gorm:"index:idx_user_provider"`
	PhotoURL                 string
	Subscription             string
	CreatedAt                time.Time `gorm:"not null"`
	UpdatedAt                time.Time
	LastLogin                *time.Time
}

type VideoModel struct {
	ID          string                      `gorm:"primaryKey"`
	Title       string                      `gorm:"not null"`
	Description string                      `gorm:"type:text;not null"`
	Category    string                      `gorm:"not null;index"`
	Tags        datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	PreviewURL  string
	DownloadURL string
	Thumbnail   string
	Duration    string `gorm:"not null"`
	Quality     string
	StreamUID   string
	Likes       int       `gorm:"not null;default:0"`
	Downloads   int       `gorm:"not null;default:0"`
	CreatedAt   time.Time `gorm:"not null;index"`
}

type CategoryModel struct {
	ID            string                      `gorm:"primaryKey"`
	Name          string                      `gorm:"not null"`
	Subcategories datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	SortOrder     int                         `gorm:"not null;index"`
}

type ReportModel struct {
	ID        string    `gorm:"primaryKey"`
	VideoID   string    `gorm:"not null;index"`
	Reason    string    `gorm:"type:text;not null"`
	Status    string    `gorm:"not null;index"`
	Timestamp time.Time `gorm:"not null;index"`
}

type NotificationModel struct {
	ID        string         `gorm:"primaryKey"`
	Type      string         `gorm:"not null"`
	Message   string         `gorm:"type:text;not null"`
	Read      bool           `gorm:"not null;default:false;index"`
	Priority  string         `gorm:"not null"`
	Data      datatypes.JSON `gorm:"type:jsonb"`
	Timestamp time.Time      `gorm:"not null;index"`
}

type AuditLogModel struct {
	ID        string         `gorm:"primaryKey"`
	Timestamp time.Time      `gorm:"not null;index"`
	Action    string         `gorm:"size:100;not null;index"`
	Details   datatypes.JSON `gorm:"type:jsonb"`
	IPAddress string         `gorm:"size:45;index"`
	Status    string         `gorm:"size:16;not null"`
}

func (AuditLogModel) TableName() string {
	return "audit_logs"
}
