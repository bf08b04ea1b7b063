package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"ivisionary/pkg/domain"
)

const migrateLockID int64 = 48151623

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&UserModel{},
			&VideoModel{},
			&CategoryModel{},
			&ReportModel{},
			&NotificationModel{},
			&AuditLogModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// Seed inserts the demo catalogue when the video table is empty.
func (s *GormStore) Seed(ctx context.Context, now time.Time) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&VideoModel{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, v := range SeedVideos(now) {
			model := videoToModel(v)
			if err := tx.Create(&model).Error; err != nil {
				return fmt.Errorf("seed video %s: %w", v.ID, err)
			}
		}
		for _, c := range SeedCategories() {
			model := categoryToModel(c)
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&model).Error; err != nil {
				return fmt.Errorf("seed category %s: %w", c.ID, err)
			}
		}
		for _, r := range SeedReports(now) {
			model := reportToModel(r)
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&model).Error; err != nil {
				return fmt.Errorf("seed report %s: %w", r.ID, err)
			}
		}
		for _, n := range SeedNotifications(now) {
			model := notificationToModel(n)
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&model).Error; err != nil {
				return fmt.Errorf("seed notification %s: %w", n.ID, err)
			}
		}
		return nil
	})
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

func first[M any](tx *gorm.DB, conds ...any) (M, bool, error) {
	var model M
	if err := tx.First(&model, conds...).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model, false, nil
		}
		return model, false, err
	}
	return model, true, nil
}

// users

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(ctx context.Context, u domain.User) error {
	model := userToModel(u)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"username", "email", "password_hash", "role", "status", "is_verified",
			"verification_token_hash", "verification_token_expires",
			"provider", "provider_uid", "photo_url", "subscription", "updated_at", "last_login",
		}),
	}).Create(&model).Error
}

func (s *GormStore) GetUserByID(ctx context.Context, id string) (domain.User, bool, error) {
	return s.getUser(ctx, "id = ?", id)
}

func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error) {
	return s.getUser(ctx, "LOWER(email) = ?", strings.ToLower(email))
}

func (s *GormStore) GetUserByUsername(ctx context.Context, username string) (domain.User, bool, error) {
	return s.getUser(ctx, "username = ?", username)
}

func (s *GormStore) GetUserByProvider(ctx context.Context, provider, uid string) (domain.User, bool, error) {
	return s.getUser(ctx, "provider = ? AND provider_uid = ?", provider, uid)
}

func (s *GormStore) GetUserByVerificationHash(ctx context.Context, hash string, now time.Time) (domain.User, bool, error) {
	if hash == "" {
		return domain.User{}, false, nil
	}
	return s.getUser(ctx, "verification_token_hash = ? AND verification_token_expires > ?", hash, now.UTC())
}

func (s *GormStore) getUser(ctx context.Context, query string, args ...any) (domain.User, bool, error) {
	model, ok, err := first[UserModel](s.db.WithContext(ctx).Where(query, args...))
	if err != nil || !ok {
		return domain.User{}, ok, err
	}
	return userFromModel(model), true, nil
}

// ListUsers returns all users ordered by created_at.
func (s *GormStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	var models []UserModel
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

func (s *GormStore) DeleteUser(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Delete(&UserModel{}, "id = ?", id)
	return res.RowsAffected > 0, res.Error
}

func (s *GormStore) UserCount(ctx context.Context) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&UserModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// videos

func (s *GormStore) ListVideos(ctx context.Context, filter domain.VideoFilter) ([]domain.Video, error) {
	tx := s.db.WithContext(ctx).Order("created_at ASC").Order("id ASC")
	if filter.Category != "" {
		tx = tx.Where("LOWER(category) = ?", strings.ToLower(filter.Category))
	}
	var models []VideoModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Video, 0, len(models))
	for _, m := range models {
		v := videoFromModel(m)
		// tags live in jsonb, so search filtering stays in Go
		if MatchVideo(v, filter) {
			res = append(res, v)
		}
	}
	return res, nil
}

func (s *GormStore) GetVideo(ctx context.Context, id string) (domain.Video, bool, error) {
	model, ok, err := first[VideoModel](s.db.WithContext(ctx), "id = ?", id)
	if err != nil || !ok {
		return domain.Video{}, ok, err
	}
	return videoFromModel(model), true, nil
}

func (s *GormStore) CreateVideo(ctx context.Context, v domain.Video) error {
	model := videoToModel(v)
	return s.db.WithContext(ctx).Create(&model).Error
}

func (s *GormStore) UpdateVideo(ctx context.Context, v domain.Video) error {
	model := videoToModel(v)
	return s.db.WithContext(ctx).Save(&model).Error
}

func (s *GormStore) DeleteVideo(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Delete(&VideoModel{}, "id = ?", id)
	return res.RowsAffected > 0, res.Error
}

// categories

func (s *GormStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var models []CategoryModel
	if err := s.db.WithContext(ctx).Order("sort_order ASC").Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Category, 0, len(models))
	for _, m := range models {
		res = append(res, categoryFromModel(m))
	}
	return res, nil
}

// SaveCategories upserts categories in one transaction.
func (s *GormStore) SaveCategories(ctx context.Context, cats ...domain.Category) error {
	if len(cats) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, c := range cats {
			model := categoryToModel(c)
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"name", "subcategories", "sort_order"}),
			}).Create(&model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *GormStore) DeleteCategory(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Delete(&CategoryModel{}, "id = ?", id)
	return res.RowsAffected > 0, res.Error
}

// reports

func (s *GormStore) ListReports(ctx context.Context) ([]domain.Report, error) {
	var models []ReportModel
	if err := s.db.WithContext(ctx).Order("timestamp ASC").Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Report, 0, len(models))
	for _, m := range models {
		res = append(res, reportFromModel(m))
	}
	return res, nil
}

func (s *GormStore) GetReport(ctx context.Context, id string) (domain.Report, bool, error) {
	model, ok, err := first[ReportModel](s.db.WithContext(ctx), "id = ?", id)
	if err != nil || !ok {
		return domain.Report{}, ok, err
	}
	return reportFromModel(model), true, nil
}

func (s *GormStore) SaveReport(ctx context.Context, r domain.Report) error {
	model := reportToModel(r)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"video_id", "reason", "status"}),
	}).Create(&model).Error
}

func (s *GormStore) DeleteReport(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Delete(&ReportModel{}, "id = ?", id)
	return res.RowsAffected > 0, res.Error
}

// notifications

func (s *GormStore) ListNotifications(ctx context.Context) ([]domain.Notification, error) {
	var models []NotificationModel
	if err := s.db.WithContext(ctx).Order("timestamp DESC").Order("id DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Notification, 0, len(models))
	for _, m := range models {
		res = append(res, notificationFromModel(m))
	}
	return res, nil
}

func (s *GormStore) GetNotification(ctx context.Context, id string) (domain.Notification, bool, error) {
	model, ok, err := first[NotificationModel](s.db.WithContext(ctx), "id = ?", id)
	if err != nil || !ok {
		return domain.Notification{}, ok, err
	}
	return notificationFromModel(model), true, nil
}

func (s *GormStore) SaveNotification(ctx context.Context, n domain.Notification) error {
	model := notificationToModel(n)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"type", "message", "read", "priority", "data"}),
	}).Create(&model).Error
}

func (s *GormStore) MarkAllNotificationsRead(ctx context.Context) (int, error) {
	res := s.db.WithContext(ctx).Model(&NotificationModel{}).Where("read = ?", false).Update("read", true)
	return int(res.RowsAffected), res.Error
}

// audit archive

func (s *GormStore) AppendAuditEntry(ctx context.Context, e domain.AuditEntry) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("encode audit details: %w", err)
	}
	model := AuditLogModel{
		ID:        e.ID,
		Timestamp: e.Timestamp.UTC(),
		Action:    e.Action,
		Details:   details,
		IPAddress: e.IPAddress,
		Status:    string(e.Status),
	}
	return s.db.WithContext(ctx).Create(&model).Error
}

// converters

func userToModel(u domain.User) UserModel {
	var hash *string
	if u.VerificationTokenHash != "" {
		value := u.VerificationTokenHash
		hash = &value
	}
	return UserModel{
		ID:                       u.ID,
		Username:                 u.Username,
		Email:                    u.Email,
		PasswordHash:             u.PasswordHash,
		Role:                     string(u.Role),
		Status:                   string(u.Status),
		IsVerified:               u.IsVerified,
		VerificationTokenHash:    hash,
		VerificationTokenExpires: u.VerificationTokenExpires,
		Provider:                 u.Provider,
		ProviderUID:              u.ProviderUID,
		PhotoURL:                 u.PhotoURL,
		Subscription:             u.Subscription,
		CreatedAt:                u.CreatedAt,
		UpdatedAt:                u.UpdatedAt,
		LastLogin:                u.LastLogin,
	}
}

func userFromModel(m UserModel) domain.User {
	hash := ""
	if m.VerificationTokenHash != nil {
		hash = *m.VerificationTokenHash
	}
	return domain.User{
		ID:                       m.ID,
		Username:                 m.Username,
		Email:                    m.Email,
		PasswordHash:             m.PasswordHash,
		Role:                     domain.UserRole(m.Role),
		Status:                   domain.UserStatus(m.Status),
		IsVerified:               m.IsVerified,
		VerificationTokenHash:    hash,
		VerificationTokenExpires: m.VerificationTokenExpires,
		Provider:                 m.Provider,
		ProviderUID:              m.ProviderUID,
		PhotoURL:                 m.PhotoURL,
		Subscription:             m.Subscription,
		CreatedAt:                m.CreatedAt,
		UpdatedAt:                m.UpdatedAt,
		LastLogin:                m.LastLogin,
	}
}

func videoToModel(v domain.Video) VideoModel {
	return VideoModel{
		ID:          v.ID,
		Title:       v.Title,
		Description: v.Description,
		Category:    v.Category,
		Tags:        v.Tags,
		PreviewURL:  v.PreviewURL,
		DownloadURL: v.DownloadURL,
		Thumbnail:   v.Thumbnail,
		Duration:    v.Duration,
		Quality:     v.Quality,
		StreamUID:   v.StreamUID,
		Likes:       v.Likes,
		Downloads:   v.Downloads,
		CreatedAt:   v.CreatedAt,
	}
}

func videoFromModel(m VideoModel) domain.Video {
	return domain.Video{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Category:    m.Category,
		Tags:        []string(m.Tags),
		PreviewURL:  m.PreviewURL,
		DownloadURL: m.DownloadURL,
		Thumbnail:   m.Thumbnail,
		Duration:    m.Duration,
		Quality:     m.Quality,
		StreamUID:   m.StreamUID,
		Likes:       m.Likes,
		Downloads:   m.Downloads,
		CreatedAt:   m.CreatedAt,
	}
}

func categoryToModel(c domain.Category) CategoryModel {
	return CategoryModel{
		ID:            c.ID,
		Name:          c.Name,
		Subcategories: c.Subcategories,
		SortOrder:     c.Order,
	}
}

func categoryFromModel(m CategoryModel) domain.Category {
	return domain.Category{
		ID:            m.ID,
		Name:          m.Name,
		Subcategories: []string(m.Subcategories),
		Order:         m.SortOrder,
	}
}

func reportToModel(r domain.Report) ReportModel {
	return ReportModel{
		ID:        r.ID,
		VideoID:   r.VideoID,
		Reason:    r.Reason,
		Status:    string(r.Status),
		Timestamp: r.Timestamp,
	}
}

func reportFromModel(m ReportModel) domain.Report {
	return domain.Report{
		ID:        m.ID,
		VideoID:   m.VideoID,
		Reason:    m.Reason,
		Status:    domain.ReportStatus(m.Status),
		Timestamp: m.Timestamp,
	}
}

func notificationToModel(n domain.Notification) NotificationModel {
	data, _ := json.Marshal(n.Data)
	return NotificationModel{
		ID:        n.ID,
		Type:      n.Type,
		Message:   n.Message,
		Read:      n.Read,
		Priority:  string(n.Priority),
		Data:      data,
		Timestamp: n.Timestamp,
	}
}

func notificationFromModel(m NotificationModel) domain.Notification {
	var data map[string]any
	if len(m.Data) > 0 {
		_ = json.Unmarshal(m.Data, &data)
	}
	return domain.Notification{
		ID:        m.ID,
		Type:      m.Type,
		Message:   m.Message,
		Timestamp: m.Timestamp,
		Read:      m.Read,
		Priority:  domain.Priority(m.Priority),
		Data:      data,
	}
}
