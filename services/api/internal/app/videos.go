package app

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"ivisionary/internal/util"
	"ivisionary/pkg/auth"
	"ivisionary/pkg/domain"
	"ivisionary/pkg/storage"
	"ivisionary/pkg/store"
	"ivisionary/pkg/streaming"
)

// thumbnailURLExpiry is the lifetime of presigned thumbnail links (the S3 maximum).
const thumbnailURLExpiry = 7 * 24 * time.Hour

// ListVideos returns the catalogue narrowed by filter.
func (a *App) ListVideos(ctx context.Context, filter domain.VideoFilter) ([]domain.Video, error) {
	videos, err := a.store.ListVideos(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	return videos, nil
}

// VideoCategories returns the fixed catalogue category tree.
func (a *App) VideoCategories() []domain.VideoCategory {
	return store.VideoCategories()
}

func (a *App) GetVideoByID(ctx context.Context, id string) (domain.Video, error) {
	v, ok, err := a.store.GetVideo(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Video{}, fmt.Errorf("fetch video: %w", err)
	}
	if !ok {
		return domain.Video{}, ErrNotFound
	}
	return v, nil
}

// AddVideo stores a new video with a fresh id and zeroed counters.
func (a *App) AddVideo(ctx context.Context, v domain.Video) (domain.Video, error) {
	v = sanitizeVideo(v)
	if err := validateVideo(v); err != nil {
		return domain.Video{}, err
	}
	v.ID = util.NewUUID()
	v.CreatedAt = a.now()
	v.Likes = 0
	v.Downloads = 0
	if v.Tags == nil {
		v.Tags = []string{}
	}
	if err := a.store.CreateVideo(ctx, v); err != nil {
		return domain.Video{}, fmt.Errorf("create video: %w", err)
	}
	return v, nil
}

// UpdateVideo merges patch into the stored video.
func (a *App) UpdateVideo(ctx context.Context, id string, patch domain.VideoPatch) (domain.Video, error) {
	current, err := a.GetVideoByID(ctx, id)
	if err != nil {
		return domain.Video{}, err
	}
	next := sanitizeVideo(patch.Apply(current))
	next.ID = current.ID
	next.CreatedAt = current.CreatedAt
	if err := validateVideo(next); err != nil {
		return domain.Video{}, err
	}
	if next.Likes < 0 || next.Downloads < 0 {
		verr := &ValidationError{}
		verr.add("likes", "Counters must not be negative")
		return domain.Video{}, verr
	}
	if err := a.store.UpdateVideo(ctx, next); err != nil {
		return domain.Video{}, fmt.Errorf("update video: %w", err)
	}
	return next, nil
}

func (a *App) DeleteVideo(ctx context.Context, id string) error {
	ok, err := a.store.DeleteVideo(ctx, strings.TrimSpace(id))
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// UploadThumbnail stores an image for video id and points its thumbnail at it.
func (a *App) UploadThumbnail(ctx context.Context, id, filename, contentType string, r io.Reader, size int64) (domain.Video, error) {
	v, err := a.GetVideoByID(ctx, id)
	if err != nil {
		return domain.Video{}, err
	}
	if !strings.HasPrefix(contentType, "image/") {
		verr := &ValidationError{}
		verr.add("thumbnail", "Thumbnail must be an image")
		return domain.Video{}, verr
	}
	key := storage.ThumbnailKey(v.ID, filename)
	if err := a.objects.Put(ctx, key, r, size, contentType); err != nil {
		return domain.Video{}, fmt.Errorf("store thumbnail: %w", err)
	}
	link, err := a.objects.PresignGet(ctx, key, thumbnailURLExpiry)
	if err != nil {
		return domain.Video{}, fmt.Errorf("presign thumbnail: %w", err)
	}
	v.Thumbnail = link
	if err := a.store.UpdateVideo(ctx, v); err != nil {
		return domain.Video{}, fmt.Errorf("update video: %w", err)
	}
	return v, nil
}

// CreateUploadURL asks the video host for a one-time direct upload URL.
func (a *App) CreateUploadURL(ctx context.Context, maxDurationSeconds int) (streaming.Upload, error) {
	if a.uploader == nil {
		return streaming.Upload{}, ErrUnavailable
	}
	origins := []string{}
	if a.frontendURL != "" {
		if u, err := url.Parse(a.frontendURL); err == nil && u.Host != "" {
			origins = append(origins, u.Host)
		}
	}
	upload, err := a.uploader.DirectUpload(ctx, streaming.UploadRequest{
		MaxDurationSeconds: maxDurationSeconds,
		AllowedOrigins:     origins,
	})
	if err != nil {
		return streaming.Upload{}, fmt.Errorf("direct upload: %w", err)
	}
	return upload, nil
}

// StreamDetails reports processing state of a hosted video.
func (a *App) StreamDetails(ctx context.Context, uid string) (streaming.VideoDetails, error) {
	if a.uploader == nil {
		return streaming.VideoDetails{}, ErrUnavailable
	}
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return streaming.VideoDetails{}, ErrNotFound
	}
	details, err := a.uploader.VideoDetails(ctx, uid)
	if err != nil {
		return streaming.VideoDetails{}, fmt.Errorf("video details: %w", err)
	}
	return details, nil
}

func sanitizeVideo(v domain.Video) domain.Video {
	v.Title = auth.SanitizeText(v.Title)
	v.Description = auth.SanitizeText(v.Description)
	v.Category = strings.TrimSpace(v.Category)
	v.Duration = strings.TrimSpace(v.Duration)
	v.Quality = strings.TrimSpace(v.Quality)
	v.PreviewURL = strings.TrimSpace(v.PreviewURL)
	v.DownloadURL = strings.TrimSpace(v.DownloadURL)
	v.Thumbnail = strings.TrimSpace(v.Thumbnail)
	if v.Tags != nil {
		tags := make([]string, 0, len(v.Tags))
		for _, tag := range v.Tags {
			if tag = auth.SanitizeText(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
		v.Tags = tags
	}
	return v
}

func validateVideo(v domain.Video) error {
	verr := &ValidationError{}
	if v.Title == "" {
		verr.add("title", "Title is required")
	}
	if v.Description == "" {
		verr.add("description", "Description is required")
	}
	if v.Category == "" {
		verr.add("category", "Category is required")
	}
	if v.Duration == "" {
		verr.add("duration", "Duration is required")
	}
	urls := []struct{ field, raw string }{
		{"previewUrl", v.PreviewURL},
		{"downloadUrl", v.DownloadURL},
		{"thumbnail", v.Thumbnail},
	}
	for _, u := range urls {
		if u.raw != "" && !isHTTPURL(u.raw) {
			verr.add(u.field, "Valid URL is required")
		}
	}
	return verr.err()
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
