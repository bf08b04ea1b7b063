package store

import (
	"strconv"
	"time"

	"ivisionary/pkg/domain"
)

// SeedVideos returns the demo catalogue.
func SeedVideos(now time.Time) []domain.Video {
	const gtv = "https://storage.googleapis.com/gtv-videos-bucket/sample/"
	const unsplash = "?ixlib=rb-1.2.1&auto=format&fit=crop&w=1920&q=80"
	return []domain.Video{
		{
			ID:          "1",
			Title:       "Ocean Waves",
			Description: "Calming ocean waves on a sunny day",
			Category:    "Nature",
			Tags:        []string{"nature", "ocean", "4k"},
			PreviewURL:  gtv + "ForBiggerBlazes.mp4",
			DownloadURL: gtv + "ForBiggerBlazes.mp4",
			Thumbnail:   "https://images.unsplash.com/photo-1518837695005-2083093ee35b" + unsplash,
			Duration:    "0:30",
			Quality:     "4K",
			CreatedAt:   now,
			Likes:       45,
			Downloads:   23,
		},
		{
			ID:          "2",
			Title:       "City Life",
			Description: "Urban landscapes and city vibes",
			Category:    "Urban",
			Tags:        []string{"city", "urban", "timelapse"},
			PreviewURL:  gtv + "BigBuckBunny.mp4",
			DownloadURL: gtv + "BigBuckBunny.mp4",
			Thumbnail:   "https://images.unsplash.com/photo-1477959858617-67f85cf4f1df" + unsplash,
			Duration:    "1:45",
			Quality:     "1080p",
			CreatedAt:   now,
			Likes:       32,
			Downloads:   15,
		},
		{
			ID:          "3",
			Title:       "Mountain Adventure",
			Description: "Epic mountain landscapes and adventures",
			Category:    "Nature",
			Tags:        []string{"mountains", "adventure", "scenic"},
			PreviewURL:  gtv + "ElephantsDream.mp4",
			DownloadURL: gtv + "ElephantsDream.mp4",
			Thumbnail:   "https://images.unsplash.com/photo-1464822759023-fed622ff2c3b" + unsplash,
			Duration:    "2:15",
			Quality:     "4K",
			CreatedAt:   now,
			Likes:       67,
			Downloads:   42,
		},
	}
}

// VideoCategories is the fixed catalogue tree shown to browsing users.
func VideoCategories() []domain.VideoCategory {
	return []domain.VideoCategory{
		{Name: "Nature", Subcategories: []string{"Landscapes", "Wildlife", "Weather"}},
		{Name: "Urban", Subcategories: []string{"City Life", "Architecture", "Street Art"}},
		{Name: "Technology", Subcategories: []string{"AI", "Robotics", "Digital Art"}},
	}
}

// SeedCategories returns the admin category list with orders 1..3.
func SeedCategories() []domain.Category {
	tree := VideoCategories()
	out := make([]domain.Category, 0, len(tree))
	for i, c := range tree {
		out = append(out, domain.Category{
			ID:            strconv.Itoa(i + 1),
			Name:          c.Name,
			Subcategories: c.Subcategories,
			Order:         i + 1,
		})
	}
	return out
}

// SeedReports returns the moderation queue demo entries.
func SeedReports(now time.Time) []domain.Report {
	return []domain.Report{
		{ID: "1", VideoID: "V001", Reason: "Contenido inapropiado", Status: domain.ReportPending, Timestamp: now},
		{ID: "2", VideoID: "V002", Reason: "Derechos de autor", Status: domain.ReportReviewed, Timestamp: now},
		{ID: "3", VideoID: "V003", Reason: "Spam", Status: domain.ReportPending, Timestamp: now},
	}
}

// SeedNotifications returns the demo notification feed.
func SeedNotifications(now time.Time) []domain.Notification {
	return []domain.Notification{
		{
			ID:        "1",
			Type:      "video_request",
			Message:   "Nueva solicitud de video personalizado",
			Timestamp: now,
			Priority:  domain.PriorityHigh,
			Data: map[string]any{
				"requestId": "123",
				"userId":    "user123",
				"planType":  "pro",
			},
		},
	}
}
