package server

import (
	"net/http"

	"ivisionary/pkg/domain"
)

func (s *Server) handleVideos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	videos, err := s.app.ListVideos(r.Context(), domain.VideoFilter{
		Category: q.Get("category"),
		Search:   q.Get("search"),
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":      videos,
		"count":      len(videos),
		"categories": s.app.VideoCategories(),
	})
}

func (s *Server) handleVideoByID(w http.ResponseWriter, r *http.Request) {
	id := pathID(r.URL.Path, "/api/videos/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	video, err := s.app.GetVideoByID(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, video)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	cats, err := s.app.ListCategories(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

type reportRequest struct {
	VideoID string `json:"videoId"`
	Reason  string `json:"reason"`
}

func (s *Server) handleSubmitReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req reportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	report, err := s.app.AddReport(r.Context(), req.VideoID, req.Reason)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}
