package server

import (
	"net/http"
	"time"

	"ivisionary/pkg/domain"
	"ivisionary/pkg/streaming"
	"ivisionary/services/api/internal/app"
	"ivisionary/services/api/internal/console"
)

// handleConsole guards the back office. Non-admins are sent to the login page.
func (s *Server) handleConsole(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	var current *domain.Session
	if session, ok := s.authorize(r); ok {
		current = &session
	}
	if console.Decide(console.PrincipalFromSession(current), domain.RoleAdmin) != console.Allow {
		http.Redirect(w, r, console.LoginPath, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, console.NewShell(*current, r.URL.Query().Get("tab")))
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, _ domain.Session) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	summary, err := s.app.Dashboard(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// users

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request, actor domain.Session) {
	switch r.Method {
	case http.MethodGet:
		users, err := s.app.ListUsers(r.Context())
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": users,
			"count": len(users),
		})
	case http.MethodPost:
		var req app.NewUserInput
		if !decodeJSON(w, r, &req) {
			return
		}
		user, err := s.app.CreateUser(r.Context(), actor, req)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, user)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleAdminUserByID(w http.ResponseWriter, r *http.Request, actor domain.Session) {
	id := pathID(r.URL.Path, "/api/admin/users/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodPatch:
		var req app.UserUpdate
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Role == nil && req.Status == nil {
			writeError(w, http.StatusBadRequest, "role or status is required")
			return
		}
		updated, err := s.app.UpdateUser(r.Context(), actor, id, req)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := s.app.DeleteUser(r.Context(), actor, id); err != nil {
			writeAppError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

// videos

func (s *Server) handleAdminVideos(w http.ResponseWriter, r *http.Request, _ domain.Session) {
	switch r.Method {
	case http.MethodGet:
		videos, err := s.app.ListVideos(r.Context(), domain.VideoFilter{
			Category: r.URL.Query().Get("category"),
			Search:   r.URL.Query().Get("search"),
		})
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": videos,
			"count": len(videos),
		})
	case http.MethodPost:
		var req domain.Video
		if !decodeJSON(w, r, &req) {
			return
		}
		video, err := s.app.AddVideo(r.Context(), req)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, video)
	default:
		methodNotAllowed(w)
	}
}

type uploadURLRequest struct {
	MaxDurationSeconds int `json:"maxDurationSeconds"`
}

func (s *Server) handleAdminVideoByID(w http.ResponseWriter, r *http.Request, _ domain.Session) {
	parts := pathSegments(r.URL.Path, "/api/admin/videos/")
	switch {
	case len(parts) == 1 && parts[0] == "upload-url":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		req := uploadURLRequest{MaxDurationSeconds: streaming.DefaultMaxDurationSeconds}
		if r.ContentLength > 0 && !decodeJSON(w, r, &req) {
			return
		}
		upload, err := s.app.CreateUploadURL(r.Context(), req.MaxDurationSeconds)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, upload)
	case len(parts) == 2 && parts[0] == "stream":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		details, err := s.app.StreamDetails(r.Context(), parts[1])
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, details)
	case len(parts) == 2 && parts[1] == "thumbnail":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		s.handleThumbnailUpload(w, r, parts[0])
	case len(parts) == 1:
		s.handleAdminVideo(w, r, parts[0])
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleAdminVideo(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		video, err := s.app.GetVideoByID(r.Context(), id)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, video)
	case http.MethodPatch, http.MethodPut:
		var req domain.VideoPatch
		if !decodeJSON(w, r, &req) {
			return
		}
		video, err := s.app.UpdateVideo(r.Context(), id, req)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, video)
	case http.MethodDelete:
		if err := s.app.DeleteVideo(r.Context(), id); err != nil {
			writeAppError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleThumbnailUpload(w http.ResponseWriter, r *http.Request, id string) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	file, header, err := r.FormFile("thumbnail")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required (field: thumbnail)")
		return
	}
	defer file.Close()
	video, err := s.app.UploadThumbnail(r.Context(), id, header.Filename, header.Header.Get("Content-Type"), file, header.Size)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, video)
}

// categories

func (s *Server) handleAdminCategories(w http.ResponseWriter, r *http.Request, _ domain.Session) {
	switch r.Method {
	case http.MethodGet:
		s.handleCategories(w, r)
	case http.MethodPost:
		var req app.CategoryInput
		if !decodeJSON(w, r, &req) {
			return
		}
		cat, err := s.app.AddCategory(r.Context(), req)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, cat)
	default:
		methodNotAllowed(w)
	}
}

type moveRequest struct {
	Direction domain.MoveDirection `json:"direction"`
}

func (s *Server) handleAdminCategoryByID(w http.ResponseWriter, r *http.Request, _ domain.Session) {
	parts := pathSegments(r.URL.Path, "/api/admin/categories/")
	switch {
	case len(parts) == 2 && parts[1] == "move":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var req moveRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		cats, err := s.app.MoveCategory(r.Context(), parts[0], req.Direction)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, cats)
	case len(parts) == 1:
		switch r.Method {
		case http.MethodPatch, http.MethodPut:
			var req app.CategoryInput
			if !decodeJSON(w, r, &req) {
				return
			}
			cat, err := s.app.UpdateCategory(r.Context(), parts[0], req)
			if err != nil {
				writeAppError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, cat)
		case http.MethodDelete:
			if err := s.app.DeleteCategory(r.Context(), parts[0]); err != nil {
				writeAppError(w, r, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			methodNotAllowed(w)
		}
	default:
		http.NotFound(w, r)
	}
}

// reports

func (s *Server) handleAdminReports(w http.ResponseWriter, r *http.Request, _ domain.Session) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	reports, err := s.app.ListReports(r.Context(), app.ReportFilter{
		Status:  domain.ReportStatus(q.Get("status")),
		VideoID: q.Get("videoId"),
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": reports,
		"count": len(reports),
	})
}

type reportStatusRequest struct {
	Status domain.ReportStatus `json:"status"`
}

func (s *Server) handleAdminReportByID(w http.ResponseWriter, r *http.Request, _ domain.Session) {
	id := pathID(r.URL.Path, "/api/admin/reports/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodPatch:
		var req reportStatusRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		report, err := s.app.UpdateReportStatus(r.Context(), id, req.Status)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	case http.MethodDelete:
		if err := s.app.DeleteReport(r.Context(), id); err != nil {
			writeAppError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

// notifications

func (s *Server) handleAdminNotifications(w http.ResponseWriter, r *http.Request, _ domain.Session) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	notes, err := s.app.ListNotifications(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	unread, err := s.app.UnreadNotificationCount(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":  notes,
		"count":  len(notes),
		"unread": unread,
	})
}

func (s *Server) handleAdminNotificationByID(w http.ResponseWriter, r *http.Request, _ domain.Session) {
	if r.Method != http.MethodPost && r.Method != http.MethodPatch {
		methodNotAllowed(w)
		return
	}
	parts := pathSegments(r.URL.Path, "/api/admin/notifications/")
	switch {
	case len(parts) == 1 && parts[0] == "read-all":
		n, err := s.app.MarkAllNotificationsRead(r.Context())
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"updated": n})
	case len(parts) == 2 && parts[1] == "read":
		note, err := s.app.MarkNotificationRead(r.Context(), parts[0])
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, note)
	default:
		http.NotFound(w, r)
	}
}

// audit & security

func (s *Server) handleAuditLogs(w http.ResponseWriter, r *http.Request, _ domain.Session) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		query := app.AuditLogQuery{IP: q.Get("ip")}
		var ok bool
		if query.From, ok = parseTimeParam(w, q.Get("from"), "from"); !ok {
			return
		}
		if query.To, ok = parseTimeParam(w, q.Get("to"), "to"); !ok {
			return
		}
		entries := s.app.AuditLogs(query)
		writeJSON(w, http.StatusOK, map[string]any{
			"items": entries,
			"count": len(entries),
		})
	case http.MethodDelete:
		s.app.ClearAuditLogs()
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

func parseTimeParam(w http.ResponseWriter, raw, name string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name+" (RFC 3339 expected)")
		return time.Time{}, false
	}
	return t, true
}

func (s *Server) handleSecurity(w http.ResponseWriter, r *http.Request, _ domain.Session) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, s.app.Security())
}

type blockRequest struct {
	IP     string `json:"ip"`
	Reason string `json:"reason"`
}

func (s *Server) handleSecuritySub(w http.ResponseWriter, r *http.Request, _ domain.Session) {
	parts := pathSegments(r.URL.Path, "/api/admin/security/")
	switch {
	case len(parts) == 1 && parts[0] == "thresholds":
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, s.app.SecurityThresholds())
		case http.MethodPut, http.MethodPatch:
			var req domain.SecurityThresholds
			if !decodeJSON(w, r, &req) {
				return
			}
			updated, err := s.app.UpdateSecurityThresholds(req)
			if err != nil {
				writeAppError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, updated)
		default:
			methodNotAllowed(w)
		}
	case len(parts) == 1 && parts[0] == "blocked":
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, s.app.BlockedIPs())
		case http.MethodPost:
			var req blockRequest
			if !decodeJSON(w, r, &req) {
				return
			}
			entry, err := s.app.BlockIP(req.IP, req.Reason)
			if err != nil {
				writeAppError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, entry)
		default:
			methodNotAllowed(w)
		}
	case len(parts) == 2 && parts[0] == "blocked":
		if r.Method != http.MethodDelete {
			methodNotAllowed(w)
			return
		}
		if err := s.app.UnblockIP(parts[1]); err != nil {
			writeAppError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}
