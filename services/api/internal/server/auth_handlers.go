package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"ivisionary/pkg/domain"
	"ivisionary/services/api/internal/app"
	"ivisionary/services/api/internal/security"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string         `json:"token"`
	User  domain.Session `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, security.EventLogin, "too many login attempts") {
		return
	}
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, token, err := s.app.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	s.setTokenCookie(w, token)
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: session})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if token, ok := requestToken(r); ok {
		if err := s.app.Logout(r.Context(), token); err != nil {
			writeAppError(w, r, err)
			return
		}
	}
	s.clearTokenCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, session domain.Session) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, session)
	case http.MethodPatch:
		var req domain.ProfileUpdate
		if !decodeJSON(w, r, &req) {
			return
		}
		token, _ := requestToken(r)
		updated, err := s.app.UpdateProfile(r.Context(), token, req)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	default:
		methodNotAllowed(w)
	}
}

type registerResponse struct {
	Message string      `json:"message"`
	User    domain.User `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.registerLimiter, security.EventRegister, "too many registration attempts") {
		return
	}
	var req app.RegisterInput
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := s.app.Register(r.Context(), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{
		Message: "User registered. Please check your email to verify your account.",
		User:    user,
	})
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	token := pathID(r.URL.Path, "/api/auth/verify-email/")
	if token == "" {
		writeAppError(w, r, app.ErrInvalidVerificationToken)
		return
	}
	user, err := s.app.VerifyEmail(r.Context(), token)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Email verified successfully",
		"user":    user,
	})
}

// handleIdentity is called by the identity-provider bridge, not by browsers.
func (s *Server) handleIdentity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.validServiceKey(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req app.Identity
	if !decodeJSON(w, r, &req) {
		return
	}
	session, token, err := s.app.UpsertIdentity(r.Context(), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: session})
}

func (s *Server) validServiceKey(r *http.Request) bool {
	if s.serviceKey == "" {
		return false
	}
	got := strings.TrimSpace(r.Header.Get(serviceKeyHeader))
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.serviceKey)) == 1
}

func (s *Server) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
