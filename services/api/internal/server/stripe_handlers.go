package server

import (
	"net/http"

	"ivisionary/pkg/domain"
)

// handleStripeConfig serves checkout configuration publicly; updates need an admin.
func (s *Server) handleStripeConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.app.BillingConfig())
	case http.MethodPost, http.MethodPut:
		s.adminOnly(func(w http.ResponseWriter, r *http.Request, _ domain.Session) {
			var req domain.BillingConfig
			if !decodeJSON(w, r, &req) {
				return
			}
			cfg, err := s.app.UpdateBillingConfig(req)
			if err != nil {
				writeAppError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, cfg)
		}).ServeHTTP(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleStripeProducts(w http.ResponseWriter, r *http.Request, _ domain.Session) {
	switch r.Method {
	case http.MethodGet:
		products, err := s.app.ListProducts(r.Context())
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": products,
			"count": len(products),
		})
	case http.MethodPost:
		var req domain.ProductInput
		if !decodeJSON(w, r, &req) {
			return
		}
		product, err := s.app.CreateProduct(r.Context(), req)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, product)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleStripeProductByID(w http.ResponseWriter, r *http.Request, _ domain.Session) {
	id := pathID(r.URL.Path, "/api/stripe/products/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodPatch, http.MethodPut:
		var req domain.ProductInput
		if !decodeJSON(w, r, &req) {
			return
		}
		product, err := s.app.UpdateProduct(r.Context(), id, req)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, product)
	case http.MethodDelete:
		if err := s.app.DeleteProduct(r.Context(), id); err != nil {
			writeAppError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleStripeSync(w http.ResponseWriter, r *http.Request, _ domain.Session) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	res, err := s.app.SyncProducts(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
