package server

import (
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// AdminLoginRequest is the request body for POST /api/admin/login.
type AdminLoginRequest struct {
	Secret string `json:"secret"`
}

// AdminMeResponse is the response for GET /api/admin/me.
type AdminMeResponse struct {
	Authenticated bool `json:"authenticated"`
}

const adminSessionTTL = 7 * 24 * time.Hour

func handleAdminLogin(d *deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AdminLoginRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
			return
		}
		if req.Secret == "" {
			writeError(w, http.StatusBadRequest, "invalid_input", "secret is required")
			return
		}

		if err := bcrypt.CompareHashAndPassword(d.adminHash, []byte(req.Secret)); err != nil {
			d.logger.Warn("admin login rejected", "remote_addr", r.RemoteAddr)
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
			return
		}

		sessionID, err := d.store.CreateAdminSession(r.Context())
		if err != nil {
			writeDomainError(w, d.logger, err)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     adminCookieName,
			Value:    sessionID,
			Path:     "/",
			MaxAge:   int(adminSessionTTL / time.Second),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})

		writeJSON(w, http.StatusOK, AdminMeResponse{Authenticated: true})
	}
}

func handleAdminMe(d *deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, AdminMeResponse{Authenticated: adminSessionFrom(r) != ""})
	}
}

func handleAdminLogout(d *deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(adminCookieName)
		if err == nil && cookie.Value != "" {
			if err := d.store.DeleteAdminSession(r.Context(), cookie.Value); err != nil {
				d.logger.Warn("deleting admin session", "error", err)
			}
		}

		http.SetCookie(w, &http.Cookie{
			Name:     adminCookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})

		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
