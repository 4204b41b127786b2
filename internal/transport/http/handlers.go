package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"autogate/internal/auth/service"
	"autogate/internal/idp"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenLoginRequest struct {
	Token string `json:"token"`
}

type refreshRequest struct {
	SessionID   string `json:"session_id"`
	AccessToken string `json:"access_token,omitempty"`
}

type logoutRequest struct {
	SessionID    string `json:"session_id"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Everywhere   bool   `json:"everywhere,omitempty"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorCode(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Username == "" || req.Password == "" {
		h.writeErrorCode(w, http.StatusBadRequest, "missing_credentials")
		return
	}

	view, err := h.auth.Login(r.Context(), service.LoginRequest{
		Username:  req.Username,
		Password:  req.Password,
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleTokenLogin(w http.ResponseWriter, r *http.Request) {
	var req tokenLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorCode(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Token == "" {
		h.writeErrorCode(w, http.StatusBadRequest, "missing_token")
		return
	}

	view, err := h.auth.LoginWithToken(r.Context(), req.Token, clientIP(r), r.UserAgent())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorCode(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.SessionID == "" {
		h.writeErrorCode(w, http.StatusBadRequest, "missing_session_id")
		return
	}

	view, err := h.auth.RefreshToken(r.Context(), req.SessionID, req.AccessToken)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorCode(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.SessionID == "" {
		h.writeErrorCode(w, http.StatusBadRequest, "missing_session_id")
		return
	}

	err := h.auth.Logout(r.Context(), service.LogoutRequest{
		SessionID:    req.SessionID,
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		Everywhere:   req.Everywhere,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (h *Handler) handleSessions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		h.writeErrorCode(w, http.StatusBadRequest, "missing_user_id")
		return
	}
	current := r.URL.Query().Get("session_id")

	summaries, err := h.auth.Sessions(r.Context(), userID, current)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"sessions": summaries})
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	checks := make(map[string]string, len(h.health))
	for name, check := range h.health {
		if err := check(r.Context()); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	h.writeJSON(w, status, map[string]any{"checks": checks})
}

// writeError translates domain errors into HTTP status codes. Credential and
// token failures map to 401 uniformly so callers cannot probe which part was
// wrong.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, idp.ErrInvalidCredentials):
		h.writeErrorCode(w, http.StatusUnauthorized, "invalid_credentials")
	case errors.Is(err, idp.ErrInvalidToken), errors.Is(err, idp.ErrTokenExpired):
		h.writeErrorCode(w, http.StatusUnauthorized, "invalid_token")
	case errors.Is(err, service.ErrSessionExpired):
		h.writeErrorCode(w, http.StatusUnauthorized, "session_expired")
	case errors.Is(err, service.ErrSessionNotFound):
		h.writeErrorCode(w, http.StatusNotFound, "session_not_found")
	case errors.Is(err, service.ErrStoreUnavailable):
		h.writeErrorCode(w, http.StatusServiceUnavailable, "store_unavailable")
	default:
		h.logger.Error("unhandled error in http transport", "error", err)
		h.writeErrorCode(w, http.StatusInternalServerError, "internal")
	}
}

func (h *Handler) writeErrorCode(w http.ResponseWriter, status int, code string) {
	h.writeJSON(w, status, map[string]string{"error": code})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response body", "error", err)
	}
}
