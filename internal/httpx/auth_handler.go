package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-shop-api.git/internal/auth"
	"github.com/go-chi/chi/v5"
)

type AuthHandler struct {
	Users  auth.UserStore
	Signer *auth.TokenSigner
	Log    *slog.Logger
}

type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(r *chi.Mux) {
	r.Post("/auth/register", h.register)
	r.Post("/auth/login", h.login)
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, apiError{Code: "invalid_json"})
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || len(req.Password) < 8 {
		writeErr(w, http.StatusBadRequest, apiError{Code: "invalid_credentials", Message: "email and password (min 8 chars) required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, apiError{Code: "internal"})
		return
	}
	id, err := h.Users.CreateUser(ctx, req.Email, hash)
	if errors.Is(err, auth.ErrEmailTaken) {
		writeErr(w, http.StatusConflict, apiError{Code: "email_taken"})
		return
	}
	if err != nil {
		h.Log.Error("create user", "err", err)
		writeErr(w, http.StatusInternalServerError, apiError{Code: "internal"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"user_id": id})
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, apiError{Code: "invalid_json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.UserByEmail(ctx, strings.TrimSpace(strings.ToLower(req.Email)))
	if errors.Is(err, auth.ErrUserNotFound) || (err == nil && !auth.CheckPassword(u.PasswordHash, req.Password)) {
		writeErr(w, http.StatusUnauthorized, apiError{Code: "bad_credentials"})
		return
	}
	if err != nil {
		h.Log.Error("user lookup", "err", err)
		writeErr(w, http.StatusInternalServerError, apiError{Code: "internal"})
		return
	}

	token, exp, err := h.Signer.Sign(u.ID, u.IsAdmin)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, apiError{Code: "internal"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "expires_at": exp})
}
