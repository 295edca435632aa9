package httpapi

import (
	"net/http"
	"strings"
	"time"

	"qms/callboard-service/internal/models"

	"github.com/go-chi/chi/v5"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type updatePasswordRequest struct {
	Password string `json:"password"`
}

type userInfo struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type statusResponse struct {
	Status string `json:"status"`
}

func toUserInfo(user models.User) userInfo {
	return userInfo{
		ID:        user.ID,
		Username:  user.Username,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, requestID(r), http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}

	user, ok, err := h.users.FindByCredentials(r.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !ok {
		writeError(w, requestID(r), http.StatusUnauthorized, "invalid_credentials", "invalid username or password")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Username: user.Username, Role: user.Role})
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	all, err := h.users.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]userInfo, 0, len(all))
	for _, user := range all {
		out = append(out, toUserInfo(user))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.users.Create(r.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserInfo(user))
}

func (h *Handler) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req updatePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	username := chi.URLParam(r, "username")
	if err := h.users.UpdatePassword(r.Context(), username, req.Password); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if err := h.users.Delete(r.Context(), username); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}
