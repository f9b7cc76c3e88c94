package httpapi

import (
	"net/http"
	"time"

	"github.com/FallyxInc/cortex-behaviours/internal/service"

	"go.uber.org/zap"
)

type UsersHandler struct {
	users  service.UserService
	logger *zap.Logger
}

func NewUsersHandler(users service.UserService, logger *zap.Logger) *UsersHandler {
	return &UsersHandler{users: users, logger: logger}
}

// ListUsers GET /api/admin/users
func (h *UsersHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	resp, err := h.users.ListUsers(r.Context())
	if err != nil {
		writeError(w, err, "Failed to fetch users")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"users":   resp.Items,
	})
}

// CreateUser POST /api/admin/users/create
func (h *UsersHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := readBodyJSON(r, maxJSONBody, &payload); err != nil {
		writeValidation(w, "invalid body")
		return
	}

	resp, err := h.users.CreateUser(r.Context(), service.CreateUserRequest{
		Username: payload.Username,
		Email:    payload.Email,
		Password: payload.Password,
		Role:     payload.Role,
	})
	if err != nil {
		writeError(w, err, "Failed to create user")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"userId":  resp.UserID,
	})
}

// UpdateUserRole PATCH /api/admin/users/{id}/role
func (h *UsersHandler) UpdateUserRole(w http.ResponseWriter, r *http.Request, userID string) {
	var payload struct {
		Role string `json:"role"`
	}
	if err := readBodyJSON(r, maxJSONBody, &payload); err != nil {
		writeValidation(w, "invalid body")
		return
	}
	if err := h.users.UpdateUserRole(r.Context(), service.UpdateUserRoleRequest{UserID: userID, Role: payload.Role}); err != nil {
		writeError(w, err, "Failed to update role")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// DeleteUser DELETE /api/admin/users with body {userId}
func (h *UsersHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID string `json:"userId"`
	}
	if err := readBodyJSON(r, maxJSONBody, &payload); err != nil {
		writeValidation(w, "invalid body")
		return
	}
	if err := h.users.DeleteUser(r.Context(), service.DeleteUserRequest{UserID: payload.UserID}); err != nil {
		writeError(w, err, "Failed to delete user")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// ExportUsers GET /api/admin/users/export
func (h *UsersHandler) ExportUsers(w http.ResponseWriter, r *http.Request) {
	resp, err := h.users.ListUsers(r.Context())
	if err != nil {
		writeError(w, err, "Failed to fetch users")
		return
	}
	data, err := GenerateUsersExport(resp.Items)
	if err != nil {
		h.logger.Error("Failed to generate users export", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error: "Failed to generate export", Kind: string(service.KindInternal), Details: err.Error(),
		})
		return
	}

	filename := "users-" + time.Now().UTC().Format("20060102") + ".xlsx"
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
