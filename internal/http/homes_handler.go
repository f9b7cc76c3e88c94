package httpapi

import (
	"net/http"

	"github.com/FallyxInc/cortex-behaviours/internal/service"

	"go.uber.org/zap"
)

type HomesHandler struct {
	homes  service.HomeService
	logger *zap.Logger
}

func NewHomesHandler(homes service.HomeService, logger *zap.Logger) *HomesHandler {
	return &HomesHandler{homes: homes, logger: logger}
}

// ListHomes GET /api/admin/homes
func (h *HomesHandler) ListHomes(w http.ResponseWriter, r *http.Request) {
	homes, err := h.homes.ListHomes(r.Context())
	if err != nil {
		h.logger.Error("Error fetching homes", zap.Error(err))
		writeError(w, err, "Failed to fetch homes")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"homes":   homes,
	})
}

// ListRoles GET /api/admin/roles
func (h *HomesHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.homes.Roles(r.Context())
	if err != nil {
		h.logger.Error("Error fetching roles", zap.Error(err))
		writeError(w, err, "Failed to fetch roles")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"roles":   roles.List(),
	})
}
