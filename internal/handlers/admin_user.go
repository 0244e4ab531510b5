package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/diewo77/go-quotes/httpx"
	"github.com/diewo77/go-quotes/internal/models"
	"github.com/diewo77/go-quotes/internal/services"
)

// AdminUserHandler lets admins provision staff accounts and assign roles.
// Role changes drop the user's cached profile through the service hook.
type AdminUserHandler struct {
	svc *services.UserService
	log *zap.Logger
}

func NewAdminUserHandler(svc *services.UserService, log *zap.Logger) *AdminUserHandler {
	return &AdminUserHandler{svc: svc, log: log}
}

func (h *AdminUserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"users": users,
		"roles": models.Roles,
	})
}

func (h *AdminUserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.UserInput
	if err := httpx.Decode(r, &in); err != nil {
		writeError(w, h.log, err)
		return
	}
	u, err := h.svc.Create(r.Context(), in)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, u)
}

type roleRequest struct {
	Role models.Role `json:"role"`
}

// SetRole assigns the role in the body to the user in the path.
func (h *AdminUserHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	var req roleRequest
	if err := httpx.Decode(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	u, err := h.svc.SetRole(r.Context(), id, req.Role)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	h.log.Info("user role changed", zap.Uint("user_id", u.ID), zap.String("role", string(u.Role)))
	httpx.JSON(w, http.StatusOK, u)
}
