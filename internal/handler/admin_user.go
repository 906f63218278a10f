package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-booking/internal/middleware"
	"github.com/iliyamo/room-booking/internal/model"
)

// AdminAPI is the owner's user management.  service.AdminService
// satisfies it.
type AdminAPI interface {
	ListUsers(ctx context.Context, caller model.Identity) ([]model.UserWithCredits, error)
	ListAuthUsers(ctx context.Context, caller model.Identity) ([]model.AuthUser, error)
	DeleteUser(ctx context.Context, caller model.Identity, id string) error
	UpdatePassword(ctx context.Context, caller model.Identity, id, password string) error
}

// AdminHandler serves /v1/admin.
type AdminHandler struct {
	Admin AdminAPI
}

func NewAdminHandler(a AdminAPI) *AdminHandler { return &AdminHandler{Admin: a} }

// ListUsers handles GET /v1/admin/users.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	users, err := h.Admin.ListUsers(ctx, middleware.CurrentIdentity(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": users})
}

// ListAuthUsers handles GET /v1/admin/auth-users.
func (h *AdminHandler) ListAuthUsers(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	users, err := h.Admin.ListAuthUsers(ctx, middleware.CurrentIdentity(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": users})
}

// DeleteUser handles DELETE /v1/admin/users/:id.
func (h *AdminHandler) DeleteUser(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Admin.DeleteUser(ctx, middleware.CurrentIdentity(c), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// UpdatePassword handles PUT /v1/admin/users/:id/password.
func (h *AdminHandler) UpdatePassword(c echo.Context) error {
	var req passwordReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Admin.UpdatePassword(ctx, middleware.CurrentIdentity(c), c.Param("id"), req.Password); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
