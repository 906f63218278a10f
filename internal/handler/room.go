package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-booking/internal/middleware"
	"github.com/iliyamo/room-booking/internal/model"
)

// RoomAPI is the room directory.  service.RoomService satisfies it.
type RoomAPI interface {
	List(ctx context.Context, ownerID string) ([]model.Room, error)
	Get(ctx context.Context, id string) (model.Room, error)
	Create(ctx context.Context, caller model.Identity, d model.RoomDraft) (model.Room, error)
	Update(ctx context.Context, caller model.Identity, id string, d model.RoomDraft) (model.Room, error)
	Delete(ctx context.Context, caller model.Identity, id string) error
}

// RoomHandler serves /v1/rooms.
type RoomHandler struct {
	Rooms RoomAPI
}

func NewRoomHandler(r RoomAPI) *RoomHandler { return &RoomHandler{Rooms: r} }

// List handles GET /v1/rooms, optionally filtered by ?owner_id=.
func (h *RoomHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	rooms, err := h.Rooms.List(ctx, c.QueryParam("owner_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": rooms})
}

// Get handles GET /v1/rooms/:id.
func (h *RoomHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	room, err := h.Rooms.Get(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, room)
}

// Create handles POST /v1/rooms.
func (h *RoomHandler) Create(c echo.Context) error {
	var d model.RoomDraft
	if err := c.Bind(&d); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	room, err := h.Rooms.Create(ctx, middleware.CurrentIdentity(c), d)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, room)
}

// Update handles PUT /v1/rooms/:id.
func (h *RoomHandler) Update(c echo.Context) error {
	var d model.RoomDraft
	if err := c.Bind(&d); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	room, err := h.Rooms.Update(ctx, middleware.CurrentIdentity(c), c.Param("id"), d)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, room)
}

// Delete handles DELETE /v1/rooms/:id.  The room's bookings go with it.
func (h *RoomHandler) Delete(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Rooms.Delete(ctx, middleware.CurrentIdentity(c), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
