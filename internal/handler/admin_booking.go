package handler

import (
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/happyhu/event-booking/internal/engine"
    "github.com/happyhu/event-booking/internal/model"
    "github.com/happyhu/event-booking/internal/repository"
)

// AdminBookingHandler exposes the administrative booking surface:
// listing, editing, deleting and status transitions.  All routes are
// behind JWT authentication with the ADMIN role.
type AdminBookingHandler struct {
    Engine   *engine.Engine
    Bookings *repository.BookingRepo
}

// NewAdminBookingHandler constructs an AdminBookingHandler.
func NewAdminBookingHandler(eng *engine.Engine, bookings *repository.BookingRepo) *AdminBookingHandler {
    if eng == nil || bookings == nil {
        panic("nil dependency passed to NewAdminBookingHandler")
    }
    return &AdminBookingHandler{Engine: eng, Bookings: bookings}
}

// List handles GET /v1/admin/bookings?page=N: non-cancelled bookings,
// 20 per page, most recent event first.
func (h *AdminBookingHandler) List(c echo.Context) error {
    page := 1
    if s := c.QueryParam("page"); s != "" {
        if n, err := strconv.Atoi(s); err == nil && n > 0 {
            page = n
        }
    }
    const perPage = 20
    bookings, err := h.Bookings.List(c.Request().Context(), perPage, (page-1)*perPage)
    if err != nil {
        return writeEngineError(c, err)
    }
    out := make([]bookingResponse, 0, len(bookings))
    for i := range bookings {
        out = append(out, toBookingResponse(&bookings[i]))
    }
    return c.JSON(http.StatusOK, echo.Map{"page": page, "bookings": out})
}

// Update handles PUT /v1/admin/bookings/:id: the administrative edit.
// The engine re-runs full validation and conflict detection with the
// booking itself excluded, and keeps both stores in step.
func (h *AdminBookingHandler) Update(c echo.Context) error {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
    }
    var body bookingRequest
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    b, err := h.Engine.EditBooking(c.Request().Context(), id, body.toEngine())
    if err != nil {
        return writeEngineError(c, err)
    }
    return c.JSON(http.StatusOK, toBookingResponse(b))
}

// Delete handles DELETE /v1/admin/bookings/:id.  Removal is reserved
// for administrative cleanup; the normal way to free a slot is the
// cancelled status.
func (h *AdminBookingHandler) Delete(c echo.Context) error {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
    }
    if err := h.Engine.DeleteBooking(c.Request().Context(), id); err != nil {
        return writeEngineError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// Transition handles POST /v1/admin/bookings/:id/status with a JSON
// body {"status": "..."}.  Illegal transitions are rejected and leave
// the booking unchanged.
func (h *AdminBookingHandler) Transition(c echo.Context) error {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
    }
    var body struct {
        Status string `json:"status"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    b, err := h.Engine.Transition(c.Request().Context(), id, model.Status(body.Status))
    if err != nil {
        return writeEngineError(c, err)
    }
    return c.JSON(http.StatusOK, toBookingResponse(b))
}
