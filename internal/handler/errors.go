package handler

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/happyhu/event-booking/internal/engine"
    "github.com/happyhu/event-booking/internal/repository"
    "github.com/happyhu/event-booking/internal/status"
)

// writeEngineError translates engine errors into HTTP responses.
// Validation failures come back field by field; consistency faults
// between the two stores surface as a generic 500 (the details are in
// the server log and the reconcile queue, not for the customer).
func writeEngineError(c echo.Context, err error) error {
    var vErr *engine.ValidationError
    if errors.As(err, &vErr) {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "fields": vErr.Fields})
    }
    var conflict *engine.SlotConflictError
    if errors.As(err, &conflict) && !errors.Is(err, engine.ErrPaymentReconcile) {
        return c.JSON(http.StatusConflict, echo.Map{
            "error": "slot already booked",
            "conflict": echo.Map{
                "event_date": conflict.Existing.EventDate,
                "start_time": conflict.Existing.StartTime,
                "end_time":   conflict.Existing.EndTime,
            },
        })
    }
    var illegal *status.IllegalTransitionError
    if errors.As(err, &illegal) {
        return c.JSON(http.StatusConflict, echo.Map{"error": illegal.Error()})
    }
    switch {
    case errors.Is(err, repository.ErrBookingNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
    case errors.Is(err, repository.ErrProductNotFound):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown product selected"})
    case errors.Is(err, engine.ErrStagedNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown or expired payment token"})
    case errors.Is(err, engine.ErrZeroDeposit):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "selected products carry no charge"})
    case errors.Is(err, engine.ErrPaymentNotAuthorized):
        return c.JSON(http.StatusPaymentRequired, echo.Map{"error": "payment was not authorized"})
    case errors.Is(err, engine.ErrPaymentReconcile):
        return c.JSON(http.StatusConflict, echo.Map{"error": "payment authorized but the slot is no longer available; our team will contact you"})
    case errors.Is(err, engine.ErrExternalProvider):
        return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment provider unavailable, try again later"})
    case errors.Is(err, repository.ErrStaleStatus):
        return c.JSON(http.StatusConflict, echo.Map{"error": "booking was modified concurrently"})
    }
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
