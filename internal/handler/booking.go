package handler

import (
    "net/http"
    "strconv"
    "time"

    "github.com/jinzhu/now"
    "github.com/labstack/echo/v4"

    "github.com/happyhu/event-booking/internal/engine"
    "github.com/happyhu/event-booking/internal/model"
    "github.com/happyhu/event-booking/internal/repository"
    "github.com/happyhu/event-booking/internal/slot"
)

// BookingHandler exposes the public booking surface: creating free
// bookings, staging paid ones, the payment return callback and the
// availability calendar.  All scheduling decisions are delegated to
// the engine; handlers only shape requests and responses.
type BookingHandler struct {
    Engine   *engine.Engine
    Bookings *repository.BookingRepo
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(eng *engine.Engine, bookings *repository.BookingRepo) *BookingHandler {
    if eng == nil || bookings == nil {
        panic("nil dependency passed to NewBookingHandler")
    }
    return &BookingHandler{Engine: eng, Bookings: bookings}
}

type bookingRequest struct {
    CustomerName  string   `json:"customer_name"`
    CustomerEmail string   `json:"customer_email"`
    CustomerPhone string   `json:"customer_phone"`
    EventDate     string   `json:"event_date"`
    StartTime     string   `json:"start_time"`
    EndTime       string   `json:"end_time"`
    Location      string   `json:"location"`
    Notes         string   `json:"notes"`
    ProductIDs    []uint64 `json:"product_ids"`
}

func (r bookingRequest) toEngine() engine.BookingRequest {
    return engine.BookingRequest{
        CustomerName:  r.CustomerName,
        CustomerEmail: r.CustomerEmail,
        CustomerPhone: r.CustomerPhone,
        EventDate:     r.EventDate,
        StartTime:     r.StartTime,
        EndTime:       r.EndTime,
        Location:      r.Location,
        Notes:         r.Notes,
    }
}

type bookingResponse struct {
    ID            uint64           `json:"id"`
    CustomerName  string           `json:"customer_name"`
    CustomerEmail string           `json:"customer_email"`
    CustomerPhone string           `json:"customer_phone,omitempty"`
    EventDate     string           `json:"event_date"`
    StartTime     string           `json:"start_time"`
    EndTime       string           `json:"end_time"`
    Location      string           `json:"location,omitempty"`
    Notes         string           `json:"notes,omitempty"`
    Status        string           `json:"status"`
    TotalPrice    int64            `json:"total_price"`
    DepositAmount int64            `json:"deposit_amount"`
    IsPaid        bool             `json:"is_paid"`
    PaymentDate   *string          `json:"payment_date,omitempty"`
    CreatedAt     string           `json:"created_at"`
    Items         []model.LineItem `json:"items,omitempty"`
}

func toBookingResponse(b *model.Booking) bookingResponse {
    resp := bookingResponse{
        ID:            b.ID,
        CustomerName:  b.CustomerName,
        CustomerEmail: b.CustomerEmail,
        CustomerPhone: b.CustomerPhone,
        EventDate:     b.EventDate,
        StartTime:     b.StartTime,
        EndTime:       b.EndTime,
        Location:      b.Location,
        Notes:         b.Notes,
        Status:        string(b.Status),
        TotalPrice:    b.TotalPrice,
        DepositAmount: b.DepositAmount,
        IsPaid:        b.IsPaid,
        CreatedAt:     b.CreatedAt.Format(time.RFC3339),
        Items:         b.Items,
    }
    if b.PaymentDate != nil {
        s := b.PaymentDate.Format(time.RFC3339)
        resp.PaymentDate = &s
    }
    return resp
}

// Create handles POST /v1/bookings: the free flow, committed directly
// when the slot is valid and unoccupied.  Requests carrying product
// selections must go through the staged payment flow instead.
func (h *BookingHandler) Create(c echo.Context) error {
    var body bookingRequest
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if len(body.ProductIDs) > 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "bookings with products must be staged for payment, use /v1/bookings/stage"})
    }
    b, err := h.Engine.CreateBooking(c.Request().Context(), body.toEngine())
    if err != nil {
        return writeEngineError(c, err)
    }
    return c.JSON(http.StatusCreated, toBookingResponse(b))
}

// Stage handles POST /v1/bookings/stage: validates the candidate
// booking, opens a payment transaction for the deposit and returns
// the provider redirect target.  No booking exists until the
// customer returns and the payment is confirmed.
func (h *BookingHandler) Stage(c echo.Context) error {
    var body bookingRequest
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if len(body.ProductIDs) == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "product_ids is required for a paid booking"})
    }
    sessionID := c.Request().Header.Get("X-Session-ID")
    if sessionID == "" {
        sessionID = c.RealIP()
    }
    res, err := h.Engine.StageBooking(c.Request().Context(), body.toEngine(), body.ProductIDs, sessionID)
    if err != nil {
        return writeEngineError(c, err)
    }
    return c.JSON(http.StatusAccepted, echo.Map{
        "redirect_url":   res.RedirectURL,
        "token":          res.Token,
        "total_price":    res.TotalPrice,
        "deposit_amount": res.DepositAmount,
    })
}

// PaymentReturn handles GET /v1/payments/return?token=...: the
// provider's return callback.  Replays with the same token are safe;
// the engine returns the already materialized booking.
func (h *BookingHandler) PaymentReturn(c echo.Context) error {
    token := c.QueryParam("token")
    if token == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "token is required"})
    }
    b, err := h.Engine.ConfirmPayment(c.Request().Context(), token)
    if err != nil {
        return writeEngineError(c, err)
    }
    return c.JSON(http.StatusOK, toBookingResponse(b))
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
    }
    b, err := h.Bookings.GetByID(c.Request().Context(), id)
    if err != nil {
        return writeEngineError(c, err)
    }
    return c.JSON(http.StatusOK, toBookingResponse(b))
}

// calendarDay is one day of the availability calendar with its active
// bookings.
type calendarDay struct {
    Date     string            `json:"date"`
    Bookings []bookingResponse `json:"bookings"`
}

// Calendar handles GET /v1/calendar?days=N: the next N days (clamped
// to 7..31) with each day's active bookings, so availability can be
// shown without further queries.
func (h *BookingHandler) Calendar(c echo.Context) error {
    days := 14
    if s := c.QueryParam("days"); s != "" {
        if n, err := strconv.Atoi(s); err == nil {
            days = n
        }
    }
    if days < 7 {
        days = 7
    }
    if days > 31 {
        days = 31
    }
    start := now.BeginningOfDay()
    from := start.Format(slot.DateLayout)
    to := start.AddDate(0, 0, days-1).Format(slot.DateLayout)

    bookings, err := h.Bookings.ListBetween(c.Request().Context(), from, to)
    if err != nil {
        return writeEngineError(c, err)
    }
    byDay := make(map[string][]bookingResponse, days)
    for i := range bookings {
        b := &bookings[i]
        byDay[b.EventDate] = append(byDay[b.EventDate], toBookingResponse(b))
    }
    out := make([]calendarDay, 0, days)
    for i := 0; i < days; i++ {
        d := start.AddDate(0, 0, i).Format(slot.DateLayout)
        day := calendarDay{Date: d, Bookings: byDay[d]}
        if day.Bookings == nil {
            day.Bookings = []bookingResponse{}
        }
        out = append(out, day)
    }
    return c.JSON(http.StatusOK, echo.Map{"days": out})
}
