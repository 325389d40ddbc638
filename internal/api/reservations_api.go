package api

import (
	"context"
	"net/http"

	"slotbook/internal/booking"
	"slotbook/internal/ledger"
	"slotbook/internal/model"

	"github.com/labstack/echo/v4"
)

// ReservationRequest is the body of POST /v1/reservations and PUT /v1/reservations/:id.
// EventID is ignored on edit.
type ReservationRequest struct {
	EventID        string   `json:"event_id"`
	Name           string   `json:"name"`
	Phone          string   `json:"phone"`
	Email          string   `json:"email,omitempty"`
	Date           string   `json:"date"`  // Format: YYYY-MM-DD
	Start          *int     `json:"start"` // first slot index
	End            *int     `json:"end"`   // exclusive
	Package        string   `json:"package"`
	Theme          string   `json:"theme"`
	ExpectedGuests int      `json:"expected_guests,omitempty"`
	Vendors        []string `json:"vendors,omitempty"`
	TechnicalSetup []string `json:"technical_setup,omitempty"`
}

// ReservationResponse is a reservation with its clock labels.
type ReservationResponse struct {
	*model.Reservation
	Date       string `json:"date"`
	StartLabel string `json:"start_label"`
	EndLabel   string `json:"end_label"`
	Hours      int    `json:"hours"`
}

func (r ReservationRequest) toRequest() (booking.Request, error) {
	date, err := parseDate(r.Date)
	if err != nil {
		return booking.Request{}, err
	}
	req := booking.Request{
		Name:           r.Name,
		Phone:          r.Phone,
		Date:           date,
		Package:        r.Package,
		Theme:          r.Theme,
		Guests:         r.ExpectedGuests,
		Vendors:        r.Vendors,
		TechnicalSetup: r.TechnicalSetup,
	}
	if r.Start != nil && r.End != nil {
		req.Slot = &ledger.CandidateRange{Start: *r.Start, End: *r.End}
	}
	return req, nil
}

// POST /v1/reservations
func (s *HTTPServer) handleCreateReservation(c echo.Context) error {
	who, _ := requester(c)

	var body ReservationRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.EventID == "" {
		return badRequest(c, "event_id is required")
	}
	req, err := body.toRequest()
	if err != nil {
		return badRequest(c, "invalid date format; expected YYYY-MM-DD")
	}
	if body.Email != "" {
		who.Email = body.Email
	}

	r, err := s.svc.Create(c.Request().Context(), who, body.EventID, req, s.today())
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusCreated, s.reservationResponse(c.Request().Context(), r, nil))
}

// PUT /v1/reservations/:id
func (s *HTTPServer) handleEditReservation(c echo.Context) error {
	who, _ := requester(c)

	var body ReservationRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	req, err := body.toRequest()
	if err != nil {
		return badRequest(c, "invalid date format; expected YYYY-MM-DD")
	}

	r, err := s.svc.Edit(c.Request().Context(), who, c.Param("id"), req, s.today())
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, s.reservationResponse(c.Request().Context(), r, nil))
}

// POST /v1/reservations/:id/cancel
func (s *HTTPServer) handleCancelReservation(c echo.Context) error {
	who, _ := requester(c)

	r, err := s.svc.Cancel(c.Request().Context(), who, c.Param("id"), s.today())
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, s.reservationResponse(c.Request().Context(), r, nil))
}

// GET /v1/reservations/:id
func (s *HTTPServer) handleGetReservation(c echo.Context) error {
	who, _ := requester(c)

	r, err := s.svc.Get(c.Request().Context(), who, c.Param("id"), s.today())
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, s.reservationResponse(c.Request().Context(), r, nil))
}

// handleListReservations returns the caller's reservations, optionally one status tab.
// GET /v1/reservations?status=upcoming|past|cancelled
func (s *HTTPServer) handleListReservations(c echo.Context) error {
	who, _ := requester(c)

	var status ledger.Status
	if raw := c.QueryParam("status"); raw != "" {
		st, ok := ledger.ParseStatus(raw)
		if !ok {
			return badRequest(c, "status must be one of upcoming, past, cancelled")
		}
		status = st
	}

	ctx := c.Request().Context()
	list, err := s.svc.List(ctx, who, s.today(), status)
	if err != nil {
		return s.writeError(c, err)
	}

	calendars := make(map[string]ledger.Calendar)
	out := make([]ReservationResponse, 0, len(list))
	for _, r := range list {
		out = append(out, s.reservationResponse(ctx, r, calendars))
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": out})
}

// reservationResponse labels r with its event's calendar. Events that left
// the catalog fall back to the default hours.
func (s *HTTPServer) reservationResponse(ctx context.Context, r *model.Reservation, calendars map[string]ledger.Calendar) ReservationResponse {
	cal, ok := calendars[r.EventID]
	if !ok {
		cal = ledger.DefaultCalendar()
		if ev, err := s.svc.Event(ctx, r.EventID); err == nil {
			if evCal, err := ev.Calendar(); err == nil {
				cal = evCal
			}
		}
		if calendars != nil {
			calendars[r.EventID] = cal
		}
	}

	return ReservationResponse{
		Reservation: r,
		Date:        r.Date.Format(model.DateLayout),
		StartLabel:  cal.BoundaryLabel(r.StartIndex),
		EndLabel:    cal.BoundaryLabel(r.EndIndex),
		Hours:       r.Hours(),
	}
}
