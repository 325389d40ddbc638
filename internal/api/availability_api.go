package api

import (
	"net/http"
	"strconv"
	"time"

	"slotbook/internal/booking"
	"slotbook/internal/ledger"
	"slotbook/internal/model"

	"github.com/labstack/echo/v4"
)

// AvailabilityResponse is the hour grid of one event on one date.
type AvailabilityResponse struct {
	EventID string              `json:"event_id"`
	Date    string              `json:"date"`
	Slots   []ledger.SlotStatus `json:"slots"`
}

// SelectionRequest is one click on the hour grid. Start and End carry the
// current candidate, if any.
type SelectionRequest struct {
	Date      string `json:"date"`
	ExcludeID string `json:"exclude_id,omitempty"`
	Start     *int   `json:"start,omitempty"`
	End       *int   `json:"end,omitempty"`
	Clicked   int    `json:"clicked"`
}

// SelectionResponse is the candidate after a click.
type SelectionResponse struct {
	Start      int    `json:"start"`
	End        int    `json:"end"`
	StartLabel string `json:"start_label"`
	EndLabel   string `json:"end_label"`
	Hours      int    `json:"hours"`
}

// handleAvailability returns the slots of an event with booked and selected flags.
// GET /v1/events/:id/availability?date=YYYY-MM-DD&exclude=&start=&end=
func (s *HTTPServer) handleAvailability(c echo.Context) error {
	ctx := c.Request().Context()
	eventID := c.Param("id")

	date, err := parseDate(c.QueryParam("date"))
	if err != nil || date.IsZero() {
		return badRequest(c, "invalid date format; expected YYYY-MM-DD")
	}

	candidate, err := parseCandidate(c.QueryParam("start"), c.QueryParam("end"))
	if err != nil {
		return badRequest(c, err.Error())
	}

	excludeID := c.QueryParam("exclude")
	if excludeID != "" {
		if _, ok := requester(c); !ok {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "exclude requires authentication"})
		}
		if err := s.checkOwned(c, excludeID); err != nil {
			return s.writeError(c, err)
		}
	}

	slots, err := s.svc.Availability(ctx, eventID, date, excludeID, candidate)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, AvailabilityResponse{
		EventID: eventID,
		Date:    date.Format(model.DateLayout),
		Slots:   slots,
	})
}

// handleSelection starts or extends the candidate range.
// POST /v1/events/:id/selection
func (s *HTTPServer) handleSelection(c echo.Context) error {
	ctx := c.Request().Context()

	var req SelectionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	date, err := parseDate(req.Date)
	if err != nil || date.IsZero() {
		return badRequest(c, "invalid date format; expected YYYY-MM-DD")
	}

	var current *ledger.CandidateRange
	if req.Start != nil && req.End != nil {
		current = &ledger.CandidateRange{Start: *req.Start, End: *req.End}
	}

	if req.ExcludeID != "" {
		if err := s.checkOwned(c, req.ExcludeID); err != nil {
			return s.writeError(c, err)
		}
	}

	ev, err := s.svc.Event(ctx, c.Param("id"))
	if err != nil {
		return s.writeError(c, err)
	}
	cal, err := ev.Calendar()
	if err != nil {
		return s.writeError(c, err)
	}

	got, err := s.svc.Select(ctx, booking.Selection{
		EventID:   ev.ID,
		Date:      date,
		ExcludeID: req.ExcludeID,
		Current:   current,
		Clicked:   req.Clicked,
	})
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, SelectionResponse{
		Start:      got.Start,
		End:        got.End,
		StartLabel: cal.BoundaryLabel(got.Start),
		EndLabel:   cal.BoundaryLabel(got.End),
		Hours:      got.Hours(),
	})
}

// checkOwned makes sure only the owner can hide a reservation from the grid.
func (s *HTTPServer) checkOwned(c echo.Context, id string) error {
	who, _ := requester(c)
	_, err := s.svc.Get(c.Request().Context(), who, id, s.today())
	return err
}

// parseDate accepts YYYY-MM-DD; an empty string yields the zero time.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(model.DateLayout, s)
}

func parseCandidate(start, end string) (*ledger.CandidateRange, error) {
	if start == "" && end == "" {
		return nil, nil
	}
	st, err := strconv.Atoi(start)
	if err != nil {
		return nil, errInvalidRange
	}
	en, err := strconv.Atoi(end)
	if err != nil {
		return nil, errInvalidRange
	}
	return &ledger.CandidateRange{Start: st, End: en}, nil
}
