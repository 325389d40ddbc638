package api

import (
	"net/http"

	"slotbook/internal/ledger"
	"slotbook/internal/model"

	"github.com/labstack/echo/v4"
)

// EventResponse is an event of the catalog with its hourly calendar.
type EventResponse struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Category    string            `json:"category"`
	Description string            `json:"description,omitempty"`
	Location    string            `json:"location,omitempty"`
	Price       int64             `json:"price,omitempty"`
	Packages    []string          `json:"packages"`
	Themes      []string          `json:"themes"`
	Slots       []ledger.HourSlot `json:"slots"`
}

func newEventResponse(ev *model.Event) EventResponse {
	resp := EventResponse{
		ID:          ev.ID,
		Title:       ev.Title,
		Category:    ev.Category,
		Description: ev.Description,
		Location:    ev.Location,
		Price:       ev.Price,
		Packages:    ev.Packages,
		Themes:      ev.Themes,
	}
	if cal, err := ev.Calendar(); err == nil {
		resp.Slots = cal.Slots()
	}
	return resp
}

// handleEvents lists the active catalog.
// GET /v1/events
func (s *HTTPServer) handleEvents(c echo.Context) error {
	list, err := s.svc.Events(c.Request().Context())
	if err != nil {
		return s.writeError(c, err)
	}

	out := make([]EventResponse, 0, len(list))
	for i := range list {
		out = append(out, newEventResponse(&list[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"events": out})
}

// GET /v1/events/:id
func (s *HTTPServer) handleEvent(c echo.Context) error {
	ev, err := s.svc.Event(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, newEventResponse(ev))
}
