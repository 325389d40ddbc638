package api

import (
	"errors"
	"net/http"

	"slotbook/internal/booking"
	"slotbook/internal/ledger"

	"github.com/labstack/echo/v4"
)

// writeError maps service errors onto status codes and JSON bodies.
func (s *HTTPServer) writeError(c echo.Context, err error) error {
	var (
		fieldErr    *ledger.FieldValidationError
		selectErr   *ledger.RangeSelectionError
		conflictErr *ledger.ConflictError
		storeErr    *ledger.StoreError
	)

	switch {
	case errors.As(err, &fieldErr):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error":  "validation failed",
			"fields": fieldErr.Fields,
		})
	case errors.As(err, &selectErr):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error":   selectErr.Error(),
			"reason":  selectErr.Reason,
			"clicked": selectErr.Clicked,
		})
	case errors.As(err, &conflictErr):
		return c.JSON(http.StatusConflict, echo.Map{
			"error": "Selected range includes already booked slots",
			"conflicting": echo.Map{
				"start_index": conflictErr.Conflicting.Start,
				"end_index":   conflictErr.Conflicting.End,
			},
		})
	case errors.Is(err, booking.ErrEventNotFound), errors.Is(err, booking.ErrReservationNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, booking.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	case errors.Is(err, booking.ErrNotEditable), errors.Is(err, booking.ErrAlreadyCancelled):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.As(err, &storeErr):
		s.logger.Warn().Err(err).Msg("store unavailable")
		return c.JSON(http.StatusServiceUnavailable, echo.Map{
			"error":     "booking store is temporarily unavailable",
			"retryable": storeErr.Retryable(),
		})
	}

	s.logger.Error().Err(err).Str("route", c.Path()).Msg("unhandled error")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

var errInvalidRange = errors.New("start and end must both be slot indexes")

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}
