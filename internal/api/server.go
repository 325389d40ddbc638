package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"slotbook/internal/booking"
	"slotbook/internal/ledger"
	"slotbook/internal/model"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

// BookingService is what the HTTP layer needs from the booking service.
type BookingService interface {
	Events(ctx context.Context) ([]model.Event, error)
	Event(ctx context.Context, id string) (*model.Event, error)
	Availability(ctx context.Context, eventID string, date time.Time, excludeID string, candidate *ledger.CandidateRange) ([]ledger.SlotStatus, error)
	Select(ctx context.Context, sel booking.Selection) (ledger.CandidateRange, error)
	Create(ctx context.Context, who booking.Requester, eventID string, req booking.Request, today time.Time) (*model.Reservation, error)
	Edit(ctx context.Context, who booking.Requester, id string, req booking.Request, today time.Time) (*model.Reservation, error)
	Cancel(ctx context.Context, who booking.Requester, id string, today time.Time) (*model.Reservation, error)
	Get(ctx context.Context, who booking.Requester, id string, asOf time.Time) (*model.Reservation, error)
	List(ctx context.Context, who booking.Requester, asOf time.Time, status ledger.Status) ([]*model.Reservation, error)
}

// Options configures the HTTP server.
type Options struct {
	Port          int
	JWTSecret     string
	Location      *time.Location
	RatePerSecond float64
	RateBurst     int
	// Ready reports whether dependencies are reachable. Nil means always ready.
	Ready func(ctx context.Context) error
}

// HTTPServer exposes the booking service over JSON.
type HTTPServer struct {
	echo    *echo.Echo
	server  *http.Server
	svc     BookingService
	secret  []byte
	loc     *time.Location
	ready   func(ctx context.Context) error
	limiter *limiter
	logger  *zerolog.Logger
	now     func() time.Time
}

// NewHTTPServer builds the router. Call Start to listen.
func NewHTTPServer(svc BookingService, opts Options, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &HTTPServer{
		echo:    e,
		svc:     svc,
		secret:  []byte(opts.JWTSecret),
		loc:     loc,
		ready:   opts.Ready,
		limiter: newLimiter(opts.RatePerSecond, opts.RateBurst),
		logger:  logger,
		now:     time.Now,
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           e,
		ReadHeaderTimeout: 5 * time.Second,
	}

	e.Use(middleware.Recover())
	e.Use(s.requestLogger())
	s.routes()
	return s
}

func (s *HTTPServer) routes() {
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/readyz", s.handleReady)

	v1 := s.echo.Group("/v1")
	v1.GET("/events", s.handleEvents)
	v1.GET("/events/:id", s.handleEvent)
	v1.GET("/events/:id/availability", s.handleAvailability, s.optionalAuth())

	auth := s.jwtAuth()
	limit := s.rateLimit()
	v1.POST("/events/:id/selection", s.handleSelection, auth)
	v1.GET("/reservations", s.handleListReservations, auth)
	v1.GET("/reservations/:id", s.handleGetReservation, auth)
	v1.POST("/reservations", s.handleCreateReservation, auth, limit)
	v1.PUT("/reservations/:id", s.handleEditReservation, auth, limit)
	v1.POST("/reservations/:id/cancel", s.handleCancelReservation, auth, limit)
}

// Handler returns the router, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.echo
}

// Start serves until Shutdown is called.
func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("http server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// today is the current calendar date in the booking timezone.
func (s *HTTPServer) today() time.Time {
	return ledger.Day(s.now().In(s.loc))
}

func (s *HTTPServer) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

func (s *HTTPServer) handleReady(c echo.Context) error {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("readiness check failed")
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable", "error": err.Error()})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
}
