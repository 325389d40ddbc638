package api

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"slotbook/internal/booking"
	"slotbook/internal/metrics"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

const requesterKey = "requester"

// jwtAuth requires an HS256 bearer token whose sub claim names the user.
func (s *HTTPServer) jwtAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(header, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			who, err := s.parseToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set(requesterKey, who)
			return next(c)
		}
	}
}

// optionalAuth records the requester when a valid token is present and
// otherwise lets the request through anonymously.
func (s *HTTPServer) optionalAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if strings.HasPrefix(header, "Bearer ") {
				if who, err := s.parseToken(strings.TrimPrefix(header, "Bearer ")); err == nil {
					c.Set(requesterKey, who)
				}
			}
			return next(c)
		}
	}
}

func (s *HTTPServer) parseToken(raw string) (booking.Requester, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return booking.Requester{}, err
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return booking.Requester{}, jwt.ErrTokenInvalidSubject
	}
	name, _ := claims["name"].(string)
	email, _ := claims["email"].(string)
	return booking.Requester{ID: sub, Name: name, Email: email}, nil
}

func requester(c echo.Context) (booking.Requester, bool) {
	who, ok := c.Get(requesterKey).(booking.Requester)
	return who, ok
}

// limiterIdle is how long a caller's bucket survives without requests.
const limiterIdle = 10 * time.Minute

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// limiter hands out one token bucket per caller. Buckets idle for longer
// than idle are dropped.
type limiter struct {
	mu        sync.Mutex
	perSec    rate.Limit
	burst     int
	idle      time.Duration
	buckets   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

func newLimiter(perSecond float64, burst int) *limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &limiter{
		perSec:  rate.Limit(perSecond),
		burst:   burst,
		idle:    limiterIdle,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

func (l *limiter) allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	if now.Sub(l.lastSweep) >= l.idle {
		l.sweep(now)
	}
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.perSec, l.burst)}
		l.buckets[key] = b
	}
	b.seen = now
	l.mu.Unlock()

	return b.lim.AllowN(now, 1)
}

// sweep drops idle buckets. Callers hold mu.
func (l *limiter) sweep(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.seen) >= l.idle {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}

func (s *HTTPServer) rateLimit() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if s.limiter == nil {
				return next(c)
			}
			key := "ip:" + c.RealIP()
			if who, ok := requester(c); ok {
				key = "user:" + who.ID
			}
			if !s.limiter.allow(key) {
				c.Response().Header().Set("Retry-After", "1")
				return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "rate limit exceeded"})
			}
			return next(c)
		}
	}
}

func (s *HTTPServer) requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			elapsed := time.Since(start)
			status := c.Response().Status
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			metrics.ObserveHTTP(c.Request().Method, route, status, elapsed)

			ev := s.logger.Debug()
			if status >= http.StatusInternalServerError {
				ev = s.logger.Error()
			}
			ev.Str("method", c.Request().Method).
				Str("route", route).
				Int("status", status).
				Dur("elapsed", elapsed).
				Msg("http request")
			return nil
		}
	}
}
