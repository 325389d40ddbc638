package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"slotbook/internal/events"
	"slotbook/internal/ledger"
	"slotbook/internal/metrics"
	"slotbook/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const FieldGuests = "expected_guests"

// Store is the persistent side of the service. CreateReservation and
// UpdateReservation must re-check the range against a fresh snapshot inside
// the write and return *ledger.ConflictError when it is taken.
type Store interface {
	ListActiveEvents(ctx context.Context) ([]model.Event, error)
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	IsHoliday(ctx context.Context, date time.Time) (bool, string, error)
	ReservedRanges(ctx context.Context, eventID string, date time.Time, excludeID string) ([]ledger.ReservedRange, error)
	CreateReservation(ctx context.Context, r *model.Reservation) error
	UpdateReservation(ctx context.Context, r *model.Reservation) error
	CancelReservation(ctx context.Context, id string, at time.Time) error
	GetReservation(ctx context.Context, id string) (*model.Reservation, error)
	ListReservationsByUser(ctx context.Context, userID string) ([]*model.Reservation, error)
}

// RangeCache caches reserved ranges and serialises writers per event and date.
type RangeCache interface {
	Ranges(ctx context.Context, eventID string, date time.Time) ([]ledger.ReservedRange, string, bool)
	StoreRanges(ctx context.Context, eventID string, date time.Time, gen string, ranges []ledger.ReservedRange)
	Invalidate(ctx context.Context, eventID string, date time.Time)
	Lock(ctx context.Context, eventID string, date time.Time) (func(), error)
}

type Publisher interface {
	Publish(event events.Event)
}

// Rules limit what can be booked beyond the field checks.
type Rules struct {
	MaxAdvanceDays int
}

// Requester is the authenticated caller.
type Requester struct {
	ID    string
	Name  string
	Email string
}

// Request is the reservation form as submitted.
type Request struct {
	Name           string
	Phone          string
	Date           time.Time
	Slot           *ledger.CandidateRange
	Package        string
	Theme          string
	Guests         int
	Vendors        []string
	TechnicalSetup []string
}

// Selection is one click on the hour picker.
type Selection struct {
	EventID   string
	Date      time.Time
	ExcludeID string
	Current   *ledger.CandidateRange
	Clicked   int
}

type Service struct {
	store  Store
	cache  RangeCache
	bus    Publisher
	rules  Rules
	logger *zerolog.Logger
	newID  func() string
	now    func() time.Time
}

func NewService(store Store, cache RangeCache, bus Publisher, rules Rules, logger *zerolog.Logger) *Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Service{
		store:  store,
		cache:  cache,
		bus:    bus,
		rules:  rules,
		logger: logger,
		newID:  uuid.NewString,
		now:    time.Now,
	}
}

// Events lists the active catalog.
func (s *Service) Events(ctx context.Context) ([]model.Event, error) {
	list, err := s.store.ListActiveEvents(ctx)
	if err != nil {
		return nil, &ledger.StoreError{Op: "list events", Err: err}
	}
	return list, nil
}

// Event returns an active event.
func (s *Service) Event(ctx context.Context, id string) (*model.Event, error) {
	ev, err := s.store.GetEvent(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, &ledger.StoreError{Op: "get event", Err: err}
	}
	if !ev.IsActive {
		return nil, ErrEventNotFound
	}
	return ev, nil
}

// Availability derives the hour grid of an event on a date. excludeID hides
// one reservation, so its owner sees its hours as free while editing.
func (s *Service) Availability(ctx context.Context, eventID string, date time.Time, excludeID string, candidate *ledger.CandidateRange) ([]ledger.SlotStatus, error) {
	ev, err := s.Event(ctx, eventID)
	if err != nil {
		return nil, err
	}
	cal, err := ev.Calendar()
	if err != nil {
		return nil, fmt.Errorf("event %s calendar: %w", ev.ID, err)
	}
	reserved, err := s.reservedRanges(ctx, eventID, date, excludeID)
	if err != nil {
		return nil, err
	}
	return ledger.Availability(cal, reserved, candidate), nil
}

// Select applies a click to the current candidate: the first click starts a
// one-hour candidate, later clicks move its end.
func (s *Service) Select(ctx context.Context, sel Selection) (ledger.CandidateRange, error) {
	ev, err := s.Event(ctx, sel.EventID)
	if err != nil {
		return ledger.CandidateRange{}, err
	}
	cal, err := ev.Calendar()
	if err != nil {
		return ledger.CandidateRange{}, fmt.Errorf("event %s calendar: %w", ev.ID, err)
	}

	var c ledger.CandidateRange
	if sel.Current == nil {
		c, err = ledger.BeginSelection(cal, sel.Clicked)
	} else {
		var reserved []ledger.ReservedRange
		reserved, err = s.reservedRanges(ctx, sel.EventID, sel.Date, sel.ExcludeID)
		if err != nil {
			return ledger.CandidateRange{}, err
		}
		c, err = ledger.ExtendSelection(*sel.Current, cal, reserved, sel.Clicked)
	}

	var selErr *ledger.RangeSelectionError
	if errors.As(err, &selErr) {
		metrics.IncSelectionRejected(string(selErr.Reason))
	}
	return c, err
}

// Create validates and stores a new reservation for who.
func (s *Service) Create(ctx context.Context, who Requester, eventID string, req Request, today time.Time) (*model.Reservation, error) {
	ev, err := s.Event(ctx, eventID)
	if err != nil {
		return nil, err
	}

	n, err := s.check(ctx, ev, draftFrom(eventID, "", req), req, today)
	if err != nil {
		metrics.IncReservation("create", metrics.ResultInvalid)
		return nil, err
	}

	now := s.now()
	r := &model.Reservation{
		ID:             s.newID(),
		EventID:        ev.ID,
		EventTitle:     ev.Title,
		UserID:         who.ID,
		UserName:       who.Name,
		Email:          who.Email,
		CreatedAt:      now,
		UpdatedAt:      now,
		Vendors:        req.Vendors,
		TechnicalSetup: req.TechnicalSetup,
		Guests:         req.Guests,
	}
	apply(r, n)
	r.Classify(today)

	unlock, err := s.lock(ctx, ev.ID, r.Date)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := s.store.CreateReservation(ctx, r); err != nil {
		return nil, s.writeFailed("create", r, err)
	}
	metrics.IncReservation("create", metrics.ResultOK)
	s.logger.Info().
		Str("reservation_id", r.ID).
		Str("event_id", r.EventID).
		Str("date", r.DateString()).
		Int("start", r.StartIndex).
		Int("end", r.EndIndex).
		Msg("reservation created")

	s.invalidate(ctx, r.EventID, r.Date)
	s.publish(events.BookingCreated, ev, r)
	return r, nil
}

// Edit re-validates an upcoming reservation of who with new details. Its own
// previous range does not block the new one.
func (s *Service) Edit(ctx context.Context, who Requester, id string, req Request, today time.Time) (*model.Reservation, error) {
	cur, err := s.own(ctx, who, id)
	if errors.Is(err, ErrForbidden) {
		metrics.IncReservation("edit", metrics.ResultForbidden)
	}
	if err != nil {
		return nil, err
	}
	if cur.Cancelled || ledger.Classify(cur.Range(), today) != ledger.StatusUpcoming {
		return nil, ErrNotEditable
	}

	ev, err := s.store.GetEvent(ctx, cur.EventID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, &ledger.StoreError{Op: "get event", Err: err}
	}

	n, err := s.check(ctx, ev, draftFrom(cur.EventID, cur.ID, req), req, today)
	if err != nil {
		metrics.IncReservation("edit", metrics.ResultInvalid)
		return nil, err
	}

	updated := *cur
	apply(&updated, n)
	updated.Guests = req.Guests
	updated.Vendors = req.Vendors
	updated.TechnicalSetup = req.TechnicalSetup
	updated.UpdatedAt = s.now()
	updated.Classify(today)

	unlock, err := s.lock(ctx, updated.EventID, updated.Date)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := s.store.UpdateReservation(ctx, &updated); err != nil {
		return nil, s.writeFailed("edit", &updated, err)
	}
	metrics.IncReservation("edit", metrics.ResultOK)
	s.logger.Info().
		Str("reservation_id", updated.ID).
		Str("date", updated.DateString()).
		Int("start", updated.StartIndex).
		Int("end", updated.EndIndex).
		Msg("reservation updated")

	s.invalidate(ctx, cur.EventID, cur.Date)
	if !ledger.SameDay(cur.Date, updated.Date) {
		s.invalidate(ctx, updated.EventID, updated.Date)
	}
	s.publish(events.BookingUpdated, ev, &updated)
	return &updated, nil
}

// Cancel flags an upcoming reservation of who as cancelled and frees its range.
func (s *Service) Cancel(ctx context.Context, who Requester, id string, today time.Time) (*model.Reservation, error) {
	cur, err := s.own(ctx, who, id)
	if err != nil {
		return nil, err
	}
	if cur.Cancelled {
		return nil, ErrAlreadyCancelled
	}
	if ledger.Classify(cur.Range(), today) == ledger.StatusPast {
		return nil, ErrNotEditable
	}

	at := s.now()
	if err := s.store.CancelReservation(ctx, id, at); err != nil {
		return nil, s.writeFailed("cancel", cur, err)
	}
	metrics.IncReservation("cancel", metrics.ResultOK)
	s.logger.Info().Str("reservation_id", id).Msg("reservation cancelled")

	cur.Cancelled = true
	cur.CancelledAt = &at
	cur.UpdatedAt = at
	cur.Classify(today)

	s.invalidate(ctx, cur.EventID, cur.Date)
	ev, err := s.store.GetEvent(ctx, cur.EventID)
	if err != nil {
		ev = &model.Event{ID: cur.EventID, Title: cur.EventTitle, OpenHour: ledger.DefaultOpenHour, CloseHour: ledger.DefaultCloseHour}
	}
	s.publish(events.BookingCancelled, ev, cur)
	return cur, nil
}

// Get returns one reservation of who with its status as of asOf.
func (s *Service) Get(ctx context.Context, who Requester, id string, asOf time.Time) (*model.Reservation, error) {
	r, err := s.own(ctx, who, id)
	if err != nil {
		return nil, err
	}
	r.Classify(asOf)
	return r, nil
}

// List returns the reservations of who. A non-empty status keeps only that tab.
func (s *Service) List(ctx context.Context, who Requester, asOf time.Time, status ledger.Status) ([]*model.Reservation, error) {
	all, err := s.store.ListReservationsByUser(ctx, who.ID)
	if err != nil {
		return nil, &ledger.StoreError{Op: "list reservations", Err: err}
	}

	out := make([]*model.Reservation, 0, len(all))
	for _, r := range all {
		if st := r.Classify(asOf); status != "" && st != status {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Service) own(ctx context.Context, who Requester, id string) (*model.Reservation, error) {
	r, err := s.store.GetReservation(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, &ledger.StoreError{Op: "get reservation", Err: err}
	}
	if r.UserID != who.ID {
		return nil, ErrForbidden
	}
	return r, nil
}

// check runs the field rules and then the catalog rules of ev.
func (s *Service) check(ctx context.Context, ev *model.Event, d ledger.Draft, req Request, today time.Time) (ledger.NormalizedReservation, error) {
	cal, err := ev.Calendar()
	if err != nil {
		return ledger.NormalizedReservation{}, fmt.Errorf("event %s calendar: %w", ev.ID, err)
	}

	n, err := ledger.Validate(d, cal, today)
	fieldErr := ledger.NewFieldValidationError()
	if err != nil && !errors.As(err, &fieldErr) {
		return n, err
	}

	if pkg := strings.TrimSpace(d.Package); pkg != "" && !ev.OffersPackage(pkg) {
		fieldErr.Add(ledger.FieldPackage, "Package is not offered for this event")
	}
	if theme := strings.TrimSpace(d.Theme); theme != "" && !ev.OffersTheme(theme) {
		fieldErr.Add(ledger.FieldTheme, "Theme is not offered for this event")
	}
	if req.Guests < 0 {
		fieldErr.Add(FieldGuests, "Expected guests cannot be negative")
	}

	if !d.Date.IsZero() {
		day := ledger.Day(d.Date)
		if s.rules.MaxAdvanceDays > 0 && day.After(ledger.Day(today).AddDate(0, 0, s.rules.MaxAdvanceDays)) {
			fieldErr.Add(ledger.FieldDate, fmt.Sprintf("Date must be within %d days from today", s.rules.MaxAdvanceDays))
		}
		holiday, name, err := s.store.IsHoliday(ctx, day)
		if err != nil {
			return n, &ledger.StoreError{Op: "check holiday", Err: err}
		}
		if holiday {
			if name == "" {
				name = "this date"
			}
			fieldErr.Add(ledger.FieldDate, "Bookings are closed on "+name)
		}
	}

	if !fieldErr.Empty() {
		return ledger.NormalizedReservation{}, fieldErr
	}
	return n, nil
}

func (s *Service) reservedRanges(ctx context.Context, eventID string, date time.Time, excludeID string) ([]ledger.ReservedRange, error) {
	day := ledger.Day(date)
	useCache := excludeID == "" && s.cache != nil
	var gen string
	if useCache {
		cached, g, ok := s.cache.Ranges(ctx, eventID, day)
		if ok {
			return cached, nil
		}
		gen = g
	}

	ranges, err := s.store.ReservedRanges(ctx, eventID, day, excludeID)
	if err != nil {
		return nil, &ledger.StoreError{Op: "read reserved ranges", Err: err}
	}
	if useCache {
		s.cache.StoreRanges(ctx, eventID, day, gen, ranges)
	}
	return ranges, nil
}

func (s *Service) lock(ctx context.Context, eventID string, date time.Time) (func(), error) {
	if s.cache == nil {
		return func() {}, nil
	}
	unlock, err := s.cache.Lock(ctx, eventID, date)
	if err != nil {
		return nil, &ledger.StoreError{Op: "lock " + eventID, Err: err}
	}
	return unlock, nil
}

func (s *Service) invalidate(ctx context.Context, eventID string, date time.Time) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, eventID, date)
	}
}

func (s *Service) writeFailed(op string, r *model.Reservation, err error) error {
	var conflict *ledger.ConflictError
	switch {
	case errors.As(err, &conflict):
		metrics.IncReservation(op, metrics.ResultConflict)
		s.logger.Info().
			Str("event_id", r.EventID).
			Str("date", r.DateString()).
			Str("conflicting_id", conflict.Conflicting.ReservationID).
			Msg("reservation lost a race for its range")
		s.invalidate(context.Background(), r.EventID, r.Date)
		return conflict
	case errors.Is(err, model.ErrAlreadyCancelled):
		return ErrAlreadyCancelled
	case errors.Is(err, model.ErrNotFound):
		return ErrReservationNotFound
	}

	metrics.IncReservation(op, metrics.ResultError)
	s.logger.Error().Err(err).Str("op", op).Str("reservation_id", r.ID).Msg("store write failed")
	return &ledger.StoreError{Op: op + " reservation", Err: err}
}

func (s *Service) publish(typ string, ev *model.Event, r *model.Reservation) {
	if s.bus == nil {
		return
	}
	cal, err := ev.Calendar()
	if err != nil {
		cal = ledger.DefaultCalendar()
	}
	s.bus.Publish(events.Event{
		Type: typ,
		Booking: events.Booking{
			ReservationID: r.ID,
			EventID:       r.EventID,
			EventTitle:    ev.Title,
			UserID:        r.UserID,
			ContactName:   r.ContactName,
			Phone:         r.Phone,
			Email:         r.Email,
			Date:          r.DateString(),
			StartLabel:    cal.BoundaryLabel(r.StartIndex),
			EndLabel:      cal.BoundaryLabel(r.EndIndex),
			Hours:         r.Hours(),
			Package:       r.Package,
			Theme:         r.Theme,
			Guests:        r.Guests,
			Vendors:       r.Vendors,
		},
		CreatedAt: s.now(),
	})
}

func draftFrom(eventID, reservationID string, req Request) ledger.Draft {
	return ledger.Draft{
		ResourceID:    eventID,
		ReservationID: reservationID,
		Name:          req.Name,
		Phone:         req.Phone,
		Date:          req.Date,
		Range:         req.Slot,
		Package:       req.Package,
		Theme:         req.Theme,
	}
}

func apply(r *model.Reservation, n ledger.NormalizedReservation) {
	r.ContactName = n.Name
	r.Phone = n.Phone
	r.Date = n.Date
	r.StartIndex = n.Range.Start
	r.EndIndex = n.Range.End
	r.Package = n.Package
	r.Theme = n.Theme
}
