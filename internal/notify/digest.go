package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"slotbook/internal/ledger"
	"slotbook/internal/model"

	"github.com/rs/zerolog"
)

// DigestStore lists the reservations dated in [from, to) and the events
// whose calendars label them.
type DigestStore interface {
	ListReservationsBetween(ctx context.Context, from, to time.Time) ([]*model.Reservation, error)
	GetEvent(ctx context.Context, id string) (*model.Event, error)
}

// TextSender delivers the digest.
type TextSender interface {
	SendText(ctx context.Context, text string) error
}

// DigestConfig holds the daily run time.
type DigestConfig struct {
	Location      *time.Location
	Hour          int
	CheckInterval time.Duration
}

// Digest sends managers the next day's upcoming reservations once a day.
type Digest struct {
	config  DigestConfig
	store   DigestStore
	sender  TextSender
	logger  *zerolog.Logger
	now     func() time.Time
	mu      sync.Mutex
	lastRun string
	running bool
	stopCh  chan struct{}
}

func NewDigest(cfg DigestConfig, store DigestStore, sender TextSender, logger *zerolog.Logger) *Digest {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Minute
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Digest{
		config: cfg,
		store:  store,
		sender: sender,
		logger: logger,
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
}

// Start runs the loop until ctx ends or Stop is called.
func (d *Digest) Start(ctx context.Context) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	d.logger.Info().Int("hour", d.config.Hour).Str("timezone", d.config.Location.String()).Msg("digest scheduler started")

	ticker := time.NewTicker(d.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			return
		case <-ticker.C:
			d.checkAndRun(ctx)
		}
	}
}

func (d *Digest) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		d.running = false
		close(d.stopCh)
	}
}

// checkAndRun sends the digest once per local date, at or after the hour.
func (d *Digest) checkAndRun(ctx context.Context) {
	now := d.now().In(d.config.Location)
	today := now.Format(model.DateLayout)

	d.mu.Lock()
	due := d.lastRun != today && now.Hour() >= d.config.Hour
	if due {
		d.lastRun = today
	}
	d.mu.Unlock()

	if !due {
		return
	}
	if err := d.RunOnce(ctx); err != nil {
		d.logger.Error().Err(err).Msg("send digest")
	}
}

// RunOnce sends the digest for the day after the current local date.
func (d *Digest) RunOnce(ctx context.Context) error {
	today := ledger.Day(d.now().In(d.config.Location))
	tomorrow := today.AddDate(0, 0, 1)

	list, err := d.store.ListReservationsBetween(ctx, tomorrow, tomorrow.AddDate(0, 0, 1))
	if err != nil {
		return fmt.Errorf("list reservations: %w", err)
	}

	upcoming := make([]*model.Reservation, 0, len(list))
	for _, r := range list {
		if r.Classify(today) == ledger.StatusUpcoming {
			upcoming = append(upcoming, r)
		}
	}
	if len(upcoming) == 0 {
		d.logger.Debug().Str("date", tomorrow.Format(model.DateLayout)).Msg("no reservations for digest")
		return nil
	}

	if err := d.sender.SendText(ctx, FormatDigest(tomorrow, upcoming, d.calendars(ctx, upcoming))); err != nil {
		return err
	}
	d.logger.Info().Int("reservations", len(upcoming)).Msg("digest sent")
	return nil
}

// calendars maps each event of list to its calendar. Events that cannot be
// read get the default calendar.
func (d *Digest) calendars(ctx context.Context, list []*model.Reservation) map[string]ledger.Calendar {
	out := make(map[string]ledger.Calendar)
	for _, r := range list {
		if _, ok := out[r.EventID]; ok {
			continue
		}
		cal := ledger.DefaultCalendar()
		ev, err := d.store.GetEvent(ctx, r.EventID)
		if err != nil {
			d.logger.Warn().Err(err).Str("event_id", r.EventID).Msg("digest uses default hours")
		} else if c, err := ev.Calendar(); err == nil {
			cal = c
		}
		out[r.EventID] = cal
	}
	return out
}

// FormatDigest lists reservations of date ordered by event and start hour.
// Hours are labelled with the event's calendar from calendars, or the default
// calendar when it is missing.
func FormatDigest(date time.Time, list []*model.Reservation, calendars map[string]ledger.Calendar) string {
	sorted := make([]*model.Reservation, len(list))
	copy(sorted, list)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].EventID != sorted[j].EventID {
			return sorted[i].EventID < sorted[j].EventID
		}
		return sorted[i].StartIndex < sorted[j].StartIndex
	})

	var sb strings.Builder
	fmt.Fprintf(&sb, "Bookings for %s: %d\n", date.Format(model.DateLayout), len(sorted))
	for _, r := range sorted {
		title := r.EventTitle
		if title == "" {
			title = r.EventID
		}
		cal, ok := calendars[r.EventID]
		if !ok {
			cal = ledger.DefaultCalendar()
		}
		fmt.Fprintf(&sb, "\n%s, %s - %s (%dh): %s, %s", title,
			cal.BoundaryLabel(r.StartIndex), cal.BoundaryLabel(r.EndIndex), r.Hours(), r.ContactName, r.Phone)
	}
	return sb.String()
}
