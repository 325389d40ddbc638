// Package notify tells managers about bookings through a Telegram bot.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"slotbook/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Sender is the part of *tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// RetryConfig controls resending after Telegram failures.
type RetryConfig struct {
	MaxRetries  int
	RetryDelays []time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:  3,
		RetryDelays: []time.Duration{1 * time.Second, 5 * time.Second, 30 * time.Second},
	}
}

type Telegram struct {
	sender   Sender
	managers []int64
	retry    RetryConfig
	logger   *zerolog.Logger
}

// NewTelegram logs the bot in with token.
func NewTelegram(token string, managers []int64, logger *zerolog.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	return New(bot, managers, logger), nil
}

func New(sender Sender, managers []int64, logger *zerolog.Logger) *Telegram {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Telegram{sender: sender, managers: managers, retry: DefaultRetryConfig(), logger: logger}
}

// HandleEvent sends a short note about a booking event to every manager.
func (t *Telegram) HandleEvent(e events.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	text := FormatEvent(e)
	var errs []error
	for _, chatID := range t.managers {
		if err := t.send(ctx, tgbotapi.NewMessage(chatID, text)); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}

// SendDocument sends a file to every manager.
func (t *Telegram) SendDocument(ctx context.Context, filename string, data io.Reader, caption string) error {
	body, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("read %s: %w", filename, err)
	}

	var errs []error
	for _, chatID := range t.managers {
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: filename, Bytes: body})
		doc.Caption = caption
		if err := t.send(ctx, doc); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}

// SendText sends a plain message to every manager.
func (t *Telegram) SendText(ctx context.Context, text string) error {
	var errs []error
	for _, chatID := range t.managers {
		if err := t.send(ctx, tgbotapi.NewMessage(chatID, text)); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}

// send retries transient failures. A 429 waits for the delay Telegram asks
// for; 400 and 403 are final.
func (t *Telegram) send(ctx context.Context, c tgbotapi.Chattable) error {
	var lastErr error
	for attempt := 0; attempt <= t.retry.MaxRetries; attempt++ {
		_, err := t.sender.Send(c)
		if err == nil {
			return nil
		}
		lastErr = err

		wait := t.delay(attempt)
		var tgErr *tgbotapi.Error
		if errors.As(err, &tgErr) {
			switch tgErr.Code {
			case 400, 403:
				return err
			case 429:
				if tgErr.RetryAfter > 0 {
					wait = time.Duration(tgErr.RetryAfter) * time.Second
				}
			}
		}
		if attempt == t.retry.MaxRetries {
			break
		}

		t.logger.Warn().Err(err).Int("attempt", attempt+1).Dur("wait", wait).Msg("telegram send failed, retrying")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("telegram send: %w", lastErr)
}

func (t *Telegram) delay(attempt int) time.Duration {
	if attempt < len(t.retry.RetryDelays) {
		return t.retry.RetryDelays[attempt]
	}
	if n := len(t.retry.RetryDelays); n > 0 {
		return t.retry.RetryDelays[n-1]
	}
	return 0
}

// FormatEvent renders a booking event for managers.
func FormatEvent(e events.Event) string {
	var head string
	switch e.Type {
	case events.BookingCreated:
		head = "New booking"
	case events.BookingUpdated:
		head = "Booking changed"
	case events.BookingCancelled:
		head = "Booking cancelled"
	default:
		head = e.Type
	}

	b := e.Booking
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s\n", head, b.EventTitle)
	fmt.Fprintf(&sb, "Date: %s, %s - %s (%dh)\n", b.Date, b.StartLabel, b.EndLabel, b.Hours)
	fmt.Fprintf(&sb, "Contact: %s, %s", b.ContactName, b.Phone)
	if b.Email != "" {
		fmt.Fprintf(&sb, ", %s", b.Email)
	}
	if b.Package != "" || b.Theme != "" {
		fmt.Fprintf(&sb, "\nPackage: %s, theme: %s", b.Package, b.Theme)
	}
	if b.Guests > 0 {
		fmt.Fprintf(&sb, "\nGuests: %d", b.Guests)
	}
	if len(b.Vendors) > 0 {
		fmt.Fprintf(&sb, "\nVendors: %s", strings.Join(b.Vendors, ", "))
	}
	return sb.String()
}
