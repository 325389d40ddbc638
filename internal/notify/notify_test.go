package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"slotbook/internal/events"
	"slotbook/internal/model"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu    sync.Mutex
	sent  []tgbotapi.Chattable
	fails []error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.fails) > 0 {
		err := f.fails[0]
		f.fails = f.fails[1:]
		return tgbotapi.Message{}, err
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func fastRetry(t *Telegram) *Telegram {
	t.retry = RetryConfig{MaxRetries: 2, RetryDelays: []time.Duration{time.Millisecond}}
	return t
}

func bookingEvent() events.Event {
	return events.Event{
		Type: events.BookingCreated,
		Booking: events.Booking{
			ReservationID: "r-1",
			EventTitle:    "Luxury Wedding",
			ContactName:   "Asha Rao",
			Phone:         "9876543210",
			Date:          "2026-07-10",
			StartLabel:    "08:00 AM",
			EndLabel:      "11:00 AM",
			Hours:         3,
			Package:       "Wedding Setup (Stage + Catering + Decoration)",
			Theme:         "Royal",
			Guests:        150,
			Vendors:       []string{"Florist", "DJ"},
		},
	}
}

func TestHandleEvent_SendsToEveryManager(t *testing.T) {
	sender := &fakeSender{}
	tg := New(sender, []int64{11, 22}, nil)

	require.NoError(t, tg.HandleEvent(bookingEvent()))
	require.Len(t, sender.sent, 2)

	msg, ok := sender.sent[1].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(22), msg.ChatID)
	assert.Contains(t, msg.Text, "New booking: Luxury Wedding")
	assert.Contains(t, msg.Text, "08:00 AM - 11:00 AM (3h)")
	assert.Contains(t, msg.Text, "Vendors: Florist, DJ")
}

func TestSend_Retries(t *testing.T) {
	sender := &fakeSender{fails: []error{
		&tgbotapi.Error{Code: 429, Message: "Too Many Requests"},
		errors.New("connection reset"),
	}}
	tg := fastRetry(New(sender, []int64{11}, nil))

	require.NoError(t, tg.SendText(context.Background(), "hello"))
	assert.Len(t, sender.sent, 1)
}

func TestSend_FinalErrors(t *testing.T) {
	sender := &fakeSender{fails: []error{&tgbotapi.Error{Code: 403, Message: "bot was blocked by the user"}}}
	tg := fastRetry(New(sender, []int64{11}, nil))

	err := tg.SendText(context.Background(), "hello")
	var tgErr *tgbotapi.Error
	require.ErrorAs(t, err, &tgErr)
	assert.Equal(t, 403, tgErr.Code)
	assert.Empty(t, sender.sent)
}

func TestSendDocument(t *testing.T) {
	sender := &fakeSender{}
	tg := New(sender, []int64{11}, nil)

	require.NoError(t, tg.SendDocument(context.Background(), "July_2026.xlsx", strings.NewReader("xlsx"), "report"))
	require.Len(t, sender.sent, 1)

	doc, ok := sender.sent[0].(tgbotapi.DocumentConfig)
	require.True(t, ok)
	assert.Equal(t, "report", doc.Caption)
	file, ok := doc.File.(tgbotapi.FileBytes)
	require.True(t, ok)
	assert.Equal(t, "July_2026.xlsx", file.Name)
	assert.Equal(t, []byte("xlsx"), file.Bytes)
}

type fakeDigestStore struct {
	from, to time.Time
	list     []*model.Reservation
	events   map[string]*model.Event
}

func (f *fakeDigestStore) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	if ev, ok := f.events[id]; ok {
		return ev, nil
	}
	return nil, model.ErrNotFound
}

func (f *fakeDigestStore) ListReservationsBetween(ctx context.Context, from, to time.Time) ([]*model.Reservation, error) {
	f.from, f.to = from, to
	return f.list, nil
}

type textRecorder struct {
	texts []string
}

func (r *textRecorder) SendText(ctx context.Context, text string) error {
	r.texts = append(r.texts, text)
	return nil
}

func TestDigest(t *testing.T) {
	tomorrow := time.Date(2026, 7, 11, 0, 0, 0, 0, time.UTC)
	store := &fakeDigestStore{list: []*model.Reservation{
		{ID: "r-2", EventID: "gala", EventTitle: "Gala", Date: tomorrow, StartIndex: 5, EndIndex: 7, ContactName: "Ravi"},
		{ID: "r-1", EventID: "gala", EventTitle: "Gala", Date: tomorrow, StartIndex: 1, EndIndex: 3, ContactName: "Asha"},
		{ID: "r-3", EventID: "gala", Date: tomorrow, StartIndex: 8, EndIndex: 9, Cancelled: true},
		{ID: "r-4", EventID: "retired", EventTitle: "Retired Expo", Date: tomorrow, StartIndex: 0, EndIndex: 2, ContactName: "Meera"},
	}, events: map[string]*model.Event{
		"gala": {ID: "gala", OpenHour: 9, CloseHour: 20},
	}}
	out := &textRecorder{}

	d := NewDigest(DigestConfig{Hour: 18}, store, out, nil)
	d.now = func() time.Time { return time.Date(2026, 7, 10, 17, 0, 0, 0, time.UTC) }

	d.checkAndRun(context.Background())
	assert.Empty(t, out.texts)

	d.now = func() time.Time { return time.Date(2026, 7, 10, 18, 5, 0, 0, time.UTC) }
	d.checkAndRun(context.Background())
	d.checkAndRun(context.Background())

	require.Len(t, out.texts, 1)
	assert.Equal(t, tomorrow, store.from)
	assert.Equal(t, tomorrow.AddDate(0, 0, 1), store.to)

	text := out.texts[0]
	assert.True(t, strings.HasPrefix(text, "Bookings for 2026-07-11: 3"))
	assert.Less(t, strings.Index(text, "Asha"), strings.Index(text, "Ravi"))
	assert.Contains(t, text, "Gala, 10:00 AM - 12:00 PM (2h): Asha")
	assert.Contains(t, text, "Gala, 02:00 PM - 04:00 PM (2h): Ravi")
	assert.Contains(t, text, "Retired Expo, 06:00 AM - 08:00 AM (2h): Meera")
	assert.NotContains(t, text, "slots")
}
