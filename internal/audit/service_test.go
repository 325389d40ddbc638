package audit

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"slotbook/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type fakeStore struct {
	from, to time.Time
	list     []*model.Reservation
	tableErr error
}

func (f *fakeStore) ListReservationsBetween(ctx context.Context, from, to time.Time) ([]*model.Reservation, error) {
	f.from, f.to = from, to
	return f.list, nil
}

func (f *fakeStore) GetTableNames(ctx context.Context) ([]string, error) {
	return []string{"events", "holidays"}, nil
}

func (f *fakeStore) GetTableData(ctx context.Context, table string) ([]map[string]any, []string, error) {
	if table == "holidays" && f.tableErr != nil {
		return nil, nil, f.tableErr
	}
	return []map[string]any{{"id": "gala", "title": "Gala Dinner"}}, []string{"id", "title"}, nil
}

type docRecorder struct {
	filename string
	caption  string
	data     []byte
}

func (d *docRecorder) SendDocument(ctx context.Context, filename string, data io.Reader, caption string) error {
	d.filename, d.caption = filename, caption
	var err error
	d.data, err = io.ReadAll(data)
	return err
}

func reservations() []*model.Reservation {
	cancelledAt := time.Date(2026, 6, 3, 9, 0, 0, 0, time.UTC)
	return []*model.Reservation{
		{ID: "r-1", EventID: "gala", EventTitle: "Gala Dinner", Date: time.Date(2026, 6, 5, 0, 0, 0, 0, time.UTC),
			StartIndex: 2, EndIndex: 5, ContactName: "Asha Rao", Phone: "9876543210", Vendors: []string{"Florist", "DJ"}},
		{ID: "r-2", EventID: "gala", EventTitle: "Gala Dinner", Date: time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC),
			StartIndex: 0, EndIndex: 1, Cancelled: true, CancelledAt: &cancelledAt},
	}
}

func TestExportPreviousMonth(t *testing.T) {
	store := &fakeStore{list: reservations(), tableErr: errors.New("no such table")}
	notifier := &docRecorder{}
	dir := t.TempDir()

	svc := NewService(Config{ExportDir: dir}, store, nil, notifier, nil)
	svc.now = func() time.Time { return time.Date(2026, 7, 1, 0, 1, 0, 0, time.UTC) }

	require.NoError(t, svc.ExportPreviousMonth(context.Background()))

	assert.Equal(t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), store.from)
	assert.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), store.to)
	assert.Equal(t, "reservations_2026_06.xlsx", notifier.filename)
	assert.Contains(t, notifier.caption, "June 2026, 2 reservations")

	saved, err := os.ReadFile(filepath.Join(dir, "reservations_2026_06.xlsx"))
	require.NoError(t, err)
	assert.Equal(t, notifier.data, saved)

	f, err := excelize.OpenReader(bytes.NewReader(notifier.data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"reservations", "events"}, f.GetSheetList())

	rows, err := f.GetRows("reservations")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, reservationColumns[:4], rows[0][:4])
	assert.Equal(t, "r-1", rows[1][0])
	assert.Equal(t, "2026-06-05", rows[1][3])
	assert.Equal(t, "Florist, DJ", rows[1][13])
	assert.Equal(t, "past", rows[1][15])
	assert.Equal(t, "cancelled", rows[2][15])

	events, err := f.GetRows("events")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"id", "title"}, {"gala", "Gala Dinner"}}, events)
}

func TestNextFirstOfMonth(t *testing.T) {
	assert.Equal(t, time.Date(2027, 1, 1, 0, 1, 0, 0, time.UTC), nextFirstOfMonth(time.Date(2026, 12, 15, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.Date(2026, 8, 1, 0, 1, 0, 0, time.UTC), nextFirstOfMonth(time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)))
}

func TestStartStop(t *testing.T) {
	svc := NewService(Config{}, &fakeStore{}, nil, nil, nil)
	svc.Start()
	svc.Start()
	svc.Stop()
	svc.Stop()
}
