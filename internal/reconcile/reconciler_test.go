package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"slotbook/internal/ledger"
	"slotbook/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu        sync.Mutex
	list      []*model.Reservation
	updates   map[string]ledger.Status
	listCalls int
	err       error
}

func (f *fakeStore) ListUnsettledReservations(ctx context.Context) ([]*model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return f.list, f.err
}

func (f *fakeStore) UpdateStatus(ctx context.Context, id string, status ledger.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updates == nil {
		f.updates = make(map[string]ledger.Status)
	}
	f.updates[id] = status
	return nil
}

func (f *fakeStore) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

func TestRunOnce(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2026, 7, d, 0, 0, 0, 0, time.UTC) }
	store := &fakeStore{list: []*model.Reservation{
		{ID: "yesterday", Date: day(9), Status: ledger.StatusUpcoming},
		{ID: "today", Date: day(10), Status: ledger.StatusUpcoming},
		{ID: "cancelled", Date: day(20), Cancelled: true, Status: ledger.StatusUpcoming},
		{ID: "stale-past", Date: day(12), Status: ledger.StatusPast},
	}}

	r := New(store, time.Hour, nil, nil)
	r.now = func() time.Time { return time.Date(2026, 7, 10, 23, 0, 0, 0, time.UTC) }

	n, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, map[string]ledger.Status{
		"yesterday":  ledger.StatusPast,
		"cancelled":  ledger.StatusCancelled,
		"stale-past": ledger.StatusUpcoming,
	}, store.updates)
}

func TestRunOnce_UsesLocation(t *testing.T) {
	store := &fakeStore{list: []*model.Reservation{
		{ID: "r-1", Date: time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC), Status: ledger.StatusUpcoming},
	}}
	loc := time.FixedZone("UTC+5", 5*3600)

	r := New(store, time.Hour, loc, nil)
	// 21:00 UTC on the 10th is already the 11th in UTC+5.
	r.now = func() time.Time { return time.Date(2026, 7, 10, 21, 0, 0, 0, time.UTC) }

	n, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, ledger.StatusPast, store.updates["r-1"])
}

func TestRunOnce_StoreError(t *testing.T) {
	r := New(&fakeStore{err: errors.New("database is locked")}, time.Hour, nil, nil)
	_, err := r.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestStartStop(t *testing.T) {
	store := &fakeStore{}
	r := New(store, 10*time.Millisecond, nil, nil)

	r.Start(context.Background())
	r.Start(context.Background())
	assert.Eventually(t, func() bool { return store.calls() >= 2 }, time.Second, 5*time.Millisecond)

	r.Stop()
	calls := store.calls()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, store.calls())
}
