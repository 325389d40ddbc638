// Package audit builds the monthly reservations workbook and sends it to
// managers.
package audit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"slotbook/internal/ledger"
	"slotbook/internal/model"

	"github.com/rs/zerolog"
)

// Store provides the data of the report.
type Store interface {
	ListReservationsBetween(ctx context.Context, from, to time.Time) ([]*model.Reservation, error)
	GetTableNames(ctx context.Context) ([]string, error)
	GetTableData(ctx context.Context, tableName string) ([]map[string]any, []string, error)
}

// Notifier delivers the workbook.
type Notifier interface {
	SendDocument(ctx context.Context, filename string, data io.Reader, caption string) error
}

type Config struct {
	// ExportDir keeps a copy of every report when set.
	ExportDir string
	Location  *time.Location
}

const reservationsSheet = "reservations"

var reservationColumns = []string{
	"id", "event_id", "event", "date", "start_index", "end_index", "hours",
	"name", "phone", "email", "package", "theme", "expected_guests", "vendors",
	"technical_setup", "status", "created_at", "cancelled_at",
}

type Service struct {
	config   Config
	store    Store
	writer   func() ExcelWriter
	notifier Notifier
	logger   *zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewService(cfg Config, store Store, writerFactory func() ExcelWriter, notifier Notifier, logger *zerolog.Logger) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if writerFactory == nil {
		writerFactory = NewExcelWriter
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Service{
		config:   cfg,
		store:    store,
		writer:   writerFactory,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start schedules an export on the first day of every month.
func (s *Service) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop()
}

func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Service) loop() {
	defer s.wg.Done()

	next := nextFirstOfMonth(s.now().In(s.config.Location))
	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()
	s.logger.Info().Time("next_run", next).Msg("monthly report scheduled")

	for {
		select {
		case <-s.stopCh:
			return
		case <-timer.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
			if err := s.ExportPreviousMonth(ctx); err != nil {
				s.logger.Error().Err(err).Msg("monthly report failed")
			}
			cancel()

			next = nextFirstOfMonth(s.now().In(s.config.Location))
			timer.Reset(time.Until(next))
			s.logger.Info().Time("next_run", next).Msg("monthly report scheduled")
		}
	}
}

// nextFirstOfMonth is 00:01 on the first day of the month after now.
func nextFirstOfMonth(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month()+1, 1, 0, 1, 0, 0, now.Location())
}

// ExportPreviousMonth reports the month before the current one.
func (s *Service) ExportPreviousMonth(ctx context.Context) error {
	now := s.now().In(s.config.Location)
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return s.Export(ctx, first.AddDate(0, -1, 0))
}

// Export writes the reservations dated in the month of month together with
// the catalog tables and sends the workbook to managers.
func (s *Service) Export(ctx context.Context, month time.Time) error {
	from := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	list, err := s.store.ListReservationsBetween(ctx, from, to)
	if err != nil {
		return fmt.Errorf("list reservations: %w", err)
	}

	excel := s.writer()
	defer excel.Close()

	if err := writeReservations(excel, list, ledger.Day(s.now().In(s.config.Location))); err != nil {
		return err
	}
	s.writeCatalog(ctx, excel)

	var buf bytes.Buffer
	if err := excel.Save(&buf); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}

	filename := Filename(from)
	if s.config.ExportDir != "" {
		if err := os.MkdirAll(s.config.ExportDir, 0o755); err != nil {
			return fmt.Errorf("create export dir: %w", err)
		}
		if err := os.WriteFile(filepath.Join(s.config.ExportDir, filename), buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", filename, err)
		}
	}

	if s.notifier != nil {
		caption := fmt.Sprintf("Monthly report: %s %d, %d reservations", from.Month(), from.Year(), len(list))
		if err := s.notifier.SendDocument(ctx, filename, &buf, caption); err != nil {
			return fmt.Errorf("send report: %w", err)
		}
	}

	s.logger.Info().Str("file", filename).Int("reservations", len(list)).Msg("monthly report exported")
	return nil
}

func writeReservations(excel ExcelWriter, list []*model.Reservation, asOf time.Time) error {
	if err := excel.AddSheet(reservationsSheet); err != nil {
		return err
	}
	if err := excel.WriteHeader(reservationColumns); err != nil {
		return err
	}

	for _, r := range list {
		cancelledAt := ""
		if r.CancelledAt != nil {
			cancelledAt = r.CancelledAt.Format(time.RFC3339)
		}
		row := []any{
			r.ID, r.EventID, r.EventTitle, r.DateString(), r.StartIndex, r.EndIndex, r.Hours(),
			r.ContactName, r.Phone, r.Email, r.Package, r.Theme, r.Guests, strings.Join(r.Vendors, ", "),
			strings.Join(r.TechnicalSetup, ", "), string(r.Classify(asOf)), r.CreatedAt.Format(time.RFC3339), cancelledAt,
		}
		if err := excel.WriteRow(row); err != nil {
			return fmt.Errorf("write reservation %s: %w", r.ID, err)
		}
	}
	return nil
}

// writeCatalog adds one sheet per catalog table. Failed tables are skipped.
func (s *Service) writeCatalog(ctx context.Context, excel ExcelWriter) {
	tables, err := s.store.GetTableNames(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("list catalog tables")
		return
	}

	for _, table := range tables {
		data, columns, err := s.store.GetTableData(ctx, table)
		if err != nil {
			s.logger.Error().Err(err).Str("table", table).Msg("read catalog table")
			continue
		}
		if err := excel.AddSheet(table); err != nil {
			s.logger.Error().Err(err).Str("table", table).Msg("add sheet")
			continue
		}
		if err := excel.WriteHeader(columns); err != nil {
			continue
		}
		for _, row := range data {
			values := make([]any, len(columns))
			for i, col := range columns {
				values[i] = row[col]
			}
			if err := excel.WriteRow(values); err != nil {
				s.logger.Error().Err(err).Str("table", table).Msg("write row")
			}
		}
	}
}

// Filename is like "reservations_2026_07.xlsx".
func Filename(month time.Time) string {
	return fmt.Sprintf("reservations_%d_%02d.xlsx", month.Year(), int(month.Month()))
}
