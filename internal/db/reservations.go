package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"slotbook/internal/ledger"
	"slotbook/internal/model"
)

const reservationColumns = `r.id, r.event_id, COALESCE(e.title, ''), r.user_id, COALESCE(r.user_name, ''), COALESCE(r.email, ''),
    r.contact_name, r.phone, r.booking_date, r.start_index, r.end_index, r.package, r.theme, r.guests,
    r.vendors, r.technical_setup, r.cancelled, r.status, r.created_at, r.updated_at, r.cancelled_at`

const reservationFrom = `FROM reservations r LEFT JOIN events e ON e.id = r.event_id`

// ReservedRanges returns the committed, non-cancelled ranges of an event on
// a date. excludeID drops one reservation, used when editing it.
func (db *DB) ReservedRanges(ctx context.Context, eventID string, date time.Time, excludeID string) ([]ledger.ReservedRange, error) {
	return reservedRanges(ctx, db.DB, eventID, date, excludeID)
}

func reservedRanges(ctx context.Context, q queryer, eventID string, date time.Time, excludeID string) ([]ledger.ReservedRange, error) {
	rows, err := q.QueryContext(ctx, `
        SELECT id, start_index, end_index
        FROM reservations
        WHERE event_id = ? AND booking_date = ? AND cancelled = 0 AND id != ?
        ORDER BY start_index`,
		eventID, date.Format(model.DateLayout), excludeID,
	)
	if err != nil {
		return nil, fmt.Errorf("query reserved ranges: %w", err)
	}
	defer rows.Close()

	day := ledger.Day(date)
	var out []ledger.ReservedRange
	for rows.Next() {
		r := ledger.ReservedRange{ResourceID: eventID, Date: day}
		if err := rows.Scan(&r.ReservationID, &r.Start, &r.End); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CreateReservation inserts r if its range is still free. The snapshot read
// and the insert share one immediate transaction, so of two overlapping
// writers only the first succeeds; the second gets *ledger.ConflictError.
func (db *DB) CreateReservation(ctx context.Context, r *model.Reservation) error {
	vendors, setup, err := encodeLists(r)
	if err != nil {
		return err
	}

	return db.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := reservedRanges(ctx, tx, r.EventID, r.Date, r.ID)
		if err != nil {
			return err
		}
		if _, err := ledger.Commit(r.Normalized(), existing); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
            INSERT INTO reservations (
                id, event_id, user_id, user_name, email, contact_name, phone, booking_date,
                start_index, end_index, package, theme, guests, vendors, technical_setup,
                cancelled, status, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
			r.ID, r.EventID, r.UserID, r.UserName, r.Email, r.ContactName, r.Phone, r.DateString(),
			r.StartIndex, r.EndIndex, r.Package, r.Theme, r.Guests, vendors, setup,
			string(r.Status), r.CreatedAt, r.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert reservation: %w", err)
		}
		return nil
	})
}

// UpdateReservation rewrites a non-cancelled reservation after re-checking
// its new range against every other reservation of the target date.
func (db *DB) UpdateReservation(ctx context.Context, r *model.Reservation) error {
	vendors, setup, err := encodeLists(r)
	if err != nil {
		return err
	}

	return db.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := reservedRanges(ctx, tx, r.EventID, r.Date, r.ID)
		if err != nil {
			return err
		}
		if _, err := ledger.Commit(r.Normalized(), existing); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
            UPDATE reservations SET
                contact_name = ?, phone = ?, booking_date = ?, start_index = ?, end_index = ?,
                package = ?, theme = ?, guests = ?, vendors = ?, technical_setup = ?,
                status = ?, updated_at = ?
            WHERE id = ? AND cancelled = 0`,
			r.ContactName, r.Phone, r.DateString(), r.StartIndex, r.EndIndex,
			r.Package, r.Theme, r.Guests, vendors, setup,
			string(r.Status), r.UpdatedAt, r.ID,
		)
		if err != nil {
			return fmt.Errorf("update reservation: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return missingOrCancelled(ctx, tx, r.ID)
		}
		return nil
	})
}

// CancelReservation flips the cancellation flag. The row is kept.
func (db *DB) CancelReservation(ctx context.Context, id string, at time.Time) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
            UPDATE reservations
            SET cancelled = 1, status = ?, cancelled_at = ?, updated_at = ?
            WHERE id = ? AND cancelled = 0`,
			string(ledger.StatusCancelled), at, at, id,
		)
		if err != nil {
			return fmt.Errorf("cancel reservation: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return missingOrCancelled(ctx, tx, id)
		}
		return nil
	})
}

func missingOrCancelled(ctx context.Context, q queryer, id string) error {
	var cancelled bool
	err := q.QueryRowContext(ctx, `SELECT cancelled FROM reservations WHERE id = ?`, id).Scan(&cancelled)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrNotFound
	}
	if err != nil {
		return err
	}
	if cancelled {
		return model.ErrAlreadyCancelled
	}
	return fmt.Errorf("reservation %s was not updated", id)
}

// GetReservation returns a reservation by id.
func (db *DB) GetReservation(ctx context.Context, id string) (*model.Reservation, error) {
	row := db.QueryRowContext(ctx, `SELECT `+reservationColumns+` `+reservationFrom+` WHERE r.id = ?`, id)
	r, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListReservationsByUser returns every reservation of a user, newest date first.
func (db *DB) ListReservationsByUser(ctx context.Context, userID string) ([]*model.Reservation, error) {
	return db.listReservations(ctx, `WHERE r.user_id = ? ORDER BY r.booking_date DESC, r.start_index`, userID)
}

// ListReservationsBetween returns reservations dated in [from, to).
func (db *DB) ListReservationsBetween(ctx context.Context, from, to time.Time) ([]*model.Reservation, error) {
	return db.listReservations(ctx, `WHERE r.booking_date >= ? AND r.booking_date < ? ORDER BY r.booking_date, r.event_id, r.start_index`,
		from.Format(model.DateLayout), to.Format(model.DateLayout))
}

// ListUnsettledReservations returns reservations whose stored status may
// still change as days pass.
func (db *DB) ListUnsettledReservations(ctx context.Context) ([]*model.Reservation, error) {
	return db.listReservations(ctx, `WHERE r.status != ? OR (r.cancelled = 1 AND r.status != ?) ORDER BY r.booking_date`,
		string(ledger.StatusPast), string(ledger.StatusCancelled))
}

// UpdateStatus rewrites the stored status column.
func (db *DB) UpdateStatus(ctx context.Context, id string, status ledger.Status) error {
	_, err := db.ExecContext(ctx, `UPDATE reservations SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

func (db *DB) listReservations(ctx context.Context, where string, args ...any) ([]*model.Reservation, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+reservationColumns+` `+reservationFrom+` `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query reservations: %w", err)
	}
	defer rows.Close()

	var out []*model.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReservation(s scanner) (*model.Reservation, error) {
	var (
		r           model.Reservation
		date        string
		vendors     string
		setup       string
		status      string
		cancelledAt sql.NullTime
	)
	err := s.Scan(
		&r.ID, &r.EventID, &r.EventTitle, &r.UserID, &r.UserName, &r.Email,
		&r.ContactName, &r.Phone, &date, &r.StartIndex, &r.EndIndex, &r.Package, &r.Theme, &r.Guests,
		&vendors, &setup, &r.Cancelled, &status, &r.CreatedAt, &r.UpdatedAt, &cancelledAt,
	)
	if err != nil {
		return nil, err
	}

	r.Date, err = time.Parse(model.DateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("parse booking date %q: %w", date, err)
	}
	r.Status = ledger.Status(status)
	if cancelledAt.Valid {
		t := cancelledAt.Time
		r.CancelledAt = &t
	}
	if err := json.Unmarshal([]byte(vendors), &r.Vendors); err != nil {
		return nil, fmt.Errorf("decode vendors: %w", err)
	}
	if err := json.Unmarshal([]byte(setup), &r.TechnicalSetup); err != nil {
		return nil, fmt.Errorf("decode technical setup: %w", err)
	}
	return &r, nil
}

func encodeLists(r *model.Reservation) (string, string, error) {
	vendors := r.Vendors
	if vendors == nil {
		vendors = []string{}
	}
	setup := r.TechnicalSetup
	if setup == nil {
		setup = []string{}
	}
	v, err := json.Marshal(vendors)
	if err != nil {
		return "", "", fmt.Errorf("encode vendors: %w", err)
	}
	s, err := json.Marshal(setup)
	if err != nil {
		return "", "", fmt.Errorf("encode technical setup: %w", err)
	}
	return string(v), string(s), nil
}
