package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"slotbook/internal/config"
	"slotbook/internal/model"
)

// SyncEventsFromConfig applies events.yaml to the database. It upserts events,
// marks events missing from the file inactive and replaces the holiday list.
func (db *DB) SyncEventsFromConfig(ctx context.Context, cfg *config.EventsConfig) error {
	if cfg == nil {
		return fmt.Errorf("events config is nil")
	}

	now := time.Now()
	return db.withTx(ctx, func(tx *sql.Tx) error {
		seen := make(map[string]struct{}, len(cfg.Events))

		for i, ev := range cfg.Events {
			open, closing := 6, 22
			if ev.Hours != nil {
				var err error
				if open, closing, err = ev.Hours.Bounds(); err != nil {
					return fmt.Errorf("event %s hours: %w", ev.ID, err)
				}
			}
			packages, err := json.Marshal(nonNil(ev.Packages))
			if err != nil {
				return err
			}
			themes, err := json.Marshal(nonNil(ev.Themes))
			if err != nil {
				return err
			}

			// Preserve created_at if the event already exists.
			_, err = tx.ExecContext(ctx, `
                INSERT INTO events (id, title, category, description, location, price, open_hour, close_hour,
                    packages, themes, is_active, sort_order, created_at, updated_at)
                VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, COALESCE((SELECT created_at FROM events WHERE id = ?), ?), ?)
                ON CONFLICT(id) DO UPDATE SET
                    title = excluded.title,
                    category = excluded.category,
                    description = excluded.description,
                    location = excluded.location,
                    price = excluded.price,
                    open_hour = excluded.open_hour,
                    close_hour = excluded.close_hour,
                    packages = excluded.packages,
                    themes = excluded.themes,
                    is_active = excluded.is_active,
                    sort_order = excluded.sort_order,
                    updated_at = excluded.updated_at`,
				ev.ID, ev.Title, ev.Category, ev.Description, ev.Location, ev.Price, open, closing,
				string(packages), string(themes), ev.IsActive, i, ev.ID, now, now,
			)
			if err != nil {
				return fmt.Errorf("sync event %s: %w", ev.ID, err)
			}
			seen[ev.ID] = struct{}{}
		}

		// Deactivate events that disappeared from config.
		ids, err := eventIDs(ctx, tx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			if _, err := tx.ExecContext(ctx, `UPDATE events SET is_active = 0, updated_at = ? WHERE id = ?`, now, id); err != nil {
				return fmt.Errorf("deactivate event %s: %w", id, err)
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM holidays`); err != nil {
			return fmt.Errorf("clear holidays: %w", err)
		}
		for _, h := range cfg.Holidays {
			if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO holidays (date, name) VALUES (?, ?)`, h.Date, h.Name); err != nil {
				return fmt.Errorf("insert holiday %s: %w", h.Date, err)
			}
		}
		return nil
	})
}

func eventIDs(ctx context.Context, tx *sql.Tx) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM events`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const eventColumns = `id, title, COALESCE(category, ''), COALESCE(description, ''), COALESCE(location, ''), price,
    open_hour, close_hour, packages, themes, is_active, sort_order, created_at, updated_at`

// ListActiveEvents returns active events in catalog order.
func (db *DB) ListActiveEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+eventColumns+` FROM events WHERE is_active = 1 ORDER BY sort_order, id`)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ev)
	}
	return out, rows.Err()
}

// GetEvent returns an event by id, active or not.
func (db *DB) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	ev, err := scanEvent(db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	return ev, err
}

// IsHoliday reports whether date is closed for booking.
func (db *DB) IsHoliday(ctx context.Context, date time.Time) (bool, string, error) {
	var name sql.NullString
	err := db.QueryRowContext(ctx, `SELECT name FROM holidays WHERE date = ?`, date.Format(model.DateLayout)).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, "", nil
	}
	if err != nil {
		return false, "", err
	}
	return true, name.String, nil
}

func scanEvent(s scanner) (*model.Event, error) {
	var (
		ev       model.Event
		packages string
		themes   string
	)
	err := s.Scan(&ev.ID, &ev.Title, &ev.Category, &ev.Description, &ev.Location, &ev.Price,
		&ev.OpenHour, &ev.CloseHour, &packages, &themes, &ev.IsActive, &ev.SortOrder, &ev.CreatedAt, &ev.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(packages), &ev.Packages); err != nil {
		return nil, fmt.Errorf("decode packages: %w", err)
	}
	if err := json.Unmarshal([]byte(themes), &ev.Themes); err != nil {
		return nil, fmt.Errorf("decode themes: %w", err)
	}
	return &ev, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
