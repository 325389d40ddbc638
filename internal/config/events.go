package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EventConfig represents a single bookable event.
type EventConfig struct {
	ID          string       `yaml:"id"`
	Title       string       `yaml:"title"`
	Category    string       `yaml:"category"`
	Description string       `yaml:"description"`
	Location    string       `yaml:"location"`
	Price       int64        `yaml:"price"`
	IsActive    bool         `yaml:"is_active"`
	Hours       *HoursConfig `yaml:"hours,omitempty"`
	Packages    []string     `yaml:"packages,omitempty"`
	Themes      []string     `yaml:"themes,omitempty"`
}

// HoursConfig is the first and the last bookable hour mark.
type HoursConfig struct {
	Open  string `yaml:"open"`  // "06:00"
	Close string `yaml:"close"` // "22:00"
}

// HolidayConfig represents a date closed for booking.
type HolidayConfig struct {
	Date string `yaml:"date"` // "2026-01-01"
	Name string `yaml:"name"`
}

// EventDefaults are applied to events that leave the field empty.
type EventDefaults struct {
	Hours    *HoursConfig `yaml:"hours"`
	Packages []string     `yaml:"packages"`
	Themes   []string     `yaml:"themes"`
}

// EventsConfig is the root configuration for events.yaml.
type EventsConfig struct {
	Events   []EventConfig   `yaml:"events"`
	Defaults EventDefaults   `yaml:"defaults"`
	Holidays []HolidayConfig `yaml:"holidays"`
}

// LoadEventsConfig loads and validates the event catalog from a YAML file.
func LoadEventsConfig(path string) (*EventsConfig, error) {
	if path == "" {
		path = "configs/events.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read events config: %w", err)
	}

	var cfg EventsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse events config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate events config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *EventsConfig) Validate() error {
	if len(c.Events) == 0 {
		return fmt.Errorf("no events defined")
	}

	ids := make(map[string]bool)
	for i, ev := range c.Events {
		if ev.ID == "" {
			return fmt.Errorf("event[%d]: id is required", i)
		}
		if ids[ev.ID] {
			return fmt.Errorf("event[%d]: duplicate id '%s'", i, ev.ID)
		}
		ids[ev.ID] = true

		if ev.Title == "" {
			return fmt.Errorf("event[%d]: title is required", i)
		}
		if ev.Price < 0 {
			return fmt.Errorf("event[%d]: price cannot be negative", i)
		}
		if ev.Hours != nil {
			if _, _, err := ev.Hours.Bounds(); err != nil {
				return fmt.Errorf("event[%d].hours: %w", i, err)
			}
		}
	}

	if c.Defaults.Hours != nil {
		if _, _, err := c.Defaults.Hours.Bounds(); err != nil {
			return fmt.Errorf("defaults.hours: %w", err)
		}
	}

	for i, h := range c.Holidays {
		if h.Date == "" {
			return fmt.Errorf("holiday[%d]: date is required", i)
		}
		if _, err := time.Parse("2006-01-02", h.Date); err != nil {
			return fmt.Errorf("holiday[%d]: invalid date format '%s', expected YYYY-MM-DD", i, h.Date)
		}
	}

	return nil
}

// Bounds returns the open and close hours. Both marks must be whole hours.
func (h *HoursConfig) Bounds() (int, int, error) {
	open, err := parseHour(h.Open)
	if err != nil {
		return 0, 0, fmt.Errorf("open: %w", err)
	}
	closing, err := parseHour(h.Close)
	if err != nil {
		return 0, 0, fmt.Errorf("close: %w", err)
	}
	if closing < open {
		return 0, 0, fmt.Errorf("close %s is before open %s", h.Close, h.Open)
	}
	return open, closing, nil
}

func parseHour(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("time is required")
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid format '%s', expected HH:MM", s)
	}
	if t.Minute() != 0 {
		return 0, fmt.Errorf("'%s' is not a whole hour", s)
	}
	return t.Hour(), nil
}

func (c *EventsConfig) applyDefaults() {
	for i := range c.Events {
		if c.Events[i].Hours == nil {
			if c.Defaults.Hours != nil {
				c.Events[i].Hours = c.Defaults.Hours
			} else {
				c.Events[i].Hours = &HoursConfig{Open: "06:00", Close: "22:00"}
			}
		}
		if len(c.Events[i].Packages) == 0 {
			c.Events[i].Packages = c.Defaults.Packages
		}
		if len(c.Events[i].Themes) == 0 {
			c.Events[i].Themes = c.Defaults.Themes
		}
	}
}

// GetEventByID returns event config by ID.
func (c *EventsConfig) GetEventByID(id string) *EventConfig {
	for i := range c.Events {
		if c.Events[i].ID == id {
			return &c.Events[i]
		}
	}
	return nil
}

// GetActiveEvents returns only active events.
func (c *EventsConfig) GetActiveEvents() []EventConfig {
	result := make([]EventConfig, 0)
	for _, ev := range c.Events {
		if ev.IsActive {
			result = append(result, ev)
		}
	}
	return result
}

// IsHoliday checks if a date is a holiday.
func (c *EventsConfig) IsHoliday(date time.Time) (bool, string) {
	dateStr := date.Format("2006-01-02")
	for _, h := range c.Holidays {
		if h.Date == dateStr {
			return true, h.Name
		}
	}
	return false, ""
}

// String returns a summary of the configuration.
func (c *EventsConfig) String() string {
	return fmt.Sprintf("EventsConfig: %d events (%d active), %d holidays",
		len(c.Events), len(c.GetActiveEvents()), len(c.Holidays))
}
