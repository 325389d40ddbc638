package config

import (
	"context"
	"os"
	"time"
)

// WatchEvents reloads events.yaml on change and calls onUpdate with the latest
// catalog. The initial load happens before the watch loop starts; reload
// failures are passed to onError and the previous catalog stays in effect.
func WatchEvents(ctx context.Context, path string, interval time.Duration, onUpdate func(*EventsConfig), onError func(error)) error {
	if path == "" {
		path = "configs/events.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	cfg, err := LoadEventsConfig(path)
	if err != nil {
		return err
	}
	if onUpdate != nil {
		onUpdate(cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	lastMod := info.ModTime()

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := os.Stat(path)
				if err != nil {
					continue // transient errors
				}
				if !info.ModTime().After(lastMod) {
					continue
				}
				lastMod = info.ModTime()
				cfg, err := LoadEventsConfig(path)
				if err != nil {
					if onError != nil {
						onError(err)
					}
					continue
				}
				if onUpdate != nil {
					onUpdate(cfg)
				}
			}
		}
	}()

	return nil
}
