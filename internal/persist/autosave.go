package persist

import (
	"context"
	"log/slog"
	"time"
)

// Saver is the snapshot side of the registry, accepted as an interface
// so the autosaver does not depend on the registry package.
type Saver interface {
	Save(path string) error
}

// Autosaver periodically snapshots the registry to a fixed path.
type Autosaver struct {
	interval time.Duration
	path     string
	saver    Saver
	logger   *slog.Logger
}

// NewAutosaver creates an Autosaver writing to path every interval.
func NewAutosaver(interval time.Duration, path string, saver Saver, logger *slog.Logger) *Autosaver {
	return &Autosaver{
		interval: interval,
		path:     path,
		saver:    saver,
		logger:   logger,
	}
}

// Start launches a background goroutine that ticks at the configured
// interval and saves a snapshot. It stops when ctx is cancelled. A
// failed save is logged and retried on the next tick.
func (a *Autosaver) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := a.saver.Save(a.path); err != nil {
					a.logger.Error("autosave failed",
						slog.String("path", a.path),
						slog.String("error", err.Error()),
					)
				}
			}
		}
	}()
}
