package button

import (
	"context"
	"log/slog"
	"time"
)

// Run samples the line on the configured cadence and posts completed press
// events to out. It returns when ctx is cancelled. Line read failures are
// logged and the sample skipped; the loop never exits on hardware errors.
func Run(ctx context.Context, line Line, clock Clock, opts Options, out chan<- Event) {
	if clock == nil {
		clock = SystemClock
	}
	if opts.SamplePeriod <= 0 {
		opts.SamplePeriod = 10 * time.Millisecond
	}
	m := NewMonitor(opts)

	ticker := time.NewTicker(opts.SamplePeriod)
	defer ticker.Stop()

	slog.Debug("[Button] monitor started", "debounce", opts.Debounce, "long_press", opts.LongPress)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pressed, err := line.Pressed()
			if err != nil {
				slog.Warn("[Button] read failed", "error", err)
				continue
			}
			ev, ok := m.Feed(pressed, clock.Now())
			if !ok {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}
