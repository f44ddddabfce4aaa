package trigger

import (
	"context"
	"fmt"
	"time"
)

// TimerAdapter emits a synthetic Event on a fixed interval, grounded on
// coordination/janitor.go's ticker loop.
type TimerAdapter struct {
	name     string
	interval time.Duration
}

// NewTimerAdapter builds a TimerAdapter identified by name, firing
// every interval.
func NewTimerAdapter(name string, interval time.Duration) *TimerAdapter {
	return &TimerAdapter{name: name, interval: interval}
}

func (t *TimerAdapter) Run(ctx context.Context, emit func(Event)) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	var tick int64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ts := <-ticker.C:
			tick++
			emit(Event{
				ID:        fmt.Sprintf("%s-%d", t.name, tick),
				Type:      "timer.tick",
				Source:    t.name,
				Timestamp: ts,
				Data:      map[string]interface{}{"tick": tick},
			})
		}
	}
}
