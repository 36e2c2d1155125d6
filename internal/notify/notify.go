// Package notify fans out human-readable alerts to configured channels.
// Every send is best-effort: failures are logged and swallowed, never
// returned, so a broken webhook can never stall or fail a cycle.
package notify

import (
	"context"
	"log/slog"
	"time"
)

// Channel delivers one message to one destination.
type Channel interface {
	Name() string
	Send(ctx context.Context, message string) error
}

// DefaultTimeout bounds each channel's network call.
const DefaultTimeout = 5 * time.Second

// Dispatcher fans a message out to all channels.
type Dispatcher struct {
	channels []Channel
	timeout  time.Duration
	logger   *slog.Logger
}

func NewDispatcher(channels []Channel, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{channels: channels, timeout: timeout, logger: logger}
}

// Notify sends message to every channel sequentially, each with its own
// timeout. It never returns an error.
func (d *Dispatcher) Notify(ctx context.Context, message string) {
	for _, ch := range d.channels {
		cctx, cancel := context.WithTimeout(ctx, d.timeout)
		if err := ch.Send(cctx, message); err != nil {
			d.logger.Warn("notification failed", "channel", ch.Name(), "err", err)
		} else {
			d.logger.Info("notification sent", "channel", ch.Name())
		}
		cancel()
	}
}
