package elasticsearch

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ConnectOptions tune Connect. Zero values use the defaults.
type ConnectOptions struct {
	Attempts     int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	PingTimeout  time.Duration
}

func (o ConnectOptions) withDefaults() ConnectOptions {
	if o.Attempts <= 0 {
		o.Attempts = 10
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = 2 * time.Second
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second
	}
	if o.PingTimeout <= 0 {
		o.PingTimeout = 5 * time.Second
	}
	return o
}

// Connect builds a client and waits until Elasticsearch answers a ping, backing off
// exponentially between attempts.
func Connect(ctx context.Context, addr, index string, log *slog.Logger, opts ConnectOptions) (*Client, error) {
	opts = opts.withDefaults()

	client, err := New(addr, index, log)
	if err != nil {
		return nil, err
	}

	delay := opts.InitialDelay
	var lastErr error
	for attempt := 1; attempt <= opts.Attempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
		lastErr = client.Ping(pingCtx)
		cancel()
		if lastErr == nil {
			return client, nil
		}

		if attempt == opts.Attempts {
			break
		}
		log.Warn("elasticsearch ping failed, retrying",
			slog.Any("err", lastErr),
			slog.Int("attempt", attempt),
			slog.Int("max_retries", opts.Attempts),
			slog.Duration("retry_in", delay),
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		delay = min(delay*2, opts.MaxDelay)
	}

	return nil, fmt.Errorf("connect to elasticsearch after %d attempts: %w", opts.Attempts, lastErr)
}
