package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/simrailtools/backend-sub003/core/frames"

	"github.com/gorilla/websocket"
	"github.com/juju/clock"
	"github.com/juju/retry"
	"go.uber.org/zap"
)

// ApplyFunc receives every decoded frame in arrival order.
type ApplyFunc func(ctx context.Context, f frames.Frame)

// ResumeFunc is invoked whenever a stream session has been (re-)established,
// before the first frame of that session is read.
type ResumeFunc func(kind frames.Kind)

// Client maintains one reconnecting subscription per entity kind.
type Client struct {
	log      *zap.Logger
	baseURL  string
	delay    time.Duration
	maxDelay time.Duration
	clock    clock.Clock
	apply    ApplyFunc
	onResume ResumeFunc

	mu      sync.Mutex
	started bool
}

// NewClient creates a subscriber for the configured stream endpoint. The
// apply sink is mandatory; onResume may be nil.
func NewClient(cfg Config, log *zap.Logger, apply ApplyFunc, onResume ResumeFunc) *Client {
	delay := time.Duration(cfg.RetryDelayMS) * time.Millisecond
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	maxDelay := time.Duration(cfg.RetryMaxDelayMS) * time.Millisecond
	if maxDelay < delay {
		maxDelay = 30 * time.Second
	}
	return &Client{
		log:      log,
		baseURL:  cfg.URL,
		delay:    delay,
		maxDelay: maxDelay,
		clock:    clock.WallClock,
		apply:    apply,
		onResume: onResume,
	}
}

// Start launches one listening goroutine per entity kind. It is idempotent
// and non-blocking; calling it again while running is a no-op so the
// subscriptions are never duplicated.
func (c *Client) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.started = true
	for _, kind := range frames.Kinds() {
		go c.run(ctx, kind)
	}
}

// run keeps one kind's stream alive until the context is cancelled. The
// retry loop wraps only the dial, so a session that was established at all
// resets the backoff.
func (c *Client) run(ctx context.Context, kind frames.Kind) {
	for ctx.Err() == nil {
		var conn *websocket.Conn
		err := retry.Call(retry.CallArgs{
			Func: func() error {
				var dialErr error
				conn, dialErr = c.dial(ctx, kind)
				return dialErr
			},
			NotifyFunc: func(err error, attempt int) {
				c.log.Warn("Stream dial failed",
					zap.String("kind", string(kind)),
					zap.Int("attempt", attempt),
					zap.Error(err))
			},
			Attempts:    -1, // retry until stopped
			Delay:       c.delay,
			MaxDelay:    c.maxDelay,
			BackoffFunc: retry.DoubleDelay,
			Clock:       c.clock,
			Stop:        ctx.Done(),
		})
		if err != nil {
			// Only the stop channel ends an unlimited retry loop.
			return
		}

		// Frames published while detached are lost for good, so every
		// established session triggers a full resync downstream.
		if c.onResume != nil {
			c.onResume(kind)
		}
		c.listen(ctx, kind, conn)
	}
}

func (c *Client) dial(ctx context.Context, kind frames.Kind) (*websocket.Conn, error) {
	url := fmt.Sprintf("%s/v1/streams/%s", c.baseURL, kind)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	return conn, nil
}

// listen reads frames until the session drops, handing each one to the
// apply sink in arrival order.
func (c *Client) listen(ctx context.Context, kind frames.Kind, conn *websocket.Conn) {
	defer conn.Close()
	c.log.Info("Stream subscription established", zap.String("kind", string(kind)))

	// Unblock the read loop when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		var env frames.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if ctx.Err() == nil {
				c.log.Warn("Stream connection lost",
					zap.String("kind", string(kind)),
					zap.Error(err))
			}
			return
		}
		frame, err := env.Decode()
		if err != nil {
			c.log.Error("Dropping undecodable frame",
				zap.String("kind", string(kind)),
				zap.Error(err))
			continue
		}
		c.apply(ctx, frame)
	}
}
