// Package timer implements the per-session countdown. The clock cannot be
// paused: a session gets exactly one countdown and it only ends by expiring
// or by being stopped at submission.
package timer

import (
	"errors"
	"sync"
	"time"
)

var ErrAlreadyStarted = errors.New("timer already started")

// TickSource delivers one value per elapsed second.
type TickSource interface {
	C() <-chan time.Time
	Stop()
}

type TickerFactory func(interval time.Duration) TickSource

type realTicker struct {
	t *time.Ticker
}

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

func NewRealTicker(interval time.Duration) TickSource {
	return realTicker{t: time.NewTicker(interval)}
}

type Option func(*Controller)

// WithTicker replaces the wall-clock tick source.
func WithTicker(factory TickerFactory) Option {
	return func(c *Controller) { c.newTicker = factory }
}

// WithGuard installs a check consulted before every tick; when it returns
// true the countdown halts without firing further ticks or expiry.
func WithGuard(halt func() bool) Option {
	return func(c *Controller) { c.halt = halt }
}

type Controller struct {
	newTicker TickerFactory
	halt      func() bool

	mu        sync.Mutex
	started   bool
	running   bool
	remaining int
	stop      chan struct{}
	done      chan struct{}
}

func New(opts ...Option) *Controller {
	c := &Controller{
		newTicker: NewRealTicker,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins a one-second countdown. onTick receives the remaining seconds
// after each tick; onExpire runs exactly once when the count reaches zero.
func (c *Controller) Start(durationSeconds int, onTick func(remaining int), onExpire func()) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.running = true
	c.remaining = max(durationSeconds, 0)
	c.stop = make(chan struct{})
	c.mu.Unlock()

	if onTick == nil {
		onTick = func(int) {}
	}
	if onExpire == nil {
		onExpire = func() {}
	}

	go c.loop(onTick, onExpire)
	return nil
}

func (c *Controller) loop(onTick func(int), onExpire func()) {
	defer close(c.done)

	if c.Remaining() == 0 {
		if c.finish() {
			onExpire()
		}
		return
	}

	ticker := c.newTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C():
			if c.halt != nil && c.halt() {
				c.finish()
				return
			}

			c.mu.Lock()
			if !c.running {
				c.mu.Unlock()
				return
			}
			c.remaining--
			remaining := c.remaining
			expired := remaining <= 0
			if expired {
				c.running = false
			}
			c.mu.Unlock()

			onTick(remaining)
			if expired {
				onExpire()
				return
			}
		}
	}
}

// finish marks the countdown as no longer running and reports whether this
// call made the transition.
func (c *Controller) finish() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return false
	}
	c.running = false
	return true
}

// Stop cancels the countdown. It is safe to call more than once and from
// inside the callbacks.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.running = false
	close(c.stop)
}

func (c *Controller) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Done is closed once the countdown goroutine has exited.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}
