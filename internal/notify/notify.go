// Package notify holds the single ephemeral status message that reports the
// outcome of the most recent operation, and expires it on a timer.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/wondertwin-ai/subtrack/internal/clock"
	"github.com/wondertwin-ai/subtrack/internal/observe"
)

// DefaultDuration is how long a message stays visible when no duration is given.
const DefaultDuration = 3 * time.Second

// Severity tags a notification as a success or an error.
type Severity int

const (
	SeveritySuccess Severity = iota
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeveritySuccess:
		return "success"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Notification is one user-facing message. A zero ExpiresAt means the message
// stays until it is cleared.
type Notification struct {
	Text      string    `json:"text"`
	Severity  Severity  `json:"severity"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
	Seq       uint64    `json:"-"`
}

// Observer is called after every change. active is false once the message
// has been cleared or has expired.
type Observer func(n Notification, active bool)

// Center holds at most one live notification and at most one expiry timer.
type Center struct {
	clock     clock.Clock
	duration  time.Duration
	logger    *slog.Logger
	observers *observe.Set[change]

	// seq numbers messages. It is bumped under mu but read without it by
	// expiry timers that have gone stale.
	seq *atomic.Uint64

	mu       sync.Mutex
	version  uint64
	current  Notification
	active   bool
	timer    clock.Timer
	detached bool
}

// change is one delivery to observers.
type change struct {
	n      Notification
	active bool
}

// Option configures a Center.
type Option func(*Center)

// WithClock sets the time source used for expiry.
func WithClock(c clock.Clock) Option { return func(n *Center) { n.clock = c } }

// WithDefaultDuration overrides DefaultDuration for Success and Error.
func WithDefaultDuration(d time.Duration) Option {
	return func(n *Center) { n.duration = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(n *Center) { n.logger = l } }

// New creates an attached Center.
func New(opts ...Option) *Center {
	c := &Center{
		clock:     clock.Real(),
		duration:  DefaultDuration,
		logger:    slog.Default(),
		seq:       atomic.NewUint64(0),
		observers: observe.NewSet[change](),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Success shows a success message for the default duration.
func (c *Center) Success(text string) { c.Show(text, SeveritySuccess, c.duration) }

// Error shows an error message for the default duration.
func (c *Center) Error(text string) { c.Show(text, SeverityError, c.duration) }

// Show replaces the current message and cancels its pending expiry. When
// d > 0 the new message expires after d; d == 0 keeps it until Clear.
func (c *Center) Show(text string, severity Severity, d time.Duration) {
	c.mu.Lock()
	if c.detached {
		c.mu.Unlock()
		c.logger.Debug("notification dropped after detach", "text", text)
		return
	}
	c.stopTimer()

	seq := c.seq.Inc()
	n := Notification{Text: text, Severity: severity, Seq: seq}
	if d > 0 {
		n.ExpiresAt = c.clock.Now().Add(d)
		c.timer = c.clock.AfterFunc(d, func() { c.expire(seq) })
	}
	c.current = n
	c.active = true
	c.version++
	version := c.version
	c.mu.Unlock()

	c.logger.Debug("notification", "severity", severity.String(), "text", text, "duration", d)
	c.observers.Publish(version, change{n: n, active: true})
}

// Clear removes the current message immediately and cancels its timer.
func (c *Center) Clear() {
	c.mu.Lock()
	if !c.active {
		c.stopTimer()
		c.mu.Unlock()
		return
	}
	version := c.clearLocked()
	c.mu.Unlock()
	c.observers.Publish(version, change{})
}

// Current returns the live message, if any.
func (c *Center) Current() (Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.active
}

// Subscribe registers fn for every change and returns a function that
// removes it. Calls to fn run one at a time and in change order; a change
// superseded while fn is still busy is skipped.
func (c *Center) Subscribe(fn Observer) (cancel func()) {
	return c.observers.Subscribe(func(ch change) { fn(ch.n, ch.active) })
}

// Attach re-enables Show after a Detach.
func (c *Center) Attach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detached = false
}

// Detach cancels any pending expiry, clears the message, and drops further
// Show calls until Attach. Observers are removed.
func (c *Center) Detach() {
	c.mu.Lock()
	c.clearLocked()
	c.detached = true
	c.mu.Unlock()
	c.observers.Clear()
}

// expire clears the message only if it is still the one the timer was
// armed for.
func (c *Center) expire(seq uint64) {
	if c.seq.Load() != seq {
		return
	}
	c.mu.Lock()
	if !c.active || c.current.Seq != seq {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	version := c.clearLocked()
	c.mu.Unlock()
	c.observers.Publish(version, change{})
}

// clearLocked drops the message and its timer and returns the new state
// version.
func (c *Center) clearLocked() uint64 {
	c.stopTimer()
	c.current = Notification{}
	c.active = false
	c.version++
	return c.version
}

func (c *Center) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
