// Package scroll decides when a transcript viewport should follow new
// messages and when it should leave the user's scroll position alone.
package scroll

import (
	"sync"
	"time"
)

const (
	// DefaultThreshold is the distance from the bottom, in viewport units,
	// still considered "at the bottom".
	DefaultThreshold = 100
	// DefaultSettleDelay lets layout settle before a programmatic scroll.
	DefaultSettleDelay = 50 * time.Millisecond
)

// Position is a measurement of the viewport.
type Position struct {
	Offset         int // top of the visible window
	ContentHeight  int
	ViewportHeight int
}

// DistanceFromBottom returns how far the visible window is from the end of
// the content. It is never negative.
func (p Position) DistanceFromBottom() int {
	d := p.ContentHeight - p.ViewportHeight - p.Offset
	if d < 0 {
		return 0
	}
	return d
}

// Viewport is the scrollable surface the controller drives.
type Viewport interface {
	// Measure reports the current position. ok is false while the viewport
	// is not mounted.
	Measure() (pos Position, ok bool)
	// ScrollToBottom moves the window to the end of the content.
	ScrollToBottom()
}

// Scheduler runs fn after d. The returned stop function cancels it and
// reports whether it was still pending.
type Scheduler func(d time.Duration, fn func()) (stop func() bool)

// AfterFunc is the default Scheduler.
func AfterFunc(d time.Duration, fn func()) func() bool {
	return time.AfterFunc(d, fn).Stop
}

// Option configures a Controller.
type Option func(*Controller)

// WithThreshold sets the proximity threshold.
func WithThreshold(units int) Option {
	return func(c *Controller) {
		if units >= 0 {
			c.threshold = units
		}
	}
}

// WithSettleDelay sets the deferral before a programmatic scroll.
func WithSettleDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d >= 0 {
			c.delay = d
		}
	}
}

// WithScheduler replaces the timer implementation.
func WithScheduler(s Scheduler) Option {
	return func(c *Controller) {
		if s != nil {
			c.schedule = s
		}
	}
}

// Controller keeps a viewport pinned to the newest content unless the user
// has scrolled away from the bottom.
type Controller struct {
	mu sync.Mutex

	vp        Viewport
	threshold int
	delay     time.Duration
	schedule  Scheduler

	autoScroll      bool
	unseen          bool
	systemScrolling bool
	closed          bool

	stop func() bool
	gen  uint64
}

// NewController creates a controller with auto-scroll enabled.
func NewController(vp Viewport, opts ...Option) *Controller {
	c := &Controller{
		vp:         vp,
		threshold:  DefaultThreshold,
		delay:      DefaultSettleDelay,
		schedule:   AfterFunc,
		autoScroll: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NotifyContentChanged is called after every append or mutation of the
// message list. When following, a scroll is scheduled; a scroll already
// pending absorbs the notification.
func (c *Controller) NotifyContentChanged() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if !c.autoScroll {
		c.unseen = true
		return
	}
	if c.stop != nil {
		return
	}

	c.gen++
	gen := c.gen
	c.stop = c.schedule(c.delay, func() { c.fire(gen) })
}

func (c *Controller) fire(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.stop = nil
	if !c.autoScroll {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.scrollToBottom()
}

// scrollToBottom runs the system scroll with the guard flag raised. The
// lock is not held across the viewport call so that a synchronous OnScroll
// from the viewport does not deadlock.
func (c *Controller) scrollToBottom() {
	if _, ok := c.vp.Measure(); !ok {
		return
	}

	c.mu.Lock()
	c.systemScrolling = true
	c.mu.Unlock()

	c.vp.ScrollToBottom()

	c.mu.Lock()
	c.systemScrolling = false
	c.unseen = false
	c.mu.Unlock()
}

// OnScroll is called for every scroll-position change. Changes caused by
// the controller's own scroll are ignored.
func (c *Controller) OnScroll() {
	c.mu.Lock()
	if c.closed || c.systemScrolling {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	pos, ok := c.vp.Measure()
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.systemScrolling {
		return
	}
	c.autoScroll = pos.DistanceFromBottom() <= c.threshold
	if c.autoScroll {
		c.unseen = false
	} else {
		c.cancelPendingLocked()
	}
}

// JumpToLatest scrolls to the bottom immediately and resumes following.
func (c *Controller) JumpToLatest() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.cancelPendingLocked()
	c.autoScroll = true
	c.mu.Unlock()

	c.scrollToBottom()
}

// AutoScrollEnabled reports whether the viewport follows new content.
func (c *Controller) AutoScrollEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autoScroll
}

// ShowJumpToLatest reports whether the "scroll to latest" control should
// be offered: the user has scrolled away and content arrived since.
func (c *Controller) ShowJumpToLatest() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.autoScroll && c.unseen
}

// Close cancels any pending scroll. Later calls are no-ops.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.cancelPendingLocked()
}

func (c *Controller) cancelPendingLocked() {
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
	c.gen++
}
