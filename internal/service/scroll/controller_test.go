package scroll

import (
	"testing"
	"time"
)

// fakeViewport is a line-based viewport. ScrollToBottom reports the change
// back through the controller like a real scroll listener would.
type fakeViewport struct {
	pos      Position
	mounted  bool
	scrolls  int
	onScroll func()
}

func (v *fakeViewport) Measure() (Position, bool) {
	return v.pos, v.mounted
}

func (v *fakeViewport) ScrollToBottom() {
	v.scrolls++
	v.pos.Offset = v.pos.ContentHeight - v.pos.ViewportHeight
	if v.onScroll != nil {
		v.onScroll()
	}
}

func (v *fakeViewport) userScrollTo(c *Controller, offset int) {
	v.pos.Offset = offset
	c.OnScroll()
}

// manualScheduler records scheduled callbacks and runs them on demand.
type manualScheduler struct {
	pending []*task
}

type task struct {
	fn      func()
	stopped bool
	delay   time.Duration
}

func (s *manualScheduler) schedule(d time.Duration, fn func()) func() bool {
	tk := &task{fn: fn, delay: d}
	s.pending = append(s.pending, tk)
	return func() bool {
		was := !tk.stopped
		tk.stopped = true
		return was
	}
}

func (s *manualScheduler) runAll() int {
	ran := 0
	tasks := s.pending
	s.pending = nil
	for _, tk := range tasks {
		if tk.stopped {
			continue
		}
		tk.stopped = true
		tk.fn()
		ran++
	}
	return ran
}

func newTestController(vp *fakeViewport, s *manualScheduler) *Controller {
	c := NewController(vp, WithScheduler(s.schedule), WithThreshold(100), WithSettleDelay(10*time.Millisecond))
	vp.onScroll = c.OnScroll
	return c
}

func TestPosition_DistanceFromBottom(t *testing.T) {
	tests := []struct {
		pos      Position
		expected int
	}{
		{Position{Offset: 0, ContentHeight: 1000, ViewportHeight: 400}, 600},
		{Position{Offset: 600, ContentHeight: 1000, ViewportHeight: 400}, 0},
		{Position{Offset: 0, ContentHeight: 100, ViewportHeight: 400}, 0},
	}
	for _, tt := range tests {
		if got := tt.pos.DistanceFromBottom(); got != tt.expected {
			t.Errorf("expected %d, got %d", tt.expected, got)
		}
	}
}

func TestController_InitialState(t *testing.T) {
	c := NewController(&fakeViewport{mounted: true})
	if !c.AutoScrollEnabled() {
		t.Error("expected auto-scroll enabled initially")
	}
	if c.ShowJumpToLatest() {
		t.Error("expected jump-to-latest hidden initially")
	}
}

func TestController_FollowsNewContent(t *testing.T) {
	vp := &fakeViewport{mounted: true, pos: Position{ContentHeight: 1000, ViewportHeight: 400, Offset: 600}}
	s := &manualScheduler{}
	c := newTestController(vp, s)

	vp.pos.ContentHeight = 1200
	c.NotifyContentChanged()

	if vp.scrolls != 0 {
		t.Error("expected scroll to be deferred")
	}
	if len(s.pending) != 1 || s.pending[0].delay != 10*time.Millisecond {
		t.Fatalf("expected one scroll scheduled with settle delay, got %d", len(s.pending))
	}

	s.runAll()
	if vp.scrolls != 1 {
		t.Errorf("expected 1 scroll, got %d", vp.scrolls)
	}
	if !c.AutoScrollEnabled() {
		t.Error("expected auto-scroll to stay enabled after system scroll")
	}
}

func TestController_CoalescesPendingScroll(t *testing.T) {
	vp := &fakeViewport{mounted: true, pos: Position{ContentHeight: 1000, ViewportHeight: 400, Offset: 600}}
	s := &manualScheduler{}
	c := newTestController(vp, s)

	for i := 0; i < 5; i++ {
		vp.pos.ContentHeight += 50
		c.NotifyContentChanged()
	}

	if ran := s.runAll(); ran != 1 {
		t.Errorf("expected 1 coalesced scroll, got %d", ran)
	}
	if vp.scrolls != 1 {
		t.Errorf("expected 1 scroll, got %d", vp.scrolls)
	}

	c.NotifyContentChanged()
	if len(s.pending) != 1 {
		t.Errorf("expected new scroll scheduled after previous fired, got %d", len(s.pending))
	}
}

func TestController_UserScrollUpScenario(t *testing.T) {
	vp := &fakeViewport{mounted: true, pos: Position{ContentHeight: 2000, ViewportHeight: 400, Offset: 1600}}
	s := &manualScheduler{}
	c := newTestController(vp, s)

	vp.userScrollTo(c, 900)
	if c.AutoScrollEnabled() {
		t.Fatal("expected auto-scroll disabled after scrolling up")
	}
	if c.ShowJumpToLatest() {
		t.Error("expected jump-to-latest hidden until new content arrives")
	}

	vp.pos.ContentHeight = 2200
	c.NotifyContentChanged()
	s.runAll()

	if vp.scrolls != 0 {
		t.Errorf("expected no automatic scroll, got %d", vp.scrolls)
	}
	if !c.ShowJumpToLatest() {
		t.Error("expected jump-to-latest visible")
	}

	c.JumpToLatest()
	if vp.scrolls != 1 {
		t.Errorf("expected 1 scroll, got %d", vp.scrolls)
	}
	if !c.AutoScrollEnabled() {
		t.Error("expected auto-scroll restored")
	}
	if c.ShowJumpToLatest() {
		t.Error("expected jump-to-latest hidden after jumping")
	}
}

func TestController_ThresholdBoundary(t *testing.T) {
	tests := []struct {
		name     string
		offset   int
		expected bool
	}{
		{"at bottom", 600, true},
		{"exactly threshold", 500, true},
		{"just past threshold", 499, false},
		{"top", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vp := &fakeViewport{mounted: true, pos: Position{ContentHeight: 1000, ViewportHeight: 400}}
			c := newTestController(vp, &manualScheduler{})
			vp.userScrollTo(c, tt.offset)
			if c.AutoScrollEnabled() != tt.expected {
				t.Errorf("expected auto-scroll %v, got %v", tt.expected, c.AutoScrollEnabled())
			}
		})
	}
}

func TestController_UserReturnsToBottom(t *testing.T) {
	vp := &fakeViewport{mounted: true, pos: Position{ContentHeight: 1000, ViewportHeight: 400}}
	c := newTestController(vp, &manualScheduler{})

	vp.userScrollTo(c, 0)
	c.NotifyContentChanged()
	vp.userScrollTo(c, 580)

	if !c.AutoScrollEnabled() {
		t.Error("expected auto-scroll re-enabled near bottom")
	}
	if c.ShowJumpToLatest() {
		t.Error("expected jump-to-latest hidden")
	}
}

func TestController_SystemScrollDoesNotChangeIntent(t *testing.T) {
	vp := &fakeViewport{mounted: true, pos: Position{ContentHeight: 1000, ViewportHeight: 400, Offset: 600}}
	s := &manualScheduler{}
	c := newTestController(vp, s)

	// The scroll listener sees a stale far-from-bottom position mid-scroll.
	vp.onScroll = func() {
		vp.pos.Offset = 0
		c.OnScroll()
	}
	c.NotifyContentChanged()
	s.runAll()

	if !c.AutoScrollEnabled() {
		t.Error("expected system scroll notifications to be ignored")
	}
}

func TestController_UserScrollCancelsPending(t *testing.T) {
	vp := &fakeViewport{mounted: true, pos: Position{ContentHeight: 1000, ViewportHeight: 400, Offset: 600}}
	s := &manualScheduler{}
	c := newTestController(vp, s)

	c.NotifyContentChanged()
	vp.userScrollTo(c, 0)
	s.runAll()

	if vp.scrolls != 0 {
		t.Errorf("expected pending scroll cancelled, got %d scrolls", vp.scrolls)
	}
}

func TestController_UnmountedViewportIsNoop(t *testing.T) {
	vp := &fakeViewport{mounted: false}
	s := &manualScheduler{}
	c := newTestController(vp, s)

	c.NotifyContentChanged()
	s.runAll()
	c.OnScroll()
	c.JumpToLatest()

	if vp.scrolls != 0 {
		t.Errorf("expected no scrolls, got %d", vp.scrolls)
	}
	if !c.AutoScrollEnabled() {
		t.Error("expected auto-scroll unchanged")
	}
}

func TestController_CloseMakesPendingNoop(t *testing.T) {
	vp := &fakeViewport{mounted: true, pos: Position{ContentHeight: 1000, ViewportHeight: 400, Offset: 600}}
	s := &manualScheduler{}
	c := newTestController(vp, s)

	c.NotifyContentChanged()
	pending := s.pending
	c.Close()

	// Invoke the callback even though it was stopped, as a timer racing
	// with Stop would.
	for _, tk := range pending {
		tk.fn()
	}
	c.NotifyContentChanged()
	c.JumpToLatest()

	if vp.scrolls != 0 {
		t.Errorf("expected no scrolls after close, got %d", vp.scrolls)
	}
}

func TestController_RealTimer(t *testing.T) {
	done := make(chan struct{})
	vp := &fakeViewport{mounted: true, pos: Position{ContentHeight: 1000, ViewportHeight: 400}}
	vp.onScroll = func() { close(done) }
	c := NewController(vp, WithSettleDelay(time.Millisecond))
	defer c.Close()

	c.NotifyContentChanged()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for scroll")
	}
}
