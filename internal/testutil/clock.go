package testutil

import (
	"fmt"
	"sync"
	"time"
)

// Epoch is the instant every stub clock starts from.
var Epoch = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

// StubClock is a hist.Clock for version stamping tests. It stands still
// unless advanced, or moves forward by a fixed step after every reading when
// created with TickingClock. Safe for concurrent use.
type StubClock struct {
	mu     sync.Mutex
	now    time.Time
	step   time.Duration
	calls  int
	onRead func(call int)
}

// FixedClock returns a clock stopped at Epoch.
func FixedClock() *StubClock {
	return &StubClock{now: Epoch}
}

// TickingClock returns a clock that starts at Epoch and moves forward by step
// after each Now call, so successive stamps are strictly increasing.
func TickingClock(step time.Duration) *StubClock {
	return &StubClock{now: Epoch, step: step}
}

// OnRead installs fn to run after each Now call with the 1-based call number.
// fn runs outside the clock's lock and may block to widen race windows.
func (c *StubClock) OnRead(fn func(call int)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRead = fn
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	t := c.now
	c.now = c.now.Add(c.step)
	c.calls++
	call, fn := c.calls, c.onRead
	c.mu.Unlock()

	if fn != nil {
		fn(call)
	}
	return t
}

// Advance moves the clock forward by d.
func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// StubIDGenerator issues "id-1", "id-2", ... in call order.
type StubIDGenerator struct {
	mu sync.Mutex
	n  int
}

func NewStubIDGenerator() *StubIDGenerator {
	return &StubIDGenerator{}
}

func (g *StubIDGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%d", g.n)
}
