package auction

import (
	"sync"
	"time"
)

type TimerState int

const (
	TimerIdle TimerState = iota
	TimerArmed
	TimerFired
)

func (s TimerState) String() string {
	switch s {
	case TimerIdle:
		return "idle"
	case TimerArmed:
		return "armed"
	case TimerFired:
		return "fired"
	}
	return "unknown"
}

// RearmPolicy picks the window for Arm: First for the first arm after
// Begin or Stop, Rearm for every arm after that.
type RearmPolicy struct {
	First time.Duration
	Rearm time.Duration
}

// Countdown is a single cancellable deadline. Every arm bumps a
// generation; a callback scheduled under an older generation is dropped,
// so at most one fire happens per arm even when Stop races the timer.
type Countdown struct {
	policy RearmPolicy
	fire   func()

	mu       sync.Mutex
	state    TimerState
	timer    *time.Timer
	deadline time.Time
	window   time.Duration
	gen      uint64
	arms     int
}

func NewCountdown(policy RearmPolicy, fire func()) *Countdown {
	return &Countdown{policy: policy, fire: fire}
}

// Begin arms a fresh window of d and resets the rearm policy.
func (c *Countdown) Begin(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.arms = 0
	c.schedule(d)
}

// Arm re-arms the countdown according to the policy and returns the window
// used.
func (c *Countdown) Arm() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.policy.Rearm
	if c.arms == 0 {
		d = c.policy.First
	}
	c.arms++
	c.schedule(d)
	return d
}

// Stop cancels any pending fire and returns the countdown to idle.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancel()
	c.state = TimerIdle
	c.arms = 0
	c.deadline = time.Time{}
	c.window = 0
}

func (c *Countdown) State() TimerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Deadline returns the pending deadline, or false when not armed.
func (c *Countdown) Deadline() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != TimerArmed {
		return time.Time{}, false
	}
	return c.deadline, true
}

// Window is the duration of the most recent arm.
func (c *Countdown) Window() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.window
}

// SecondsLeft rounds the remaining time up to whole seconds. It returns
// nil when the countdown is not armed.
func (c *Countdown) SecondsLeft(now time.Time) *int {
	deadline, ok := c.Deadline()
	if !ok {
		return nil
	}
	left := deadline.Sub(now)
	secs := 0
	if left > 0 {
		secs = int((left + time.Second - 1) / time.Second)
	}
	return &secs
}

func (c *Countdown) schedule(d time.Duration) {
	c.cancel()
	c.gen++
	gen := c.gen
	c.state = TimerArmed
	c.window = d
	c.deadline = time.Now().Add(d)
	c.timer = time.AfterFunc(d, func() { c.expire(gen) })
}

func (c *Countdown) cancel() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
}

func (c *Countdown) expire(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.state != TimerArmed {
		c.mu.Unlock()
		return
	}
	c.state = TimerFired
	c.timer = nil
	c.deadline = time.Time{}
	c.mu.Unlock()

	c.fire()
}
