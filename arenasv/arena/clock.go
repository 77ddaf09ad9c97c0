package arena

import (
	"sync"
	"time"
)

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock creates the tickers that drive battle rulers.
type Clock interface {
	NewTicker(d time.Duration) Ticker
}

type RealClock struct{}

func (RealClock) NewTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// ManualClock only ticks when Step is called.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*manualTicker
	created chan struct{}
}

func NewManualClock() *ManualClock {
	return &ManualClock{
		now:     time.Unix(0, 0),
		created: make(chan struct{}, 64),
	}
}

func (c *ManualClock) NewTicker(d time.Duration) Ticker {
	t := &manualTicker{
		c:    make(chan time.Time),
		done: make(chan struct{}),
	}
	c.mu.Lock()
	c.tickers = append(c.tickers, t)
	c.mu.Unlock()
	select {
	case c.created <- struct{}{}:
	default:
	}
	return t
}

// WaitTicker blocks until a ticker has been created or the timeout expires.
func (c *ManualClock) WaitTicker(timeout time.Duration) bool {
	select {
	case <-c.created:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Step delivers one tick to every running ticker and returns once each
// has been received or stopped.
func (c *ManualClock) Step() {
	c.mu.Lock()
	c.now = c.now.Add(time.Millisecond)
	now := c.now
	live := c.tickers[:0]
	for _, t := range c.tickers {
		select {
		case <-t.done:
		default:
			live = append(live, t)
		}
	}
	c.tickers = live
	tickers := append([]*manualTicker(nil), live...)
	c.mu.Unlock()

	for _, t := range tickers {
		select {
		case t.c <- now:
		case <-t.done:
		}
	}
}

type manualTicker struct {
	c    chan time.Time
	done chan struct{}
	once sync.Once
}

func (t *manualTicker) C() <-chan time.Time { return t.c }

func (t *manualTicker) Stop() {
	t.once.Do(func() { close(t.done) })
}
