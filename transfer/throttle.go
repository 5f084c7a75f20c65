package transfer

import (
	"sync"
	"time"
)

const (
	DefaultNotifyInterval = 30 * time.Second
	DefaultNotifyStep     = 10
)

// Gate selects which conditions must hold before a progress update is sent.
type Gate int

const (
	// TimeGate only requires the minimum interval to have elapsed.
	TimeGate Gate = iota
	// TimeAndPercentGate additionally requires the percentage to have moved
	// at least one step past the last notified one.
	TimeAndPercentGate
)

type Sample struct {
	Done  int64
	Total int64
	At    time.Time
}

// Percent is floor(done/total*100) clamped to [0,100]; 0 when total is unknown.
func (s Sample) Percent() int {
	return Percent(s.Done, s.Total)
}

func Percent(done, total int64) int {
	if total <= 0 || done <= 0 {
		return 0
	}
	if done >= total {
		return 100
	}
	return int(done * 100 / total)
}

type mark struct {
	at      time.Time
	percent int
}

// Throttler keeps the last notification per transfer identity. Entries are
// independent of each other and must be released when a transfer ends.
type Throttler struct {
	interval time.Duration
	step     int

	mu    sync.Mutex
	marks map[string]mark
}

func NewThrottler(interval time.Duration, step int) *Throttler {
	if interval < 0 {
		interval = 0
	}
	if step <= 0 {
		step = 1
	}
	return &Throttler{
		interval: interval,
		step:     step,
		marks:    make(map[string]mark),
	}
}

func (t *Throttler) ShouldNotify(id string, gate Gate, s Sample) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	last, seen := t.marks[id]
	if seen && s.At.Sub(last.at) < t.interval {
		return false
	}
	// An unknown total stays at 0% and only the time gate applies.
	if gate == TimeAndPercentGate && s.Total > 0 && s.Percent() < last.percent+t.step {
		return false
	}
	return true
}

// RecordNotified stores the sample as the last notification for id. The
// percentage is kept at its step boundary, so 12% followed by 21% counts as
// crossing from the 10% band into the 20% band.
func (t *Throttler) RecordNotified(id string, s Sample) {
	p := s.Percent()
	t.mu.Lock()
	t.marks[id] = mark{at: s.At, percent: p - p%t.step}
	t.mu.Unlock()
}

func (t *Throttler) Release(id string) {
	t.mu.Lock()
	delete(t.marks, id)
	t.mu.Unlock()
}

// Len reports the number of transfers currently tracked.
func (t *Throttler) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.marks)
}
