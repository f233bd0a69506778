package converter

import (
	"math"
	"sync"
)

// Progress aggregates per-item settlement into an overall percentage for the
// current batch. Every terminal outcome settles exactly once; the percentage
// is non-decreasing within a batch and freezes at its last value when the
// batch finishes.
type Progress struct {
	mu      sync.Mutex
	settled int
	total   int
	peak    int
}

// NewProgress returns an idle aggregator.
func NewProgress() *Progress {
	return &Progress{}
}

func (p *Progress) add(n int) {
	p.mu.Lock()
	p.total += n
	p.mu.Unlock()
}

// Settle records one terminal outcome. The settled count never exceeds the
// number of submitted items.
func (p *Progress) Settle() {
	p.mu.Lock()
	if p.settled < p.total {
		p.settled++
	}
	p.mu.Unlock()
}

// Percent reports round(100 * settled / total), clamped to [0, 100]. An idle
// aggregator reports 0. Extending a batch grows total while settled stands,
// which would lower the raw ratio; the reported value holds at its high-water
// mark instead so it never decreases within a batch.
func (p *Progress) Percent() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.total == 0 {
		return 0
	}
	percent := int(math.Round(100 * float64(p.settled) / float64(p.total)))
	if percent > 100 {
		percent = 100
	}
	if percent < p.peak {
		return p.peak
	}
	p.peak = percent
	return percent
}

// Counts returns the settled and total item counts.
func (p *Progress) Counts() (settled, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settled, p.total
}

// Finished reports whether every submitted item has settled.
func (p *Progress) Finished() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total > 0 && p.settled == p.total
}

// Reset returns the aggregator to idle, dropping the frozen percentage.
func (p *Progress) Reset() {
	p.mu.Lock()
	p.settled = 0
	p.total = 0
	p.peak = 0
	p.mu.Unlock()
}
