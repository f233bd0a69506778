package converter

import (
	"testing"
	"time"
)

func TestTimerRegistryAllowsOneTimerPerItem(t *testing.T) {
	reg := newTimerRegistry()
	defer reg.DisarmAll()

	if err := reg.Arm("a", time.Hour, func() {}); err != nil {
		t.Fatalf("first Arm failed: %v", err)
	}
	if err := reg.Arm("a", time.Hour, func() {}); err == nil {
		t.Fatal("second Arm for the same id must be rejected")
	}
	if reg.Count() != 1 {
		t.Fatalf("timer count = %d, want 1", reg.Count())
	}
}

func TestTimerRegistryDisarmIsIdempotent(t *testing.T) {
	reg := newTimerRegistry()

	if err := reg.Arm("a", time.Hour, func() {}); err != nil {
		t.Fatalf("Arm failed: %v", err)
	}
	if !reg.Disarm("a") {
		t.Fatal("Disarm of an armed id should report true")
	}
	if reg.Disarm("a") {
		t.Fatal("Disarm of an absent id should report false")
	}
	if reg.Count() != 0 {
		t.Fatalf("timer count = %d, want 0", reg.Count())
	}
}

func TestTimerRegistryRearmAfterDisarm(t *testing.T) {
	reg := newTimerRegistry()
	defer reg.DisarmAll()

	if err := reg.Arm("a", time.Hour, func() {}); err != nil {
		t.Fatalf("Arm failed: %v", err)
	}
	reg.Disarm("a")
	if err := reg.Arm("a", time.Hour, func() {}); err != nil {
		t.Fatalf("Arm after Disarm failed: %v", err)
	}
}

func TestProgressRoundsAndClamps(t *testing.T) {
	tests := []struct {
		total   int
		settled int
		want    int
	}{
		{total: 0, settled: 0, want: 0},
		{total: 3, settled: 0, want: 0},
		{total: 3, settled: 1, want: 33},
		{total: 3, settled: 2, want: 67},
		{total: 3, settled: 3, want: 100},
		{total: 7, settled: 4, want: 57},
	}
	for _, tc := range tests {
		p := NewProgress()
		p.add(tc.total)
		for i := 0; i < tc.settled; i++ {
			p.Settle()
		}
		if got := p.Percent(); got != tc.want {
			t.Fatalf("Percent(%d/%d) = %d, want %d", tc.settled, tc.total, got, tc.want)
		}
	}
}

func TestProgressSettleNeverExceedsTotal(t *testing.T) {
	p := NewProgress()
	p.add(2)
	for i := 0; i < 5; i++ {
		p.Settle()
	}
	settled, total := p.Counts()
	if settled != 2 || total != 2 {
		t.Fatalf("counts = %d/%d, want 2/2", settled, total)
	}
	if p.Percent() != 100 {
		t.Fatalf("percent = %d, want 100", p.Percent())
	}
}

func TestProgressHoldsPeakWhenTotalGrows(t *testing.T) {
	p := NewProgress()
	p.add(2)
	p.Settle()
	if got := p.Percent(); got != 50 {
		t.Fatalf("percent = %d, want 50", got)
	}

	// Growing the denominator must not lower the reported value.
	p.add(1)
	if got := p.Percent(); got != 50 {
		t.Fatalf("percent after growth = %d, want 50", got)
	}

	p.Settle()
	if got := p.Percent(); got != 67 {
		t.Fatalf("percent = %d, want 67", got)
	}
	p.Settle()
	if got := p.Percent(); got != 100 {
		t.Fatalf("percent = %d, want 100", got)
	}

	p.Reset()
	if got := p.Percent(); got != 0 {
		t.Fatalf("percent after reset = %d, want 0", got)
	}
}

func TestProgressResetReturnsToIdle(t *testing.T) {
	p := NewProgress()
	p.add(4)
	p.Settle()
	p.Reset()
	if p.Percent() != 0 {
		t.Fatalf("percent after reset = %d, want 0", p.Percent())
	}
	if p.Finished() {
		t.Fatal("reset aggregator must not report finished")
	}
}
