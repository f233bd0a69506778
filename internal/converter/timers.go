package converter

import (
	"fmt"
	"sync"
	"time"
)

// timerRegistry tracks the deadline timer for each in-flight item. An item
// holds at most one timer at a time; the timer is disarmed when the item
// settles and fires only if the item is still unsettled at its deadline.
type timerRegistry struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func newTimerRegistry() *timerRegistry {
	return &timerRegistry{timers: make(map[string]*time.Timer)}
}

// Arm starts a deadline timer for id. Arming an id that already holds a
// timer is a programming error and is rejected.
func (r *timerRegistry) Arm(id string, d time.Duration, fn func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.timers[id]; exists {
		return fmt.Errorf("deadline timer already armed for item %s", id)
	}
	r.timers[id] = time.AfterFunc(d, fn)
	return nil
}

// Disarm stops and removes the timer for id. It reports whether a timer was
// present; disarming an absent id is a no-op.
func (r *timerRegistry) Disarm(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	timer, exists := r.timers[id]
	if !exists {
		return false
	}
	timer.Stop()
	delete(r.timers, id)
	return true
}

// DisarmAll stops every outstanding timer.
func (r *timerRegistry) DisarmAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, timer := range r.timers {
		timer.Stop()
		delete(r.timers, id)
	}
}

// Count returns the number of armed timers.
func (r *timerRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}
