package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a work item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConverting Status = "converting"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// TimeoutReason is the failure reason set when a conversion exceeds its deadline.
const TimeoutReason = "conversion timed out"

// EngineUnavailableReason is the failure reason set when the engine never became ready.
const EngineUnavailableReason = "conversion engine unavailable"

var allStatuses = []Status{
	StatusPending,
	StatusConverting,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// Item represents one input file's conversion request plus its current status.
//
// The conversion core owns the Status field exclusively; callers create items
// and read them, but every mutation goes through the Store.
type Item struct {
	ID              string
	SourcePath      string
	DisplayName     string
	ByteSize        int64
	MimeHint        string
	Status          Status
	FailureReason   string
	ProgressPercent float64
	ProgressMessage string
	Attempt         int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status is a terminal outcome.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// SetConverting marks the item as released to the engine.
func (i *Item) SetConverting() {
	i.Status = StatusConverting
	i.FailureReason = ""
	i.ProgressPercent = 0
	i.ProgressMessage = "conversion started"
}

// SetProgress updates coarse per-item progress. Progress never regresses a
// terminal status.
func (i *Item) SetProgress(message string, percent float64) {
	if i.Status.IsTerminal() {
		return
	}
	i.ProgressMessage = message
	i.ProgressPercent = percent
}

// SetCompleted marks the item as successfully converted.
func (i *Item) SetCompleted() {
	i.Status = StatusCompleted
	i.FailureReason = ""
	i.ProgressPercent = 100
	i.ProgressMessage = "conversion complete"
}

// SetFailed marks the item as failed with the given reason.
func (i *Item) SetFailed(reason string) {
	i.Status = StatusFailed
	i.FailureReason = reason
	i.ProgressMessage = reason
}
