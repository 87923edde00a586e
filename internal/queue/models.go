package queue

import (
	"strings"
	"time"

	"artgrab/internal/media"
)

// EntryStatus represents the lifecycle of a queue entry.
type EntryStatus string

const (
	StatusPending   EntryStatus = "pending"
	StatusReviewing EntryStatus = "reviewing"
	StatusCompleted EntryStatus = "completed"
	StatusSkipped   EntryStatus = "skipped"
	StatusCancelled EntryStatus = "cancelled"
	StatusError     EntryStatus = "error"
)

var allEntryStatuses = []EntryStatus{
	StatusPending,
	StatusReviewing,
	StatusCompleted,
	StatusSkipped,
	StatusCancelled,
	StatusError,
}

var entryStatusSet = func() map[EntryStatus]struct{} {
	set := make(map[EntryStatus]struct{}, len(allEntryStatuses))
	for _, status := range allEntryStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// terminalEntryStatuses are eligible for pruning once no pending art items
// remain.
var terminalEntryStatuses = map[EntryStatus]struct{}{
	StatusCompleted: {},
	StatusSkipped:   {},
	StatusCancelled: {},
	StatusError:     {},
}

// AllEntryStatuses returns the ordered list of known entry statuses.
func AllEntryStatuses() []EntryStatus {
	cp := make([]EntryStatus, len(allEntryStatuses))
	copy(cp, allEntryStatuses)
	return cp
}

// ParseEntryStatus converts a string into a known EntryStatus.
func ParseEntryStatus(value string) (EntryStatus, bool) {
	normalized := EntryStatus(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := entryStatusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status ends an entry's lifecycle.
func (s EntryStatus) IsTerminal() bool {
	_, ok := terminalEntryStatuses[s]
	return ok
}

// ItemStatus represents the lifecycle of one art-type slot on an entry.
type ItemStatus string

const (
	ItemPending   ItemStatus = "pending"
	ItemCompleted ItemStatus = "completed"
	ItemSkipped   ItemStatus = "skipped"
	ItemStale     ItemStatus = "stale"
	ItemError     ItemStatus = "error"
)

// ReviewMode classifies why an art item was queued.
type ReviewMode string

const (
	// ModeMissing means the slot was empty at scan time.
	ModeMissing ReviewMode = "missing"
	// ModeCandidate means artwork exists but a better asset was detected.
	// Candidates always require a human decision.
	ModeCandidate ReviewMode = "candidate"
)

// Entry is one library item under consideration.
type Entry struct {
	ID          int64
	GUID        string
	MediaType   media.Type
	LibraryID   int64
	Title       string
	Year        int
	Scope       string
	SessionID   string
	Status      EntryStatus
	ProcessedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ArtItem is one artwork slot on a queue entry.
type ArtItem struct {
	ID             int64
	QueueID        int64
	ArtType        media.ArtType
	BaselineURL    string
	CurrentURL     string
	SelectedURL    string
	ReviewMode     ReviewMode
	RequiresManual bool
	AutoApplied    bool
	Status         ItemStatus
	UpdatedAt      time.Time
}

// EnqueueSpec describes one entry plus its art-type slots for a batch
// enqueue.
type EnqueueSpec struct {
	MediaType media.Type
	LibraryID int64
	Title     string
	Year      int
	Scope     string
	SessionID string
	Items     []ArtItemSpec
}

// ArtItemSpec describes one artwork slot within an EnqueueSpec.
type ArtItemSpec struct {
	ArtType        media.ArtType
	BaselineURL    string
	ReviewMode     ReviewMode
	RequiresManual bool
}

// EntryStats counts entries grouped by status.
type EntryStats map[EntryStatus]int

// Total sums all statuses.
func (s EntryStats) Total() int {
	total := 0
	for _, count := range s {
		total += count
	}
	return total
}
