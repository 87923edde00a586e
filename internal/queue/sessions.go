package queue

import (
	"encoding/json"
	"strings"
	"time"

	"artgrab/internal/media"
)

// SessionStatus represents the lifecycle of a scan session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionPaused    SessionStatus = "paused"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
)

// ParseSessionStatus converts a string into a known SessionStatus.
func ParseSessionStatus(value string) (SessionStatus, bool) {
	normalized := SessionStatus(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case SessionActive, SessionPaused, SessionCompleted, SessionCancelled:
		return normalized, true
	default:
		return "", false
	}
}

// Open reports whether the session can still accept or resume work.
func (s SessionStatus) Open() bool {
	return s == SessionActive || s == SessionPaused
}

// ScanType distinguishes discovery passes.
type ScanType string

const (
	ScanMissing  ScanType = "missing"
	ScanUpgrades ScanType = "upgrades"
)

// EventOutcome classifies one per-item detail log event.
type EventOutcome string

const (
	OutcomeApplied       EventOutcome = "applied"
	OutcomeSkipped       EventOutcome = "skipped"
	OutcomeAutoApplied   EventOutcome = "auto_applied"
	OutcomeAutoSkipped   EventOutcome = "auto_skipped"
	OutcomeStale         EventOutcome = "stale"
	OutcomePolicyBlocked EventOutcome = "policy_blocked"
	OutcomeError         EventOutcome = "error"
)

// SessionEvent is one structured detail-log line persisted with the session.
type SessionEvent struct {
	At      time.Time     `json:"at"`
	Title   string        `json:"title"`
	ArtType media.ArtType `json:"art_type"`
	Source  string        `json:"source,omitempty"`
	URL     string        `json:"url,omitempty"`
	Outcome EventOutcome  `json:"outcome"`
	Detail  string        `json:"detail,omitempty"`
}

// SessionStats is the serialized counters-and-log blob owned by a session.
// It is persisted after every reviewed item, so a crash loses at most one
// item's progress.
type SessionStats struct {
	Scanned     int            `json:"scanned"`
	Queued      int            `json:"queued"`
	Applied     int            `json:"applied"`
	Skipped     int            `json:"skipped"`
	AutoApplied int            `json:"auto_applied"`
	AutoSkipped int            `json:"auto_skipped"`
	Errors      int            `json:"errors"`
	Events      []SessionEvent `json:"events,omitempty"`

	// PendingPrecache holds texture URLs whose dimension-measuring cache
	// pass was interrupted. A later scan resumes caching from this list
	// without repeating discovery.
	PendingPrecache []string `json:"pending_precache,omitempty"`
}

// Record appends an event and bumps the matching counter.
func (s *SessionStats) Record(event SessionEvent) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	switch event.Outcome {
	case OutcomeApplied:
		s.Applied++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeAutoApplied:
		s.AutoApplied++
	case OutcomeAutoSkipped:
		s.AutoSkipped++
	case OutcomeError:
		s.Errors++
	}
	s.Events = append(s.Events, event)
}

// HasApplied reports whether an identical applied event is already logged,
// so resuming a paused review never duplicates detail lines.
func (s *SessionStats) HasApplied(title string, artType media.ArtType, url string) bool {
	for _, event := range s.Events {
		if event.Outcome != OutcomeApplied && event.Outcome != OutcomeAutoApplied {
			continue
		}
		if event.Title == title && event.ArtType == artType && event.URL == url {
			return true
		}
	}
	return false
}

// Session is the durable record of one scan-and-review episode.
type Session struct {
	ID           string
	ScanType     ScanType
	MediaTypes   []media.Type
	ArtTypes     []media.ArtType
	Scope        string
	Status       SessionStatus
	Stats        SessionStats
	StartedAt    time.Time
	LastActivity time.Time
	CompletedAt  *time.Time
}

func encodeStats(stats SessionStats) (string, error) {
	blob, err := json.Marshal(stats)
	if err != nil {
		return "", err
	}
	return string(blob), nil
}

func decodeStats(blob string) SessionStats {
	stats := SessionStats{}
	if strings.TrimSpace(blob) == "" {
		return stats
	}
	// A corrupt blob only costs the counters, never the queue itself.
	_ = json.Unmarshal([]byte(blob), &stats)
	return stats
}

func encodeMediaTypes(types []media.Type) string {
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, string(t))
	}
	return strings.Join(names, ",")
}

func decodeMediaTypes(value string) []media.Type {
	types, ok := media.ParseTypes(value)
	if !ok {
		return nil
	}
	return types
}

func encodeArtTypes(types []media.ArtType) string {
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, string(t))
	}
	return strings.Join(names, ",")
}

func decodeArtTypes(value string) []media.ArtType {
	types, ok := media.ParseArtTypes(value)
	if !ok {
		return nil
	}
	return types
}
