package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNetwork marks transient provider or library transport failures.
	ErrNetwork = errors.New("network error")
	// ErrRateLimited marks a provider throttle that survived every retry.
	ErrRateLimited = errors.New("rate limited")
	// ErrNotFound marks "the provider has nothing for this item". Not a
	// failure: callers treat it as zero candidates.
	ErrNotFound = errors.New("not found")
	// ErrStale marks queued work whose library-side assumption no longer
	// holds.
	ErrStale = errors.New("stale state")
	// ErrStorage marks queue or cache database failures.
	ErrStorage = errors.New("storage error")
	// ErrValidation marks malformed input or responses.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks unusable configuration.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrNetwork
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Fatal reports whether an error must abort the current run rather than be
// recorded on the individual work item. Only storage failures qualify;
// provider and staleness problems stay per-item.
func Fatal(err error) bool {
	return errors.Is(err, ErrStorage)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
