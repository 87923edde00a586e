package media

import "strings"

// Type identifies the kind of library item an artwork slot belongs to.
type Type string

const (
	TypeMovie      Type = "movie"
	TypeTVShow     Type = "tvshow"
	TypeSeason     Type = "season"
	TypeEpisode    Type = "episode"
	TypeMusicVideo Type = "musicvideo"
	TypeSet        Type = "set"
)

var allTypes = []Type{
	TypeMovie,
	TypeTVShow,
	TypeSeason,
	TypeEpisode,
	TypeMusicVideo,
	TypeSet,
}

var typeSet = func() map[Type]struct{} {
	set := make(map[Type]struct{}, len(allTypes))
	for _, t := range allTypes {
		set[t] = struct{}{}
	}
	return set
}()

// AllTypes returns the ordered list of known media types.
func AllTypes() []Type {
	cp := make([]Type, len(allTypes))
	copy(cp, allTypes)
	return cp
}

// ParseType converts a string into a known media Type.
func ParseType(value string) (Type, bool) {
	normalized := Type(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := typeSet[normalized]
	return normalized, ok
}

// ParseTypes converts a comma-separated list into media types, rejecting
// unknown values.
func ParseTypes(value string) ([]Type, bool) {
	parts := strings.Split(value, ",")
	types := make([]Type, 0, len(parts))
	seen := make(map[Type]struct{}, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		t, ok := ParseType(part)
		if !ok {
			return nil, false
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		types = append(types, t)
	}
	if len(types) == 0 {
		return nil, false
	}
	return types, true
}

// ScopeKey returns the canonical scope tag for a set of media types. Sessions
// are unique per scope, so the key must not depend on input ordering.
func ScopeKey(types []Type) string {
	if len(types) == 0 {
		return "all"
	}
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, string(t))
	}
	// Insertion sort keeps the helper allocation-free for the tiny inputs
	// this sees.
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j] < names[j-1]; j-- {
			names[j], names[j-1] = names[j-1], names[j]
		}
	}
	return strings.Join(names, "+")
}
