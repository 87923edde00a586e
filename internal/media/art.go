package media

import "strings"

// ArtType identifies a named artwork slot on a library item.
type ArtType string

const (
	ArtPoster       ArtType = "poster"
	ArtFanart       ArtType = "fanart"
	ArtClearLogo    ArtType = "clearlogo"
	ArtBanner       ArtType = "banner"
	ArtLandscape    ArtType = "landscape"
	ArtClearArt     ArtType = "clearart"
	ArtDiscArt      ArtType = "discart"
	ArtKeyArt       ArtType = "keyart"
	ArtCharacterArt ArtType = "characterart"
	ArtThumb        ArtType = "thumb"
)

// reviewOrder fixes the sequence art types are presented in so a review pass
// is deterministic.
var reviewOrder = []ArtType{
	ArtPoster,
	ArtFanart,
	ArtClearLogo,
	ArtBanner,
	ArtLandscape,
	ArtClearArt,
	ArtDiscArt,
	ArtKeyArt,
	ArtCharacterArt,
	ArtThumb,
}

var artTypeSet = func() map[ArtType]struct{} {
	set := make(map[ArtType]struct{}, len(reviewOrder))
	for _, a := range reviewOrder {
		set[a] = struct{}{}
	}
	return set
}()

// Dimensions describes artwork pixel dimensions.
type Dimensions struct {
	Width  int
	Height int
}

// PixelCount returns width times height.
func (d Dimensions) PixelCount() int {
	return d.Width * d.Height
}

// defaultDimensions backfills providers that omit size information. The
// values match the sizes the providers actually serve for each slot.
var defaultDimensions = map[ArtType]Dimensions{
	ArtPoster:       {Width: 1000, Height: 1500},
	ArtFanart:       {Width: 1920, Height: 1080},
	ArtClearLogo:    {Width: 800, Height: 310},
	ArtBanner:       {Width: 1000, Height: 185},
	ArtLandscape:    {Width: 1000, Height: 562},
	ArtClearArt:     {Width: 1000, Height: 562},
	ArtDiscArt:      {Width: 1000, Height: 1000},
	ArtKeyArt:       {Width: 1000, Height: 1500},
	ArtCharacterArt: {Width: 512, Height: 512},
	ArtThumb:        {Width: 1000, Height: 562},
}

// AllArtTypes returns every known art type in review-priority order.
func AllArtTypes() []ArtType {
	cp := make([]ArtType, len(reviewOrder))
	copy(cp, reviewOrder)
	return cp
}

// ParseArtType converts a string into a known ArtType.
func ParseArtType(value string) (ArtType, bool) {
	normalized := ArtType(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := artTypeSet[normalized]
	return normalized, ok
}

// ParseArtTypes converts a comma-separated list into art types in
// review-priority order, rejecting unknown values.
func ParseArtTypes(value string) ([]ArtType, bool) {
	requested := make(map[ArtType]struct{})
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		a, ok := ParseArtType(part)
		if !ok {
			return nil, false
		}
		requested[a] = struct{}{}
	}
	if len(requested) == 0 {
		return nil, false
	}
	ordered := make([]ArtType, 0, len(requested))
	for _, a := range reviewOrder {
		if _, ok := requested[a]; ok {
			ordered = append(ordered, a)
		}
	}
	return ordered, true
}

// SortByReviewOrder orders art types by their fixed presentation priority.
// Unknown types sort after known ones, keeping their relative order.
func SortByReviewOrder(types []ArtType) []ArtType {
	rank := make(map[ArtType]int, len(reviewOrder))
	for i, a := range reviewOrder {
		rank[a] = i
	}
	ordered := make([]ArtType, len(types))
	copy(ordered, types)
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && rankOf(rank, ordered[j]) < rankOf(rank, ordered[j-1]); j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}
	return ordered
}

func rankOf(rank map[ArtType]int, a ArtType) int {
	if r, ok := rank[a]; ok {
		return r
	}
	return len(reviewOrder)
}

// LanguageFree reports whether an art type carries no text by definition.
// Language-free slots only accept text-free candidates during unattended
// processing, and language preference never applies to them when ranking.
func (a ArtType) LanguageFree() bool {
	switch a {
	case ArtFanart, ArtThumb, ArtCharacterArt:
		return true
	default:
		return false
	}
}

// LanguageApplies reports whether language preference participates in
// ranking for this art type. Background art is exempt: a text-free backdrop
// in any language is equally usable.
func (a ArtType) LanguageApplies() bool {
	return !a.LanguageFree()
}

// DefaultDimensions returns the per-type fallback dimensions used when a
// provider omits size information.
func (a ArtType) DefaultDimensions() Dimensions {
	if d, ok := defaultDimensions[a]; ok {
		return d
	}
	return Dimensions{Width: 1000, Height: 1000}
}
