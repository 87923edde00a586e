package ranking

import (
	"sort"
	"strings"

	"golang.org/x/text/language"

	"artgrab/internal/media"
	"artgrab/internal/providers"
)

// SortMode selects the ranking key.
type SortMode string

const (
	SortPopularity SortMode = "popularity"
	SortResolution SortMode = "resolution"
)

// Bayesian smoothing priors for vote-based popularity. A single 10/10 vote
// must not outrank a well-reviewed image, so ratings are pulled toward the
// prior mean until enough votes accumulate.
const (
	bayesPriorVotes = 3.0
	bayesPriorMean  = 2.3
	likesScale      = 0.73
)

// Options parameterizes one ranking pass.
type Options struct {
	ArtType           media.ArtType
	SortMode          SortMode
	SourcePreference  providers.Source
	PreferredLanguage string
}

// Rank filters and orders candidates. It is a pure function: the input slice
// is left untouched and equal-keyed candidates keep their relative order.
func Rank(candidates []providers.Candidate, opts Options) []providers.Candidate {
	ranked := make([]providers.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if opts.SourcePreference != "" && c.Source != opts.SourcePreference {
			continue
		}
		ranked = append(ranked, c)
	}

	if opts.SortMode == SortResolution {
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].PixelCount() > ranked[j].PixelCount()
		})
		return ranked
	}

	applyLanguage := opts.ArtType.LanguageApplies()
	sort.SliceStable(ranked, func(i, j int) bool {
		if applyLanguage {
			ti := languageTier(ranked[i], opts.PreferredLanguage)
			tj := languageTier(ranked[j], opts.PreferredLanguage)
			if ti != tj {
				return ti < tj
			}
		}
		pi := Popularity(ranked[i])
		pj := Popularity(ranked[j])
		if pi != pj {
			return pi > pj
		}
		return ranked[i].PixelCount() > ranked[j].PixelCount()
	})
	return ranked
}

// Popularity computes the provider-agnostic popularity score used to compare
// otherwise-equal candidates.
func Popularity(c providers.Candidate) float64 {
	if c.HasRating && c.Votes > 0 {
		votes := float64(c.Votes)
		return (votes/(votes+bayesPriorVotes))*c.Rating + (bayesPriorVotes/(votes+bayesPriorVotes))*bayesPriorMean
	}
	if c.HasLikes {
		return float64(c.Likes) * likesScale
	}
	if c.HasRating {
		return bayesPriorMean
	}
	return 0
}

// languageTier buckets a candidate for the composite sort: preferred
// language first, text-free second, everything else last.
func languageTier(c providers.Candidate, preferred string) int {
	switch {
	case c.Language != "" && SameLanguage(c.Language, preferred):
		return 0
	case c.Language == "":
		return 1
	default:
		return 2
	}
}

// SameLanguage reports whether two language codes share a base language,
// tolerating regional variants (en vs en-US).
func SameLanguage(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" || b == "" {
		return strings.EqualFold(a, b)
	}
	tagA, errA := language.Parse(a)
	tagB, errB := language.Parse(b)
	if errA != nil || errB != nil {
		return strings.EqualFold(a, b)
	}
	baseA, _ := tagA.Base()
	baseB, _ := tagB.Base()
	return baseA == baseB
}

// ApplyLanguagePolicy filters candidates by the slot's language policy.
// Language-free art types only accept text-free candidates. Types that
// require language only accept the preferred language, falling back to the
// unfiltered list when that leaves nothing.
func ApplyLanguagePolicy(candidates []providers.Candidate, artType media.ArtType, preferred string) []providers.Candidate {
	if artType.LanguageFree() {
		filtered := make([]providers.Candidate, 0, len(candidates))
		for _, c := range candidates {
			if c.Language == "" {
				filtered = append(filtered, c)
			}
		}
		return filtered
	}

	filtered := make([]providers.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if SameLanguage(c.Language, preferred) {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) == 0 {
		return candidates
	}
	return filtered
}
