package reviewer

import (
	"context"

	"artgrab/internal/media"
	"artgrab/internal/providers"
)

// Choice is the primary outcome of one chooser interaction.
type Choice int

const (
	// ChoiceSelected means the user picked a candidate to apply.
	ChoiceSelected Choice = iota
	// ChoiceSkip leaves the slot untouched and resolves the work item.
	ChoiceSkip
	// ChoiceCancel aborts the whole review run.
	ChoiceCancel
)

// PresentRequest carries everything the chooser needs to render a decision.
type PresentRequest struct {
	Title      string
	MediaType  media.Type
	ArtType    media.ArtType
	CurrentURL string
	Candidates []providers.Candidate
}

// Decision is the chooser's answer. Extras carries an ordered secondary
// multi-selection for numbered companion slots (fanart1, fanart2, ...);
// it is only honored alongside ChoiceSelected.
type Decision struct {
	Choice   Choice
	Selected providers.Candidate
	Extras   []providers.Candidate
}

// Chooser is the interactive selection boundary the UI layer implements.
type Chooser interface {
	Present(ctx context.Context, req PresentRequest) (Decision, error)
}
