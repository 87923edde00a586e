package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"artgrab/internal/providers"
	"artgrab/internal/ranking"
	"artgrab/internal/report"
	"artgrab/internal/reviewer"
)

// terminalChooser presents ranked candidates on the terminal and reads a
// selection. Input grammar: a candidate number applies that candidate, "s"
// skips the slot, "c" cancels the run, and "1+3" applies candidate 1 with
// candidate 3 as an extra numbered slot.
type terminalChooser struct {
	in  *bufio.Reader
	out io.Writer
}

func newTerminalChooser(in io.Reader, out io.Writer) *terminalChooser {
	return &terminalChooser{in: bufio.NewReader(in), out: out}
}

func (t *terminalChooser) Present(ctx context.Context, req reviewer.PresentRequest) (reviewer.Decision, error) {
	fmt.Fprintf(t.out, "\n%s [%s] %s\n", req.Title, req.MediaType, req.ArtType)
	if req.CurrentURL != "" {
		fmt.Fprintf(t.out, "current: %s\n", req.CurrentURL)
	}
	fmt.Fprintln(t.out, renderCandidates(req.Candidates))
	fmt.Fprint(t.out, "choice [number, number+number, (s)kip, (c)ancel]: ")

	for {
		if err := ctx.Err(); err != nil {
			return reviewer.Decision{Choice: reviewer.ChoiceCancel}, nil
		}
		line, err := t.in.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return reviewer.Decision{Choice: reviewer.ChoiceCancel}, nil
			}
			return reviewer.Decision{}, err
		}
		decision, ok := parseChoice(line, req.Candidates)
		if ok {
			return decision, nil
		}
		fmt.Fprintf(t.out, "enter 1-%d, s, or c: ", len(req.Candidates))
	}
}

func parseChoice(line string, candidates []providers.Candidate) (reviewer.Decision, bool) {
	answer := strings.ToLower(strings.TrimSpace(line))
	switch answer {
	case "s", "skip", "":
		return reviewer.Decision{Choice: reviewer.ChoiceSkip}, true
	case "c", "cancel", "q", "quit":
		return reviewer.Decision{Choice: reviewer.ChoiceCancel}, true
	}

	parts := strings.Split(answer, "+")
	picked := make([]providers.Candidate, 0, len(parts))
	seen := make(map[int]bool, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 1 || n > len(candidates) || seen[n] {
			return reviewer.Decision{}, false
		}
		seen[n] = true
		picked = append(picked, candidates[n-1])
	}
	if len(picked) == 0 {
		return reviewer.Decision{}, false
	}
	return reviewer.Decision{
		Choice:   reviewer.ChoiceSelected,
		Selected: picked[0],
		Extras:   picked[1:],
	}, true
}

func renderCandidates(candidates []providers.Candidate) string {
	rows := make([][]string, 0, len(candidates))
	for i, c := range candidates {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			string(c.Source),
			fmt.Sprintf("%dx%d", c.Width, c.Height),
			formatLanguage(c.Language),
			formatScore(c),
			c.URL,
		})
	}
	return report.Table([]string{"#", "Source", "Size", "Lang", "Score", "URL"}, rows, 1, 3, 5)
}

func formatLanguage(lang string) string {
	if lang == "" {
		return "textless"
	}
	return lang
}

func formatScore(c providers.Candidate) string {
	switch {
	case c.HasRating:
		return fmt.Sprintf("%.1f (%d votes)", c.Rating, c.Votes)
	case c.HasLikes:
		return fmt.Sprintf("%d likes", c.Likes)
	default:
		return fmt.Sprintf("%.1f", ranking.Popularity(c))
	}
}
