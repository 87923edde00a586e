// Package report renders human-readable run summaries. The layout is
// cosmetic: nothing downstream parses these tables.
package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"artgrab/internal/queue"
)

// Table renders headers and rows as a rounded-border table. Column numbers
// in rightAligned are right-justified, which suits counters.
func Table(headers []string, rows [][]string, rightAligned ...int) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	right := make(map[int]bool, len(rightAligned))
	for _, col := range rightAligned {
		right[col] = true
	}
	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if right[i+1] {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// Sessions renders one row per session, newest first as stored.
func Sessions(sessions []*queue.Session) string {
	rows := make([][]string, 0, len(sessions))
	for _, session := range sessions {
		rows = append(rows, []string{
			ShortID(session.ID),
			string(session.ScanType),
			session.Scope,
			string(session.Status),
			session.StartedAt.Local().Format("2006-01-02 15:04"),
			strconv.Itoa(session.Stats.Queued),
			strconv.Itoa(session.Stats.Applied + session.Stats.AutoApplied),
			strconv.Itoa(session.Stats.Skipped + session.Stats.AutoSkipped),
			strconv.Itoa(session.Stats.Errors),
		})
	}
	return Table(
		[]string{"ID", "Type", "Scope", "Status", "Started", "Queued", "Applied", "Skipped", "Errors"},
		rows, 6, 7, 8, 9)
}

// Session renders one session's counters and, when present, its per-item
// event log.
func Session(session *queue.Session) string {
	var b strings.Builder

	rows := [][]string{
		{"Session", ShortID(session.ID)},
		{"Type", string(session.ScanType)},
		{"Scope", session.Scope},
		{"Status", string(session.Status)},
		{"Started", session.StartedAt.Local().Format(time.RFC1123)},
	}
	if session.CompletedAt != nil {
		rows = append(rows, []string{"Finished", session.CompletedAt.Local().Format(time.RFC1123)})
	}
	rows = append(rows,
		[]string{"Scanned", strconv.Itoa(session.Stats.Scanned)},
		[]string{"Queued", strconv.Itoa(session.Stats.Queued)},
		[]string{"Applied", strconv.Itoa(session.Stats.Applied)},
		[]string{"Auto-applied", strconv.Itoa(session.Stats.AutoApplied)},
		[]string{"Skipped", strconv.Itoa(session.Stats.Skipped + session.Stats.AutoSkipped)},
		[]string{"Errors", strconv.Itoa(session.Stats.Errors)},
	)
	b.WriteString(Table([]string{"Field", "Value"}, rows))

	if len(session.Stats.Events) > 0 {
		b.WriteString("\n")
		b.WriteString(Events(session.Stats.Events))
	}
	return b.String()
}

// Events renders the per-item detail log of a session.
func Events(events []queue.SessionEvent) string {
	rows := make([][]string, 0, len(events))
	for _, event := range events {
		detail := event.Detail
		if detail == "" && event.Source != "" {
			detail = event.Source
		}
		rows = append(rows, []string{
			event.At.Local().Format("15:04:05"),
			event.Title,
			string(event.ArtType),
			string(event.Outcome),
			detail,
		})
	}
	return Table([]string{"Time", "Title", "Art", "Outcome", "Detail"}, rows)
}

// QueueStats renders entry counts grouped by status.
func QueueStats(stats queue.EntryStats) string {
	rows := make([][]string, 0, len(stats)+1)
	for _, status := range []queue.EntryStatus{
		queue.StatusPending,
		queue.StatusReviewing,
		queue.StatusCompleted,
		queue.StatusSkipped,
		queue.StatusCancelled,
		queue.StatusError,
	} {
		if count, ok := stats[status]; ok {
			rows = append(rows, []string{string(status), strconv.Itoa(count)})
		}
	}
	rows = append(rows, []string{"total", strconv.Itoa(stats.Total())})
	return Table([]string{"Status", "Entries"}, rows, 2)
}

// Entries renders queue entries with their pending art work.
func Entries(entries []*queue.Entry, items map[int64][]*queue.ArtItem) string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		var pending []string
		for _, item := range items[entry.ID] {
			if item.Status == queue.ItemPending {
				pending = append(pending, string(item.ArtType))
			}
		}
		rows = append(rows, []string{
			strconv.FormatInt(entry.ID, 10),
			string(entry.MediaType),
			entry.Title,
			string(entry.Status),
			strings.Join(pending, ", "),
		})
	}
	return Table([]string{"ID", "Type", "Title", "Status", "Pending art"}, rows, 1)
}

// RunLine is the one-line wrap-up printed after a scan, review, or
// processing run.
func RunLine(verb string, session *queue.Session) string {
	if session == nil {
		return fmt.Sprintf("%s finished", verb)
	}
	return fmt.Sprintf("%s %s: session %s, %d queued, %d applied, %d skipped, %d errors",
		verb, session.Status, ShortID(session.ID),
		session.Stats.Queued,
		session.Stats.Applied+session.Stats.AutoApplied,
		session.Stats.Skipped+session.Stats.AutoSkipped,
		session.Stats.Errors)
}

// ShortID truncates a UUID to its first block for display.
func ShortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
