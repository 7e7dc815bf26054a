// Package output implements the three deterministic, budget-bounded
// result encoders described in spec §4.L: human, JSON, and the
// line-oriented records format.
package output

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// EdgeView is one edge to render alongside a note.
type EdgeView struct {
	To       string
	LinkType string
	Source   string
}

// NoteView is the subset of a note's data the encoders render. RankKey is
// the value notes are ordered by, descending (a BM25F score, a
// similarity score, or a traversal cost); ties break by ascending ID.
type NoteView struct {
	ID      string
	Title   string
	Type    string
	Tags    []string
	Value   int
	Created string
	Updated string
	Body    string // omitted unless IncludeBody is requested by the caller
	RankKey float64
	Edges   []EdgeView
}

// SortNotes orders views by descending RankKey, ascending ID, matching
// the ordering every encoder assumes it already received.
func SortNotes(views []NoteView) {
	sort.SliceStable(views, func(i, j int) bool {
		if views[i].RankKey != views[j].RankKey {
			return views[i].RankKey > views[j].RankKey
		}
		return views[i].ID < views[j].ID
	})
}

// ---- Records encoder ----

// escapeQuoted backslash-escapes double quotes for a `"…"` records value.
func escapeQuoted(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

func tagsField(tags []string) string {
	if len(tags) == 0 {
		return "-"
	}
	return strings.Join(tags, ",")
}

// noteLine renders one `N` record.
func noteLine(n NoteView) string {
	var b strings.Builder
	b.WriteString("N id=")
	b.WriteString(n.ID)
	b.WriteString(" title=\"")
	b.WriteString(escapeQuoted(n.Title))
	b.WriteString("\" type=")
	b.WriteString(n.Type)
	b.WriteString(" value=")
	b.WriteString(strconv.Itoa(n.Value))
	b.WriteString(" tags=")
	b.WriteString(tagsField(n.Tags))
	b.WriteString(" created=")
	b.WriteString(n.Created)
	b.WriteString(" updated=")
	b.WriteString(n.Updated)
	return b.String()
}

// edgeLine renders one `E` record.
func edgeLine(e EdgeView) string {
	return fmt.Sprintf("E to=%s type=%s source=%s", e.To, e.LinkType, e.Source)
}

// RecordsResult is what RecordsEncode returns.
type RecordsResult struct {
	Text      string
	Truncated bool
}

// noteBlockLines renders the full N/(B/B-END)/E... line sequence for one
// note view.
func noteBlockLines(n NoteView, includeBody bool) []string {
	lines := []string{noteLine(n)}
	if includeBody && n.Body != "" {
		lines = append(lines, "B", n.Body, "B-END")
	}
	for _, e := range n.Edges {
		lines = append(lines, edgeLine(e))
	}
	return lines
}

func renderRecords(mode string, notes int, truncated bool, lines []string) string {
	header := fmt.Sprintf("H qipu=1 records=1 mode=%s notes=%d truncated=%t", mode, notes, truncated)
	full := append([]string{header}, lines...)
	text := strings.Join(full, "\n")
	if len(full) > 0 {
		text += "\n"
	}
	return text
}

// RecordsEncode renders views in the line-record format: a header line
// followed by N/E (and optionally B/B-END body) lines. Ordering is the
// caller's responsibility (see SortNotes); within a note, edges keep
// their given order. When maxChars > 0, the encoder drops trailing notes
// (never a partial record) until the full rendered text, including the
// header's `truncated` flag, fits within the budget. When no notes remain,
// the header line is returned even if it alone exceeds maxChars.
func RecordsEncode(mode string, views []NoteView, includeBody bool, maxChars int) RecordsResult {
	blocks := make([][]string, len(views))
	for i, n := range views {
		blocks[i] = noteBlockLines(n, includeBody)
	}

	count := len(views)
	for {
		var lines []string
		for _, block := range blocks[:count] {
			lines = append(lines, block...)
		}
		truncated := count < len(views)
		text := renderRecords(mode, count, truncated, lines)
		if maxChars <= 0 || len(text) <= maxChars || count == 0 {
			return RecordsResult{Text: text, Truncated: truncated}
		}
		count--
	}
}

// ---- JSON encoder ----

type jsonEdge struct {
	To     string `json:"to"`
	Type   string `json:"type"`
	Source string `json:"source"`
}

type jsonNote struct {
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Type    string     `json:"type"`
	Tags    []string   `json:"tags"`
	Value   int        `json:"value"`
	Created string     `json:"created"`
	Updated string     `json:"updated"`
	Body    string     `json:"body,omitempty"`
	Edges   []jsonEdge `json:"edges,omitempty"`
}

type jsonDocument struct {
	Notes     []jsonNote `json:"notes"`
	Truncated bool       `json:"truncated"`
}

// JSONEncode renders views as a single JSON document. Under a budget it
// drops trailing notes and sets "truncated": true, re-encoding until the
// result fits or only the (always-included) document shell remains.
func JSONEncode(views []NoteView, includeBody bool, maxChars int) (string, error) {
	count := len(views)
	for {
		doc := jsonDocument{Truncated: count < len(views)}
		doc.Notes = make([]jsonNote, 0, count)
		for _, n := range views[:count] {
			jn := jsonNote{
				ID: n.ID, Title: n.Title, Type: n.Type, Tags: n.Tags,
				Value: n.Value, Created: n.Created, Updated: n.Updated,
			}
			if includeBody {
				jn.Body = n.Body
			}
			for _, e := range n.Edges {
				jn.Edges = append(jn.Edges, jsonEdge{To: e.To, Type: e.LinkType, Source: e.Source})
			}
			doc.Notes = append(doc.Notes, jn)
		}
		bytes, err := json.Marshal(doc)
		if err != nil {
			return "", err
		}
		if maxChars <= 0 || len(bytes) <= maxChars || count == 0 {
			return string(bytes), nil
		}
		count--
	}
}

// ---- Human encoder ----

// HumanEncode renders views as free-form, stable, line-oriented text.
// When a budget is given and exceeded, output stops after the last
// complete note block that leaves room for the terminating truncation
// notice, and appends that notice (even when the notice alone exceeds
// maxChars).
func HumanEncode(views []NoteView, maxChars int) string {
	const notice = "... truncated (output budget exceeded)\n"
	var blocks []string
	used := 0
	truncated := false

	for _, n := range views {
		var block strings.Builder
		fmt.Fprintf(&block, "%s  %s  [%s, value=%d]\n", n.ID, n.Title, n.Type, n.Value)
		if len(n.Tags) > 0 {
			fmt.Fprintf(&block, "  tags: %s\n", strings.Join(n.Tags, ", "))
		}
		for _, e := range n.Edges {
			fmt.Fprintf(&block, "  -> %s (%s, %s)\n", e.To, e.LinkType, e.Source)
		}

		if maxChars > 0 && used+block.Len() > maxChars {
			truncated = true
			break
		}
		blocks = append(blocks, block.String())
		used += block.Len()
	}

	if truncated {
		for len(blocks) > 0 && used+len(notice) > maxChars {
			used -= len(blocks[len(blocks)-1])
			blocks = blocks[:len(blocks)-1]
		}
		blocks = append(blocks, notice)
	}
	return strings.Join(blocks, "")
}
