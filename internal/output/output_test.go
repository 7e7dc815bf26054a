package output

import (
	"encoding/json"
	"strings"
	"testing"
)

func sampleViews() []NoteView {
	return []NoteView{
		{ID: "qp-a", Title: "Alpha", Type: "permanent", Tags: []string{"x"}, Value: 80, RankKey: 3,
			Edges: []EdgeView{{To: "qp-b", LinkType: "related", Source: "typed"}}},
		{ID: "qp-b", Title: "Beta", Type: "fleeting", Value: 50, RankKey: 2},
		{ID: "qp-c", Title: "Gamma", Type: "fleeting", Value: 10, RankKey: 1},
		{ID: "qp-d", Title: "Delta", Type: "fleeting", Value: 10, RankKey: 1},
		{ID: "qp-e", Title: "Epsilon", Type: "fleeting", Value: 10, RankKey: 1},
	}
}

func TestSortNotesOrdering(t *testing.T) {
	views := sampleViews()
	// shuffle order before sorting
	views[0], views[4] = views[4], views[0]
	SortNotes(views)
	if views[0].ID != "qp-a" {
		t.Fatalf("expected qp-a (highest rank) first, got %+v", views[0])
	}
	// qp-c, qp-d, qp-e share RankKey=1; must tie-break ascending id.
	last3 := []string{views[2].ID, views[3].ID, views[4].ID}
	want := []string{"qp-c", "qp-d", "qp-e"}
	for i := range want {
		if last3[i] != want[i] {
			t.Fatalf("expected ascending-id tiebreak, got %v", last3)
		}
	}
}

func TestRecordsEncodeUntruncated(t *testing.T) {
	res := RecordsEncode("list", sampleViews(), false, 0)
	if res.Truncated {
		t.Fatalf("expected no truncation without a budget")
	}
	if !strings.HasPrefix(res.Text, "H qipu=1 records=1") {
		t.Fatalf("expected header prefix, got %q", res.Text)
	}
	if !strings.Contains(res.Text, "truncated=false") {
		t.Fatalf("expected truncated=false in header, got %q", res.Text)
	}
	lines := strings.Split(strings.TrimRight(res.Text, "\n"), "\n")
	if len(lines) < 1+len(sampleViews()) {
		t.Fatalf("expected at least one line per note plus header, got %d lines", len(lines))
	}
}

// TestRecordsEncodeBudgetSoundness covers invariant §8.8: for any
// max_chars, len(output) <= max_chars and truncated == "at least one
// record was dropped".
func TestRecordsEncodeBudgetSoundness(t *testing.T) {
	views := sampleViews()
	for _, budget := range []int{60, 80, 120, 200, 1000} {
		res := RecordsEncode("list", views, false, budget)
		if len(res.Text) > budget {
			t.Fatalf("budget=%d: output length %d exceeds budget", budget, len(res.Text))
		}
		headerSaysTruncated := strings.Contains(res.Text, "truncated=true")
		if headerSaysTruncated != res.Truncated {
			t.Fatalf("budget=%d: header truncated flag disagrees with result", budget)
		}
	}
}

func TestRecordsEncodeNoPartialLines(t *testing.T) {
	views := sampleViews()
	res := RecordsEncode("list", views, false, 100)
	lines := strings.Split(strings.TrimRight(res.Text, "\n"), "\n")
	for _, l := range lines {
		if l == "" {
			continue
		}
		tag := strings.Fields(l)[0]
		switch tag {
		case "H", "N", "E", "B", "B-END", "T", "L", "U", "O", "C", "S", "W", "D", "M":
		default:
			t.Fatalf("line has unrecognized or partial tag: %q", l)
		}
	}
}

func TestJSONEncodeWellFormed(t *testing.T) {
	text, err := JSONEncode(sampleViews(), false, 0)
	if err != nil {
		t.Fatalf("JSONEncode: %v", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if doc["truncated"] != false {
		t.Fatalf("expected truncated=false, got %v", doc["truncated"])
	}
	notes, ok := doc["notes"].([]interface{})
	if !ok || len(notes) != len(sampleViews()) {
		t.Fatalf("expected %d notes, got %+v", len(sampleViews()), doc["notes"])
	}
}

func TestJSONEncodeBudgetTruncates(t *testing.T) {
	text, err := JSONEncode(sampleViews(), false, 80)
	if err != nil {
		t.Fatalf("JSONEncode: %v", err)
	}
	if len(text) > 80 {
		t.Fatalf("expected output within budget, got %d bytes", len(text))
	}
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if doc["truncated"] != true {
		t.Fatalf("expected truncated=true under tight budget, got %v", doc["truncated"])
	}
}

func TestHumanEncodeContainsTitles(t *testing.T) {
	text := HumanEncode(sampleViews(), 0)
	for _, n := range sampleViews() {
		if !strings.Contains(text, n.Title) {
			t.Fatalf("expected human output to contain title %q", n.Title)
		}
	}
}

func TestHumanEncodeBudgetNotice(t *testing.T) {
	text := HumanEncode(sampleViews(), 40)
	if !strings.Contains(text, "truncated") {
		t.Fatalf("expected truncation notice under tight budget, got %q", text)
	}
}
