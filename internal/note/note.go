// Package note implements the on-disk note file format: a YAML
// front-matter block delimited by `---` lines followed by a blank line
// and a Markdown body.
package note

import (
	"fmt"
	"strings"
	"time"

	"github.com/mwaldstein/qipu/internal/qipuerrors"
	"gopkg.in/yaml.v3"
)

// TimeFormat is the ISO-8601-with-Z-suffix format used for created and
// updated timestamps.
const TimeFormat = "2006-01-02T15:04:05Z"

// Source is an external-reference record attached to a note.
type Source struct {
	URL      string `yaml:"url"`
	Title    string `yaml:"title,omitempty"`
	Accessed string `yaml:"accessed,omitempty"`
}

// Link is a typed link to another note, persisted in front matter.
type Link struct {
	To       string `yaml:"to"`
	LinkType string `yaml:"type"`
}

// Note is the fully-parsed representation of one note file: front matter
// plus body. Field order here is for Go ergonomics; the field order of the
// frontmatter struct below is what fixes the on-disk key order.
type Note struct {
	ID          string
	Title       string
	Type        string
	Created     time.Time
	Updated     time.Time
	Tags        []string
	Sources     []Source
	Links       []Link
	Summary     string
	Compacts    []string
	Source      string
	Author      string
	GeneratedBy string
	PromptHash  string
	Verified    *bool
	Value       *int
	Custom      map[string]interface{}

	Body string // raw markdown, exact text preserved
	Path string // absolute filesystem path, set by the store on load/save
}

// frontmatter is the YAML-serializable shape. Field order in this struct
// IS the on-disk key order required by SPEC_FULL.md / spec.md §6: id,
// title, type?, created?, updated?, tags?, sources?, links?, summary?,
// compacts?, source?, author?, generated_by?, prompt_hash?, verified?,
// value?, custom?.
type frontmatter struct {
	ID          string                 `yaml:"id"`
	Title       string                 `yaml:"title"`
	Type        string                 `yaml:"type,omitempty"`
	Created     string                 `yaml:"created,omitempty"`
	Updated     string                 `yaml:"updated,omitempty"`
	Tags        []string               `yaml:"tags,omitempty"`
	Sources     []Source               `yaml:"sources,omitempty"`
	Links       []Link                 `yaml:"links,omitempty"`
	Summary     string                 `yaml:"summary,omitempty"`
	Compacts    []string               `yaml:"compacts,omitempty"`
	Source      string                 `yaml:"source,omitempty"`
	Author      string                 `yaml:"author,omitempty"`
	GeneratedBy string                 `yaml:"generated_by,omitempty"`
	PromptHash  string                 `yaml:"prompt_hash,omitempty"`
	Verified    *bool                  `yaml:"verified,omitempty"`
	Value       *int                   `yaml:"value,omitempty"`
	Custom      map[string]interface{} `yaml:"custom,omitempty"`
}

const delimiter = "---"

// Parse splits raw file contents into a Note. The body's exact text
// (including line endings) is preserved apart from the leading
// front-matter block and its surrounding delimiters/blank line.
func Parse(raw string) (*Note, error) {
	lines := strings.SplitAfter(raw, "\n")
	if len(lines) == 0 || strings.TrimRight(lines[0], "\r\n") != delimiter {
		return nil, qipuerrors.New(qipuerrors.Invalid, "note missing opening front-matter delimiter")
	}
	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], "\r\n") == delimiter {
			end = i
			break
		}
	}
	if end == -1 {
		return nil, qipuerrors.New(qipuerrors.Invalid, "note missing closing front-matter delimiter")
	}

	yamlBlock := strings.Join(lines[1:end], "")
	var fm frontmatter
	if err := yaml.Unmarshal([]byte(yamlBlock), &fm); err != nil {
		return nil, qipuerrors.Wrap(qipuerrors.Invalid, err, "parse front matter")
	}

	bodyStart := end + 1
	if bodyStart < len(lines) && strings.TrimRight(lines[bodyStart], "\r\n") == "" {
		bodyStart++
	}
	body := strings.Join(lines[bodyStart:], "")

	n, err := fromFrontmatter(fm)
	if err != nil {
		return nil, err
	}
	n.Body = body
	return n, nil
}

func fromFrontmatter(fm frontmatter) (*Note, error) {
	if fm.ID == "" {
		return nil, qipuerrors.New(qipuerrors.Invalid, "note missing required id field")
	}
	if fm.Title == "" {
		return nil, qipuerrors.New(qipuerrors.Invalid, "note missing required title field").WithToken(fm.ID)
	}
	n := &Note{
		ID:          fm.ID,
		Title:       fm.Title,
		Type:        fm.Type,
		Tags:        fm.Tags,
		Sources:     fm.Sources,
		Links:       fm.Links,
		Summary:     fm.Summary,
		Compacts:    fm.Compacts,
		Source:      fm.Source,
		Author:      fm.Author,
		GeneratedBy: fm.GeneratedBy,
		PromptHash:  fm.PromptHash,
		Verified:    fm.Verified,
		Value:       fm.Value,
		Custom:      fm.Custom,
	}
	if fm.Created != "" {
		t, err := time.Parse(TimeFormat, fm.Created)
		if err != nil {
			return nil, qipuerrors.Wrap(qipuerrors.Invalid, err, "parse created timestamp").WithToken(fm.ID)
		}
		n.Created = t
	}
	if fm.Updated != "" {
		t, err := time.Parse(TimeFormat, fm.Updated)
		if err != nil {
			return nil, qipuerrors.Wrap(qipuerrors.Invalid, err, "parse updated timestamp").WithToken(fm.ID)
		}
		n.Updated = t
	}
	return n, nil
}

// Serialize renders the note back to its on-disk text form: front matter
// delimited by `---` lines, a blank line, then the body verbatim.
func (n *Note) Serialize() (string, error) {
	fm := frontmatter{
		ID:          n.ID,
		Title:       n.Title,
		Type:        n.Type,
		Tags:        n.Tags,
		Sources:     n.Sources,
		Links:       n.Links,
		Summary:     n.Summary,
		Compacts:    n.Compacts,
		Source:      n.Source,
		Author:      n.Author,
		GeneratedBy: n.GeneratedBy,
		PromptHash:  n.PromptHash,
		Verified:    n.Verified,
		Value:       n.Value,
		Custom:      n.Custom,
	}
	if !n.Created.IsZero() {
		fm.Created = n.Created.UTC().Format(TimeFormat)
	}
	if !n.Updated.IsZero() {
		fm.Updated = n.Updated.UTC().Format(TimeFormat)
	}

	yamlBytes, err := yaml.Marshal(&fm)
	if err != nil {
		return "", qipuerrors.Wrap(qipuerrors.Invalid, err, "serialize front matter").WithToken(n.ID)
	}

	var b strings.Builder
	b.WriteString(delimiter)
	b.WriteString("\n")
	b.Write(yamlBytes)
	b.WriteString(delimiter)
	b.WriteString("\n\n")
	b.WriteString(n.Body)
	return b.String(), nil
}

// ResolvedType returns the note's type, defaulting to "fleeting" when
// absent (per §3's Note invariants).
func (n *Note) ResolvedType() string {
	if n.Type == "" {
		return "fleeting"
	}
	return n.Type
}

// ResolvedValue returns the note's value, defaulting to 50 when absent.
func (n *Note) ResolvedValue() int {
	if n.Value == nil {
		return 50
	}
	return *n.Value
}

// IsDigest reports whether the note compacts one or more other notes.
func (n *Note) IsDigest() bool {
	return len(n.Compacts) > 0
}

// Validate checks the structural invariants from §3 that don't require
// store-wide knowledge (ontology membership, link target existence are
// checked by the caller, which has that context).
func (n *Note) Validate() error {
	if n.ID == "" {
		return qipuerrors.New(qipuerrors.Invalid, "note id must not be empty")
	}
	if n.Title == "" {
		return qipuerrors.New(qipuerrors.Invalid, "note title must not be empty").WithToken(n.ID)
	}
	if n.Value != nil && (*n.Value < 0 || *n.Value > 100) {
		return qipuerrors.Newf(qipuerrors.Invalid, "note value %d out of range [0,100]", *n.Value).WithToken(n.ID)
	}
	for _, tag := range n.Tags {
		if strings.TrimSpace(tag) == "" {
			return qipuerrors.New(qipuerrors.Invalid, "note tag must not be blank/whitespace").WithToken(n.ID)
		}
	}
	for _, compactedID := range n.Compacts {
		if compactedID == n.ID {
			return qipuerrors.New(qipuerrors.Invalid, "note cannot compact itself").WithToken(n.ID)
		}
	}
	return nil
}

// Filename returns the `{id}-{slug(title)}.md` filename this note should
// be stored under.
func Filename(id, slug string) string {
	if slug == "" {
		return fmt.Sprintf("%s.md", id)
	}
	return fmt.Sprintf("%s-%s.md", id, slug)
}
