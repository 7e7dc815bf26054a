// Package ontology resolves the vocabulary of valid note types and link
// types for a store: which names are allowed, what a link type's inverse
// and edge cost are, and how custom configuration merges with (or
// replaces) the built-in set.
package ontology

import (
	"sort"
	"strings"

	"github.com/mwaldstein/qipu/internal/qipuerrors"
)

// Mode selects how custom types from config combine with the built-ins.
type Mode string

const (
	ModeDefault     Mode = "default"
	ModeExtended    Mode = "extended"
	ModeReplacement Mode = "replacement"
)

// StandardNoteTypes are the four built-in note types.
var StandardNoteTypes = []string{"fleeting", "literature", "permanent", "moc"}

// standardLinkInverses mirrors the built-in link-type table one for one;
// order matters for nothing since it is loaded into a map, but it is kept
// in pairs for readability.
var standardLinkInverses = [][2]string{
	{"related", "related"},
	{"derived-from", "derived-to"},
	{"derived-to", "derived-from"},
	{"supports", "supported-by"},
	{"supported-by", "supports"},
	{"contradicts", "contradicted-by"},
	{"contradicted-by", "contradicts"},
	{"part-of", "has-part"},
	{"has-part", "part-of"},
	{"answers", "answered-by"},
	{"answered-by", "answers"},
	{"refines", "refined-by"},
	{"refined-by", "refines"},
	{"same-as", "same-as"},
	{"alias-of", "has-alias"},
	{"has-alias", "alias-of"},
	{"follows", "precedes"},
	{"precedes", "follows"},
}

// standardLinkCost returns the built-in edge cost for a known link type,
// or (0, false) for anything custom/unknown.
func standardLinkCost(linkType string) (float32, bool) {
	switch linkType {
	case "part-of", "has-part", "follows", "precedes", "same-as", "alias-of", "has-alias":
		return 0.5, true
	case "derived-from", "derived-to", "supports", "supported-by", "contradicts", "contradicted-by",
		"answers", "answered-by", "refines", "refined-by", "related":
		return 1.0, true
	default:
		return 0, false
	}
}

// LinkTypeDef is the per-link-type configuration a store's config.toml
// (or the replacement/extended ontology) may supply.
type LinkTypeDef struct {
	Inverse     string
	Description string
	Cost        float32 // 0 means "unset"; resolved cost falls back to 1.0
	Usage       string
}

// NoteTypeDef is the per-note-type configuration config.toml may supply.
type NoteTypeDef struct {
	Description string
	Usage       string
}

// Config is the subset of store configuration the ontology resolver
// reads. It mirrors §4.B's `ontology` and `graph.types.*` sections.
type Config struct {
	Mode        Mode
	NoteTypes   map[string]NoteTypeDef
	LinkTypes   map[string]LinkTypeDef
	GraphTypes  map[string]LinkTypeDef // graph.types.* backward-compat merge
	DefaultCost float32                // not read by FromConfig; Cost always falls back to 1.0
}

// Ontology is the resolved, immutable vocabulary for one store open. It
// is built once at store open and never mutated afterward.
type Ontology struct {
	noteTypes map[string]struct{}
	linkTypes map[string]struct{}
	inverses  map[string]string
	costs     map[string]float32
}

// FromConfig resolves an Ontology from config according to its Mode.
func FromConfig(cfg Config) *Ontology {
	var o *Ontology
	switch cfg.Mode {
	case ModeExtended:
		o = extendedOntology(cfg)
	case ModeReplacement:
		o = replacementOntology(cfg)
	default:
		o = defaultOntology()
	}
	for name, def := range cfg.GraphTypes {
		o.linkTypes[name] = struct{}{}
		if def.Inverse != "" {
			o.inverses[name] = def.Inverse
		}
		if def.Cost != 0 {
			o.costs[name] = def.Cost
		}
	}
	return o
}

func defaultOntology() *Ontology {
	o := &Ontology{
		noteTypes: setOf(StandardNoteTypes),
		linkTypes: make(map[string]struct{}),
		inverses:  make(map[string]string),
		costs:     make(map[string]float32),
	}
	for _, pair := range standardLinkInverses {
		o.linkTypes[pair[0]] = struct{}{}
		o.inverses[pair[0]] = pair[1]
		if cost, ok := standardLinkCost(pair[0]); ok {
			o.costs[pair[0]] = cost
		}
	}
	return o
}

func extendedOntology(cfg Config) *Ontology {
	o := defaultOntology()
	for name := range cfg.NoteTypes {
		o.noteTypes[name] = struct{}{}
	}
	for name, def := range cfg.LinkTypes {
		o.linkTypes[name] = struct{}{}
		if def.Inverse != "" {
			o.inverses[name] = def.Inverse
		}
		if def.Cost != 0 {
			o.costs[name] = def.Cost
		}
	}
	return o
}

func replacementOntology(cfg Config) *Ontology {
	o := &Ontology{
		noteTypes: make(map[string]struct{}),
		linkTypes: make(map[string]struct{}),
		inverses:  make(map[string]string),
		costs:     make(map[string]float32),
	}
	for name := range cfg.NoteTypes {
		o.noteTypes[name] = struct{}{}
	}
	for name, def := range cfg.LinkTypes {
		o.linkTypes[name] = struct{}{}
		if def.Inverse != "" {
			o.inverses[name] = def.Inverse
		}
		if def.Cost != 0 {
			o.costs[name] = def.Cost
		}
	}
	return o
}

func setOf(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, it := range items {
		out[it] = struct{}{}
	}
	return out
}

// IsValidNoteType reports whether noteType is in the resolved vocabulary.
func (o *Ontology) IsValidNoteType(noteType string) bool {
	_, ok := o.noteTypes[noteType]
	return ok
}

// IsValidLinkType reports whether linkType is in the resolved vocabulary.
func (o *Ontology) IsValidLinkType(linkType string) bool {
	_, ok := o.linkTypes[linkType]
	return ok
}

// Inverse returns the inverse of linkType. For an unknown type with no
// configured inverse it falls back to "inverse-<type>", matching the
// teacher-inherited escape hatch for unrecognized tagged variants.
func (o *Ontology) Inverse(linkType string) string {
	lt := strings.ToLower(linkType)
	if inv, ok := o.inverses[lt]; ok {
		return inv
	}
	return "inverse-" + lt
}

// Cost returns the configured edge cost for linkType, defaulting to 1.0
// for anything not given a standard or custom cost.
func (o *Ontology) Cost(linkType string) float32 {
	if cost, ok := o.costs[linkType]; ok {
		return cost
	}
	return 1.0
}

// NoteTypes returns the sorted list of valid note types.
func (o *Ontology) NoteTypes() []string {
	return sortedKeys(o.noteTypes)
}

// LinkTypes returns the sorted list of valid link types.
func (o *Ontology) LinkTypes() []string {
	return sortedKeys(o.linkTypes)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ValidateLinkType returns a *qipuerrors.Error with Kind Ontology if
// linkType is not in the resolved vocabulary.
func (o *Ontology) ValidateLinkType(linkType string) error {
	if !o.IsValidLinkType(linkType) {
		return qipuerrors.Newf(qipuerrors.Ontology, "invalid link type: %q", linkType).WithToken(linkType)
	}
	return nil
}

// ValidateNoteType returns a *qipuerrors.Error with Kind Ontology if
// noteType is not in the resolved vocabulary.
func (o *Ontology) ValidateNoteType(noteType string) error {
	if !o.IsValidNoteType(noteType) {
		return qipuerrors.Newf(qipuerrors.Ontology, "invalid note type: %q (valid: %s)",
			noteType, strings.Join(o.NoteTypes(), ", ")).WithToken(noteType)
	}
	return nil
}
