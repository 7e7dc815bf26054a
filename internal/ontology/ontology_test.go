package ontology

import "testing"

func TestDefaultOntologyBuiltins(t *testing.T) {
	o := FromConfig(Config{Mode: ModeDefault})
	for _, nt := range StandardNoteTypes {
		if !o.IsValidNoteType(nt) {
			t.Errorf("expected built-in note type %q to be valid", nt)
		}
	}
	if o.IsValidNoteType("bogus") {
		t.Error("bogus note type should be invalid in default mode")
	}
}

func TestInverseOfInverse(t *testing.T) {
	o := FromConfig(Config{Mode: ModeDefault})
	for _, linkType := range o.LinkTypes() {
		inv := o.Inverse(linkType)
		if o.Inverse(inv) != linkType {
			t.Errorf("inverse(inverse(%q)) = %q, want %q", linkType, o.Inverse(inv), linkType)
		}
	}
}

func TestStandardCosts(t *testing.T) {
	o := FromConfig(Config{Mode: ModeDefault})
	cheap := []string{"part-of", "has-part", "follows", "precedes", "same-as", "alias-of", "has-alias"}
	for _, lt := range cheap {
		if got := o.Cost(lt); got != 0.5 {
			t.Errorf("Cost(%q) = %v, want 0.5", lt, got)
		}
	}
	if got := o.Cost("supports"); got != 1.0 {
		t.Errorf("Cost(supports) = %v, want 1.0", got)
	}
	if got := o.Cost("totally-custom"); got != 1.0 {
		t.Errorf("Cost(unknown) = %v, want default 1.0", got)
	}
}

func TestExtendedModeKeepsBuiltins(t *testing.T) {
	o := FromConfig(Config{
		Mode: ModeExtended,
		LinkTypes: map[string]LinkTypeDef{
			"cheap": {Inverse: "expensive", Cost: 0.25},
		},
	})
	if !o.IsValidLinkType("related") {
		t.Error("extended mode should keep built-in related")
	}
	if !o.IsValidLinkType("cheap") {
		t.Error("extended mode should add custom cheap")
	}
	if got := o.Inverse("cheap"); got != "expensive" {
		t.Errorf("Inverse(cheap) = %q, want expensive", got)
	}
	if got := o.Cost("cheap"); got != 0.25 {
		t.Errorf("Cost(cheap) = %v, want 0.25", got)
	}
}

func TestReplacementModeDropsBuiltins(t *testing.T) {
	o := FromConfig(Config{
		Mode: ModeReplacement,
		NoteTypes: map[string]NoteTypeDef{
			"custom-only": {},
		},
	})
	if o.IsValidNoteType("fleeting") {
		t.Error("replacement mode should not keep built-in fleeting")
	}
	if !o.IsValidNoteType("custom-only") {
		t.Error("replacement mode should have custom-only")
	}
}

func TestValidateLinkTypeError(t *testing.T) {
	o := FromConfig(Config{Mode: ModeDefault})
	if err := o.ValidateLinkType("not-a-type"); err == nil {
		t.Fatal("expected error for invalid link type")
	}
}

func TestGraphTypesMerge(t *testing.T) {
	o := FromConfig(Config{
		Mode: ModeDefault,
		GraphTypes: map[string]LinkTypeDef{
			"legacy": {Inverse: "legacy-inv", Cost: 0.5},
		},
	})
	if !o.IsValidLinkType("legacy") {
		t.Error("graph.types.* entries should merge into the ontology")
	}
}
