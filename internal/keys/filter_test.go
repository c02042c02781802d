package keys

import (
	"encoding/json"
	"testing"

	"github.com/AlfRonDon/NeuraReport-sub005/internal/models"
)

func noOptions(string) models.KeyOptionSet { return nil }

func TestSelectionExclusivity(t *testing.T) {
	// Under any sequence of toggles a selection never holds both the
	// sentinel and literals.
	sequences := [][]string{
		{"north", models.AllOption},
		{models.AllOption, "north"},
		{"north", "south", models.AllOption, "east"},
		{models.AllOption, models.AllOption},
		{"north", models.AllOption, models.AllOption, "south"},
	}

	for i, seq := range sequences {
		s := NewSelectionStore()
		for _, v := range seq {
			s.Toggle("tpl", "region", v)
		}
		got := s.Get("tpl", "region")

		hasAll, hasLiteral := false, false
		for _, v := range got {
			if v == models.AllOption {
				hasAll = true
			} else {
				hasLiteral = true
			}
		}
		if hasAll && hasLiteral {
			t.Errorf("sequence %d: selection %v mixes sentinel and literals", i, got)
		}
	}
}

func TestToggleSemantics(t *testing.T) {
	s := NewSelectionStore()

	s.Toggle("tpl", "region", "north")
	s.Toggle("tpl", "region", "south")
	if got := s.Get("tpl", "region"); len(got) != 2 {
		t.Fatalf("expected two literals, got %v", got)
	}

	// Sentinel replaces literals.
	s.Toggle("tpl", "region", models.AllOption)
	if got := s.Get("tpl", "region"); len(got) != 1 || got[0] != models.AllOption {
		t.Fatalf("expected sentinel only, got %v", got)
	}

	// A literal replaces the sentinel.
	s.Toggle("tpl", "region", "east")
	if got := s.Get("tpl", "region"); len(got) != 1 || got[0] != "east" {
		t.Fatalf("expected single literal, got %v", got)
	}

	// Toggling the last literal off empties the selection.
	s.Toggle("tpl", "region", "east")
	if got := s.Get("tpl", "region"); len(got) != 0 {
		t.Fatalf("expected empty selection, got %v", got)
	}

	// Toggling the sentinel off empties it too.
	s.SelectAll("tpl", "region")
	s.Toggle("tpl", "region", models.AllOption)
	if got := s.Get("tpl", "region"); len(got) != 0 {
		t.Fatalf("expected empty selection after sentinel toggle-off, got %v", got)
	}
}

func TestBuildLiteralNormalization(t *testing.T) {
	s := NewSelectionStore()
	b := NewBuilder(s, noOptions)

	s.Set("tpl", "region", []string{" north ", "north", ""})
	s.Set("tpl", "line", []string{"a", "b"})
	s.Set("tpl", "site", []string{"  ", ""})

	filters := b.Build("tpl")

	if got := filters["region"]; len(got) != 1 || got[0] != "north" {
		t.Errorf("region = %v, want single normalized value", got)
	}
	if got := filters["line"]; len(got) != 2 {
		t.Errorf("line = %v, want two values", got)
	}
	if _, ok := filters["site"]; ok {
		t.Error("empty-after-normalization token must be omitted")
	}

	// Single value collapses to a scalar on the wire.
	raw, err := json.Marshal(filters)
	if err != nil {
		t.Fatal(err)
	}
	var wire map[string]any
	if err := json.Unmarshal(raw, &wire); err != nil {
		t.Fatal(err)
	}
	if _, isScalar := wire["region"].(string); !isScalar {
		t.Errorf("region should serialize as scalar, got %T", wire["region"])
	}
	if _, isList := wire["line"].([]any); !isList {
		t.Errorf("line should serialize as array, got %T", wire["line"])
	}
}

func TestBuildAllOptionExpansion(t *testing.T) {
	s := NewSelectionStore()
	options := models.KeyOptionSet{
		"region": {"north", "south"},
		"line":   {"l1"},
	}
	b := NewBuilder(s, func(string) models.KeyOptionSet { return options })

	s.SelectAll("tpl", "region")
	s.SelectAll("tpl", "line")

	filters := b.Build("tpl")
	if got := filters["region"]; len(got) != 2 {
		t.Errorf("region = %v, want full vocabulary", got)
	}
	if got := filters["line"]; len(got) != 1 || got[0] != "l1" {
		t.Errorf("line = %v, want single resolved value", got)
	}
}

func TestBuildAllOptionUnresolvedOmitsToken(t *testing.T) {
	// Selecting "all" before the vocabulary loads must omit the token
	// rather than emit a placeholder that over-constrains the query.
	s := NewSelectionStore()
	b := NewBuilder(s, noOptions)

	s.SelectAll("tpl", "region")
	s.Set("tpl", "line", []string{"l1"})

	filters := b.Build("tpl")
	if _, ok := filters["region"]; ok {
		t.Errorf("unresolved all-selection must be omitted, got %v", filters["region"])
	}
	if _, ok := filters["line"]; !ok {
		t.Error("literal token must survive alongside omitted token")
	}
}

func TestKeysReady(t *testing.T) {
	tpl := models.Template{ID: "tpl", MappingKeys: []string{"region", "line"}}
	s := NewSelectionStore()
	b := NewBuilder(s, noOptions)

	if b.KeysReady(tpl) {
		t.Error("no selections: not ready")
	}

	s.Set("tpl", "region", []string{"north"})
	if b.KeysReady(tpl) {
		t.Error("one of two keys selected: not ready")
	}
	if missing := b.MissingKeys(tpl); len(missing) != 1 || missing[0] != "line" {
		t.Errorf("MissingKeys = %v, want [line]", missing)
	}

	// AllOption counts as a selection even before options resolve.
	s.SelectAll("tpl", "line")
	if !b.KeysReady(tpl) {
		t.Error("all keys selected: ready")
	}

	// A template without mapping keys is always ready.
	if !b.KeysReady(models.Template{ID: "bare"}) {
		t.Error("template without keys must be ready")
	}
}
