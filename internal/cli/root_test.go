package cli

import (
	"testing"
	"time"

	"github.com/AlfRonDon/NeuraReport-sub005/internal/models"
)

func TestParseTemplates(t *testing.T) {
	flags := scopeFlags{templates: []string{
		"t1",
		"t2:Line Summary:excel",
		"t3:Shift Report:pdf:machine+line",
	}}

	templates, err := flags.parseTemplates()
	if err != nil {
		t.Fatal(err)
	}
	if len(templates) != 3 {
		t.Fatalf("got %d templates", len(templates))
	}

	if templates[0].Name != "t1" || templates[0].Kind != models.TemplateKindPDF {
		t.Errorf("bare id should default name and kind: %+v", templates[0])
	}
	if templates[1].Kind != models.TemplateKindExcel {
		t.Errorf("kind = %s", templates[1].Kind)
	}
	if len(templates[2].MappingKeys) != 2 || templates[2].MappingKeys[1] != "line" {
		t.Errorf("mapping keys = %v", templates[2].MappingKeys)
	}
}

func TestParseTemplatesRejectsBadKind(t *testing.T) {
	flags := scopeFlags{templates: []string{"t1:Name:csv"}}
	if _, err := flags.parseTemplates(); err == nil {
		t.Error("want error for unknown kind")
	}
}

func TestParseKeySelections(t *testing.T) {
	flags := scopeFlags{keyValues: []string{"machine=press-1,press-2", "line=" + models.AllOption}}

	selections, err := flags.parseKeySelections()
	if err != nil {
		t.Fatal(err)
	}
	if len(selections["machine"]) != 2 {
		t.Errorf("machine = %v", selections["machine"])
	}
	if len(selections["line"]) != 1 || selections["line"][0] != models.AllOption {
		t.Errorf("line = %v", selections["line"])
	}

	flags = scopeFlags{keyValues: []string{"noequals"}}
	if _, err := flags.parseKeySelections(); err == nil {
		t.Error("want error for malformed selection")
	}
}

func TestParseFlexibleTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-01-03", time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)},
		{"2024-01-03 08:30", time.Date(2024, 1, 3, 8, 30, 0, 0, time.UTC)},
		{"2024-01-03T08:30", time.Date(2024, 1, 3, 8, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := parseFlexibleTime(tt.in)
		if err != nil {
			t.Errorf("%q: %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("%q = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := parseFlexibleTime("03/01/2024"); err == nil {
		t.Error("want error for unknown layout")
	}
}
