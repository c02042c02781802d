package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestScheduleMarshalsCamelCase(t *testing.T) {
	s := Schedule{
		Name:       "daily north",
		TemplateID: "tpl-1",
		Frequency:  "daily",
		Formats:    FormatRequest{Xlsx: true},
	}
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if !strings.Contains(out, `"formats":{"docx":false,"xlsx":true}`) {
		t.Errorf("formats key not camelCase: %s", out)
	}
	if strings.Contains(out, `"Formats"`) {
		t.Errorf("exported field name leaked into the wire shape: %s", out)
	}
}
