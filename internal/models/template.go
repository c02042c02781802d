// Package models defines data structures for the NeuraReport discovery and
// generation core.
package models

// TemplateKind identifies the document family a template renders to.
type TemplateKind string

const (
	TemplateKindPDF   TemplateKind = "pdf"
	TemplateKindExcel TemplateKind = "excel"
)

// Template is a verified report template as registered with the backend.
// MappingKeys is the authoritative list of filter tokens the template
// requires; it is immutable for the session.
type Template struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Kind        TemplateKind `json:"kind"`
	MappingKeys []string     `json:"mappingKeys"`
}

// RequiresKeys reports whether the template declares any filter tokens.
func (t Template) RequiresKeys() bool {
	return len(t.MappingKeys) > 0
}
