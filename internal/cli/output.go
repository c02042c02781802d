package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// printYAML renders v as YAML on stdout. Used by commands when --yaml is set
// so output can be piped into other tooling.
func printYAML(v any) error {
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return nil
}
