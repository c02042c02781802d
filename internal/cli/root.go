// Package cli provides the command-line interface for neurareport.
package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AlfRonDon/NeuraReport-sub005/internal/backend"
	"github.com/AlfRonDon/NeuraReport-sub005/internal/config"
	"github.com/AlfRonDon/NeuraReport-sub005/internal/models"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose    bool
	outputYAML bool

	// Global config and backend client
	cfg    config.Config
	client *backend.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "neurareport",
	Short: "Report discovery and generation for industrial data",
	Long: `NeuraReport drives a report backend from the terminal: resolve the legal
filter values of a template, discover the candidate batches in a date range,
regroup them along time, category, or numeric axes, and generate the final
documents in HTML, PDF, DOCX, or XLSX.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()
		client = backend.New(cfg.BackendURL)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&outputYAML, "yaml", "y", false, "print results as YAML")
}

// exitWithError prints an error message and exits with code 1.
func exitWithError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// scopeFlags are the common template/range/connection flags shared by the
// keys, discover, and generate commands.
type scopeFlags struct {
	templates  []string
	keyValues  []string
	from       string
	to         string
	connection string
}

func (f *scopeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.templates, "template", "t", nil,
		"template as id:name:kind[:key1+key2], repeatable")
	cmd.Flags().StringArrayVarP(&f.keyValues, "key", "k", nil,
		"key selection as token=v1,v2 or token=__all__, repeatable")
	cmd.Flags().StringVar(&f.from, "from", "", "range start (2006-01-02 or '2006-01-02 15:04')")
	cmd.Flags().StringVar(&f.to, "to", "", "range end")
	cmd.Flags().StringVar(&f.connection, "conn", "", "connection id (defaults to NEURAREPORT_CONNECTION_ID)")
	cmd.MarkFlagRequired("template")
}

// parseTemplates expands the --template flags into template descriptors.
func (f *scopeFlags) parseTemplates() ([]models.Template, error) {
	templates := make([]models.Template, 0, len(f.templates))
	for _, raw := range f.templates {
		parts := strings.Split(raw, ":")
		if len(parts) < 1 || parts[0] == "" {
			return nil, fmt.Errorf("invalid template %q, want id:name:kind[:key1+key2]", raw)
		}
		tpl := models.Template{ID: parts[0], Name: parts[0], Kind: models.TemplateKindPDF}
		if len(parts) > 1 && parts[1] != "" {
			tpl.Name = parts[1]
		}
		if len(parts) > 2 && parts[2] != "" {
			switch parts[2] {
			case string(models.TemplateKindPDF), string(models.TemplateKindExcel):
				tpl.Kind = models.TemplateKind(parts[2])
			default:
				return nil, fmt.Errorf("invalid template kind %q", parts[2])
			}
		}
		if len(parts) > 3 && parts[3] != "" {
			tpl.MappingKeys = strings.Split(parts[3], "+")
		}
		templates = append(templates, tpl)
	}
	return templates, nil
}

// parseKeySelections expands the --key flags into per-token value lists.
func (f *scopeFlags) parseKeySelections() (map[string][]string, error) {
	selections := make(map[string][]string, len(f.keyValues))
	for _, raw := range f.keyValues {
		token, values, ok := strings.Cut(raw, "=")
		if !ok || token == "" {
			return nil, fmt.Errorf("invalid key selection %q, want token=v1,v2", raw)
		}
		selections[token] = strings.Split(values, ",")
	}
	return selections, nil
}

// parseRange parses the --from/--to flags. Both are required together.
func (f *scopeFlags) parseRange() (models.DateRange, error) {
	if f.from == "" || f.to == "" {
		return models.DateRange{}, fmt.Errorf("--from and --to are required")
	}
	start, err := parseFlexibleTime(f.from)
	if err != nil {
		return models.DateRange{}, fmt.Errorf("--from: %w", err)
	}
	end, err := parseFlexibleTime(f.to)
	if err != nil {
		return models.DateRange{}, fmt.Errorf("--to: %w", err)
	}
	return models.DateRange{Start: start, End: end}, nil
}

func (f *scopeFlags) connectionID() string {
	if f.connection != "" {
		return f.connection
	}
	return cfg.ConnectionID
}

var cliTimeLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseFlexibleTime(s string) (time.Time, error) {
	for _, layout := range cliTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
