package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/AlfRonDon/NeuraReport-sub005/internal/generate"
	"github.com/AlfRonDon/NeuraReport-sub005/internal/history"
	"github.com/AlfRonDon/NeuraReport-sub005/internal/models"
)

var (
	generateFlags   scopeFlags
	generateDocx    bool
	generateXlsx    bool
	generateEmailTo string
	generateSubject string
	generateMessage string
	generatePlain   bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate reports for templates",
	Long: `Discover batches and generate the report documents for each template.
Templates fail and succeed independently; a failed template never blocks
its siblings.

Examples:
  neurareport generate -t t1 --from 2024-01-01 --to 2024-01-31
  neurareport generate -t "t1:Shift Report:pdf:machine" -k machine=__all__ \
      --from 2024-01-01 --to 2024-01-31 --xlsx --email-to ops@example.com`,
	RunE: runGenerate,
}

func init() {
	generateFlags.register(generateCmd)
	generateCmd.Flags().BoolVar(&generateDocx, "docx", false, "also produce DOCX")
	generateCmd.Flags().BoolVar(&generateXlsx, "xlsx", false, "also produce XLSX")
	generateCmd.Flags().StringVar(&generateEmailTo, "email-to", "", "email the artifacts to these recipients")
	generateCmd.Flags().StringVar(&generateSubject, "email-subject", "", "email subject")
	generateCmd.Flags().StringVar(&generateMessage, "email-message", "", "email body")
	generateCmd.Flags().BoolVar(&generatePlain, "no-progress", false, "disable the interactive progress display")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	session, builder, err := buildSession(ctx, &generateFlags)
	if err != nil {
		return err
	}

	templates, connectionID, rng := session.Scope()

	for _, outcome := range session.DiscoverAll(ctx, builder.Build) {
		if outcome.Err != nil {
			fmt.Fprintf(os.Stderr, "Warning: discovery failed for %s: %v\n", outcome.TemplateID, outcome.Err)
		}
	}

	var recorder generate.Recorder
	store, closeStore, err := openHistory(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: run history disabled: %v\n", err)
	}
	if store != nil {
		recorder = store
		defer closeStore()
	}

	preflight := func(templateID string) error {
		tpl, ok := session.Template(templateID)
		if !ok {
			return fmt.Errorf("%w: template %s not in scope", generate.ErrValidation, templateID)
		}
		if missing := builder.MissingKeys(tpl); len(missing) > 0 {
			return fmt.Errorf("%w: missing key values %v", generate.ErrValidation, missing)
		}
		return nil
	}

	orch := generate.NewOrchestrator(client, nil, recorder, preflight)
	orch.SeedRun(templates)

	paramsFor := func(templateID string) models.RunParams {
		params := models.RunParams{
			Range:           rng,
			ConnectionID:    connectionID,
			Filters:         builder.Build(templateID),
			Formats:         models.FormatRequest{Docx: generateDocx, Xlsx: generateXlsx},
			EmailRecipients: generateEmailTo,
			EmailSubject:    generateSubject,
			EmailMessage:    generateMessage,
		}
		if result := session.Result(templateID); result != nil {
			params.BatchIDs = result.SelectedBatchIDs()
		}
		return params
	}

	var items []models.GenerationItem
	if generatePlain || !term.IsTerminal(int(os.Stdout.Fd())) {
		items = orch.RunSeeded(ctx, paramsFor)
	} else {
		items, err = runWithProgress(ctx, orch, paramsFor)
		if err != nil {
			return err
		}
	}

	return printRunResults(items, orch.Downloads())
}

// openHistory connects the run-history store when configured. An empty
// history URL disables persistence entirely.
func openHistory(ctx context.Context) (*history.Client, func(), error) {
	if cfg.HistoryURL == "" {
		return nil, nil, nil
	}

	store, err := history.NewClient(ctx, history.Config{
		URL:       cfg.HistoryURL,
		Namespace: cfg.HistoryNamespace,
		Database:  cfg.HistoryDatabase,
		Username:  cfg.HistoryUser,
		Password:  cfg.HistoryPass,
		AuthLevel: cfg.HistoryAuthLevel,
	}, nil)
	if err != nil {
		return nil, nil, err
	}
	if err := store.InitSchema(ctx); err != nil {
		store.Close(ctx)
		return nil, nil, err
	}
	return store, func() { store.Close(context.Background()) }, nil
}

func printRunResults(items []models.GenerationItem, downloads []models.DownloadRecord) error {
	if outputYAML {
		return printYAML(map[string]any{"items": items, "downloads": downloads})
	}

	failed := 0
	for _, item := range items {
		switch item.Status {
		case models.RunStatusComplete:
			fmt.Printf("✓ %s\n", item.Name)
		default:
			failed++
			fmt.Printf("✗ %s: %s\n", item.Name, item.Error)
		}
	}

	if len(downloads) > 0 {
		fmt.Println("\nDownloads:")
		for _, d := range downloads {
			fmt.Printf("  %-6s %s\n", d.Format, d.URL)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d templates failed", failed, len(items))
	}
	return nil
}
