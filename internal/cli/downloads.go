package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AlfRonDon/NeuraReport-sub005/internal/history"
	"github.com/AlfRonDon/NeuraReport-sub005/internal/models"
)

var downloadsLimit int

var downloadsCmd = &cobra.Command{
	Use:   "downloads",
	Short: "List the download records of the companion server",
	Long: `List the download records the running neurareport-server has produced,
newest first. Each record carries the primary artifact URL and the request
parameters it can be rerun with.`,
	RunE: runDownloads,
}

func init() {
	downloadsCmd.Flags().IntVarP(&downloadsLimit, "limit", "n", 50, "max records")
	rootCmd.AddCommand(downloadsCmd)
}

func runDownloads(cmd *cobra.Command, args []string) error {
	var payload struct {
		Downloads []models.DownloadRecord `json:"downloads"`
	}
	if err := fetchJSON("/api/downloads", &payload); err != nil {
		return fmt.Errorf("list downloads: %w", err)
	}

	records := payload.Downloads
	if len(records) > downloadsLimit {
		records = records[len(records)-downloadsLimit:]
	}

	if outputYAML {
		return printYAML(records)
	}

	if len(records) == 0 {
		fmt.Println("No downloads found")
		return nil
	}

	fmt.Printf("%-28s %-24s %-6s %s\n", "ID", "NAME", "FORMAT", "URL")
	fmt.Println("--------------------------------------------------------------------------------")
	for _, d := range records {
		fmt.Printf("%-28s %-24s %-6s %s\n", d.ID, d.Name, d.Format, d.URL)
	}
	return nil
}

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [item-id]",
	Short: "List past generation runs from the history store",
	Long: `List past generation runs recorded in the SurrealDB history store,
newest first, or inspect one run by item id. Requires NEURAREPORT_HISTORY_URL
to be configured.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 50, "max runs")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if cfg.HistoryURL == "" {
		return fmt.Errorf("no history store configured, set NEURAREPORT_HISTORY_URL")
	}

	store, closeStore, err := openHistory(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if len(args) == 1 {
		return showRun(ctx, store, args[0])
	}

	runs, err := store.ListRuns(ctx, historyLimit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	if outputYAML {
		return printYAML(runs)
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded")
		return nil
	}

	fmt.Printf("%-20s %-24s %-10s %s\n", "ITEM", "NAME", "STATUS", "RECORDED")
	fmt.Println("--------------------------------------------------------------------")
	for _, run := range runs {
		fmt.Printf("%-20s %-24s %-10s %s\n",
			run.ItemID, run.Name, run.Status, run.Created.Format("2006-01-02 15:04:05"))
		if run.Error != nil {
			fmt.Printf("  error: %s\n", *run.Error)
		}
	}
	return nil
}

func showRun(ctx context.Context, store *history.Client, itemID string) error {
	run, err := store.Run(ctx, itemID)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			return fmt.Errorf("no recorded run for item %s", itemID)
		}
		return err
	}

	if outputYAML {
		return printYAML(run)
	}

	fmt.Printf("Run: %s\n", run.ItemID)
	fmt.Printf("  Template: %s (%s)\n", run.Name, run.TemplateID)
	fmt.Printf("  Status: %s\n", run.Status)
	fmt.Printf("  Recorded: %s\n", run.Created.Format("2006-01-02 15:04:05"))
	if run.Error != nil {
		fmt.Printf("  Error: %s\n", *run.Error)
	}
	for format, url := range map[string]*string{
		"html": run.HTMLURL,
		"pdf":  run.PDFURL,
		"docx": run.DocxURL,
		"xlsx": run.XlsxURL,
	} {
		if url != nil {
			fmt.Printf("  %-5s %s\n", format, *url)
		}
	}
	return nil
}
