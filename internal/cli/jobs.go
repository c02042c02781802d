package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/AlfRonDon/NeuraReport-sub005/internal/models"
)

var jobsWatch bool

var jobsCmd = &cobra.Command{
	Use:   "jobs [item-id]",
	Short: "List or watch generation jobs on the companion server",
	Long: `List the generation jobs of the running neurareport-server, inspect a
single job, or watch status transitions live over the websocket stream.

Examples:
  neurareport jobs             # List all jobs
  neurareport jobs t1-ab12cd34 # Show one job
  neurareport jobs --watch     # Stream transitions until interrupted`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJobs,
}

func init() {
	jobsCmd.Flags().BoolVarP(&jobsWatch, "watch", "w", false, "stream job transitions live")
	rootCmd.AddCommand(jobsCmd)
}

func serverBase() string {
	return "http://localhost:" + cfg.ServerPort
}

func runJobs(cmd *cobra.Command, args []string) error {
	if jobsWatch {
		return watchJobs()
	}
	if len(args) == 1 {
		return showJob(args[0])
	}
	return listJobs()
}

func fetchJSON(path string, v any) error {
	resp, err := http.Get(serverBase() + path)
	if err != nil {
		return fmt.Errorf("is neurareport-server running? %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func listJobs() error {
	var payload struct {
		Items []models.GenerationItem `json:"items"`
	}
	if err := fetchJSON("/api/jobs", &payload); err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	if outputYAML {
		return printYAML(payload.Items)
	}

	if len(payload.Items) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Printf("%-20s %-24s %-10s %-9s %s\n", "ID", "NAME", "STATUS", "PROGRESS", "STARTED")
	fmt.Println("--------------------------------------------------------------------------------")
	for _, item := range payload.Items {
		fmt.Printf("%-20s %-24s %-10s %-9s %s\n",
			item.ID, item.Name, item.Status,
			fmt.Sprintf("%d%%", item.Progress),
			item.StartedAt.Format("15:04:05"))
	}
	return nil
}

func showJob(id string) error {
	var item models.GenerationItem
	if err := fetchJSON("/api/jobs/"+id, &item); err != nil {
		return fmt.Errorf("get job: %w", err)
	}

	if outputYAML {
		return printYAML(item)
	}

	fmt.Printf("Job: %s\n", item.ID)
	fmt.Printf("  Template: %s (%s)\n", item.Name, item.TemplateID)
	fmt.Printf("  Status: %s\n", item.Status)
	fmt.Printf("  Progress: %d%%\n", item.Progress)
	fmt.Printf("  Started: %s\n", item.StartedAt.Format(time.RFC3339))
	if item.CompletedAt != nil {
		fmt.Printf("  Completed: %s\n", item.CompletedAt.Format(time.RFC3339))
		fmt.Printf("  Duration: %s\n", item.CompletedAt.Sub(item.StartedAt).Round(time.Second))
	}
	if item.Error != "" {
		fmt.Printf("  Error: %s\n", item.Error)
	}
	if !item.Artifacts.Empty() {
		fmt.Println("  Artifacts:")
		for format, url := range map[string]string{
			"html": item.Artifacts.HTMLURL,
			"pdf":  item.Artifacts.PDFURL,
			"docx": item.Artifacts.DocxURL,
			"xlsx": item.Artifacts.XlsxURL,
		} {
			if url != "" {
				fmt.Printf("    %-5s %s\n", format, url)
			}
		}
	}
	return nil
}

// watchJobs streams item transitions over the websocket until interrupted.
func watchJobs() error {
	wsURL := "ws://localhost:" + cfg.ServerPort + "/ws/jobs"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("connect to job stream (is neurareport-server running?): %w", err)
	}
	defer conn.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}()

	fmt.Println("Watching job transitions (Ctrl+C to stop)...")
	for {
		var item models.GenerationItem
		if err := conn.ReadJSON(&item); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return nil
		}
		line := fmt.Sprintf("%s  %-20s %-24s %-10s %3d%%",
			time.Now().Format("15:04:05"), item.ID, item.Name, item.Status, item.Progress)
		if item.Error != "" {
			line += "  " + item.Error
		}
		fmt.Println(line)
	}
}
