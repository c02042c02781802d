package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AlfRonDon/NeuraReport-sub005/internal/backend"
	"github.com/AlfRonDon/NeuraReport-sub005/internal/schedule"
)

var (
	scheduleName      string
	scheduleTemplate  string
	scheduleFrequency string
	scheduleStart     string
	scheduleEnd       string
	scheduleDocx      bool
	scheduleXlsx      bool
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage recurring report schedules",
	Long: `List, create, and delete recurring generation schedules. Execution is
owned by the backend; requests are validated locally before they are sent.

Examples:
  neurareport schedule list
  neurareport schedule create --name "daily north" --template t1 --frequency daily
  neurareport schedule delete s1
  neurareport schedule preview weekly`,
	RunE: runScheduleList,
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List schedules",
	RunE:  runScheduleList,
}

var scheduleCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a schedule",
	RunE:  runScheduleCreate,
}

var scheduleDeleteCmd = &cobra.Command{
	Use:   "delete <schedule-id>",
	Short: "Delete a schedule",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleDelete,
}

var schedulePreviewCmd = &cobra.Command{
	Use:   "preview <frequency>",
	Short: "Preview the next fire times of a frequency",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchedulePreview,
}

func init() {
	scheduleCreateCmd.Flags().StringVar(&scheduleName, "name", "", "schedule name")
	scheduleCreateCmd.Flags().StringVar(&scheduleTemplate, "template", "", "template id")
	scheduleCreateCmd.Flags().StringVar(&scheduleFrequency, "frequency", "", "hourly, daily, weekly, or monthly")
	scheduleCreateCmd.Flags().StringVar(&scheduleStart, "start", "", "first day (2006-01-02), optional")
	scheduleCreateCmd.Flags().StringVar(&scheduleEnd, "end", "", "last day (2006-01-02), optional")
	scheduleCreateCmd.Flags().BoolVar(&scheduleDocx, "docx", false, "also produce DOCX")
	scheduleCreateCmd.Flags().BoolVar(&scheduleXlsx, "xlsx", false, "also produce XLSX")
	scheduleCreateCmd.MarkFlagRequired("name")
	scheduleCreateCmd.MarkFlagRequired("template")
	scheduleCreateCmd.MarkFlagRequired("frequency")

	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleCreateCmd)
	scheduleCmd.AddCommand(scheduleDeleteCmd)
	scheduleCmd.AddCommand(schedulePreviewCmd)
	rootCmd.AddCommand(scheduleCmd)
}

func runScheduleList(cmd *cobra.Command, args []string) error {
	schedules, err := client.ListSchedules(context.Background())
	if err != nil {
		return fmt.Errorf("list schedules: %w", err)
	}

	if outputYAML {
		return printYAML(schedules)
	}

	if len(schedules) == 0 {
		fmt.Println("No schedules found")
		return nil
	}

	fmt.Printf("%-12s %-24s %-12s %-12s %s\n", "ID", "NAME", "TEMPLATE", "FREQUENCY", "WINDOW")
	fmt.Println("--------------------------------------------------------------------------------")
	for _, s := range schedules {
		window := ""
		if s.StartDate != "" || s.EndDate != "" {
			window = strings.TrimSpace(s.StartDate + " .. " + s.EndDate)
		}
		fmt.Printf("%-12s %-24s %-12s %-12s %s\n", s.ID, s.Name, s.TemplateID, s.Frequency, window)
	}
	return nil
}

func runScheduleCreate(cmd *cobra.Command, args []string) error {
	err := schedule.Validate(schedule.Request{
		Name:       scheduleName,
		TemplateID: scheduleTemplate,
		Frequency:  scheduleFrequency,
		StartDate:  scheduleStart,
		EndDate:    scheduleEnd,
	})
	if err != nil {
		return err
	}

	created, err := client.CreateSchedule(context.Background(), backend.ScheduleRequest{
		Name:       scheduleName,
		TemplateID: scheduleTemplate,
		Frequency:  scheduleFrequency,
		StartDate:  scheduleStart,
		EndDate:    scheduleEnd,
		Docx:       scheduleDocx,
		Xlsx:       scheduleXlsx,
	})
	if err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}

	fmt.Printf("Created schedule %s (%s)\n", created.Name, created.ID)
	return nil
}

func runScheduleDelete(cmd *cobra.Command, args []string) error {
	if err := client.DeleteSchedule(context.Background(), args[0]); err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	fmt.Printf("Deleted schedule %s\n", args[0])
	return nil
}

func runSchedulePreview(cmd *cobra.Command, args []string) error {
	times, err := schedule.NextRuns(args[0], time.Now(), 5)
	if err != nil {
		return err
	}

	fmt.Printf("Next %s runs:\n", args[0])
	for _, t := range times {
		fmt.Printf("  %s\n", t.Format("Mon 2006-01-02 15:04"))
	}
	return nil
}
