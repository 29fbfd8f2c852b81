package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Show recorded attendance",
	Long: `Print the attendance log, optionally filtered by day and person.

Examples:
  face-attendance attendance --today
  face-attendance attendance --date 2024-03-14 --name alice`,
	Args: cobra.NoArgs,
	RunE: runAttendance,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)

	attendanceCmd.Flags().String("date", "", "Only show this day (YYYY-MM-DD)")
	attendanceCmd.Flags().String("name", "", "Only show this person (case-insensitive)")
	attendanceCmd.Flags().Bool("today", false, "Only show today")
}

func runAttendance(cmd *cobra.Command, args []string) error {
	filter := attendance.Filter{
		Date: mustGetString(cmd, "date"),
		Name: mustGetString(cmd, "name"),
	}
	if mustGetBool(cmd, "today") {
		filter.Date = time.Now().Format(database.DateLayout)
	}
	if filter.Date != "" {
		if _, err := time.Parse(database.DateLayout, filter.Date); err != nil {
			return fmt.Errorf("invalid --date %q, expected YYYY-MM-DD", filter.Date)
		}
	}

	ctx := context.Background()
	e, err := openEngine(ctx, config.Load())
	if err != nil {
		return err
	}
	defer e.Close()

	records, err := e.ledger.Records(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to read attendance: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("No attendance records.")
		return nil
	}

	fmt.Printf("%-30s %-10s %s\n", "Name", "Date", "Time")
	for _, rec := range records {
		fmt.Printf("%-30s %-10s %s\n", rec.Name, rec.Date, rec.Time)
	}
	fmt.Printf("\n%d records\n", len(records))
	return nil
}
