package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/kozaktomas/attendance-kiosk/internal/attendance"
	"github.com/kozaktomas/attendance-kiosk/internal/database/postgres"
	"github.com/spf13/cobra"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Show the attendance report of a user",
	Long: `Print the days a user checked in and the presence percentage over the
configured period (PRESENCE_PERIOD_DAYS).

Examples:
  attendance-kiosk attendance --id 12
  attendance-kiosk attendance --id 12 --json`,
	RunE: runAttendance,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)

	attendanceCmd.Flags().Int64("id", 0, "Numeric user id")
	attendanceCmd.Flags().Bool("json", false, "Output as JSON")
	attendanceCmd.MarkFlagRequired("id")
}

func runAttendance(cmd *cobra.Command, args []string) error {
	uid := mustGetInt64(cmd, "id")
	if uid <= 0 {
		return errors.New("--id must be positive")
	}

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	ctx := context.Background()
	pool, err := postgres.Open(ctx, &cfg.Database, log.Named("postgres"))
	if err != nil {
		return err
	}
	defer pool.Close()

	dates, err := postgres.NewAttendanceRepository(pool).AttendanceDates(ctx, uid)
	if err != nil {
		return err
	}
	summary := attendance.Summarize(dates, cfg.Matcher.PresencePeriod)

	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	fmt.Printf("User %d: %d of %d days present (%.1f%%)\n",
		uid, summary.DaysPresent, cfg.Matcher.PresencePeriod, summary.Percentage)
	for _, d := range summary.Dates {
		fmt.Printf("  %s\n", d)
	}
	return nil
}
