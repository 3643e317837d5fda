package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kozaktomas/attendance-kiosk/internal/templates"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var hydrateCmd = &cobra.Command{
	Use:   "hydrate",
	Short: "Download enrollment photos into the local template cache",
	Long: `Materialize the enrollment photo of every identity in the ledger into
TEMPLATE_DIR, downloading missing files from the blob store, and train the
matcher once to report how many face samples were found.

Identities that fail to download are reported and skipped.

Examples:
  attendance-kiosk hydrate
  attendance-kiosk hydrate --json`,
	RunE: runHydrate,
}

func init() {
	rootCmd.AddCommand(hydrateCmd)
	hydrateCmd.Flags().Bool("json", false, "Output as JSON")
}

// hydrateResult is the JSON output of the hydrate command.
type hydrateResult struct {
	Success bool `json:"success"`
	templates.HydrateReport
	Error string `json:"error,omitempty"`
}

func newHydrateBar() func(done, total int) {
	var bar *progressbar.ProgressBar
	return func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("Hydrating templates"),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
				progressbar.OptionSetItsString("identities"),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionSetPredictTime(true),
				progressbar.OptionFullWidth(),
			)
		}
		bar.Set(done)
		if done == total {
			bar.Finish()
			fmt.Println()
		}
	}
}

func runHydrate(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := openEnrollment(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer e.Close()

	var progress func(done, total int)
	if !jsonOutput {
		progress = newHydrateBar()
	}

	report, err := e.cache.HydrateAll(ctx, progress)
	if jsonOutput {
		out := hydrateResult{Success: err == nil, HydrateReport: report}
		if err != nil {
			out.Error = err.Error()
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(out); encErr != nil {
			return encErr
		}
		return err
	}
	if err != nil {
		return fmt.Errorf("hydration failed: %w", err)
	}

	fmt.Printf("Identities:  %d\n", report.Identities)
	fmt.Printf("Cached:      %d\n", report.Cached)
	fmt.Printf("Downloaded:  %d\n", report.Downloaded)
	fmt.Printf("Failed:      %d\n", report.Failed)
	fmt.Printf("No face:     %d\n", report.NoFace)
	fmt.Printf("Samples:     %d\n", report.Samples)
	return nil
}
