package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/registry"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the registry and report entries that cannot be loaded",
	Long: `Run face detection on every enrollment photo and report which entries load
and which are skipped (unreadable photo, no face, duplicate name). Useful to
check the enrollment store after copying photos into it by hand.`,
	Args: cobra.NoArgs,
	RunE: runRebuild,
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
}

func runRebuild(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	e, err := openEngine(ctx, config.Load())
	if err != nil {
		return err
	}
	defer e.Close()

	report, err := rebuildWithBar(ctx, e.registry)
	if err != nil {
		return err
	}

	fmt.Printf("\nRegistry version %d: %d loaded, %d skipped in %s\n",
		report.Version, len(report.Loaded), len(report.Skipped), report.Duration.Round(time.Millisecond))
	if report.DetectFailures > 0 {
		fmt.Printf("Face detection failed for %d entries; check the embedding server at %s\n", report.DetectFailures, e.cfg.Embedding.URL)
	}
	for _, s := range report.Skipped {
		fmt.Printf("  skipped %-24s %v\n", s.Key, s.Reason)
	}
	return nil
}

// rebuildWithBar rebuilds reg while drawing a progress bar.
func rebuildWithBar(ctx context.Context, reg *registry.Registry) (*registry.RebuildReport, error) {
	var bar *progressbar.ProgressBar
	report, err := reg.RebuildWithProgress(ctx, func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("Loading enrollments"),
				progressbar.OptionShowCount(),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionFullWidth(),
			)
		}
		bar.Set(done)
	})
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild registry: %w", err)
	}
	return report, nil
}
