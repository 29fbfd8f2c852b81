package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/session"
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize FRAME... | DIR",
	Short: "Recognize people in captured frames and record attendance",
	Long: `Process frames as one recognition session. Every face in every frame is
matched against the registry; recognized people are recorded in the
attendance log at most once per day.

Examples:
  # Process a directory of captured frames
  face-attendance recognize captures/

  # Stricter matching and show the closest identities for every face
  face-attendance recognize --threshold 0.5 --nearest 3 frame1.jpg frame2.jpg`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRecognize,
}

func init() {
	rootCmd.AddCommand(recognizeCmd)

	recognizeCmd.Flags().Float64("threshold", 0, "Maximum accepted distance (default from MATCH_THRESHOLD)")
	recognizeCmd.Flags().Int("nearest", 0, "Show the N closest identities per face")
	recognizeCmd.Flags().Bool("quiet", false, "Only print the summary")
}

// imageExts are the frame formats recognize picks up from a directory.
var imageExts = []string{".jpg", ".jpeg", ".png", ".bmp", ".webp"}

// collectFrames expands directories into their image files, sorted by name.
func collectFrames(args []string) ([]string, error) {
	var frames []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", arg, err)
		}
		if !info.IsDir() {
			frames = append(frames, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", arg, err)
		}
		for _, entry := range entries {
			ext := strings.ToLower(filepath.Ext(entry.Name()))
			if !entry.IsDir() && slices.Contains(imageExts, ext) {
				frames = append(frames, filepath.Join(arg, entry.Name()))
			}
		}
	}
	return frames, nil
}

type frameResult struct {
	path      string
	sightings []session.Sighting
	err       error
}

func runRecognize(cmd *cobra.Command, args []string) error {
	threshold := mustGetFloat64(cmd, "threshold")
	nearest := mustGetInt(cmd, "nearest")
	quiet := mustGetBool(cmd, "quiet")

	ctx := context.Background()
	cfg := config.Load()
	if threshold <= 0 {
		threshold = cfg.Matching.Threshold
	}

	frames, err := collectFrames(args)
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		fmt.Println("No frames to process.")
		return nil
	}

	e, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	if _, err := rebuildWithBar(ctx, e.registry); err != nil {
		return err
	}
	fmt.Printf("\nRegistry has %d identities, threshold %.2f\n", e.registry.Size(), threshold)

	s := session.New(e.registry, e.provider, e.ledger, session.Options{
		Threshold: threshold,
		NearestK:  nearest,
	})

	bar := progressbar.NewOptions(len(frames),
		progressbar.OptionSetDescription("Recognizing"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("frames"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	results := make([]frameResult, 0, len(frames))
	for _, path := range frames {
		res := frameResult{path: path}
		frame, err := os.ReadFile(path)
		if err != nil {
			res.err = err
		} else {
			res.sightings, res.err = s.ProcessFrame(ctx, frame)
		}
		results = append(results, res)
		bar.Add(1)
	}
	bar.Finish()
	fmt.Println()

	failures := 0
	for _, res := range results {
		if res.err != nil {
			failures++
		}
		if !quiet {
			printFrameResult(res)
		}
	}

	sum := s.Summary()
	fmt.Printf("\nSession %s\n", sum.ID)
	fmt.Printf("  Frames:     %d (%d failed)\n", len(frames), failures)
	fmt.Printf("  Faces:      %d\n", sum.Faces)
	fmt.Printf("  Recognized: %d\n", sum.Recognized)
	fmt.Printf("  Recorded:   %d\n", sum.Recorded)
	if len(sum.Marked) > 0 {
		fmt.Printf("  Present:    %s\n", strings.Join(sum.Marked, ", "))
	}
	return nil
}

func printFrameResult(res frameResult) {
	fmt.Printf("%s\n", res.path)
	for _, sg := range res.sightings {
		if sg.Match.HasDistance {
			fmt.Printf("  face %d: %-20s %-16s distance %.3f\n", sg.FaceIndex, sg.Match.Name, sg.Status, sg.Match.Distance)
		} else {
			fmt.Printf("  face %d: %-20s %s\n", sg.FaceIndex, sg.Match.Name, sg.Status)
		}
		for _, c := range sg.Candidates {
			fmt.Printf("          ~ %-18s %.3f\n", c.Name, c.Distance)
		}
	}
	if len(res.sightings) == 0 && res.err == nil {
		fmt.Println("  no faces")
	}
	if res.err != nil {
		fmt.Printf("  error: %v\n", res.err)
	}
}
