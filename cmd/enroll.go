package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/enrollment"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll NAME IMAGE",
	Short: "Enroll a person from a photo",
	Long: `Store IMAGE as the enrollment photo for NAME and rebuild the registry.
The photo must contain exactly one face. Enrolling an existing name replaces
its photo.

Examples:
  face-attendance enroll "Alice Novak" alice.jpg`,
	Args: cobra.ExactArgs(2),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)
}

func runEnroll(cmd *cobra.Command, args []string) error {
	name, path := args[0], args[1]
	ctx := context.Background()

	image, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	e, err := openEngine(ctx, config.Load())
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.lifecycle.Enroll(ctx, name, image); err != nil {
		switch {
		case errors.Is(err, enrollment.ErrNoFaceDetected):
			return fmt.Errorf("no face found in %s, try a clearer photo", path)
		case errors.Is(err, enrollment.ErrMultipleFaces):
			return fmt.Errorf("%s: %w; crop the photo to a single person", path, err)
		}
		return fmt.Errorf("enroll failed: %w", err)
	}

	fmt.Printf("Enrolled %s (registry now has %d identities)\n", name, e.registry.Size())
	return nil
}
