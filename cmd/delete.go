package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/enrollment"
)

var deleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Remove an enrolled person",
	Long: `Remove every enrollment whose name matches NAME, ignoring case, and rebuild
the registry. Attendance already recorded for the person is kept.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	e, err := openEngine(ctx, config.Load())
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.lifecycle.Delete(ctx, args[0]); err != nil {
		if errors.Is(err, enrollment.ErrNotFound) {
			return fmt.Errorf("no enrolled person named %q", args[0])
		}
		return fmt.Errorf("delete failed: %w", err)
	}

	fmt.Printf("Deleted %s\n", args[0])
	return nil
}
