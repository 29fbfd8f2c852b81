package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled people",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	e, err := openEngine(ctx, config.Load())
	if err != nil {
		return err
	}
	defer e.Close()

	names, err := e.lifecycle.List(ctx)
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}
	if len(names) == 0 {
		fmt.Println("No one is enrolled yet.")
		return nil
	}

	fmt.Printf("Enrolled people (%s):\n", e.describe())
	for i, name := range names {
		fmt.Printf("  %3d. %s\n", i+1, name)
	}
	return nil
}
