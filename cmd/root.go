package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "face-attendance",
	Short: "Recognize enrolled people from camera frames and keep a daily attendance log",
	Long: `Face Attendance keeps a registry of enrolled people, matches faces found in
camera frames against it using an external embedding server, and records
each recognized person at most once per day in an attendance log.

Storage is configured through environment variables (or a .env file):
the default keeps enrollment images in a directory and attendance in a CSV
file; PostgreSQL and MySQL/MariaDB backends are available as well.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
