package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "engram",
	Short: "Capture content, discuss it, and file it into a personal knowledge vault",
	Long: `engram is a local daemon for deliberate knowledge capture.

Capture a URL, PDF, or raw text; engram extracts and summarizes it and
opens a conversation. When you save, the note is routed into a project,
a knowledge area with an output commitment, or provisionally into the
inbox, where it expires if you never categorize it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       version,
}

func main() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable color output")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)

	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(sessionCmd)

	rootCmd.AddCommand(inboxCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(areaCmd)
	rootCmd.AddCommand(fulfillCmd)

	rootCmd.AddCommand(configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
