package main

import (
	"fmt"
	"os"
)

// ANSI styling for CLI feedback. All feedback goes to stderr so stdout
// stays clean for the actual content (summaries, answers, listings).
const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiBold   = "\033[1m"
)

func colorize(code, text string) string {
	if noColor {
		return text
	}
	return code + text + ansiReset
}

func printMark(code, mark, format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(code, mark+" "+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { printMark(ansiGreen, "✓", format, args...) }

func printError(format string, args ...any) { printMark(ansiRed, "✗", format, args...) }

func printWarning(format string, args ...any) { printMark(ansiYellow, "!", format, args...) }

func printStep(format string, args ...any) { printMark(ansiCyan, "·", format, args...) }

// printStatus renders one "Label: value" line of a status report.
func printStatus(label, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s %s\n", colorize(ansiBold, label+":"), fmt.Sprintf(format, args...))
}
