package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

func main() {
	Execute()
}

func init() {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}
}

func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", color.RedString(msg), err)
	os.Exit(1)
}

func printJSON(v any) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fatal("Failed to encode output", err)
	}
}

// done reports a committed change.
func done(format string, args ...any) {
	fmt.Println(color.GreenString("✔"), fmt.Sprintf(format, args...))
}
