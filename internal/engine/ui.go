package engine

import (
	"fmt"
	"io"
	"os"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

// UI is where the engine talks to the operator: progress lines, plan
// listings and the interactive confirmations. Confirm is swappable so
// non-interactive callers and tests can answer prompts programmatically.
type UI struct {
	Out     io.Writer
	NoColor bool

	// Confirm asks a yes/no question and reports the answer. Nil falls back
	// to reading stdin.
	Confirm func(prompt string) bool
}

func (u *UI) out() io.Writer {
	if u.Out == nil {
		return os.Stdout
	}
	return u.Out
}

func (u *UI) Printf(format string, args ...any) {
	fmt.Fprintf(u.out(), format, args...)
}

// Colorf prints like Printf with the whole message wrapped in one ANSI
// color, honoring NoColor.
func (u *UI) Colorf(color, format string, args ...any) {
	if u.NoColor {
		fmt.Fprintf(u.out(), format, args...)
		return
	}
	fmt.Fprintf(u.out(), color+format+colorReset, args...)
}

func (u *UI) confirm(prompt string) bool {
	if u.Confirm != nil {
		return u.Confirm(prompt)
	}
	fmt.Fprintf(u.out(), "%s (y/n): ", prompt)
	var response string
	fmt.Scanln(&response)
	return response == "y" || response == "yes"
}
