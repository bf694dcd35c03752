package engine

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// FormatDiff renders a line diff between two renderings of a file: deleted
// lines prefixed "-", inserted "+", one line of unchanged context around
// each change and "..." standing in for the rest. Returns "" when the
// contents are equal.
func FormatDiff(oldText, newText string, color bool) string {
	if oldText == newText {
		return ""
	}

	style := func(s, c string) string { return s }
	if color {
		style = func(s, c string) string { return c + s + colorReset }
	}

	dmp := diffmatchpatch.New()
	c1, c2, lineArray := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(c1, c2, false), lineArray)

	var sb strings.Builder
	dump := func(tag, c string, lines []string) {
		for _, line := range lines {
			noEOL := !strings.HasSuffix(line, "\n")
			sb.WriteString(style(tag+" "+strings.TrimSuffix(line, "\n"), c))
			sb.WriteString("\n")
			if noEOL {
				sb.WriteString("\\ No newline at end of file\n")
			}
		}
	}

	for i, d := range diffs {
		lines := splitLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			dump("-", colorRed, lines)
		case diffmatchpatch.DiffInsert:
			dump("+", colorCyan, lines)
		case diffmatchpatch.DiffEqual:
			// Unchanged runs shrink to one context line per side.
			switch {
			case i == 0:
				if len(lines) > 1 {
					sb.WriteString("...\n")
				}
				dump(" ", "", lines[len(lines)-1:])
			case i == len(diffs)-1:
				dump(" ", "", lines[:1])
				if len(lines) > 1 {
					sb.WriteString("...\n")
				}
			case len(lines) <= 2:
				dump(" ", "", lines)
			default:
				dump(" ", "", lines[:1])
				sb.WriteString("...\n")
				dump(" ", "", lines[len(lines)-1:])
			}
		}
	}
	return sb.String()
}

func splitLines(text string) []string {
	lines := strings.SplitAfter(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
