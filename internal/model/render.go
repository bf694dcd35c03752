package model

import (
	"fmt"
	"strings"
	"text/template"
)

// Renderer produces file content from the resolved import map. Implementations
// must be deterministic: equal imports yield equal content, otherwise change
// detection misfires.
type Renderer interface {
	Render(imports map[string]string) (string, error)
}

type staticRenderer string

func (r staticRenderer) Render(map[string]string) (string, error) {
	return string(r), nil
}

// Static returns a Renderer that ignores imports and always produces content.
func Static(content string) Renderer {
	return staticRenderer(content)
}

type templateRenderer struct {
	tpl *template.Template
}

func (r *templateRenderer) Render(imports map[string]string) (string, error) {
	var buf strings.Builder
	if err := r.tpl.Execute(&buf, imports); err != nil {
		return "", fmt.Errorf("rendering %s: %w", r.tpl.Name(), err)
	}
	return buf.String(), nil
}

// Template returns a Renderer that executes a text/template against the
// import map. References to imports that were never declared fail the render.
func Template(name, text string) (Renderer, error) {
	tpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parsing template %s: %w", name, err)
	}
	return &templateRenderer{tpl: tpl}, nil
}

// Dedent strips the longest common leading whitespace from every non-blank
// line, then trims leading whitespace from the result. It lets multiline
// script literals sit indented in source without the indentation leaking
// into the generated files.
func Dedent(s string) string {
	lines := strings.Split(s, "\n")

	margin := ""
	first := true
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if first {
			margin = indent
			first = false
			continue
		}
		for !strings.HasPrefix(indent, margin) {
			margin = margin[:len(margin)-1]
		}
	}

	if margin != "" {
		for i, line := range lines {
			if strings.TrimSpace(line) == "" {
				continue
			}
			lines[i] = strings.TrimPrefix(line, margin)
		}
	}

	return strings.TrimLeft(strings.Join(lines, "\n"), " \t\n")
}
