package ai

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// CheckTemplate reports whether tpl parses as a prompt template.
func CheckTemplate(tpl string) error {
	_, err := template.New("prompt").Parse(tpl)
	return err
}

// Render executes a prompt template against data. Missing map keys are errors.
func Render(tpl string, data any) (string, error) {
	t, err := template.New("prompt").Option("missingkey=error").Parse(tpl)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}

// extractJSON returns the substring between the first open and the last
// close delimiter. Model output often wraps JSON in prose or markdown fences.
func extractJSON(s string, open, close byte) string {
	first := strings.IndexByte(s, open)
	last := strings.LastIndexByte(s, close)
	if first == -1 || last == -1 || last < first {
		return ""
	}
	return s[first : last+1]
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
