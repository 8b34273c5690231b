package export

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// MarkdownExporter renders a readable transcript
type MarkdownExporter struct{}

func (e *MarkdownExporter) Export(t *Transcript, w io.Writer) error {
	_, _ = fmt.Fprintf(w, "# %s\n\n", t.Title)
	if t.Agent != nil {
		_, _ = fmt.Fprintf(w, "**Agent:** %d (%s/%s)  \n", int(t.Agent.ID), t.Agent.Provider, t.Agent.Model)
	}
	_, _ = fmt.Fprintf(w, "**Messages:** %d\n\n", len(t.Records))
	_, _ = fmt.Fprintf(w, "---\n\n")

	for i, r := range t.Records {
		heading := r.Name
		if heading == "" {
			heading = fmt.Sprintf("Speaker %d", r.Speaker)
		}
		if t.Agent != nil {
			heading += " _(" + r.Role + ")_"
		}
		stamp := ""
		if !r.Timestamp.IsZero() {
			stamp = " (" + r.Timestamp.Format(time.RFC3339) + ")"
		}
		_, _ = fmt.Fprintf(w, "**%s:**%s\n\n%s\n\n", heading, stamp, escapeMarkdown(r.Content))
		if r.Image != "" {
			_, _ = fmt.Fprintf(w, "![image](%s)\n\n", r.Image)
		}
		if i < len(t.Records)-1 {
			_, _ = fmt.Fprintf(w, "---\n\n")
		}
	}
	return nil
}

// escapeMarkdown escapes emphasis markers outside code fences
func escapeMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	inCode := false
	for i, line := range lines {
		if strings.HasPrefix(line, "```") {
			inCode = !inCode
			continue
		}
		if inCode {
			continue
		}
		line = strings.ReplaceAll(line, "**", "\\*\\*")
		lines[i] = strings.ReplaceAll(line, "__", "\\_\\_")
	}
	return strings.Join(lines, "\n")
}

func (e *MarkdownExporter) Extension() string {
	return "md"
}

func (e *MarkdownExporter) ContentType() string {
	return "text/markdown; charset=utf-8"
}
