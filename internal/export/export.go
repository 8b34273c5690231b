package export

import (
	"fmt"
	"io"
	"time"

	"github.com/unclewu3242592726/tritalk/pkg/model"
)

// Record is one exported conversation line.
type Record struct {
	Seq       int       `json:"seq" yaml:"seq"`
	Speaker   int       `json:"speaker" yaml:"speaker"`
	Name      string    `json:"name" yaml:"name"`
	Role      string    `json:"role" yaml:"role"`
	Content   string    `json:"content" yaml:"content"`
	Image     string    `json:"image,omitempty" yaml:"image,omitempty"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// Transcript is the unit every exporter writes.
type Transcript struct {
	Title    string       `json:"title" yaml:"title"`
	Agent    *model.Agent `json:"agent,omitempty" yaml:"agent,omitempty"`
	Records  []Record     `json:"records" yaml:"records"`
	Exported time.Time    `json:"exported" yaml:"exported"`
}

// Exporter writes a transcript in one format
type Exporter interface {
	Export(t *Transcript, w io.Writer) error
	Extension() string
	ContentType() string
}

// NewExporter creates a new exporter based on format
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "jsonl":
		return &JSONLExporter{}, nil
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	case "yaml", "yml":
		return &YAMLExporter{}, nil
	case "json":
		return &JSONExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: jsonl, md, yaml, json)", format)
	}
}

// FromMessages builds a transcript of the shared conversation.
func FromMessages(title string, msgs []*model.Message) *Transcript {
	t := &Transcript{Title: title, Exported: time.Now()}
	for i, m := range msgs {
		t.Records = append(t.Records, record(i+1, m.Role, m))
	}
	return t
}

// FromHistory builds a transcript of one agent's memory. Roles are the ones
// the agent sees; the persona entry is skipped.
func FromHistory(agent model.Agent, h model.ConversationHistory) *Transcript {
	t := &Transcript{Title: agent.Name, Agent: &agent, Exported: time.Now()}
	for _, e := range h.Turns() {
		t.Records = append(t.Records, record(len(t.Records)+1, e.Role, e.Message))
	}
	return t
}

func record(seq int, role string, m *model.Message) Record {
	r := Record{
		Seq:       seq,
		Speaker:   int(m.Speaker),
		Name:      m.SpeakerName,
		Role:      role,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}
	if m.Image != nil {
		r.Image = m.Image.URL
		if m.Image.IsDataURL() {
			r.Image = "[inline image]"
		}
	}
	return r
}
