package export

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONLExporter writes one record per line
type JSONLExporter struct{}

func (e *JSONLExporter) Export(t *Transcript, w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, r := range t.Records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to encode record %d: %w", r.Seq, err)
		}
	}
	return nil
}

func (e *JSONLExporter) Extension() string {
	return "jsonl"
}

func (e *JSONLExporter) ContentType() string {
	return "application/x-ndjson"
}
