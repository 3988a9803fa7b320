package export

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// YAML renders the transcript as a YAML document. The value round-trips
// through JSON first so the YAML keys match the JSON export.
type YAML struct{}

func (YAML) Extension() string { return "yaml" }

func (YAML) Export(w io.Writer, t *Transcript) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("export yaml: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("export yaml: %w", err)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		enc.Close()
		return fmt.Errorf("export yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("export yaml: %w", err)
	}
	return nil
}
