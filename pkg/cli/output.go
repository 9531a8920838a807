package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Output formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// printer renders command results in the selected format
type printer struct {
	format string
	out    io.Writer
}

func newPrinter(format string, out io.Writer) (*printer, error) {
	switch format {
	case FormatJSON, FormatYAML:
		return &printer{format: format, out: out}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q (want %s or %s)", format, FormatJSON, FormatYAML)
	}
}

func (p *printer) print(v interface{}) error {
	if p.format == FormatYAML {
		enc := yaml.NewEncoder(p.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	}

	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
