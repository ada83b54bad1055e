// Package output renders fleetctl results as tables, JSON, or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates a user-supplied format string.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatTable, FormatJSON, FormatYAML:
		return Format(s), nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unknown output format: %s", s)
	}
}

// WriteObject marshals obj in the machine-readable formats. Table rendering
// is per-command; asking for it here is a programming error.
func WriteObject(w io.Writer, format Format, obj any) error {
	var data []byte
	var err error
	switch format {
	case FormatJSON:
		data, err = json.MarshalIndent(obj, "", "  ")
	case FormatYAML:
		data, err = yaml.Marshal(obj)
	default:
		return fmt.Errorf("format %q has no generic renderer", format)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
