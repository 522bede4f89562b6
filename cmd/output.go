package main

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

var outputFormat string

// writeOutput renders v as indented JSON or as YAML.
func writeOutput(w io.Writer, format string, v any) error {
	switch format {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(v), "encode json")
	case "yaml":
		// Round-trip through JSON so field names follow the json tags.
		data, err := json.Marshal(v)
		if err != nil {
			return eris.Wrap(err, "encode json")
		}
		var generic any
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return eris.Wrap(err, "decode json as yaml")
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close() //nolint:errcheck
		return eris.Wrap(enc.Encode(generic), "encode yaml")
	default:
		return eris.Errorf("unsupported output format %q (want json or yaml)", format)
	}
}
