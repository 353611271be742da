package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jmespath/go-jmespath"
	"gopkg.in/yaml.v3"
)

// render writes v as JSON or YAML. A JMESPath query, when given, selects the
// part of the document that is written; keys keep their JSON names.
func render(w io.Writer, v any, format, query string) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}

	if query = strings.TrimSpace(query); query != "" {
		compiled, err := jmespath.Compile(query)
		if err != nil {
			return fmt.Errorf("invalid query %q: %w", query, err)
		}
		if doc, err = compiled.Search(doc); err != nil {
			return fmt.Errorf("query %q failed: %w", query, err)
		}
	}

	switch strings.ToLower(format) {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (use json or yaml)", format)
	}
}
