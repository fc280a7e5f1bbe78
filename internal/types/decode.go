package types

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format identifies the serialization of a schema or form data document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath infers the document format from a file extension.
// Anything other than .yaml/.yml is treated as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// DecodeSchema parses a configuration schema document.
// YAML documents are normalized to JSON first so both formats share one
// set of struct tags and the same value types reach the rule engine.
func DecodeSchema(data []byte, format Format) (*ConfigurationSchema, error) {
	if len(data) > MaxSchemaSize {
		return nil, ErrSchemaTooLarge
	}
	raw, err := toJSON(data, format)
	if err != nil {
		return nil, err
	}
	var schema ConfigurationSchema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	return &schema, nil
}

// DecodeFormData parses a form data document into field id -> value.
// An empty document yields an empty map.
func DecodeFormData(data []byte, format Format) (FormData, error) {
	if len(data) > MaxFormDataSize {
		return nil, ErrFormDataTooLarge
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return FormData{}, nil
	}
	raw, err := toJSON(data, format)
	if err != nil {
		return nil, err
	}
	form := FormData{}
	if err := json.Unmarshal(raw, &form); err != nil {
		return nil, fmt.Errorf("decode form data: %w", err)
	}
	return form, nil
}

// toJSON converts a document to JSON bytes.
func toJSON(data []byte, format Format) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		return data, nil
	case FormatYAML:
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
		normalized, err := normalizeYAML(doc)
		if err != nil {
			return nil, err
		}
		return json.Marshal(normalized)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// normalizeYAML rewrites yaml.v3 output into JSON-encodable values.
// Mappings with non-string keys are rejected since field ids are strings.
func normalizeYAML(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			n, err := normalizeYAML(val)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("decode yaml: non-string key %v", k)
			}
			n, err := normalizeYAML(val)
			if err != nil {
				return nil, err
			}
			out[key] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			n, err := normalizeYAML(val)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	default:
		return v, nil
	}
}
