package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/solatis/caseflow/internal/types"
)

// readSchema loads a schema file, JSON or YAML by extension.
func readSchema(path string) (*types.ConfigurationSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	schema, err := types.DecodeSchema(data, types.FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return schema, nil
}

// readForm loads a form data file. An empty path is an empty form.
func readForm(path string) (types.FormData, error) {
	if path == "" {
		return types.FormData{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	form, err := types.DecodeFormData(data, types.FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return form, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
