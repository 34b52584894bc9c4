package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/idilsaglam/todosync/internal/model"
)

// Rows coming back from a remote table carry whatever columns the table
// has; only the three we mirror are checked.
const rowsSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "name"],
    "properties": {
      "id": {"type": ["integer", "string"]},
      "name": {"type": "string"},
      "isCompleted": {"type": ["boolean", "null"]}
    }
  }
}`

var compiledRows = jsonschema.MustCompileString("rows.schema.json", rowsSchema)

// RowError describes the first schema violation found in a row set.
type RowError struct {
	Path    string
	Message string
}

func (e *RowError) Error() string {
	if e.Path == "" {
		return "invalid rows: " + e.Message
	}
	return fmt.Sprintf("invalid rows at %s: %s", e.Path, e.Message)
}

// DecodeRows validates a JSON array of table rows and decodes it.
func DecodeRows(data []byte) ([]model.Item, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}
	if err := compiledRows.Validate(raw); err != nil {
		return nil, schemaError(err)
	}
	items := []model.Item{}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}
	return items, nil
}

func schemaError(err error) error {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return &RowError{Message: err.Error()}
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return &RowError{
		Path:    strings.TrimPrefix(strings.TrimPrefix(ve.InstanceLocation, "#"), "/"),
		Message: ve.Message,
	}
}
