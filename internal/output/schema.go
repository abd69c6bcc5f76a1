package output

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed collection.schema.json
var collectionSchema string

// ValidationError reports schema violations in a collection document.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("collection failed schema validation: %s", strings.Join(e.Problems, "; "))
}

// ValidateCollection checks the collection against the embedded JSON Schema
// before it is finalized, so downstream chunkers get a guaranteed shape.
func ValidateCollection(col *Collection) error {
	data, err := json.Marshal(col)
	if err != nil {
		return fmt.Errorf("failed to marshal collection for validation: %w", err)
	}

	schemaLoader := gojsonschema.NewStringLoader(collectionSchema)
	documentLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation failed to run: %w", err)
	}

	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
		}
		return &ValidationError{Problems: problems}
	}
	return nil
}
