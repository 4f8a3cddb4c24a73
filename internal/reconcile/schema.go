package reconcile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ValidateProperties checks props against a JSON schema document. Every
// violation is reported in a single malformed error.
func ValidateProperties(schema string, props Properties) error {
	if strings.TrimSpace(schema) == "" {
		return nil
	}
	if props == nil {
		props = Properties{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewGoLoader(map[string]any(props)),
	)
	if err != nil {
		return E(KindInternal, "validate properties", fmt.Errorf("schema: %w", err))
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return Malformed("validate properties", errors.New(strings.Join(msgs, "; ")))
}
