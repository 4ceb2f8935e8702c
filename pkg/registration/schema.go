package registration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/getmockd/glrunner/pkg/document"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// optionsSchema describes the registration-only options accepted by the API.
const optionsSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "description":     {"type": "string"},
    "info":            {"type": "object"},
    "active":          {"type": "boolean"},
    "locked":          {"type": "boolean"},
    "run_untagged":    {"type": "boolean"},
    "tag_list":        {"type": "array", "items": {"type": "string"}},
    "access_level":    {"enum": ["not_protected", "ref_protected"]},
    "maximum_timeout": {"type": "integer", "minimum": 1}
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource("registration-options.json", strings.NewReader(optionsSchema)); err != nil {
			schemaErr = fmt.Errorf("failed to add schema resource: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile("registration-options.json")
	})
	return schema, schemaErr
}

// ValidateOptions checks canonical registration options (see
// RegistrationOptions) against the API's accepted types. Each violation is
// returned as a *ConfigurationError.
func ValidateOptions(opts *document.Map) []error {
	s, err := compiledSchema()
	if err != nil {
		return []error{err}
	}

	// Round-trip through JSON so numbers arrive as json.Number.
	data, err := json.Marshal(opts.Plain())
	if err != nil {
		return []error{fmt.Errorf("failed to marshal registration options: %w", err)}
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var instance any
	if err := dec.Decode(&instance); err != nil {
		return []error{fmt.Errorf("failed to decode registration options: %w", err)}
	}

	verr := s.Validate(instance)
	if verr == nil {
		return nil
	}
	validationErr, ok := verr.(*jsonschema.ValidationError)
	if !ok {
		return []error{verr}
	}
	var errs []error
	collectSchemaErrors(validationErr, &errs)
	return errs
}

func collectSchemaErrors(err *jsonschema.ValidationError, out *[]error) {
	if len(err.Causes) == 0 {
		field := fieldFromPointer(err.InstanceLocation)
		msg := fmt.Sprintf("invalid registration option: %s", err.Message)
		var keys []string
		if field != "" {
			keys = []string{field}
			msg = fmt.Sprintf("invalid registration option %s: %s", field, err.Message)
		}
		*out = append(*out, &ConfigurationError{Keys: keys, Message: msg})
		return
	}
	for _, cause := range err.Causes {
		collectSchemaErrors(cause, out)
	}
}

// fieldFromPointer converts a JSON pointer to dot notation.
func fieldFromPointer(path string) string {
	if path == "" || path == "/" {
		return ""
	}
	path = strings.TrimPrefix(path, "/")
	return strings.ReplaceAll(path, "/", ".")
}
