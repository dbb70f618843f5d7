package tools

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidateAgainstSchema compiles schema and checks args against it. Tools
// call this from their Validate method rather than hand-rolling field
// presence checks, so the schema advertised to the LLM is the same schema
// enforced on its output.
func ValidateAgainstSchema(schema, args json.RawMessage) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(schema)); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	var value any
	if err := json.Unmarshal(args, &value); err != nil {
		return fmt.Errorf("parse arguments: %w", err)
	}
	if err := compiled.ValidateInterface(value); err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	return nil
}
