package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const agentSchemaFile = "agent.v1.json"

// Validator checks registration payloads against the agent record JSON
// schema before they are decoded.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles agent.v1.json from schemaDir (e.g. "schemas").
func NewValidator(schemaDir string) (*Validator, error) {
	path := filepath.Join(schemaDir, agentSchemaFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	schema, err := jsonschema.CompileString("https://agentgrid.dev/schemas/agent.v1", string(data))
	if err != nil {
		return nil, fmt.Errorf("compile agent schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// ValidateAgent performs a hard reject: the error wraps ErrValidation when
// the payload does not match the schema.
func (v *Validator) ValidateAgent(payload []byte) error {
	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}
