package validate

import (
	"bytes"
	"encoding/json"
	"fmt"

	schema_pkg "github.com/Fudheryk/monitoring-client/schema"

	"github.com/santhosh-tekuri/jsonschema/v5"
	sigsyaml "sigs.k8s.io/yaml"
)

// ValidateAgainstSchema compiles the given schema bytes and runs it against
// the JSON in data. The `name` is only used to identify the schema in errors.
func ValidateAgainstSchema(name string, schemaBytes, data []byte) error {
	comp := jsonschema.NewCompiler()
	if err := comp.AddResource(name, bytes.NewReader(schemaBytes)); err != nil {
		return fmt.Errorf("loading schema %q: %w", name, err)
	}
	sch, err := comp.Compile(name)
	if err != nil {
		return fmt.Errorf("compiling schema %q: %w", name, err)
	}

	// unmarshal into interface{} so the validator can walk it
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid JSON for %q: %w", name, err)
	}
	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("schema validation against %q failed: %w", name, err)
	}
	return nil
}

// ValidateConfigJSON runs the release pipeline config schema against data.
func ValidateConfigJSON(data []byte) error {
	return ValidateAgainstSchema(
		"release-config.schema.json",
		schema_pkg.ReleaseConfigSchema,
		data,
	)
}

// ValidateYAMLAgainstSchema converts YAML to JSON and validates it against
// the given schema bytes. Used for the shipped application config schema.
func ValidateYAMLAgainstSchema(name string, schemaBytes, yamlData []byte) error {
	jsonData, err := sigsyaml.YAMLToJSON(yamlData)
	if err != nil {
		return fmt.Errorf("converting YAML to JSON for %q: %w", name, err)
	}
	return ValidateAgainstSchema(name, schemaBytes, jsonData)
}
