// CUE schema validation code
package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"
)

//go:embed profile.cue
var profileSchema []byte

// ValidateWithCue validates YAML profile bytes against a CUE schema that
// declares a #Profile definition. A nil schema selects the embedded one.
func ValidateWithCue(name string, data, schema []byte) error {
	if len(schema) == 0 {
		schema = profileSchema
	}
	ctx := cuecontext.New()

	schemaVal := ctx.CompileBytes(schema)
	if schemaVal.Err() != nil {
		return fmt.Errorf("cannot compile CUE schema: %w", schemaVal.Err())
	}
	def := schemaVal.LookupPath(cue.ParsePath("#Profile"))
	if !def.Exists() {
		return fmt.Errorf("CUE schema has no #Profile definition")
	}

	file, err := yaml.Extract(name, data)
	if err != nil {
		return fmt.Errorf("cannot parse YAML profile: %w", err)
	}
	configVal := ctx.BuildFile(file)
	if configVal.Err() != nil {
		return fmt.Errorf("cannot build YAML profile: %w", configVal.Err())
	}

	final := def.Unify(configVal)
	if err := final.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

// ValidateFileWithCue validates a YAML profile file. An empty cueFile selects
// the embedded schema.
func ValidateFileWithCue(configFile, cueFile string) error {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("cannot read YAML profile: %w", err)
	}
	var schema []byte
	if cueFile != "" {
		schema, err = os.ReadFile(cueFile)
		if err != nil {
			return fmt.Errorf("cannot read CUE schema: %w", err)
		}
	}
	return ValidateWithCue(configFile, data, schema)
}
