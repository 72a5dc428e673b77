// Config validation (ambient, supplemented): a compiled JSON Schema
// checks the normalized FullConfig/IncrementalConfig shape. The full
// and incremental runners call it at the start of every tick, before
// the tick's state machine runs.
// Grounded on jorgemgr94-go-learning/cmd/basics/schemavalidator.go's
// jsonschema.Compiler/AddResource/Compile/Validate sequence, adapted
// from that example's file-backed schema to an in-memory resource
// since these schemas are fixed, not user-supplied.
package store

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const fullConfigSchemaJSON = `{
	"type": "object",
	"properties": {
		"inline_set": {"type": "string"},
		"start_gid": {"type": ["integer", "null"], "minimum": 0}
	},
	"required": ["inline_set"]
}`

const incrementalConfigSchemaJSON = `{
	"type": "object",
	"properties": {
		"inline_set": {"type": "string"},
		"categories": {
			"type": "array",
			"minItems": 1,
			"items": {"type": "string"}
		},
		"scan_window": {"type": "integer", "minimum": 1},
		"rating_diff_threshold": {"type": "number", "minimum": 0}
	},
	"required": ["inline_set", "categories"]
}`

var fullConfigSchema, incrementalConfigSchema *jsonschema.Schema

func init() {
	fullConfigSchema = mustCompile("mem://full-config.json", fullConfigSchemaJSON)
	incrementalConfigSchema = mustCompile("mem://incremental-config.json", incrementalConfigSchemaJSON)
}

func mustCompile(url, schemaJSON string) *jsonschema.Schema {
	var doc any
	if err := json.Unmarshal([]byte(schemaJSON), &doc); err != nil {
		panic(fmt.Sprintf("store: invalid embedded schema %s: %v", url, err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, doc); err != nil {
		panic(fmt.Sprintf("store: invalid embedded schema %s: %v", url, err))
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		panic(fmt.Sprintf("store: schema compile failed %s: %v", url, err))
	}
	return schema
}

// ValidateFullConfig checks a normalized FullConfig against the
// embedded schema, surfacing a validation error before a task's state
// machine ever runs against it.
func ValidateFullConfig(cfg FullConfig) error {
	return validateAgainst(fullConfigSchema, cfg)
}

// ValidateIncrementalConfig checks a normalized IncrementalConfig
// against the embedded schema.
func ValidateIncrementalConfig(cfg IncrementalConfig) error {
	return validateAgainst(incrementalConfigSchema, cfg)
}

func validateAgainst(schema *jsonschema.Schema, cfg any) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("store: marshal config for validation: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("store: unmarshal config for validation: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("store: config schema validation: %w", err)
	}
	return nil
}
