// Package webhookschema validates incoming provider webhook payloads
// against a JSON Schema before any field is trusted. A payload that
// passes the HMAC check can still be structurally wrong; this catches
// that before the reconciler runs.
package webhookschema

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const eventSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["id", "type", "data"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"type": {"type": "string", "minLength": 1},
		"created": {"type": "integer"},
		"livemode": {"type": "boolean"},
		"data": {
			"type": "object",
			"required": ["object"],
			"properties": {
				"object": {"type": "object"}
			}
		}
	}
}`

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(eventSchema))
		if err != nil {
			compileErr = fmt.Errorf("webhookschema: parse schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("stripe-event.json", doc); err != nil {
			compileErr = fmt.Errorf("webhookschema: add resource: %w", err)
			return
		}
		compiled, compileErr = compiler.Compile("stripe-event.json")
	})
	return compiled, compileErr
}

// ValidateEvent checks the raw webhook body against the event envelope
// schema.
func ValidateEvent(payload []byte) error {
	s, err := schema()
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("webhookschema: decode payload: %w", err)
	}
	if err := s.Validate(inst); err != nil {
		return fmt.Errorf("webhookschema: %w", err)
	}
	return nil
}
