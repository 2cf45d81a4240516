package nlp

// schema.go holds the JSON Schemas that every structured LLM response must
// satisfy before it is trusted. Validation happens on the decoded JSON value,
// so a reply that parses but carries the wrong shape (missing action, unknown
// execution method, scripts as a string) is rejected uniformly as
// ErrMalformedOutput instead of surfacing later as a half-filled proposal.

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	schemaIntent   = "intent"
	schemaCalendar = "calendar"
	schemaScripts  = "scripts"
	schemaCommand  = "command"
	schemaSummary  = "summary"
)

// schemaSources maps schema names to their JSON Schema documents. The
// documents deliberately allow additional properties: models decorate
// replies with extra fields and rejecting those would make validation
// needlessly brittle.
var schemaSources = map[string]string{
	schemaIntent: `{
		"type": "object",
		"required": ["intent"],
		"properties": {
			"intent": {"type": "string", "enum": ["calendar", "script", "server_command", "general_chat"]},
			"notes":  {"type": "string"}
		}
	}`,
	schemaCalendar: `{
		"type": "object",
		"required": ["action"],
		"properties": {
			"action":           {"type": "string", "enum": ["create_event", "delete_event", "list_events"]},
			"title":            {"type": "string"},
			"date":             {"type": "string", "pattern": "^([0-9]{4}-[0-9]{2}-[0-9]{2})?$"},
			"time":             {"type": "string", "pattern": "^([0-9]{1,2}:[0-9]{2})?$"},
			"duration_minutes": {"type": ["integer", "string"]},
			"event_id":         {"type": "string"},
			"notes":            {"type": "string"}
		}
	}`,
	schemaScripts: `{
		"type": "object",
		"required": ["scripts"],
		"properties": {
			"scripts": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["script_name", "execution_method"],
					"properties": {
						"script_name":      {"type": "string"},
						"execution_method": {"type": "string", "enum": ["python", "bash"]},
						"arguments":        {"type": "array", "items": {"type": "string"}},
						"notes":            {"type": "string"}
					}
				}
			},
			"notes": {"type": "string"}
		}
	}`,
	schemaCommand: `{
		"type": "object",
		"required": ["command"],
		"properties": {
			"command": {"type": "string"},
			"notes":   {"type": "string"}
		}
	}`,
	schemaSummary: `{
		"type": "object",
		"required": ["description"],
		"properties": {
			"description":        {"type": "string"},
			"requires_arguments": {"type": "boolean"},
			"example_usage":      {"type": "string"}
		}
	}`,
}

// compiledSchemas is populated once at package init; MustCompileString
// panics on an invalid document, which is the right failure mode for a
// programmer error in an embedded schema.
var compiledSchemas = func() map[string]*jsonschema.Schema {
	out := make(map[string]*jsonschema.Schema, len(schemaSources))
	for name, src := range schemaSources {
		out[name] = jsonschema.MustCompileString(name+".schema.json", src)
	}
	return out
}()

// ValidateSchema checks raw JSON against the named embedded schema.
func ValidateSchema(name string, raw []byte) error {
	sch, ok := compiledSchemas[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := sch.Validate(v); err != nil {
		return fmt.Errorf("schema %s: %w", name, err)
	}
	return nil
}
