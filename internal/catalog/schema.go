package catalog

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// worldSchema is the JSON Schema every world catalog file must satisfy
// before typed decoding. It pins the coarse shape (ids, node types,
// numeric ranges) and leaves semantic checks to validate().
const worldSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["id"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "name": {"type": "string"},
    "meta": {"type": "object"},
    "feature_flags": {"type": "object", "additionalProperties": {"type": "boolean"}},
    "scoring": {
      "type": "object",
      "properties": {
        "weights": {"type": "object", "additionalProperties": {"type": "number"}}
      }
    },
    "activities": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "properties": {
          "id": {"type": "string"},
          "category": {"type": "string"},
          "location_type": {"type": "string"},
          "tags": {"type": "array", "items": {"type": "string"}},
          "min_duration_seconds": {"type": "number", "minimum": 0},
          "effects": {"type": "array", "items": {"$ref": "#/$defs/effect"}}
        }
      }
    },
    "routines": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "properties": {
          "id": {"type": "string"},
          "default_preferences": {"type": "object"},
          "edges": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["from", "to"],
              "properties": {"from": {"type": "string"}, "to": {"type": "string"}}
            }
          },
          "nodes": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["node_type"],
              "properties": {
                "id": {"type": "string"},
                "node_type": {"enum": ["time_slot", "decision", "activity"]},
                "time_range_seconds": {
                  "type": "object",
                  "required": ["start", "end"],
                  "properties": {
                    "start": {"type": "number", "minimum": 0, "maximum": 86400},
                    "end": {"type": "number", "minimum": 0, "maximum": 86400}
                  }
                },
                "decision_conditions": {"type": "array", "items": {"$ref": "#/$defs/condition"}},
                "preferred_activities": {
                  "type": "array",
                  "items": {
                    "type": "object",
                    "required": ["activity_id"],
                    "properties": {
                      "activity_id": {"type": "string", "minLength": 1},
                      "weight": {"type": "number"},
                      "conditions": {"type": "array", "items": {"$ref": "#/$defs/condition"}}
                    }
                  }
                }
              }
            }
          }
        }
      }
    }
  },
  "$defs": {
    "condition": {
      "type": "object",
      "required": ["kind"],
      "properties": {
        "kind": {"type": "string", "minLength": 1},
        "params": {"type": "object"}
      }
    },
    "effect": {
      "type": "object",
      "required": ["kind"],
      "properties": {
        "kind": {"type": "string", "minLength": 1},
        "params": {"type": "object"}
      }
    }
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("world.schema.json", strings.NewReader(worldSchema)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile("world.schema.json")
	})
	return schema, schemaErr
}

// validateTree checks a decoded YAML tree against the world schema. The
// tree is round-tripped through encoding/json first because the validator
// expects JSON-decoded values (float64 numbers, string keys).
func validateTree(tree any) error {
	s, err := compiledSchema()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(tree)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return s.Validate(v)
}
