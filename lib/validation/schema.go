package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// MediaItemSchema defines the JSON schema for media create payloads. The
// editing UI bounds seasons to [1,20]; the server enforces the same here.
var MediaItemSchema = `{
	"type": "object",
	"properties": {
		"title": {"type": "string", "minLength": 1},
		"type": {"type": "string", "enum": ["movie", "tv", "book"]},
		"imageUrl": {"type": "string"},
		"creator": {"type": "string"},
		"releaseYear": {"type": "integer", "minimum": 1800, "maximum": 2100},
		"review": {
			"type": "object",
			"properties": {
				"rating": {"type": "number", "minimum": 0, "maximum": 5, "multipleOf": 0.5},
				"text": {"type": "string"},
				"date": {"type": "string"}
			},
			"required": ["rating"],
			"additionalProperties": false
		},
		"seasons": {
			"type": "array",
			"minItems": 1,
			"maxItems": 20,
			"items": {
				"type": "object",
				"properties": {
					"number": {"type": "integer", "minimum": 1},
					"watched": {"type": "boolean"},
					"rating": {"type": "number", "minimum": 0, "maximum": 5, "multipleOf": 0.5},
					"episodesWatched": {"type": "integer", "minimum": 0},
					"totalEpisodes": {"type": "integer", "minimum": 0}
				},
				"required": ["number", "watched"],
				"additionalProperties": false
			}
		},
		"originalCreatorId": {"type": "string"}
	},
	"required": ["title", "type"],
	"additionalProperties": false
}`

// MediaItemUpdateSchema is the create schema without required fields;
// updates are partial merges.
var MediaItemUpdateSchema = strings.Replace(MediaItemSchema,
	`"required": ["title", "type"],
	"additionalProperties": false
}`,
	`"additionalProperties": false
}`, 1)

// ValidateMediaItem validates a media create payload against the schema.
func ValidateMediaItem(jsonData []byte) error {
	return validateAgainst(MediaItemSchema, jsonData)
}

// ValidateMediaItemUpdate validates a partial media update payload.
func ValidateMediaItemUpdate(jsonData []byte) error {
	return validateAgainst(MediaItemUpdateSchema, jsonData)
}

func validateAgainst(schema string, jsonData []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(schema)
	documentLoader := gojsonschema.NewBytesLoader(jsonData)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("failed to validate JSON schema: %w", err)
	}

	if !result.Valid() {
		var errorMessages []string
		for _, desc := range result.Errors() {
			errorMessages = append(errorMessages, desc.String())
		}
		return fmt.Errorf("validation failed: %s", strings.Join(errorMessages, "; "))
	}

	return nil
}
