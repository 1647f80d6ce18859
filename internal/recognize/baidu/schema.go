package baidu

import (
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"idmerge/internal/recognize"
)

// Provider payloads are validated before any field is trusted; a payload
// that does not match its schema is a permanently-invalid input, not a
// retryable one.

const idcardSchema = `{
	"type": "object",
	"properties": {
		"words_result": {
			"type": "object",
			"additionalProperties": {
				"type": "object",
				"properties": { "words": { "type": "string" } },
				"required": ["words"]
			}
		},
		"words_result_num": { "type": "integer" },
		"image_status": { "type": "string" }
	},
	"required": ["words_result"]
}`

const generalSchema = `{
	"type": "object",
	"properties": {
		"words_result": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": { "words": { "type": "string" } },
				"required": ["words"]
			}
		},
		"words_result_num": { "type": "integer" }
	},
	"required": ["words_result"]
}`

var (
	idcardCompiled  = jsonschema.MustCompileString("idcard.json", idcardSchema)
	generalCompiled = jsonschema.MustCompileString("general.json", generalSchema)
)

func validateIDCard(raw []byte) error {
	return validatePayload(idcardCompiled, raw, "idcard payload")
}

func validateGeneral(raw []byte) error {
	return validatePayload(generalCompiled, raw, "general payload")
}

func validatePayload(schema *jsonschema.Schema, raw []byte, what string) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return recognize.NewError(recognize.KindInvalid, "decode "+what, err)
	}
	if err := schema.Validate(v); err != nil {
		return recognize.NewError(recognize.KindInvalid, what+" does not match schema", err)
	}
	return nil
}
