package minutes

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed response.schema.json
var responseSchemaJSON string

var (
	responseSchema     *gojsonschema.Schema
	responseSchemaErr  error
	responseSchemaOnce sync.Once
)

type responsePayload struct {
	Summary     string            `json:"summary"`
	Decisions   []decisionPayload `json:"decisions"`
	NextActions []actionPayload   `json:"nextActions"`
}

type decisionPayload struct {
	Description string `json:"description"`
	Timestamp   string `json:"timestamp"`
}

type actionPayload struct {
	Description string `json:"description"`
	Assignee    string `json:"assignee"`
	DueDate     string `json:"dueDate"`
	Timestamp   string `json:"timestamp"`
}

func loadResponseSchema() (*gojsonschema.Schema, error) {
	responseSchemaOnce.Do(func() {
		responseSchema, responseSchemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(responseSchemaJSON))
	})
	return responseSchema, responseSchemaErr
}

// parseResponse strips an optional code fence, validates the remaining text
// against the response schema and decodes it.
func parseResponse(raw string) (responsePayload, error) {
	text := StripCodeFence(raw)
	if !json.Valid([]byte(text)) {
		return responsePayload{}, &ResponseParseError{Message: "response is not valid JSON"}
	}

	schema, err := loadResponseSchema()
	if err != nil {
		return responsePayload{}, fmt.Errorf("load response schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewStringLoader(text))
	if err != nil {
		return responsePayload{}, &ResponseParseError{Message: "response could not be validated", Cause: err}
	}
	if !result.Valid() {
		parseErr := &ResponseParseError{
			Message: "response does not match the minutes schema",
			Fields:  make([]FieldError, 0, len(result.Errors())),
		}
		for _, desc := range result.Errors() {
			field := desc.Field()
			if field == "" {
				field = "(root)"
			}
			parseErr.Fields = append(parseErr.Fields, FieldError{Field: field, Message: desc.Description()})
		}
		return responsePayload{}, parseErr
	}

	var payload responsePayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return responsePayload{}, &ResponseParseError{Message: "failed to decode response", Cause: err}
	}
	return payload, nil
}

// StripCodeFence removes a leading ``` line (with or without a language tag)
// and a trailing ``` from model output. Unfenced text is returned trimmed.
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		if tag := strings.TrimSpace(text[:idx]); !strings.ContainsAny(tag, "{[") {
			text = text[idx+1:]
		}
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// normalizeTimestamp brackets an HH:MM:SS value. The schema has already
// rejected anything else that is non-empty.
func normalizeTimestamp(ts string) string {
	ts = strings.Trim(strings.TrimSpace(ts), "[]")
	if ts == "" {
		return ""
	}
	return "[" + ts + "]"
}
