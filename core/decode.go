package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeObject decodes body into a generic object. Non-object payloads
// yield an empty map and a malformed error so callers can fall back.
func DecodeObject(body []byte) (map[string]any, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return map[string]any{}, NewMalformedError("core: empty payload", nil)
	}
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return map[string]any{}, NewMalformedError("core: payload is not a json object", err)
	}
	if out == nil {
		return map[string]any{}, NewMalformedError("core: payload is null", nil)
	}
	return out, nil
}

// DecodePrincipal reads the principal from a login or profile payload. It
// looks under "principal", then "user", then the top-level object. Missing
// or wrongly typed fields become zero values.
func DecodePrincipal(payload map[string]any) Principal {
	source := payload
	for _, key := range []string{"principal", "user", "admin"} {
		if nested, ok := payload[key].(map[string]any); ok {
			source = nested
			break
		}
	}
	if len(source) == 0 {
		return Principal{}
	}
	return Principal{
		ID:    StringField(source, "id", "_id", "userId"),
		Name:  StringField(source, "name", "username", "fullName"),
		Email: StringField(source, "email"),
		Role:  StringField(source, "role"),
		Raw:   cloneFields(source),
	}
}

// StringField returns the first present key rendered as a string. Numeric
// ids are rendered without exponent.
func StringField(source map[string]any, keys ...string) string {
	for _, key := range keys {
		value, ok := source[key]
		if !ok || value == nil {
			continue
		}
		switch typed := value.(type) {
		case string:
			if trimmed := strings.TrimSpace(typed); trimmed != "" {
				return trimmed
			}
		case float64:
			if typed == float64(int64(typed)) {
				return fmt.Sprintf("%d", int64(typed))
			}
			return fmt.Sprintf("%g", typed)
		case bool:
			return fmt.Sprintf("%t", typed)
		case json.Number:
			return typed.String()
		}
	}
	return ""
}

func BoolField(source map[string]any, keys ...string) bool {
	for _, key := range keys {
		switch typed := source[key].(type) {
		case bool:
			return typed
		case string:
			return strings.EqualFold(strings.TrimSpace(typed), "true")
		case float64:
			return typed != 0
		}
	}
	return false
}

// NumberField returns the first numeric key and whether one was present.
func NumberField(source map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		switch typed := source[key].(type) {
		case float64:
			return typed, true
		case int:
			return float64(typed), true
		case int64:
			return float64(typed), true
		case json.Number:
			if value, err := typed.Float64(); err == nil {
				return value, true
			}
		}
	}
	return 0, false
}
