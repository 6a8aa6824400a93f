package inference

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Payload is a decoded model response. Every accessor validates the dynamic
// type of the field it reads; nothing leaves this type without a check.
type Payload map[string]interface{}

// ParsePayload cleans markdown fences out of raw model text and decodes it as
// a JSON object.
func ParsePayload(raw string) (Payload, error) {
	clean := CleanJSON(raw)

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return nil, fmt.Errorf("inference: unmarshal model output: %w", err)
	}
	return Payload(parsed), nil
}

// ParseArrayPayload decodes raw model text expected to be a JSON array of
// objects.
func ParseArrayPayload(raw string) ([]Payload, error) {
	clean := CleanJSON(raw)

	var parsed []interface{}
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return nil, fmt.Errorf("inference: unmarshal model output array: %w", err)
	}

	out := make([]Payload, 0, len(parsed))
	for i, item := range parsed {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("inference: array element %d is %T, want object", i, item)
		}
		out = append(out, Payload(obj))
	}
	return out, nil
}

// String returns a required string field.
func (p Payload) String(key string) (string, error) {
	v, ok := p[key]
	if !ok {
		return "", fmt.Errorf("missing required field %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q has type %T, want string", key, v)
	}
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("required field %q is empty", key)
	}
	return s, nil
}

// OptionalString returns a string field, or "" when the field is absent,
// null, or blank.
func (p Payload) OptionalString(key string) (string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q has type %T, want string or null", key, v)
	}
	return strings.TrimSpace(s), nil
}

// Number returns a required numeric field.
func (p Payload) Number(key string) (float64, error) {
	v, ok := p[key]
	if !ok {
		return 0, fmt.Errorf("missing required field %q", key)
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("field %q has type %T, want number", key, v)
	}
	return f, nil
}

// OptionalNumber returns a numeric field. ok is false when the field is
// absent or null.
func (p Payload) OptionalNumber(key string) (float64, bool, error) {
	v, present := p[key]
	if !present || v == nil {
		return 0, false, nil
	}
	f, isNum := v.(float64)
	if !isNum {
		return 0, false, fmt.Errorf("field %q has type %T, want number or null", key, v)
	}
	return f, true, nil
}

// Array returns a field expected to be an array of objects.
func (p Payload) Array(key string) ([]Payload, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return nil, nil
	}
	items, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("field %q has type %T, want array", key, v)
	}
	out := make([]Payload, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("field %q element %d is %T, want object", key, i, item)
		}
		out = append(out, Payload(obj))
	}
	return out, nil
}

// Confidence reads a model-reported confidence field clamped to [0,1].
// Missing or malformed confidence reads as 0, never as an error: the value is
// only gated and weighted downstream, not trusted.
func (p Payload) Confidence(key string) float64 {
	f, ok, err := p.OptionalNumber(key)
	if err != nil || !ok {
		return 0
	}
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// CleanJSON strips markdown fences and surrounding junk the model sometimes
// emits despite instructions, keeping the outermost JSON value.
func CleanJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// If there is still junk around the JSON value, keep only from the first
	// opening brace/bracket to its matching last close.
	objStart := strings.Index(s, "{")
	arrStart := strings.Index(s, "[")
	if arrStart != -1 && (objStart == -1 || arrStart < objStart) {
		if end := strings.LastIndex(s, "]"); end > arrStart {
			s = s[arrStart : end+1]
		}
	} else if objStart != -1 {
		if end := strings.LastIndex(s, "}"); end > objStart {
			s = s[objStart : end+1]
		}
	}

	return strings.TrimSpace(s)
}
