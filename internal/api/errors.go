package api

import (
	"bytes"
	"encoding/json"
	"strings"
)

// backendMessage extracts a human message from a REST error body. A "detail"
// string wins; otherwise the first field error in document order is returned as
// "field: message". Unparseable bodies yield "".
func backendMessage(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}

	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return ""
		}
		return strings.TrimSpace(text)
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil || len(items) == 0 {
			return ""
		}
		return firstText(items[0])
	case '{':
	default:
		return ""
	}

	fields, err := orderedFields(trimmed)
	if err != nil {
		return ""
	}
	for _, field := range fields {
		if field.name == "detail" {
			if text := firstText(field.value); text != "" {
				return text
			}
		}
	}
	for _, field := range fields {
		text := firstText(field.value)
		if text == "" {
			continue
		}
		if field.name == "non_field_errors" || field.name == "detail" {
			return text
		}
		return field.name + ": " + text
	}
	return ""
}

type rawField struct {
	name  string
	value json.RawMessage
}

// orderedFields decodes a JSON object while preserving key order.
func orderedFields(data []byte) ([]rawField, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	if _, err := decoder.Token(); err != nil {
		return nil, err
	}

	fields := []rawField{}
	for decoder.More() {
		token, err := decoder.Token()
		if err != nil {
			return nil, err
		}
		name, _ := token.(string)
		var value json.RawMessage
		if err := decoder.Decode(&value); err != nil {
			return nil, err
		}
		fields = append(fields, rawField{name: name, value: value})
	}
	return fields, nil
}

// firstText returns a string value, or the first string of a list value.
func firstText(value json.RawMessage) string {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 {
		return ""
	}
	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return ""
		}
		return strings.TrimSpace(text)
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return ""
		}
		for _, item := range items {
			if text := firstText(item); text != "" {
				return text
			}
		}
	}
	return ""
}
