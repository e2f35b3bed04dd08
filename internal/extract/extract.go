// Package extract recovers structured key/value payloads from language
// model output. Model responses frequently wrap the payload in markdown
// fences or conversational filler; the extractor locates the payload,
// repairs common JSON defects, and exposes the fields with defaults.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ErrNoPayload is returned by Set when no structured payload can be
// located anywhere in the text.
var ErrNoPayload = errors.New("extract: no structured payload found")

var (
	fencedPattern   = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	embeddedPattern = regexp.MustCompile(`(?s)\{.*\}`)
)

// Record holds the most recently parsed payload. Set replaces the active
// payload; Get and GetMany never fail and fall back to caller defaults.
type Record struct {
	data map[string]any
}

// Set parses text into the active payload. Candidates are tried in
// order: a fenced code block, the first brace-delimited substring, then
// the whole text.
func (r *Record) Set(text string) error {
	text = strings.TrimSpace(text)

	if match := fencedPattern.FindStringSubmatch(text); match != nil {
		if data, err := decode(match[1]); err == nil {
			r.data = data
			return nil
		}
	}
	if match := embeddedPattern.FindString(text); match != "" {
		if data, err := decode(match); err == nil {
			r.data = data
			return nil
		}
	}
	data, err := decode(text)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoPayload, err)
	}
	r.data = data
	return nil
}

// Get returns the value for key, or fallback when the key is absent.
func (r *Record) Get(key string, fallback any) any {
	if r.data == nil {
		return fallback
	}
	value, ok := r.data[key]
	if !ok {
		return fallback
	}
	return value
}

// GetMany returns one value per key, in key order, falling back to the
// matching entry in defaults for absent keys.
func (r *Record) GetMany(keys []string, defaults map[string]any) []any {
	values := make([]any, 0, len(keys))
	for _, key := range keys {
		values = append(values, r.Get(key, defaults[key]))
	}
	return values
}

// GetString is Get narrowed to string-valued fields; non-string values
// fall back as well.
func (r *Record) GetString(key, fallback string) string {
	value, ok := r.Get(key, fallback).(string)
	if !ok {
		return fallback
	}
	return value
}

// GetStrings returns a string slice field, tolerating the JSON decoder's
// []any representation. Missing or malformed values yield the fallback.
func (r *Record) GetStrings(key string, fallback []string) []string {
	raw := r.Get(key, nil)
	if raw == nil {
		return fallback
	}
	items, ok := raw.([]any)
	if !ok {
		return fallback
	}
	values := make([]string, 0, len(items))
	for _, item := range items {
		text, ok := item.(string)
		if !ok {
			return fallback
		}
		values = append(values, text)
	}
	return values
}

// Truthy reports whether a field holds a value the model intends as
// "set": 1, "1" or true. Models are inconsistent about numeric flags.
func Truthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return strings.TrimSpace(v) == "1"
	case float64:
		return v != 0
	case int:
		return v != 0
	default:
		return false
	}
}

func decode(candidate string) (map[string]any, error) {
	repaired, err := jsonrepair.JSONRepair(candidate)
	if err != nil {
		repaired = candidate
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(repaired), &data); err != nil {
		return nil, err
	}
	return data, nil
}
