package generative

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Sternrassler/plantcare/pkg/care"
	"github.com/Sternrassler/plantcare/pkg/client"
)

var (
	leadingFence  = regexp.MustCompile("(?i)^```(?:json)?\\s*")
	trailingFence = regexp.MustCompile("\\s*```$")
)

// stripFences removes a surrounding markdown code fence from model output.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	text = leadingFence.ReplaceAllString(text, "")
	text = trailingFence.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// parseCareText decodes the model output into a raw key/value object.
func parseCareText(text string) (map[string]any, error) {
	cleaned := stripFences(text)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty response text", client.ErrNoData)
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("%w: %w: %v", client.ErrNoData, client.ErrMalformedResponse, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: %w: response is not an object", client.ErrNoData, client.ErrMalformedResponse)
	}
	return raw, nil
}

// Sanitize copies the known fields of raw over an empty template. Unknown
// keys are dropped, strings are trimmed, empty values become nil and
// non-string scalars are rendered as text.
func Sanitize(raw map[string]any) care.Details {
	var d care.Details
	for _, key := range care.GenerativeFields {
		v, ok := raw[key]
		if !ok {
			continue
		}
		d.SetText(key, care.StringPtr(renderText(v)))
	}
	return d
}

// renderText turns a decoded JSON value into trimmed text. Lists of scalars
// are joined one item per line; objects are dropped.
func renderText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		lines := make([]string, 0, len(t))
		for _, item := range t {
			if _, nested := item.([]any); nested {
				continue
			}
			if s := renderText(item); s != "" {
				lines = append(lines, s)
			}
		}
		return strings.Join(lines, "\n")
	default:
		return ""
	}
}
