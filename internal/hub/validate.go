package hub

import (
	"bytes"
	"encoding/json"
)

// ValidateJSON reports whether payload is a JSON object or array. A rejected
// payload logs exactly one warning.
func (h *Hub) ValidateJSON(payload []byte) bool {
	reason := jsonShapeError(payload)
	if reason == "" {
		return true
	}
	h.logger.Warn().Str("reason", reason).Int("size", len(payload)).Msg("rejected malformed payload")
	return false
}

func jsonShapeError(payload []byte) string {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) < 2 {
		return "too short"
	}

	first, last := trimmed[0], trimmed[len(trimmed)-1]
	switch {
	case first == '{' && last == '}':
	case first == '[' && last == ']':
	default:
		return "not an object or array"
	}

	if !json.Valid(trimmed) {
		return "invalid json"
	}
	return ""
}
