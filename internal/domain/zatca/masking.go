package zatca

import (
	"encoding/json"
	"strings"
)

// Keys whose values are irreversibly truncated before audit persistence.
// Matching is case-insensitive substring, applied recursively through nested
// objects and arrays.
var sensitiveKeywords = []string{
	"tax_number", "vat", "secret", "password", "token", "private_key",
	"certificate", "api_key", "csid",
}

// MaskValue truncates a sensitive value keeping at most its 4 trailing
// characters, e.g. "310122393500003" -> "***********0003".
func MaskValue(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, kw := range sensitiveKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// MaskPayload walks a decoded JSON structure and masks every value whose key
// matches a sensitive keyword. The input is not modified.
func MaskPayload(payload any) any {
	switch v := payload.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, value := range v {
			if s, ok := value.(string); ok && isSensitiveKey(key) {
				out[key] = MaskValue(s)
				continue
			}
			out[key] = MaskPayload(value)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, value := range v {
			out[i] = MaskPayload(value)
		}
		return out
	default:
		return payload
	}
}

// MaskJSON masks a raw JSON document. Non-JSON input is returned with every
// known sensitive substring removed rather than stored verbatim.
func MaskJSON(raw []byte) string {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "<unparseable payload masked>"
	}
	masked, err := json.Marshal(MaskPayload(decoded))
	if err != nil {
		return "<unparseable payload masked>"
	}
	return string(masked)
}
