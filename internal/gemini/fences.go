package gemini

import "strings"

// StripFences removes a surrounding ```json ... ``` (or bare ```) wrapper
// from model output. Unfenced text is returned trimmed.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// Drop the info string ("json", "JSON", ...) on the opening line.
		if !strings.ContainsAny(strings.TrimSpace(s[:nl]), "{[") {
			s = s[nl+1:]
		}
	} else {
		s = strings.TrimPrefix(strings.TrimPrefix(s, "json"), "JSON")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
