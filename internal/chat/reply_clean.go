package chat

import (
	"regexp"
	"strings"
)

var (
	fenceStart = regexp.MustCompile("(?s)^\\s*```[a-zA-Z]*\\s*")
	fenceEnd   = regexp.MustCompile("(?s)\\s*```\\s*$")
)

// cleanReply deja solo el texto de la respuesta del modelo: sin BOM, fences ni comillas envolventes.
func cleanReply(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "\uFEFF")
	s = fenceStart.ReplaceAllString(s, "")
	s = fenceEnd.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)

	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}
