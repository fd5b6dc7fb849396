package llm

import (
	"regexp"
	"strings"
)

var fencedBlockRe = regexp.MustCompile("(?s)```[a-zA-Z0-9_-]*\\s*\\n(.*?)\\n?```")

// StripFences removes a surrounding markdown code fence from a model
// response, including an optional language tag after the opening fence.
// Responses without fences are returned trimmed and otherwise untouched.
func StripFences(response string) string {
	s := strings.TrimSpace(response)
	if !strings.Contains(s, "```") {
		return s
	}

	// Whole response wrapped in a single fence pair.
	if strings.HasPrefix(s, "```") && strings.HasSuffix(s, "```") {
		body := s
		if idx := strings.Index(body, "\n"); idx >= 0 {
			body = body[idx+1:]
		} else {
			body = strings.TrimPrefix(body, "```")
		}
		body = strings.TrimSuffix(strings.TrimRight(body, " \t\n"), "```")
		return strings.TrimSpace(body)
	}

	// Fence embedded in surrounding prose: keep the first block's content.
	if matches := fencedBlockRe.FindStringSubmatch(s); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	return s
}
