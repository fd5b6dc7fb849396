package pipeline

import (
	"encoding/json"
	"strings"

	"github.com/BaSui01/demoforge/llm"
	"github.com/BaSui01/demoforge/types"
)

// analysisPayload mirrors the structured JSON the analysis model is asked to
// return. Authors and Keywords stay raw because models return them either as
// JSON string lists or as comma-separated strings.
type analysisPayload struct {
	Content  string          `json:"content"`
	Title    string          `json:"title"`
	Authors  json.RawMessage `json:"authors"`
	Abstract string          `json:"abstract"`
	Keywords json.RawMessage `json:"keywords"`
}

// ExtractionResult is the typed outcome of parsing an analysis response.
// Structured reports which parse path produced it: true for a strict JSON
// parse, false for the raw-text fallback.
type ExtractionResult struct {
	Content    string
	Title      string
	Metadata   types.DocumentMetadata
	Structured bool
}

// ParseAnalysisResponse parses a document-analysis model response leniently.
//
// The strict path expects one JSON object carrying content, title, authors,
// abstract and keywords, optionally wrapped in a markdown fence. Anything
// that fails that parse falls back to treating the entire raw response as
// the extracted full text with empty metadata. Parsing never fails: a model
// that answers in loose prose still yields a usable result.
func ParseAnalysisResponse(raw string) ExtractionResult {
	cleaned := llm.StripFences(raw)

	// Only a JSON object counts as structured: "null" and bare scalars
	// unmarshal without error but carry nothing.
	var payload analysisPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err == nil && strings.HasPrefix(cleaned, "{") {
		return ExtractionResult{
			Content:    payload.Content,
			Title:      strings.TrimSpace(payload.Title),
			Structured: true,
			Metadata: types.DocumentMetadata{
				Authors:  parseStringList(payload.Authors),
				Abstract: strings.TrimSpace(payload.Abstract),
				Keywords: parseStringList(payload.Keywords),
			},
		}
	}

	return ExtractionResult{
		Content:    raw,
		Structured: false,
	}
}

// parseStringList accepts either a JSON list of strings or a single string
// with comma / semicolon separated entries.
func parseStringList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return normalizeList(list)
	}

	var joined string
	if err := json.Unmarshal(raw, &joined); err == nil {
		parts := strings.FieldsFunc(joined, func(r rune) bool {
			return r == ',' || r == ';'
		})
		return normalizeList(parts)
	}

	return nil
}

func normalizeList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
