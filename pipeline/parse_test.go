package pipeline

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/BaSui01/demoforge/llm"
	"github.com/BaSui01/demoforge/testutil/fixtures"
)

func TestParseAnalysisResponseStructured(t *testing.T) {
	result := ParseAnalysisResponse(fixtures.StructuredAnalysisJSON())

	require.True(t, result.Structured)
	assert.Equal(t, "Attention Is All You Need", result.Title)
	assert.Contains(t, result.Content, "Attention mechanisms")
	assert.Equal(t, []string{"Ashish Vaswani", "Noam Shazeer"}, result.Metadata.Authors)
	assert.Equal(t, []string{"attention", "transformer", "sequence modeling"}, result.Metadata.Keywords)
	assert.Contains(t, result.Metadata.Abstract, "Transformer")
}

func TestParseAnalysisResponseCommaSeparatedLists(t *testing.T) {
	result := ParseAnalysisResponse(fixtures.StructuredAnalysisCommaLists())

	require.True(t, result.Structured)
	assert.Equal(t, []string{"Ashish Vaswani", "Noam Shazeer"}, result.Metadata.Authors)
	assert.Equal(t, []string{"attention", "transformer", "sequence modeling"}, result.Metadata.Keywords)
}

func TestParseAnalysisResponseFenced(t *testing.T) {
	result := ParseAnalysisResponse(fixtures.FencedAnalysisJSON())

	require.True(t, result.Structured)
	assert.Equal(t, "Attention Is All You Need", result.Title)
	assert.Len(t, result.Metadata.Authors, 2)
}

func TestParseAnalysisResponseFallback(t *testing.T) {
	raw := fixtures.PlainTextAnalysis()
	result := ParseAnalysisResponse(raw)

	require.False(t, result.Structured)
	// The fallback keeps the raw response untouched, including whitespace.
	assert.Equal(t, raw, result.Content)
	assert.Empty(t, result.Title)
	assert.Empty(t, result.Metadata.Authors)
	assert.Empty(t, result.Metadata.Keywords)
	assert.Empty(t, result.Metadata.Abstract)
}

func TestParseAnalysisResponseMalformedJSON(t *testing.T) {
	raw := `{"content": "truncated`
	result := ParseAnalysisResponse(raw)

	require.False(t, result.Structured)
	assert.Equal(t, raw, result.Content)
}

func TestParseAnalysisResponseJSONScalarNotStructured(t *testing.T) {
	// "null" and bare scalars unmarshal without error but are not the
	// structured shape; they must take the fallback path.
	for _, raw := range []string{"null", `"just a string"`, "42", "[1,2,3]"} {
		result := ParseAnalysisResponse(raw)
		assert.False(t, result.Structured, "input %q", raw)
		assert.Equal(t, raw, result.Content, "input %q", raw)
	}
}

func TestParseAnalysisResponsePartialFields(t *testing.T) {
	result := ParseAnalysisResponse(`{"content": "body text only"}`)

	require.True(t, result.Structured)
	assert.Equal(t, "body text only", result.Content)
	assert.Empty(t, result.Title)
	assert.Nil(t, result.Metadata.Authors)
	assert.Nil(t, result.Metadata.Keywords)
}

func TestParseStringListVariants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "json list", raw: `["a", "b"]`, want: []string{"a", "b"}},
		{name: "comma string", raw: `"a, b"`, want: []string{"a", "b"}},
		{name: "semicolon string", raw: `"a; b"`, want: []string{"a", "b"}},
		{name: "mixed separators", raw: `"a, b; c"`, want: []string{"a", "b", "c"}},
		{name: "list with blanks dropped", raw: `["a", "  ", ""]`, want: []string{"a"}},
		{name: "empty string", raw: `""`, want: nil},
		{name: "empty list", raw: `[]`, want: nil},
		{name: "unusable shape", raw: `{"x":1}`, want: nil},
		{name: "absent", raw: ``, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseStringList([]byte(tt.raw)))
		})
	}
}

// TestProperty_ParseAnalysisResponse_TotalAndLossless 随机喂入结构化与任意
// 文本响应，验证解析是全函数：结构化路径只接受 JSON 对象，回退路径一字
// 不差地保留原始文本且元数据为空。
func TestProperty_ParseAnalysisResponse_TotalAndLossless(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		var raw string
		if rapid.Bool().Draw(rt, "structured") {
			payload := map[string]string{
				"content": rapid.StringMatching(`[a-zA-Z0-9 .,]{0,64}`).Draw(rt, "content"),
				"title":   rapid.StringMatching(`[a-zA-Z0-9 ]{0,24}`).Draw(rt, "title"),
			}
			encoded, err := json.Marshal(payload)
			require.NoError(rt, err)
			raw = string(encoded)
			if rapid.Bool().Draw(rt, "fenced") {
				raw = "```json\n" + raw + "\n```"
			}
		} else {
			raw = rapid.String().Draw(rt, "junk")
		}

		result := ParseAnalysisResponse(raw)

		if result.Structured {
			assert.True(rt, strings.HasPrefix(llm.StripFences(raw), "{"), "input %q", raw)
			return
		}
		assert.Equal(rt, raw, result.Content, "input %q", raw)
		assert.Empty(rt, result.Title)
		assert.Empty(rt, result.Metadata.Authors)
		assert.Empty(rt, result.Metadata.Keywords)
		assert.Empty(rt, result.Metadata.Abstract)
	})
}
