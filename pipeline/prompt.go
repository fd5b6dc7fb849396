package pipeline

import (
	"fmt"
	"strings"

	"github.com/BaSui01/demoforge/llm"
	"github.com/BaSui01/demoforge/llm/tokenizer"
	"github.com/BaSui01/demoforge/types"
)

// GenerationSentinel is the fixed marker every generated artifact must begin
// with. The generation prompt pins the model to it and the executor deploys
// whatever follows it verbatim.
const GenerationSentinel = "<!DOCTYPE html>"

const analysisInstructions = `You are a document analysis service. Read the document at the address given by the user and respond with exactly one JSON object, no surrounding prose and no markdown fence, with these fields:

{
  "content":  "the complete extracted text of the document",
  "title":    "the document title",
  "authors":  ["author names"],
  "abstract": "the abstract or a short summary",
  "keywords": ["key terms"]
}

Missing information may be left as empty strings or empty lists. Do not invent metadata that is not in the document.`

const generationSystemPrompt = `You are an expert front-end engineer who builds small interactive demos that make technical concepts tangible.

Produce exactly one complete HTML document and nothing else. Hard requirements:
- The output must begin with ` + GenerationSentinel + ` and be syntactically complete, renderable markup.
- Fully self-contained: inline all CSS and JavaScript in the document itself.
- No network access of any kind: no CDN scripts, no external fonts or images, no fetch/XMLHttpRequest/WebSocket.
- Interactive: controls (sliders, buttons, inputs) or an animated canvas that let the reader explore the concept.
- Keep the whole document under 64 KB.
- Do not wrap the output in a markdown fence and do not add commentary before or after the markup.`

// AnalysisInstructions returns the instruction block handed to the analysis
// collaborator together with the file address.
func AnalysisInstructions() string {
	return analysisInstructions
}

// PromptBuilder assembles generation prompts and keeps the embedded document
// text inside the model's context window.
type PromptBuilder struct {
	tok    tokenizer.Tokenizer
	budget int
}

// NewPromptBuilder creates a builder for the given generation model.
// budgetRatio is the share of the model's context window the embedded
// document text may occupy.
func NewPromptBuilder(model string, budgetRatio float64) *PromptBuilder {
	tok := tokenizer.GetTokenizerOrEstimator(model)
	if budgetRatio <= 0 || budgetRatio > 1 {
		budgetRatio = 0.6
	}
	return &PromptBuilder{
		tok:    tok,
		budget: int(float64(tok.MaxTokens()) * budgetRatio),
	}
}

// DocumentBudget returns the token budget for embedded document text.
func (b *PromptBuilder) DocumentBudget() int {
	return b.budget
}

// BuildGenerationMessages builds the prompt for one artifact: the structural
// constraints as the system message, the budget-truncated document text plus
// the requested concept as the user message.
func (b *PromptBuilder) BuildGenerationMessages(doc *types.Document, concept string) []types.Message {
	var text string
	if doc.ExtractedContent != nil {
		text = tokenizer.TruncateToBudget(b.tok, *doc.ExtractedContent, b.budget)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Document title: %s\n\n", doc.Title)
	if text != "" {
		sb.WriteString("Document text:\n\"\"\"\n")
		sb.WriteString(text)
		sb.WriteString("\n\"\"\"\n\n")
	}
	fmt.Fprintf(&sb, "Build an interactive demo of this concept from the document: %s", concept)

	return []types.Message{
		types.NewSystemMessage(generationSystemPrompt),
		types.NewUserMessage(sb.String()),
	}
}

// toLLMMessages converts domain messages to the wire-level message type.
func toLLMMessages(messages []types.Message) []llm.Message {
	out := make([]llm.Message, len(messages))
	for i, m := range messages {
		out[i] = llm.Message{
			Role:    llm.Role(m.Role),
			Content: m.Content,
		}
	}
	return out
}
