package generation

import (
	"fmt"
	"strings"

	"github.com/poiesic/veritas/core"
)

const draftPromptTemplate = `You are a research analyst answering questions about a private document collection.

Rules:
- Use ONLY information from the sources below. Do not use outside knowledge.
- Cite every claim with the matching [Source N] marker.
- Start directly with the answer. No preamble or meta-commentary.
- If the sources are insufficient, say: "The sources do not contain enough information to answer this question."

SOURCES:
%s

QUESTION: %s

ANSWER:`

const verifyResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "refined_answer": {
      "type": "string"
    },
    "confidence": {
      "type": "number",
      "minimum": 0,
      "maximum": 1
    },
    "reasoning": {
      "type": "string"
    }
  },
  "required": ["refined_answer", "confidence"],
  "additionalProperties": false
}`

const verifyPromptTemplate = `Check the draft answer against the sources and return a corrected version.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

%s

Rules:
- Remove every statement the sources do not support.
- Keep the [Source N] citations that remain valid.
- Do not add information that is not in the sources.
- confidence is your estimate, between 0 and 1, that the refined answer is fully supported.

QUESTION: %s

DRAFT ANSWER:
%s

SOURCES:
%s`

const secondaryPromptTemplate = `Answer this question clearly and accurately: %s

Based on these documents:
%s

Cite the documents you use as [Source N]. If they do not contain the answer, say so.

Answer:`

const expansionPromptTemplate = `Generate 2 alternative phrasings of this query (one per line, no numbering):
%s

Alternatives:`

// verification is the verifier's JSON reply.
type verification struct {
	RefinedAnswer string  `json:"refined_answer"`
	Confidence    float64 `json:"confidence"`
	Reasoning     string  `json:"reasoning"`
}

// sourceBlock numbers chunks as [Source N] using their position in the
// full best-chunk list so citations stay stable across draft subsets.
func sourceBlock(chunks []*core.Chunk, numbers []int) string {
	var sb strings.Builder
	for i, chunk := range chunks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[Source %d]\n%s", numbers[i], chunk.Content)
	}
	return sb.String()
}

func sequence(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func draftPrompt(query string, chunks []*core.Chunk, numbers []int) string {
	return fmt.Sprintf(draftPromptTemplate, sourceBlock(chunks, numbers), query)
}

func verifyPrompt(query, draft string, chunks []*core.Chunk) string {
	return fmt.Sprintf(verifyPromptTemplate, verifyResponseSchema, query, draft, sourceBlock(chunks, sequence(len(chunks))))
}

func secondaryPrompt(query string, chunks []*core.Chunk) string {
	return fmt.Sprintf(secondaryPromptTemplate, query, sourceBlock(chunks, sequence(len(chunks))))
}

func expansionPrompt(query string) string {
	return fmt.Sprintf(expansionPromptTemplate, query)
}
