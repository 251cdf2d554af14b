package services

import (
	"fmt"
	"strings"
)

// SystemPrompt instructs the LLM how to answer from retrieved context.
const SystemPrompt = `You are a helpful assistant that answers questions about engineering documentation.
Use the provided context to answer the question accurately and concisely.
If the context does not contain enough information to answer, say so plainly and do not invent details.
Cite the parts of the context your answer relies on.`

// ContextSeparator joins context chunks in the user prompt.
const ContextSeparator = "\n\n---\n\n"

// BuildUserPrompt renders the retrieved context and the question into the
// user turn of the LLM call.
func BuildUserPrompt(query string, contextChunks []string) string {
	return fmt.Sprintf("Context:\n%s\n\nQuestion: %s\n\nAnswer:", strings.Join(contextChunks, ContextSeparator), query)
}
