package prompt

import (
	"strings"

	"pdfchat/internal/domain"
)

// NotAvailable is the phrase the model is told to use when the context does
// not contain the answer.
const NotAvailable = "answer is not available in the context"

const instruction = "Answer the question as detailed as possible from the provided context.\n" +
	"If the answer is not in the provided context just say, \"" + NotAvailable + "\". Don't provide wrong answers."

// Assemble builds the grounding prompt. Chunks appear in the order given,
// separated by blank lines.
func Assemble(chunks []domain.ScoredChunk, question string) string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = strings.TrimSpace(c.Text)
	}

	var sb strings.Builder
	sb.WriteString(instruction)
	sb.WriteString("\n\nContext:\n")
	sb.WriteString(strings.Join(texts, "\n\n"))
	sb.WriteString("\n\nQuestion:\n")
	sb.WriteString(strings.TrimSpace(question))
	sb.WriteString("\n\nAnswer:\n")
	return sb.String()
}
