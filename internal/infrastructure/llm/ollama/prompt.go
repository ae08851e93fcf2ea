package ollama

import (
	"fmt"
	"strings"

	"github.com/kirillkom/submission-vault/internal/core/domain"
)

const maxSnippet = 6000

func buildAnalysisPrompt(sub *domain.Submission, docType *domain.DocumentType, text string) string {
	snippet := text
	if len(snippet) > maxSnippet {
		snippet = snippet[:maxSnippet]
	}

	typeName := sub.Identity.DocumentTypeID
	if docType != nil && strings.TrimSpace(docType.Name) != "" {
		typeName = docType.Name
	}

	return fmt.Sprintf(`You review academic course documents before they are archived.
Document type: %s
Course: %s
File: %s

Check that the document matches its type, is complete, and contains no placeholder or unrelated content.
Return strict JSON object with keys:
status ("clean" or "flagged"), issues (array of short strings, empty when clean).
No markdown, no extra keys.

Document:
%s`, typeName, sub.Identity.CourseID, sub.Filename, snippet)
}
