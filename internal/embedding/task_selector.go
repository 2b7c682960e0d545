package embedding

import (
	"strings"
)

// =============================================================================
// TASK TYPE SELECTION
// =============================================================================

// ContentType represents the type of content being embedded.
type ContentType string

const (
	ContentTypeCode          ContentType = "code"          // Python source
	ContentTypeDocumentation ContentType = "documentation" // Docstrings, markdown
	ContentTypeQuery         ContentType = "query"         // Search terms
	ContentTypeQuestion      ContentType = "question"      // Natural-language questions
	ContentTypeSummary       ContentType = "summary"       // Field and blessing summaries
)

// SelectTaskType maps a content type to a GenAI task type.
func SelectTaskType(contentType ContentType, isQuery bool) string {
	switch contentType {
	case ContentTypeCode:
		if isQuery {
			return "CODE_RETRIEVAL_QUERY"
		}
		return "RETRIEVAL_DOCUMENT"
	case ContentTypeQuery:
		return "RETRIEVAL_QUERY"
	case ContentTypeQuestion:
		return "QUESTION_ANSWERING"
	case ContentTypeDocumentation:
		if isQuery {
			return "RETRIEVAL_QUERY"
		}
		return "RETRIEVAL_DOCUMENT"
	default:
		return "SEMANTIC_SIMILARITY"
	}
}

var pythonIndicators = []string{
	"def ", "class ", "import ", "from ", "return ", "self.", "self,",
	"lambda ", "yield ", "async ", "await ", "elif ", "except ", "):", "@",
}

// DetectContentType guesses the content type of text. metadata["content_type"]
// wins when present.
func DetectContentType(text string, metadata map[string]string) ContentType {
	if meta, ok := metadata["content_type"]; ok && meta != "" {
		return ContentType(meta)
	}

	lower := strings.ToLower(strings.TrimSpace(text))

	codeScore := 0
	for _, indicator := range pythonIndicators {
		if strings.Contains(lower, indicator) {
			codeScore++
		}
	}
	if codeScore >= 2 {
		return ContentTypeCode
	}

	for _, prefix := range []string{"what ", "how ", "why ", "when ", "where ", "which ", "does ", "is "} {
		if strings.HasPrefix(lower, prefix) {
			return ContentTypeQuestion
		}
	}
	if strings.HasSuffix(lower, "?") {
		return ContentTypeQuestion
	}

	if strings.HasPrefix(lower, "semantic:") || strings.Contains(lower, "\nphase:") {
		return ContentTypeSummary
	}
	if strings.HasPrefix(lower, "#") || strings.Contains(lower, `"""`) {
		return ContentTypeDocumentation
	}
	if len(lower) < 120 && !strings.Contains(lower, "\n") {
		return ContentTypeQuery
	}
	return ContentTypeDocumentation
}

// GetOptimalTaskType combines detection and selection.
func GetOptimalTaskType(text string, metadata map[string]string, isQuery bool) string {
	return SelectTaskType(DetectContentType(text, metadata), isQuery)
}
