package generation

import (
	"fmt"
	"strings"
)

const extractiveQuoteLen = 300

// extractiveAnswer is the terminal generation fallback. It parses the
// prompt's context segment back out structurally, splitting on the section
// markers BuildPrompt writes, and templates a sentence quoting the start of
// that context. Pure string work with no I/O: it cannot fail.
func extractiveAnswer(prompt string) string {
	context := contextSegment(prompt)
	if context == "" {
		return "I understand your question, but I'm currently unable to provide a detailed response due to service limitations."
	}

	if len(context) > extractiveQuoteLen {
		context = context[:extractiveQuoteLen] + "..."
	}
	return fmt.Sprintf("Based on the available information: %s However, the answer service is currently unavailable for detailed analysis.", context)
}

// contextSegment cuts the text between the "Context:" marker and whichever
// of the later section markers appears first.
func contextSegment(prompt string) string {
	_, after, found := strings.Cut(prompt, "Context:")
	if !found {
		return ""
	}
	for _, marker := range []string{"Chat History:", "Question:"} {
		if before, _, ok := strings.Cut(after, marker); ok {
			after = before
		}
	}
	return strings.TrimSpace(after)
}
