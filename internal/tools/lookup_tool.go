// In file: internal/tools/lookup_tool.go
package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// maxLookupChars caps the text handed back to the model so a long article
// cannot crowd the rest of the reasoning context out of the prompt.
const maxLookupChars = 4000

// errNoResult is wrapped into an ExternalServiceError when the encyclopedia
// answers but has nothing for the query.
var errNoResult = errors.New("no good search result was found")

// Encyclopedia is the lookup collaborator: a short query in, articles out.
type Encyclopedia interface {
	Search(ctx context.Context, query string) ([]Article, error)
}

// LookupTool forwards its input to an encyclopedia and returns the summaries
// of the best matching pages.
type LookupTool struct {
	source Encyclopedia
}

var _ ToolExecutor = (*LookupTool)(nil)

// NewLookupTool creates a lookup tool backed by the given encyclopedia.
func NewLookupTool(source Encyclopedia) *LookupTool {
	return &LookupTool{source: source}
}

// Definition implements ToolExecutor.
func (lt *LookupTool) Definition() Definition {
	return Definition{
		Name:        LookupToolName,
		Description: "Search Wikipedia for information.",
	}
}

// Execute searches the encyclopedia and formats the hits as
// "Page: <title>\nSummary: <text>" blocks.
func (lt *LookupTool) Execute(ctx context.Context, input string) (string, error) {
	query := strings.TrimSpace(input)
	if query == "" {
		return "", &ExternalServiceError{Service: "wikipedia", Err: errors.New("empty query")}
	}

	articles, err := lt.source.Search(ctx, query)
	if err != nil {
		return "", &ExternalServiceError{Service: "wikipedia", Err: err}
	}
	if len(articles) == 0 {
		return "", &ExternalServiceError{Service: "wikipedia", Err: errNoResult}
	}

	var resultBuilder strings.Builder
	for i, article := range articles {
		if i > 0 {
			resultBuilder.WriteString("\n\n")
		}
		resultBuilder.WriteString(fmt.Sprintf("Page: %s\nSummary: %s", article.Title, article.Summary))
	}

	result := resultBuilder.String()
	if len(result) > maxLookupChars {
		result = truncateUTF8(result, maxLookupChars)
	}
	return result, nil
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
