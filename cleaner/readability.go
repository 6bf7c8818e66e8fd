package cleaner

import (
	"log/slog"
	nurl "net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// minReadableLength is the shortest readability TextContent accepted as
// main content.
const minReadableLength = 50

type readable struct {
	html string
	text string
}

// readableContent runs Mozilla Readability over rawHTML. ok is false when
// readability errors or finds too little text.
func readableContent(rawHTML, sourceURL string) (readable, bool) {
	parsedURL, err := nurl.Parse(sourceURL)
	if err != nil {
		parsedURL = &nurl.URL{}
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil {
		slog.Debug("readability: extraction failed", "url", sourceURL, "error", err)
		return readable{}, false
	}

	text := CollapseSpace(article.TextContent)
	if len(text) < minReadableLength {
		return readable{}, false
	}
	return readable{html: article.Content, text: text}, true
}
