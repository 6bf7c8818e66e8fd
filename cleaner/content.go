package cleaner

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
)

// maxSnippetRunes caps GenericContent.Text.
const maxSnippetRunes = 2000

// contentContainers is tried in order; the first match is the main content.
var contentContainers = []string{
	"article",
	"main",
	`div#content, div[class*="content"], section`,
}

// GenericContent is the title and main-content snippet of an arbitrary page.
type GenericContent struct {
	Title    string `json:"title"`
	Text     string `json:"text"`
	Markdown string `json:"markdown,omitempty"`

	// Source names the step that located the content: a container
	// selector, "readability", "pruning" or "body".
	Source string `json:"source"`
}

// ExtractGenericContent locates the main content of rawHTML. Semantic
// containers win; otherwise readability, then block pruning, then the whole
// body. sourceURL resolves relative links in the Markdown rendering and may
// be empty.
func ExtractGenericContent(rawHTML, sourceURL string) GenericContent {
	doc, err := parseDocument(rawHTML)
	if err != nil {
		return GenericContent{}
	}
	out := GenericContent{Title: Sanitize(firstText(doc, "title"))}

	var contentHTML string
	for _, sel := range contentContainers {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			out.Text = CollapseSpace(s.Text())
			contentHTML, _ = goquery.OuterHtml(s)
			out.Source = sel
			break
		}
	}
	if out.Text == "" {
		if art, ok := readableContent(rawHTML, sourceURL); ok {
			out.Text, contentHTML, out.Source = art.text, art.html, "readability"
		}
	}
	if out.Text == "" {
		if h, text := pruneBlocks(doc); text != "" {
			out.Text, contentHTML, out.Source = text, h, "pruning"
		}
	}
	if out.Text == "" {
		body := doc.Find("body")
		out.Text = CollapseSpace(body.Text())
		contentHTML, _ = body.Html()
		out.Source = "body"
	}

	out.Text = truncateRunes(out.Text, maxSnippetRunes)
	if contentHTML != "" {
		md, err := markdownConverter().ConvertString(contentHTML, converter.WithDomain(sourceURL))
		if err != nil {
			slog.Debug("content: markdown conversion failed", "url", sourceURL, "error", err)
		} else {
			out.Markdown = strings.TrimSpace(md)
		}
	}
	return out
}

// markdownConverter is built once; the Converter is goroutine-safe.
var markdownConverter = sync.OnceValue(func() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(
				table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
			),
		),
	)
})

func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return strings.TrimSpace(string(r[:limit]))
}
