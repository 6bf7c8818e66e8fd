package cleaner_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/use-agent/rankscope/cleaner"
)

func TestExtractGenericContent(t *testing.T) {
	t.Parallel()

	t.Run("article container", func(t *testing.T) {
		t.Parallel()

		html := `<html><head><title>Page</title></head><body>
			<nav>menu</nav>
			<article><h2>Heading</h2>
			<p>First   paragraph.</p>
			<p>Second paragraph.</p></article></body></html>`
		got := cleaner.ExtractGenericContent(html, "https://example.com/")

		assert.Equal(t, "Page", got.Title)
		assert.Equal(t, "Heading First paragraph. Second paragraph.", got.Text)
		assert.Equal(t, "article", got.Source)
		assert.Contains(t, got.Markdown, "Heading")
	})

	t.Run("main preferred over content div", func(t *testing.T) {
		t.Parallel()

		html := `<body><div class="page-content">div text</div><main>main text</main></body>`
		got := cleaner.ExtractGenericContent(html, "")

		assert.Equal(t, "main text", got.Text)
	})

	t.Run("content-like div", func(t *testing.T) {
		t.Parallel()

		html := `<body><div class="main-content">catalog</div></body>`
		got := cleaner.ExtractGenericContent(html, "")

		assert.Equal(t, "catalog", got.Text)
	})

	t.Run("falls back past containers", func(t *testing.T) {
		t.Parallel()

		html := `<body><div>` + strings.Repeat("plain words here ", 10) + `</div></body>`
		got := cleaner.ExtractGenericContent(html, "")

		assert.NotEmpty(t, got.Text)
		assert.NotEqual(t, "article", got.Source)
	})

	t.Run("snippet is capped", func(t *testing.T) {
		t.Parallel()

		html := `<article>` + strings.Repeat("word ", 2000) + `</article>`
		got := cleaner.ExtractGenericContent(html, "")

		assert.LessOrEqual(t, len([]rune(got.Text)), 2000)
	})
}

func TestStripTags(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Bebidas & Cia", cleaner.StripTags(" <b>Bebidas</b>\n &amp; Cia "))
	assert.Equal(t, "plain", cleaner.StripTags("  plain "))
}
