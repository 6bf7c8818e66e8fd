package cleaner

import (
	"math"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Signal weights for block scoring.
const (
	wTextDensity   = 3.0
	wLinkDensity   = -2.0
	wTagWeight     = 1.5
	wClassIDWeight = 1.0
	wTextLength    = 0.5
)

var (
	contentHints     = []string{"content", "article", "post", "entry", "main", "text", "list", "grid"}
	boilerplateHints = []string{"sidebar", "widget", "nav", "menu", "comment", "footer", "header", "banner", "popup", "modal", "cookie", "social", "share", "promo"}
)

// pruneBlocks keeps the top-level body blocks that score above zero and
// returns their joined HTML and collapsed text.
func pruneBlocks(doc *goquery.Document) (string, string) {
	var htmlParts, textParts []string
	doc.Find("body").Children().Each(func(_ int, el *goquery.Selection) {
		if blockScore(el) <= 0 {
			return
		}
		if h, err := goquery.OuterHtml(el); err == nil {
			htmlParts = append(htmlParts, h)
		}
		if t := CollapseSpace(el.Text()); t != "" {
			textParts = append(textParts, t)
		}
	})
	return strings.Join(htmlParts, "\n"), strings.Join(textParts, " ")
}

func blockScore(el *goquery.Selection) float64 {
	outer, err := goquery.OuterHtml(el)
	if err != nil || outer == "" {
		return 0
	}
	text := strings.TrimSpace(el.Text())
	textLen := len(text)

	linkLen := 0
	el.Find("a").Each(func(_ int, a *goquery.Selection) {
		linkLen += len(strings.TrimSpace(a.Text()))
	})
	linkDensity := 0.0
	if textLen > 0 {
		linkDensity = float64(linkLen) / float64(textLen)
	}

	return float64(textLen)/float64(len(outer))*wTextDensity +
		linkDensity*wLinkDensity +
		tagWeight(goquery.NodeName(el))*wTagWeight +
		hintWeight(el)*wClassIDWeight +
		math.Log10(float64(textLen)+1)*wTextLength
}

func tagWeight(tag string) float64 {
	switch tag {
	case "article", "main", "section", "ol", "ul":
		return 5
	case "nav", "footer", "aside", "header", "script", "style", "noscript":
		return -5
	}
	return 0
}

func hintWeight(el *goquery.Selection) float64 {
	class, _ := el.Attr("class")
	id, _ := el.Attr("id")
	attrs := strings.ToLower(class + " " + id)

	score := 0.0
	if containsAny(attrs, contentHints) {
		score += 3
	}
	if containsAny(attrs, boilerplateHints) {
		score -= 3
	}
	return score
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
