package cleaner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// titleSource is one step of the title preference cascade.
type titleSource struct {
	name    string
	extract func(doc *goquery.Document) string
}

// titleCascade is the fixed preference order used by ExtractBestTitle.
var titleCascade = []titleSource{
	{"h1", func(doc *goquery.Document) string { return firstText(doc, "h1") }},
	{"title", func(doc *goquery.Document) string { return firstText(doc, "title") }},
	{"h2", func(doc *goquery.Document) string { return firstText(doc, "h2") }},
	{"jsonld", jsonLDName},
	{"og", openGraphTitle},
}

// ExtractBestTitle returns the first candidate of the cascade
// h1, title, h2, JSON-LD name, Open Graph/Twitter title that survives
// Sanitize. A rejected candidate does not stop the search.
func ExtractBestTitle(rawHTML string) string {
	doc, err := parseDocument(rawHTML)
	if err != nil {
		return ""
	}
	return bestTitle(doc)
}

func bestTitle(doc *goquery.Document) string {
	for _, src := range titleCascade {
		if t := Sanitize(src.extract(doc)); t != "" {
			return t
		}
	}
	return ""
}

// OpenGraphTitle returns the og:title or twitter:title meta content, unsanitized.
func OpenGraphTitle(rawHTML string) string {
	doc, err := parseDocument(rawHTML)
	if err != nil {
		return ""
	}
	return openGraphTitle(doc)
}

// JSONLDName returns the name carried by the first JSON-LD block that has
// one. For a BreadcrumbList the last crumb's name is used.
func JSONLDName(rawHTML string) string {
	if !strings.Contains(rawHTML, "ld+json") {
		return ""
	}
	doc, err := parseDocument(rawHTML)
	if err != nil {
		return ""
	}
	return jsonLDName(doc)
}

func parseDocument(rawHTML string) (*goquery.Document, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return nil, fmt.Errorf("cleaner: empty document")
	}
	return goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
}

func firstText(doc *goquery.Document, selector string) string {
	var out string
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		out = CollapseSpace(s.Text())
		return out == ""
	})
	return out
}

func openGraphTitle(doc *goquery.Document) string {
	for _, sel := range []string{
		`meta[property="og:title"]`,
		`meta[name="og:title"]`,
		`meta[name="twitter:title"]`,
		`meta[property="twitter:title"]`,
	} {
		if content, ok := doc.Find(sel).First().Attr("content"); ok {
			if t := CollapseSpace(content); t != "" {
				return t
			}
		}
	}
	return ""
}

func jsonLDName(doc *goquery.Document) string {
	var out string
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return true
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return true
		}
		out = nameFromLD(v)
		return out == ""
	})
	return out
}

func nameFromLD(v any) string {
	switch node := v.(type) {
	case []any:
		for _, el := range node {
			if n := nameFromLD(el); n != "" {
				return n
			}
		}
	case map[string]any:
		if isType(node["@type"], "BreadcrumbList") {
			if items, ok := node["itemListElement"].([]any); ok && len(items) > 0 {
				if n := crumbName(items[len(items)-1]); n != "" {
					return n
				}
			}
		}
		for _, key := range []string{"name", "headline"} {
			if s, ok := node[key].(string); ok {
				if s = CollapseSpace(s); s != "" {
					return s
				}
			}
		}
		if graph, ok := node["@graph"]; ok {
			return nameFromLD(graph)
		}
	}
	return ""
}

func crumbName(v any) string {
	crumb, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	if item, ok := crumb["item"].(map[string]any); ok {
		if s, ok := item["name"].(string); ok && strings.TrimSpace(s) != "" {
			return CollapseSpace(s)
		}
	}
	if s, ok := crumb["name"].(string); ok {
		return CollapseSpace(s)
	}
	return ""
}

func isType(v any, want string) bool {
	switch t := v.(type) {
	case string:
		return t == want
	case []any:
		for _, el := range t {
			if s, ok := el.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}

// Summary reports which title-bearing structures a document contains.
type Summary struct {
	H1, H2, Title, JSONLD, OG bool
}

func (s Summary) String() string {
	return fmt.Sprintf("h1=%t, h2=%t, title=%t, jsonld=%t, og=%t", s.H1, s.H2, s.Title, s.JSONLD, s.OG)
}

// Summarize inspects rawHTML for title-bearing structures.
func Summarize(rawHTML string) Summary {
	doc, err := parseDocument(rawHTML)
	if err != nil {
		return Summary{}
	}
	return Summary{
		H1:     doc.Find("h1").Length() > 0,
		H2:     doc.Find("h2").Length() > 0,
		Title:  doc.Find("title").Length() > 0,
		JSONLD: doc.Find(`script[type="application/ld+json"]`).Length() > 0,
		OG:     openGraphTitle(doc) != "",
	}
}
