package cleaner

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// minScriptPayload skips inline scripts too short to carry page state.
const minScriptPayload = 80

// scriptTitleKeys are checked in order at every object of a script payload.
var scriptTitleKeys = []string{"title", "ogTitle", "seoTitle", "pageTitle", "h1", "name"}

// ExtractRenderedTitle runs the title cascade over rendered HTML and, when
// nothing survives, scans inline script payloads for title-like JSON keys.
func ExtractRenderedTitle(rawHTML string) string {
	doc, err := parseDocument(rawHTML)
	if err != nil {
		return ""
	}
	if t := bestTitle(doc); t != "" {
		return t
	}
	return Sanitize(scanScripts(doc))
}

// ScanScripts returns the first title-like value found in an inline script
// JSON payload, or empty.
func ScanScripts(rawHTML string) string {
	doc, err := parseDocument(rawHTML)
	if err != nil {
		return ""
	}
	return scanScripts(doc)
}

func scanScripts(doc *goquery.Document) string {
	var out string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if _, external := s.Attr("src"); external {
			return true
		}
		txt := s.Text()
		if len(txt) < minScriptPayload {
			return true
		}
		start := strings.IndexByte(txt, '{')
		end := strings.LastIndexByte(txt, '}')
		if start < 0 || end <= start {
			return true
		}
		var v any
		if err := json.Unmarshal([]byte(txt[start:end+1]), &v); err != nil {
			return true
		}
		out = findTitleKey(v)
		return out == ""
	})
	return out
}

// findTitleKey walks v breadth first. Object keys are visited in sorted order
// so the result does not depend on map iteration.
func findTitleKey(v any) string {
	queue := []any{v}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		switch node := cur.(type) {
		case map[string]any:
			for _, k := range scriptTitleKeys {
				if s, ok := node[k].(string); ok {
					if s = strings.TrimSpace(s); s != "" {
						return s
					}
				}
			}
			keys := make([]string, 0, len(node))
			for k := range node {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			for _, k := range keys {
				switch node[k].(type) {
				case map[string]any, []any:
					queue = append(queue, node[k])
				}
			}
		case []any:
			queue = append(queue, node...)
		}
	}
	return ""
}
