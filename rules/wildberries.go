package rules

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/use-agent/rankscope/cleaner"
)

// wbSubjects maps xsubject ids to category names.
var wbSubjects = map[string]string{
	"3418": "Консервированные продукты",
}

// wbSlugs maps catalog path slugs to category names.
var wbSlugs = map[string]string{
	"konservatsiya": "Консервированные продукты",
	"napitki":       "Напитки",
}

// wbKnownNames are searched for in fetched HTML, in order.
var wbKnownNames = []struct {
	re   *regexp.Regexp
	name string
}{
	{regexp.MustCompile(`(?i)Консервированные\s+продукты`), "Консервированные продукты"},
}

var wbListSep = regexp.MustCompile(`[;,]+`)

// Wildberries handles wildberries.ru catalog pages sorted by popularity. The
// title is the bare category name.
type Wildberries struct{}

func (Wildberries) Name() string { return "wildberries" }

func (Wildberries) TryExtract(u *url.URL, html string) string {
	if !hostMatches(u, "wildberries.ru") {
		return ""
	}
	q := u.Query()
	if !strings.EqualFold(q.Get("sort"), "popular") {
		return ""
	}

	if html != "" {
		for _, known := range wbKnownNames {
			if known.re.MatchString(html) {
				return known.name
			}
		}
		if name := cleaner.JSONLDName(html); name != "" {
			return name
		}
	}
	for _, id := range wbListSep.Split(rawQueryParam(u, "xsubject"), -1) {
		if name, ok := wbSubjects[id]; ok {
			return name
		}
	}
	if name, ok := wbSlugs[strings.ToLower(lastSegment(u.Path))]; ok {
		return name
	}
	return LabelFromPath(u.Path)
}

// rawQueryParam reads key straight from the raw query. url.Query drops pairs
// containing a literal semicolon, which xsubject uses as a list separator.
func rawQueryParam(u *url.URL, key string) string {
	for _, pair := range strings.Split(u.RawQuery, "&") {
		k, v, _ := strings.Cut(pair, "=")
		if k != key {
			continue
		}
		if unescaped, err := url.QueryUnescape(v); err == nil {
			v = unescaped
		}
		return strings.TrimSpace(v)
	}
	return ""
}
