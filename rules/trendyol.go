package rules

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/use-agent/rankscope/cleaner"
	"github.com/use-agent/rankscope/locale"
)

var (
	trendyolHeading = regexp.MustCompile(`(?i)([A-Za-zÇĞİÖŞÜçğıöşü\s]+?)\s+Kategorisinde\s+En\s+Çok\s+Satılanlar`)
	trendyolInvalid = regexp.MustCompile(`(?i)^(sirali\s+urunler|sıralı\s+ürünler)$`)
)

// trendyolCategories maps categoryId values to category names.
var trendyolCategories = map[string]string{
	"105500": "Bebek Ek Besin",
}

// Trendyol handles trendyol.com/sirali-urunler?type=bestSeller listings.
type Trendyol struct{}

func (Trendyol) Name() string { return "trendyol" }

func (Trendyol) TryExtract(u *url.URL, html string) string {
	if !hostMatches(u, "trendyol.com") || !strings.Contains(u.Path, "/sirali-urunler") {
		return ""
	}
	q := u.Query()
	if !strings.EqualFold(q.Get("type"), "bestseller") {
		return ""
	}

	if html != "" {
		if m := trendyolHeading.FindStringSubmatch(html); m != nil {
			if name := cleaner.CollapseSpace(m[1]); validTrendyolName(name) {
				return locale.Turkish.Format(name)
			}
		}
		if name := cleaner.JSONLDName(html); validTrendyolName(name) {
			return locale.Turkish.Format(name)
		}
	}
	if name, ok := trendyolCategories[q.Get("categoryId")]; ok {
		return locale.Turkish.Format(name)
	}
	return ""
}

// validTrendyolName rejects empty names and the listing page's own path words.
func validTrendyolName(name string) bool {
	name = cleaner.CollapseSpace(strings.ToLower(name))
	return name != "" && !trendyolInvalid.MatchString(name)
}
