package rules

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/use-agent/rankscope/cleaner"
	"github.com/use-agent/rankscope/locale"
)

var (
	bestPathSignals = []*regexp.Regexp{
		regexp.MustCompile(`(?i)best[-_ ]?sellers|top[-_ ]?sellers|bestseller|rankings?|popular`),
		regexp.MustCompile(`(?i)mais[-_ ]vendidos|mas[-_ ]vendidos|más[-_ ]vendidos`),
		regexp.MustCompile(`(?i)sirali-urunler`),
	}
	bestHostSignal = regexp.MustCompile(`(?i)ranking`)
	bestHeading    = regexp.MustCompile(`(?i)(?:Best\s+sellers\s+in|Mais\s+vendidos\s+em|Más\s+vendidos\s+en|売れ筋ランキング)\s*([^<\n]+)`)
)

// Generic matches best-seller and ranking pages on any marketplace. It runs
// last so precise rules always win.
type Generic struct{}

func (Generic) Name() string { return "generic" }

func (Generic) TryExtract(u *url.URL, html string) string {
	if !isBestPage(u) {
		return ""
	}
	loc := locale.ForHost(hostOf(u))

	if html != "" {
		if m := bestHeading.FindStringSubmatch(html); m != nil {
			if name := categoryCapture(m[1]); name != "" {
				return loc.Format(name)
			}
		}
		if name := cleaner.JSONLDName(html); name != "" {
			return loc.Format(name)
		}
	}
	return loc.Format(LabelFromPath(u.Path))
}

func isBestPage(u *url.URL) bool {
	for _, re := range bestPathSignals {
		if re.MatchString(u.Path) {
			return true
		}
	}
	if bestHostSignal.MatchString(hostOf(u)) {
		return true
	}
	q := u.Query()
	return strings.EqualFold(q.Get("sortBy"), "sales") || strings.EqualFold(q.Get("sort"), "popular")
}
