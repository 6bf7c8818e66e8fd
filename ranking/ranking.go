// Package ranking extracts ranked product lists, category lineage and a
// localized title from Amazon-style best-seller pages.
package ranking

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/rankscope/cleaner"
	"github.com/use-agent/rankscope/locale"
	"github.com/use-agent/rankscope/models"
)

// page is a parsed ranking document plus the URL it was served from.
type page struct {
	doc  *goquery.Document
	base *url.URL
}

func newPage(rawHTML, baseURL string) (*page, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return nil, fmt.Errorf("ranking: empty document")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("ranking: parse html: %w", err)
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		base = &url.URL{}
	}
	return &page{doc: doc, base: base}, nil
}

// abs resolves href against the page URL. Unresolvable hrefs are returned
// unchanged.
func (p *page) abs(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return p.base.ResolveReference(ref).String()
}

// Extract parses a best-seller page into its title, active category,
// sidebar category links and ranked items. Items missing a review count
// carry a nil ReviewCount.
func Extract(rawHTML, baseURL string) (*models.Ranking, error) {
	p, err := newPage(rawHTML, baseURL)
	if err != nil {
		return nil, err
	}

	title, active := p.title()
	out := &models.Ranking{
		Title:            title,
		ActiveCategory:   active,
		ActiveCategoryID: categoryID(p.base),
		Sidebar:          p.sidebar(),
		Items:            []models.RankedItem{},
	}
	for _, c := range p.cards() {
		out.Items = append(out.Items, models.RankedItem{
			Rank:        len(out.Items) + 1,
			ProductName: c.name,
			ReviewCount: reviewCount(c.container),
			ProductURL:  c.url,
			RatingText:  ratingOf(c.container),
			ReviewsURL:  p.reviewsURL(c.container),
			PriceText:   priceOf(c.container),
		})
	}
	return out, nil
}

// title resolves the page title and the selected navigation category. A
// selected category overrides the heading with a composed, localized title;
// without one, the category is parsed back out of the document title.
func (p *page) title() (title, active string) {
	for _, sel := range []cascadia.Selector{selBanner, selH1, selDocTitle} {
		if title = firstText(p.doc.Selection, sel); title != "" {
			break
		}
	}

	loc := pageLocale(p.base)
	for _, sel := range selSelectedNav {
		if active = firstText(p.doc.Selection, sel); active != "" {
			return loc.Format(active), active
		}
	}

	docTitle := firstText(p.doc.Selection, selDocTitle)
	for _, l := range []locale.Locale{loc, locale.English} {
		if name := l.CategoryFromTitle(docTitle); name != "" {
			return loc.Format(name), name
		}
	}
	return title, ""
}

// pageLocale picks the phrase locale from the host suffix, overridden by a
// "/-/<lang>/" path segment or a language query parameter.
func pageLocale(u *url.URL) locale.Locale {
	segs := strings.Split(u.Path, "/")
	for i := 0; i+1 < len(segs); i++ {
		if segs[i] == "-" && segs[i+1] != "" {
			return locale.ForTag(segs[i+1])
		}
	}
	if lang := u.Query().Get("language"); lang != "" {
		return locale.ForTag(strings.ReplaceAll(lang, "_", "-"))
	}
	return locale.ForHost(u.Hostname())
}

// categoryID returns the first path segment of at least four digits,
// scanning right to left, else a numeric "node" query parameter.
func categoryID(u *url.URL) string {
	if u == nil {
		return ""
	}
	segs := strings.Split(u.Path, "/")
	for i := len(segs) - 1; i >= 0; i-- {
		if longDigit.MatchString(segs[i]) {
			return segs[i]
		}
	}
	if node := u.Query().Get("node"); numericOnly(node) {
		return node
	}
	return ""
}

func numericOnly(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// firstText returns the collapsed text of the first match with any text.
func firstText(s *goquery.Selection, m goquery.Matcher) string {
	var out string
	s.FindMatcher(m).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		out = cleaner.CollapseSpace(el.Text())
		return out == ""
	})
	return out
}
