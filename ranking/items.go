package ranking

import (
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/rankscope/cleaner"
)

// Per-tier output caps.
const (
	listCap   = 100
	anchorCap = 50
	cardCap   = 30
)

// card is one ranked product before field extraction.
type card struct {
	name      string
	url       string
	container *goquery.Selection
}

// collector accumulates unique cards up to a cap.
type collector struct {
	max   int
	seen  map[string]struct{}
	cards []card
}

func newCollector(max int) *collector {
	return &collector{max: max, seen: make(map[string]struct{})}
}

func (c *collector) full() bool { return len(c.cards) >= c.max }

// add appends a card unless its dedup key was already seen. Reports whether
// the collector can take more.
func (c *collector) add(cd card) bool {
	key := dedupKey(cd.url, cd.name)
	if _, dup := c.seen[key]; !dup {
		c.seen[key] = struct{}{}
		c.cards = append(c.cards, cd)
	}
	return !c.full()
}

// cards runs the three-tier cascade. Each tier runs only when the previous
// one produced nothing.
func (p *page) cards() []card {
	for _, tier := range []func() []card{p.listTier, p.anchorTier, p.cardTier} {
		if out := tier(); len(out) > 0 {
			return out
		}
	}
	return nil
}

// listTier walks the canonical ordered list entries.
func (p *page) listTier() []card {
	c := newCollector(listCap)
	p.doc.FindMatcher(selListEntry).EachWithBreak(func(_ int, entry *goquery.Selection) bool {
		a := entry.FindMatcher(selProductAnchor).First()
		if a.Length() == 0 {
			return true
		}
		name := anchorName(a, entry)
		if name == "" {
			return true
		}
		href, _ := a.Attr("href")
		return c.add(card{name: name, url: p.abs(href), container: entry})
	})
	return c.cards
}

// anchorTier walks every product anchor in the document, skipping anchors
// that read like a rating or a variant/option link.
func (p *page) anchorTier() []card {
	c := newCollector(anchorCap)
	p.doc.FindMatcher(selProductAnchor).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		text := cleaner.CollapseSpace(a.Text())
		if ratingText.MatchString(text) || variantText.MatchString(text) {
			return true
		}
		container := a.ClosestMatcher(selCard)
		if container.Length() == 0 {
			container = a.Parent()
		}
		name := anchorName(a, container)
		if name == "" {
			return true
		}
		href, _ := a.Attr("href")
		return c.add(card{name: name, url: p.abs(href), container: container})
	})
	return c.cards
}

// cardTier treats any card-like container holding exactly one image as a
// product and names it by the image's alt text.
func (p *page) cardTier() []card {
	c := newCollector(cardCap)
	p.doc.FindMatcher(selCard).EachWithBreak(func(_ int, box *goquery.Selection) bool {
		imgs := box.FindMatcher(selImgAlt)
		if imgs.Length() != 1 {
			return true
		}
		name := validName(imgs.AttrOr("alt", ""))
		if name == "" {
			return true
		}
		var href string
		if a := box.FindMatcher(selProductAnchor).First(); a.Length() > 0 {
			href = a.AttrOr("href", "")
		} else if a := imgs.Closest("a"); a.Length() > 0 {
			href = a.AttrOr("href", "")
		}
		return c.add(card{name: name, url: p.abs(href), container: box})
	})
	return c.cards
}

// anchorName reads a product name from the title-styled element inside the
// anchor, then image alt text (anchor first, then its container), then the
// anchor's own text.
func anchorName(a, container *goquery.Selection) string {
	if name := validName(firstText(a, selTitleSpan)); name != "" {
		return name
	}
	for _, s := range []*goquery.Selection{a, container} {
		if alt := validName(s.FindMatcher(selImgAlt).First().AttrOr("alt", "")); alt != "" {
			return alt
		}
	}
	return validName(a.Text())
}

func validName(s string) string {
	s = cleaner.CollapseSpace(s)
	if utf8.RuneCountInString(s) < 2 || ratingText.MatchString(s) {
		return ""
	}
	return s
}

// dedupKey prefers the product URL, reduced to host plus /dp/<id> when the
// URL carries a detail-page id, else the lowercased name.
func dedupKey(rawURL, name string) string {
	if rawURL == "" {
		return "name:" + strings.ToLower(name)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "url:" + rawURL
	}
	segs := strings.Split(u.Path, "/")
	for i, s := range segs {
		if (s == "dp" || s == "product") && i+1 < len(segs) && segs[i+1] != "" {
			return "url:" + strings.ToLower(u.Host) + "/dp/" + segs[i+1]
		}
	}
	u.RawQuery, u.Fragment = "", ""
	return "url:" + u.String()
}

// reviewCount returns the first parseable count from the known label
// locations, or nil when none parse.
func reviewCount(container *goquery.Selection) *int {
	var out *int
	container.FindMatcher(selReviewCount).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		for _, raw := range []string{el.Text(), el.AttrOr("aria-label", "")} {
			if n, ok := parseCount(raw); ok {
				out = &n
				return false
			}
		}
		return true
	})
	return out
}

// parseCount reads the leading digit run of a label, ignoring thousands
// separators ("12,345" and "12.345" both give 12345).
func parseCount(s string) (int, bool) {
	m := leadingCount.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(countSep.ReplaceAllString(m, ""))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func ratingOf(container *goquery.Selection) string {
	el := container.FindMatcher(selRating).First()
	if el.Length() == 0 {
		return ""
	}
	if label := cleaner.CollapseSpace(el.AttrOr("aria-label", "")); label != "" {
		return label
	}
	return cleaner.CollapseSpace(el.Text())
}

func (p *page) reviewsURL(container *goquery.Selection) string {
	return p.abs(container.FindMatcher(selReviewsLink).First().AttrOr("href", ""))
}

// priceOf assembles a price from the structured price block, else scans the
// card text for a currency amount.
func priceOf(container *goquery.Selection) string {
	if block := container.FindMatcher(selPrice).First(); block.Length() > 0 {
		whole := strings.TrimRight(cleaner.CollapseSpace(block.FindMatcher(selPriceWhole).First().Text()), ".,")
		if whole != "" {
			price := cleaner.CollapseSpace(block.FindMatcher(selPriceSymbol).First().Text()) + whole
			if frac := cleaner.CollapseSpace(block.FindMatcher(selPriceFraction).First().Text()); frac != "" {
				price += "." + frac
			}
			return price
		}
		if off := cleaner.CollapseSpace(block.FindMatcher(selPriceOffscr).First().Text()); off != "" {
			return off
		}
	}
	return strings.TrimSpace(priceScan.FindString(cleaner.CollapseSpace(container.Text())))
}
