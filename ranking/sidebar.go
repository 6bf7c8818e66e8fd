package ranking

import (
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/rankscope/cleaner"
	"github.com/use-agent/rankscope/models"
)

const sidebarCap = 50

// sidebar collects category navigation links. A link qualifies when it
// follows the best-seller URL convention, carries a zg_bs_nav_ reference
// marker and sits outside the ranked item list.
func (p *page) sidebar() []models.SidebarLink {
	out := []models.SidebarLink{}
	seen := make(map[string]struct{})
	p.doc.FindMatcher(selCategoryLink).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href := a.AttrOr("href", "")
		marker := navRef.FindStringSubmatch(href)
		if marker == nil {
			return true
		}
		if a.ClosestMatcher(selItemList).Length() > 0 {
			return true
		}
		name := cleaner.CollapseSpace(a.Text())
		if utf8.RuneCountInString(name) <= 1 {
			return true
		}
		abs := p.abs(href)
		key := name + "\x00" + abs
		if _, dup := seen[key]; dup {
			return true
		}
		seen[key] = struct{}{}

		link := models.SidebarLink{Name: name, URL: abs}
		link.NavLevel, link.NavAncestor = parseNavMarker(marker[1])
		if u, err := url.Parse(abs); err == nil {
			if id := categoryID(u); id != "" {
				link.CategoryID = &id
			}
		}
		out = append(out, link)
		return len(out) < sidebarCap
	})
	return out
}

// parseNavMarker reads the segments after "zg_bs_nav_". The first all-digit
// segment is the tree depth and the segment after it names the parent node,
// e.g. "kitchen_2_289913" gives depth 2 under 289913.
func parseNavMarker(marker string) (level *int, ancestor *string) {
	parts := strings.Split(marker, "_")
	for i, part := range parts {
		if !numericOnly(part) {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, nil
		}
		level = &n
		if i+1 < len(parts) && parts[i+1] != "" {
			anc := parts[i+1]
			ancestor = &anc
		}
		return level, ancestor
	}
	return nil, nil
}
