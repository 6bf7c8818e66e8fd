package ranking

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/rankscope/cleaner"
	"github.com/use-agent/rankscope/models"
)

// ExtractJSON is the compact ranking variant: the primary heading as title
// and rank, name and review count per item. A missing review count is the
// models.NoReviewInfo sentinel rather than null.
func ExtractJSON(rawHTML, baseURL string) (*models.RankingJSON, error) {
	p, err := newPage(rawHTML, baseURL)
	if err != nil {
		return nil, err
	}
	out := &models.RankingJSON{
		RankingTitle: firstText(p.doc.Selection, selH1),
		Items:        []models.JSONRankedItem{},
	}
	for _, c := range p.cards() {
		item := models.JSONRankedItem{Rank: len(out.Items) + 1, ProductName: c.name}
		if n := reviewCount(c.container); n != nil {
			item.ReviewCount = models.KnownReviews(*n)
		}
		out.Items = append(out.Items, item)
	}
	return out, nil
}

const (
	simpleScanCap = 50
	simpleCap     = 30
)

// ExtractSimple is the lightweight extractor: document title plus product
// names and review counts read from review-like labels near each detail
// link. Items are unique by name.
func ExtractSimple(rawHTML string) (*models.SimpleRanking, error) {
	p, err := newPage(rawHTML, "")
	if err != nil {
		return nil, err
	}
	out := &models.SimpleRanking{
		Title: cleaner.CollapseSpace(p.doc.FindMatcher(selDocTitle).First().Text()),
		Items: []models.SimpleItem{},
	}

	var scanned []models.SimpleItem
	seenHref := make(map[string]struct{})
	p.doc.Find(`a[href*="/dp/"]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href := a.AttrOr("href", "")
		if href == "" {
			return true
		}
		if _, dup := seenHref[href]; dup {
			return true
		}
		name := cleaner.CollapseSpace(a.FindMatcher(selSimpleName).First().Text())
		if name == "" {
			name = cleaner.CollapseSpace(a.Text())
		}
		if utf8.RuneCountInString(name) < 3 {
			return true
		}
		seenHref[href] = struct{}{}
		scanned = append(scanned, models.SimpleItem{
			Name:    name,
			Reviews: simpleReviews(a.ClosestMatcher(selSimpleCard)),
		})
		return len(scanned) < simpleScanCap
	})

	seenName := make(map[string]struct{})
	for _, it := range scanned {
		if _, dup := seenName[it.Name]; dup {
			continue
		}
		seenName[it.Name] = struct{}{}
		out.Items = append(out.Items, it)
		if len(out.Items) >= simpleCap {
			break
		}
	}
	return out, nil
}

// simpleReviews finds the first review-like label in the container, then
// falls back to the reviews-page link.
func simpleReviews(container *goquery.Selection) *int {
	if container.Length() == 0 {
		return nil
	}
	var label string
	container.FindMatcher(selSimpleReview).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if t := labelOrText(el); isReviewLike(t) {
			label = t
			return false
		}
		return true
	})
	if label == "" {
		if t := labelOrText(container.FindMatcher(selReviewsLink).First()); isReviewLike(t) {
			label = t
		}
	}
	if label == "" {
		return nil
	}
	digits := countSep.ReplaceAllString(digitRun.FindString(label), "")
	n, err := strconv.Atoi(digits)
	if err != nil || n == 0 {
		return nil
	}
	return &n
}

func labelOrText(el *goquery.Selection) string {
	if label := strings.TrimSpace(el.AttrOr("aria-label", "")); label != "" {
		return label
	}
	return strings.TrimSpace(el.Text())
}

func isReviewLike(s string) bool {
	return s != "" && reviewLike.MatchString(s) && strings.ContainsAny(s, "0123456789")
}
