package ranking

import (
	"regexp"

	"github.com/andybalholm/cascadia"
)

// Selector table. Every DOM lookup the extractor performs goes through one
// of these compiled matchers.
var (
	selBanner   = cascadia.MustCompile(`#zg_banner_text`)
	selH1       = cascadia.MustCompile(`h1`)
	selDocTitle = cascadia.MustCompile(`title`)

	// selSelectedNav is ordered: older templates first, then aria markup.
	selSelectedNav = []cascadia.Selector{
		cascadia.MustCompile(`#zg_browseRoot .zg_selected a`),
		cascadia.MustCompile(`#zg_browseRoot .zg_selected`),
		cascadia.MustCompile(`#zg_browseRoot a[aria-current="true"]`),
		cascadia.MustCompile(`[role="treeitem"] [class*="zg-selected"]`),
	}

	selCategoryLink = cascadia.MustCompile(`a[href*="/gp/bestsellers/"], a[href*="/zgbs/"]`)

	// selItemList wraps the ranked items; sidebar links inside it are ignored.
	selItemList = cascadia.MustCompile(`ol#zg-ordered-list, #zg-ordered-list, div[class*="p13n-gridRow"]`)

	// selListEntry is the canonical ranked entry.
	selListEntry = cascadia.MustCompile(`ol#zg-ordered-list > li, #zg-ordered-list li, .zg-grid-general-faceout, div[class*="grid-cell"], div[data-testid="grid-cell"], #gridItemRoot`)

	selProductAnchor = cascadia.MustCompile(`a[href*="/dp/"], a[href*="/gp/product/"]`)
	selTitleSpan     = cascadia.MustCompile(`span.a-size-base, span.a-size-medium, span.a-size-large, div[class*="line-clamp"]`)
	selImgAlt        = cascadia.MustCompile(`img[alt]`)

	// selCard matches card-like containers. It is used both as the nearest
	// ancestor of a product anchor and for the image-alt tier.
	selCard = cascadia.MustCompile(`li, article, .zg-grid-general-faceout, .a-section, .sg-col, div`)

	selReviewCount = cascadia.MustCompile(`.a-size-small.a-link-normal, [data-hook="total-review-count"], span.a-size-small`)
	selRating      = cascadia.MustCompile(`.a-icon-alt, [aria-label*="星"], [aria-label*="stars"]`)
	selReviewsLink = cascadia.MustCompile(`a[href*="/product-reviews/"]`)

	selPrice         = cascadia.MustCompile(`.a-price`)
	selPriceSymbol   = cascadia.MustCompile(`.a-price-symbol`)
	selPriceWhole    = cascadia.MustCompile(`.a-price-whole`)
	selPriceFraction = cascadia.MustCompile(`.a-price-fraction`)
	selPriceOffscr   = cascadia.MustCompile(`.a-offscreen`)

	// selSimpleReview holds review labels for the lightweight extractor.
	selSimpleReview = cascadia.MustCompile(`span[aria-label], a[aria-label], span.a-size-small, span.a-icon-alt`)
	selSimpleName   = cascadia.MustCompile(`span`)
	selSimpleCard   = cascadia.MustCompile(`li, div`)
)

var (
	ratingText  = regexp.MustCompile(`(?i)颗星|星级|5つ星のうち|rating|stars|out of 5|estrelas|estrellas|étoiles`)
	variantText = regexp.MustCompile(`(?i)另有|其他|版本|变体|选项|颜色|款式|価格|円|オプション|バリエーション|\b(?:price|from|options?|other formats)\b|opções|opciones`)
	reviewLike  = regexp.MustCompile(`(?i)評価|レビュー|件|条评|条评论|口コミ|ratings?|reviews?|avalia|reseñ|отзыв`)

	leadingCount = regexp.MustCompile(`\d[\d,.\s]*`)
	digitRun     = regexp.MustCompile(`[\d,.]+`)
	countSep     = regexp.MustCompile(`[,.\s]`)

	priceScan = regexp.MustCompile(`(?:JP¥|US\$|R\$|CA\$|A\$|MX\$|[¥￥$€£₩₺₽])\s*\d[\d,.]*|\d[\d,.]*\s*(?:円|₽|TL|zł|€)`)

	navRef    = regexp.MustCompile(`(?i)zg_bs_nav_([A-Za-z0-9_-]+)`)
	longDigit = regexp.MustCompile(`^\d{4,}$`)
)
