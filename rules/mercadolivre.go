package rules

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/use-agent/rankscope/cleaner"
	"github.com/use-agent/rankscope/locale"
)

var (
	meliListingPath = regexp.MustCompile(`(?i)^/mais-vendidos/`)
	meliHeading     = regexp.MustCompile(`(?i)Mais\s+vendidos\s+em\s*([^<\n]+)`)
	meliSiteSuffix  = regexp.MustCompile(`(?i)\s*[|\-–]\s*Mercado\s*Livre.*$`)
	meliCode        = regexp.MustCompile(`(?i)^MLB\d{3,}$`)
)

// meliCategories maps category codes to names.
var meliCategories = map[string]string{
	"MLB278123": "Bebidas Alcoólicas Mistas",
	"MLB270414": "Bebidas Energéticas",
}

// MercadoLivre handles mercadolivre.com.br/mais-vendidos/<code> listings.
type MercadoLivre struct{}

func (MercadoLivre) Name() string { return "mercadolivre" }

func (MercadoLivre) TryExtract(u *url.URL, html string) string {
	if !hostMatches(u, "mercadolivre.com.br") || !meliListingPath.MatchString(u.Path) {
		return ""
	}

	if html != "" {
		if m := meliHeading.FindStringSubmatch(html); m != nil {
			name := meliSiteSuffix.ReplaceAllString(categoryCapture(m[1]), "")
			if name != "" {
				return locale.Portuguese.Format(name)
			}
		}
		if name := cleaner.JSONLDName(html); name != "" {
			return locale.Portuguese.Format(name)
		}
	}
	if name, ok := meliCategories[strings.ToUpper(lastSegment(u.Path))]; ok {
		return locale.Portuguese.Format(name)
	}
	return ""
}

// MeliCategoryCode returns the MLB category code of a Mercado Livre
// best-seller URL, or empty when the URL has another shape.
func MeliCategoryCode(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || !hostMatches(u, "mercadolivre.com.br") || !meliListingPath.MatchString(u.Path) {
		return ""
	}
	code := lastSegment(u.Path)
	if !meliCode.MatchString(code) {
		return ""
	}
	return code
}

func lastSegment(p string) string {
	return path.Base(strings.TrimRight(p, "/"))
}
