// Package locale holds the per-language phrase table shared by the
// sanitizer, the rule engine and the ranking extractor.
package locale

import (
	"net/url"
	"regexp"
	"strings"
)

// Locale describes how one language phrases a best-seller listing and how
// requests for it should be made.
type Locale struct {
	// Tag is the primary language subtag ("en", "ja", "zh-TW", ...).
	Tag string

	// AcceptLanguage is sent on every acquisition call for this locale.
	AcceptLanguage string

	// Timezone is used by the render fallback.
	Timezone string

	// BestSellers is the localized "best sellers" phrase.
	BestSellers string

	// Connective joins phrase and category ("in", "em", "の", ...). May be empty.
	Connective string

	// CategoryFirst puts the category before the phrase.
	CategoryFirst bool

	// Ideographic scripts attach the connective to the phrase without a space.
	Ideographic bool

	// BlockPhrases are challenge or error page markers in this language.
	BlockPhrases []string

	// TitlePatterns recover a category name from a raw document title. The
	// first capture group is the category.
	TitlePatterns []*regexp.Regexp
}

// Format composes a localized best-seller title for category. Returns empty
// for an empty category.
func (l Locale) Format(category string) string {
	category = strings.TrimSpace(category)
	if category == "" {
		return ""
	}
	parts := make([]string, 0, 3)
	if l.CategoryFirst {
		parts = append(parts, category)
		switch {
		case l.Connective == "":
			parts = append(parts, l.BestSellers)
		case l.Ideographic:
			parts = append(parts, l.Connective+l.BestSellers)
		default:
			parts = append(parts, l.Connective, l.BestSellers)
		}
	} else {
		parts = append(parts, l.BestSellers)
		if l.Connective != "" {
			parts = append(parts, l.Connective)
		}
		parts = append(parts, category)
	}
	return strings.Join(parts, " ")
}

// CategoryFromTitle tries each title pattern against a raw document title.
func (l Locale) CategoryFromTitle(title string) string {
	for _, re := range l.TitlePatterns {
		if m := re.FindStringSubmatch(title); len(m) > 1 {
			if name := strings.TrimSpace(m[1]); name != "" {
				return name
			}
		}
	}
	return ""
}

var (
	English = Locale{
		Tag:            "en",
		AcceptLanguage: "en-US,en;q=0.9",
		Timezone:       "UTC",
		BestSellers:    "Best sellers",
		Connective:     "in",
		BlockPhrases: []string{
			"access denied", "forbidden", "just a moment", "verification",
			"blocked", "error", "denied", "403",
		},
		TitlePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)Best\s*Sellers\s+in\s+(.+?)(?:\s*[-|:]\s*Amazon.*)?$`),
			regexp.MustCompile(`(?i)Amazon(?:\.[a-z.]+)?\s+Best\s*Sellers:\s*Best\s+(.+)$`),
		},
	}

	Japanese = Locale{
		Tag:            "ja",
		AcceptLanguage: "ja-JP,ja;q=0.9,en;q=0.8",
		Timezone:       "Asia/Tokyo",
		BestSellers:    "売れ筋ランキング",
		Connective:     "の",
		CategoryFirst:  true,
		Ideographic:    true,
		BlockPhrases:   []string{"アクセスが拒否されました", "ロボットではありません"},
		TitlePatterns: []*regexp.Regexp{
			regexp.MustCompile(`売れ筋ランキング:\s*(.+?)\s*の中で最も人気のある商品です`),
			regexp.MustCompile(`(.+?)\s*の売れ筋ランキング`),
		},
	}

	SimplifiedChinese = Locale{
		Tag:            "zh-CN",
		AcceptLanguage: "zh-CN,zh;q=0.9,en;q=0.8",
		Timezone:       "Asia/Shanghai",
		BestSellers:    "畅销榜",
		CategoryFirst:  true,
		Ideographic:    true,
		BlockPhrases:   []string{"访问被拒绝", "请输入验证码"},
		TitlePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?:亚马逊|Amazon\S*)\s*(.+?)\s*(?:畅销商品|畅销榜)`),
			regexp.MustCompile(`(.+?)\s*(?:畅销商品|畅销榜)`),
		},
	}

	TraditionalChinese = Locale{
		Tag:            "zh-TW",
		AcceptLanguage: "zh-TW,zh;q=0.9,en;q=0.8",
		Timezone:       "Asia/Taipei",
		BestSellers:    "暢銷榜",
		CategoryFirst:  true,
		Ideographic:    true,
		BlockPhrases:   []string{"拒絕存取"},
		TitlePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(.+?)\s*暢銷榜`),
		},
	}

	Korean = Locale{
		Tag:            "ko",
		AcceptLanguage: "ko-KR,ko;q=0.9,en;q=0.8",
		Timezone:       "Asia/Seoul",
		BestSellers:    "베스트셀러",
		CategoryFirst:  true,
		BlockPhrases:   []string{"잠시만요", "권한이 없습니다", "오류"},
	}

	Turkish = Locale{
		Tag:            "tr",
		AcceptLanguage: "tr-TR,tr;q=0.9,en;q=0.8",
		Timezone:       "Europe/Istanbul",
		BestSellers:    "En Çok Satılanlar",
		Connective:     "Kategorisinde",
		CategoryFirst:  true,
		BlockPhrases:   []string{"erişim engellendi"},
		TitlePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)([\p{L}\s]+?)\s+Kategorisinde\s+En\s+Çok\s+Satılanlar`),
		},
	}

	Portuguese = Locale{
		Tag:            "pt",
		AcceptLanguage: "pt-BR,pt;q=0.9,en;q=0.8",
		Timezone:       "America/Sao_Paulo",
		BestSellers:    "Mais vendidos",
		Connective:     "em",
		BlockPhrases:   []string{"acesso negado"},
		TitlePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)Mais\s+vendidos\s+em\s+(.+?)(?:\s*[-|:]\s*(?:Amazon|Mercado).*)?$`),
		},
	}

	Spanish = Locale{
		Tag:            "es",
		AcceptLanguage: "es-ES,es;q=0.9,en;q=0.8",
		Timezone:       "Europe/Madrid",
		BestSellers:    "Más vendidos",
		Connective:     "en",
		BlockPhrases:   []string{"acceso denegado"},
		TitlePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)M[aá]s\s+vendidos\s+en\s+(.+?)(?:\s*[-|:]\s*Amazon.*)?$`),
		},
	}

	Russian = Locale{
		Tag:            "ru",
		AcceptLanguage: "ru-RU,ru;q=0.9,en;q=0.8",
		Timezone:       "Europe/Moscow",
		BestSellers:    "Лучшие продажи",
		Connective:     "в",
		BlockPhrases:   []string{"доступ запрещен", "доступ запрещён", "почти готово"},
	}
)

// all lists every locale; hostSuffixes is checked in order.
var all = []Locale{
	English, Japanese, SimplifiedChinese, TraditionalChinese, Korean,
	Turkish, Portuguese, Spanish, Russian,
}

var hostSuffixes = []struct {
	suffix string
	locale Locale
}{
	{"coupang.com", Korean},
	{"trendyol.com", Turkish},
	{"mercadolivre.com.br", Portuguese},
	{"wildberries.ru", Russian},
	{".co.jp", Japanese},
	{".jp", Japanese},
	{".tw", TraditionalChinese},
	{".cn", SimplifiedChinese},
	{".ru", Russian},
	{".com.br", Portuguese},
	{".com.tr", Turkish},
	{".co.kr", Korean},
	{".kr", Korean},
	{".es", Spanish},
	{".com.mx", Spanish},
}

// ForHost resolves the locale for a host by suffix, defaulting to English.
func ForHost(host string) Locale {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for _, hs := range hostSuffixes {
		if host == strings.TrimPrefix(hs.suffix, ".") || strings.HasSuffix(host, hs.suffix) {
			return hs.locale
		}
	}
	return English
}

// ForURL resolves the locale for a raw URL. Unparsable URLs get English.
func ForURL(raw string) Locale {
	u, err := url.Parse(raw)
	if err != nil {
		return English
	}
	return ForHost(u.Hostname())
}

// AcceptLanguage returns the Accept-Language header value for a raw URL.
func AcceptLanguage(raw string) string {
	return ForURL(raw).AcceptLanguage
}

// ForTag returns the locale for a language tag ("ja", "zh-tw", "pt-BR").
// Unknown tags resolve to English.
func ForTag(tag string) Locale {
	tag = strings.ToLower(strings.TrimSpace(tag))
	switch {
	case tag == "":
		return English
	case tag == "zh-tw" || tag == "zh-hk" || tag == "zh-hant":
		return TraditionalChinese
	}
	primary, _, _ := strings.Cut(tag, "-")
	switch primary {
	case "ja":
		return Japanese
	case "zh":
		return SimplifiedChinese
	case "ko":
		return Korean
	case "tr":
		return Turkish
	case "pt":
		return Portuguese
	case "es":
		return Spanish
	case "ru":
		return Russian
	}
	return English
}

// FromAcceptLanguage picks the locale of the first language range in an
// Accept-Language header value.
func FromAcceptLanguage(al string) Locale {
	first, _, _ := strings.Cut(al, ",")
	first, _, _ = strings.Cut(first, ";")
	return ForTag(first)
}

// PrimaryTag returns the first language range of an Accept-Language value,
// e.g. "ko-KR" for "ko-KR,ko;q=0.9". Empty input yields "en-US".
func PrimaryTag(al string) string {
	first, _, _ := strings.Cut(al, ",")
	first, _, _ = strings.Cut(first, ";")
	first = strings.TrimSpace(first)
	if first == "" {
		return "en-US"
	}
	return first
}

var blockPhrases = func() []string {
	var out []string
	for _, l := range all {
		for _, p := range l.BlockPhrases {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}()

// BlockPhrases returns the lower-cased union of every locale's block phrases.
func BlockPhrases() []string {
	return blockPhrases
}
