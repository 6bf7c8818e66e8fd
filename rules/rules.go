// Package rules recognizes marketplace best-seller URL shapes and turns them
// into finished, localized titles without touching the network.
package rules

import (
	"net/url"
	"strings"

	"github.com/use-agent/rankscope/cleaner"
)

// Rule recognizes one marketplace's listing convention. TryExtract returns
// a finished title, or empty when the URL does not match or no category can
// be resolved. Implementations must be pure functions of their inputs.
type Rule interface {
	Name() string
	TryExtract(u *url.URL, html string) string
}

// Engine tries its rules in order and stops at the first title.
type Engine struct {
	rules []Rule
}

// NewEngine returns an Engine running rules in the given order.
func NewEngine(rules ...Rule) *Engine {
	return &Engine{rules: rules}
}

// DefaultRules is the site-specificity-first order: precise marketplace
// rules before the cross-domain heuristic.
func DefaultRules() []Rule {
	return []Rule{
		Trendyol{},
		MercadoLivre{},
		Wildberries{},
		Generic{},
	}
}

// Default returns an Engine with DefaultRules.
func Default() *Engine {
	return NewEngine(DefaultRules()...)
}

// Rules returns the configured rule order.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Try runs every rule against rawURL and html. It returns the sanitized
// title and the name of the rule that produced it, or two empty strings.
func (e *Engine) Try(rawURL, html string) (title, rule string) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return "", ""
	}
	for _, r := range e.rules {
		if t := cleaner.Sanitize(r.TryExtract(u, html)); t != "" {
			return t, r.Name()
		}
	}
	return "", ""
}

func hostOf(u *url.URL) string {
	return strings.ToLower(u.Hostname())
}

func hostMatches(u *url.URL, domain string) bool {
	h := hostOf(u)
	return h == domain || strings.HasSuffix(h, "."+domain)
}

// categoryCapture cleans a regex-captured category fragment: markup and
// entities are removed and surrounding punctuation trimmed.
func categoryCapture(fragment string) string {
	s := cleaner.StripTags(fragment)
	return strings.Trim(s, " :：-–|·\"'")
}
