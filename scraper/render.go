package scraper

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/rankscope/cleaner"
	"github.com/use-agent/rankscope/engine"
	"github.com/use-agent/rankscope/locale"
	"github.com/use-agent/rankscope/models"
	"github.com/ysmood/gson"
)

// RenderTitle loads targetURL in a fresh incognito context emulating the
// language of acceptLanguage and returns the best title from the rendered
// DOM. An empty title with a nil error means the page rendered but carried
// nothing usable.
//
// Lifecycle:
//
//  1. Acquire slot          – bounded by MaxPages
//  2. Isolated context      – incognito browser context per call
//  3. Stealth page          – stealth.JS installed before any navigation
//  4. Locale emulation      – locale, timezone, UA + Accept-Language
//  5. Hijack mount          – block heavy resources and ad domains
//  6. Navigate              – bounded by NavigationTimeout
//  7. Settle                – WaitDOMStable bounded by SettleTimeout
//  8. Extract               – rendered HTML through the title cascade
func (s *Scraper) RenderTitle(ctx context.Context, targetURL, acceptLanguage string) (string, error) {
	if strings.TrimSpace(targetURL) == "" {
		return "", models.NewScrapeError(models.ErrCodeInvalidInput, "missing url", nil)
	}
	if acceptLanguage == "" {
		acceptLanguage = locale.AcceptLanguage(targetURL)
	}

	// ── 1. Acquire slot ───────────────────────────────────────────────
	s.activePages.Add(1)
	defer s.activePages.Add(-1)

	// ── 2. Isolated context ───────────────────────────────────────────
	incognito, err := s.slots.Get(s.browser.Incognito)
	if err != nil {
		s.slots.Put(nil)
		return "", models.NewScrapeError(models.ErrCodeRenderFailed, "failed to create browser context", err)
	}
	// Contexts are never reused: dispose and hand back an empty slot.
	defer func() {
		if closeErr := incognito.Close(); closeErr != nil {
			slog.Warn("render cleanup: dispose context failed", "error", closeErr)
		}
		s.slots.Put(nil)
	}()

	// ── 3. Stealth page ───────────────────────────────────────────────
	page, err := stealth.Page(incognito)
	if err != nil {
		return "", models.NewScrapeError(models.ErrCodeRenderFailed, "failed to open page", err)
	}

	// ── 4. Locale emulation ───────────────────────────────────────────
	emulateLocale(page, acceptLanguage)

	// ── 5. Hijack mount ───────────────────────────────────────────────
	router := setupHijack(page, s.browserCfg.BlockedResourceTypes, s.browserCfg.BlockAds)
	if router != nil {
		defer func() { _ = router.Stop() }()
	}

	// ── 6. Navigate ───────────────────────────────────────────────────
	navTimeout := s.browserCfg.NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = 25 * time.Second
	}
	rp := page.Context(ctx)
	navPage := rp.Timeout(navTimeout)
	err = navPage.Navigate(targetURL)
	navPage.CancelTimeout()
	if err != nil {
		return "", categorizeError(ctx, err, "navigation to target URL failed")
	}

	// ── 7. Settle ─────────────────────────────────────────────────────
	settle := s.browserCfg.SettleTimeout
	if settle <= 0 {
		settle = 12 * time.Second
	}
	settlePage := rp.Timeout(settle)
	if err := settlePage.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM",
			"url", targetURL,
			"error", err,
		)
	}
	settlePage.CancelTimeout()

	// ── 8. Extract ────────────────────────────────────────────────────
	rawHTML, err := rp.HTML()
	if err != nil {
		return "", categorizeError(ctx, err, "failed to extract page HTML")
	}
	if title := cleaner.ExtractRenderedTitle(rawHTML); title != "" {
		return title, nil
	}
	return cleaner.Sanitize(evalStringOrEmpty(rp, `() => document.title`)), nil
}

// emulateLocale aligns navigator.language, Intl and the request headers with
// the requested language. Every override failure is logged at debug level
// and ignored.
func emulateLocale(page *rod.Page, acceptLanguage string) {
	primary := locale.PrimaryTag(acceptLanguage)
	loc := locale.FromAcceptLanguage(acceptLanguage)

	if err := (proto.EmulationSetLocaleOverride{Locale: strings.ReplaceAll(primary, "-", "_")}).Call(page); err != nil {
		slog.Debug("locale override failed", "locale", primary, "error", err)
	}
	if err := (proto.EmulationSetTimezoneOverride{TimezoneID: loc.Timezone}).Call(page); err != nil {
		slog.Debug("timezone override failed", "timezone", loc.Timezone, "error", err)
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      engine.ChromeUA,
		AcceptLanguage: acceptLanguage,
	}); err != nil {
		slog.Debug("user agent override failed", "error", err)
	}
	if err := documentHeaders().Call(page); err != nil {
		slog.Debug("extra headers override failed", "error", err)
	}
}

// documentHeaders are sent with every request of the render page, on top of
// the user agent and Accept-Language overrides.
func documentHeaders() proto.NetworkSetExtraHTTPHeaders {
	return proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(map[string]string{
			"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
			"Upgrade-Insecure-Requests": "1",
		}),
	}
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors (useful for optional metadata extraction).
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// categorizeError wraps raw errors into typed ScrapeErrors so the API layer
// can map them to appropriate HTTP status codes. Caller cancellation is
// checked on the parent context so it stays distinct from a navigation
// deadline.
func categorizeError(parent context.Context, err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(parent.Err(), context.Canceled):
		return models.NewScrapeError(models.ErrCodeCanceled, "request canceled", err)
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	default:
		return models.NewScrapeError(models.ErrCodeRenderFailed, msg, err)
	}
}
