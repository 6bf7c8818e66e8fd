package scraper

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/use-agent/rankscope/config"
	"github.com/use-agent/rankscope/models"
)

// Scraper manages the headless browser behind the render fallback.
// It is safe for concurrent use.
type Scraper struct {
	browser     *rod.Browser
	slots       rod.Pool[rod.Browser]
	browserCfg  config.BrowserConfig
	activePages atomic.Int32
	startTime   time.Time
}

// NewScraper launches a headless browser. Each render runs in its own
// incognito context; at most browserCfg.MaxPages run at once.
func NewScraper(browserCfg config.BrowserConfig) (*Scraper, error) {
	l := newLauncher(browserCfg)

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeRenderUnavailable,
			"failed to launch browser",
			err,
		)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeRenderUnavailable,
			"failed to connect to browser",
			err,
		)
	}

	maxPages := max(browserCfg.MaxPages, 1)
	slog.Info("render slots created", "maxPages", maxPages)

	return &Scraper{
		browser:    browser,
		slots:      rod.NewBrowserPool(maxPages),
		browserCfg: browserCfg,
		startTime:  time.Now(),
	}, nil
}

// newLauncher configures Chrome for short-lived title renders: no
// automation banner, no audio, no throttling of background tabs. Popups
// stay blocked since a render never follows one.
func newLauncher(browserCfg config.BrowserConfig) *launcher.Launcher {
	l := launcher.New().
		Headless(browserCfg.Headless).
		NoSandbox(browserCfg.NoSandbox)

	if browserCfg.BrowserBin != "" {
		l = l.Bin(browserCfg.BrowserBin)
	}
	if browserCfg.DefaultProxy != "" {
		l = l.Proxy(browserCfg.DefaultProxy)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Delete(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-features"), "TranslateUI,MediaRouter")
	l.Set(flags.Flag("mute-audio"))
	// Renders overlap in background tabs; throttled timers would stall
	// the title settle poll.
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))
	return l
}

// Stats returns a snapshot of the render slots' current state.
func (s *Scraper) Stats() models.PoolStats {
	return models.PoolStats{
		MaxPages:    cap(s.slots),
		ActivePages: int(s.activePages.Load()),
		Enabled:     true,
	}
}

// Close kills the browser process.
// Call this on graceful shutdown to prevent zombie Chrome processes.
func (s *Scraper) Close() {
	slog.Info("scraper shutting down: closing browser")
	if err := s.browser.Close(); err != nil {
		slog.Warn("scraper shutdown: browser close failed", "error", err)
	}
	slog.Info("scraper shutdown complete")
}
