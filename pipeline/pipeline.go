// Package pipeline sequences the site rules and acquisition strategies that
// turn a bestseller URL into one sanitized title with a provenance tag.
package pipeline

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/use-agent/rankscope/cleaner"
	"github.com/use-agent/rankscope/config"
	"github.com/use-agent/rankscope/engine"
	"github.com/use-agent/rankscope/eventlog"
	"github.com/use-agent/rankscope/locale"
	"github.com/use-agent/rankscope/models"
	"github.com/use-agent/rankscope/rules"
)

// CategoryLookup resolves a marketplace category code to its display name.
type CategoryLookup interface {
	Lookup(ctx context.Context, code string) (string, error)
}

// Timeouts bounds each acquisition call of one run.
type Timeouts struct {
	Direct   time.Duration
	Reader   time.Duration
	OG       time.Duration
	Category time.Duration
	Render   time.Duration
}

// TimeoutsFrom copies the per-strategy deadlines out of the pipeline config.
func TimeoutsFrom(cfg config.PipelineConfig) Timeouts {
	return Timeouts{
		Direct:   cfg.DirectTimeout,
		Reader:   cfg.ReaderTimeout,
		OG:       cfg.OGTimeout,
		Category: cfg.CategoryTimeout,
		Render:   cfg.RenderTimeout,
	}
}

// DefaultTimeouts are used for any zero field.
var DefaultTimeouts = Timeouts{
	Direct:   12 * time.Second,
	Reader:   25 * time.Second,
	OG:       10 * time.Second,
	Category: 8 * time.Second,
	Render:   25 * time.Second,
}

func (t Timeouts) withDefaults() Timeouts {
	if t.Direct <= 0 {
		t.Direct = DefaultTimeouts.Direct
	}
	if t.Reader <= 0 {
		t.Reader = DefaultTimeouts.Reader
	}
	if t.OG <= 0 {
		t.OG = DefaultTimeouts.OG
	}
	if t.Category <= 0 {
		t.Category = DefaultTimeouts.Category
	}
	if t.Render <= 0 {
		t.Render = DefaultTimeouts.Render
	}
	return t
}

// Orchestrator runs the title strategy ladder. It holds no per-request
// state and is safe for concurrent use as long as its collaborators are.
type Orchestrator struct {
	rules    *rules.Engine
	primary  []engine.Engine
	reader   engine.Engine
	category CategoryLookup
	render   engine.Renderer
	sink     eventlog.Sink
	timeouts Timeouts
	newRunID func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRules replaces the default rule engine.
func WithRules(r *rules.Engine) Option {
	return func(o *Orchestrator) { o.rules = r }
}

// WithPrimary sets the ordered primary engines (direct, then proxy).
func WithPrimary(engines ...engine.Engine) Option {
	return func(o *Orchestrator) { o.primary = engines }
}

// WithReader sets the secondary reader engine.
func WithReader(e engine.Engine) Option {
	return func(o *Orchestrator) { o.reader = e }
}

// WithCategory sets the category lookup API client.
func WithCategory(c CategoryLookup) Option {
	return func(o *Orchestrator) { o.category = c }
}

// WithRenderer sets the headless render fallback.
func WithRenderer(r engine.Renderer) Option {
	return func(o *Orchestrator) { o.render = r }
}

// WithSink records pipeline events.
func WithSink(s eventlog.Sink) Option {
	return func(o *Orchestrator) { o.sink = s }
}

// WithTimeouts overrides the per-strategy deadlines.
func WithTimeouts(t Timeouts) Option {
	return func(o *Orchestrator) { o.timeouts = t }
}

// WithRunID overrides run ID generation.
func WithRunID(fn func() string) Option {
	return func(o *Orchestrator) { o.newRunID = fn }
}

// New creates an Orchestrator. Without options it only runs the rules and
// the URL fallback.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		rules:    rules.Default(),
		sink:     eventlog.Discard,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.sink == nil {
		o.sink = eventlog.Discard
	}
	o.timeouts = o.timeouts.withDefaults()
	return o
}

// run carries the state of one Run call.
type run struct {
	o      *Orchestrator
	id     string
	url    string
	al     string
	held   string
	heldBy string
}

func (r *run) record(event string, fields map[string]any) {
	if fields == nil {
		fields = make(map[string]any, 2)
	}
	fields["run_id"] = r.id
	fields["url"] = r.url
	r.o.sink.Record(event, fields)
}

// hold keeps title as the candidate unless one is already held.
func (r *run) hold(title, method string) {
	if title == "" || r.held != "" {
		return
	}
	r.held, r.heldBy = title, method
	r.record("pipeline:hold", map[string]any{"title": title, "method": method})
}

func (r *run) result(title, method string) models.TitleResult {
	r.record("pipeline:result", map[string]any{"title": title, "method": method})
	return models.TitleResult{Title: title, Method: method, RunID: r.id}
}

// Run resolves the title for rawURL. acceptLanguage defaults to the
// host-derived preference.
//
// Extraction failures never surface as errors: the worst outcome is the
// URL-derived fallback title. Run returns an error only for an invalid URL
// or when ctx ends, in which case the remaining strategies are skipped.
func (o *Orchestrator) Run(ctx context.Context, rawURL, acceptLanguage string) (models.TitleResult, error) {
	rawURL = strings.TrimSpace(rawURL)
	if err := validateURL(rawURL); err != nil {
		return models.TitleResult{}, err
	}
	if acceptLanguage == "" {
		acceptLanguage = locale.AcceptLanguage(rawURL)
	}

	r := &run{o: o, id: o.newRunID(), url: rawURL, al: acceptLanguage}
	r.record("pipeline:start", map[string]any{"accept_language": acceptLanguage})

	// 1. Rules on the URL alone.
	if title, rule := o.rules.Try(rawURL, ""); title != "" {
		r.record("pipeline:rule", map[string]any{"rule": rule, "stage": "url"})
		return r.result(title, models.MethodRule), nil
	}

	// 2. Primary acquisition: rules on the HTML, else hold the best title.
	html, method, err := o.acquirePrimary(ctx, r, o.timeouts.Direct)
	if err != nil {
		return models.TitleResult{}, err
	}
	if html != "" {
		if title, rule := o.rules.Try(rawURL, html); title != "" {
			r.record("pipeline:rule", map[string]any{"rule": rule, "stage": method})
			return r.result(title, models.MethodRule), nil
		}
		r.hold(cleaner.ExtractBestTitle(html), method)
	}

	// 3. Reader service, same treatment.
	if o.reader != nil {
		html, err := o.acquire(ctx, r, o.reader, o.timeouts.Reader)
		if err != nil {
			return models.TitleResult{}, err
		}
		if html != "" {
			if title, rule := o.rules.Try(rawURL, html); title != "" {
				r.record("pipeline:rule", map[string]any{"rule": rule, "stage": o.reader.Name()})
				return r.result(title, models.MethodRule), nil
			}
			r.hold(cleaner.ExtractBestTitle(html), o.reader.Name())
		}
	}

	// 4. Primary again, Open Graph only.
	if r.held == "" {
		html, _, err := o.acquirePrimary(ctx, r, o.timeouts.OG)
		if err != nil {
			return models.TitleResult{}, err
		}
		if html != "" {
			r.hold(cleaner.Sanitize(cleaner.OpenGraphTitle(html)), models.MethodOpenGraph)
		}
	}

	// 5. Category API wins outright.
	if title, err := o.lookupCategory(ctx, r); err != nil {
		return models.TitleResult{}, err
	} else if title != "" {
		return r.result(title, models.MethodMeliAPI), nil
	}

	// 6. Held candidate.
	if r.held != "" {
		return r.result(r.held, r.heldBy), nil
	}

	// 6b. Headless render.
	if title, err := o.renderTitle(ctx, r); err != nil {
		return models.TitleResult{}, err
	} else if title != "" {
		return r.result(title, models.MethodRender), nil
	}

	// 7. URL fallback.
	return r.result(rules.TitleFromURL(rawURL), models.MethodURLFallback), nil
}

// FetchHTML acquires the page markup with the primary engines, then the
// reader. method names the engine that produced it; an empty payload with
// a nil error means every source came back empty.
func (o *Orchestrator) FetchHTML(ctx context.Context, rawURL, acceptLanguage string) (html, method string, err error) {
	rawURL = strings.TrimSpace(rawURL)
	if err := validateURL(rawURL); err != nil {
		return "", "", err
	}
	if acceptLanguage == "" {
		acceptLanguage = locale.AcceptLanguage(rawURL)
	}
	r := &run{o: o, id: o.newRunID(), url: rawURL, al: acceptLanguage}

	html, method, err = o.acquirePrimary(ctx, r, o.timeouts.Direct)
	if err != nil || html != "" || o.reader == nil {
		return html, method, err
	}
	html, err = o.acquire(ctx, r, o.reader, o.timeouts.Reader)
	if err != nil || html == "" {
		return "", "", err
	}
	return html, o.reader.Name(), nil
}

// acquirePrimary returns the first non-empty payload of the primary engines.
func (o *Orchestrator) acquirePrimary(ctx context.Context, r *run, timeout time.Duration) (string, string, error) {
	for _, e := range o.primary {
		html, err := o.acquire(ctx, r, e, timeout)
		if err != nil {
			return "", "", err
		}
		if html != "" {
			return html, e.Name(), nil
		}
	}
	return "", "", nil
}

func (o *Orchestrator) acquire(ctx context.Context, r *run, e engine.Engine, timeout time.Duration) (string, error) {
	start := time.Now()
	html, err := engine.Acquire(ctx, e, &engine.FetchRequest{URL: r.url, AcceptLanguage: r.al}, timeout)
	fields := map[string]any{
		"engine":     e.Name(),
		"elapsed_ms": time.Since(start).Milliseconds(),
	}
	switch {
	case err != nil:
		fields["error"] = err.Error()
		r.record("pipeline:abort", fields)
		return "", err
	case html == "":
		r.record("pipeline:empty", fields)
	default:
		fields["len"] = len(html)
		fields["tags"] = cleaner.Summarize(html).String()
		r.record("pipeline:acquired", fields)
	}
	return html, nil
}

func (o *Orchestrator) lookupCategory(ctx context.Context, r *run) (string, error) {
	if o.category == nil {
		return "", nil
	}
	code := rules.MeliCategoryCode(r.url)
	if code == "" {
		return "", nil
	}

	callCtx, cancel := context.WithTimeout(ctx, o.timeouts.Category)
	defer cancel()
	name, err := o.category.Lookup(callCtx, code)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", abortErr("category", ctxErr)
	}
	if err != nil {
		r.record("pipeline:category-error", map[string]any{"code": code, "error": err.Error()})
		return "", nil
	}
	title := cleaner.Sanitize(locale.Portuguese.Format(name))
	r.record("pipeline:category", map[string]any{"code": code, "name": name})
	return title, nil
}

func (o *Orchestrator) renderTitle(ctx context.Context, r *run) (string, error) {
	if o.render == nil {
		return "", nil
	}

	callCtx, cancel := context.WithTimeout(ctx, o.timeouts.Render)
	defer cancel()
	title, err := o.render.RenderTitle(callCtx, r.url, r.al)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", abortErr(o.render.Name(), ctxErr)
	}
	if err != nil {
		r.record("pipeline:render-error", map[string]any{"renderer": o.render.Name(), "error": err.Error()})
		return "", nil
	}
	return cleaner.Sanitize(title), nil
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return models.NewScrapeError(models.ErrCodeInvalidInput, "missing url", nil)
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return models.NewScrapeError(models.ErrCodeInvalidInput, "invalid url: "+rawURL, err)
	}
	return nil
}

func abortErr(stage string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewScrapeError(models.ErrCodeTimeout, stage+": caller deadline exceeded", err)
	}
	return models.NewScrapeError(models.ErrCodeCanceled, stage+": request canceled", err)
}
