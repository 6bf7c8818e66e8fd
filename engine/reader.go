package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/use-agent/rankscope/eventlog"
	"github.com/use-agent/rankscope/locale"
	"github.com/use-agent/rankscope/models"
	"github.com/use-agent/rankscope/retry"
)

// Reader response formats, sent as x-respond-with.
const (
	RespondHTML     = "html"
	RespondMarkdown = "markdown"
)

// langMarker is appended to the target URL when a language is requested so
// the reader service caches each language separately.
const langMarker = "_lang"

// Reader backoff bounds.
const (
	rateLimitDefault = 2 * time.Second
	rateLimitMin     = 1500 * time.Millisecond
	rateLimitMax     = 15 * time.Second
	rateLimitJitter  = 400 * time.Millisecond
	serverBackoff    = 600 * time.Millisecond
	networkBackoff   = 700 * time.Millisecond
	backoffJitter    = 300 * time.Millisecond
)

// ReaderEngine fetches pages through a third-party text-extraction service
// ("GET <base>/<target>") with bounded retries.
//
// Unlike the other engines it surfaces its last error after exhausting
// attempts, so callers can tell "no data" from "service error".
type ReaderEngine struct {
	base        string
	client      *http.Client
	maxAttempts int
	sink        eventlog.Sink
	sleep       func(ctx context.Context, d time.Duration) error
}

// ReaderOption configures a ReaderEngine.
type ReaderOption func(*ReaderEngine)

// WithReaderClient overrides the HTTP client.
func WithReaderClient(c *http.Client) ReaderOption {
	return func(e *ReaderEngine) { e.client = c }
}

// WithReaderSink records reader events.
func WithReaderSink(s eventlog.Sink) ReaderOption {
	return func(e *ReaderEngine) { e.sink = s }
}

// WithReaderSleep overrides the backoff sleep, mainly for tests.
func WithReaderSleep(fn func(ctx context.Context, d time.Duration) error) ReaderOption {
	return func(e *ReaderEngine) { e.sleep = fn }
}

// NewReaderEngine creates a ReaderEngine for the service at base
// (e.g. "https://r.jina.ai"). maxAttempts below 1 defaults to 3.
func NewReaderEngine(base string, maxAttempts int, opts ...ReaderOption) *ReaderEngine {
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	e := &ReaderEngine{
		base:        strings.TrimRight(base, "/"),
		client:      http.DefaultClient,
		maxAttempts: maxAttempts,
		sink:        eventlog.Discard,
		sleep:       retry.Sleep,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *ReaderEngine) Name() string { return models.MethodReader }

// Fetch returns the service's HTML rendition of req.URL.
func (e *ReaderEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	return e.fetch(ctx, req, RespondHTML)
}

// FetchMarkdown returns the service's markdown rendition of req.URL.
func (e *ReaderEngine) FetchMarkdown(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	return e.fetch(ctx, req, RespondMarkdown)
}

func (e *ReaderEngine) fetch(ctx context.Context, req *FetchRequest, respondWith string) (*FetchResult, error) {
	if req == nil || strings.TrimSpace(req.URL) == "" {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "reader: invalid url", nil)
	}
	readerURL := e.base + "/" + encodeTarget(withLangMarker(req.URL, req.AcceptLanguage))

	policy := retry.Policy{
		MaxAttempts: e.maxAttempts,
		Retryable:   readerRetryable,
		Backoff:     readerBackoff,
		Sleep:       e.sleep,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			fields := map[string]any{"url": readerURL, "attempt": attempt, "backoff_ms": delay.Milliseconds()}
			var se *StatusError
			switch {
			case errors.As(err, &se) && se.Status == http.StatusTooManyRequests:
				e.sink.Record("reader:rate-limit", fields)
			case errors.As(err, &se):
				fields["status"] = se.Status
				e.sink.Record("reader:retry", fields)
			default:
				fields["error"] = err.Error()
				e.sink.Record("reader:network-retry", fields)
			}
		},
	}

	res, err := retry.Do(ctx, policy, func(ctx context.Context, attempt int) (*FetchResult, error) {
		e.sink.Record("reader:request", map[string]any{"input_url": req.URL, "respond_with": respondWith, "attempt": attempt})
		return e.once(ctx, readerURL, req, respondWith)
	})
	if err != nil {
		fields := map[string]any{"url": readerURL, "error": err.Error()}
		var se *StatusError
		if errors.As(err, &se) {
			fields["status"] = se.Status
		}
		e.sink.Record("reader:error", fields)
		return nil, err
	}
	e.sink.Record("reader:success", map[string]any{"url": readerURL, "status": res.StatusCode})
	return res, nil
}

func (e *ReaderEngine) once(ctx context.Context, readerURL string, req *FetchRequest, respondWith string) (*FetchResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, readerURL, nil)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "reader: build request", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	httpReq.Header.Set("x-respond-with", respondWith)
	if req.AcceptLanguage != "" {
		httpReq.Header.Set("Accept-Language", req.AcceptLanguage)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("reader: do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("reader: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Engine: "reader", Status: resp.StatusCode, Body: string(body)}
	}
	return &FetchResult{
		Body:       string(body),
		StatusCode: resp.StatusCode,
		FinalURL:   req.URL,
		EngineName: e.Name(),
	}, nil
}

// readerRetryable retries rate limiting, server errors and network failures.
// Other HTTP statuses and input errors are final.
func readerRetryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status == http.StatusTooManyRequests || se.Status >= 500
	}
	var scrape *models.ScrapeError
	return !errors.As(err, &scrape)
}

// readerBackoff computes the delay after a failed attempt.
func readerBackoff(attempt int, err error) time.Duration {
	var se *StatusError
	if errors.As(err, &se) {
		if se.Status == http.StatusTooManyRequests {
			return RetryAfter(se.Body) + retry.Jitter(rateLimitJitter)
		}
		return retry.Linear(serverBackoff, backoffJitter)(attempt, err)
	}
	return retry.Linear(networkBackoff, backoffJitter)(attempt, err)
}

// RetryAfter reads a {"retryAfter": seconds} hint from a 429 body, clamped
// to [1.5s, 15s]. Missing or malformed hints give 2s.
func RetryAfter(body string) time.Duration {
	var hint struct {
		RetryAfter *float64 `json:"retryAfter"`
	}
	if err := json.Unmarshal([]byte(body), &hint); err != nil || hint.RetryAfter == nil {
		return rateLimitDefault
	}
	d := time.Duration(*hint.RetryAfter * float64(time.Second))
	return retry.Clamp(d, rateLimitMin, rateLimitMax)
}

// withLangMarker appends _lang=<primary tag> to target when a language is
// requested. The target's own query is left byte for byte as given; the
// marker goes before any fragment.
func withLangMarker(target, acceptLanguage string) string {
	if acceptLanguage == "" {
		return target
	}
	base, fragment, hasFragment := strings.Cut(target, "#")
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
		if strings.HasSuffix(base, "?") || strings.HasSuffix(base, "&") {
			sep = ""
		}
	}
	out := base + sep + langMarker + "=" + url.QueryEscape(locale.PrimaryTag(acceptLanguage))
	if hasFragment {
		out += "#" + fragment
	}
	return out
}

// encodeTarget percent-encodes characters that are unsafe in a path while
// keeping the URL's own delimiters readable, like JavaScript's encodeURI.
func encodeTarget(target string) string {
	const keep = ";,/?:@&=+$-_.!~*'()#"
	var b strings.Builder
	for i := 0; i < len(target); i++ {
		c := target[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9',
			strings.IndexByte(keep, c) >= 0:
			b.WriteByte(c)
		case c == '%' && i+2 < len(target) && isHex(target[i+1]) && isHex(target[i+2]):
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}
