package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/rankscope/api"
	"github.com/use-agent/rankscope/config"
	"github.com/use-agent/rankscope/eventlog"
	"github.com/use-agent/rankscope/models"
)

type fakePipeline struct {
	result   models.TitleResult
	err      error
	html     string
	method   string
	fetchErr error
	gotURL   string
	gotAL    string
}

func (f *fakePipeline) Run(_ context.Context, rawURL, acceptLanguage string) (models.TitleResult, error) {
	f.gotURL, f.gotAL = rawURL, acceptLanguage
	return f.result, f.err
}

func (f *fakePipeline) FetchHTML(_ context.Context, rawURL, _ string) (string, string, error) {
	f.gotURL = rawURL
	return f.html, f.method, f.fetchErr
}

type fakeFetcher struct {
	body   string
	err    error
	gotURL string
	gotAL  string
}

func (f *fakeFetcher) ProxyFetch(_ context.Context, targetURL, acceptLanguage string) (string, error) {
	f.gotURL, f.gotAL = targetURL, acceptLanguage
	return f.body, f.err
}

type fakeRenderer struct {
	title string
	err   error
}

func (f *fakeRenderer) RenderTitle(context.Context, string, string) (string, error) {
	return f.title, f.err
}

type fakeStats models.PoolStats

func (f fakeStats) Stats() models.PoolStats { return models.PoolStats(f) }

func testConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{Mode: gin.TestMode},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
		Pipeline:  config.PipelineConfig{EventLogCapacity: 10},
	}
}

func do(t *testing.T, h http.Handler, method, target, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		stats  *fakeStats
		status string
	}{
		{"rendering disabled", nil, "healthy"},
		{"idle pool", &fakeStats{MaxPages: 4, ActivePages: 1, Enabled: true}, "healthy"},
		{"busy pool", &fakeStats{MaxPages: 4, ActivePages: 4, Enabled: true}, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := api.Deps{}
			if tt.stats != nil {
				deps.Stats = *tt.stats
			}
			r := api.NewRouter(testConfig(), deps, time.Now())

			w := do(t, r, http.MethodGet, "/api/v1/health", "")
			require.Equal(t, http.StatusOK, w.Code)
			got := decode[models.HealthResponse](t, w)
			assert.Equal(t, tt.status, got.Status)
			assert.NotEmpty(t, got.Version)
		})
	}
}

func TestTitle(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{result: models.TitleResult{Title: "Best sellers in Garden", Method: models.MethodRule, RunID: "r1"}}
	r := api.NewRouter(testConfig(), api.Deps{Pipeline: p}, time.Now())

	w := do(t, r, http.MethodPost, "/api/v1/title", `{"url":"https://example.com/best-sellers/garden","accept_language":"en-GB"}`)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[models.TitleResponse](t, w)
	assert.True(t, got.Success)
	assert.Equal(t, "Best sellers in Garden", got.Title)
	assert.Equal(t, models.MethodRule, got.Method)
	assert.Equal(t, "r1", got.RunID)
	assert.Equal(t, "https://example.com/best-sellers/garden", p.gotURL)
	assert.Equal(t, "en-GB", p.gotAL)
}

func TestTitleErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"malformed json", `{`, nil, http.StatusBadRequest, models.ErrCodeInvalidInput},
		{"missing url", `{}`, nil, http.StatusBadRequest, models.ErrCodeInvalidInput},
		{"not a url", `{"url":"garden"}`, nil, http.StatusBadRequest, models.ErrCodeInvalidInput},
		{
			"canceled",
			`{"url":"https://example.com/x"}`,
			models.NewScrapeError(models.ErrCodeCanceled, "request canceled", context.Canceled),
			499, models.ErrCodeCanceled,
		},
		{
			"caller deadline",
			`{"url":"https://example.com/x"}`,
			models.NewScrapeError(models.ErrCodeTimeout, "deadline", context.DeadlineExceeded),
			http.StatusGatewayTimeout, models.ErrCodeTimeout,
		},
		{
			"untyped error",
			`{"url":"https://example.com/x"}`,
			errors.New("boom"),
			http.StatusInternalServerError, models.ErrCodeInternal,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := api.NewRouter(testConfig(), api.Deps{Pipeline: &fakePipeline{err: tt.err}}, time.Now())

			w := do(t, r, http.MethodPost, "/api/v1/title", tt.body)
			assert.Equal(t, tt.wantCode, w.Code)
			got := decode[models.TitleResponse](t, w)
			assert.False(t, got.Success)
			require.NotNil(t, got.Error)
			assert.Equal(t, tt.wantErr, got.Error.Code)
		})
	}
}

const simplePage = `<html><head><title>Amazon Best Sellers</title></head><body><ul>
<li><a href="/dp/X1"><span>Alpha Phone Case</span></a><span aria-label="1,234 ratings"></span></li>
<li><a href="/dp/X5">Gamma Cable</a></li>
</ul></body></html>`

func TestRanking(t *testing.T) {
	t.Parallel()

	t.Run("supplied html", func(t *testing.T) {
		p := &fakePipeline{}
		r := api.NewRouter(testConfig(), api.Deps{Pipeline: p}, time.Now())

		body, err := json.Marshal(models.RankingRequest{URL: "https://www.amazon.com/gp/bestsellers", HTML: simplePage, Variant: models.VariantSimple})
		require.NoError(t, err)
		w := do(t, r, http.MethodPost, "/api/v1/ranking", string(body))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		got := decode[models.RankingResponse](t, w)
		assert.Equal(t, "request", got.Source)
		assert.Equal(t, models.VariantSimple, got.Variant)
		require.NotNil(t, got.Simple)
		require.Len(t, got.Simple.Items, 2)
		assert.Equal(t, "Alpha Phone Case", got.Simple.Items[0].Name)
		assert.Empty(t, p.gotURL, "no fetch when html is supplied")
	})

	t.Run("fetched html", func(t *testing.T) {
		p := &fakePipeline{html: simplePage, method: models.MethodDirect}
		r := api.NewRouter(testConfig(), api.Deps{Pipeline: p}, time.Now())

		w := do(t, r, http.MethodPost, "/api/v1/ranking", `{"url":"https://www.amazon.com/gp/bestsellers"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		got := decode[models.RankingResponse](t, w)
		assert.Equal(t, models.MethodDirect, got.Source)
		assert.Equal(t, models.VariantStructured, got.Variant)
		require.NotNil(t, got.Structured)
		assert.Nil(t, got.JSON)
		assert.Equal(t, "https://www.amazon.com/gp/bestsellers", p.gotURL)
	})

	t.Run("nothing fetched", func(t *testing.T) {
		r := api.NewRouter(testConfig(), api.Deps{Pipeline: &fakePipeline{}}, time.Now())

		w := do(t, r, http.MethodPost, "/api/v1/ranking", `{"url":"https://www.amazon.com/gp/bestsellers","variant":"json"}`)
		assert.Equal(t, http.StatusBadGateway, w.Code)
		got := decode[models.RankingResponse](t, w)
		require.NotNil(t, got.Error)
		assert.Equal(t, models.ErrCodeUpstream, got.Error.Code)
	})

	t.Run("unknown variant", func(t *testing.T) {
		r := api.NewRouter(testConfig(), api.Deps{Pipeline: &fakePipeline{}}, time.Now())

		w := do(t, r, http.MethodPost, "/api/v1/ranking", `{"url":"https://www.amazon.com/gp/bestsellers","variant":"xml"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestContent(t *testing.T) {
	t.Parallel()

	const page = `<html><head><title>Kitchen Guide</title></head><body>
		<nav>Home</nav><article><h2>Kettles</h2><p>Pick a <a href="/k">kettle</a>.</p></article></body></html>`

	t.Run("supplied html with markdown", func(t *testing.T) {
		p := &fakePipeline{}
		r := api.NewRouter(testConfig(), api.Deps{Pipeline: p}, time.Now())

		body, err := json.Marshal(models.ContentRequest{URL: "https://shop.example.com/guide", HTML: page, IncludeMarkdown: true})
		require.NoError(t, err)
		w := do(t, r, http.MethodPost, "/api/v1/content", string(body))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		got := decode[models.ContentResponse](t, w)
		assert.Equal(t, "Kitchen Guide", got.Title)
		assert.Equal(t, "article", got.Locator)
		assert.Equal(t, "request", got.Source)
		assert.Contains(t, got.Text, "Pick a kettle.")
		assert.NotContains(t, got.Text, "Home")
		assert.Contains(t, got.Markdown, "https://shop.example.com/k")
		assert.Empty(t, p.gotURL)
	})

	t.Run("fetched html", func(t *testing.T) {
		p := &fakePipeline{html: page, method: models.MethodReader}
		r := api.NewRouter(testConfig(), api.Deps{Pipeline: p}, time.Now())

		w := do(t, r, http.MethodPost, "/api/v1/content", `{"url":"https://shop.example.com/guide"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		got := decode[models.ContentResponse](t, w)
		assert.Equal(t, models.MethodReader, got.Source)
		assert.Empty(t, got.Markdown)
	})

	t.Run("fetch canceled", func(t *testing.T) {
		p := &fakePipeline{fetchErr: models.NewScrapeError(models.ErrCodeCanceled, "gone", context.Canceled)}
		r := api.NewRouter(testConfig(), api.Deps{Pipeline: p}, time.Now())

		w := do(t, r, http.MethodPost, "/api/v1/content", `{"url":"https://shop.example.com/guide"}`)
		assert.Equal(t, 499, w.Code)
	})

	t.Run("nothing fetched", func(t *testing.T) {
		r := api.NewRouter(testConfig(), api.Deps{Pipeline: &fakePipeline{}}, time.Now())

		w := do(t, r, http.MethodPost, "/api/v1/content", `{"url":"https://shop.example.com/guide"}`)
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}

func TestLogs(t *testing.T) {
	t.Parallel()

	ring := eventlog.NewRing(10)
	ring.Record("pipeline:start", map[string]any{"url": "https://example.com"})
	ring.Record("pipeline:result", map[string]any{"method": "rule"})
	r := api.NewRouter(testConfig(), api.Deps{Events: ring}, time.Now())

	w := do(t, r, http.MethodGet, "/api/v1/logs", "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[models.LogsResponse](t, w)
	assert.Equal(t, 10, got.Capacity)
	require.Len(t, got.Events, 2)
	assert.Equal(t, "pipeline:start", got.Events[0].Name)
	assert.Equal(t, "pipeline:result", got.Events[1].Name)

	w = do(t, r, http.MethodDelete, "/api/v1/logs", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Zero(t, ring.Len())
}

func TestProxyFetch(t *testing.T) {
	t.Parallel()

	t.Run("missing url", func(t *testing.T) {
		r := api.NewRouter(testConfig(), api.Deps{Fetcher: &fakeFetcher{}}, time.Now())

		w := do(t, r, http.MethodGet, "/proxy-fetch", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Missing url", w.Body.String())
	})

	t.Run("relays body", func(t *testing.T) {
		f := &fakeFetcher{body: "<title>Garden</title>"}
		r := api.NewRouter(testConfig(), api.Deps{Fetcher: f}, time.Now())

		w := do(t, r, http.MethodGet, "/proxy-fetch?url=https%3A%2F%2Fexample.com%2Fa%3Fb%3D1&al=ja-JP", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "<title>Garden</title>", w.Body.String())
		assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
		assert.Equal(t, "https://example.com/a?b=1", f.gotURL)
		assert.Equal(t, "ja-JP", f.gotAL)
	})

	t.Run("upstream failure", func(t *testing.T) {
		f := &fakeFetcher{err: errors.New("dial tcp: connection refused")}
		r := api.NewRouter(testConfig(), api.Deps{Fetcher: f}, time.Now())

		w := do(t, r, http.MethodGet, "/proxy-fetch?url=https://example.com", "")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "dial tcp: connection refused", w.Body.String())
	})

	t.Run("refused target", func(t *testing.T) {
		f := &fakeFetcher{err: fmt.Errorf("httpfetch: request failed: %w",
			models.NewScrapeError(models.ErrCodeInvalidInput, "httpfetch: 127.0.0.1 is a loopback or private address", nil))}
		r := api.NewRouter(testConfig(), api.Deps{Fetcher: f}, time.Now())

		w := do(t, r, http.MethodGet, "/proxy-fetch?url=http://127.0.0.1:6379/", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "loopback or private")
	})
}

func TestRenderTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		renderer  *fakeRenderer
		query     string
		wantCode  int
		wantTitle string
		wantError string
	}{
		{"missing url", &fakeRenderer{}, "", http.StatusBadRequest, "", "Missing url"},
		{"disabled", nil, "?url=https://example.com", http.StatusNotImplemented, "", "Browser unavailable"},
		{
			"browser missing",
			&fakeRenderer{err: models.NewScrapeError(models.ErrCodeRenderUnavailable, "no chromium", nil)},
			"?url=https://example.com", http.StatusNotImplemented, "", "Browser unavailable",
		},
		{
			"render failure",
			&fakeRenderer{err: errors.New("navigation failed")},
			"?url=https://example.com", http.StatusInternalServerError, "", "Render error",
		},
		{"ok", &fakeRenderer{title: "Garden Tools"}, "?url=https://example.com", http.StatusOK, "Garden Tools", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := api.Deps{}
			if tt.renderer != nil {
				deps.Renderer = tt.renderer
			}
			r := api.NewRouter(testConfig(), deps, time.Now())

			w := do(t, r, http.MethodGet, "/render-title"+tt.query, "")
			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, tt.wantTitle, decode[models.RenderTitleResponse](t, w).Title)
				return
			}
			assert.Equal(t, tt.wantError, decode[models.RenderErrorResponse](t, w).Error)
		})
	}
}

func TestAuth(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Auth = config.AuthConfig{Enabled: true, APIKeys: []string{"secret"}}
	p := &fakePipeline{result: models.TitleResult{Title: "Garden", Method: models.MethodDirect}}
	r := api.NewRouter(cfg, api.Deps{Pipeline: p}, time.Now())
	body := `{"url":"https://example.com/garden"}`

	w := do(t, r, http.MethodPost, "/api/v1/title", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, r, http.MethodPost, "/api/v1/title", body, "X-API-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, models.ErrCodeUnauthorized, decode[models.ErrorResponse](t, w).Error.Code)

	w = do(t, r, http.MethodPost, "/api/v1/title", body, "Authorization", "Bearer secret")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}
	r := api.NewRouter(cfg, api.Deps{Pipeline: &fakePipeline{}}, time.Now())

	w := do(t, r, http.MethodGet, "/api/v1/logs", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodGet, "/api/v1/logs", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, models.ErrCodeRateLimited, decode[models.ErrorResponse](t, w).Error.Code)
}
