package engine_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/rankscope/engine"
	"github.com/use-agent/rankscope/eventlog"
	"github.com/use-agent/rankscope/models"
)

// sleepRecorder captures backoff delays without waiting.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func TestReaderRequestShape(t *testing.T) {
	t.Parallel()

	seen := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Clone(context.Background())
		_, _ = w.Write([]byte("<html><title>ok</title></html>"))
	}))
	defer srv.Close()

	e := engine.NewReaderEngine(srv.URL, 3)
	res, err := e.Fetch(context.Background(), &engine.FetchRequest{
		URL:            "https://www.amazon.co.jp/gp/bestsellers/kitchen",
		AcceptLanguage: "ja-JP,ja;q=0.9",
	})
	require.NoError(t, err)

	assert.Equal(t, "<html><title>ok</title></html>", res.Body)
	got := <-seen
	assert.Equal(t, "/https://www.amazon.co.jp/gp/bestsellers/kitchen", got.URL.Path)
	assert.Equal(t, "_lang=ja-JP", got.URL.RawQuery)
	assert.Equal(t, engine.RespondHTML, got.Header.Get("x-respond-with"))
	assert.Equal(t, "ja-JP,ja;q=0.9", got.Header.Get("Accept-Language"))
}

func TestReaderKeepsTargetQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		target    string
		al        string
		wantPath  string
		wantQuery string
	}{
		{
			name:      "semicolon separated subjects",
			target:    "https://www.wildberries.ru/catalog/produkty/konservatsiya?sort=popular&xsubject=3418;5678",
			al:        "ru-RU,ru;q=0.9",
			wantPath:  "/https://www.wildberries.ru/catalog/produkty/konservatsiya",
			wantQuery: "sort=popular&xsubject=3418;5678&_lang=ru-RU",
		},
		{
			name:      "parameter order kept",
			target:    "https://www.trendyol.com/sirali-urunler?type=bestSeller&categoryId=105500",
			al:        "tr-TR",
			wantPath:  "/https://www.trendyol.com/sirali-urunler",
			wantQuery: "type=bestSeller&categoryId=105500&_lang=tr-TR",
		},
		{
			name:      "dangling question mark",
			target:    "https://example.com/best?",
			al:        "en-US",
			wantPath:  "/https://example.com/best",
			wantQuery: "_lang=en-US",
		},
		{
			name:      "no language leaves query alone",
			target:    "https://example.com/best?b=2&a=1",
			wantPath:  "/https://example.com/best",
			wantQuery: "b=2&a=1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			seen := make(chan *http.Request, 1)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen <- r.Clone(context.Background())
				_, _ = w.Write([]byte("ok"))
			}))
			defer srv.Close()

			_, err := engine.NewReaderEngine(srv.URL, 1).Fetch(context.Background(),
				&engine.FetchRequest{URL: tt.target, AcceptLanguage: tt.al})
			require.NoError(t, err)

			got := <-seen
			assert.Equal(t, tt.wantPath, got.URL.Path)
			assert.Equal(t, tt.wantQuery, got.URL.RawQuery)
		})
	}
}

func TestReaderMarkdownWithoutLanguage(t *testing.T) {
	t.Parallel()

	seen := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Clone(context.Background())
		_, _ = w.Write([]byte("# Title"))
	}))
	defer srv.Close()

	res, err := engine.NewReaderEngine(srv.URL, 3).FetchMarkdown(context.Background(),
		&engine.FetchRequest{URL: "https://example.com/a"})
	require.NoError(t, err)
	assert.Equal(t, "# Title", res.Body)
	got := <-seen
	assert.Equal(t, engine.RespondMarkdown, got.Header.Get("x-respond-with"))
	assert.Empty(t, got.URL.RawQuery)
}

func TestReaderRateLimitBackoff(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"retryAfter": 5}`))
			return
		}
		_, _ = w.Write([]byte("body"))
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	ring := eventlog.NewRing(16)
	e := engine.NewReaderEngine(srv.URL, 3, engine.WithReaderSleep(rec.sleep), engine.WithReaderSink(ring))

	res, err := e.Fetch(context.Background(), &engine.FetchRequest{URL: "https://example.com/x"})
	require.NoError(t, err)
	assert.Equal(t, "body", res.Body)
	assert.EqualValues(t, 2, calls.Load())

	require.Len(t, rec.delays, 1)
	assert.GreaterOrEqual(t, rec.delays[0], 5*time.Second)
	assert.Less(t, rec.delays[0], 5*time.Second+400*time.Millisecond)

	var names []string
	for _, ev := range ring.Snapshot() {
		names = append(names, ev.Name)
	}
	assert.Equal(t, []string{"reader:request", "reader:rate-limit", "reader:request", "reader:success"}, names)
}

func TestReaderPersistentServerErrorExhausts(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	e := engine.NewReaderEngine(srv.URL, 3, engine.WithReaderSleep(rec.sleep))

	_, err := e.Fetch(context.Background(), &engine.FetchRequest{URL: "https://example.com/x"})
	require.Error(t, err)

	var se *engine.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.Status)
	assert.EqualValues(t, 3, calls.Load())

	require.Len(t, rec.delays, 2)
	assert.GreaterOrEqual(t, rec.delays[0], 600*time.Millisecond)
	assert.Less(t, rec.delays[0], 900*time.Millisecond)
	assert.GreaterOrEqual(t, rec.delays[1], 1200*time.Millisecond)
	assert.Less(t, rec.delays[1], 1500*time.Millisecond)
}

func TestReaderClientErrorIsFinal(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := engine.NewReaderEngine(srv.URL, 3).Fetch(context.Background(), &engine.FetchRequest{URL: "https://example.com/x"})
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestReaderNetworkErrorRetries(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	rec := &sleepRecorder{}
	_, err := engine.NewReaderEngine(base, 3, engine.WithReaderSleep(rec.sleep)).
		Fetch(context.Background(), &engine.FetchRequest{URL: "https://example.com/x"})
	require.Error(t, err)
	assert.False(t, models.IsCanceled(err))

	require.Len(t, rec.delays, 2)
	assert.GreaterOrEqual(t, rec.delays[0], 700*time.Millisecond)
	assert.GreaterOrEqual(t, rec.delays[1], 1400*time.Millisecond)
}

func TestReaderCancellationIsImmediate(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.NewReaderEngine(srv.URL, 3).Fetch(ctx, &engine.FetchRequest{URL: "https://example.com/x"})
	require.Error(t, err)
	assert.True(t, models.IsCanceled(err))
	assert.Zero(t, calls.Load())
}

func TestReaderCanceledMidFlight(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		cancel()
		<-r.Context().Done()
	}))
	defer srv.Close()

	_, err := engine.NewReaderEngine(srv.URL, 3).Fetch(ctx, &engine.FetchRequest{URL: "https://example.com/x"})
	require.Error(t, err)
	assert.True(t, models.IsCanceled(err))
	assert.EqualValues(t, 1, calls.Load())
}

func TestReaderRejectsEmptyURL(t *testing.T) {
	t.Parallel()

	_, err := engine.NewReaderEngine("http://unused", 3).Fetch(context.Background(), &engine.FetchRequest{})
	var se *models.ScrapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, models.ErrCodeInvalidInput, se.Code)
}

func TestRetryAfter(t *testing.T) {
	t.Parallel()

	tests := map[string]time.Duration{
		`{"retryAfter": 5}`:   5 * time.Second,
		`{"retryAfter": 0.2}`: 1500 * time.Millisecond,
		`{"retryAfter": 90}`:  15 * time.Second,
		`{}`:                  2 * time.Second,
		`not json`:            2 * time.Second,
	}
	for body, want := range tests {
		assert.Equal(t, want, engine.RetryAfter(body), body)
	}
}
