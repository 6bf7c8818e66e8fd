package scraper

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/rankscope/config"
	"github.com/use-agent/rankscope/models"
)

func TestProxyFetchHeaders(t *testing.T) {
	t.Parallel()

	seen := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Header.Clone()
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("<title>Access Denied</title>"))
	}))
	defer srv.Close()

	body, err := NewFetcher("", WithPrivateTargets()).ProxyFetch(context.Background(), srv.URL+"/gp/bestsellers?x=1", "")
	require.NoError(t, err)
	assert.Equal(t, "<title>Access Denied</title>", body)

	h := <-seen
	assert.Equal(t, "en-US,en;q=0.9", h.Get("Accept-Language"))
	assert.Equal(t, srv.URL, h.Get("Referer"))
	assert.Equal(t, "1", h.Get("Upgrade-Insecure-Requests"))
	assert.Contains(t, h.Get("Accept"), "text/html")
	assert.Contains(t, h.Get("User-Agent"), "Chrome/")
}

func TestProxyFetchInvalidURL(t *testing.T) {
	t.Parallel()

	_, err := NewFetcher("").ProxyFetch(context.Background(), "not a url", "")
	assert.Error(t, err)
}

func TestProxyFetchReusesConnections(t *testing.T) {
	t.Parallel()

	var conns atomic.Int32
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<title>ok</title>"))
	}))
	srv.Config.ConnState = func(_ net.Conn, state http.ConnState) {
		if state == http.StateNew {
			conns.Add(1)
		}
	}
	srv.Start()
	defer srv.Close()

	f := NewFetcher("", WithPrivateTargets())
	for range 3 {
		_, err := f.ProxyFetch(context.Background(), srv.URL, "")
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, conns.Load())
}

func TestProxyFetchRefusesInternalTargets(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	f := NewFetcher("")
	for _, target := range []string{
		srv.URL + "/admin",
		"http://[::1]/",
		"http://10.1.2.3/",
		"http://192.168.0.1/",
		"http://169.254.169.254/latest/meta-data/",
		"http://0.0.0.0/",
	} {
		_, err := f.ProxyFetch(context.Background(), target, "")
		var se *models.ScrapeError
		require.ErrorAs(t, err, &se, target)
		assert.Equal(t, models.ErrCodeInvalidInput, se.Code, target)
	}
	assert.Zero(t, hits.Load())

	_, err := f.ProxyFetch(context.Background(), "file:///etc/passwd", "")
	var se *models.ScrapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, models.ErrCodeInvalidInput, se.Code)
}

func TestRefusePrivateDial(t *testing.T) {
	t.Parallel()

	assert.Error(t, refusePrivateDial("tcp", "127.0.0.1:80", nil))
	assert.Error(t, refusePrivateDial("tcp", "[fe80::1]:443", nil))
	assert.Error(t, refusePrivateDial("tcp", "172.16.5.4:443", nil))
	assert.NoError(t, refusePrivateDial("tcp", "93.184.216.34:443", nil))
	assert.NoError(t, refusePrivateDial("tcp6", "[2606:2800:220:1::1]:443", nil))
}

func TestDocumentHeaders(t *testing.T) {
	t.Parallel()

	h := documentHeaders().Headers
	require.Len(t, h, 2)
	assert.Contains(t, h["Accept"].Str(), "text/html")
	assert.Equal(t, "1", h["Upgrade-Insecure-Requests"].Str())
}

func TestNewLauncherFlags(t *testing.T) {
	t.Parallel()

	l := newLauncher(config.BrowserConfig{Headless: true, DefaultProxy: "http://127.0.0.1:3128"})

	assert.False(t, l.Has(flags.Flag("enable-automation")))
	assert.Equal(t, "AutomationControlled", l.Get(flags.Flag("disable-blink-features")))
	assert.True(t, l.Has(flags.Flag("mute-audio")))
	assert.True(t, l.Has(flags.Flag("disable-background-timer-throttling")))
	assert.False(t, l.Has(flags.Flag("disable-popup-blocking")))
	assert.Equal(t, "http://127.0.0.1:3128", l.Get(flags.Flag("proxy-server")))
}

func TestShouldBlock(t *testing.T) {
	t.Parallel()

	blocked := resourceBlockSet([]string{"Image", "Font", "Bogus"})
	assert.Len(t, blocked, 2)

	assert.True(t, shouldBlock(blocked, false, proto.NetworkResourceTypeImage, "https://cdn.example/a.png"))
	assert.False(t, shouldBlock(blocked, false, proto.NetworkResourceTypeDocument, "https://doubleclick.net/x"))
	assert.True(t, shouldBlock(blocked, true, proto.NetworkResourceTypeScript, "https://pagead2.googlesyndication.com/tag.js"))
	assert.False(t, shouldBlock(blocked, true, proto.NetworkResourceTypeScript, "https://www.amazon.com/app.js"))
}

func TestIsTracker(t *testing.T) {
	t.Parallel()

	assert.True(t, isTracker("doubleclick.net"))
	assert.True(t, isTracker("stats.G.DoubleClick.net"))
	assert.True(t, isTracker("mc.yandex.ru."))
	assert.False(t, isTracker("yandex.ru"))
	assert.False(t, isTracker("www.wildberries.ru"))
	assert.False(t, isTracker("notdoubleclick.net"))
	assert.False(t, isTracker(""))
}

func TestCategorizeError(t *testing.T) {
	t.Parallel()

	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, models.ErrCodeCanceled, categorizeError(canceled, errors.New("x"), "nav").Code)
	assert.Equal(t, models.ErrCodeTimeout, categorizeError(context.Background(), context.DeadlineExceeded, "nav").Code)
	assert.Equal(t, models.ErrCodeRenderFailed, categorizeError(context.Background(), errors.New("x"), "nav").Code)
}
