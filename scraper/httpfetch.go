package scraper

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"

	"github.com/use-agent/rankscope/engine"
	"github.com/use-agent/rankscope/locale"
	"github.com/use-agent/rankscope/models"
)

// maxProxyBody caps the body relayed by ProxyFetch.
const maxProxyBody = 10 * 1024 * 1024

// Fetcher performs the server-side request behind the /proxy-fetch
// endpoint: a Chrome TLS fingerprint and a realistic header set.
//
// Targets resolving to loopback, private, link-local or unspecified
// addresses are refused unless WithPrivateTargets is given.
type Fetcher struct {
	client       *http.Client
	resolver     *net.Resolver
	allowPrivate bool
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithPrivateTargets lets the Fetcher reach internal addresses.
func WithPrivateTargets() FetcherOption {
	return func(f *Fetcher) { f.allowPrivate = true }
}

// NewFetcher creates a Fetcher. defaultProxy may be an http(s) proxy URL,
// or empty. The client is shared by every ProxyFetch call.
func NewFetcher(defaultProxy string, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{resolver: net.DefaultResolver}
	for _, opt := range opts {
		opt(f)
	}

	dialer := &net.Dialer{Timeout: 10 * time.Second}
	// Through a proxy the dialed address is the proxy's own, so only the
	// pre-flight host check applies there.
	if !f.allowPrivate && defaultProxy == "" {
		dialer.Control = refusePrivateDial
	}
	f.client = engine.NewChromeClientDialer(defaultProxy, dialer)
	return f
}

// ProxyFetch retrieves targetURL and returns its body whatever the upstream
// status, mirroring what a browser would have received. acceptLanguage
// defaults to English when empty.
func (f *Fetcher) ProxyFetch(ctx context.Context, targetURL, acceptLanguage string) (string, error) {
	target, err := url.Parse(targetURL)
	if err != nil || target.Host == "" || (target.Scheme != "http" && target.Scheme != "https") {
		return "", models.NewScrapeError(models.ErrCodeInvalidInput, fmt.Sprintf("httpfetch: invalid url %q", targetURL), err)
	}
	if !f.allowPrivate {
		if err := f.checkHost(ctx, target.Hostname()); err != nil {
			return "", err
		}
	}
	if acceptLanguage == "" {
		acceptLanguage = locale.English.AcceptLanguage
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return "", fmt.Errorf("httpfetch: build request: %w", err)
	}
	req.Header.Set("User-Agent", engine.ChromeUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", acceptLanguage)
	req.Header.Set("Referer", target.Scheme+"://"+target.Host)
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("httpfetch: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProxyBody))
	if err != nil {
		return "", fmt.Errorf("httpfetch: read body: %w", err)
	}
	return string(body), nil
}

// checkHost resolves host and refuses it when any address is internal.
func (f *Fetcher) checkHost(ctx context.Context, host string) error {
	if ip := net.ParseIP(host); ip != nil {
		if isInternalIP(ip) {
			return privateTargetErr(host)
		}
		return nil
	}
	addrs, err := f.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return fmt.Errorf("httpfetch: resolve %q: %w", host, err)
	}
	for _, a := range addrs {
		if isInternalIP(a.IP) {
			return privateTargetErr(host)
		}
	}
	return nil
}

// refusePrivateDial vets the resolved address of every connection, which
// also covers redirects and hosts that re-resolve after checkHost.
func refusePrivateDial(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	if ip := net.ParseIP(host); ip != nil && isInternalIP(ip) {
		return privateTargetErr(host)
	}
	return nil
}

func isInternalIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsInterfaceLocalMulticast()
}

func privateTargetErr(host string) *models.ScrapeError {
	return models.NewScrapeError(models.ErrCodeInvalidInput,
		fmt.Sprintf("httpfetch: %s is a loopback or private address", host), nil)
}
