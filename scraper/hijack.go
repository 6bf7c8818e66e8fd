package scraper

import (
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// configToProto maps human-readable config strings to Rod protocol resource types.
var configToProto = map[string]proto.NetworkResourceType{
	"Image":      proto.NetworkResourceTypeImage,
	"Stylesheet": proto.NetworkResourceTypeStylesheet,
	"Font":       proto.NetworkResourceTypeFont,
	"Media":      proto.NetworkResourceTypeMedia,
	"Script":     proto.NetworkResourceTypeScript,
}

// trackerDomains are dropped while rendering when BlockAds is enabled.
// Marketplace pages load these alongside the listing; none of them feeds
// the title.
var trackerDomains = buildDomainSet(
	// analytics and tag managers
	"google-analytics.com", "googletagmanager.com", "googletagservices.com",
	"hotjar.com", "mixpanel.com", "segment.io", "segment.com",
	"scorecardresearch.com", "chartbeat.com", "optimizely.com",
	// retail ad exchanges and retargeting
	"doubleclick.net", "googlesyndication.com", "googleadservices.com",
	"amazon-adsystem.com", "criteo.com", "criteo.net", "rtbhouse.com",
	"adnxs.com", "adsrvr.org", "pubmatic.com", "rubiconproject.com",
	"taboola.com", "outbrain.com", "bidswitch.net", "demdex.net",
	// social pixels
	"connect.facebook.net", "analytics.tiktok.com", "ads-twitter.com",
	"ct.pinterest.com",
	// regional counters (ru, tr, br marketplaces)
	"mc.yandex.ru", "top-fwz1.mail.ru", "vk.com",
	"insider.com.tr", "useinsider.com",
	// consent frames
	"consensu.org", "cookielaw.org",
)

func buildDomainSet(domains ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		set[d] = struct{}{}
	}
	return set
}

// isTracker reports whether host or any of its parent domains is listed.
func isTracker(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	for host != "" {
		if _, ok := trackerDomains[host]; ok {
			return true
		}
		i := strings.IndexByte(host, '.')
		if i < 0 {
			return false
		}
		host = host[i+1:]
	}
	return false
}

// resourceBlockSet maps configured resource type names to their protocol
// values. Unknown names are ignored.
func resourceBlockSet(names []string) map[proto.NetworkResourceType]struct{} {
	blocked := make(map[proto.NetworkResourceType]struct{}, len(names))
	for _, name := range names {
		if rt, ok := configToProto[name]; ok {
			blocked[rt] = struct{}{}
		}
	}
	return blocked
}

// shouldBlock decides one intercepted request.
func shouldBlock(blocked map[proto.NetworkResourceType]struct{}, blockTrackers bool, rt proto.NetworkResourceType, rawURL string) bool {
	if _, ok := blocked[rt]; ok {
		return true
	}
	if !blockTrackers {
		return false
	}
	u, err := url.Parse(rawURL)
	return err == nil && isTracker(u.Hostname())
}

// setupHijack installs a request interceptor on the render page. Document
// and script requests always pass so the title cascade sees the same DOM a
// visitor would.
//
// Returns the running HijackRouter so the caller can defer router.Stop().
// Returns nil if there is nothing to block.
func setupHijack(page *rod.Page, blockedTypes []string, blockTrackers bool) *rod.HijackRouter {
	blocked := resourceBlockSet(blockedTypes)
	delete(blocked, proto.NetworkResourceTypeScript)
	if len(blocked) == 0 && !blockTrackers {
		return nil
	}

	router := page.HijackRequests()
	_ = router.Add("*", "", func(ctx *rod.Hijack) {
		if shouldBlock(blocked, blockTrackers, ctx.Request.Type(), ctx.Request.URL().String()) {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// router.Run() blocks until router.Stop().
	go router.Run()

	return router
}
