package rules

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	separatorRun = regexp.MustCompile(`[-_]+`)
	numericID    = regexp.MustCompile(`^\d+$`)
	boilerplate  = regexp.MustCompile(`(?i)^(?:mais\s+vendidos|m[aá]s\s+vendidos|best\s*sellers?|top\s*sellers?|rankings?|popular|zgbs|gp|sirali\s+urunler|sıralı\s+ürünler)(?:\s+|$)`)
)

// LabelFromPath derives a category label from the last meaningful path
// segment. Numeric ids, MLB codes and listing boilerplate words are skipped.
func LabelFromPath(p string) string {
	segs := pathSegments(p)
	for i := len(segs) - 1; i >= 0; i-- {
		seg := segs[i]
		if numericID.MatchString(seg) || meliCode.MatchString(seg) {
			continue
		}
		label := strings.TrimSpace(separatorRun.ReplaceAllString(seg, " "))
		for {
			stripped := strings.TrimSpace(boilerplate.ReplaceAllString(label, ""))
			if stripped == label {
				break
			}
			label = stripped
		}
		label = strings.Join(strings.Fields(label), " ")
		if label != "" && !numericID.MatchString(label) {
			return label
		}
	}
	return ""
}

// TitleFromURL synthesizes a deterministic title from the host and the last
// non-numeric path segment, e.g. "example.com · widgets". It never fails:
// a URL without a usable path yields the bare host, an unparsable one
// yields "Untitled".
func TitleFromURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Hostname() == "" {
		return "Untitled"
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")

	segs := pathSegments(u.Path)
	for i := len(segs) - 1; i >= 0; i-- {
		if numericID.MatchString(segs[i]) {
			continue
		}
		if label := strings.TrimSpace(separatorRun.ReplaceAllString(segs[i], " ")); label != "" {
			return host + " · " + label
		}
	}
	return host
}

func pathSegments(p string) []string {
	if decoded, err := url.PathUnescape(p); err == nil {
		p = decoded
	}
	var segs []string
	for _, s := range strings.Split(p, "/") {
		if s = strings.TrimSpace(s); s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}
