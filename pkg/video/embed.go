// Package video normalizes external video references into embeddable URLs.
package video

import (
	"net/url"
	"strings"
)

// ResolveEmbedURL rewrites known provider "watch" URLs into their embeddable
// form. Unrecognized hosts pass through unchanged; input that does not parse
// as an absolute URL resolves to ("", false) rather than an error, so a bad
// reference degrades to "no playable embed" for the caller.
func ResolveEmbedURL(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return "", false
	}

	host := strings.ToLower(parsed.Hostname())

	if strings.HasSuffix(host, "youtube.com") {
		if id := parsed.Query().Get("v"); id != "" {
			return "https://www.youtube.com/embed/" + id, true
		}
		return raw, true
	}

	if host == "youtu.be" {
		return "https://www.youtube.com/embed" + parsed.Path, true
	}

	// Vimeo links embed as-is.
	if strings.HasSuffix(host, "vimeo.com") {
		return raw, true
	}

	return raw, true
}
