// Package normalize canonicalizes raw traffic-event URLs into the content-path
// keys used to join analytics rows against the catalog. The mapping loader
// builds its patterns in the exact same shape; any divergence between the two
// silently drops matches, so all key construction funnels through here.
package normalize

import (
	"net/url"
	"strings"
)

// Path canonicalizes a raw event URL into a content-path key.
//
// It rejects URLs whose host is neither empty nor the configured content host,
// and paths that do not contain the configured section marker. Query string and
// fragment are stripped and a trailing slash is guaranteed. The empty-host case
// admits already-normalized paths, which makes Path idempotent on its own
// output.
func Path(raw, host, section string) (string, bool) {
	if raw == "" {
		return "", false
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	if parsed.Host != "" && parsed.Host != host {
		return "", false
	}
	// Opaque URLs (mailto:, tel:) parse with a scheme but no host.
	if parsed.Scheme != "" && parsed.Host == "" {
		return "", false
	}

	path := strings.Trim(parsed.Path, "/")
	if !strings.Contains(path, "/"+section+"/") {
		return "", false
	}

	return path + "/", true
}

// Link trims a catalog article link and forces the trailing slash that Path
// output always carries.
func Link(raw string) string {
	link := strings.TrimSpace(raw)
	if !strings.HasSuffix(link, "/") {
		link += "/"
	}
	return link
}

// Pattern builds the mapping key for a catalog article from an already
// normalized link, mirroring Path output exactly.
func Pattern(courseSlug, section, link string) string {
	return courseSlug + "/" + section + "/" + link
}
