package paths

import (
	"net/url"
	"strings"
)

// Dedup removes duplicate entries, keeping the first occurrence of each and
// preserving order. Running it twice yields the same result as once.
func Dedup[T comparable](items []T) []T {
	seen := make(map[T]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

// FileNameFromURL derives a destination file name from the last segment of a
// URL path, split before percent-decoding. Query strings and fragments are
// ignored. It returns false when no usable name exists ("http://host/",
// "http://host/dir/.."). A decoded segment may still contain a separator
// ("a%2Fb.tgz"); callers validate the name before using it.
func FileNameFromURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	var p string
	escaped := false
	if u, err := url.Parse(raw); err == nil {
		p = u.EscapedPath()
		escaped = true
	} else {
		// Not a URL we can parse; treat it as a plain slash-separated path.
		p = raw
		if i := strings.IndexAny(p, "?#"); i >= 0 {
			p = p[:i]
		}
	}

	if p == "" || strings.HasSuffix(p, "/") {
		return "", false
	}
	name := p[strings.LastIndex(p, "/")+1:]
	if escaped {
		var err error
		if name, err = url.PathUnescape(name); err != nil {
			return "", false
		}
	}
	switch name {
	case "", ".", "..":
		return "", false
	}
	return name, true
}
