package model

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// DefaultRootPath is the Redfish service root.
const DefaultRootPath = "/redfish/v1"

// ErrInvalidBaseURI is returned when a base URI lacks a scheme or host.
var ErrInvalidBaseURI = errors.New("base URI must include scheme and host")

// ParseBaseURI validates a base URI and returns it without a trailing slash
// or path. Only scheme and authority are kept.
func ParseBaseURI(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBaseURI, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURI, raw)
	}
	return &url.URL{Scheme: strings.ToLower(u.Scheme), Host: strings.ToLower(u.Host)}, nil
}

// NormalizeURL returns the absolute form of p used to decide whether two
// links denote the same resource.
//
// Relative paths are resolved against base. The path is cleaned of repeated
// separators (including a doubled "/" straight after the authority), the
// fragment is dropped, and a trailing "/" is removed unless the path is "/".
// The query string is kept because Redfish uses it for paging ($skip).
func NormalizeURL(base *url.URL, p string) string {
	p = strings.TrimSpace(p)

	var u *url.URL
	if isAbsolute(p) {
		parsed, err := url.Parse(p)
		if err != nil {
			return p
		}
		u = parsed
		u.Scheme = strings.ToLower(u.Scheme)
		u.Host = strings.ToLower(u.Host)
	} else {
		u = &url.URL{}
		if base != nil {
			u.Scheme = base.Scheme
			u.Host = base.Host
		}
		pathPart, query, _ := strings.Cut(p, "?")
		pathPart, _, _ = strings.Cut(pathPart, "#")
		query, _, _ = strings.Cut(query, "#")
		u.Path = pathPart
		u.RawQuery = query
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.RawPath = ""
	u.Path = cleanPath(u.Path)

	return u.String()
}

// RelativePath returns p relative to base: the base prefix is stripped when
// p starts with it, otherwise scheme and authority are stripped so links to
// other hosts still compare by path. The result always starts with "/".
func RelativePath(base *url.URL, p string) string {
	p = strings.TrimSpace(p)

	if base != nil {
		prefix := base.Scheme + "://" + base.Host
		if len(p) >= len(prefix) && strings.EqualFold(p[:len(prefix)], prefix) && authorityEnds(p, len(prefix)) {
			p = p[len(prefix):]
		}
	}

	if isAbsolute(p) {
		if u, err := url.Parse(p); err == nil {
			p = u.EscapedPath()
			if u.RawQuery != "" {
				p += "?" + u.RawQuery
			}
		}
	}

	p, _, _ = strings.Cut(p, "#")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// authorityEnds reports whether the authority of p ends at byte i, so that
// "https://10.0.0.12" is not mistaken for base "https://10.0.0.1".
func authorityEnds(p string, i int) bool {
	if i == len(p) {
		return true
	}
	switch p[i] {
	case '/', '?', '#':
		return true
	}
	return false
}

// TrimPath collapses repeated separators and removes a trailing "/" from a
// relative path. The query string, if any, is left alone.
func TrimPath(p string) string {
	pathPart, query, hasQuery := strings.Cut(p, "?")
	pathPart = cleanPath(pathPart)
	if hasQuery {
		return pathPart + "?" + query
	}
	return pathPart
}

// SameOrigin reports whether p is relative or points at the same scheme and
// host as base.
func SameOrigin(base *url.URL, p string) bool {
	if !isAbsolute(p) {
		return true
	}
	u, err := url.Parse(p)
	if err != nil || base == nil {
		return false
	}
	return strings.EqualFold(u.Scheme, base.Scheme) && strings.EqualFold(u.Host, base.Host)
}

// isAbsolute reports whether p carries a scheme and authority.
func isAbsolute(p string) bool {
	scheme, rest, ok := strings.Cut(p, "://")
	if !ok || scheme == "" || strings.ContainsAny(scheme, "/?#") {
		return false
	}
	return rest != ""
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	var b strings.Builder
	b.Grow(len(p))
	prevSlash := false
	for i := 0; i < len(p); i++ {
		c := p[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteByte(c)
	}
	out := b.String()
	if !strings.HasPrefix(out, "/") {
		out = "/" + out
	}
	if len(out) > 1 {
		out = strings.TrimSuffix(out, "/")
	}
	return out
}
