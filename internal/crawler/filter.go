package crawler

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/nao1215/redfishscan/internal/model"
)

// ErrInvalidPattern is returned when a filter pattern holds a malformed glob segment.
var ErrInvalidPattern = errors.New("invalid filter pattern")

// MatchAll is the pattern that accepts every path.
const MatchAll = "*"

// Filter decides whether a discovered path is in scope for a crawl.
//
// Both the candidate and the pattern are reduced to base-relative form and
// split on "/". Empty segments (from a trailing or doubled slash) are
// skipped, so "/a/b/" and "/a/b" compare equal. Each pattern segment is a
// path.Match glob, so "*" and "Account*" both work.
//
// Match compares only up to the shorter of the two segment lists. This keeps
// the ancestors of a target in scope (pattern "/a/b/*" accepts "/a") and
// accepts any descendant of a match (pattern "/a/*" accepts "/a/b/c/d").
// MatchFull additionally requires equal segment counts.
//
// A Filter is immutable and safe for concurrent use.
type Filter struct {
	// pattern is the pattern as given by the caller.
	pattern string

	// segments holds the non-empty pattern segments.
	segments []string

	// root is the trimmed relative form of the crawl root.
	root string

	// base is the target's base URI, used to compute relative forms.
	base *url.URL

	// matchAll is set for "*" and the empty pattern.
	matchAll bool
}

// NewFilter compiles pattern for a crawl rooted at root against base.
// An empty pattern is treated as MatchAll.
func NewFilter(pattern, root string, base *url.URL) (*Filter, error) {
	f := &Filter{
		pattern: pattern,
		base:    base,
		root:    relativeKey(base, root),
	}

	trimmed := strings.TrimSpace(pattern)
	if trimmed == "" || trimmed == MatchAll {
		f.matchAll = true
		f.pattern = MatchAll
		return f, nil
	}

	f.segments = splitSegments(relativeKey(base, trimmed))
	for _, seg := range f.segments {
		if _, err := path.Match(seg, ""); err != nil {
			return nil, fmt.Errorf("%w: segment %q of %q: %w", ErrInvalidPattern, seg, pattern, err)
		}
	}
	return f, nil
}

// Pattern returns the pattern the filter was built from.
func (f *Filter) Pattern() string {
	return f.pattern
}

// IsRoot reports whether candidate is the crawl root.
func (f *Filter) IsRoot(candidate string) bool {
	return relativeKey(f.base, candidate) == f.root
}

// Match reports whether candidate is in scope. The crawl root always is.
func (f *Filter) Match(candidate string) bool {
	if f.IsRoot(candidate) || f.matchAll {
		return true
	}
	segs := splitSegments(relativeKey(f.base, candidate))
	n := min(len(segs), len(f.segments))
	return matchSegments(f.segments[:n], segs[:n])
}

// MatchFull reports whether candidate matches every pattern segment and has
// no extra segments. The action runner uses it to pick targets without
// their ancestors or descendants.
func (f *Filter) MatchFull(candidate string) bool {
	if f.matchAll {
		return true
	}
	segs := splitSegments(relativeKey(f.base, candidate))
	if len(segs) != len(f.segments) {
		return false
	}
	return matchSegments(f.segments, segs)
}

func matchSegments(patterns, segs []string) bool {
	for i, p := range patterns {
		ok, err := path.Match(p, segs[i])
		if err != nil || !ok {
			return false
		}
	}
	return true
}

// relativeKey returns the base-relative path of p without query string,
// repeated separators or trailing slash.
func relativeKey(base *url.URL, p string) string {
	rel := model.RelativePath(base, p)
	rel, _, _ = strings.Cut(rel, "?")
	return model.TrimPath(rel)
}

// splitSegments splits p on "/" and drops empty segments.
func splitSegments(p string) []string {
	parts := strings.Split(p, "/")
	segs := parts[:0]
	for _, s := range parts {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}
