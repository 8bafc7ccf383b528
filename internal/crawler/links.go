package crawler

import "github.com/nao1215/redfishscan/internal/document"

// Link keys recognized by ExtractLinks. Matching is case-sensitive.
const (
	KeyODataID = "@odata.id"
	KeyHref    = "href"
)

// isLinkKey reports whether key names a resource identifier.
func isLinkKey(key string) bool {
	return key == KeyODataID || key == KeyHref
}

// ExtractLinks returns every string stored under an "@odata.id" or "href"
// member anywhere in v.
//
// The walk is depth-first: object members in encounter order, array elements
// in index order. Duplicates are kept; deduplication belongs to the engine's
// visited set. A non-string value under a link key is walked like any other
// container, and scalars end the walk.
func ExtractLinks(v *document.Value) []string {
	links := make([]string, 0)
	return appendLinks(links, v)
}

func appendLinks(links []string, v *document.Value) []string {
	switch v.Kind() {
	case document.KindObject:
		for _, m := range v.Members() {
			if isLinkKey(m.Key) {
				if s, ok := m.Value.Str(); ok {
					links = append(links, s)
					continue
				}
			}
			links = appendLinks(links, m.Value)
		}
	case document.KindArray:
		for _, e := range v.Elements() {
			links = appendLinks(links, e)
		}
	}
	return links
}
