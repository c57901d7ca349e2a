// Package pathutil maps request paths to bounded metric labels.
package pathutil

import (
	"strings"
)

// OtherLabel is the label for every path outside the served routes. Crawlers
// and scanners hit arbitrary paths; they all collapse into this one label.
const OtherLabel = "other"

// knownRoutes are the exact paths the server registers.
var knownRoutes = map[string]struct{}{
	"/preview": {},
	"/health":  {},
	"/ready":   {},
	"/live":    {},
	"/metrics": {},
}

// prefixRoutes map a path prefix to its label template.
var prefixRoutes = []struct {
	prefix   string
	template string
}{
	{prefix: "/swagger/", template: "/swagger/*"},
}

// NormalizePath returns the metric label for path.
//
// Examples:
//
//	NormalizePath("/preview")               // "/preview"
//	NormalizePath("/preview/")              // "/preview"
//	NormalizePath("/health?verbose=1")      // "/health"
//	NormalizePath("/swagger/index.html")    // "/swagger/*"
//	NormalizePath("/wp-login.php")          // "other"
func NormalizePath(path string) string {
	if idx := strings.IndexByte(path, '?'); idx != -1 {
		path = path[:idx]
	}

	for _, p := range prefixRoutes {
		if strings.HasPrefix(path, p.prefix) {
			return p.template
		}
	}

	if len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}
	if _, ok := knownRoutes[path]; ok {
		return path
	}
	return OtherLabel
}

// GetExpectedCardinality returns the number of distinct labels NormalizePath
// can produce.
func GetExpectedCardinality() int {
	return len(knownRoutes) + len(prefixRoutes) + 1
}
