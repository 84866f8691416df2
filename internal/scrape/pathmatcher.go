package scrape

import (
	"net/url"
	"path"
	"strings"
)

// defaultExcludePatterns skip documents and media that never carry
// contact details worth parsing.
var defaultExcludePatterns = []string{
	"/*.pdf",
	"/*.jpg",
	"/*.jpeg",
	"/*.png",
	"/*.zip",
	"/blog/*",
	"/noticias/*",
	"/wp-content/*",
}

// PathMatcher filters URLs based on glob-style path patterns.
// A pattern like "/blog/*" also matches multi-level paths such as
// "/blog/deep/path"; "/*.pdf" matches the extension at any depth.
type PathMatcher struct {
	patterns []string
}

// NewPathMatcher creates a PathMatcher from glob patterns.
// Falls back to default patterns if none are provided.
func NewPathMatcher(patterns []string) *PathMatcher {
	if len(patterns) == 0 {
		patterns = defaultExcludePatterns
	}
	return &PathMatcher{patterns: patterns}
}

// Patterns returns the configured patterns.
func (m *PathMatcher) Patterns() []string {
	return m.patterns
}

// IsExcluded checks whether a URL matches any exclude pattern. Unparseable
// URLs are excluded.
func (m *PathMatcher) IsExcluded(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	p := strings.ToLower(u.Path)
	for _, pattern := range m.patterns {
		if matchSegmented(strings.ToLower(pattern), p) {
			return true
		}
	}
	return false
}

func matchSegmented(pattern, urlPath string) bool {
	if ok, _ := path.Match(pattern, urlPath); ok {
		return true
	}
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		return urlPath == prefix || strings.HasPrefix(urlPath, prefix+"/")
	}
	// "/*.ext" matches the extension in any directory.
	if ext, ok := strings.CutPrefix(pattern, "/*."); ok && !strings.ContainsAny(ext, "*?[/") {
		return strings.HasSuffix(urlPath, "."+ext)
	}
	return false
}
