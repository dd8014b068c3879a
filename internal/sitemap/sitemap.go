// Package sitemap parses sitemap XML documents into page URL lists.
package sitemap

import (
	"encoding/xml"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Result holds the URLs extracted from one sitemap document. Sitemaps lists
// nested sitemap locations when the document is a sitemap index.
type Result struct {
	URLs     []string
	Sitemaps []string
}

// document decodes either a <urlset> or a <sitemapindex> root. Matching is
// by local name, so namespaced and namespace-less sitemaps both parse.
type document struct {
	XMLName  xml.Name
	URLs     []locEntry `xml:"url"`
	Sitemaps []locEntry `xml:"sitemap"`
}

type locEntry struct {
	Loc string `xml:"loc"`
}

// Parse extracts page and nested-sitemap URLs from sitemap XML. Relative
// locations are resolved against baseURL. The returned lists are
// deduplicated with their document order preserved.
func Parse(content []byte, baseURL string) (Result, error) {
	var doc document
	if err := xml.Unmarshal(content, &doc); err != nil {
		return Result{}, fmt.Errorf("parse sitemap xml: %w", err)
	}

	var base *url.URL
	if baseURL != "" {
		parsed, err := url.Parse(baseURL)
		if err == nil {
			base = parsed
		}
	}

	res := Result{
		URLs:     collectLocs(doc.URLs, base),
		Sitemaps: collectLocs(doc.Sitemaps, base),
	}
	return res, nil
}

func collectLocs(entries []locEntry, base *url.URL) []string {
	seen := make(map[string]struct{}, len(entries))
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		loc := strings.TrimSpace(e.Loc)
		if loc == "" {
			continue
		}
		if base != nil {
			if ref, err := url.Parse(loc); err == nil {
				loc = base.ResolveReference(ref).String()
			}
		}
		loc = Normalize(loc)
		if _, ok := seen[loc]; ok {
			continue
		}
		seen[loc] = struct{}{}
		out = append(out, loc)
	}
	return out
}

// Normalize strips fragments and trailing slashes so re-crawls of the same
// page key to one row.
func Normalize(rawURL string) string {
	if i := strings.Index(rawURL, "#"); i >= 0 {
		rawURL = rawURL[:i]
	}
	if strings.HasSuffix(rawURL, "/") && strings.Count(rawURL, "/") > 3 {
		rawURL = strings.TrimSuffix(rawURL, "/")
	}
	return rawURL
}

// Filter keeps URLs matching any include pattern (when given) and drops URLs
// matching any exclude pattern.
func Filter(urls []string, include, exclude []string) ([]string, error) {
	includeRe, err := compileAll(include)
	if err != nil {
		return nil, fmt.Errorf("include patterns: %w", err)
	}
	excludeRe, err := compileAll(exclude)
	if err != nil {
		return nil, fmt.Errorf("exclude patterns: %w", err)
	}

	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if len(includeRe) > 0 && !matchesAny(includeRe, u) {
			continue
		}
		if matchesAny(excludeRe, u) {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", p, err)
		}
		res = append(res, re)
	}
	return res, nil
}

func matchesAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
