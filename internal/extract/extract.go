// Package extract pulls SEO-relevant data out of fetched HTML: metadata,
// main content text, headings, and schema.org JSON-LD blocks.
package extract

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Metadata holds the head-level SEO fields of a page. Absent fields stay
// empty strings.
type Metadata struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	H1            string `json:"h1"`
	Canonical     string `json:"canonical"`
	OGTitle       string `json:"og_title"`
	OGDescription string `json:"og_description"`
	OGType        string `json:"og_type"`
}

// Headings groups heading texts by level, h1 through h6.
type Headings map[string][]string

// PageData is the full extraction result for one page.
type PageData struct {
	Metadata  Metadata `json:"metadata"`
	Content   string   `json:"content"`
	Headings  Headings `json:"headings"`
	Schema    string   `json:"schema,omitempty"`
	WordCount int      `json:"word_count"`
}

// Page parses the HTML once and runs every extractor over it.
func Page(html []byte) (PageData, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return PageData{}, err
	}

	content := contentFromDoc(doc)
	return PageData{
		Metadata:  metadataFromDoc(doc),
		Content:   content,
		Headings:  headingsFromDoc(doc),
		Schema:    schemaFromDoc(doc),
		WordCount: len(strings.Fields(content)),
	}, nil
}

func metadataFromDoc(doc *goquery.Document) Metadata {
	var md Metadata

	md.Title = NormalizeWhitespace(doc.Find("title").First().Text())
	md.H1 = NormalizeWhitespace(doc.Find("h1").First().Text())

	if v, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
		md.Description = NormalizeWhitespace(v)
	}
	if v, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		md.Canonical = strings.TrimSpace(v)
	}
	if v, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok {
		md.OGTitle = NormalizeWhitespace(v)
	}
	if v, ok := doc.Find(`meta[property="og:description"]`).First().Attr("content"); ok {
		md.OGDescription = NormalizeWhitespace(v)
	}
	if v, ok := doc.Find(`meta[property="og:type"]`).First().Attr("content"); ok {
		md.OGType = strings.TrimSpace(v)
	}
	return md
}

// contentFromDoc extracts the main body text of a page. Script, style,
// and chrome elements are stripped first; when a <main>, <article>, or
// div.content container exists, only its text is used.
func contentFromDoc(doc *goquery.Document) string {
	doc.Find("script, style, nav, header, footer, aside, iframe, noscript").Remove()

	sel := doc.Find("main").First()
	if sel.Length() == 0 {
		sel = doc.Find("article").First()
	}
	if sel.Length() == 0 {
		sel = doc.Find("div.content").First()
	}

	var text string
	if sel.Length() > 0 {
		text = joinText(sel)
	} else {
		text = joinText(doc.Find("body"))
	}

	text = CleanHTMLRemnants(text)
	return NormalizeWhitespace(text)
}

// joinText concatenates the text of every descendant text node with
// single-space separators, the way a browser would render inline flow.
func joinText(sel *goquery.Selection) string {
	var b strings.Builder
	sel.Each(func(_ int, s *goquery.Selection) {
		s.Contents().Each(func(_ int, c *goquery.Selection) {
			if goquery.NodeName(c) == "#text" {
				b.WriteString(c.Text())
				b.WriteByte(' ')
				return
			}
			b.WriteString(joinText(c))
			b.WriteByte(' ')
		})
	})
	return b.String()
}

func headingsFromDoc(doc *goquery.Document) Headings {
	h := Headings{}
	for _, level := range []string{"h1", "h2", "h3", "h4", "h5", "h6"} {
		var texts []string
		doc.Find(level).Each(func(_ int, s *goquery.Selection) {
			texts = append(texts, NormalizeWhitespace(s.Text()))
		})
		h[level] = texts
	}
	return h
}

// schemaFromDoc extracts schema.org JSON-LD blocks as a single JSON
// array string. Returns "" when the page carries no parseable block.
func schemaFromDoc(doc *goquery.Document) string {
	var schemas []json.RawMessage
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		if !json.Valid([]byte(raw)) {
			return
		}
		schemas = append(schemas, json.RawMessage(raw))
	})
	if len(schemas) == 0 {
		return ""
	}
	out, err := json.Marshal(schemas)
	if err != nil {
		return ""
	}
	return string(out)
}
