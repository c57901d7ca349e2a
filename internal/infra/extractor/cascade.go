// Package extractor turns raw HTML into an entity.Preview.
//
// Extraction is an ordered cascade of strategies. Each strategy reads one
// metadata convention and the first one that yields a title, image or price
// wins; its result is returned as-is, never merged with later tiers:
//
//  1. OpenGraph (og:* and product:price:* meta tags)
//  2. Twitter Card (twitter:* meta tags, price scanned from twitter:data1)
//  3. oEmbed discovery link present (page <title> and first <img>)
//  4. Generic HTML heuristics (<title>, first image, "price"-tagged element)
//
// Extraction is pure: no I/O, no logging, no shared state. Malformed markup
// degrades to a preview with every optional field absent, never to an error.
package extractor

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"centscape-preview/internal/domain/entity"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// bodyTextLimit is how many characters of body text the generic tier scans
// when no price-tagged element exists.
const bodyTextLimit = 1000

// Strategy names, in cascade order.
const (
	StrategyOpenGraph = "opengraph"
	StrategyTwitter   = "twitter"
	StrategyOEmbed    = "oembed"
	StrategyGeneric   = "generic"
)

// strategy is one cascade tier. run returns nil when the tier does not apply.
type strategy struct {
	name string
	run  func(p *page) *entity.Preview
}

// cascade is the fixed tier order. The generic tier always produces a result.
var cascade = []strategy{
	{name: StrategyOpenGraph, run: openGraph},
	{name: StrategyTwitter, run: twitterCard},
	{name: StrategyOEmbed, run: oEmbed},
	{name: StrategyGeneric, run: generic},
}

// Extractor runs the cascade. The zero value is ready to use.
type Extractor struct{}

// New returns an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract returns the preview of rawHTML, which was served at sourceURL.
func (e *Extractor) Extract(rawHTML, sourceURL string) *entity.Preview {
	preview, _ := e.ExtractWithStrategy(rawHTML, sourceURL)
	return preview
}

// ExtractWithStrategy is Extract that also reports which tier produced the
// result.
func (e *Extractor) ExtractWithStrategy(rawHTML, sourceURL string) (*entity.Preview, string) {
	p := newPage(rawHTML, sourceURL)

	for _, s := range cascade {
		result := s.run(p)
		if result == nil {
			continue
		}
		if result.HasSignal() || s.name == StrategyGeneric {
			result.SourceURL = sourceURL
			return result, s.name
		}
	}

	// generic は必ず結果を返すので到達しない
	return &entity.Preview{SourceURL: sourceURL}, StrategyGeneric
}

// page is the parsed input shared by every strategy.
type page struct {
	doc  *goquery.Document
	meta map[string]string
	base *url.URL
	host *string
}

func newPage(rawHTML, sourceURL string) *page {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		// x/net/html は壊れた HTML でもほぼ失敗しないが、念のため空文書で続行
		doc = goquery.NewDocumentFromNode(&html.Node{Type: html.DocumentNode})
	}

	p := &page{doc: doc, meta: indexMeta(doc)}
	if u, err := url.Parse(strings.TrimSpace(sourceURL)); err == nil && u.IsAbs() {
		p.base = u
		p.host = entity.OptionalText(u.Hostname())
	}
	return p
}

// indexMeta maps lower-cased meta property/name keys to the first non-empty
// content value seen in document order.
func indexMeta(doc *goquery.Document) map[string]string {
	meta := make(map[string]string)
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		content, ok := s.Attr("content")
		if !ok || strings.TrimSpace(content) == "" {
			return
		}
		for _, attr := range []string{"property", "name"} {
			key, ok := s.Attr(attr)
			if !ok {
				continue
			}
			key = strings.ToLower(strings.TrimSpace(key))
			if _, seen := meta[key]; key != "" && !seen {
				meta[key] = content
			}
		}
	})
	return meta
}

// firstMeta returns the first present value among keys.
func (p *page) firstMeta(keys ...string) string {
	for _, k := range keys {
		if v, ok := p.meta[k]; ok {
			return v
		}
	}
	return ""
}

// imageURL trims raw and resolves it against the page URL.
func (p *page) imageURL(raw string) *string {
	trimmed := entity.OptionalText(raw)
	if trimmed == nil || p.base == nil {
		return trimmed
	}
	resolved, err := p.base.Parse(*trimmed)
	if err != nil {
		return trimmed
	}
	return entity.OptionalText(resolved.String())
}

// title returns the text of the first <title> element.
func (p *page) title() *string {
	return entity.OptionalText(p.doc.Find("title").First().Text())
}

// ───────────────────────────────────────────────────────────
// strategies
// ───────────────────────────────────────────────────────────

func openGraph(p *page) *entity.Preview {
	siteName := entity.OptionalText(p.meta["og:site_name"])
	if siteName == nil {
		siteName = p.host
	}

	return &entity.Preview{
		Title:    entity.OptionalText(p.meta["og:title"]),
		Image:    p.imageURL(p.firstMeta("og:image", "og:image:url", "og:image:secure_url")),
		Price:    parsePlainPrice(p.firstMeta("product:price:amount", "og:price:amount")),
		Currency: entity.OptionalCurrency(p.firstMeta("product:price:currency", "og:price:currency")),
		SiteName: siteName,
	}
}

func twitterCard(p *page) *entity.Preview {
	price, currency := ScanPrice(p.meta["twitter:data1"])

	return &entity.Preview{
		Title:    entity.OptionalText(p.meta["twitter:title"]),
		Image:    p.imageURL(p.firstMeta("twitter:image", "twitter:image:src")),
		Price:    price,
		Currency: currency,
		SiteName: p.host,
	}
}

func oEmbed(p *page) *entity.Preview {
	found := false
	p.doc.Find("link[type]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		typ, _ := s.Attr("type")
		href, _ := s.Attr("href")
		if strings.EqualFold(strings.TrimSpace(typ), "application/json+oembed") && strings.TrimSpace(href) != "" {
			found = true
			return false
		}
		return true
	})
	if !found {
		return nil
	}

	src, _ := p.doc.Find("img").First().Attr("src")
	return &entity.Preview{
		Title:    p.title(),
		Image:    p.imageURL(src),
		SiteName: p.host,
	}
}

func generic(p *page) *entity.Preview {
	// Whitespace inside a price element still suppresses the body scan.
	text := priceElementText(p.doc)
	if text == "" {
		text = truncateRunes(visibleText(p.doc.Find("body").Nodes), bodyTextLimit)
	}
	price, currency := ScanPrice(text)

	return &entity.Preview{
		Title:    p.title(),
		Image:    p.imageURL(firstImageSource(p.doc)),
		Price:    price,
		Currency: currency,
		SiteName: p.host,
	}
}

// ───────────────────────────────────────────────────────────
// generic helpers
// ───────────────────────────────────────────────────────────

// firstImageSource returns the first non-empty src (or lazy-load data-src) of
// an <img> in document order.
func firstImageSource(doc *goquery.Document) string {
	var src string
	doc.Find("img").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, attr := range []string{"src", "data-src"} {
			if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
				src = v
				return false
			}
		}
		return true
	})
	return src
}

// priceElementText returns the text of the first element whose class, id or
// data-test* attribute contains "price" (case-insensitive).
func priceElementText(doc *goquery.Document) string {
	var text string
	doc.Find("*").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		n := s.Get(0)
		if skipText(n) {
			return true
		}
		for _, a := range n.Attr {
			key := strings.ToLower(a.Key)
			if key != "class" && key != "id" && !strings.HasPrefix(key, "data-test") {
				continue
			}
			if strings.Contains(strings.ToLower(a.Val), "price") {
				text = s.Text()
				return false
			}
		}
		return true
	})
	return text
}

// visibleText concatenates the text nodes under nodes, skipping script-like
// elements, with single spaces between fragments.
func visibleText(nodes []*html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if skipText(n) {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return strings.Join(parts, " ")
}

// skipText reports whether n holds no visible text.
func skipText(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.Data {
	case "script", "style", "noscript", "template":
		return true
	}
	return false
}

// truncateRunes returns at most limit characters of s.
func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	i := 0
	for pos := range s {
		if i == limit {
			return s[:pos]
		}
		i++
	}
	return s
}
