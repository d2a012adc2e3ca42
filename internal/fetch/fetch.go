// Package fetch implements the generic HTML article fetcher the Source
// Scheduler drives per registered source. There are no per-site parsers;
// this package exposes one concrete, selector-based extractor behind the
// Scraper interface.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"newsradar/internal/core"
)

// FetchedArticle is the raw result of scraping one link, before it is turned
// into a core.QueueMessage and published to the work queue.
type FetchedArticle struct {
	URL         string
	Title       string
	Content     string
	PublishedAt time.Time
}

// Scraper fetches the current set of articles available at a source. One
// concrete implementation, Generic, is provided.
type Scraper interface {
	// Name identifies the scraper for logging and source-lookup purposes.
	Name() string
	// Fetch returns the articles currently available at the source's listing
	// page(s). Context carries the scheduler's per-tick run deadline.
	Fetch(ctx context.Context) ([]FetchedArticle, error)
}

// Generic is a goquery-based scraper that extracts a listing page's article
// links, then fetches and cleans each one. It is rate-limited so a single
// misbehaving source cannot monopolise the scheduler's HTTP budget.
type Generic struct {
	SourceName   string
	ListingURL   string
	LinkSelector string // CSS selector yielding anchor tags on the listing page
	HTTPClient   *http.Client
	Limiter      *rate.Limiter
}

// NewGeneric builds a Generic scraper with sane defaults: a 10s HTTP client
// timeout and a token-bucket limiter of 1 request/second, burst 3.
func NewGeneric(sourceName, listingURL, linkSelector string) *Generic {
	return &Generic{
		SourceName:   sourceName,
		ListingURL:   listingURL,
		LinkSelector: linkSelector,
		HTTPClient:   &http.Client{Timeout: 10 * time.Second},
		Limiter:      rate.NewLimiter(rate.Limit(1), 3),
	}
}

// Name implements Scraper.
func (g *Generic) Name() string { return g.SourceName }

// Fetch implements Scraper: it loads the listing page, collects candidate
// article URLs via LinkSelector, then fetches and extracts each one.
func (g *Generic) Fetch(ctx context.Context) ([]FetchedArticle, error) {
	links, err := g.listingLinks(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: listing: %w", g.SourceName, err)
	}

	var articles []FetchedArticle
	for _, link := range links {
		if err := g.Limiter.Wait(ctx); err != nil {
			return articles, fmt.Errorf("fetch %s: rate limiter: %w", g.SourceName, err)
		}
		article, err := g.fetchOne(ctx, link)
		if err != nil {
			// Per-article failures do not abort the rest of the listing.
			continue
		}
		articles = append(articles, article)
	}
	return articles, nil
}

func (g *Generic) listingLinks(ctx context.Context) ([]string, error) {
	body, err := g.get(ctx, g.ListingURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}

	seen := make(map[string]bool)
	var links []string
	doc.Find(g.LinkSelector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" || seen[href] {
			return
		}
		seen[href] = true
		links = append(links, resolveURL(g.ListingURL, href))
	})
	return links, nil
}

func (g *Generic) fetchOne(ctx context.Context, url string) (FetchedArticle, error) {
	body, err := g.get(ctx, url)
	if err != nil {
		return FetchedArticle{}, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return FetchedArticle{}, fmt.Errorf("parse article html: %w", err)
	}

	return FetchedArticle{
		URL:         url,
		Title:       extractTitle(doc),
		Content:     extractContent(doc),
		PublishedAt: time.Now().UTC(),
	}, nil
}

func (g *Generic) get(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status code %d for %s", resp.StatusCode, url)
	}
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(bodyBytes), nil
}

func resolveURL(base, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	u, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return u.ResolveReference(ref).String()
}

// extractTitle tries common title locations, falling back through head
// title, OpenGraph title, and the first h1.
func extractTitle(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find("head title").First().Text()); t != "" {
		return t
	}
	if og, _ := doc.Find("meta[property='og:title']").Attr("content"); strings.TrimSpace(og) != "" {
		return strings.TrimSpace(og)
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

var nonContentSelector = "script, style, nav, footer, header, aside, form, iframe, noscript, " +
	".sidebar, #sidebar, .ad, .advertisement, .popup, .modal, .cookie-banner"

var contentSelectors = []string{
	"article", "main", ".main-content", ".entry-content", ".post-content",
	".post-body", ".article-body", "[role='main']", ".content", "#content",
}

// extractContent removes boilerplate elements, then concatenates the text of
// paragraph-like elements under the first matching content container,
// falling back to the whole document body.
func extractContent(doc *goquery.Document) string {
	doc.Find(nonContentSelector).Remove()

	var b strings.Builder
	for _, selector := range contentSelectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			appendBlocks(&b, s)
		})
		if b.Len() > 0 {
			break
		}
	}
	if b.Len() == 0 {
		appendBlocks(&b, doc.Find("body"))
	}
	return strings.TrimSpace(b.String())
}

func appendBlocks(b *strings.Builder, s *goquery.Selection) {
	s.Find("p, h1, h2, h3, h4, h5, h6, li, blockquote, pre").Each(func(_ int, item *goquery.Selection) {
		text := strings.TrimSpace(item.Text())
		if text == "" {
			return
		}
		b.WriteString(text)
		b.WriteString("\n\n")
	})
}

// ToQueueMessage builds the wire message the Source Scheduler publishes for
// a fetched article.
func ToQueueMessage(sourceName string, a FetchedArticle) core.QueueMessage {
	return core.QueueMessage{
		SourceName:  sourceName,
		URL:         a.URL,
		Title:       a.Title,
		Content:     a.Content,
		PublishedAt: a.PublishedAt.Format(time.RFC3339),
	}
}
