package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"report_spider/internal/classify"
	"report_spider/internal/fetch"
	"report_spider/internal/models"
	urlqueue "report_spider/internal/url_queue"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Page, error)
}

type SiteCrawler struct {
	fetcher  Fetcher
	maxLinks int
	logger   *zap.Logger
	now      func() time.Time
}

func NewSiteCrawler(fetcher Fetcher, maxLinks int, logger *zap.Logger) *SiteCrawler {
	if maxLinks <= 0 {
		maxLinks = 15
	}
	return &SiteCrawler{fetcher: fetcher, maxLinks: maxLinks, logger: logger, now: time.Now}
}

const maxContacts = 3

var (
	reEmail = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	rePhone = regexp.MustCompile(`(?:\+61\s?|\b0)[2-9](?:\s?\d){8}\b|\b1[38]00\s?\d{3}\s?\d{3}\b|\b13\s?\d{2}\s?\d{2}\b|\(0\d\)\s?\d{4}\s?\d{4}`)

	placeholderEmailDomains = []string{"example.com", "test.com", "domain.com", "email.com", "sentry.io", "wixpress.com"}
)

const noDescription = "Description not found"

// Crawl fetches one page and returns its metadata and classified links.
// Failures come back inside the result, never as an error.
func (c *SiteCrawler) Crawl(ctx context.Context, pageURL string) models.CrawlResult {
	start := time.Now()
	page, err := c.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		failure := failureFor(pageURL, err)
		c.logger.Warn("site crawl failed",
			zap.String("url", pageURL),
			zap.String("kind", string(failure.Kind)),
			zap.Error(err))
		return models.CrawlResult{Status: "error", Failure: failure, Links: []models.LinkCandidate{}}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return models.CrawlResult{
			Status: "error",
			Links:  []models.LinkCandidate{},
			Failure: &models.CrawlFailure{
				URL:         pageURL,
				Kind:        models.FailureParse,
				Reason:      fmt.Sprintf("could not parse page: %v", err),
				Suggestions: baseSuggestions,
			},
		}
	}

	base, err := url.Parse(page.URL)
	if err != nil {
		base, _ = url.Parse(pageURL)
	}

	meta := ExtractMetadata(doc, string(page.Body), page.URL)
	links := ExtractLinks(doc, base, c.now().Year(), c.maxLinks)

	c.logger.Info("site crawled",
		zap.String("url", page.URL),
		zap.Int("links", len(links)),
		zap.Duration("took", time.Since(start)))

	return models.CrawlResult{Status: "success", Metadata: &meta, Links: links}
}

// ExtractMetadata pulls title, description and contact details off a page.
func ExtractMetadata(doc *goquery.Document, rawHTML, pageURL string) models.SiteMetadata {
	meta := models.SiteMetadata{
		URL:    pageURL,
		Title:  normalizeText(doc.Find("title").First().Text()),
		Emails: []string{},
		Phones: []string{},
	}

	for _, sel := range []string{`meta[name="description"]`, `meta[name="Description"]`, `meta[property="og:description"]`} {
		if content, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(content) != "" {
			meta.Description = normalizeText(content)
			break
		}
	}
	if meta.Description == "" {
		if article, err := ExtractContent(rawHTML, pageURL); err == nil && article.Excerpt != "" {
			meta.Description = article.Excerpt
		}
	}
	if meta.Description == "" {
		meta.Description = noDescription
	}

	text := doc.Text()
	doc.Find(`a[href^="mailto:"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		text += " " + strings.TrimPrefix(href, "mailto:")
	})
	meta.Emails = findEmails(text)
	meta.Phones = findPhones(text)
	return meta
}

func findEmails(text string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, m := range reEmail.FindAllString(text, -1) {
		lower := strings.ToLower(m)
		if seen[lower] || isPlaceholderEmail(lower) {
			continue
		}
		seen[lower] = true
		out = append(out, m)
		if len(out) == maxContacts {
			break
		}
	}
	return out
}

func isPlaceholderEmail(email string) bool {
	for _, d := range placeholderEmailDomains {
		if strings.HasSuffix(email, "@"+d) || strings.HasSuffix(email, "."+d) {
			return true
		}
	}
	return false
}

func findPhones(text string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, m := range rePhone.FindAllString(text, -1) {
		m = strings.TrimSpace(m)
		key := strings.Join(strings.Fields(m), "")
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, m)
		if len(out) == maxContacts {
			break
		}
	}
	return out
}

// ExtractLinks classifies every anchor on the page, drops excluded and
// unrecognised ones, dedupes by URL and keeps the best limit.
func ExtractLinks(doc *goquery.Document, base *url.URL, currentYear, limit int) []models.LinkCandidate {
	links := []models.LinkCandidate{}
	seen := urlqueue.NewURLQueue(0)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		abs, ok := urlqueue.ResolveURL(base, href)
		if !ok {
			return
		}
		title, _ := s.Attr("title")
		cand, ok := classify.Link(abs, s.Text(), title, currentYear)
		if !ok {
			return
		}
		if !seen.Add(abs) {
			return
		}
		links = append(links, cand)
	})

	sort.SliceStable(links, func(i, j int) bool {
		if links[i].Priority != links[j].Priority {
			return links[i].Priority > links[j].Priority
		}
		return links[i].Type < links[j].Type
	})
	if limit > 0 && len(links) > limit {
		links = links[:limit]
	}
	return links
}

var baseSuggestions = []string{
	"Try providing the exact website URL",
	"Check if the company name is spelled correctly",
	"Ensure the company has an online presence",
}

func failureFor(pageURL string, err error) *models.CrawlFailure {
	f := &models.CrawlFailure{URL: pageURL, Kind: models.FailureConnection, Reason: err.Error()}
	suggestions := append([]string{}, baseSuggestions...)

	var fe *fetch.FetchError
	if errors.As(err, &fe) {
		f.StatusCode = fe.StatusCode
		switch fe.Kind {
		case fetch.KindTimeout:
			f.Kind = models.FailureTimeout
			f.Reason = "the website took too long to respond"
		case fetch.KindHTTPStatus:
			f.Kind = models.FailureHTTPStatus
			f.Reason = fmt.Sprintf("the website answered HTTP %d", fe.StatusCode)
			if fe.StatusCode == http.StatusForbidden || fe.StatusCode == http.StatusTooManyRequests {
				suggestions = append(suggestions, "Some websites block automated requests - this is normal")
			}
		case fetch.KindBlocked:
			f.Kind = models.FailureBlocked
			f.Reason = "the website served a bot challenge"
			suggestions = append(suggestions, "Some websites block automated requests - this is normal")
		case fetch.KindConnection:
			f.Reason = "could not connect to the website"
		case fetch.KindTooLarge:
			f.Kind = models.FailureParse
			f.Reason = "the page was too large to process"
		}
	}
	f.Suggestions = suggestions
	return f
}
