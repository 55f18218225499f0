package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"report_spider/internal/config"
	"report_spider/internal/fetch"
	"report_spider/internal/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const bankHome = `<!doctype html>
<html><head>
<title> Example Bank | Home </title>
<meta name="description" content="Banking for Australians">
</head><body>
<nav>
  <a href="/investors/">Investor Centre</a>
  <a href="/investors/annual-report-2024.pdf">2024 Annual Report</a>
  <a href="/investors/annual-report-2024.pdf#page=2">Annual report (again)</a>
  <a href="/support/financial-hardship.html">Financial Hardship Support</a>
  <a href="/home-loans">Home loans</a>
  <a href="/about-us">About us</a>
  <a href="mailto:investors@examplebank.com.au">Email IR</a>
  <a href="mailto:someone@example.com">placeholder</a>
  <a href="#top">Top</a>
</nav>
<footer>Call 13 2221 or +61 2 9999 9999 or 0298765432</footer>
</body></html>`

func testCrawler(t *testing.T) *SiteCrawler {
	cfg := config.Default().Logic
	cfg.PageTimeoutSec = 2
	c := NewSiteCrawler(fetch.New(cfg, zaptest.NewLogger(t)), 15, zaptest.NewLogger(t))
	c.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	return c
}

func TestCrawlClassifiesLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(bankHome))
	}))
	defer srv.Close()

	res := testCrawler(t).Crawl(context.Background(), srv.URL)
	require.Equal(t, "success", res.Status)
	require.NotNil(t, res.Metadata)
	assert.Nil(t, res.Failure)

	assert.Equal(t, "Example Bank | Home", res.Metadata.Title)
	assert.Equal(t, "Banking for Australians", res.Metadata.Description)
	assert.Equal(t, []string{"investors@examplebank.com.au"}, res.Metadata.Emails)
	assert.Len(t, res.Metadata.Phones, 3)

	require.Len(t, res.Links, 3)
	assert.Equal(t, srv.URL+"/investors/annual-report-2024.pdf", res.Links[0].URL)
	assert.Equal(t, models.DocAnnualReport, res.Links[0].Type)
	assert.Equal(t, 12, res.Links[0].Priority)
	assert.Equal(t, 2024, res.Links[0].Year)
	assert.Equal(t, models.DocInvestorRelations, res.Links[1].Type)
	assert.Equal(t, models.DocAboutCompany, res.Links[2].Type)

	for _, l := range res.Links {
		assert.NotContains(t, strings.ToLower(l.URL), "hardship")
		assert.True(t, strings.HasPrefix(l.URL, "http"))
	}
}

func TestExtractLinksTruncatesAndSorts(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 20; i++ {
		b.WriteString(`<a href="/reports/r` + string(rune('a'+i)) + `">Reports</a>`)
	}
	b.WriteString(`<a href="/governance">Corporate Governance</a>`)
	b.WriteString("</body></html>")

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(b.String()))
	require.NoError(t, err)
	base, _ := url.Parse("https://example.com.au/")

	links := ExtractLinks(doc, base, 2026, 15)
	require.Len(t, links, 15)
	assert.Equal(t, models.DocGovernance, links[0].Type)
	for i := 1; i < len(links); i++ {
		assert.GreaterOrEqual(t, links[i-1].Priority, links[i].Priority)
	}
}

func TestExtractMetadataFallsBackToPlaceholder(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><head><title>x</title></head><body></body></html>"))
	require.NoError(t, err)
	meta := ExtractMetadata(doc, "<html><head><title>x</title></head><body></body></html>", "https://example.com.au")
	assert.Equal(t, noDescription, meta.Description)
	assert.Empty(t, meta.Emails)
	assert.Empty(t, meta.Phones)
}

func TestCrawlFailureIsStructured(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	res := testCrawler(t).Crawl(context.Background(), srv.URL)
	assert.Equal(t, "error", res.Status)
	assert.Empty(t, res.Links)
	require.NotNil(t, res.Failure)
	assert.Equal(t, models.FailureHTTPStatus, res.Failure.Kind)
	assert.Equal(t, http.StatusForbidden, res.Failure.StatusCode)
	assert.Contains(t, res.Failure.Suggestions, "Some websites block automated requests - this is normal")
	assert.Contains(t, res.Failure.Suggestions, "Try providing the exact website URL")
}

func TestCrawlConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	res := testCrawler(t).Crawl(context.Background(), addr)
	require.NotNil(t, res.Failure)
	assert.Equal(t, models.FailureConnection, res.Failure.Kind)
	assert.NotEmpty(t, res.Failure.Reason)
}
