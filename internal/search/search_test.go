package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"report_spider/internal/config"
	"report_spider/internal/models"
	urlqueue "report_spider/internal/url_queue"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestBuildQueries(t *testing.T) {
	qs := BuildQueries("Commonwealth Bank", "commbank.com.au", 2024, 2026)
	require.Len(t, qs, 5)
	assert.Equal(t, `"Commonwealth Bank" annual report 2024 filetype:pdf site:commbank.com.au`, qs[0])
	for _, q := range qs {
		assert.Contains(t, q, "site:commbank.com.au")
		assert.Contains(t, q, "2024")
	}

	qs = BuildQueries("Commonwealth Bank", "commbank.com.au", 0, 2026)
	require.Len(t, qs, 5)
	assert.Equal(t, "annual report 2025 filetype:pdf site:commbank.com.au", qs[0])
	assert.Equal(t, "annual report 2024 filetype:pdf site:commbank.com.au", qs[1])

	qs = BuildQueries("Acme Pty Ltd", "", 0, 2026)
	require.Len(t, qs, 5)
	for _, q := range qs {
		assert.NotContains(t, q, "site:")
		assert.Contains(t, q, `"Acme Pty Ltd"`)
	}

	qs = BuildQueries("Acme Pty Ltd", "", 2023, 2026)
	require.Len(t, qs, 4)
	assert.Equal(t, `"Acme Pty Ltd" annual report 2023 filetype:pdf australia`, qs[0])
}

func TestFilterStaleYear(t *testing.T) {
	accepted, rejections := Filter([]models.SearchResult{
		{Title: "Annual Report 2018", URL: "https://www.commbank.com.au/ar-2018.pdf"},
		{Title: "Annual Report 2024", URL: "https://www.commbank.com.au/ar-2024.pdf"},
	}, "commbank.com.au")

	require.Len(t, accepted, 1)
	assert.Equal(t, "https://www.commbank.com.au/ar-2024.pdf", accepted[0].URL)
	require.Len(t, rejections, 1)
	assert.Contains(t, rejections[0].Reason, "before 2020")
}

func TestFilterDomainContainment(t *testing.T) {
	results := []models.SearchResult{
		{Title: "CBA annual report", URL: "https://www.commbank.com.au/annual-report.pdf"},
		{Title: "CBA annual report mirror", URL: "https://www.asx.com.au/cba-annual-report.pdf"},
		{Title: "Trick", URL: "https://commbank.com.au.evil.io/annual-report.pdf"},
		{Title: "Investor centre", URL: "https://investors.commbank.com.au/"},
		{Title: "Home loans", URL: "https://www.commbank.com.au/home-loans.html"},
		{Title: "CBA annual report", URL: "https://commbank.com.au/annual-report.pdf#p2"},
	}
	accepted, rejections := Filter(results, "commbank.com.au")

	for _, r := range accepted {
		assert.True(t, urlqueue.HostWithin(r.URL, "commbank.com.au"), r.URL)
	}
	assert.Len(t, accepted, 2)
	assert.Len(t, rejections, len(results)-len(accepted))

	reasons := map[string]string{}
	for _, r := range rejections {
		reasons[r.URL] = r.Reason
	}
	assert.Contains(t, reasons["https://www.asx.com.au/cba-annual-report.pdf"], "off-domain")
	assert.Equal(t, "no financial signal in title or url", reasons["https://www.commbank.com.au/home-loans.html"])
	assert.Equal(t, "duplicate url", reasons["https://commbank.com.au/annual-report.pdf#p2"])
}

func TestFilterOpenWebKeepsAnyHost(t *testing.T) {
	accepted, _ := Filter([]models.SearchResult{
		{Title: "Acme annual report 2024", URL: "https://acme.com.au/ar.pdf"},
		{Title: "Acme on ASX", URL: "https://www.asx.com.au/acme-report"},
	}, "")
	assert.Len(t, accepted, 2)
}

func TestParseDuckDuckGo(t *testing.T) {
	html := `<html><body>
<div class="result results_links"><a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fwww.acme.com.au%2Far-2024.pdf&rut=abc">Acme 2024 Annual Report</a>
<a class="result__snippet">Our annual report</a></div>
<div class="result results_links"><a class="result__a" href="https://acme.com.au/investors">Investors</a></div>
<div class="result results_links"><a class="result__a" href="https://acme.com.au/third">Third</a></div>
</body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	rs := parseDuckDuckGo(doc, "q", 2)
	require.Len(t, rs, 2)
	assert.Equal(t, "https://www.acme.com.au/ar-2024.pdf", rs[0].URL)
	assert.Equal(t, "Our annual report", rs[0].Snippet)
	assert.Equal(t, 1, rs[0].Rank)
	assert.Equal(t, 2, rs[1].Rank)
}

type serpResult struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
}

func newSerpServer(t *testing.T, calls *int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		q := r.URL.Query()
		assert.Equal(t, "google", q.Get("engine"))
		assert.Equal(t, "au", q.Get("gl"))
		assert.Equal(t, "en", q.Get("hl"))
		assert.Equal(t, "test-key", q.Get("api_key"))

		query := q.Get("q")
		switch {
		case strings.HasPrefix(query, "investor relations"):
			w.Write([]byte("{not json"))
			return
		case strings.HasPrefix(query, "financial statements"):
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"organic_results": []serpResult{
				{1, "CBA Annual Report 2024", "https://www.commbank.com.au/content/dam/annual-report-2024.pdf", "2024 annual report"},
				{2, "CBA Annual Report 2018", "https://www.commbank.com.au/ar-2018.pdf", ""},
				{3, "Wiki", "https://en.wikipedia.org/wiki/Commonwealth_Bank", ""},
			},
		})
	}))
}

func testClient(t *testing.T, endpoint string) *Client {
	cfg := config.Default().Search
	cfg.Endpoint = endpoint
	cfg.APIKey = "test-key"
	cfg.TimeoutSec = 2
	cfg.QueriesPerSecond = 0
	backend := NewBackend(cfg, "test-agent", zaptest.NewLogger(t))
	require.Equal(t, "serpapi", backend.Name())
	c := NewClient(backend, cfg, zaptest.NewLogger(t))
	c.now = func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) }
	return c
}

func TestClientSearchIsolatesFailures(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var calls int32
	srv := newSerpServer(t, &calls)
	defer srv.Close()

	out := testClient(t, srv.URL).Search(context.Background(), Request{
		CompanyName: "Commonwealth Bank",
		Domain:      "commbank.com.au",
		Year:        2024,
	})

	assert.Equal(t, int32(5), atomic.LoadInt32(&calls))
	assert.Equal(t, "domain:commbank.com.au", out.Mode)
	assert.Len(t, out.Queries, 5)
	assert.Len(t, out.Errors, 2)
	assert.Len(t, out.Raw, 9)

	require.Len(t, out.Accepted, 1)
	assert.Equal(t, "https://www.commbank.com.au/content/dam/annual-report-2024.pdf", out.Accepted[0].URL)
	assert.Len(t, out.Rejections, 8)
}

func TestNewBackendWithoutKeyUsesDuckDuckGo(t *testing.T) {
	cfg := config.Default().Search
	cfg.APIKey = ""
	assert.Equal(t, "duckduckgo", NewBackend(cfg, "ua", zaptest.NewLogger(t)).Name())
}
