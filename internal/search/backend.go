package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"report_spider/internal/config"
	"report_spider/internal/models"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// Backend runs one query against a web search engine.
type Backend interface {
	Name() string
	Query(ctx context.Context, query string, num int) ([]models.SearchResult, error)
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:             http.ProxyFromEnvironment,
			DisableKeepAlives: true,
		},
	}
}

// NewBackend picks the configured engine. SerpAPI without a key degrades to
// DuckDuckGo rather than failing every query.
func NewBackend(cfg config.SearchConfig, userAgent string, logger *zap.Logger) Backend {
	if cfg.Provider == "serpapi" && cfg.APIKey != "" {
		return &SerpAPI{
			client:   newHTTPClient(),
			endpoint: cfg.Endpoint,
			apiKey:   cfg.APIKey,
			country:  cfg.Country,
			language: cfg.Language,
		}
	}
	if cfg.Provider == "serpapi" {
		logger.Warn("SERPAPI_KEY not set, using duckduckgo")
	}
	endpoint := defaultDuckDuckGoEndpoint
	if cfg.Provider == "duckduckgo" && cfg.Endpoint != "" && !strings.Contains(cfg.Endpoint, "serpapi") {
		endpoint = cfg.Endpoint
	}
	return &DuckDuckGo{
		client:    newHTTPClient(),
		endpoint:  endpoint,
		region:    cfg.Country + "-" + cfg.Language,
		userAgent: userAgent,
	}
}

type SerpAPI struct {
	client   *http.Client
	endpoint string
	apiKey   string
	country  string
	language string
}

type serpResponse struct {
	Error          string `json:"error"`
	OrganicResults []struct {
		Position int    `json:"position"`
		Title    string `json:"title"`
		Link     string `json:"link"`
		Snippet  string `json:"snippet"`
	} `json:"organic_results"`
}

func (s *SerpAPI) Name() string { return "serpapi" }

func (s *SerpAPI) Query(ctx context.Context, query string, num int) ([]models.SearchResult, error) {
	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query)
	params.Set("api_key", s.apiKey)
	params.Set("num", strconv.Itoa(num))
	params.Set("hl", s.language)
	params.Set("gl", s.country)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var parsed serpResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("search api: %s", parsed.Error)
	}

	results := make([]models.SearchResult, 0, len(parsed.OrganicResults))
	for i, r := range parsed.OrganicResults {
		if r.Link == "" {
			continue
		}
		rank := r.Position
		if rank == 0 {
			rank = i + 1
		}
		results = append(results, models.SearchResult{
			Title:   r.Title,
			URL:     r.Link,
			Snippet: r.Snippet,
			Rank:    rank,
			Query:   query,
		})
	}
	return results, nil
}

const defaultDuckDuckGoEndpoint = "https://html.duckduckgo.com/html/"

type DuckDuckGo struct {
	client    *http.Client
	endpoint  string
	region    string
	userAgent string
}

func (d *DuckDuckGo) Name() string { return "duckduckgo" }

func (d *DuckDuckGo) Query(ctx context.Context, query string, num int) ([]models.SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("kl", d.region)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-AU,en;q=0.5")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return parseDuckDuckGo(doc, query, num), nil
}

func parseDuckDuckGo(doc *goquery.Document, query string, num int) []models.SearchResult {
	results := []models.SearchResult{}
	doc.Find("div.result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		link := s.Find("a.result__a").First()
		href, _ := link.Attr("href")
		href = unwrapRedirect(href)
		title := strings.TrimSpace(link.Text())
		if href == "" || title == "" {
			return true
		}
		results = append(results, models.SearchResult{
			Title:   title,
			URL:     href,
			Snippet: strings.TrimSpace(s.Find(".result__snippet").First().Text()),
			Rank:    len(results) + 1,
			Query:   query,
		})
		return len(results) < num
	})
	return results
}

// unwrapRedirect turns //duckduckgo.com/l/?uddg=<target>&rut=... into <target>.
func unwrapRedirect(href string) string {
	if !strings.Contains(href, "duckduckgo.com/l/") {
		return href
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return u.Query().Get("uddg")
}
