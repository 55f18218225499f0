package app

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"report_spider/internal/classify"
	"report_spider/internal/deepcrawl"
	"report_spider/internal/models"
	"report_spider/internal/ranker"
	"report_spider/internal/resolver"
	"report_spider/internal/search"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	statusSuccess   = "success"
	statusNoResults = "no_results"
	noDocuments     = "no documents found"
	sampleResults   = 10
	minQueryYear    = 1990
)

func (a *SpiderApp) validate(q *models.CompanyQuery) error {
	q.Name = strings.Join(strings.Fields(q.Name), " ")
	q.WebsiteHint = strings.TrimSpace(q.WebsiteHint)
	if q.Name == "" {
		return fmt.Errorf("%w: company name is required", ErrInvalidQuery)
	}
	if q.Year != 0 && (q.Year < minQueryYear || q.Year > a.now().Year()+1) {
		return fmt.Errorf("%w: year %d out of range", ErrInvalidQuery, q.Year)
	}
	return nil
}

func searchDomain(d models.ResolvedDomain) string {
	if d.Validated() {
		return d.Hostname
	}
	return ""
}

func (a *SpiderApp) recordSearch(trace *models.DebugTrace, out search.Outcome) {
	trace.SearchMode = out.Mode
	trace.Queries = out.Queries
	trace.RawResultCount = len(out.Raw)
	trace.AcceptedCount = len(out.Accepted)
	trace.RejectedCount = len(out.Rejections)
	trace.Rejections = out.Rejections
	trace.SearchErrors = out.Errors
	trace.SampleResults = out.Raw
	if len(trace.SampleResults) > sampleResults {
		trace.SampleResults = trace.SampleResults[:sampleResults]
	}
}

func searchCandidates(out search.Outcome, currentYear int) []models.LinkCandidate {
	cands := make([]models.LinkCandidate, 0, len(out.Accepted))
	for _, r := range out.Accepted {
		cands = append(cands, classify.SearchHit(r, currentYear))
	}
	return cands
}

func urlsOf(cands []models.LinkCandidate) []string {
	urls := make([]string, len(cands))
	for i, c := range cands {
		urls[i] = c.URL
	}
	return urls
}

// Discover runs the whole pipeline for one company: resolve the domain,
// crawl the home page and search in parallel, deep crawl the best investor
// pages, then rank. Component failures end up in the response; only rate
// limiting and invalid input are returned as errors.
func (a *SpiderApp) Discover(ctx context.Context, clientID string, q models.CompanyQuery) (*models.DiscoveryResponse, error) {
	started := a.now()
	info, err := a.admit(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if err := a.validate(&q); err != nil {
		return nil, err
	}

	currentYear := a.now().Year()
	trace := models.DebugTrace{
		RequestID:   uuid.NewString(),
		Queries:     []string{},
		StageMillis: map[string]int64{},
	}
	logger := a.logger.With(zap.String("request_id", trace.RequestID), zap.String("company", q.Name))

	t := time.Now()
	domain := a.deps.Resolver.Resolve(ctx, q.Name, q.WebsiteHint)
	trace.StageMillis["resolve"] = time.Since(t).Milliseconds()
	trace.DomainLog = domain.Log
	logger.Info("domain resolved",
		zap.String("hostname", domain.Hostname),
		zap.String("method", string(domain.Method)))

	var (
		crawl      models.CrawlResult
		outcome    search.Outcome
		crawlTook  time.Duration
		searchTook time.Duration
		searched   bool
	)
	var g errgroup.Group
	g.Go(func() error {
		t := time.Now()
		crawl = a.deps.Crawler.Crawl(ctx, domain.HomeURL())
		crawlTook = time.Since(t)
		return nil
	})
	if a.config.Discovery.EnableSearch && a.deps.Searcher != nil {
		searched = true
		g.Go(func() error {
			t := time.Now()
			outcome = a.deps.Searcher.Search(ctx, search.Request{
				CompanyName: q.Name,
				Domain:      searchDomain(domain),
				Year:        q.Year,
			})
			searchTook = time.Since(t)
			return nil
		})
	}
	_ = g.Wait()

	trace.StageMillis["crawl"] = crawlTook.Milliseconds()
	trace.CrawlStatus = crawl.Status
	trace.SiteLinks = len(crawl.Links)
	if searched {
		trace.StageMillis["search"] = searchTook.Milliseconds()
		a.recordSearch(&trace, outcome)
	}

	resp := &models.DiscoveryResponse{
		CompanyName:    q.Name,
		Year:           q.Year,
		ResolvedDomain: domain,
		Website:        crawl.Metadata,
		CrawlFailure:   crawl.Failure,
		RateLimit:      info,
	}

	if domain.Method == models.MethodFallback && len(outcome.Accepted) > 0 {
		urls := make([]string, len(outcome.Accepted))
		for i, r := range outcome.Accepted {
			urls[i] = r.URL
		}
		if suggested, ok := resolver.FromSearchResults(q.Name, urls); ok {
			resp.SuggestedDomain = &suggested
			logger.Info("search suggests a domain", zap.String("hostname", suggested.Hostname))
		}
	}

	cands := ranker.Merge(crawl.Links, searchCandidates(outcome, currentYear))
	cands = a.deepCrawl(ctx, &trace, domain, crawl, cands)
	trace.CandidateCount = len(cands)

	t = time.Now()
	resp.RankedDocuments = ranker.Rank(cands, ranker.Context{
		CurrentYear: currentYear,
		TargetYear:  q.Year,
		Domain:      searchDomain(domain),
		CompanyName: q.Name,
	}, a.config.Discovery.MaxRanked)
	trace.StageMillis["rank"] = time.Since(t).Milliseconds()

	resp.DocumentsFound = len(cands)
	resp.Status = statusSuccess
	if len(resp.RankedDocuments) == 0 {
		resp.Status = statusNoResults
		resp.Message = noDocuments
	}
	resp.Timestamp = a.now().UTC()
	resp.Debug = trace

	logger.Info("discovery finished",
		zap.String("status", resp.Status),
		zap.Int("candidates", len(cands)),
		zap.Int("ranked", len(resp.RankedDocuments)),
		zap.Duration("took", a.now().Sub(started)))

	a.saveHistory(ctx, q, resp, a.now().Sub(started))
	return resp, nil
}

// deepCrawl follows investor pages and, when enabled, the site's sitemaps.
// New candidates are merged into cands.
func (a *SpiderApp) deepCrawl(ctx context.Context, trace *models.DebugTrace, domain models.ResolvedDomain, crawl models.CrawlResult, cands []models.LinkCandidate) []models.LinkCandidate {
	if a.deps.DeepCrawler == nil {
		return cands
	}
	record := func(res deepcrawl.Result) {
		trace.DeepPages = append(trace.DeepPages, res.Pages...)
		trace.DeepErrors = append(trace.DeepErrors, res.Errors...)
		trace.DeepFound += len(res.Candidates)
		cands = ranker.Merge(cands, res.Candidates)
	}

	t := time.Now()
	if a.config.Discovery.EnableDeepCrawl {
		record(a.deps.DeepCrawler.Crawl(ctx, cands, urlsOf(cands)))
	}
	if a.config.Discovery.EnableSitemap && a.deps.Site != nil && crawl.Status == statusSuccess {
		site := domain.HomeURL()
		if crawl.Metadata != nil && crawl.Metadata.URL != "" {
			site = crawl.Metadata.URL
		}
		record(a.deps.DeepCrawler.ScanSitemaps(ctx, a.deps.Site, site, urlsOf(cands), a.config.Discovery.SitemapURLLimit))
	}
	trace.StageMillis["deep_crawl"] = time.Since(t).Milliseconds()
	return cands
}

func (a *SpiderApp) saveHistory(ctx context.Context, q models.CompanyQuery, resp *models.DiscoveryResponse, took time.Duration) {
	if a.deps.History == nil {
		return
	}
	now := a.now().Unix()
	rec := &models.DiscoveryRecord{
		QueryKey:       models.QueryKey(q.Name, q.Year),
		CompanyName:    q.Name,
		Year:           q.Year,
		ResolvedDomain: resp.ResolvedDomain,
		Documents:      resp.RankedDocuments,
		Debug:          resp.Debug,
		FirstRun:       now,
		LastRun:        now,
		DurationMS:     took.Milliseconds(),
	}
	if err := a.deps.History.SaveDiscovery(ctx, rec); err != nil {
		a.logger.Warn("could not record discovery", zap.String("company", q.Name), zap.Error(err))
	}
}

// Search runs only the search battery and returns the classified hits.
func (a *SpiderApp) Search(ctx context.Context, clientID string, q models.CompanyQuery) (*models.SearchResponse, error) {
	info, err := a.admit(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if err := a.validate(&q); err != nil {
		return nil, err
	}

	trace := models.DebugTrace{RequestID: uuid.NewString(), Queries: []string{}, StageMillis: map[string]int64{}}

	t := time.Now()
	domain := a.deps.Resolver.Resolve(ctx, q.Name, q.WebsiteHint)
	trace.StageMillis["resolve"] = time.Since(t).Milliseconds()
	trace.DomainLog = domain.Log

	resp := &models.SearchResponse{
		CompanyName: q.Name,
		Domain:      searchDomain(domain),
		Results:     []models.LinkCandidate{},
		RateLimit:   info,
	}
	if a.deps.Searcher != nil {
		t = time.Now()
		out := a.deps.Searcher.Search(ctx, search.Request{CompanyName: q.Name, Domain: resp.Domain, Year: q.Year})
		trace.StageMillis["search"] = time.Since(t).Milliseconds()
		a.recordSearch(&trace, out)
		resp.Results = searchCandidates(out, a.now().Year())
	}
	resp.Total = len(resp.Results)
	resp.Debug = trace
	resp.Timestamp = a.now().UTC()
	return resp, nil
}

// Analyze extracts figures from one discovered document.
func (a *SpiderApp) Analyze(ctx context.Context, clientID, docURL, company string) (*models.AnalysisReport, error) {
	if _, err := a.admit(ctx, clientID); err != nil {
		return nil, err
	}
	u, err := url.Parse(strings.TrimSpace(docURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: document url must be an absolute http(s) url", ErrInvalidQuery)
	}
	if strings.TrimSpace(company) == "" {
		return nil, fmt.Errorf("%w: company name is required", ErrInvalidQuery)
	}
	if a.deps.Analyzer == nil {
		return nil, fmt.Errorf("document analysis is not configured")
	}
	return a.deps.Analyzer.Analyze(ctx, u.String(), strings.TrimSpace(company))
}
