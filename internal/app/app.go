package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"report_spider/internal/analysis"
	"report_spider/internal/config"
	"report_spider/internal/crawler"
	"report_spider/internal/db"
	"report_spider/internal/deepcrawl"
	"report_spider/internal/fetch"
	"report_spider/internal/models"
	"report_spider/internal/ratelimit"
	"report_spider/internal/resolver"
	"report_spider/internal/search"

	"go.uber.org/zap"
)

type DomainResolver interface {
	Resolve(ctx context.Context, name, hint string) models.ResolvedDomain
}

type SiteCrawler interface {
	Crawl(ctx context.Context, pageURL string) models.CrawlResult
}

type Searcher interface {
	Search(ctx context.Context, req search.Request) search.Outcome
}

type DeepCrawler interface {
	Crawl(ctx context.Context, cands []models.LinkCandidate, known []string) deepcrawl.Result
	ScanSitemaps(ctx context.Context, src deepcrawl.SiteSource, siteURL string, known []string, urlLimit int) deepcrawl.Result
}

type DocumentAnalyzer interface {
	Analyze(ctx context.Context, docURL, company string) (*models.AnalysisReport, error)
}

type HistoryStore interface {
	SaveDiscovery(ctx context.Context, rec *models.DiscoveryRecord) error
	GetDiscovery(ctx context.Context, key string) (*models.DiscoveryRecord, error)
}

// Deps are the collaborators of the pipeline. DeepCrawler, Site, Analyzer
// and History may be nil; the matching features are then skipped.
type Deps struct {
	Limiter     ratelimit.Limiter
	Resolver    DomainResolver
	Crawler     SiteCrawler
	Searcher    Searcher
	DeepCrawler DeepCrawler
	Site        deepcrawl.SiteSource
	Analyzer    DocumentAnalyzer
	History     HistoryStore
}

type SpiderApp struct {
	config *config.SpiderConfig
	deps   Deps
	logger *zap.Logger
	now    func() time.Time

	closers []func() error
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

var (
	ErrInvalidQuery    = errors.New("invalid query")
	ErrHistoryDisabled = errors.New("discovery history is not enabled")
	ErrNotFound        = errors.New("not found")
)

// RateLimitError is returned before any work starts when a client is over
// its request budget.
type RateLimitError struct {
	Limit      int
	Window     time.Duration
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %d requests per %s, retry after %s",
		e.Limit, e.Window, e.RetryAfter.Round(time.Second))
}

func New(cfg *config.SpiderConfig, deps Deps, logger *zap.Logger) *SpiderApp {
	if deps.Limiter == nil {
		deps.Limiter = ratelimit.NewMemory(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window())
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SpiderApp{
		config: cfg,
		deps:   deps,
		logger: logger,
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
	}
}

// NewSpiderApp wires the production collaborators from cfg. MongoDB is
// connected only when db.enabled is set.
func NewSpiderApp(ctx context.Context, cfg *config.SpiderConfig, logger *zap.Logger) (*SpiderApp, error) {
	fetcher := fetch.New(cfg.Logic, logger.Named("fetch"))

	deps := Deps{
		Resolver: resolver.New(fetcher, logger.Named("resolver")),
		Crawler:  crawler.NewSiteCrawler(fetcher, cfg.Discovery.MaxSiteLinks, logger.Named("crawler")),
		Searcher: search.NewClient(
			search.NewBackend(cfg.Search, cfg.Logic.UserAgent, logger.Named("search")),
			cfg.Search,
			logger.Named("search"),
		),
		DeepCrawler: deepcrawl.New(deepcrawl.OptionsFromConfig(cfg), logger.Named("deepcrawl")),
		Site:        fetcher,
	}

	var extractor analysis.Extractor
	if cfg.Analysis.Provider == analysis.MethodGemini {
		g, err := analysis.NewGemini(ctx, cfg.Analysis, logger.Named("gemini"))
		if err != nil {
			logger.Warn("gemini unavailable, analysis falls back to patterns", zap.Error(err))
		} else {
			extractor = g
		}
	}
	deps.Analyzer = analysis.New(fetcher, extractor, cfg.Analysis.MaxChars, logger.Named("analysis"))

	var closers []func() error
	if cfg.DB.Enabled {
		mongoDB, err := db.NewMongoDB(ctx, cfg.DB, logger.Named("db"))
		if err != nil {
			return nil, err
		}
		closers = append(closers, mongoDB.Close)
		deps.History = mongoDB

		if cfg.RateLimit.Backend == "mongo" {
			rl, err := mongoDB.NewRateLimiter(ctx, cfg.RateLimit.MaxRequests, cfg.RateLimit.Window())
			if err != nil {
				_ = mongoDB.Close()
				return nil, err
			}
			deps.Limiter = rl
		}
	}

	a := New(cfg, deps, logger)
	a.closers = closers
	a.startSweeper(cfg.RateLimit.Window())

	logger.Info("spider app ready",
		zap.String("search_backend", cfg.Search.Provider),
		zap.String("rate_limit_backend", cfg.RateLimit.Backend),
		zap.String("analysis_provider", cfg.Analysis.Provider),
		zap.Bool("history", deps.History != nil))
	return a, nil
}

// startSweeper periodically forgets idle clients of an in-process limiter.
func (a *SpiderApp) startSweeper(every time.Duration) {
	sw, ok := a.deps.Limiter.(interface{ Sweep() })
	if !ok || every <= 0 {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-a.ctx.Done():
				return
			case <-ticker.C:
				sw.Sweep()
			}
		}
	}()
}

// Close stops background work and releases the database connection.
func (a *SpiderApp) Close() error {
	a.cancel()
	a.wg.Wait()

	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// admit charges one request to clientID. A failing limiter store lets the
// request through.
func (a *SpiderApp) admit(ctx context.Context, clientID string) (*models.RateLimitInfo, error) {
	d, err := a.deps.Limiter.Allow(ctx, clientID)
	if err != nil {
		a.logger.Error("rate limiter unavailable, admitting request", zap.String("client", clientID), zap.Error(err))
		return nil, nil
	}
	if !d.Allowed {
		a.logger.Info("rate limited", zap.String("client", clientID), zap.Duration("retry_after", d.RetryAfter))
		return nil, &RateLimitError{Limit: d.Limit, Window: d.Window, RetryAfter: d.RetryAfter}
	}
	return &models.RateLimitInfo{
		Remaining: d.Remaining,
		Limit:     d.Limit,
		WindowSec: int(d.Window / time.Second),
	}, nil
}

// History returns the last recorded discovery for a company and year.
func (a *SpiderApp) History(ctx context.Context, company string, year int) (*models.DiscoveryRecord, error) {
	if a.deps.History == nil {
		return nil, ErrHistoryDisabled
	}
	rec, err := a.deps.History.GetDiscovery(ctx, models.QueryKey(company, year))
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	return rec, nil
}
