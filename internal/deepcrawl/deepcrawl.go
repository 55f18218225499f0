// Package deepcrawl follows the best investor pages one level down looking
// for annual report links the landing page did not expose.
package deepcrawl

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"report_spider/internal/classify"
	"report_spider/internal/config"
	"report_spider/internal/models"
	urlqueue "report_spider/internal/url_queue"

	"github.com/gocolly/colly"
	"github.com/gocolly/colly/extensions"
	"go.uber.org/zap"
)

var annualSignals = []string{
	"annual report", "annual-report", "annualreport", "annual_report",
	"full year report", "full-year-report", "full year results report",
	"integrated report", "integrated-report",
}

type Options struct {
	MaxPages    int
	AnchorLimit int
	Delay       time.Duration
	RandomDelay time.Duration
	Timeout     time.Duration
	UserAgent   string
}

func OptionsFromConfig(cfg *config.SpiderConfig) Options {
	return Options{
		MaxPages:    cfg.Discovery.DeepCrawlPages,
		AnchorLimit: cfg.Discovery.DeepCrawlAnchorLimit,
		Delay:       time.Duration(cfg.Logic.DelayMS) * time.Millisecond,
		RandomDelay: time.Duration(cfg.Logic.RandomDelayMS) * time.Millisecond,
		Timeout:     cfg.Logic.PageTimeout(),
		UserAgent:   cfg.Logic.UserAgent,
	}
}

type Result struct {
	Pages      []string
	Candidates []models.LinkCandidate
	Errors     []string
}

type Crawler struct {
	opts   Options
	logger *zap.Logger
	now    func() time.Time
}

func New(opts Options, logger *zap.Logger) *Crawler {
	if opts.MaxPages <= 0 {
		opts.MaxPages = 2
	}
	if opts.AnchorLimit <= 0 {
		opts.AnchorLimit = 50
	}
	return &Crawler{opts: opts, logger: logger, now: time.Now}
}

// SelectPages picks the highest-priority non-PDF investor or annual report
// pages worth visiting.
func SelectPages(cands []models.LinkCandidate, maxPages int) []models.LinkCandidate {
	var pages []models.LinkCandidate
	for _, c := range cands {
		if c.IsPDF() || c.Format == models.FormatDocument {
			continue
		}
		if c.Type != models.DocInvestorRelations && c.Type != models.DocAnnualReport {
			continue
		}
		pages = append(pages, c)
	}
	sort.SliceStable(pages, func(i, j int) bool {
		return pages[i].Priority > pages[j].Priority
	})
	if len(pages) > maxPages {
		pages = pages[:maxPages]
	}
	return pages
}

// BoostScore is the deep crawler's own ranking of a found link.
func BoostScore(year, currentYear int, isPDF bool) int {
	score := 10
	switch {
	case year == 0:
	case year == currentYear:
		score += 20
	case year == currentYear-1:
		score += 15
	case year == currentYear-2:
		score += 10
	}
	if isPDF {
		score += 10
	}
	return score
}

func (d *Crawler) newCollector() *colly.Collector {
	c := colly.NewCollector(colly.UserAgent(d.opts.UserAgent))
	extensions.RandomUserAgent(c)
	c.IgnoreRobotsTxt = false
	if d.opts.Timeout > 0 {
		c.SetRequestTimeout(d.opts.Timeout)
		c.WithTransport(&http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DisableKeepAlives:     true,
			ResponseHeaderTimeout: d.opts.Timeout,
			TLSHandshakeTimeout:   d.opts.Timeout,
		})
	}
	c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       d.opts.Delay,
		RandomDelay: d.opts.RandomDelay,
	})
	return c
}

// Crawl visits the selected pages one at a time. known holds URLs already
// in the candidate set; nothing in it is returned again. A page that fails
// is logged and skipped.
func (d *Crawler) Crawl(ctx context.Context, cands []models.LinkCandidate, known []string) Result {
	res := Result{}
	pages := SelectPages(cands, d.opts.MaxPages)
	if len(pages) == 0 {
		return res
	}

	seen := urlqueue.NewURLQueue(0)
	for _, u := range known {
		seen.MarkSeen(u)
	}
	currentYear := d.now().Year()

	var mu sync.Mutex
	// Pages already reported through OnError, keyed by the page we asked for.
	reported := map[string]bool{}
	c := d.newCollector()

	c.OnHTML("html", func(e *colly.HTMLElement) {
		source := e.Request.Ctx.Get("source")
		scanned := 0
		e.ForEach("a[href]", func(_ int, el *colly.HTMLElement) {
			if scanned >= d.opts.AnchorLimit {
				return
			}
			scanned++

			abs, ok := urlqueue.ResolveURL(e.Request.URL, el.Attr("href"))
			if !ok {
				return
			}
			cand, ok := annualReportLink(abs, el.Text, el.Attr("title"), currentYear)
			if !ok {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if !seen.Add(abs) {
				return
			}
			cand.FoundOn = source
			cand.BoostScore = BoostScore(cand.Year, currentYear, cand.IsPDF())
			res.Candidates = append(res.Candidates, cand)
		})
	})

	c.OnError(func(r *colly.Response, err error) {
		msg := fmt.Sprintf("%s: %v", r.Request.URL, err)
		if r.StatusCode != 0 {
			msg = fmt.Sprintf("%s: HTTP %d", r.Request.URL, r.StatusCode)
		}
		mu.Lock()
		res.Errors = append(res.Errors, msg)
		reported[r.Ctx.Get("source")] = true
		mu.Unlock()
		d.logger.Warn("deep crawl page failed", zap.String("url", r.Request.URL.String()), zap.Error(err))
	})

	for _, p := range pages {
		if ctx.Err() != nil {
			break
		}
		pctx := colly.NewContext()
		pctx.Put("source", p.URL)
		res.Pages = append(res.Pages, p.URL)
		err := c.Request("GET", p.URL, nil, pctx, nil)
		c.Wait()
		switch {
		case err == nil:
		case errors.Is(err, colly.ErrRobotsTxtBlocked):
			res.Errors = append(res.Errors, fmt.Sprintf("%s: blocked by robots.txt", p.URL))
			d.logger.Info("deep crawl skipped by robots.txt", zap.String("url", p.URL))
		case !reported[p.URL]:
			// colly returns robots.txt fetch errors without calling OnError.
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", p.URL, err))
			d.logger.Warn("deep crawl page failed", zap.String("url", p.URL), zap.Error(err))
		}
	}

	sort.SliceStable(res.Candidates, func(i, j int) bool {
		return res.Candidates[i].BoostScore > res.Candidates[j].BoostScore
	})

	d.logger.Info("deep crawl finished",
		zap.Int("pages", len(res.Pages)),
		zap.Int("found", len(res.Candidates)),
		zap.Int("errors", len(res.Errors)))
	return res
}

func annualReportLink(absURL, text, title string, currentYear int) (models.LinkCandidate, bool) {
	combined := classify.CombinedText(text, title, absURL)
	if classify.Excluded(combined) {
		return models.LinkCandidate{}, false
	}
	matched := false
	for _, s := range annualSignals {
		if strings.Contains(combined, s) {
			matched = true
			break
		}
	}
	if !matched {
		return models.LinkCandidate{}, false
	}
	format := classify.Format(absURL, combined)
	return models.LinkCandidate{
		URL:      absURL,
		Text:     classify.CleanText(text),
		Type:     models.DocAnnualReport,
		Format:   format,
		Source:   models.SourceDeepCrawl,
		Year:     classify.DetectYear(combined, currentYear),
		Priority: classify.Priority(models.DocAnnualReport, format),
	}, true
}
