package deepcrawl

import (
	"context"
	"fmt"
	"net/url"
	"sort"

	"report_spider/internal/fetch"
	urlqueue "report_spider/internal/url_queue"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

type SiteSource interface {
	Robots(ctx context.Context, siteURL string) (*robotstxt.RobotsData, error)
	Fetch(ctx context.Context, url string) (*fetch.Page, error)
}

const maxSitemapFiles = 5

// ScanSitemaps reads the sitemaps advertised in robots.txt (or /sitemap.xml)
// and returns annual report URLs listed there. At most urlLimit page entries
// are examined.
func (d *Crawler) ScanSitemaps(ctx context.Context, src SiteSource, siteURL string, known []string, urlLimit int) Result {
	res := Result{}
	base, err := url.Parse(siteURL)
	if err != nil || base.Host == "" {
		res.Errors = append(res.Errors, fmt.Sprintf("bad site url %q", siteURL))
		return res
	}

	var sitemaps []string
	if robots, err := src.Robots(ctx, siteURL); err == nil {
		sitemaps = append(sitemaps, robots.Sitemaps...)
	} else {
		d.logger.Debug("robots.txt unavailable", zap.String("site", siteURL), zap.Error(err))
	}
	if len(sitemaps) == 0 {
		sitemaps = []string{fmt.Sprintf("%s://%s/sitemap.xml", base.Scheme, base.Host)}
	}

	queue := urlqueue.NewURLQueue(maxSitemapFiles)
	for _, s := range sitemaps {
		queue.Add(s)
	}
	seen := urlqueue.NewURLQueue(0)
	for _, u := range known {
		seen.MarkSeen(u)
	}
	currentYear := d.now().Year()
	examined := 0

	for examined < urlLimit && len(res.Pages) < maxSitemapFiles && ctx.Err() == nil {
		sm, ok := queue.Get()
		if !ok {
			break
		}
		res.Pages = append(res.Pages, sm)

		page, err := src.Fetch(ctx, sm)
		if err != nil {
			res.Errors = append(res.Errors, err.Error())
			continue
		}
		pages, nested, err := urlqueue.ParseSitemap(page.Body)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", sm, err))
			continue
		}
		for _, n := range nested {
			queue.Add(n)
		}
		for _, p := range pages {
			if examined >= urlLimit {
				break
			}
			examined++
			cand, ok := annualReportLink(p, "", "", currentYear)
			if !ok || !seen.Add(p) {
				continue
			}
			cand.FoundOn = sm
			cand.BoostScore = BoostScore(cand.Year, currentYear, cand.IsPDF())
			res.Candidates = append(res.Candidates, cand)
		}
	}

	sort.SliceStable(res.Candidates, func(i, j int) bool {
		return res.Candidates[i].BoostScore > res.Candidates[j].BoostScore
	})
	d.logger.Info("sitemap scan finished",
		zap.String("site", siteURL),
		zap.Int("sitemaps", len(res.Pages)),
		zap.Int("examined", examined),
		zap.Int("found", len(res.Candidates)))
	return res
}
