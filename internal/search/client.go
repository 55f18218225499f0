// Package search issues a battery of web-search queries for a company and
// filters the results down to plausible financial documents.
package search

import (
	"context"
	"fmt"
	"time"

	"report_spider/internal/config"
	"report_spider/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

type Request struct {
	CompanyName string
	// Domain is only set when it has been validated; empty means open web.
	Domain string
	Year   int
}

type Outcome struct {
	Mode       string
	Queries    []string
	Raw        []models.SearchResult
	Accepted   []models.SearchResult
	Rejections []models.Rejection
	Errors     []string
}

type Client struct {
	backend       Backend
	pacer         *rate.Limiter
	num           int
	timeout       time.Duration
	maxConcurrent int
	logger        *zap.Logger
	now           func() time.Time
}

func NewClient(backend Backend, cfg config.SearchConfig, logger *zap.Logger) *Client {
	limit := rate.Inf
	if cfg.QueriesPerSecond > 0 {
		limit = rate.Limit(cfg.QueriesPerSecond)
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 5
	}
	num := cfg.ResultsPerQuery
	if num <= 0 {
		num = 3
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		backend:       backend,
		pacer:         rate.NewLimiter(limit, maxConcurrent),
		num:           num,
		timeout:       timeout,
		maxConcurrent: maxConcurrent,
		logger:        logger,
		now:           time.Now,
	}
}

// Search runs every query concurrently. A failing query contributes no
// results and an entry in Outcome.Errors; it never fails the whole call.
func (c *Client) Search(ctx context.Context, req Request) Outcome {
	out := Outcome{Mode: "open-web"}
	if req.Domain != "" {
		out.Mode = "domain:" + req.Domain
	}
	out.Queries = BuildQueries(req.CompanyName, req.Domain, req.Year, c.now().Year())

	perQuery := make([][]models.SearchResult, len(out.Queries))
	errs := make([]error, len(out.Queries))

	var g errgroup.Group
	g.SetLimit(c.maxConcurrent)
	for i, q := range out.Queries {
		g.Go(func() error {
			perQuery[i], errs[i] = c.runQuery(ctx, q)
			return nil
		})
	}
	_ = g.Wait()

	for i, rs := range perQuery {
		if errs[i] != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("%s: %v", out.Queries[i], errs[i]))
			c.logger.Warn("search query failed",
				zap.String("backend", c.backend.Name()),
				zap.String("query", out.Queries[i]),
				zap.Error(errs[i]))
			continue
		}
		out.Raw = append(out.Raw, rs...)
	}

	out.Accepted, out.Rejections = Filter(out.Raw, req.Domain)

	c.logger.Info("search finished",
		zap.String("company", req.CompanyName),
		zap.String("mode", out.Mode),
		zap.Int("queries", len(out.Queries)),
		zap.Int("raw", len(out.Raw)),
		zap.Int("accepted", len(out.Accepted)),
		zap.Int("failed_queries", len(out.Errors)))
	return out
}

func (c *Client) runQuery(ctx context.Context, q string) ([]models.SearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.pacer.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for query slot: %w", err)
	}
	return c.backend.Query(ctx, q, c.num)
}
