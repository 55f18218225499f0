package search

import (
	"fmt"
	"net/url"
	"strings"

	"report_spider/internal/classify"
	"report_spider/internal/models"
	urlqueue "report_spider/internal/url_queue"
)

// StaleBefore is the first year a search result may mention without being dropped.
const StaleBefore = 2020

var financialSignals = []string{
	"annual report", "annual-report", "annual_report",
	"financial statement", "financial-statement",
	"investor", "report", "annual", ".pdf",
}

// Filter applies the hard rejections, then the soft financial-signal test,
// then URL dedupe. Every dropped result is accounted for in rejections.
func Filter(results []models.SearchResult, domain string) (accepted []models.SearchResult, rejections []models.Rejection) {
	accepted = []models.SearchResult{}
	seen := urlqueue.NewURLQueue(0)

	for _, r := range results {
		reason := rejectReason(r, domain)
		if reason == "" && !seen.Add(r.URL) {
			reason = "duplicate url"
		}
		if reason != "" {
			rejections = append(rejections, models.Rejection{URL: r.URL, Reason: reason})
			continue
		}
		accepted = append(accepted, r)
	}
	return accepted, rejections
}

func rejectReason(r models.SearchResult, domain string) string {
	u, err := url.Parse(r.URL)
	if r.URL == "" || err != nil || u.Host == "" {
		return "invalid url"
	}
	if domain != "" && !urlqueue.HostWithin(r.URL, domain) {
		return fmt.Sprintf("off-domain host %s", u.Hostname())
	}
	text := strings.ToLower(r.Title + " " + r.URL)
	if classify.HasYearBefore(text, StaleBefore) {
		return fmt.Sprintf("mentions a year before %d", StaleBefore)
	}
	for _, s := range financialSignals {
		if strings.Contains(text, s) {
			return ""
		}
	}
	return "no financial signal in title or url"
}
