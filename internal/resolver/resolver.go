// Package resolver maps a free-text company name to a likely official hostname.
package resolver

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"report_spider/internal/models"

	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
)

// Prober checks whether a URL answers at all.
type Prober interface {
	Alive(ctx context.Context, url string) bool
}

type Resolver struct {
	aliases []Alias
	prober  Prober
	logger  *zap.Logger
}

func New(prober Prober, logger *zap.Logger) *Resolver {
	return &Resolver{aliases: KnownCompanies, prober: prober, logger: logger}
}

var (
	reSpaces      = regexp.MustCompile(`\s+`)
	reNonAlnum    = regexp.MustCompile(`[^a-z0-9]+`)
	bankStopWords = map[string]bool{"bank": true, "australia": true, "australian": true, "of": true, "the": true}
	auStopWords   = map[string]bool{
		"australia": true, "australian": true, "pty": true, "ltd": true, "limited": true,
		"group": true, "corporation": true, "corp": true,
	}
	nameStopWords = map[string]bool{
		"the": true, "of": true, "and": true, "pty": true, "ltd": true, "limited": true,
		"group": true, "corporation": true, "corp": true, "australia": true, "australian": true,
		"company": true, "holdings": true, "inc": true,
	}
)

const placeholderHost = "company.com.au"

// Normalize lowercases name, collapses whitespace and drops "(australia)"
// and a trailing "australian".
func Normalize(name string) string {
	n := strings.ToLower(name)
	n = strings.ReplaceAll(n, "(australia)", " ")
	n = strings.TrimSpace(reSpaces.ReplaceAllString(n, " "))
	n = strings.TrimSuffix(n, " australian")
	return strings.TrimSpace(n)
}

// Resolve never fails: with nothing better it returns a low-confidence guess.
func (r *Resolver) Resolve(ctx context.Context, name, hint string) models.ResolvedDomain {
	var trail []string
	done := func(host string, method models.ResolutionMethod, msg string) models.ResolvedDomain {
		trail = append(trail, msg)
		r.logger.Info("domain resolved",
			zap.String("company", name),
			zap.String("hostname", host),
			zap.String("method", string(method)))
		return models.ResolvedDomain{Hostname: host, Method: method, Confidence: method.Confidence(), Log: trail}
	}

	if entry, host, ok := ParseHint(hint); ok {
		d := done(host, models.MethodWebsiteHint, "using provided website "+entry)
		d.EntryURL = entry
		return d
	}

	clean := Normalize(name)
	trail = append(trail, fmt.Sprintf("normalized %q to %q", name, clean))

	for _, a := range r.aliases {
		if a.Name == clean {
			return done(a.Hostname, models.MethodAliasTable, "exact alias match "+a.Name)
		}
	}
	for _, a := range r.aliases {
		if strings.Contains(clean, a.Name) || (len(clean) >= 3 && strings.Contains(a.Name, clean)) {
			return done(a.Hostname, models.MethodAliasTable, "partial alias match "+a.Name)
		}
	}

	for _, cand := range PatternCandidates(clean) {
		if ctx.Err() != nil {
			break
		}
		probe := "https://www." + cand
		if r.prober.Alive(ctx, probe) {
			return done(cand, models.MethodPatternGuess, "probe ok "+probe)
		}
		trail = append(trail, "probe failed "+probe)
	}

	stem := reNonAlnum.ReplaceAllString(clean, "")
	if stem == "" {
		stem = "company"
	}
	return done(stem+".com.au", models.MethodFallback, "falling back to unverified guess")
}

// PatternCandidates lists hostnames to probe, in probe order.
func PatternCandidates(clean string) []string {
	var out []string
	seen := map[string]bool{}
	add := func(hosts ...string) {
		for _, h := range hosts {
			if !seen[h] {
				seen[h] = true
				out = append(out, h)
			}
		}
	}

	hasAustralia := strings.Contains(clean, "australia")
	if strings.Contains(clean, "bank") && hasAustralia {
		if stem := stemWithout(clean, bankStopWords); stem != "" {
			add(stem+"bank.com.au", stem+".com.au", "australian"+stem+"bank.com.au")
		}
	}
	if hasAustralia {
		if stem := stemWithout(clean, auStopWords); stem != "" {
			add(stem+".com.au", stem+"australia.com.au", stem+".com", stem+"group.com.au")
		}
	}
	return out
}

func stemWithout(clean string, stop map[string]bool) string {
	var b strings.Builder
	for _, w := range strings.Fields(clean) {
		if stop[w] {
			continue
		}
		b.WriteString(reNonAlnum.ReplaceAllString(w, ""))
	}
	return b.String()
}

// ParseHint reads a user-supplied website. entry is the URL to crawl, kept
// as given apart from a default scheme and a dropped fragment; host is its
// registrable domain, which scopes search and domain matching.
func ParseHint(hint string) (entry, host string, ok bool) {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return "", "", false
	}
	if !strings.Contains(hint, "://") {
		hint = "https://" + hint
	}
	u, err := url.Parse(hint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", "", false
	}
	full := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if full == "" || full == placeholderHost || !strings.Contains(full, ".") {
		return "", "", false
	}
	host = full
	if reg, err := publicsuffix.EffectiveTLDPlusOne(full); err == nil {
		host = reg
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment, u.RawFragment = "", ""
	return u.String(), host, true
}

// FromSearchResults derives the registrable domain that most results share,
// counting only hosts that contain a distinctive word of the company name.
func FromSearchResults(name string, urls []string) (models.ResolvedDomain, bool) {
	var tokens []string
	for _, w := range strings.Fields(Normalize(name)) {
		w = reNonAlnum.ReplaceAllString(w, "")
		if len(w) >= 3 && !nameStopWords[w] {
			tokens = append(tokens, w)
		}
	}
	if len(tokens) == 0 {
		return models.ResolvedDomain{}, false
	}

	counts := map[string]int{}
	var order []string
	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		host := strings.ToLower(u.Hostname())
		matched := false
		for _, tok := range tokens {
			if strings.Contains(host, tok) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		domain, err := publicsuffix.EffectiveTLDPlusOne(host)
		if err != nil {
			continue
		}
		if counts[domain] == 0 {
			order = append(order, domain)
		}
		counts[domain]++
	}

	best := ""
	for _, d := range order {
		if counts[d] > counts[best] {
			best = d
		}
	}
	if best == "" {
		return models.ResolvedDomain{}, false
	}
	method := models.MethodSearchDerived
	return models.ResolvedDomain{
		Hostname:   best,
		Method:     method,
		Confidence: method.Confidence(),
		Log:        []string{fmt.Sprintf("%d of %d search results point at %s", counts[best], len(urls), best)},
	}, true
}
