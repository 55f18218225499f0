package models

import (
	"strconv"
	"strings"
	"time"
)

type DocType string

const (
	DocAnnualReport        DocType = "annual_report"
	DocInvestorRelations   DocType = "investor_relations"
	DocFinancialStatements DocType = "financial_statements"
	DocFinancialResults    DocType = "financial_results"
	DocFinancialInfo       DocType = "financial_info"
	DocGovernance          DocType = "governance"
	DocSustainability      DocType = "sustainability"
	DocReports             DocType = "reports"
	DocAboutCompany        DocType = "about_company"
	DocGeneral             DocType = "general"
)

// TypeOrder is the fixed ordering used to break score ties.
var TypeOrder = []DocType{
	DocAnnualReport,
	DocInvestorRelations,
	DocFinancialStatements,
	DocFinancialResults,
	DocFinancialInfo,
	DocGovernance,
	DocSustainability,
	DocReports,
	DocAboutCompany,
	DocGeneral,
}

func (t DocType) Order() int {
	for i, o := range TypeOrder {
		if o == t {
			return i
		}
	}
	return len(TypeOrder)
}

type Format string

const (
	FormatPDF      Format = "pdf"
	FormatDocument Format = "document"
	FormatWebpage  Format = "webpage"
)

type Source string

const (
	SourcePageLink  Source = "on-page-link"
	SourceSearch    Source = "search-result"
	SourceDeepCrawl Source = "deep-crawl"
)

type ResolutionMethod string

const (
	MethodWebsiteHint   ResolutionMethod = "website-hint"
	MethodAliasTable    ResolutionMethod = "alias-table"
	MethodPatternGuess  ResolutionMethod = "pattern-guess"
	MethodSearchDerived ResolutionMethod = "search-derived"
	MethodFallback      ResolutionMethod = "fallback-heuristic"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

func (m ResolutionMethod) Confidence() Confidence {
	switch m {
	case MethodWebsiteHint, MethodAliasTable:
		return ConfidenceHigh
	case MethodPatternGuess, MethodSearchDerived:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

type CompanyQuery struct {
	Name        string `json:"companyName"`
	WebsiteHint string `json:"websiteUrl,omitempty"`
	Year        int    `json:"selectedYear,omitempty"`
}

// ResolvedDomain is where a company lives online. Hostname is a registrable
// domain; EntryURL is set only when the caller named a page, which is then
// crawled as given.
type ResolvedDomain struct {
	Hostname   string           `json:"hostname" bson:"hostname"`
	Method     ResolutionMethod `json:"method" bson:"method"`
	Confidence Confidence       `json:"confidence" bson:"confidence"`
	EntryURL   string           `json:"entry_url,omitempty" bson:"entry_url,omitempty"`
	Log        []string         `json:"log,omitempty" bson:"log,omitempty"`
}

// Validated reports whether the hostname came from something better than a guess.
func (d ResolvedDomain) Validated() bool {
	return d.Hostname != "" && d.Method != MethodFallback
}

// HomeURL is the crawl entry point for the resolved site. Guessed
// hostnames are crawled through their www host.
func (d ResolvedDomain) HomeURL() string {
	if d.EntryURL != "" {
		return d.EntryURL
	}
	if d.Hostname == "" {
		return ""
	}
	if strings.HasPrefix(d.Hostname, "www.") {
		return "https://" + d.Hostname
	}
	return "https://www." + d.Hostname
}

type LinkCandidate struct {
	URL         string  `json:"url" bson:"url"`
	Text        string  `json:"text" bson:"text"`
	Type        DocType `json:"type" bson:"type"`
	Format      Format  `json:"format" bson:"format"`
	Source      Source  `json:"source" bson:"source"`
	Year        int     `json:"year,omitempty" bson:"year,omitempty"`
	Priority    int     `json:"priority" bson:"priority"`
	Snippet     string  `json:"snippet,omitempty" bson:"snippet,omitempty"`
	SearchQuery string  `json:"search_query,omitempty" bson:"search_query,omitempty"`
	SearchRank  int     `json:"search_rank,omitempty" bson:"search_rank,omitempty"`
	FoundOn     string  `json:"found_on,omitempty" bson:"found_on,omitempty"`
	BoostScore  int     `json:"boost_score,omitempty" bson:"boost_score,omitempty"`
}

func (c LinkCandidate) IsPDF() bool {
	return c.Format == FormatPDF
}

type ScoredDocument struct {
	LinkCandidate  `bson:",inline"`
	Score          int    `json:"score" bson:"score"`
	Recommendation string `json:"recommendation" bson:"recommendation"`
	Rank           int    `json:"rank" bson:"rank"`
}

type SiteMetadata struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Emails      []string `json:"emails"`
	Phones      []string `json:"phones"`
}

type FailureKind string

const (
	FailureTimeout    FailureKind = "timeout"
	FailureConnection FailureKind = "connection"
	FailureHTTPStatus FailureKind = "http_status"
	FailureBlocked    FailureKind = "blocked"
	FailureParse      FailureKind = "parse"
)

type CrawlFailure struct {
	URL         string      `json:"url"`
	Kind        FailureKind `json:"kind"`
	StatusCode  int         `json:"status_code,omitempty"`
	Reason      string      `json:"reason"`
	Suggestions []string    `json:"suggestions"`
}

type CrawlResult struct {
	Status   string          `json:"status"` // success, error
	Metadata *SiteMetadata   `json:"metadata,omitempty"`
	Links    []LinkCandidate `json:"links"`
	Failure  *CrawlFailure   `json:"failure,omitempty"`
}

type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Rank    int    `json:"rank"`
	Query   string `json:"query"`
}

type Rejection struct {
	URL    string `json:"url" bson:"url"`
	Reason string `json:"reason" bson:"reason"`
}

type RateLimitInfo struct {
	Remaining int `json:"remaining"`
	Limit     int `json:"limit"`
	WindowSec int `json:"window_sec"`
}

type DebugTrace struct {
	RequestID      string           `json:"request_id" bson:"request_id"`
	DomainLog      []string         `json:"domain_log,omitempty" bson:"domain_log,omitempty"`
	CrawlStatus    string           `json:"crawl_status,omitempty" bson:"crawl_status,omitempty"`
	SiteLinks      int              `json:"site_links" bson:"site_links"`
	SearchMode     string           `json:"search_mode,omitempty" bson:"search_mode,omitempty"`
	Queries        []string         `json:"queries" bson:"queries"`
	RawResultCount int              `json:"raw_result_count" bson:"raw_result_count"`
	AcceptedCount  int              `json:"accepted_count" bson:"accepted_count"`
	RejectedCount  int              `json:"rejected_count" bson:"rejected_count"`
	Rejections     []Rejection      `json:"rejections,omitempty" bson:"rejections,omitempty"`
	SampleResults  []SearchResult   `json:"sample_results,omitempty" bson:"-"`
	SearchErrors   []string         `json:"search_errors,omitempty" bson:"search_errors,omitempty"`
	DeepPages      []string         `json:"deep_crawl_pages,omitempty" bson:"deep_crawl_pages,omitempty"`
	DeepErrors     []string         `json:"deep_crawl_errors,omitempty" bson:"deep_crawl_errors,omitempty"`
	DeepFound      int              `json:"deep_crawl_found" bson:"deep_crawl_found"`
	CandidateCount int              `json:"candidate_count" bson:"candidate_count"`
	StageMillis    map[string]int64 `json:"stage_ms,omitempty" bson:"stage_ms,omitempty"`
}

type DiscoveryResponse struct {
	Status          string           `json:"status"` // success, no_results
	CompanyName     string           `json:"company_name"`
	Year            int              `json:"year,omitempty"`
	ResolvedDomain  ResolvedDomain   `json:"resolved_domain"`
	SuggestedDomain *ResolvedDomain  `json:"suggested_domain,omitempty"`
	RankedDocuments []ScoredDocument `json:"ranked_documents"`
	DocumentsFound  int              `json:"documents_found"`
	Message         string           `json:"message,omitempty"`
	Website         *SiteMetadata    `json:"website,omitempty"`
	CrawlFailure    *CrawlFailure    `json:"crawl_failure,omitempty"`
	RateLimit       *RateLimitInfo   `json:"rate_limit_info,omitempty"`
	Timestamp       time.Time        `json:"timestamp"`
	Debug           DebugTrace       `json:"debug"`
}

type SearchResponse struct {
	CompanyName string          `json:"company_name"`
	Domain      string          `json:"domain,omitempty"`
	Results     []LinkCandidate `json:"results"`
	Total       int             `json:"total_results"`
	RateLimit   *RateLimitInfo  `json:"rate_limit_info,omitempty"`
	Debug       DebugTrace      `json:"debug"`
	Timestamp   time.Time       `json:"timestamp"`
}

// DiscoveryRecord is the persisted form of a discovery run.
type DiscoveryRecord struct {
	ID             string           `bson:"_id,omitempty" json:"id"`
	QueryKey       string           `bson:"query_key" json:"query_key"`
	CompanyName    string           `bson:"company_name" json:"company_name"`
	Year           int              `bson:"year,omitempty" json:"year,omitempty"`
	ResolvedDomain ResolvedDomain   `bson:"resolved_domain" json:"resolved_domain"`
	Documents      []ScoredDocument `bson:"documents" json:"documents"`
	Debug          DebugTrace       `bson:"debug" json:"debug"`
	FirstRun       int64            `bson:"first_run" json:"first_run"`
	LastRun        int64            `bson:"last_run" json:"last_run"`
	RunCount       int              `bson:"run_count" json:"run_count"`
	DurationMS     int64            `bson:"duration_ms" json:"duration_ms"`
}

// QueryKey normalizes a company name and year into a history lookup key.
func QueryKey(name string, year int) string {
	key := strings.Join(strings.Fields(strings.ToLower(name)), " ")
	if year > 0 {
		key += "|" + strconv.Itoa(year)
	}
	return key
}

type ExtractedArticle struct {
	Title   string
	Text    string
	Excerpt string
}

type FinancialAmount struct {
	Amount    float64 `json:"amount" bson:"amount"`
	Unit      string  `json:"unit" bson:"unit"`
	Currency  string  `json:"currency" bson:"currency"`
	LineItem  string  `json:"line_item" bson:"line_item"`
	Compliant bool    `json:"asrs_compliant" bson:"asrs_compliant"`
}

type EmployeeCount struct {
	Count              int      `json:"count,omitempty" bson:"count,omitempty"`
	Disclosed          bool     `json:"disclosed" bson:"disclosed"`
	RecommendedSources []string `json:"recommended_sources,omitempty" bson:"recommended_sources,omitempty"`
}

// ASRSClassification places a company in a sustainability reporting group.
// Group 0 means no current requirement.
type ASRSClassification struct {
	Group         int    `json:"group" bson:"group"`
	ReportingDate string `json:"reporting_date" bson:"reporting_date"`
	CriteriaMet   int    `json:"criteria_met" bson:"criteria_met"`
}

// FinancialFigures are amounts in millions of AUD.
type FinancialFigures struct {
	CompanyName    string              `json:"company_name,omitempty"`
	FinancialYear  string              `json:"financial_year,omitempty"`
	Revenue        *FinancialAmount    `json:"total_revenue,omitempty"`
	Assets         *FinancialAmount    `json:"total_assets,omitempty"`
	Employees      EmployeeCount       `json:"total_employees"`
	Confidence     map[string]int      `json:"confidence_scores"`
	Classification *ASRSClassification `json:"asrs_classification,omitempty"`
	Method         string              `json:"extraction_method"`
}

type AnalysisReport struct {
	CompanyName    string           `json:"company_name"`
	DocumentURL    string           `json:"document_url"`
	DocumentType   string           `json:"document_type"` // PDF, Web Page
	DocumentLength int              `json:"document_length"`
	Truncated      bool             `json:"truncated"`
	Provider       string           `json:"provider"`
	Figures        FinancialFigures `json:"analysis"`
	Warnings       []string         `json:"warnings,omitempty"`
	Timestamp      time.Time        `json:"timestamp"`
}
