// Package classify turns link text and URLs into document types using
// ordered keyword tables. Everything here is pure.
package classify

import (
	"strings"

	"report_spider/internal/models"
	urlqueue "report_spider/internal/url_queue"
)

type KeywordRule struct {
	Type     models.DocType
	Keywords []string
}

// ExcludeKeywords mark customer-help pages that merely mention money.
var ExcludeKeywords = []string{
	"hardship",
	"financial assistance",
	"financial difficulty",
	"assistance",
	"support",
	"complaint",
	"scam",
	"calculator",
	"careers",
	"login",
	"log-in",
	"sign-in",
}

// FinancialRules are checked in order; the first hit decides the type.
var FinancialRules = []KeywordRule{
	{models.DocAnnualReport, []string{
		"annual report", "annual-report", "annualreport", "annual_report",
		"integrated report", "integrated-report", "annual review", "annual-review",
	}},
	{models.DocInvestorRelations, []string{
		"investor relations", "investor-relations", "investor centre", "investor-centre",
		"investor center", "investor-center", "investors", "investor", "shareholder",
	}},
	{models.DocFinancialStatements, []string{
		"financial statements", "financial-statements", "financial statement",
		"financial report", "financial-report",
	}},
	{models.DocFinancialResults, []string{
		"results", "half year", "half-year", "full year", "full-year", "quarterly", "earnings",
	}},
	{models.DocGovernance, []string{
		"corporate governance", "governance",
	}},
	{models.DocFinancialInfo, []string{
		"financial information", "financials", "financial",
	}},
	{models.DocSustainability, []string{
		"sustainability", "esg", "climate", "corporate responsibility",
	}},
	{models.DocReports, []string{
		"reports", "report", "publications", "downloads",
	}},
	{models.DocAboutCompany, []string{
		"about us", "about-us", "about", "our company", "who we are", "company profile",
	}},
}

var basePriority = map[models.DocType]int{
	models.DocAnnualReport:        10,
	models.DocInvestorRelations:   9,
	models.DocFinancialStatements: 9,
	models.DocFinancialResults:    8,
	models.DocFinancialInfo:       8,
	models.DocGovernance:          7,
	models.DocSustainability:      6,
	models.DocReports:             6,
	models.DocAboutCompany:        5,
	models.DocGeneral:             1,
}

var documentExtensions = map[string]bool{
	"doc": true, "docx": true, "xls": true, "xlsx": true, "ppt": true, "pptx": true, "rtf": true,
}

// CombinedText is the lowercased text a link is judged on.
func CombinedText(text, title, href string) string {
	return strings.ToLower(strings.Join([]string{text, title, href}, " "))
}

// Excluded reports whether combined contains a help/support term.
func Excluded(combined string) bool {
	for _, kw := range ExcludeKeywords {
		if strings.Contains(combined, kw) {
			return true
		}
	}
	return false
}

// Type returns the first matching category, or false if none matches.
func Type(combined string) (models.DocType, bool) {
	for _, rule := range FinancialRules {
		for _, kw := range rule.Keywords {
			if strings.Contains(combined, kw) {
				return rule.Type, true
			}
		}
	}
	return "", false
}

func Format(href, combined string) models.Format {
	ext := urlqueue.Extension(href)
	switch {
	case ext == "pdf":
		return models.FormatPDF
	case documentExtensions[ext]:
		return models.FormatDocument
	case strings.Contains(combined, "pdf"):
		return models.FormatPDF
	}
	return models.FormatWebpage
}

func Priority(t models.DocType, f models.Format) int {
	p, ok := basePriority[t]
	if !ok {
		p = basePriority[models.DocGeneral]
	}
	if f == models.FormatPDF {
		p += 2
	}
	return p
}

// Link classifies an on-page anchor. ok is false when the link is excluded
// or carries no financial signal.
func Link(absURL, text, title string, currentYear int) (models.LinkCandidate, bool) {
	combined := CombinedText(text, title, absURL)
	if Excluded(combined) {
		return models.LinkCandidate{}, false
	}
	docType, ok := Type(combined)
	if !ok {
		return models.LinkCandidate{}, false
	}
	format := Format(absURL, combined)
	return models.LinkCandidate{
		URL:      absURL,
		Text:     CleanText(text),
		Type:     docType,
		Format:   format,
		Source:   models.SourcePageLink,
		Year:     DetectYear(combined, currentYear),
		Priority: Priority(docType, format),
	}, true
}

// SearchHit classifies an external search result. Results with no keyword
// match are kept as general documents.
func SearchHit(r models.SearchResult, currentYear int) models.LinkCandidate {
	combined := CombinedText(r.Title, "", r.URL)
	docType, ok := Type(combined)
	if !ok {
		docType = models.DocGeneral
	}
	format := Format(r.URL, combined)
	return models.LinkCandidate{
		URL:         r.URL,
		Text:        CleanText(r.Title),
		Type:        docType,
		Format:      format,
		Source:      models.SourceSearch,
		Year:        DetectYear(combined+" "+strings.ToLower(r.Snippet), currentYear),
		Priority:    Priority(docType, format),
		Snippet:     r.Snippet,
		SearchQuery: r.Query,
		SearchRank:  r.Rank,
	}
}

func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
