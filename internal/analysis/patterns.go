package analysis

import (
	"regexp"
	"strconv"
	"strings"

	"report_spider/internal/models"
)

const MethodPatterns = "pattern_matching"

type lineItemPattern struct {
	re        *regexp.Regexp
	lineItem  string
	compliant bool
}

// amountSuffix captures the figure and an optional scale.
const amountSuffix = `[\s$:]*\$?([0-9][0-9,]*(?:\.[0-9]+)?)\s*(million|billion|bn|m|b)?\b`

// Bare labels like "revenue" also precede years and notes, so they need a scale.
const scaledAmountSuffix = `[\s$:]*\$?([0-9][0-9,]*(?:\.[0-9]+)?)\s*(million|billion|bn|m|b)\b`

func lineItem(label, item string, compliant bool) lineItemPattern {
	return lineItemPattern{
		re:        regexp.MustCompile(`(?i)` + label + amountSuffix),
		lineItem:  item,
		compliant: compliant,
	}
}

func scaledLineItem(label, item string, compliant bool) lineItemPattern {
	p := lineItem(label, item, compliant)
	p.re = regexp.MustCompile(`(?i)` + label + scaledAmountSuffix)
	return p
}

// Ordered: the first line item found wins.
var revenuePatterns = []lineItemPattern{
	lineItem(`revenue from contracts with customers`, "Revenue from contracts with customers", true),
	lineItem(`interest income`, "Interest Income", true),
	lineItem(`total revenue`, "Total Revenue", true),
	lineItem(`total income`, "Total Income", true),
	lineItem(`net operating income`, "Net Operating Income", false),
	scaledLineItem(`revenue`, "Revenue", true),
}

var assetPatterns = []lineItemPattern{
	lineItem(`total consolidated assets`, "Total Consolidated Assets", true),
	lineItem(`total assets`, "Total Assets", true),
	lineItem(`net assets`, "Net Assets", false),
}

var employeePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)total\s+(?:number\s+of\s+)?(?:employees|workforce|staff|headcount)[\s:]*([0-9][0-9,]*)`),
	regexp.MustCompile(`(?i)(?:employees|workforce|staff)\s+of\s+([0-9][0-9,]*)`),
	regexp.MustCompile(`(?i)([0-9][0-9,]*)\s+(?:full-time\s+equivalent|fte|employees|staff)`),
	regexp.MustCompile(`(?i)headcount[\s:]*([0-9][0-9,]*)`),
}

var yearPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)year ended\s+\d{1,2}\s+(?:june|december|march|september)\s+(\d{4})`),
	regexp.MustCompile(`(?i)financial year.*?(\d{4})`),
	regexp.MustCompile(`(?i)for the year.*?(\d{4})`),
	regexp.MustCompile(`(?i)annual report.*?(\d{4})`),
}

var companyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)^([A-Z][A-Za-z &]+?(?:limited|ltd|group|corporation|bank|holdings))\s+annual report`),
	regexp.MustCompile(`(?m)^([A-Z][A-Za-z &]{10,50}(?:Limited|Ltd|Group))\b`),
}

// EmployeeSources is offered when a report does not disclose its headcount.
var EmployeeSources = []string{
	"IBISWorld business intelligence",
	"LinkedIn company profile",
	"Company website (About Us/Careers pages)",
	"ZoomInfo/Crunchbase business directories",
}

const (
	maxRevenueMillions = 1_000_000
	maxAssetsMillions  = 10_000_000
	minEmployees       = 10
	maxEmployees       = 500_000
)

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	return v, err == nil
}

func toMillions(v float64, unit string) float64 {
	switch strings.ToLower(unit) {
	case "billion", "bn", "b":
		return v * 1000
	}
	return v
}

func findAmount(text string, patterns []lineItemPattern, ceiling float64) *models.FinancialAmount {
	for _, p := range patterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, ok := parseNumber(m[1])
		if !ok {
			continue
		}
		v = toMillions(v, m[2])
		if v < 1 || v > ceiling {
			continue
		}
		return &models.FinancialAmount{
			Amount:    v,
			Unit:      "million",
			Currency:  "AUD",
			LineItem:  p.lineItem,
			Compliant: p.compliant,
		}
	}
	return nil
}

func findEmployees(text string) (int, bool) {
	for _, re := range employeePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, ok := parseNumber(m[1])
		if !ok {
			continue
		}
		if n := int(v); n >= minEmployees && n <= maxEmployees {
			return n, true
		}
	}
	return 0, false
}

func firstGroup(text string, patterns []*regexp.Regexp) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

func amountConfidence(a *models.FinancialAmount) int {
	if a.Compliant {
		return 5
	}
	return 3
}

// ExtractFigures pulls headline figures out of report text with ordered
// regular expressions. Revenue and asset line items carry a compliance flag.
func ExtractFigures(text string) models.FinancialFigures {
	f := models.FinancialFigures{
		Confidence: make(map[string]int),
		Method:     MethodPatterns,
	}

	if name := firstGroup(text, companyPatterns); name != "" {
		f.CompanyName = name
		f.Confidence["company_name"] = 4
	}
	if fy := firstGroup(text, yearPatterns); fy != "" {
		f.FinancialYear = fy
		f.Confidence["financial_year"] = 4
	}

	if f.Revenue = findAmount(text, revenuePatterns, maxRevenueMillions); f.Revenue != nil {
		f.Confidence["total_revenue"] = amountConfidence(f.Revenue)
	}
	if f.Assets = findAmount(text, assetPatterns, maxAssetsMillions); f.Assets != nil {
		f.Confidence["total_assets"] = amountConfidence(f.Assets)
	}

	if n, ok := findEmployees(text); ok {
		f.Employees = models.EmployeeCount{Count: n, Disclosed: true}
		f.Confidence["total_employees"] = 5
	} else {
		f.Employees = models.EmployeeCount{RecommendedSources: EmployeeSources}
		f.Confidence["total_employees"] = 0
	}

	classify(&f)
	return f
}

// classify fills in the ASRS group once all three figures are known.
func classify(f *models.FinancialFigures) {
	if f.Revenue == nil || f.Assets == nil || !f.Employees.Disclosed {
		f.Classification = nil
		return
	}
	c := ClassifyASRS(f.Revenue.Amount, f.Assets.Amount, f.Employees.Count)
	f.Classification = &c
}
