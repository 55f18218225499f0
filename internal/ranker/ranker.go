// Package ranker scores discovered candidates and keeps the shortlist.
//
// Scoring is additive and pure: a candidate's score depends only on the
// candidate and the Context, so ranking the same input twice gives the
// same list.
package ranker

import (
	"sort"
	"strings"

	"report_spider/internal/models"
	urlqueue "report_spider/internal/url_queue"
)

// MaxResults caps every ranked list.
const MaxResults = 5

const (
	LabelHighlyRecommended = "HIGHLY RECOMMENDED"
	LabelRecommended       = "RECOMMENDED"
	LabelConsider          = "Consider"
	LabelReview            = "Review"
)

type Context struct {
	CurrentYear int
	TargetYear  int
	Domain      string
	CompanyName string
}

type bonus struct {
	keywords []string
	points   int
}

var typeBonus = map[models.DocType]int{
	models.DocAnnualReport:        20,
	models.DocInvestorRelations:   15,
	models.DocFinancialStatements: 12,
	models.DocFinancialResults:    12,
}

// Each entry counts at most once.
var keywordBonuses = []bonus{
	{[]string{"annual report"}, 10},
	{[]string{"investor centre", "investor center", "investor relations"}, 8},
	{[]string{"financial statements"}, 8},
	{[]string{"asx announcements"}, 6},
	{[]string{"quarterly", "half year", "full year"}, 5},
}

var penalties = []bonus{
	{[]string{"contact", "help", "support"}, -5},
	{[]string{"commsec", "superannuation", "essential super"}, -3},
}

var separators = strings.NewReplacer("-", " ", "_", " ", "+", " ", "%20", " ")

func matchesAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func yearBonus(year int, ctx Context) int {
	if year == 0 {
		return 0
	}
	if ctx.TargetYear > 0 {
		if year == ctx.TargetYear {
			return 15
		}
		return 0
	}
	switch year {
	case ctx.CurrentYear:
		return 15
	case ctx.CurrentYear - 1:
		return 10
	case ctx.CurrentYear - 2:
		return 5
	}
	return 0
}

// Score starts from the candidate's priority tier and adds type, year,
// format, keyword and domain bonuses minus penalties.
func Score(c models.LinkCandidate, ctx Context) int {
	text := separators.Replace(strings.ToLower(c.Text + " " + c.URL))

	score := c.Priority
	score += typeBonus[c.Type]
	score += yearBonus(c.Year, ctx)

	switch c.Format {
	case models.FormatPDF:
		score += 8
	case models.FormatDocument:
		score += 5
	}

	for _, b := range keywordBonuses {
		if matchesAny(text, b.keywords) {
			score += b.points
		}
	}

	if ctx.Domain != "" && urlqueue.HostWithin(c.URL, ctx.Domain) {
		score += 5
	}
	if name := strings.ToLower(strings.TrimSpace(ctx.CompanyName)); name != "" &&
		strings.Contains(strings.ToLower(c.Text), name) {
		score += 4
	}

	for _, p := range penalties {
		if matchesAny(text, p.keywords) {
			score += p.points
		}
	}
	if c.Type == models.DocAboutCompany && !strings.Contains(text, "report") {
		score -= 3
	}
	return score
}

func label(d models.ScoredDocument) string {
	switch {
	case d.Type == models.DocAnnualReport && d.IsPDF():
		return LabelHighlyRecommended
	case d.Rank == 1 && d.Score >= 25:
		return LabelRecommended
	case d.Score >= 15:
		return LabelConsider
	}
	return LabelReview
}

// Rank scores every candidate, sorts by score then type order then URL,
// and returns at most limit (never more than MaxResults) documents with
// ranks 1..N.
func Rank(cands []models.LinkCandidate, ctx Context, limit int) []models.ScoredDocument {
	if limit <= 0 || limit > MaxResults {
		limit = MaxResults
	}

	docs := make([]models.ScoredDocument, 0, len(cands))
	for _, c := range cands {
		docs = append(docs, models.ScoredDocument{LinkCandidate: c, Score: Score(c, ctx)})
	}

	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].Score != docs[j].Score {
			return docs[i].Score > docs[j].Score
		}
		if oi, oj := docs[i].Type.Order(), docs[j].Type.Order(); oi != oj {
			return oi < oj
		}
		return docs[i].URL < docs[j].URL
	})

	if len(docs) > limit {
		docs = docs[:limit]
	}
	for i := range docs {
		docs[i].Rank = i + 1
		docs[i].Recommendation = label(docs[i])
	}
	return docs
}

// Merge concatenates candidate groups and drops URL duplicates. The copy
// with the highest priority wins; its position is that of the first copy.
func Merge(groups ...[]models.LinkCandidate) []models.LinkCandidate {
	var out []models.LinkCandidate
	index := make(map[string]int)
	for _, group := range groups {
		for _, c := range group {
			key := urlqueue.NormalizeURL(c.URL)
			if i, ok := index[key]; ok {
				if c.Priority > out[i].Priority {
					out[i] = c
				}
				continue
			}
			index[key] = len(out)
			out = append(out, c)
		}
	}
	return out
}

// Candidates strips scoring back off a ranked list.
func Candidates(docs []models.ScoredDocument) []models.LinkCandidate {
	out := make([]models.LinkCandidate, len(docs))
	for i, d := range docs {
		out[i] = d.LinkCandidate
	}
	return out
}
