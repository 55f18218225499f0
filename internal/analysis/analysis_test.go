package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"report_spider/internal/config"
	"report_spider/internal/fetch"
	"report_spider/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const acmeReport = `Acme Resources Limited Annual Report 2024
For the year ended 30 June 2024
Revenue from contracts with customers $612.5 million
Total assets $1.2 billion
Total employees: 1,250
`

// buildPDF writes a one-page PDF with a correct xref table.
func buildPDF(lines ...string) []byte {
	var content strings.Builder
	content.WriteString("BT /F1 12 Tf 14 TL 72 720 Td ")
	for i, l := range lines {
		if i > 0 {
			content.WriteString("T* ")
		}
		fmt.Fprintf(&content, "(%s) Tj ", l)
	}
	content.WriteString("ET")

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", content.Len(), content.String()),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestExtractPDFText(t *testing.T) {
	data := buildPDF("Total revenue $612.5 million", "Total assets $1,200 million")

	text, truncated, err := ExtractPDFText(data, 0)
	require.NoError(t, err)
	assert.False(t, truncated)
	assert.Contains(t, text, "Total revenue $612.5 million")
	assert.Contains(t, text, "Total assets $1,200 million")

	short, truncated, err := ExtractPDFText(data, 10)
	require.NoError(t, err)
	assert.True(t, truncated)
	assert.Equal(t, 10, len([]rune(short)))
}

func TestExtractPDFTextRejectsGarbage(t *testing.T) {
	_, _, err := ExtractPDFText([]byte("<html>not a pdf</html>"), 100)
	assert.Error(t, err)
}

func TestTruncateCountsRunes(t *testing.T) {
	s, cut := Truncate("héllo wörld", 5)
	assert.True(t, cut)
	assert.Equal(t, "héllo", s)

	s, cut = Truncate("abc", 0)
	assert.False(t, cut)
	assert.Equal(t, "abc", s)
}

func TestExtractFiguresCompliant(t *testing.T) {
	f := ExtractFigures(acmeReport)

	assert.Equal(t, "Acme Resources Limited", f.CompanyName)
	assert.Equal(t, "2024", f.FinancialYear)

	require.NotNil(t, f.Revenue)
	assert.InDelta(t, 612.5, f.Revenue.Amount, 0.001)
	assert.Equal(t, "Revenue from contracts with customers", f.Revenue.LineItem)
	assert.True(t, f.Revenue.Compliant)

	require.NotNil(t, f.Assets)
	assert.InDelta(t, 1200, f.Assets.Amount, 0.001)
	assert.Equal(t, "Total Assets", f.Assets.LineItem)

	assert.True(t, f.Employees.Disclosed)
	assert.Equal(t, 1250, f.Employees.Count)
	assert.Equal(t, 5, f.Confidence["total_revenue"])

	require.NotNil(t, f.Classification)
	assert.Equal(t, models.ASRSClassification{Group: 1, ReportingDate: "1 July 2024", CriteriaMet: 3}, *f.Classification)
}

func TestExtractFiguresFlagsNonCompliantLineItems(t *testing.T) {
	f := ExtractFigures("Net operating income $350m\nNet assets $600m\n300 employees\n")

	require.NotNil(t, f.Revenue)
	assert.Equal(t, "Net Operating Income", f.Revenue.LineItem)
	assert.False(t, f.Revenue.Compliant)
	assert.Equal(t, 3, f.Confidence["total_revenue"])

	require.NotNil(t, f.Assets)
	assert.False(t, f.Assets.Compliant)

	require.NotNil(t, f.Classification)
	assert.Equal(t, 2, f.Classification.Group)
	assert.Equal(t, "1 July 2026", f.Classification.ReportingDate)
}

func TestExtractFiguresWithoutEmployees(t *testing.T) {
	f := ExtractFigures("Total revenue 80 million. Total assets 30 million.")

	assert.False(t, f.Employees.Disclosed)
	assert.Equal(t, EmployeeSources, f.Employees.RecommendedSources)
	assert.Equal(t, 0, f.Confidence["total_employees"])
	assert.Nil(t, f.Classification)
}

func TestExtractFiguresIgnoresYearsAfterBareRevenue(t *testing.T) {
	f := ExtractFigures("Revenue 2024 grew strongly")
	assert.Nil(t, f.Revenue)
}

func TestClassifyASRS(t *testing.T) {
	cases := []struct {
		name      string
		revenue   float64
		assets    float64
		employees int
		group     int
		date      string
		met       int
	}{
		{"large", 600, 2000, 50, 1, "1 July 2024", 2},
		{"mid", 250, 600, 20, 2, "1 July 2026", 2},
		{"small", 60, 30, 120, 3, "1 July 2027", 3},
		{"split tiers", 600, 600, 120, 0, "No current requirement", 0},
		{"tiny", 10, 5, 20, 0, "No current requirement", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := ClassifyASRS(tc.revenue, tc.assets, tc.employees)
			assert.Equal(t, tc.group, c.Group)
			assert.Equal(t, tc.date, c.ReportingDate)
			assert.Equal(t, tc.met, c.CriteriaMet)
		})
	}
}

func TestParseGeminiFiguresRepairsJSON(t *testing.T) {
	raw := "```json\n{\"company_name\": \"Acme Resources Limited\", \"financial_year\": \"FY2024\",\n" +
		"\"total_revenue\": {\"amount\": 0.6125, \"unit\": \"billion\", \"line_item\": \"Total Revenue\", \"asrs_compliant\": true},\n" +
		"\"total_assets\": {\"amount\": 1200000, \"unit\": \"thousand\", \"line_item\": \"Total Assets\"},\n" +
		"\"total_employees\": {\"count\": 1250},\n" +
		"\"confidence_scores\": {\"total_revenue\": 9, \"total_assets\": 8,},}\n```"

	f, err := ParseGeminiFigures(raw)
	require.NoError(t, err)
	assert.Equal(t, MethodGemini, f.Method)
	require.NotNil(t, f.Revenue)
	assert.InDelta(t, 612.5, f.Revenue.Amount, 0.001)
	require.NotNil(t, f.Assets)
	assert.InDelta(t, 1200, f.Assets.Amount, 0.001)
	assert.True(t, f.Assets.Compliant)
	assert.Equal(t, 9, f.Confidence["total_revenue"])
	require.NotNil(t, f.Classification)
	assert.Equal(t, 1, f.Classification.Group)
}

func TestGeminiExtractUsesGenerator(t *testing.T) {
	var prompt string
	g := &Gemini{
		model:  "test-model",
		logger: zaptest.NewLogger(t),
		generate: func(_ context.Context, p string) (string, error) {
			prompt = p
			return `{"company_name": "Acme", "total_employees": null}`, nil
		},
	}
	f, err := g.Extract(context.Background(), "Acme Resources", "report body")
	require.NoError(t, err)
	assert.Contains(t, prompt, "Company: Acme Resources")
	assert.Contains(t, prompt, "report body")
	assert.Equal(t, "Acme", f.CompanyName)
	assert.False(t, f.Employees.Disclosed)
}

func TestNewGeminiNeedsKey(t *testing.T) {
	_, err := NewGemini(context.Background(), config.AnalysisConfig{Model: "m"}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func newDocServer(t *testing.T) *httptest.Server {
	pdfBody := buildPDF("Acme Resources Limited Annual Report 2024",
		"Total revenue $612.5 million", "Total assets $1.2 billion", "Total employees: 1,250")
	mux := http.NewServeMux()
	mux.HandleFunc("/reports/annual-report-2024.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(pdfBody)
	})
	mux.HandleFunc("/investors/results", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><title>FY24 results</title></head><body><article>
<h1>Full year results</h1>
<p>Acme delivered another solid year for shareholders across all of its operating divisions and regions.</p>
<p>For the year ended 30 June 2024 the group reported total revenue $250 million, up eight per cent on the prior period, driven by volume growth.</p>
<p>At balance date the group held total assets $600 million and employed a workforce of 300 people across Australia.</p>
<p>The board declared a fully franked final dividend and reaffirmed its guidance for the coming financial year.</p>
</article></body></html>`)
	})
	mux.HandleFunc("/missing.pdf", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testFetcher(t *testing.T) *fetch.Fetcher {
	cfg := config.Default().Logic
	cfg.PageTimeoutSec = 2
	cfg.DownloadTimeoutSec = 2
	return fetch.New(cfg, zaptest.NewLogger(t))
}

func TestAnalyzePDF(t *testing.T) {
	srv := newDocServer(t)
	a := New(testFetcher(t), nil, 60000, zaptest.NewLogger(t))

	report, err := a.Analyze(context.Background(), srv.URL+"/reports/annual-report-2024.pdf", "Acme Resources")
	require.NoError(t, err)
	assert.Equal(t, TypePDF, report.DocumentType)
	assert.Equal(t, MethodPatterns, report.Provider)
	assert.False(t, report.Truncated)
	require.NotNil(t, report.Figures.Revenue)
	assert.InDelta(t, 612.5, report.Figures.Revenue.Amount, 0.001)
	require.NotNil(t, report.Figures.Classification)
	assert.Equal(t, 1, report.Figures.Classification.Group)
}

func TestAnalyzeWebPage(t *testing.T) {
	srv := newDocServer(t)
	a := New(testFetcher(t), nil, 60000, zaptest.NewLogger(t))

	report, err := a.Analyze(context.Background(), srv.URL+"/investors/results", "Acme")
	require.NoError(t, err)
	assert.Equal(t, TypeWebPage, report.DocumentType)
	require.NotNil(t, report.Figures.Revenue)
	assert.InDelta(t, 250, report.Figures.Revenue.Amount, 0.001)
	require.NotNil(t, report.Figures.Assets)
	assert.InDelta(t, 600, report.Figures.Assets.Amount, 0.001)
}

type failingExtractor struct{}

func (failingExtractor) Name() string { return "gemini" }

func (failingExtractor) Extract(context.Context, string, string) (models.FinancialFigures, error) {
	return models.FinancialFigures{}, errors.New("quota exceeded")
}

func TestAnalyzeFallsBackToPatterns(t *testing.T) {
	srv := newDocServer(t)
	a := New(testFetcher(t), failingExtractor{}, 60000, zaptest.NewLogger(t))

	report, err := a.Analyze(context.Background(), srv.URL+"/reports/annual-report-2024.pdf", "Acme")
	require.NoError(t, err)
	assert.Equal(t, MethodPatterns, report.Provider)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "quota exceeded")
	assert.NotNil(t, report.Figures.Revenue)
}

func TestAnalyzeDownloadFailure(t *testing.T) {
	srv := newDocServer(t)
	a := New(testFetcher(t), nil, 60000, zaptest.NewLogger(t))

	_, err := a.Analyze(context.Background(), srv.URL+"/missing.pdf", "Acme")
	require.Error(t, err)
	var fe *fetch.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
}
