// Package analysis downloads a discovered document, turns it into text and
// extracts the figures needed for ASRS classification.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"report_spider/internal/crawler"
	"report_spider/internal/fetch"
	"report_spider/internal/models"

	"go.uber.org/zap"
)

const (
	TypePDF     = "PDF"
	TypeWebPage = "Web Page"
)

var ErrNoText = errors.New("document has no extractable text")

type Downloader interface {
	Fetch(ctx context.Context, url string) (*fetch.Page, error)
	Download(ctx context.Context, url string) (*fetch.Page, error)
}

// Extractor turns document text into figures.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, company, text string) (models.FinancialFigures, error)
}

type Patterns struct{}

func (Patterns) Name() string { return MethodPatterns }

func (Patterns) Extract(_ context.Context, _ string, text string) (models.FinancialFigures, error) {
	return ExtractFigures(text), nil
}

type Analyzer struct {
	docs      Downloader
	extractor Extractor
	maxChars  int
	logger    *zap.Logger
	now       func() time.Time
}

// New uses extractor when given and falls back to pattern matching when
// it fails or is nil.
func New(docs Downloader, extractor Extractor, maxChars int, logger *zap.Logger) *Analyzer {
	if extractor == nil {
		extractor = Patterns{}
	}
	return &Analyzer{docs: docs, extractor: extractor, maxChars: maxChars, logger: logger, now: time.Now}
}

func (a *Analyzer) Analyze(ctx context.Context, docURL, company string) (*models.AnalysisReport, error) {
	text, docType, err := a.documentText(ctx, docURL)
	if err != nil {
		return nil, err
	}
	length := len([]rune(text))
	text, truncated := Truncate(text, a.maxChars)

	report := &models.AnalysisReport{
		CompanyName:    company,
		DocumentURL:    docURL,
		DocumentType:   docType,
		DocumentLength: length,
		Truncated:      truncated,
		Provider:       a.extractor.Name(),
		Timestamp:      a.now().UTC(),
	}

	figures, err := a.extractor.Extract(ctx, company, text)
	if err != nil {
		if _, isPatterns := a.extractor.(Patterns); isPatterns {
			return nil, err
		}
		a.logger.Warn("extractor failed, using patterns",
			zap.String("extractor", a.extractor.Name()),
			zap.String("url", docURL),
			zap.Error(err))
		report.Warnings = append(report.Warnings, fmt.Sprintf("%s extraction failed: %v", a.extractor.Name(), err))
		report.Provider = MethodPatterns
		figures = ExtractFigures(text)
	}
	report.Figures = figures

	a.logger.Info("document analyzed",
		zap.String("company", company),
		zap.String("url", docURL),
		zap.String("type", docType),
		zap.Int("chars", length),
		zap.String("provider", report.Provider))
	return report, nil
}

func (a *Analyzer) documentText(ctx context.Context, docURL string) (string, string, error) {
	var (
		page *fetch.Page
		err  error
	)
	if strings.Contains(strings.ToLower(docURL), ".pdf") {
		page, err = a.docs.Download(ctx, docURL)
	} else {
		page, err = a.docs.Fetch(ctx, docURL)
	}
	if err != nil {
		return "", "", fmt.Errorf("retrieve document: %w", err)
	}

	if page.IsPDF() {
		// Cut later, once the full length is known.
		text, _, err := ExtractPDFText(page.Body, 0)
		if err != nil {
			return "", TypePDF, err
		}
		if strings.TrimSpace(text) == "" {
			return "", TypePDF, ErrNoText
		}
		return text, TypePDF, nil
	}

	article, err := crawler.ExtractContent(string(page.Body), page.URL)
	if err != nil {
		return "", TypeWebPage, fmt.Errorf("extract page text: %w", err)
	}
	if strings.TrimSpace(article.Text) == "" {
		return "", TypeWebPage, ErrNoText
	}
	return article.Text, TypeWebPage, nil
}
