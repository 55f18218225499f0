package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"report_spider/internal/config"
	"report_spider/internal/models"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const MethodGemini = "gemini"

const geminiPrompt = `You are a chartered accountant reviewing an Australian annual report for
ASRS (AASB S1 and S2) classification.

Extract from the consolidated financial statements:
- total revenue: use "Revenue from contracts with customers", "Total Revenue", "Total Income"
  or, for banks, "Interest Income". "Net Operating Income", "Net Profit After Tax" and
  "Total Comprehensive Income" are not acceptable line items; if you must use one, set
  asrs_compliant to false.
- total assets: the "Total Assets" line of the Statement of Financial Position (consolidated).
- employees: full time equivalent or total headcount, if disclosed.

Report amounts with their scale exactly as printed (unit: "thousand", "million" or "billion").
Give each figure a confidence from 0 to 10. Use null for anything not found.

Respond with JSON only, in this shape:
{"company_name": string, "financial_year": string,
 "total_revenue": {"amount": number, "unit": string, "line_item": string, "asrs_compliant": bool},
 "total_assets": {"amount": number, "unit": string, "line_item": string, "asrs_compliant": bool},
 "total_employees": {"count": number},
 "confidence_scores": {"total_revenue": number, "total_assets": number, "total_employees": number}}

Company: %s

Report text:
%s`

type geminiAmount struct {
	Amount    *float64 `json:"amount"`
	Unit      string   `json:"unit"`
	LineItem  string   `json:"line_item"`
	Compliant *bool    `json:"asrs_compliant"`
}

type geminiFigures struct {
	CompanyName   string        `json:"company_name"`
	FinancialYear string        `json:"financial_year"`
	Revenue       *geminiAmount `json:"total_revenue"`
	Assets        *geminiAmount `json:"total_assets"`
	Employees     *struct {
		Count *float64 `json:"count"`
	} `json:"total_employees"`
	Confidence map[string]float64 `json:"confidence_scores"`
}

// Gemini extracts figures with a hosted model. Its answer is repaired
// before decoding since models wrap or truncate JSON.
type Gemini struct {
	model    string
	generate func(ctx context.Context, prompt string) (string, error)
	logger   *zap.Logger
}

func NewGemini(ctx context.Context, cfg config.AnalysisConfig, logger *zap.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: GEMINI_API_KEY is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	g := &Gemini{model: cfg.Model, logger: logger}
	g.generate = func(ctx context.Context, prompt string) (string, error) {
		resp, err := client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
			Temperature:      genai.Ptr(float32(0.1)),
			ResponseMIMEType: "application/json",
		})
		if err != nil {
			return "", fmt.Errorf("gemini generate: %w", err)
		}
		return resp.Text(), nil
	}
	return g, nil
}

func (g *Gemini) Name() string { return MethodGemini }

func (g *Gemini) Extract(ctx context.Context, company, text string) (models.FinancialFigures, error) {
	raw, err := g.generate(ctx, fmt.Sprintf(geminiPrompt, company, text))
	if err != nil {
		return models.FinancialFigures{}, err
	}
	g.logger.Debug("gemini answered", zap.String("model", g.model), zap.Int("chars", len(raw)))
	return ParseGeminiFigures(raw)
}

// ParseGeminiFigures decodes a model answer into figures in millions and
// classifies the result.
func ParseGeminiFigures(raw string) (models.FinancialFigures, error) {
	repaired, err := jsonrepair.RepairJSON(stripCodeFence(raw))
	if err != nil {
		return models.FinancialFigures{}, fmt.Errorf("repair gemini json: %w", err)
	}
	var gf geminiFigures
	if err := json.Unmarshal([]byte(repaired), &gf); err != nil {
		return models.FinancialFigures{}, fmt.Errorf("decode gemini json: %w", err)
	}

	f := models.FinancialFigures{
		CompanyName:   gf.CompanyName,
		FinancialYear: gf.FinancialYear,
		Revenue:       gf.Revenue.toAmount(),
		Assets:        gf.Assets.toAmount(),
		Confidence:    make(map[string]int),
		Method:        MethodGemini,
	}
	for k, v := range gf.Confidence {
		f.Confidence[k] = int(v)
	}
	if gf.Employees != nil && gf.Employees.Count != nil && *gf.Employees.Count > 0 {
		f.Employees = models.EmployeeCount{Count: int(*gf.Employees.Count), Disclosed: true}
	} else {
		f.Employees = models.EmployeeCount{RecommendedSources: EmployeeSources}
	}
	classify(&f)
	return f, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

func (a *geminiAmount) toAmount() *models.FinancialAmount {
	if a == nil || a.Amount == nil {
		return nil
	}
	v := *a.Amount
	switch strings.ToLower(strings.TrimSpace(a.Unit)) {
	case "billion", "bn", "b":
		v *= 1000
	case "thousand", "thousands", "k", "'000", "$'000":
		v /= 1000
	}
	compliant := true
	if a.Compliant != nil {
		compliant = *a.Compliant
	}
	return &models.FinancialAmount{
		Amount:    v,
		Unit:      "million",
		Currency:  "AUD",
		LineItem:  a.LineItem,
		Compliant: compliant,
	}
}
