package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"report_spider/internal/app"
	"report_spider/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubSpider struct {
	clients []string
	query   models.CompanyQuery
	err     error
	history map[string]*models.DiscoveryRecord
}

func (s *stubSpider) Discover(_ context.Context, clientID string, q models.CompanyQuery) (*models.DiscoveryResponse, error) {
	s.clients = append(s.clients, clientID)
	s.query = q
	if s.err != nil {
		return nil, s.err
	}
	return &models.DiscoveryResponse{
		Status:      "success",
		CompanyName: q.Name,
		RankedDocuments: []models.ScoredDocument{{
			LinkCandidate: models.LinkCandidate{URL: "https://www.commbank.com.au/ar-2025.pdf", Format: models.FormatPDF},
			Score:         60,
			Rank:          1,
		}},
		RateLimit: &models.RateLimitInfo{Remaining: 9, Limit: 10, WindowSec: 60},
	}, nil
}

func (s *stubSpider) Search(_ context.Context, clientID string, q models.CompanyQuery) (*models.SearchResponse, error) {
	s.clients = append(s.clients, clientID)
	s.query = q
	if s.err != nil {
		return nil, s.err
	}
	return &models.SearchResponse{CompanyName: q.Name, Results: []models.LinkCandidate{}}, nil
}

func (s *stubSpider) Analyze(_ context.Context, clientID, docURL, company string) (*models.AnalysisReport, error) {
	s.clients = append(s.clients, clientID)
	if s.err != nil {
		return nil, s.err
	}
	return &models.AnalysisReport{CompanyName: company, DocumentURL: docURL}, nil
}

func (s *stubSpider) History(_ context.Context, company string, year int) (*models.DiscoveryRecord, error) {
	if s.history == nil {
		return nil, app.ErrHistoryDisabled
	}
	rec, ok := s.history[models.QueryKey(company, year)]
	if !ok {
		return nil, app.ErrNotFound
	}
	return rec, nil
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestDiscoverEndpoint(t *testing.T) {
	spider := &stubSpider{}
	h := NewRouter(spider, zaptest.NewLogger(t))

	rec := do(t, h, http.MethodPost, "/api/discover", `{"companyName":"Commonwealth Bank","selectedYear":2025}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "9", rec.Header().Get("X-RateLimit-Remaining"))

	var resp models.DiscoveryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Commonwealth Bank", resp.CompanyName)
	require.Len(t, resp.RankedDocuments, 1)
	assert.Equal(t, 60, resp.RankedDocuments[0].Score)
	assert.Equal(t, 2025, spider.query.Year)
	assert.Equal(t, []string{"192.0.2.1"}, spider.clients)
}

func TestClientIDFromForwardedFor(t *testing.T) {
	spider := &stubSpider{}
	h := NewRouter(spider, zaptest.NewLogger(t))

	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{"companyName":"Acme"}`))
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"203.0.113.7"}, spider.clients)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"rate limited", &app.RateLimitError{Limit: 10, Window: time.Minute, RetryAfter: 42 * time.Second}, http.StatusTooManyRequests},
		{"invalid", fmt.Errorf("%w: company name is required", app.ErrInvalidQuery), http.StatusBadRequest},
		{"cancelled", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"upstream", errors.New("retrieve document: HTTP 404"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRouter(&stubSpider{err: tt.err}, zaptest.NewLogger(t))
			rec := do(t, h, http.MethodPost, "/api/discover", `{"companyName":"Acme"}`)
			assert.Equal(t, tt.status, rec.Code)

			var body errorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestRateLimitedHeaders(t *testing.T) {
	h := NewRouter(&stubSpider{err: &app.RateLimitError{Limit: 10, Window: time.Minute, RetryAfter: 1500 * time.Millisecond}}, zaptest.NewLogger(t))
	rec := do(t, h, http.MethodPost, "/api/analyze", `{"documentUrl":"https://acme.com.au/ar.pdf","companyName":"Acme"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestMalformedBody(t *testing.T) {
	spider := &stubSpider{}
	h := NewRouter(spider, zaptest.NewLogger(t))
	rec := do(t, h, http.MethodPost, "/api/discover", `{"companyName":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, spider.clients)
}

func TestAnalyzeEndpoint(t *testing.T) {
	h := NewRouter(&stubSpider{}, zaptest.NewLogger(t))
	rec := do(t, h, http.MethodPost, "/api/analyze", `{"documentUrl":"https://acme.com.au/ar.pdf","companyName":"Acme"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var report models.AnalysisReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "https://acme.com.au/ar.pdf", report.DocumentURL)
}

func TestHistoryEndpoint(t *testing.T) {
	h := NewRouter(&stubSpider{}, zaptest.NewLogger(t))
	assert.Equal(t, http.StatusNotImplemented, do(t, h, http.MethodGet, "/api/discoveries/Acme", "").Code)

	spider := &stubSpider{history: map[string]*models.DiscoveryRecord{
		"acme|2025": {CompanyName: "Acme", Year: 2025, RunCount: 3},
	}}
	h = NewRouter(spider, zaptest.NewLogger(t))

	rec := do(t, h, http.MethodGet, "/api/discoveries/Acme?year=2025", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.DiscoveryRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 3, got.RunCount)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/discoveries/Acme", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/discoveries/Acme?year=last", "").Code)
}

func TestHealthz(t *testing.T) {
	h := NewRouter(&stubSpider{}, zaptest.NewLogger(t))
	rec := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
