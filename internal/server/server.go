// Package server exposes the discovery pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"report_spider/internal/app"
	"report_spider/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Spider is the part of app.SpiderApp the handlers call.
type Spider interface {
	Discover(ctx context.Context, clientID string, q models.CompanyQuery) (*models.DiscoveryResponse, error)
	Search(ctx context.Context, clientID string, q models.CompanyQuery) (*models.SearchResponse, error)
	Analyze(ctx context.Context, clientID, docURL, company string) (*models.AnalysisReport, error)
	History(ctx context.Context, company string, year int) (*models.DiscoveryRecord, error)
}

type analyzeRequest struct {
	DocumentURL string `json:"documentUrl"`
	CompanyName string `json:"companyName"`
}

type errorBody struct {
	Error string `json:"error"`
}

const maxRequestBody = 1 << 20

type Handler struct {
	spider Spider
	logger *zap.Logger
}

func NewRouter(spider Spider, logger *zap.Logger) http.Handler {
	h := &Handler{spider: spider, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.accessLog)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api", func(r chi.Router) {
		r.Post("/discover", h.discover)
		r.Post("/search", h.search)
		r.Post("/analyze", h.analyze)
		r.Get("/discoveries/{company}", h.history)
	})
	return r
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.String("client", clientID(r)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Duration("took", time.Since(start)))
	})
}

// clientID is the rate-limit key. RealIP has already folded
// X-Forwarded-For and X-Real-IP into RemoteAddr.
func clientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

func (h *Handler) discover(w http.ResponseWriter, r *http.Request) {
	var q models.CompanyQuery
	if !decode(w, r, &q) {
		return
	}
	resp, err := h.spider.Discover(r.Context(), clientID(r), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	setRateHeaders(w, resp.RateLimit)
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	var q models.CompanyQuery
	if !decode(w, r, &q) {
		return
	}
	resp, err := h.spider.Search(r.Context(), clientID(r), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	setRateHeaders(w, resp.RateLimit)
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !decode(w, r, &req) {
		return
	}
	report, err := h.spider.Analyze(r.Context(), clientID(r), req.DocumentURL, req.CompanyName)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	year := 0
	if y := r.URL.Query().Get("year"); y != "" {
		v, err := strconv.Atoi(y)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "year must be a number"})
			return
		}
		year = v
	}
	rec, err := h.spider.History(r.Context(), chi.URLParam(r, "company"), year)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var rle *app.RateLimitError
	switch {
	case errors.As(err, &rle):
		secs := int(rle.RetryAfter.Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rle.Limit))
		w.Header().Set("X-RateLimit-Remaining", "0")
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: err.Error()})
	case errors.Is(err, app.ErrInvalidQuery):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, app.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, app.ErrHistoryDisabled):
		writeJSON(w, http.StatusNotImplemented, errorBody{Error: err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusGatewayTimeout, errorBody{Error: "request cancelled"})
	default:
		h.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, errorBody{Error: strings.TrimSpace(err.Error())})
	}
}

func setRateHeaders(w http.ResponseWriter, info *models.RateLimitInfo) {
	if info == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
