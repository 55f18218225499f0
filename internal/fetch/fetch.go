package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"report_spider/internal/config"

	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
)

type ErrorKind string

const (
	KindTimeout    ErrorKind = "timeout"
	KindConnection ErrorKind = "connection"
	KindHTTPStatus ErrorKind = "http_status"
	KindBlocked    ErrorKind = "blocked"
	KindTooLarge   ErrorKind = "too_large"
)

type FetchError struct {
	URL        string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == KindHTTPStatus {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type Page struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

func (p *Page) IsPDF() bool {
	return strings.Contains(strings.ToLower(p.ContentType), "application/pdf") ||
		strings.HasPrefix(string(p.Body), "%PDF")
}

var browserHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-AU,en;q=0.9",
	"Cache-Control":             "no-cache",
	"Upgrade-Insecure-Requests": "1",
	"Referer":                   "https://www.google.com/",
}

type Fetcher struct {
	client *http.Client
	cfg    config.LogicConfig
	logger *zap.Logger
}

func New(cfg config.LogicConfig, logger *zap.Logger) *Fetcher {
	jar, _ := cookiejar.New(nil)
	maxHops := cfg.MaxRedirects
	if maxHops <= 0 {
		maxHops = 10
	}
	return &Fetcher{
		cfg:    cfg,
		logger: logger,
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				DisableKeepAlives:   true,
				TLSHandshakeTimeout: 10 * time.Second,
			},
			Jar: jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxHops {
					return fmt.Errorf("stopped after %d redirects", maxHops)
				}
				return nil
			},
		},
	}
}

func (f *Fetcher) UserAgent() string {
	return f.cfg.UserAgent
}

func (f *Fetcher) newRequest(ctx context.Context, method, urlStr string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, urlStr, nil)
	if err != nil {
		return nil, &FetchError{URL: urlStr, Kind: KindConnection, Err: err}
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}
	return req, nil
}

// Fetch GETs an HTML page, decoding it to UTF-8.
func (f *Fetcher) Fetch(ctx context.Context, urlStr string) (*Page, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.PageTimeout())
	defer cancel()

	page, err := f.get(ctx, urlStr, true)
	if err != nil {
		return nil, err
	}

	lowerBody := strings.ToLower(string(page.Body))
	if isChallengePage(lowerBody) {
		return nil, &FetchError{URL: urlStr, Kind: KindBlocked, StatusCode: page.StatusCode, Err: errors.New("captcha detected")}
	}
	return page, nil
}

// Download GETs a document as raw bytes with the longer download timeout.
func (f *Fetcher) Download(ctx context.Context, urlStr string) (*Page, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.DownloadTimeout())
	defer cancel()
	return f.get(ctx, urlStr, false)
}

// Alive sends a HEAD request; any 2xx or 3xx answer counts as alive.
func (f *Fetcher) Alive(ctx context.Context, urlStr string) bool {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.ProbeTimeout())
	defer cancel()

	req, err := f.newRequest(ctx, http.MethodHead, urlStr)
	if err != nil {
		return false
	}
	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Debug("probe failed", zap.String("url", urlStr), zap.Error(err))
		return false
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 400
}

func (f *Fetcher) get(ctx context.Context, urlStr string, decode bool) (*Page, error) {
	req, err := f.newRequest(ctx, http.MethodGet, urlStr)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classify(urlStr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return nil, &FetchError{URL: urlStr, Kind: KindHTTPStatus, StatusCode: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	var body io.Reader = resp.Body
	if decode && strings.Contains(strings.ToLower(contentType), "html") {
		utf8Reader, err := charset.NewReader(resp.Body, contentType)
		if err == nil {
			body = utf8Reader
		}
	}

	limit := int64(f.cfg.MaxBodyMB) << 20
	if limit <= 0 {
		limit = 25 << 20
	}
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, classify(urlStr, err)
	}
	if int64(len(data)) > limit {
		return nil, &FetchError{URL: urlStr, Kind: KindTooLarge, StatusCode: resp.StatusCode, Err: fmt.Errorf("body exceeds %d bytes", limit)}
	}

	f.logger.Debug("fetched",
		zap.String("url", urlStr),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(data)),
		zap.Duration("took", time.Since(start)))

	return &Page{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Body:        data,
	}, nil
}

func classify(urlStr string, err error) *FetchError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &FetchError{URL: urlStr, Kind: KindTimeout, Err: err}
	}
	return &FetchError{URL: urlStr, Kind: KindConnection, Err: err}
}

// Challenge pages are short; real sites mention captcha in footers too.
func isChallengePage(lowerBody string) bool {
	if len(lowerBody) > 20000 {
		return false
	}
	return strings.Contains(lowerBody, "captcha") ||
		strings.Contains(lowerBody, "security check") ||
		strings.Contains(lowerBody, "verify you are human")
}
