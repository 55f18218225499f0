package urlqueue

import (
	"crypto/md5"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"
)

// URLQueue is a FIFO frontier that never yields the same normalized URL twice.
type URLQueue struct {
	URLs     map[string]bool
	Queue    []string
	MaxPages int
	mu       sync.Mutex
}

func NewURLQueue(maxPages int) *URLQueue {
	return &URLQueue{
		URLs:     make(map[string]bool),
		Queue:    make([]string, 0),
		MaxPages: maxPages,
	}
}

// Add enqueues urlStr unless it was seen before or the queue is full.
func (q *URLQueue) Add(urlStr string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	normalized := NormalizeURL(urlStr)
	if q.URLs[normalized] {
		return false
	}
	if q.MaxPages > 0 && len(q.Queue) >= q.MaxPages {
		return false
	}
	q.URLs[normalized] = true
	q.Queue = append(q.Queue, urlStr)
	return true
}

// MarkSeen records urlStr without enqueueing it.
func (q *URLQueue) MarkSeen(urlStr string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.URLs[NormalizeURL(urlStr)] = true
}

func (q *URLQueue) Seen(urlStr string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.URLs[NormalizeURL(urlStr)]
}

func (q *URLQueue) Get() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.Queue) == 0 {
		return "", false
	}
	u := q.Queue[0]
	q.Queue = q.Queue[1:]
	return u, true
}

func (q *URLQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.Queue)
}

// NormalizeURL produces the dedupe key for a URL: no fragment, no "www.",
// lowercase host, no tracking parameters, no trailing slash.
func NormalizeURL(urlStr string) string {
	parsed, err := url.Parse(strings.TrimSpace(urlStr))
	if err != nil {
		return urlStr
	}

	parsed.Fragment = ""
	parsed.Host = strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")

	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}
	if parsed.Scheme == "http" {
		parsed.Scheme = "https"
	}

	if parsed.RawQuery != "" {
		q := parsed.Query()
		for k := range q {
			if strings.HasPrefix(strings.ToLower(k), "utm_") {
				q.Del(k)
			}
		}
		parsed.RawQuery = q.Encode()
	}

	if len(parsed.Path) > 1 {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	} else {
		parsed.Path = ""
	}
	parsed.RawPath = ""

	return parsed.String()
}

// ResolveURL turns href into an absolute http(s) URL relative to base.
func ResolveURL(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	lower := strings.ToLower(href)
	for _, scheme := range []string{"mailto:", "tel:", "javascript:", "data:"} {
		if strings.HasPrefix(lower, scheme) {
			return "", false
		}
	}

	parsedHref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	resolved := parsedHref
	if base != nil {
		resolved = base.ResolveReference(parsedHref)
	}
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	if resolved.Host == "" {
		return "", false
	}
	resolved.Fragment = ""
	return resolved.String(), true
}

// Extension returns the lowercase file extension of the URL path, without the dot.
func Extension(urlStr string) string {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(path.Ext(parsed.Path)), ".")
}

// HostWithin reports whether the host of urlStr is domain or a subdomain of it.
func HostWithin(urlStr, domain string) bool {
	domain = strings.TrimPrefix(strings.ToLower(domain), "www.")
	if domain == "" {
		return false
	}
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	return host == domain || strings.HasSuffix(host, "."+domain)
}

func ComputeContentHash(content string) string {
	hash := md5.Sum([]byte(content))
	return fmt.Sprintf("%x", hash)
}
