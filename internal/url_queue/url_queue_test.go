package urlqueue

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"https://www.commbank.com.au/about-us/", "https://commbank.com.au/about-us"},
		{"http://WWW.Example.com/a#section", "https://example.com/a"},
		{"https://example.com/", "https://example.com"},
		{"https://example.com/r.pdf?utm_source=x&id=3", "https://example.com/r.pdf?id=3"},
		{"https://example.com/r.pdf?utm_medium=y", "https://example.com/r.pdf"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, NormalizeURL(c.in), c.in)
	}
}

func TestURLQueueDedupes(t *testing.T) {
	q := NewURLQueue(0)
	assert.True(t, q.Add("https://www.example.com/a"))
	assert.False(t, q.Add("https://example.com/a/"))
	assert.True(t, q.Add("https://example.com/b"))
	assert.Equal(t, 2, q.Size())

	q.MarkSeen("https://example.com/c")
	assert.False(t, q.Add("https://example.com/c"))
	assert.True(t, q.Seen("http://www.example.com/c#x"))

	first, ok := q.Get()
	require.True(t, ok)
	assert.Equal(t, "https://www.example.com/a", first)
}

func TestURLQueueRespectsMax(t *testing.T) {
	q := NewURLQueue(1)
	assert.True(t, q.Add("https://example.com/a"))
	assert.False(t, q.Add("https://example.com/b"))

	_, ok := q.Get()
	assert.True(t, ok)
	_, ok = q.Get()
	assert.False(t, ok)
}

func TestResolveURL(t *testing.T) {
	base, _ := url.Parse("https://www.example.com.au/investors/")

	got, ok := ResolveURL(base, "reports/ar-2024.pdf")
	require.True(t, ok)
	assert.Equal(t, "https://www.example.com.au/investors/reports/ar-2024.pdf", got)

	got, ok = ResolveURL(base, "/about#team")
	require.True(t, ok)
	assert.Equal(t, "https://www.example.com.au/about", got)

	for _, bad := range []string{"", "#top", "mailto:ir@example.com", "tel:131313", "javascript:void(0)"} {
		_, ok := ResolveURL(base, bad)
		assert.False(t, ok, bad)
	}
}

func TestHostWithin(t *testing.T) {
	assert.True(t, HostWithin("https://www.commbank.com.au/a.pdf", "commbank.com.au"))
	assert.True(t, HostWithin("https://commbank.com.au", "www.commbank.com.au"))
	assert.False(t, HostWithin("https://commbank.com.au.evil.net/a", "commbank.com.au"))
	assert.False(t, HostWithin("https://notcommbank.com.au/a", "commbank.com.au"))
	assert.False(t, HostWithin("https://commbank.com.au/a", ""))
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "pdf", Extension("https://x.com/Annual-Report.PDF?download=1"))
	assert.Equal(t, "", Extension("https://x.com/investors"))
}

func TestParseSitemap(t *testing.T) {
	pages, nested, err := ParseSitemap([]byte(`<?xml version="1.0"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://example.com/annual-report-2024.pdf</loc></url>
  <url><loc> https://example.com/about </loc></url>
</urlset>`))
	require.NoError(t, err)
	assert.Empty(t, nested)
	assert.Equal(t, []string{"https://example.com/annual-report-2024.pdf", "https://example.com/about"}, pages)

	pages, nested, err = ParseSitemap([]byte(`<sitemapindex><sitemap><loc>https://example.com/s1.xml</loc></sitemap></sitemapindex>`))
	require.NoError(t, err)
	assert.Empty(t, pages)
	assert.Equal(t, []string{"https://example.com/s1.xml"}, nested)

	_, _, err = ParseSitemap([]byte(`<html></html>`))
	assert.Error(t, err)
}
