package urlqueue

import (
	"encoding/xml"
	"fmt"
	"strings"
)

type SitemapIndex struct {
	Sitemaps []SitemapEntry `xml:"sitemap"`
}

type SitemapEntry struct {
	Loc string `xml:"loc"`
}

type URLSet struct {
	URLs []SitemapEntry `xml:"url"`
}

// ParseSitemap reads either a <urlset> or a <sitemapindex> document.
// Page locations come back in pages, nested sitemap locations in nested.
func ParseSitemap(data []byte) (pages []string, nested []string, err error) {
	var probe struct {
		XMLName xml.Name
	}
	if err := xml.Unmarshal(data, &probe); err != nil {
		return nil, nil, fmt.Errorf("parse sitemap: %w", err)
	}

	switch probe.XMLName.Local {
	case "sitemapindex":
		var si SitemapIndex
		if err := xml.Unmarshal(data, &si); err != nil {
			return nil, nil, fmt.Errorf("parse sitemap index: %w", err)
		}
		for _, s := range si.Sitemaps {
			if loc := strings.TrimSpace(s.Loc); loc != "" {
				nested = append(nested, loc)
			}
		}
	case "urlset":
		var us URLSet
		if err := xml.Unmarshal(data, &us); err != nil {
			return nil, nil, fmt.Errorf("parse urlset: %w", err)
		}
		for _, u := range us.URLs {
			if loc := strings.TrimSpace(u.Loc); loc != "" {
				pages = append(pages, loc)
			}
		}
	default:
		return nil, nil, fmt.Errorf("unexpected sitemap root <%s>", probe.XMLName.Local)
	}
	return pages, nested, nil
}
