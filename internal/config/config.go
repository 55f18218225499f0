package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type ServerConfig struct {
	ListenAddr      string `yaml:"listen_addr"`
	ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
	WriteTimeoutSec int    `yaml:"write_timeout_sec"`
}

type DBConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Connection  string `yaml:"connection"`
	Database    string `yaml:"database"`
	Collections struct {
		Discoveries string `yaml:"discoveries"`
		RateLimits  string `yaml:"rate_limits"`
	} `yaml:"collections"`
}

type LogicConfig struct {
	UserAgent          string `yaml:"user_agent"`
	ProbeTimeoutSec    int    `yaml:"probe_timeout_sec"`
	PageTimeoutSec     int    `yaml:"page_timeout_sec"`
	DownloadTimeoutSec int    `yaml:"download_timeout_sec"`
	MaxRedirects       int    `yaml:"max_redirects"`
	MaxBodyMB          int    `yaml:"max_body_mb"`
	DelayMS            int    `yaml:"delay_ms"`
	RandomDelayMS      int    `yaml:"random_delay_ms"`
}

type DiscoveryConfig struct {
	EnableSearch         bool `yaml:"enable_search"`
	EnableDeepCrawl      bool `yaml:"enable_deep_crawl"`
	EnableSitemap        bool `yaml:"enable_sitemap"`
	MaxSiteLinks         int  `yaml:"max_site_links"`
	DeepCrawlPages       int  `yaml:"deep_crawl_pages"`
	DeepCrawlAnchorLimit int  `yaml:"deep_crawl_anchor_limit"`
	SitemapURLLimit      int  `yaml:"sitemap_url_limit"`
	MaxRanked            int  `yaml:"max_ranked"`
}

type SearchConfig struct {
	Provider         string  `yaml:"provider"` // serpapi, duckduckgo
	Endpoint         string  `yaml:"endpoint"`
	APIKey           string  `yaml:"api_key"`
	ResultsPerQuery  int     `yaml:"results_per_query"`
	Country          string  `yaml:"country"`
	Language         string  `yaml:"language"`
	TimeoutSec       int     `yaml:"timeout_sec"`
	QueriesPerSecond float64 `yaml:"queries_per_second"`
	MaxConcurrent    int     `yaml:"max_concurrent"`
}

type RateLimitConfig struct {
	Backend     string `yaml:"backend"` // memory, mongo
	MaxRequests int    `yaml:"max_requests"`
	WindowSec   int    `yaml:"window_sec"`
}

type AnalysisConfig struct {
	Provider string `yaml:"provider"` // pattern, gemini
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	MaxChars int    `yaml:"max_chars"`
}

type LogConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

type SpiderConfig struct {
	Server    ServerConfig    `yaml:"server"`
	DB        DBConfig        `yaml:"db"`
	Logic     LogicConfig     `yaml:"logic"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Search    SearchConfig    `yaml:"search"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Log       LogConfig       `yaml:"log"`
}

// Default returns a config that runs without any file or credentials.
func Default() *SpiderConfig {
	cfg := &SpiderConfig{
		Server: ServerConfig{ListenAddr: ":8080", ReadTimeoutSec: 15, WriteTimeoutSec: 120},
		DB: DBConfig{
			Connection: "mongodb://localhost:27017",
			Database:   "report_spider",
		},
		Logic: LogicConfig{
			UserAgent:          "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			ProbeTimeoutSec:    5,
			PageTimeoutSec:     10,
			DownloadTimeoutSec: 30,
			MaxRedirects:       10,
			MaxBodyMB:          25,
			DelayMS:            1000,
			RandomDelayMS:      500,
		},
		Discovery: DiscoveryConfig{
			EnableSearch:         true,
			EnableDeepCrawl:      true,
			EnableSitemap:        false,
			MaxSiteLinks:         15,
			DeepCrawlPages:       2,
			DeepCrawlAnchorLimit: 50,
			SitemapURLLimit:      500,
			MaxRanked:            5,
		},
		Search: SearchConfig{
			Provider:         "serpapi",
			Endpoint:         "https://serpapi.com/search",
			ResultsPerQuery:  3,
			Country:          "au",
			Language:         "en",
			TimeoutSec:       10,
			QueriesPerSecond: 5,
			MaxConcurrent:    5,
		},
		RateLimit: RateLimitConfig{Backend: "memory", MaxRequests: 10, WindowSec: 60},
		Analysis:  AnalysisConfig{Provider: "pattern", Model: "gemini-2.0-flash", MaxChars: 60000},
		Log:       LogConfig{Level: "info", Encoding: "json"},
	}
	cfg.DB.Collections.Discoveries = "discoveries"
	cfg.DB.Collections.RateLimits = "rate_limit_hits"
	return cfg
}

// LoadConfig reads path over the defaults. A missing file is not an error.
// Environment variables (and a .env file, if present) win over the file.
func LoadConfig(path string) (*SpiderConfig, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *SpiderConfig) applyEnv() {
	if v := os.Getenv("SERPAPI_KEY"); v != "" {
		c.Search.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Analysis.APIKey = v
	}
	if v := os.Getenv("MONGO_URI"); v != "" {
		c.DB.Connection = v
		c.DB.Enabled = true
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("RATE_LIMIT_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimit.MaxRequests = n
		}
	}
}

func (c *SpiderConfig) Validate() error {
	switch c.Search.Provider {
	case "serpapi", "duckduckgo":
	default:
		return fmt.Errorf("unknown search provider %q", c.Search.Provider)
	}
	switch c.RateLimit.Backend {
	case "memory":
	case "mongo":
		if !c.DB.Enabled {
			return errors.New("rate_limit.backend mongo requires db.enabled")
		}
	default:
		return fmt.Errorf("unknown rate limit backend %q", c.RateLimit.Backend)
	}
	switch c.Analysis.Provider {
	case "pattern", "gemini":
	default:
		return fmt.Errorf("unknown analysis provider %q", c.Analysis.Provider)
	}
	if c.RateLimit.MaxRequests <= 0 || c.RateLimit.WindowSec <= 0 {
		return errors.New("rate_limit.max_requests and rate_limit.window_sec must be positive")
	}
	if c.Discovery.MaxRanked <= 0 {
		return errors.New("discovery.max_ranked must be positive")
	}
	return nil
}

func (l LogicConfig) ProbeTimeout() time.Duration {
	return time.Duration(l.ProbeTimeoutSec) * time.Second
}

func (l LogicConfig) PageTimeout() time.Duration {
	return time.Duration(l.PageTimeoutSec) * time.Second
}

func (l LogicConfig) DownloadTimeout() time.Duration {
	return time.Duration(l.DownloadTimeoutSec) * time.Second
}

func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowSec) * time.Second
}
