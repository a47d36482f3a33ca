package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds checker configuration.
type Config struct {
	BaseURL         string
	SearchPath      string
	SearchTimeout   time.Duration
	DocumentTimeout time.Duration
	RowDelay        time.Duration
	UserAgent       string

	InputFile        string
	SheetName        string
	AuthorCol        string
	ISBNCol          string
	TitleCol         string
	DateCol          string
	OutputFile       string
	OutputFormat     string // csv, xlsx, json, or dual
	BatchSize        int
	QueryHistorySize int

	MetricsAddr string
	Verbose     bool
}

// DefaultConfig returns conservative defaults for the Peter Lang catalog.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:          "https://www.peterlang.com",
		SearchPath:       "/search",
		SearchTimeout:    15 * time.Second,
		DocumentTimeout:  10 * time.Second,
		RowDelay:         time.Second,
		UserAgent:        "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		AuthorCol:        "Author Name",
		ISBNCol:          "ISBN",
		TitleCol:         "Book Title",
		DateCol:          "",
		OutputFile:       "output/availability_results.csv",
		OutputFormat:     "dual",
		BatchSize:        16,
		QueryHistorySize: 4096,
	}
}

// SearchEndpoint returns the absolute search URL without a query string.
func (c *Config) SearchEndpoint() string {
	return strings.TrimSuffix(c.BaseURL, "/") + c.SearchPath
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}
	if !strings.HasPrefix(c.SearchPath, "/") {
		return fmt.Errorf("search path must start with /")
	}

	if c.SearchTimeout <= 0 {
		return fmt.Errorf("search timeout must be positive")
	}
	if c.DocumentTimeout <= 0 {
		return fmt.Errorf("document timeout must be positive")
	}
	if c.RowDelay < time.Second {
		return fmt.Errorf("row delay must be at least 1s")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.ISBNCol == "" || c.TitleCol == "" || c.AuthorCol == "" {
		return fmt.Errorf("author, ISBN and title column names are required")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.QueryHistorySize <= 0 {
		return fmt.Errorf("query history size must be positive")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	switch c.OutputFormat {
	case "csv", "xlsx", "json", "dual":
	default:
		return fmt.Errorf("output format must be csv, xlsx, json, or dual")
	}

	return nil
}
