package out

import (
	"context"
	"time"
)

// PageFetcher retrieves the html of a web page.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string, opts FetchOptions) (*PageResult, error)
}

// FetchOptions tune a single fetch.
type FetchOptions struct {
	Geolocation  string
	RenderJS     bool
	ForceRefresh bool
}

// PageResult is a fetched page.
type PageResult struct {
	URL        string        `json:"url"`
	HTML       string        `json:"html"`
	StatusCode int           `json:"status_code"`
	Elapsed    time.Duration `json:"elapsed"`
}
