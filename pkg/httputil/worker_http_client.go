// Package httputil provides tuned HTTP clients for the external APIs.
package httputil

import (
	"net"
	"net/http"
	"time"
)

// =============================================================================
// HTTP Client Pool
// =============================================================================

// ClientConfig holds HTTP client configuration.
type ClientConfig struct {
	// Connection settings
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration

	// Timeout settings
	DialTimeout         time.Duration
	TLSHandshakeTimeout time.Duration
	ResponseTimeout     time.Duration

	// Keep-alive settings
	DisableKeepAlives bool
	KeepAliveInterval time.Duration

	// DisableCompression stops the transport from asking for gzip, for
	// callers that negotiate encodings themselves.
	DisableCompression bool
}

// DefaultClientConfig returns the default configuration.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		MaxConnsPerHost:     100,
		IdleConnTimeout:     90 * time.Second,
		DialTimeout:         10 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ResponseTimeout:     30 * time.Second,
		KeepAliveInterval:   30 * time.Second,
	}
}

// NewOptimizedClient creates an HTTP client with connection pooling.
func NewOptimizedClient(cfg *ClientConfig) *http.Client {
	if cfg == nil {
		cfg = DefaultClientConfig()
	}

	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: cfg.KeepAliveInterval,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		DisableKeepAlives:     cfg.DisableKeepAlives,
		ForceAttemptHTTP2:     true,
		DisableCompression:    cfg.DisableCompression,
		ResponseHeaderTimeout: cfg.ResponseTimeout,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.ResponseTimeout,
	}
}

// =============================================================================
// API-Specific Client Configurations
// =============================================================================

// ZyteClientConfig is used for the extraction API. Browser rendering is slow,
// so the timeout is long; the shipping workers share these connections.
func ZyteClientConfig(timeout time.Duration) *ClientConfig {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ClientConfig{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 50,
		MaxConnsPerHost:     100,
		IdleConnTimeout:     120 * time.Second,
		DialTimeout:         10 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ResponseTimeout:     timeout,
		KeepAliveInterval:   30 * time.Second,
	}
}

// CrawlClientConfig is used for direct page fetches against many hosts.
func CrawlClientConfig(timeout time.Duration) *ClientConfig {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &ClientConfig{
		MaxIdleConns:        200,
		MaxIdleConnsPerHost: 4,
		MaxConnsPerHost:     8,
		IdleConnTimeout:     60 * time.Second,
		DialTimeout:         10 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ResponseTimeout:     timeout,
		KeepAliveInterval:   30 * time.Second,
		DisableCompression:  true,
	}
}

// LLMClientConfig is used for chat completions: long timeout, moderate concurrency.
func LLMClientConfig(timeout time.Duration) *ClientConfig {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &ClientConfig{
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 50,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     120 * time.Second,
		DialTimeout:         10 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ResponseTimeout:     timeout,
		KeepAliveInterval:   30 * time.Second,
	}
}
