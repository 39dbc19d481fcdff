// Package httpclient provides a plain timeout-bounded HTTP client
// constructor. The source adapters in internal/adapter do not call it;
// each builds its own *http.Client with the same Timeout-only shape.
package httpclient

import (
	"net/http"
	"time"
)

// NewDefaultHTTPClient creates a simple HTTP client with a timeout.
func NewDefaultHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
	}
}
