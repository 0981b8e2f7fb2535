package customHttpClient

import (
	"net/http"
	"sync"

	"github.com/akolanti/SupportRAG/internal/config"
)

// the embedder, the llm and the help center client share one pool so repeated
// calls to the same host reuse connections
var customTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        config.MaxIdleConns,
	MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
	IdleConnTimeout:     config.IdleConnTimeout,
	ForceAttemptHTTP2:   true,
}

var once sync.Once
var client *http.Client

// GetClient returns the process wide pooled client. Callers bound requests with their context.
func GetClient() *http.Client {
	once.Do(func() {
		client = &http.Client{Transport: customTransport}
	})
	return client
}

// NewClient returns a client on the shared pool with a hard per request timeout.
func NewClient() *http.Client {
	return &http.Client{
		Transport: customTransport,
		Timeout:   config.OutboundHTTPTimeout,
	}
}
