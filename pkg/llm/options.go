package llm

import (
	"net/http"
	"time"
)

const defaultCallTimeout = 45 * time.Second

type gatewayOptions struct {
	baseURL    string
	timeout    time.Duration
	cost       *CostFormula
	httpClient *http.Client
}

// Option configures a gateway.
type Option func(*gatewayOptions)

// WithBaseURL points the gateway at a different API endpoint.
func WithBaseURL(url string) Option {
	return func(o *gatewayOptions) { o.baseURL = url }
}

// WithTimeout sets the caller-side timeout of a single call.
func WithTimeout(d time.Duration) Option {
	return func(o *gatewayOptions) { o.timeout = d }
}

// WithCostFormula overrides the vendor's energy formula.
func WithCostFormula(f CostFormula) Option {
	return func(o *gatewayOptions) { o.cost = &f }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *gatewayOptions) { o.httpClient = c }
}

func buildOptions(opts []Option) gatewayOptions {
	o := gatewayOptions{timeout: defaultCallTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.timeout <= 0 {
		o.timeout = defaultCallTimeout
	}
	return o
}
