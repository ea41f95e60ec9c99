// Package llm is the provider-agnostic boundary to hosted language models.
//
// A Gateway performs a single chat call and reports the normalized content,
// token usage and the energy cost of that call. Gateways never persist
// anything and never touch a user's balance.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Failure taxonomy shared by every gateway.
var (
	// ErrTemporarilyUnavailable covers network errors and timeouts. The same
	// call may be retried.
	ErrTemporarilyUnavailable = errors.New("llm: provider temporarily unavailable")

	// ErrProviderRejected covers auth, quota and other error responses that
	// will not succeed without operator intervention.
	ErrProviderRejected = errors.New("llm: provider rejected request")

	// ErrUnclassified wraps anything the gateway could not classify.
	ErrUnclassified = errors.New("llm: unclassified provider failure")
)

// Role values for Message.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat message.
type Message struct {
	Role    string
	Content string
}

// CallConfig is the per-call model configuration resolved by a ModelSelector.
type CallConfig struct {
	Model           string
	Temperature     float32
	MaxOutputTokens int
	StrictJSON      bool
}

// Result is the normalized outcome of a successful call.
type Result struct {
	Content      string
	TokensUsed   int64
	ResourceCost int64
}

// Gateway is implemented once per vendor.
type Gateway interface {
	// Name returns the provider identifier used in the model registry.
	Name() string

	// Invoke performs one chat completion for userID.
	Invoke(ctx context.Context, userID string, messages []Message, cfg CallConfig) (Result, error)
}

// GatewayError adds provider context to a classified failure.
type GatewayError struct {
	Kind     error
	Provider string
	Model    string
	Err      error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("llm: provider=%s model=%s: %v: %v", e.Provider, e.Model, e.Kind, e.Err)
}

func (e *GatewayError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func newGatewayError(kind error, provider, model string, err error) error {
	return &GatewayError{Kind: kind, Provider: provider, Model: model, Err: err}
}

// IsRetryable reports whether the same call may be attempted again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTemporarilyUnavailable)
}

// Gateways indexes gateways by provider name.
type Gateways map[string]Gateway

func NewGateways(gws ...Gateway) Gateways {
	m := make(Gateways, len(gws))
	for _, g := range gws {
		m[g.Name()] = g
	}
	return m
}

// For returns the gateway serving provider.
func (g Gateways) For(provider string) (Gateway, error) {
	gw, ok := g[provider]
	if !ok {
		return nil, fmt.Errorf("llm: no gateway registered for provider %q", provider)
	}
	return gw, nil
}
