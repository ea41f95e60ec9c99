// Package mock provides a scripted llm.Gateway for tests and local runs.
package mock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"habitly/pkg/llm"
)

// Step is one scripted outcome.
type Step struct {
	Result llm.Result
	Err    error
}

// Call records what the gateway received.
type Call struct {
	UserID   string
	Messages []llm.Message
	Config   llm.CallConfig
}

// Gateway is a mock llm.Gateway.
type Gateway struct {
	name         string
	latency      time.Duration
	staticErr    error
	responseFunc func(llm.CallConfig, []llm.Message) (llm.Result, error)

	mu    sync.Mutex
	steps []Step
	calls []Call

	callCount atomic.Int64
}

var _ llm.Gateway = (*Gateway)(nil)

// Option configures a mock Gateway.
type Option func(*Gateway)

// New creates a mock gateway with the given options.
func New(opts ...Option) *Gateway {
	g := &Gateway{name: llm.ProviderMock}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// WithName sets the provider name.
func WithName(name string) Option {
	return func(g *Gateway) { g.name = name }
}

// WithLatency adds simulated latency to each call.
func WithLatency(d time.Duration) Option {
	return func(g *Gateway) { g.latency = d }
}

// WithError makes the gateway always return this error.
func WithError(err error) Option {
	return func(g *Gateway) { g.staticErr = err }
}

// WithSteps scripts the outcome of consecutive calls. Once the script is
// exhausted the last step repeats.
func WithSteps(steps ...Step) Option {
	return func(g *Gateway) { g.steps = steps }
}

// WithResponseFunc sets a custom response function used when no steps are scripted.
func WithResponseFunc(fn func(llm.CallConfig, []llm.Message) (llm.Result, error)) Option {
	return func(g *Gateway) { g.responseFunc = fn }
}

func (g *Gateway) Name() string { return g.name }

func (g *Gateway) Invoke(ctx context.Context, userID string, messages []llm.Message, cfg llm.CallConfig) (llm.Result, error) {
	if g.latency > 0 {
		select {
		case <-time.After(g.latency):
		case <-ctx.Done():
			return llm.Result{}, llm.ErrTemporarilyUnavailable
		}
	}

	n := g.callCount.Add(1)

	g.mu.Lock()
	g.calls = append(g.calls, Call{UserID: userID, Messages: messages, Config: cfg})
	var step *Step
	if len(g.steps) > 0 {
		i := int(n) - 1
		if i >= len(g.steps) {
			i = len(g.steps) - 1
		}
		s := g.steps[i]
		step = &s
	}
	g.mu.Unlock()

	if g.staticErr != nil {
		return llm.Result{}, g.staticErr
	}
	if step != nil {
		return step.Result, step.Err
	}
	if g.responseFunc != nil {
		return g.responseFunc(cfg, messages)
	}

	return llm.Result{Content: "{}", TokensUsed: 30}, nil
}

// CallCount returns the number of calls made to the gateway.
func (g *Gateway) CallCount() int64 { return g.callCount.Load() }

// Calls returns a copy of the recorded calls.
func (g *Gateway) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Call, len(g.calls))
	copy(out, g.calls)
	return out
}
