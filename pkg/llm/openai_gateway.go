package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIGateway calls the OpenAI chat completions API and charges energy
// according to its CostFormula.
type OpenAIGateway struct {
	client  *openai.Client
	cost    CostFormula
	timeout time.Duration
}

var _ Gateway = (*OpenAIGateway)(nil)

func NewOpenAIGateway(apiKey string, opts ...Option) *OpenAIGateway {
	o := buildOptions(opts)

	cfg := openai.DefaultConfig(apiKey)
	if o.baseURL != "" {
		cfg.BaseURL = strings.TrimRight(o.baseURL, "/")
	}
	if o.httpClient != nil {
		cfg.HTTPClient = o.httpClient
	}

	cost := DefaultOpenAICost
	if o.cost != nil {
		cost = *o.cost
	}

	return &OpenAIGateway{
		client:  openai.NewClientWithConfig(cfg),
		cost:    cost,
		timeout: o.timeout,
	}
}

func (g *OpenAIGateway) Name() string { return ProviderOpenAI }

func (g *OpenAIGateway) Invoke(ctx context.Context, userID string, messages []Message, cfg CallConfig) (Result, error) {
	msgs := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	req := openai.ChatCompletionRequest{
		Model:       cfg.Model,
		Messages:    msgs,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxOutputTokens,
		User:        userID,
	}
	if cfg.StrictJSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.CreateChatCompletion(callCtx, req)
	if err != nil {
		return Result{}, newGatewayError(classifyOpenAIError(err), ProviderOpenAI, cfg.Model, err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, newGatewayError(ErrUnclassified, ProviderOpenAI, cfg.Model, errors.New("empty choices in response"))
	}

	prompt := int64(resp.Usage.PromptTokens)
	completion := int64(resp.Usage.CompletionTokens)

	return Result{
		Content:      resp.Choices[0].Message.Content,
		TokensUsed:   int64(resp.Usage.TotalTokens),
		ResourceCost: g.cost.Cost(prompt, completion),
	}, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode)
	}
	return classifyTransport(err)
}

// classifyStatus maps a vendor HTTP status to the failure taxonomy.
func classifyStatus(status int) error {
	switch {
	case status == http.StatusRequestTimeout:
		return ErrTemporarilyUnavailable
	case status >= 400:
		return ErrProviderRejected
	default:
		return ErrUnclassified
	}
}

// classifyTransport handles failures that never produced an HTTP response.
func classifyTransport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrTemporarilyUnavailable
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrTemporarilyUnavailable
	}
	return ErrUnclassified
}
