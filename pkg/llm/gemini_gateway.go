package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
)

// GeminiGateway calls Google's Gemini models. Gemini belongs to the free
// family used for structuring and schema passes: it always reports zero cost.
type GeminiGateway struct {
	client  *genai.Client
	timeout time.Duration
}

var _ Gateway = (*GeminiGateway)(nil)

func NewGeminiGateway(ctx context.Context, apiKey string, opts ...Option) (*GeminiGateway, error) {
	o := buildOptions(opts)

	clientOpts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if o.baseURL != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(o.baseURL))
	}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(o.httpClient))
	}

	client, err := genai.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiGateway{client: client, timeout: o.timeout}, nil
}

func (g *GeminiGateway) Name() string { return ProviderGemini }

func (g *GeminiGateway) Invoke(ctx context.Context, _ string, messages []Message, cfg CallConfig) (Result, error) {
	if len(messages) == 0 {
		return Result{}, newGatewayError(ErrProviderRejected, ProviderGemini, cfg.Model, errors.New("no messages"))
	}

	m := g.client.GenerativeModel(cfg.Model)
	m.SetTemperature(cfg.Temperature)
	if cfg.MaxOutputTokens > 0 {
		m.SetMaxOutputTokens(int32(cfg.MaxOutputTokens))
	}
	if cfg.StrictJSON {
		m.ResponseMIMEType = "application/json"
	}

	var system []string
	var history []*genai.Content
	for _, msg := range messages[:len(messages)-1] {
		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.Content)
		case RoleAssistant:
			history = append(history, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(msg.Content)}})
		default:
			history = append(history, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(msg.Content)}})
		}
	}
	if len(system) > 0 {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(strings.Join(system, "\n\n"))}}
	}

	cs := m.StartChat()
	cs.History = history

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := cs.SendMessage(callCtx, genai.Text(messages[len(messages)-1].Content))
	if err != nil {
		return Result{}, newGatewayError(classifyGeminiError(err), ProviderGemini, cfg.Model, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return Result{}, newGatewayError(ErrUnclassified, ProviderGemini, cfg.Model, errors.New("no content generated by Gemini"))
	}

	var content strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			content.WriteString(string(t))
		}
	}

	var tokens int64
	if resp.UsageMetadata != nil {
		tokens = int64(resp.UsageMetadata.TotalTokenCount)
	}

	return Result{
		Content:      content.String(),
		TokensUsed:   tokens,
		ResourceCost: 0,
	}, nil
}

// Close closes the Gemini client
func (g *GeminiGateway) Close() error {
	return g.client.Close()
}

func classifyGeminiError(err error) error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return ErrProviderRejected
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return classifyStatus(gErr.Code)
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		if code := apiErr.HTTPCode(); code > 0 {
			return classifyStatus(code)
		}
		if st := apiErr.GRPCStatus(); st != nil {
			switch st.Code() {
			case codes.Unavailable, codes.DeadlineExceeded:
				return ErrTemporarilyUnavailable
			case codes.OK, codes.Unknown:
				return ErrUnclassified
			default:
				return ErrProviderRejected
			}
		}
	}

	return classifyTransport(err)
}
