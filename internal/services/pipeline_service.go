package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"habitly/pkg/llm"
	"habitly/pkg/utils"
)

// Stage is a state of the generation pipeline. Stages run strictly in
// order and never repeat.
type Stage string

const (
	StageCreative      Stage = "creative"
	StageStructure     Stage = "structure"
	StageSchemaEnforce Stage = "schema_enforce"
	StageDone          Stage = "done"
)

type stageStep struct {
	stage    Stage
	function llm.FunctionType
	next     Stage
}

var pipelineStages = []stageStep{
	{StageCreative, llm.FunctionCreative, StageStructure},
	{StageStructure, llm.FunctionStructure, StageSchemaEnforce},
	{StageSchemaEnforce, llm.FunctionSchema, StageDone},
}

// PassOutput is either raw text or a parsed JSON object. Object is nil for
// raw text.
type PassOutput struct {
	Raw    string
	Object map[string]any
}

func RawText(s string) PassOutput { return PassOutput{Raw: s} }

func (o PassOutput) IsParsed() bool { return o.Object != nil }

// PassResult is kept in memory only; its cost is charged at commit time.
type PassResult struct {
	Stage        Stage
	Model        string
	Output       PassOutput
	ResourceCost int64
	TokensUsed   int64
	Attempts     int
}

type PipelineInput struct {
	UserID           string
	Language         string
	Answers          []Answer
	AssistantContext string
}

type PipelineResult struct {
	Passes    []PassResult
	TotalCost int64
	Final     PassOutput
}

// PassCosts returns the cost of every pass keyed by stage.
func (r *PipelineResult) PassCosts() map[string]int64 {
	out := make(map[string]int64, len(r.Passes))
	for _, p := range r.Passes {
		out[string(p.Stage)] = p.ResourceCost
	}
	return out
}

type PipelineServiceInterface interface {
	Run(ctx context.Context, in PipelineInput) (*PipelineResult, error)
}

type PipelineService struct {
	selector    *llm.ModelSelector
	gateways    llm.Gateways
	maxAttempts int
	backoff     time.Duration
	logger      *zap.Logger
}

func NewPipelineService(
	selector *llm.ModelSelector,
	gateways llm.Gateways,
	maxAttempts int,
	backoff time.Duration,
	logger *zap.Logger,
) PipelineServiceInterface {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &PipelineService{
		selector:    selector,
		gateways:    gateways,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		logger:      logger,
	}
}

func (p *PipelineService) Run(ctx context.Context, in PipelineInput) (*PipelineResult, error) {
	result := &PipelineResult{}
	state := StageCreative
	var previous string

	for _, step := range pipelineStages {
		if step.stage != state {
			return nil, utils.NewAIError(utils.ErrAIFailure, string(step.stage),
				fmt.Errorf("pipeline out of order: at %s, expected %s", step.stage, state))
		}

		pass, err := p.runPass(ctx, in, step, previous)
		if err != nil {
			p.logger.Warn("pipeline aborted",
				zap.String("user_id", in.UserID),
				zap.String("stage", string(step.stage)),
				zap.Int64("discarded_cost", result.TotalCost),
				zap.Error(err))
			return nil, err
		}

		result.Passes = append(result.Passes, pass)
		result.TotalCost += pass.ResourceCost
		previous = pass.Output.Raw
		state = step.next
	}

	result.Final = result.Passes[len(result.Passes)-1].Output
	return result, nil
}

func (p *PipelineService) runPass(ctx context.Context, in PipelineInput, step stageStep, previous string) (PassResult, error) {
	stage := string(step.stage)

	cfg, err := p.selector.Resolve(step.function)
	if err != nil {
		return PassResult{}, utils.NewAIError(utils.ErrAIFailure, stage, err)
	}
	gw, err := p.gateways.For(cfg.Provider)
	if err != nil {
		return PassResult{}, utils.NewAIError(utils.ErrAIFailure, stage, err)
	}

	var messages []llm.Message
	switch step.stage {
	case StageCreative:
		messages = buildCreativeMessages(in)
	case StageStructure:
		messages = buildStructureMessages(in, previous)
	default:
		messages = buildSchemaMessages(in, previous)
	}

	start := time.Now()
	res, attempts, err := p.invokeWithRetry(ctx, gw, in.UserID, messages, cfg, stage)
	if err != nil {
		return PassResult{}, mapGatewayError(stage, attempts, err)
	}

	if cfg.MaxCost != nil && res.ResourceCost > *cfg.MaxCost {
		return PassResult{}, utils.NewAIError(utils.ErrAIRejected, stage,
			fmt.Errorf("pass cost %d exceeds budget %d", res.ResourceCost, *cfg.MaxCost))
	}
	if res.ResourceCost < 0 {
		return PassResult{}, utils.NewAIError(utils.ErrAIFailure, stage,
			fmt.Errorf("negative pass cost %d", res.ResourceCost))
	}

	output := RawText(res.Content)
	if step.stage != StageCreative {
		output = parsePassOutput(res.Content)
	}

	p.logger.Info("pipeline pass completed",
		zap.String("user_id", in.UserID),
		zap.String("stage", stage),
		zap.String("model", cfg.Model),
		zap.Int64("cost", res.ResourceCost),
		zap.Int64("tokens", res.TokensUsed),
		zap.Int("attempts", attempts),
		zap.Duration("duration", time.Since(start)))

	return PassResult{
		Stage:        step.stage,
		Model:        cfg.Model,
		Output:       output,
		ResourceCost: res.ResourceCost,
		TokensUsed:   res.TokensUsed,
		Attempts:     attempts,
	}, nil
}

// invokeWithRetry retries only temporary failures. Failed attempts carry no cost.
func (p *PipelineService) invokeWithRetry(
	ctx context.Context,
	gw llm.Gateway,
	userID string,
	messages []llm.Message,
	cfg llm.ModelConfig,
	stage string,
) (llm.Result, int, error) {
	var (
		lastErr error
		attempt int
	)

	for attempt = 1; attempt <= p.maxAttempts; attempt++ {
		res, err := gw.Invoke(ctx, userID, messages, cfg.CallConfig())
		if err == nil {
			return res, attempt, nil
		}
		lastErr = err

		if !llm.IsRetryable(err) || attempt == p.maxAttempts {
			break
		}

		p.logger.Warn("pipeline pass failed, retrying",
			zap.String("user_id", userID),
			zap.String("stage", stage),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if err := sleepCtx(ctx, p.backoff*time.Duration(attempt)); err != nil {
			return llm.Result{}, attempt, fmt.Errorf("%w: %w", llm.ErrTemporarilyUnavailable, err)
		}
	}

	return llm.Result{}, attempt, lastErr
}

func mapGatewayError(stage string, attempts int, err error) error {
	kind := utils.ErrAIFailure
	switch {
	case errors.Is(err, llm.ErrTemporarilyUnavailable):
		kind = utils.ErrAIUnavailable
	case errors.Is(err, llm.ErrProviderRejected):
		kind = utils.ErrAIRejected
	}

	mapped := utils.NewAIError(kind, stage, err)
	var ce *utils.CodedError
	if errors.As(mapped, &ce) {
		ce.Meta["attempts"] = attempts
	}
	return mapped
}

// parsePassOutput keeps content as raw text unless it is a JSON object.
func parsePassOutput(content string) PassOutput {
	var obj map[string]any
	if err := json.Unmarshal([]byte(stripCodeFences(content)), &obj); err != nil || obj == nil {
		return RawText(content)
	}
	return PassOutput{Raw: content, Object: obj}
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop an info string such as "json" on the opening fence line.
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		if info := strings.TrimSpace(s[:nl]); !strings.ContainsAny(info, "{[") {
			s = s[nl+1:]
		}
	} else {
		s = strings.TrimLeftFunc(s, unicode.IsLetter)
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
