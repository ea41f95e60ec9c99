package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"habitly/internal/models/db_models"
	"habitly/internal/models/request_models"
	"habitly/internal/models/response_models"
	"habitly/internal/repositories"
	"habitly/pkg/utils"
)

type HabitSeriesServiceInterface interface {
	CreateHabitSeries(ctx context.Context, userID string, req request_models.CreateHabitSeriesRequest) (*response_models.CreateHabitSeriesResponse, error)
	GetHabitSeries(ctx context.Context, userID, seriesID string) (*response_models.HabitSeriesResponse, error)
	ListHabitSeries(ctx context.Context, userID string, page, pageSize int) (*response_models.HabitSeriesListResponse, error)
	DeleteHabitSeries(ctx context.Context, userID, seriesID string) error
}

type HabitSeriesService struct {
	userRepo      repositories.UserRepository
	seriesRepo    repositories.HabitSeriesRepository
	ledger        repositories.QuotaLedger
	planService   PlanServiceInterface
	pipeline      PipelineServiceInterface
	sanitizer     SanitizerInterface
	clock         utils.Clock
	commitTimeout time.Duration
	logger        *zap.Logger
}

func NewHabitSeriesService(
	userRepo repositories.UserRepository,
	seriesRepo repositories.HabitSeriesRepository,
	ledger repositories.QuotaLedger,
	planService PlanServiceInterface,
	pipeline PipelineServiceInterface,
	sanitizer SanitizerInterface,
	clock utils.Clock,
	commitTimeout time.Duration,
	logger *zap.Logger,
) HabitSeriesServiceInterface {
	if clock == nil {
		clock = utils.SystemClock
	}
	return &HabitSeriesService{
		userRepo:      userRepo,
		seriesRepo:    seriesRepo,
		ledger:        ledger,
		planService:   planService,
		pipeline:      pipeline,
		sanitizer:     sanitizer,
		clock:         clock,
		commitTimeout: commitTimeout,
		logger:        logger,
	}
}

// CreateHabitSeries runs the pre-flight checks, the generation pipeline, the
// output validator and finally the atomic commit. Energy is only ever charged
// by the commit.
func (s *HabitSeriesService) CreateHabitSeries(
	ctx context.Context,
	userID string,
	req request_models.CreateHabitSeriesRequest,
) (*response_models.CreateHabitSeriesResponse, error) {
	user, err := findUser(ctx, s.userRepo, userID)
	if err != nil {
		return nil, err
	}

	now := s.clock().Unix()
	planID := s.planService.EffectivePlan(user, now)
	plan, err := s.planService.GetPlanInfoById(ctx, planID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.NewDataAccessFailure("resolve effective plan", err)
		}
		return nil, err
	}

	allowed, err := s.planService.HasFeatureAccess(ctx, planID, db_models.FeatureHabitSeries)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, utils.NewFeatureDeniedError(string(planID), db_models.FeatureHabitSeries)
	}
	if user.Limits.ActiveSeriesCount >= plan.MaxActiveSeries {
		return nil, utils.NewLimitReachedError(user.Limits.ActiveSeriesCount, plan.MaxActiveSeries)
	}

	balance, err := rechargeIfDue(ctx, s.ledger, user, plan, now, s.logger)
	if err != nil {
		return nil, err
	}
	// Advisory only; the commit re-checks against the real cost.
	if balance.Energy.Current <= 0 {
		return nil, utils.NewInsufficientResourceError(1, balance.Energy.Current)
	}

	input, err := s.sanitizeInput(user.ID.String(), req)
	if err != nil {
		return nil, err
	}

	generated, err := s.pipeline.Run(ctx, input)
	if err != nil {
		return nil, err
	}

	validation := ValidateSeriesOutput(generated.Final)
	if !validation.Valid() {
		s.logger.Warn("generated series rejected",
			zap.String("user_id", userID),
			zap.Int64("uncharged_cost", generated.TotalCost),
			zap.Strings("violations", violationStrings(validation.Violations)))
		return nil, validation.Err()
	}

	series := newSeriesFromValidated(validation.Series, input.Language)

	commitCtx := ctx
	if s.commitTimeout > 0 {
		var cancel context.CancelFunc
		commitCtx, cancel = context.WithTimeout(ctx, s.commitTimeout)
		defer cancel()
	}

	committed, err := s.seriesRepo.CommitGenerated(commitCtx, repositories.CommitRequest{
		UserID:          user.ID,
		Series:          series,
		Cost:            generated.TotalCost,
		MaxActiveSeries: plan.MaxActiveSeries,
		PassCosts:       generated.PassCosts(),
		Now:             s.clock().Unix(),
	})
	if err != nil {
		s.logger.Warn("habit series commit failed",
			zap.String("user_id", userID),
			zap.Int64("cost", generated.TotalCost),
			zap.String("code", utils.CodeOf(err)),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("habit series created",
		zap.String("user_id", userID),
		zap.String("series_id", committed.SeriesID.String()),
		zap.Int64("cost", generated.TotalCost),
		zap.Int64("balance_after", committed.BalanceAfter))

	return &response_models.CreateHabitSeriesResponse{
		Series:        toHabitSeriesResponse(series),
		EnergyCharged: generated.TotalCost,
		EnergyLeft:    committed.BalanceAfter,
	}, nil
}

func (s *HabitSeriesService) GetHabitSeries(ctx context.Context, userID, seriesID string) (*response_models.HabitSeriesResponse, error) {
	if _, err := uuid.Parse(seriesID); err != nil {
		return nil, utils.NewValidationError("invalid series id")
	}

	series, err := s.seriesRepo.FindByIdForUser(ctx, userID, seriesID)
	if err != nil {
		return nil, utils.NewDataAccessFailure("get habit series", err)
	}
	if series == nil {
		return nil, utils.ErrNotFound
	}

	resp := toHabitSeriesResponse(series)
	return &resp, nil
}

func (s *HabitSeriesService) ListHabitSeries(ctx context.Context, userID string, page, pageSize int) (*response_models.HabitSeriesListResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	series, total, err := s.seriesRepo.ListByUser(ctx, userID, page, pageSize)
	if err != nil {
		return nil, utils.NewDataAccessFailure("list habit series", err)
	}

	items := make([]response_models.HabitSeriesResponse, 0, len(series))
	for i := range series {
		items = append(items, toHabitSeriesResponse(&series[i]))
	}

	return &response_models.HabitSeriesListResponse{
		Items:    items,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	}, nil
}

func (s *HabitSeriesService) DeleteHabitSeries(ctx context.Context, userID, seriesID string) error {
	if _, err := uuid.Parse(seriesID); err != nil {
		return utils.NewValidationError("invalid series id")
	}

	deleted, err := s.seriesRepo.DeleteForUser(ctx, userID, seriesID)
	if err != nil {
		return err
	}
	if !deleted {
		return utils.ErrNotFound
	}

	s.logger.Info("habit series deleted",
		zap.String("user_id", userID),
		zap.String("series_id", seriesID))
	return nil
}

func findUser(ctx context.Context, repo repositories.UserRepository, userID string) (*db_models.User, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, utils.ErrUserNotFound
	}

	user, err := repo.FindById(ctx, userID)
	if err != nil {
		return nil, utils.NewDataAccessFailure("load user", err)
	}
	if user == nil {
		return nil, utils.ErrUserNotFound
	}
	return user, nil
}

func (s *HabitSeriesService) sanitizeInput(userID string, req request_models.CreateHabitSeriesRequest) (PipelineInput, error) {
	language, err := s.sanitizer.Sanitize(req.Language)
	if err != nil {
		return PipelineInput{}, fieldError("language", err)
	}
	if language == "" {
		return PipelineInput{}, utils.NewValidationError("language: must not be empty")
	}

	if len(req.TestData) == 0 {
		return PipelineInput{}, utils.NewValidationError("test_data: must not be empty")
	}

	keys := make([]string, 0, len(req.TestData))
	for k := range req.TestData {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	answers := make([]Answer, 0, len(keys))
	for _, k := range keys {
		question, err := s.sanitizer.Sanitize(k)
		if err != nil || question == "" {
			return PipelineInput{}, utils.NewValidationError(fmt.Sprintf("test_data: invalid question %q", k))
		}
		value, err := s.sanitizer.Sanitize(req.TestData[k])
		if err != nil {
			return PipelineInput{}, fieldError("test_data."+k, err)
		}
		answers = append(answers, Answer{Question: question, Value: value})
	}

	assistant, err := s.sanitizer.Sanitize(req.AssistantContext)
	if err != nil {
		return PipelineInput{}, fieldError("assistant_context", err)
	}

	return PipelineInput{
		UserID:           userID,
		Language:         language,
		Answers:          answers,
		AssistantContext: assistant,
	}, nil
}

func fieldError(field string, err error) error {
	var coded *utils.CodedError
	if errors.As(err, &coded) {
		return utils.NewValidationError(field + ": " + coded.Reason)
	}
	return utils.NewValidationError(field + ": " + err.Error())
}

func newSeriesFromValidated(v *ValidatedSeries, language string) *db_models.HabitSeries {
	series := &db_models.HabitSeries{
		Title:       v.Title,
		Description: v.Description,
		Language:    language,
		Actions:     make([]db_models.HabitAction, len(v.Actions)),
	}
	for i, a := range v.Actions {
		series.Actions[i] = db_models.HabitAction{
			Position:    i,
			Name:        a.Name,
			Description: a.Description,
			Difficulty:  a.Difficulty,
		}
	}
	return series
}

func toHabitSeriesResponse(s *db_models.HabitSeries) response_models.HabitSeriesResponse {
	actions := make([]response_models.HabitActionResponse, 0, len(s.Actions))
	for _, a := range s.Actions {
		actions = append(actions, response_models.HabitActionResponse{
			ID:          a.ID.String(),
			Name:        a.Name,
			Description: a.Description,
			Difficulty:  string(a.Difficulty),
			Score:       a.Score,
			Completed:   a.Completed,
		})
	}

	return response_models.HabitSeriesResponse{
		ID:             s.ID.String(),
		Title:          s.Title,
		Description:    s.Description,
		Language:       s.Language,
		Actions:        actions,
		Score:          s.Score,
		Rank:           string(s.Rank()),
		CreatedAt:      utils.FormatRFC3339(utils.FromUnixSeconds(s.CreatedAt)),
		UpdatedAt:      utils.FormatRFC3339(utils.FromUnixSeconds(s.UpdatedAt)),
		LastActivityAt: utils.FormatRFC3339(utils.FromUnixSeconds(s.LastActivityAt)),
	}
}

func violationStrings(vs []Violation) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.String()
	}
	return out
}
