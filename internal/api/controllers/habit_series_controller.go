package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"habitly/internal/models/request_models"
	"habitly/internal/services"
	mem "habitly/pkg/memcache"
	"habitly/pkg/middleware"
	"habitly/pkg/utils"
)

const (
	IdempotencyHeader       = "Idempotency-Key"
	idempotencyReplayHeader = "Idempotent-Replayed"
	maxIdempotencyKeyLength = 128
	// A claim outlives the slowest possible generation but not a crashed one for long.
	idempotencyClaimTTL = 10 * time.Minute
)

type HabitSeriesController struct {
	seriesService  services.HabitSeriesServiceInterface
	idempotency    mem.IdempotencyStore
	idempotencyTTL time.Duration
	logger         *zap.Logger
}

func NewHabitSeriesController(
	seriesService services.HabitSeriesServiceInterface,
	idempotency mem.IdempotencyStore,
	idempotencyTTL time.Duration,
	logger *zap.Logger,
) *HabitSeriesController {
	return &HabitSeriesController{
		seriesService:  seriesService,
		idempotency:    idempotency,
		idempotencyTTL: idempotencyTTL,
		logger:         logger,
	}
}

// CreateHabitSeries godoc
// @Summary Generate a habit series
// @Description Runs the AI pipeline on the user's test answers and charges energy only when the series is stored
// @Tags HabitSeries
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Replays the stored result for a repeated request"
// @Param request body request_models.CreateHabitSeriesRequest true "Test answers"
// @Success 201 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Failure 402 {object} utils.APIResponse
// @Failure 403 {object} utils.APIResponse
// @Failure 409 {object} utils.APIResponse
// @Failure 422 {object} utils.APIResponse
// @Security BearerAuth
// @Router /habit-series [post]
func (h *HabitSeriesController) CreateHabitSeries(c *gin.Context) {
	var req request_models.CreateHabitSeriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}

	userID := c.GetString(middleware.UserIDKey)
	key := strings.TrimSpace(c.GetHeader(IdempotencyHeader))

	if key == "" || h.idempotency == nil {
		resp, err := h.seriesService.CreateHabitSeries(c.Request.Context(), userID, req)
		if err != nil {
			utils.HandleServiceError(c, err)
			return
		}
		utils.RespondWithStatus(c, http.StatusCreated, resp, "Habit series created successfully")
		return
	}

	if len(key) > maxIdempotencyKeyLength {
		utils.RespondError(c, http.StatusBadRequest, "Idempotency-Key is too long")
		return
	}

	// Keys are scoped per user so two users can never see each other's results.
	storeKey := userID + ":" + key
	ctx := c.Request.Context()
	// Store bookkeeping must finish even if the client goes away.
	storeCtx := context.WithoutCancel(ctx)

	claimTTL := idempotencyClaimTTL
	if h.idempotencyTTL < claimTTL {
		claimTTL = h.idempotencyTTL
	}

	cached, found, err := h.idempotency.Begin(storeCtx, storeKey, claimTTL)
	switch {
	case errors.Is(err, mem.ErrInFlight):
		utils.RespondError(c, http.StatusConflict, "A request with this Idempotency-Key is still in progress")
		return
	case err != nil:
		h.logger.Error("idempotency store unavailable", zap.String("user_id", userID), zap.Error(err))
		utils.RespondError(c, http.StatusServiceUnavailable, "Service temporarily unavailable, please retry later")
		return
	case found:
		c.Header(idempotencyReplayHeader, "true")
		c.Data(http.StatusCreated, "application/json; charset=utf-8", cached)
		return
	}

	resp, err := h.seriesService.CreateHabitSeries(ctx, userID, req)
	if err != nil {
		// Failures are never cached, so the client may retry with the same key.
		if relErr := h.idempotency.Release(storeCtx, storeKey); relErr != nil {
			h.logger.Warn("failed to release idempotency key", zap.String("user_id", userID), zap.Error(relErr))
		}
		utils.HandleServiceError(c, err)
		return
	}

	body, err := json.Marshal(utils.NewSuccessResponse(c, http.StatusCreated, resp, "Habit series created successfully"))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	if err := h.idempotency.Complete(storeCtx, storeKey, body, h.idempotencyTTL); err != nil {
		h.logger.Warn("failed to store idempotent response", zap.String("user_id", userID), zap.Error(err))
	}

	c.Data(http.StatusCreated, "application/json; charset=utf-8", body)
}

// ListHabitSeries godoc
// @Summary List habit series
// @Tags HabitSeries
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20) minimum(1) maximum(100)
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /habit-series [get]
func (h *HabitSeriesController) ListHabitSeries(c *gin.Context) {
	var q request_models.ListHabitSeriesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid page or page_size")
		return
	}

	userID := c.GetString(middleware.UserIDKey)

	resp, err := h.seriesService.ListHabitSeries(c.Request.Context(), userID, q.Page, q.PageSize)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, resp, "Habit series fetched successfully")
}

// GetHabitSeries godoc
// @Summary Get a habit series
// @Tags HabitSeries
// @Produce json
// @Param id path string true "Series ID"
// @Success 200 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Security BearerAuth
// @Router /habit-series/{id} [get]
func (h *HabitSeriesController) GetHabitSeries(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)

	resp, err := h.seriesService.GetHabitSeries(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, resp, "Habit series fetched successfully")
}

// DeleteHabitSeries godoc
// @Summary Delete a habit series
// @Description Removes the series and frees one active-series slot
// @Tags HabitSeries
// @Produce json
// @Param id path string true "Series ID"
// @Success 200 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Security BearerAuth
// @Router /habit-series/{id} [delete]
func (h *HabitSeriesController) DeleteHabitSeries(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)

	if err := h.seriesService.DeleteHabitSeries(c.Request.Context(), userID, c.Param("id")); err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, nil, "Habit series deleted successfully")
}
