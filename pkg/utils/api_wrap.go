package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type APIResponse struct {
	Status  string         `json:"status"`
	Code    int            `json:"code"`
	Message string         `json:"message,omitempty"`
	Error   string         `json:"error,omitempty"`
	Reason  string         `json:"reason,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
	TraceID string         `json:"trace_id,omitempty"`
	Data    interface{}    `json:"data,omitempty"`
}

func traceID(c *gin.Context) string {
	return c.GetString("trace_id")
}

func RespondSuccess(c *gin.Context, data interface{}, message string) {
	RespondWithStatus(c, http.StatusOK, data, message)
}

func RespondWithStatus(c *gin.Context, status int, data interface{}, message string) {
	c.JSON(status, NewSuccessResponse(c, status, data, message))
}

func NewSuccessResponse(c *gin.Context, status int, data interface{}, message string) APIResponse {
	return APIResponse{
		Status:  "success",
		Code:    status,
		Message: message,
		TraceID: traceID(c),
		Data:    data,
	}
}

func RespondError(c *gin.Context, code int, message string) {
	c.JSON(code, APIResponse{
		Status:  "error",
		Code:    code,
		Message: message,
		TraceID: traceID(c),
	})
}

type errorMapping struct {
	kind    error
	status  int
	message string
	// public marks errors whose reason and metadata are safe to show to users.
	public bool
}

var errorMappings = []errorMapping{
	{ErrValidation, http.StatusBadRequest, "Invalid request", true},
	{ErrOutputInvalid, http.StatusUnprocessableEntity, "Generated habit series failed validation, no energy was charged", true},
	{ErrAuthorization, http.StatusForbidden, "Action not allowed on the current plan", true},
	{ErrInsufficientResource, http.StatusPaymentRequired, "Not enough energy", true},
	{ErrUserNotFound, http.StatusNotFound, "User not found", false},
	{ErrNotFound, http.StatusNotFound, "Resource not found", false},
	{ErrAIUnavailable, http.StatusServiceUnavailable, "AI service temporarily unavailable, please retry later", false},
	{ErrAIRejected, http.StatusBadGateway, "AI provider failure", false},
	{ErrAIFailure, http.StatusBadGateway, "AI provider failure", false},
	{ErrTransactionFailure, http.StatusInternalServerError, "Internal server error", false},
	{ErrDataAccessFailure, http.StatusInternalServerError, "Internal server error", false},
}

// lookupMapping matches on a CodedError's own kind first, so a sentinel
// buried in its cause cannot change the status.
func lookupMapping(err error) (errorMapping, bool) {
	target := err
	var ce *CodedError
	if errors.As(err, &ce) {
		target = ce.Kind
	}
	for _, m := range errorMappings {
		if errors.Is(target, m.kind) {
			return m, true
		}
	}
	return errorMapping{}, false
}

// StatusFor returns the HTTP status a service error maps to.
func StatusFor(err error) int {
	if m, ok := lookupMapping(err); ok {
		return m.status
	}
	return http.StatusInternalServerError
}

func HandleServiceError(c *gin.Context, err error) {
	resp := APIResponse{
		Status:  "error",
		Code:    http.StatusInternalServerError,
		Message: "Internal server error",
		Error:   CodeOf(err),
		TraceID: traceID(c),
	}

	var public bool
	if m, ok := lookupMapping(err); ok {
		resp.Code = m.status
		resp.Message = m.message
		public = m.public
	}

	var ce *CodedError
	if public && errors.As(err, &ce) {
		resp.Reason = ce.Reason
		resp.Meta = ce.Meta
	}

	if resp.Code >= http.StatusInternalServerError {
		zap.L().Error("service error",
			zap.String("trace_id", resp.TraceID),
			zap.String("code", resp.Error),
			zap.Error(err))
	}

	c.JSON(resp.Code, resp)
}
