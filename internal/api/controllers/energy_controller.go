package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"habitly/internal/services"
	"habitly/pkg/middleware"
	"habitly/pkg/utils"
)

type EnergyController struct {
	energyService services.EnergyServiceInterface
}

func NewEnergyController(energyService services.EnergyServiceInterface) *EnergyController {
	return &EnergyController{
		energyService: energyService,
	}
}

// GetEnergy godoc
// @Summary Get the energy balance
// @Description Applies today's recharge if it is due and returns the balance
// @Tags Energy
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /energy [get]
func (e *EnergyController) GetEnergy(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)

	resp, err := e.energyService.GetEnergy(c.Request.Context(), userID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, resp, "Energy fetched successfully")
}

// ListTransactions godoc
// @Summary List energy transactions
// @Tags Energy
// @Produce json
// @Param limit query int false "Max entries" default(50) minimum(1) maximum(100)
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /energy/transactions [get]
func (e *EnergyController) ListTransactions(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 100 {
		utils.RespondError(c, http.StatusBadRequest, "Invalid limit (must be 1-100)")
		return
	}

	userID := c.GetString(middleware.UserIDKey)

	resp, err := e.energyService.ListTransactions(c.Request.Context(), userID, limit)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, resp, "Energy transactions fetched successfully")
}
