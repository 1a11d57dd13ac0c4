package handler

import (
	"net/http"
	"time"

	"hrportal/internal/middleware"
	"hrportal/internal/service"
	"hrportal/pkg/response"

	"github.com/gin-gonic/gin"
)

type StatisticsHandler struct {
	statisticsService service.StatisticsService
	adminRoles        []string
}

func NewStatisticsHandler(statisticsService service.StatisticsService, adminRoles ...string) *StatisticsHandler {
	return &StatisticsHandler{statisticsService: statisticsService, adminRoles: adminRoles}
}

// RegisterRoutes expects router to sit behind RequireAuth
func (h *StatisticsHandler) RegisterRoutes(router *gin.RouterGroup) {
	statsGroup := router.Group("/statistics")
	{
		statsGroup.GET("", middleware.RequireRole(h.adminRoles...), h.GetStatistics)
	}
}

// @Summary      Get Dashboard Statistics
// @Description  Request counts by status, by type, and pending requests by approver department
// @Tags         Statistics
// @Produce      json
// @Param        start_date query string false "Start Date (RFC3339)"
// @Param        end_date   query string false "End Date (RFC3339)"
// @Success      200 {object} response.Response{data=model.RequestStatistics}
// @Failure      400 {object} response.Response "Invalid date format"
// @Failure      401 {object} response.Response "Unauthorized"
// @Security     BearerAuth
// @Router       /api/statistics [get]
func (h *StatisticsHandler) GetStatistics(c *gin.Context) {
	startDateStr := c.Query("start_date")
	endDateStr := c.Query("end_date")

	var startDate, endDate time.Time
	var err error

	// Default to current month if no dates are provided
	now := time.Now()
	if startDateStr == "" {
		startDate = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	} else {
		startDate, err = time.Parse(time.RFC3339, startDateStr)
		if err != nil {
			badRequest(c, "invalid start_date format, expected RFC3339")
			return
		}
	}

	if endDateStr == "" {
		endDate = now
	} else {
		endDate, err = time.Parse(time.RFC3339, endDateStr)
		if err != nil {
			badRequest(c, "invalid end_date format, expected RFC3339")
			return
		}
	}

	stats, err := h.statisticsService.GetStatistics(c.Request.Context(), startDate, endDate)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}
