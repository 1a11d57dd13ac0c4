package handler

import (
	"net/http"

	"hrportal/internal/middleware"
	"hrportal/internal/service"
	"hrportal/pkg/pagination"
	"hrportal/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
	adminRoles   []string
}

func NewAuditHandler(auditService service.AuditService, adminRoles ...string) *AuditHandler {
	return &AuditHandler{auditService: auditService, adminRoles: adminRoles}
}

// RegisterRoutes expects router to sit behind RequireAuth
func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/audit-logs")
	group.Use(middleware.RequireRole(h.adminRoles...))
	{
		group.GET("", h.GetAuditLogs)
	}
}

// GetAuditLogs returns the lifecycle history, optionally for one request
// @Summary      Get audit logs
// @Description  One row per lifecycle event, newest first
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        request_id  query     string  false  "Filter by request ID"
// @Param        page        query     int     false  "Page number (default 1)"
// @Param        limit       query     int     false  "Number of items per page (default 20)"
// @Success      200         {object}  response.Response{data=[]service.AuditLogResponse,meta=pagination.Meta}
// @Router       /api/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	p := pagination.Parse(c)

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), c.Query("request_id"), p.Page, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, logs, p.Meta(total)))
}
