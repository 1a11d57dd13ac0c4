package handler

import (
	"net/http"

	"hrportal/internal/middleware"
	"hrportal/internal/service"
	"hrportal/pkg/pagination"
	"hrportal/pkg/response"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notificationService service.NotificationService
}

func NewNotificationHandler(notificationService service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// RegisterRoutes expects router to sit behind RequireAuth
func (h *NotificationHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/notifications")
	{
		group.GET("", h.List)
		group.PUT("/read-all", h.MarkAllRead)
		group.PUT("/:id/read", h.MarkRead)
	}
}

// List returns the caller's notifications
// @Summary      List notifications
// @Tags         notifications
// @Security     BearerAuth
// @Produce      json
// @Param        unread  query     bool  false  "Only unread"
// @Param        page    query     int   false  "Page number (default 1)"
// @Param        limit   query     int   false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=service.NotificationListResponse,meta=pagination.Meta}
// @Router       /api/notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	p := pagination.Parse(c)
	unreadOnly := c.Query("unread") == "true"

	res, total, err := h.notificationService.List(c.Request.Context(), c.GetString(middleware.CtxUserID), unreadOnly, p.Page, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, res, p.Meta(total)))
}

// MarkRead marks one notification as read
// @Summary      Mark notification read
// @Tags         notifications
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Notification ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/notifications/{id}/read [put]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	if err := h.notificationService.MarkRead(c.Request.Context(), c.GetString(middleware.CtxUserID), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"id": c.Param("id")}))
}

// MarkAllRead marks every notification of the caller as read
// @Summary      Mark all notifications read
// @Tags         notifications
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /api/notifications/read-all [put]
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	n, err := h.notificationService.MarkAllRead(c.Request.Context(), c.GetString(middleware.CtxUserID))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"updated": n}))
}
