package handler

import (
	"net/http"

	"hrportal/internal/middleware"
	"hrportal/internal/model"
	"hrportal/internal/service"
	"hrportal/pkg/pagination"
	"hrportal/pkg/response"

	"github.com/gin-gonic/gin"
)

type RequestHandler struct {
	requestService    service.RequestService
	projectionService service.ProjectionService
}

func NewRequestHandler(requestService service.RequestService, projectionService service.ProjectionService) *RequestHandler {
	return &RequestHandler{requestService: requestService, projectionService: projectionService}
}

type ApproveRequestBody struct {
	Comment string `json:"comment"`
}

type RejectRequestBody struct {
	Reason string `json:"reason"`
}

// RegisterRoutes expects router to sit behind RequireAuth
func (h *RequestHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/requests")
	{
		group.POST("", h.Submit)
		group.GET("", h.List)
		group.GET("/inbox", h.Inbox)
		group.GET("/projection", h.Projection)
		group.GET("/:id", h.Get)
		group.PATCH("/:id", h.UpdateFields)
		group.PUT("/:id/approve", h.Approve)
		group.PUT("/:id/reject", h.Reject)
		group.PUT("/:id/cancel", h.Cancel)
	}
}

// Submit creates a request routed to its approval chain
// @Summary      Submit a request
// @Description  Creates a pending request for the caller and routes it to the first approver
// @Tags         requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.SubmitRequestDTO  true  "Request"
// @Success      201      {object}  response.Response{data=model.Request}
// @Failure      400      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/requests [post]
func (h *RequestHandler) Submit(c *gin.Context) {
	var dto service.SubmitRequestDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	req, err := h.requestService.Submit(c.Request.Context(), c.GetString(middleware.CtxUserID), dto)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, req))
}

// Approve approves the current level of a request
// @Summary      Approve a request
// @Description  Advances the request to its next level, or approves it at the last level
// @Tags         requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string              true   "Request ID"
// @Param        payload  body      ApproveRequestBody  false  "Comment"
// @Success      200      {object}  response.Response{data=model.Request}
// @Failure      403      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/requests/{id}/approve [put]
func (h *RequestHandler) Approve(c *gin.Context) {
	var body ApproveRequestBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, "Invalid request payload: "+err.Error())
			return
		}
	}

	req, err := h.requestService.Approve(c.Request.Context(), c.Param("id"), middleware.Viewer(c), body.Comment)
	h.respond(c, req, err)
}

// Reject rejects a pending request
// @Summary      Reject a request
// @Tags         requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string             true   "Request ID"
// @Param        payload  body      RejectRequestBody  false  "Reason"
// @Success      200      {object}  response.Response{data=model.Request}
// @Failure      403      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/requests/{id}/reject [put]
func (h *RequestHandler) Reject(c *gin.Context) {
	var body RejectRequestBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, "Invalid request payload: "+err.Error())
			return
		}
	}

	req, err := h.requestService.Reject(c.Request.Context(), c.Param("id"), middleware.Viewer(c), body.Reason)
	h.respond(c, req, err)
}

// Cancel withdraws a pending request
// @Summary      Cancel a request
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=model.Request}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/requests/{id}/cancel [put]
func (h *RequestHandler) Cancel(c *gin.Context) {
	req, err := h.requestService.Cancel(c.Request.Context(), c.Param("id"), middleware.Viewer(c))
	h.respond(c, req, err)
}

// UpdateFields applies a partial update
// @Summary      Update request fields
// @Description  Changes title, description, priority, status or request_data. Other keys are merged into request_data.
// @Tags         requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string  true  "Request ID"
// @Param        payload  body      object  true  "Fields"
// @Success      200      {object}  response.Response{data=model.Request}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/requests/{id} [patch]
func (h *RequestHandler) UpdateFields(c *gin.Context) {
	var dto service.UpdateFieldsDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	req, err := h.requestService.UpdateFields(c.Request.Context(), c.Param("id"), middleware.Viewer(c), dto)
	h.respond(c, req, err)
}

// Get returns one request the caller may see
// @Summary      Get a request
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=model.Request}
// @Failure      404  {object}  response.Response
// @Router       /api/requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	req, err := h.requestService.Get(c.Request.Context(), middleware.Viewer(c), c.Param("id"))
	h.respond(c, req, err)
}

// List returns the caller's requests (every request for admin roles)
// @Summary      List requests
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        status            query     string  false  "Status"
// @Param        request_type      query     string  false  "Request type"
// @Param        current_approver  query     string  false  "Current approver"
// @Param        page              query     int     false  "Page number (default 1)"
// @Param        limit             query     int     false  "Items per page (default 20)"
// @Success      200               {object}  response.Response{data=[]model.Request,meta=pagination.Meta}
// @Router       /api/requests [get]
func (h *RequestHandler) List(c *gin.Context) {
	p := pagination.Parse(c)
	filter := service.RequestFilter{
		Status:          c.Query("status"),
		RequestType:     c.Query("request_type"),
		CurrentApprover: c.Query("current_approver"),
		Page:            p.Page,
		Limit:           p.Limit,
	}

	items, total, err := h.requestService.List(c.Request.Context(), middleware.Viewer(c), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, items, p.Meta(total)))
}

// Inbox returns pending requests waiting on the caller's department
// @Summary      Approver inbox
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Items per page (default 20)"
// @Success      200    {object}  response.Response{data=[]model.Request,meta=pagination.Meta}
// @Router       /api/requests/inbox [get]
func (h *RequestHandler) Inbox(c *gin.Context) {
	p := pagination.Parse(c)

	items, total, err := h.requestService.Inbox(c.Request.Context(), middleware.Viewer(c), p.Page, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, items, p.Meta(total)))
}

// Projection returns the per-domain views of everything the caller may see
// @Summary      Request projection
// @Description  Without group, returns all requests and every bucket. With group, returns that bucket only.
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        group  query     string  false  "Group key, e.g. leave, sim, guesthouse"
// @Success      200    {object}  response.Response{data=service.Projection}
// @Router       /api/requests/projection [get]
func (h *RequestHandler) Projection(c *gin.Context) {
	snap, err := h.projectionService.Snapshot(c.Request.Context(), middleware.Viewer(c))
	if err != nil {
		writeError(c, err)
		return
	}

	if group := c.Query("group"); group != "" {
		c.JSON(http.StatusOK, response.Success(http.StatusOK, snap.Bucket(service.GroupFor(group))))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, snap))
}

// respond writes a lifecycle result. A nil request means the id is unknown and nothing
// was changed.
func (h *RequestHandler) respond(c *gin.Context, req *model.Request, err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	if req == nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, "Request not found"))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, req))
}
