package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"hrportal/internal/config"
	"hrportal/internal/events"
	"hrportal/internal/metrics"
	"hrportal/internal/model"
	"hrportal/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// --- DTOs ---

type SubmitRequestDTO struct {
	RequestType string          `json:"request_type" binding:"required"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Priority    string          `json:"priority" binding:"omitempty,oneof=low medium high"`
	RequestData json.RawMessage `json:"request_data" swaggertype:"object"`
}

// UpdateFieldsDTO is a partial document. title, description, priority, status and
// rejection_reason map to columns; request_data and any other key are merged into the
// request's payload.
type UpdateFieldsDTO map[string]json.RawMessage

type RequestFilter struct {
	Status          string
	RequestType     string
	CurrentApprover string
	Page            int
	Limit           int
}

// --- Interface ---

type RequestService interface {
	Submit(ctx context.Context, userID string, dto SubmitRequestDTO) (*model.Request, error)
	// Approve, Reject and Cancel return (nil, nil) for an unknown id and the unchanged
	// request when it is no longer pending.
	Approve(ctx context.Context, id string, actor Viewer, comment string) (*model.Request, error)
	Reject(ctx context.Context, id string, actor Viewer, reason string) (*model.Request, error)
	Cancel(ctx context.Context, id string, actor Viewer) (*model.Request, error)
	UpdateFields(ctx context.Context, id string, actor Viewer, dto UpdateFieldsDTO) (*model.Request, error)
	Get(ctx context.Context, viewer Viewer, id string) (*model.Request, error)
	List(ctx context.Context, viewer Viewer, filter RequestFilter) ([]model.Request, int64, error)
	Inbox(ctx context.Context, viewer Viewer, page, limit int) ([]model.Request, int64, error)
}

type requestService struct {
	repo      repository.RequestRepository
	tx        repository.TransactionManager
	identity  IdentityProvider
	publisher events.Publisher
	cfg       config.ApprovalConfig
	log       *zap.Logger

	now    func() time.Time
	suffix func() int
}

func NewRequestService(
	repo repository.RequestRepository,
	tx repository.TransactionManager,
	identity IdentityProvider,
	publisher events.Publisher,
	cfg config.ApprovalConfig,
	log *zap.Logger,
) RequestService {
	if cfg.IDMaxAttempts <= 0 {
		cfg.IDMaxAttempts = 1
	}
	return &requestService{
		repo:      repo,
		tx:        tx,
		identity:  identity,
		publisher: publisher,
		cfg:       cfg,
		log:       log.Named("requests"),
		now:       time.Now,
		suffix:    func() int { return rand.IntN(1000) },
	}
}

var immutableFields = map[string]bool{
	"id":               true,
	"request_type":     true,
	"requester_id":     true,
	"requester_name":   true,
	"employee_id":      true,
	"department":       true,
	"approvers":        true,
	"current_level":    true,
	"current_approver": true,
	"cancelled_at":     true,
	"created_at":       true,
	"updated_at":       true,
}

// --- Implementation ---

func (s *requestService) Submit(ctx context.Context, userID string, dto SubmitRequestDTO) (*model.Request, error) {
	requestType := strings.TrimSpace(dto.RequestType)
	if requestType == "" {
		return nil, fmt.Errorf("%w: request_type is required", ErrInvalidInput)
	}

	priority := dto.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !model.IsValidPriority(priority) {
		return nil, fmt.Errorf("%w: priority must be low, medium or high", ErrInvalidInput)
	}

	requester, err := s.identity.CurrentRequester(ctx, userID)
	if err != nil {
		s.log.Warn("Could not resolve requester", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	raw := []byte(dto.RequestData)
	if len(raw) == 0 || string(raw) == "null" {
		raw = []byte("{}")
	}

	title := strings.TrimSpace(dto.Title)
	if title == "" {
		title = model.DefaultTitle(requestType)
		if payload, decodeErr := model.DecodePayload(requestType, raw); decodeErr == nil {
			title = payload.Summary()
		} else {
			s.log.Debug("Payload does not match its type, storing as-is",
				zap.String("request_type", requestType), zap.Error(decodeErr))
		}
	}

	steps := RouteFor(requestType, RoutingContext{RequesterDepartment: requester.Department})
	now := s.now()

	req := &model.Request{
		RequestType:     requestType,
		RequesterID:     requester.ID,
		RequesterName:   requester.Name,
		EmployeeID:      requester.EmployeeID,
		Department:      requester.Department,
		Title:           title,
		Description:     dto.Description,
		RequestData:     datatypes.JSON(raw),
		Status:          model.StatusPending,
		Priority:        priority,
		Approvers:       steps,
		CurrentLevel:    1,
		CurrentApprover: steps[0].Department,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	created := false
	for attempt := 1; attempt <= s.cfg.IDMaxAttempts; attempt++ {
		req.ID = s.newID(now)
		created, err = s.repo.Create(ctx, req)
		if err != nil {
			s.log.Error("Failed to store request", zap.String("request_id", req.ID), zap.Error(err))
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		if created {
			break
		}
		s.log.Warn("Request id collision, retrying", zap.String("request_id", req.ID), zap.Int("attempt", attempt))
	}
	if !created {
		return nil, ErrIDExhausted
	}

	s.log.Info("Request submitted",
		zap.String("request_id", req.ID),
		zap.String("request_type", requestType),
		zap.String("current_approver", req.CurrentApprover),
		zap.Int("levels", len(steps)),
	)
	s.publish(ctx, events.RequestSubmitted, req, userID)
	return req, nil
}

func (s *requestService) Approve(ctx context.Context, id string, actor Viewer, comment string) (*model.Request, error) {
	return s.apply(ctx, id, actor, "approve", s.canDecide, func(req *model.Request, now time.Time) (*transition, error) {
		return planApprove(req, actor.UserID, strings.TrimSpace(comment), now)
	})
}

func (s *requestService) Reject(ctx context.Context, id string, actor Viewer, reason string) (*model.Request, error) {
	return s.apply(ctx, id, actor, "reject", s.canDecide, func(req *model.Request, now time.Time) (*transition, error) {
		return planReject(req, actor.UserID, strings.TrimSpace(reason), now)
	})
}

func (s *requestService) Cancel(ctx context.Context, id string, actor Viewer) (*model.Request, error) {
	return s.apply(ctx, id, actor, "cancel", s.canCancel, func(req *model.Request, now time.Time) (*transition, error) {
		return planCancel(req, now)
	})
}

// apply runs one guarded status change. The write only lands while the row is still
// pending at the level that was read, so a concurrent duplicate becomes a no-op.
func (s *requestService) apply(
	ctx context.Context,
	id string,
	actor Viewer,
	op string,
	authorize func(Viewer, *model.Request) bool,
	plan func(*model.Request, time.Time) (*transition, error),
) (*model.Request, error) {
	req, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Info("Request not found, nothing to do", zap.String("request_id", id), zap.String("op", op))
			return nil, nil
		}
		s.log.Error("Failed to load request", zap.String("request_id", id), zap.String("op", op), zap.Error(err))
		return nil, fmt.Errorf("failed to load request: %w", err)
	}

	if req.Status != model.StatusPending {
		s.log.Info("Request is not pending, ignoring",
			zap.String("request_id", id), zap.String("op", op), zap.String("status", req.Status))
		return req, nil
	}

	if s.cfg.EnforceActor && !authorize(actor, req) {
		return nil, ErrForbidden
	}

	t, err := plan(req, s.now())
	if err != nil {
		s.log.Error("Cannot plan transition", zap.String("request_id", id), zap.String("op", op), zap.Error(err))
		return nil, err
	}

	ok, err := s.repo.UpdateIfPending(ctx, id, t.expectedLevel, t.fields)
	if err != nil {
		s.log.Error("Failed to write transition", zap.String("request_id", id), zap.String("op", op), zap.Error(err))
		return nil, fmt.Errorf("failed to %s request: %w", op, err)
	}
	if !ok {
		metrics.RequestConflicts.Inc()
		s.log.Info("Request changed concurrently, skipping",
			zap.String("request_id", id), zap.String("op", op), zap.Int("level", t.expectedLevel))
		return s.reload(ctx, id)
	}

	s.log.Info("Request transition applied",
		zap.String("request_id", id),
		zap.String("event", string(t.event)),
		zap.String("actor", actor.UserID),
		zap.Int("level", t.next.CurrentLevel),
	)
	s.publish(ctx, t.event, t.next, actor.UserID)
	return t.next, nil
}

func (s *requestService) UpdateFields(ctx context.Context, id string, actor Viewer, dto UpdateFieldsDTO) (*model.Request, error) {
	upd, err := parseFieldUpdate(dto)
	if err != nil {
		return nil, err
	}

	var (
		result  *model.Request
		emitted []*events.Event
	)

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		req, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				s.log.Info("Request not found, nothing to update", zap.String("request_id", id))
				return nil
			}
			return fmt.Errorf("failed to load request: %w", err)
		}

		now := s.now()
		t, err := s.planStatusChange(req, actor, upd, now)
		if err != nil {
			return err
		}
		if t == nil && s.cfg.EnforceActor && !s.canEdit(actor, req) {
			return ErrForbidden
		}

		fields := make(map[string]interface{}, len(upd.columns)+4)
		for k, v := range upd.columns {
			fields[k] = v
		}
		if upd.rejectionReason != "" && t == nil {
			if req.Status != model.StatusRejected {
				return fmt.Errorf("%w: rejection_reason only applies to rejected requests", ErrInvalidInput)
			}
			fields["rejection_reason"] = upd.rejectionReason
		}
		if len(upd.data) > 0 {
			merged, err := mergeRequestData(req.RequestData, upd.data)
			if err != nil {
				return err
			}
			fields["request_data"] = merged
		}

		if t == nil && len(fields) == 0 {
			result = req
			return nil
		}

		next := *req
		if t != nil {
			for k, v := range t.fields {
				fields[k] = v
			}
			fields["updated_at"] = now
			ok, err := s.repo.UpdateIfPending(txCtx, id, t.expectedLevel, fields)
			if err != nil {
				return fmt.Errorf("failed to update request: %w", err)
			}
			if !ok {
				metrics.RequestConflicts.Inc()
				return ErrNotPending
			}
			next = *t.next
		} else {
			fields["updated_at"] = now
			if err := s.repo.UpdateFields(txCtx, id, fields); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return nil
				}
				return fmt.Errorf("failed to update request: %w", err)
			}
			next.UpdatedAt = now
		}

		applyColumns(&next, fields)
		result = &next

		if t != nil {
			emitted = append(emitted, events.New(t.event, result, actor.UserID, now))
		}
		emitted = append(emitted, events.New(events.RequestUpdated, result, actor.UserID, now))
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrNotPending) && !errors.Is(err, ErrInvalidInput) && !errors.Is(err, ErrForbidden) {
			s.log.Error("Failed to update request fields", zap.String("request_id", id), zap.Error(err))
		}
		return nil, err
	}

	for _, evt := range emitted {
		s.dispatch(ctx, evt)
	}
	if result != nil && len(emitted) > 0 {
		s.log.Info("Request fields updated", zap.String("request_id", id), zap.Int("fields", len(dto)))
	}
	return result, nil
}

// planStatusChange maps a status override onto the state machine. A status equal to the
// current one is not a change.
func (s *requestService) planStatusChange(req *model.Request, actor Viewer, upd *fieldUpdate, now time.Time) (*transition, error) {
	if upd.status == "" || upd.status == req.Status {
		return nil, nil
	}
	if req.IsTerminal() {
		return nil, ErrNotPending
	}

	switch upd.status {
	case model.StatusApproved:
		if s.cfg.EnforceActor && !s.canDecide(actor, req) {
			return nil, ErrForbidden
		}
		return planFinalize(req, actor.UserID, now)
	case model.StatusRejected:
		if s.cfg.EnforceActor && !s.canDecide(actor, req) {
			return nil, ErrForbidden
		}
		return planReject(req, actor.UserID, upd.rejectionReason, now)
	case model.StatusCancelled:
		if s.cfg.EnforceActor && !s.canCancel(actor, req) {
			return nil, ErrForbidden
		}
		return planCancel(req, now)
	}
	return nil, fmt.Errorf("%w: unsupported status %q", ErrInvalidInput, upd.status)
}

func (s *requestService) Get(ctx context.Context, viewer Viewer, id string) (*model.Request, error) {
	req, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load request: %w", err)
	}
	if !s.canView(viewer, req) {
		return nil, ErrNotFound
	}
	return req, nil
}

func (s *requestService) List(ctx context.Context, viewer Viewer, filter RequestFilter) ([]model.Request, int64, error) {
	if filter.Status != "" && !model.IsValidStatus(filter.Status) {
		return nil, 0, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, filter.Status)
	}

	scope, err := s.scopeFor(viewer)
	if err != nil {
		return nil, 0, err
	}

	requests, total, err := s.repo.List(ctx, repository.RequestQuery{
		RequesterID:     scope,
		Status:          filter.Status,
		RequestType:     filter.RequestType,
		CurrentApprover: filter.CurrentApprover,
		Page:            filter.Page,
		Limit:           filter.Limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list requests: %w", err)
	}
	return requests, total, nil
}

// Inbox lists the pending requests waiting on the viewer's department
func (s *requestService) Inbox(ctx context.Context, viewer Viewer, page, limit int) ([]model.Request, int64, error) {
	query := repository.RequestQuery{
		Status: model.StatusPending,
		Page:   page,
		Limit:  limit,
	}
	if !s.cfg.IsAdminRole(viewer.Role) {
		if viewer.Department == "" {
			return []model.Request{}, 0, nil
		}
		query.CurrentApprover = viewer.Department
	}

	requests, total, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list inbox: %w", err)
	}
	return requests, total, nil
}

// --- Helpers ---

func (s *requestService) newID(now time.Time) string {
	return fmt.Sprintf("REQ-%s-%03d", now.Format("20060102"), s.suffix()%1000)
}

func (s *requestService) reload(ctx context.Context, id string) (*model.Request, error) {
	req, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to reload request: %w", err)
	}
	return req, nil
}

func (s *requestService) publish(ctx context.Context, t events.Type, req *model.Request, actorID string) {
	s.dispatch(ctx, events.New(t, req, actorID, s.now()))
}

func (s *requestService) dispatch(ctx context.Context, evt *events.Event) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, evt)
}

func (s *requestService) scopeFor(viewer Viewer) (*uuid.UUID, error) {
	return viewerScope(s.cfg, viewer)
}

// viewerScope returns nil for admin roles (every request) and the viewer's own id otherwise
func viewerScope(cfg config.ApprovalConfig, viewer Viewer) (*uuid.UUID, error) {
	if cfg.IsAdminRole(viewer.Role) {
		return nil, nil
	}
	id, err := uuid.Parse(viewer.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid viewer id", ErrInvalidInput)
	}
	return &id, nil
}

func (s *requestService) canView(viewer Viewer, req *model.Request) bool {
	if s.cfg.IsAdminRole(viewer.Role) || viewer.UserID == req.RequesterID.String() {
		return true
	}
	for _, step := range req.Approvers {
		if viewer.Department != "" && strings.EqualFold(step.Department, viewer.Department) {
			return true
		}
	}
	return false
}

func (s *requestService) canDecide(actor Viewer, req *model.Request) bool {
	return s.cfg.IsAdminRole(actor.Role) ||
		(actor.Department != "" && strings.EqualFold(actor.Department, req.CurrentApprover))
}

func (s *requestService) canCancel(actor Viewer, req *model.Request) bool {
	return actor.UserID == req.RequesterID.String()
}

func (s *requestService) canEdit(actor Viewer, req *model.Request) bool {
	return s.canCancel(actor, req) || s.canDecide(actor, req)
}

type fieldUpdate struct {
	columns         map[string]interface{}
	data            map[string]json.RawMessage
	status          string
	rejectionReason string
}

func parseFieldUpdate(dto UpdateFieldsDTO) (*fieldUpdate, error) {
	if len(dto) == 0 {
		return nil, fmt.Errorf("%w: no fields to update", ErrInvalidInput)
	}

	upd := &fieldUpdate{
		columns: map[string]interface{}{},
		data:    map[string]json.RawMessage{},
	}

	for key, raw := range dto {
		if immutableFields[key] {
			return nil, fmt.Errorf("%w: %s", ErrFieldNotMutable, key)
		}

		switch key {
		case "title", "description":
			v, err := decodeString(key, raw)
			if err != nil {
				return nil, err
			}
			upd.columns[key] = v
		case "priority":
			v, err := decodeString(key, raw)
			if err != nil {
				return nil, err
			}
			if !model.IsValidPriority(v) {
				return nil, fmt.Errorf("%w: priority must be low, medium or high", ErrInvalidInput)
			}
			upd.columns[key] = v
		case "status":
			v, err := decodeString(key, raw)
			if err != nil {
				return nil, err
			}
			if !model.IsValidStatus(v) {
				return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, v)
			}
			upd.status = v
		case "rejection_reason":
			v, err := decodeString(key, raw)
			if err != nil {
				return nil, err
			}
			upd.rejectionReason = strings.TrimSpace(v)
		case "request_data":
			var nested map[string]json.RawMessage
			if err := json.Unmarshal(raw, &nested); err != nil || nested == nil {
				return nil, fmt.Errorf("%w: request_data must be an object", ErrInvalidInput)
			}
			for k, v := range nested {
				upd.data[k] = v
			}
		default:
			upd.data[key] = raw
		}
	}
	return upd, nil
}

func decodeString(key string, raw json.RawMessage) (string, error) {
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("%w: %s must be a string", ErrInvalidInput, key)
	}
	return v, nil
}

// mergeRequestData shallow-merges updates into the stored payload. A payload that is not
// a JSON object is replaced.
func mergeRequestData(current datatypes.JSON, updates map[string]json.RawMessage) (datatypes.JSON, error) {
	merged := map[string]json.RawMessage{}
	if len(current) > 0 {
		if err := json.Unmarshal(current, &merged); err != nil || merged == nil {
			merged = map[string]json.RawMessage{}
		}
	}
	for k, v := range updates {
		merged[k] = v
	}

	out, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request_data: %w", err)
	}
	return datatypes.JSON(out), nil
}

func applyColumns(req *model.Request, fields map[string]interface{}) {
	if v, ok := fields["title"].(string); ok {
		req.Title = v
	}
	if v, ok := fields["description"].(string); ok {
		req.Description = v
	}
	if v, ok := fields["priority"].(string); ok {
		req.Priority = v
	}
	if v, ok := fields["rejection_reason"].(string); ok {
		req.RejectionReason = v
	}
	if v, ok := fields["request_data"].(datatypes.JSON); ok {
		req.RequestData = v
	}
	if v, ok := fields["updated_at"].(time.Time); ok {
		req.UpdatedAt = v
	}
}
