package service

import (
	"context"
	"encoding/json"
	"fmt"

	"hrportal/internal/events"
	"hrportal/internal/model"
	"hrportal/internal/repository"

	"github.com/google/uuid"
)

type AuditLogResponse struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	UserName   string `json:"user_name"`
	Action     string `json:"action"`
	EntityID   string `json:"entity_id"`
	EntityName string `json:"entity_name"`
	Details    string `json:"details"`
	CreatedAt  string `json:"created_at"`
}

type AuditService interface {
	GetAuditLogs(ctx context.Context, requestID string, page, limit int) ([]AuditLogResponse, int64, error)
	// Record is the lifecycle observer writing one row per event
	Record(ctx context.Context, evt *events.Event) error
}

type auditService struct {
	repo repository.AuditRepository
}

// NewAuditService creates a new AuditService instance
func NewAuditService(repo repository.AuditRepository) AuditService {
	return &auditService{repo: repo}
}

var auditActions = map[events.Type]string{
	events.RequestSubmitted: model.ActionRequestSubmitted,
	events.RequestAdvanced:  model.ActionRequestAdvanced,
	events.RequestApproved:  model.ActionRequestApproved,
	events.RequestRejected:  model.ActionRequestRejected,
	events.RequestCancelled: model.ActionRequestCancelled,
	events.RequestUpdated:   model.ActionRequestUpdated,
}

func (s *auditService) Record(ctx context.Context, evt *events.Event) error {
	action, ok := auditActions[evt.Type]
	if !ok {
		return nil
	}

	details, _ := json.Marshal(map[string]interface{}{
		"status":           evt.Request.Status,
		"current_level":    evt.Request.CurrentLevel,
		"current_approver": evt.Request.CurrentApprover,
		"rejection_reason": evt.Request.RejectionReason,
		"event_id":         evt.ID,
	})

	entry := &model.AuditLog{
		Action:     action,
		EntityID:   evt.RequestID,
		EntityName: evt.Request.RequestType,
		Details:    string(details),
		CreatedAt:  evt.OccurredAt,
	}
	if actorID, err := uuid.Parse(evt.ActorID); err == nil {
		entry.UserID = &actorID
	}

	if err := s.repo.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// GetAuditLogs lists audit entries newest first, optionally for a single request
func (s *auditService) GetAuditLogs(ctx context.Context, requestID string, page, limit int) ([]AuditLogResponse, int64, error) {
	logs, total, err := s.repo.List(ctx, requestID, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		userName := "System"
		userID := ""
		if l.User != nil {
			userName = l.User.Name
		}
		if l.UserID != nil {
			userID = l.UserID.String()
		}

		res = append(res, AuditLogResponse{
			ID:         l.ID.String(),
			UserID:     userID,
			UserName:   userName,
			Action:     l.Action,
			EntityID:   l.EntityID,
			EntityName: l.EntityName,
			Details:    l.Details,
			CreatedAt:  l.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}

	return res, total, nil
}
