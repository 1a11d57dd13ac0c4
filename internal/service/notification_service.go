package service

import (
	"context"
	"fmt"

	"hrportal/internal/events"
	"hrportal/internal/model"
	"hrportal/internal/repository"

	"github.com/google/uuid"
)

type NotificationListResponse struct {
	Notifications []model.Notification `json:"notifications"`
	Unread        int64                `json:"unread"`
}

type NotificationService interface {
	// Notify is the lifecycle observer that tells the requester what happened
	Notify(ctx context.Context, evt *events.Event) error
	List(ctx context.Context, userID string, unreadOnly bool, page, limit int) (*NotificationListResponse, int64, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

type notificationService struct {
	repo repository.NotificationRepository
}

func NewNotificationService(repo repository.NotificationRepository) NotificationService {
	return &notificationService{repo: repo}
}

// BuildNotification renders the requester-facing message for evt. ok is false for
// events that do not notify anyone.
func BuildNotification(evt *events.Event) (n model.Notification, ok bool) {
	req := evt.Request
	n = model.Notification{
		UserID:    req.RequesterID,
		RequestID: req.ID,
		Type:      model.NotificationInfo,
		CreatedAt: evt.OccurredAt,
	}

	switch evt.Type {
	case events.RequestSubmitted:
		n.Title = "Request Submitted"
		n.Message = fmt.Sprintf("Your request %s (%s) was submitted and is awaiting %s.", req.ID, req.Title, req.CurrentApprover)
	case events.RequestAdvanced:
		n.Title = "Request Moved to Next Level"
		n.Message = fmt.Sprintf("Your request %s was approved at level %d and moved to %s.", req.ID, req.CurrentLevel-1, req.CurrentApprover)
	case events.RequestApproved:
		n.Title = "Request Approved"
		n.Message = fmt.Sprintf("Your request %s (%s) has been fully approved.", req.ID, req.Title)
		n.Type = model.NotificationSuccess
	case events.RequestRejected:
		n.Title = "Request Rejected"
		n.Message = fmt.Sprintf("Your request %s was rejected.", req.ID)
		if req.RejectionReason != "" {
			n.Message = fmt.Sprintf("Your request %s was rejected. Reason: %s", req.ID, req.RejectionReason)
		}
		n.Type = model.NotificationError
	case events.RequestCancelled:
		n.Title = "Request Cancelled"
		n.Message = fmt.Sprintf("Your request %s has been cancelled.", req.ID)
	default:
		return model.Notification{}, false
	}
	return n, true
}

func (s *notificationService) Notify(ctx context.Context, evt *events.Event) error {
	n, ok := BuildNotification(evt)
	if !ok || n.UserID == uuid.Nil {
		return nil
	}
	if err := s.repo.Create(ctx, &n); err != nil {
		return fmt.Errorf("failed to store notification for %s: %w", evt.RequestID, err)
	}
	return nil
}

func (s *notificationService) List(ctx context.Context, userID string, unreadOnly bool, page, limit int) (*NotificationListResponse, int64, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: invalid user id", ErrInvalidInput)
	}

	items, total, err := s.repo.ListForUser(ctx, uid, unreadOnly, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	unread, err := s.repo.CountUnread(ctx, uid)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	if items == nil {
		items = []model.Notification{}
	}
	return &NotificationListResponse{Notifications: items, Unread: unread}, total, nil
}

func (s *notificationService) MarkRead(ctx context.Context, userID, id string) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("%w: invalid user id", ErrInvalidInput)
	}
	nid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: invalid notification id", ErrInvalidInput)
	}

	ok, err := s.repo.MarkRead(ctx, uid, nid)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid user id", ErrInvalidInput)
	}
	n, err := s.repo.MarkAllRead(ctx, uid)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return n, nil
}
