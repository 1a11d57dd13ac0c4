package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"hrportal/internal/events"
	"hrportal/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotificationRepo struct {
	created []model.Notification
	read    map[uuid.UUID]bool
	err     error
}

func (f *fakeNotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, *n)
	return nil
}

func (f *fakeNotificationRepo) ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, page, limit int) ([]model.Notification, int64, error) {
	var out []model.Notification
	for _, n := range f.created {
		if n.UserID == userID && (!unreadOnly || !f.read[n.ID]) {
			out = append(out, n)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeNotificationRepo) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	for _, n := range f.created {
		if n.UserID == userID && !f.read[n.ID] {
			count++
		}
	}
	return count, nil
}

func (f *fakeNotificationRepo) MarkRead(ctx context.Context, userID, id uuid.UUID) (bool, error) {
	for _, n := range f.created {
		if n.ID == id && n.UserID == userID {
			f.read[id] = true
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeNotificationRepo) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	for _, n := range f.created {
		if n.UserID == userID && !f.read[n.ID] {
			f.read[n.ID] = true
			count++
		}
	}
	return count, nil
}

type fakeAuditRepo struct {
	entries []model.AuditLog
}

func (f *fakeAuditRepo) Log(ctx context.Context, entry *model.AuditLog) error {
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeAuditRepo) List(ctx context.Context, entityID string, page, limit int) ([]model.AuditLog, int64, error) {
	var out []model.AuditLog
	for _, e := range f.entries {
		if entityID == "" || e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, int64(len(out)), nil
}

func eventFor(t events.Type, mutate func(r *model.Request)) *events.Event {
	req := &model.Request{
		ID:              "REQ-20240115-042",
		RequestType:     model.RequestTypeLeave,
		RequesterID:     aliceID,
		Title:           "Casual leave",
		Status:          model.StatusPending,
		CurrentLevel:    1,
		CurrentApprover: "Time Office",
	}
	if mutate != nil {
		mutate(req)
	}
	return events.New(t, req, uuid.NewString(), fixedAt)
}

func TestBuildNotification(t *testing.T) {
	n, ok := BuildNotification(eventFor(events.RequestSubmitted, nil))
	require.True(t, ok)
	assert.Equal(t, aliceID, n.UserID)
	assert.Equal(t, model.NotificationInfo, n.Type)
	assert.Contains(t, n.Message, "awaiting Time Office")

	n, ok = BuildNotification(eventFor(events.RequestAdvanced, func(r *model.Request) {
		r.CurrentLevel = 2
		r.CurrentApprover = "Engineering"
	}))
	require.True(t, ok)
	assert.Contains(t, n.Message, "level 1")
	assert.Contains(t, n.Message, "moved to Engineering")

	n, ok = BuildNotification(eventFor(events.RequestApproved, func(r *model.Request) { r.Status = model.StatusApproved }))
	require.True(t, ok)
	assert.Equal(t, model.NotificationSuccess, n.Type)

	n, ok = BuildNotification(eventFor(events.RequestRejected, func(r *model.Request) {
		r.Status = model.StatusRejected
		r.RejectionReason = "Insufficient balance"
	}))
	require.True(t, ok)
	assert.Equal(t, model.NotificationError, n.Type)
	assert.Contains(t, n.Message, "Insufficient balance")

	n, ok = BuildNotification(eventFor(events.RequestCancelled, nil))
	require.True(t, ok)
	assert.Equal(t, "Request Cancelled", n.Title)

	_, ok = BuildNotification(eventFor(events.RequestUpdated, nil))
	assert.False(t, ok)
}

func TestNotificationService_NotifyAndRead(t *testing.T) {
	repo := &fakeNotificationRepo{read: map[uuid.UUID]bool{}}
	svc := NewNotificationService(repo)
	ctx := context.Background()

	require.NoError(t, svc.Notify(ctx, eventFor(events.RequestSubmitted, nil)))
	require.NoError(t, svc.Notify(ctx, eventFor(events.RequestUpdated, nil)))
	require.Len(t, repo.created, 1)

	// BeforeCreate assigns ids in the real store
	repo.created[0].ID = uuid.New()

	list, total, err := svc.List(ctx, aliceID.String(), false, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, int64(1), list.Unread)

	require.NoError(t, svc.MarkRead(ctx, aliceID.String(), repo.created[0].ID.String()))
	assert.ErrorIs(t, svc.MarkRead(ctx, aliceID.String(), uuid.NewString()), ErrNotFound)
	assert.ErrorIs(t, svc.MarkRead(ctx, "nope", uuid.NewString()), ErrInvalidInput)

	list, _, err = svc.List(ctx, aliceID.String(), true, 1, 20)
	require.NoError(t, err)
	assert.Empty(t, list.Notifications)
	assert.Equal(t, int64(0), list.Unread)
}

func TestNotificationService_StoreFailureIsReturnedToDispatcher(t *testing.T) {
	repo := &fakeNotificationRepo{err: errors.New("disk full")}
	err := NewNotificationService(repo).Notify(context.Background(), eventFor(events.RequestApproved, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REQ-20240115-042")
}

func TestAuditService_Record(t *testing.T) {
	repo := &fakeAuditRepo{}
	svc := NewAuditService(repo)
	ctx := context.Background()

	evt := eventFor(events.RequestRejected, func(r *model.Request) {
		r.Status = model.StatusRejected
		r.RejectionReason = "late"
	})
	require.NoError(t, svc.Record(ctx, evt))

	require.Len(t, repo.entries, 1)
	entry := repo.entries[0]
	assert.Equal(t, model.ActionRequestRejected, entry.Action)
	assert.Equal(t, "REQ-20240115-042", entry.EntityID)
	assert.Equal(t, model.RequestTypeLeave, entry.EntityName)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, evt.ActorID, entry.UserID.String())
	assert.Contains(t, entry.Details, `"rejection_reason":"late"`)

	entry.CreatedAt = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	repo.entries[0] = entry

	logs, total, err := svc.GetAuditLogs(ctx, "REQ-20240115-042", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "System", logs[0].UserName)
	assert.Equal(t, "2024-01-15 10:00:00", logs[0].CreatedAt)
}

func TestAuditService_SystemActor(t *testing.T) {
	repo := &fakeAuditRepo{}
	evt := eventFor(events.RequestSubmitted, nil)
	evt.ActorID = ""

	require.NoError(t, NewAuditService(repo).Record(context.Background(), evt))
	assert.Nil(t, repo.entries[0].UserID)
}
