package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"hrportal/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Request{}, &model.Notification{}, &model.AuditLog{}))
	return db
}

var base = time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)

func pendingRequest(id string, requester uuid.UUID, createdAt time.Time) *model.Request {
	return &model.Request{
		ID:          id,
		RequestType: model.RequestTypeLeave,
		RequesterID: requester,
		Department:  "Engineering",
		Title:       "Leave Request",
		RequestData: datatypes.JSON(`{"days":2}`),
		Status:      model.StatusPending,
		Priority:    model.PriorityMedium,
		Approvers: datatypes.JSONSlice[model.ApprovalStep]{
			{Level: 1, Department: "Time Office", Role: "time_office", Name: "Time Office", Status: model.StatusPending},
			{Level: 2, Department: "Engineering", Role: "HOD", Name: "Engineering HOD", Status: model.StatusPending},
		},
		CurrentLevel:    1,
		CurrentApprover: "Time Office",
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
}

func TestRequestRepository_CreateDetectsIDCollision(t *testing.T) {
	repo := NewRequestRepository(newTestDB(t))
	ctx := context.Background()
	owner := uuid.New()

	created, err := repo.Create(ctx, pendingRequest("REQ-20240115-001", owner, base))
	require.NoError(t, err)
	assert.True(t, created)

	other := pendingRequest("REQ-20240115-001", uuid.New(), base)
	other.Title = "Intruder"
	created, err = repo.Create(ctx, other)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := repo.FindByID(ctx, "REQ-20240115-001")
	require.NoError(t, err)
	assert.Equal(t, "Leave Request", got.Title, "existing row must not be overwritten")
	assert.Equal(t, owner, got.RequesterID)
	require.Len(t, got.Approvers, 2)
	assert.Equal(t, "Engineering HOD", got.Approvers[1].Name)
	assert.JSONEq(t, `{"days":2}`, string(got.RequestData))
}

func TestRequestRepository_FindByIDMissing(t *testing.T) {
	repo := NewRequestRepository(newTestDB(t))

	_, err := repo.FindByID(context.Background(), "REQ-20240115-999")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRequestRepository_UpdateIfPending(t *testing.T) {
	repo := NewRequestRepository(newTestDB(t))
	ctx := context.Background()
	_, err := repo.Create(ctx, pendingRequest("REQ-20240115-002", uuid.New(), base))
	require.NoError(t, err)

	ok, err := repo.UpdateIfPending(ctx, "REQ-20240115-002", 2, map[string]interface{}{"current_level": 3})
	require.NoError(t, err)
	assert.False(t, ok, "stale level must not write")

	ok, err = repo.UpdateIfPending(ctx, "REQ-20240115-002", 1, map[string]interface{}{
		"current_level":    2,
		"current_approver": "Engineering",
	})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.UpdateIfPending(ctx, "REQ-20240115-002", 0, map[string]interface{}{"status": model.StatusCancelled})
	require.NoError(t, err)
	assert.True(t, ok, "level 0 matches any level")

	ok, err = repo.UpdateIfPending(ctx, "REQ-20240115-002", 0, map[string]interface{}{"status": model.StatusApproved})
	require.NoError(t, err)
	assert.False(t, ok, "terminal request must not change")

	got, err := repo.FindByID(ctx, "REQ-20240115-002")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)
	assert.Equal(t, 2, got.CurrentLevel)
	assert.Equal(t, "Engineering", got.CurrentApprover)
}

func TestRequestRepository_UpdateFieldsAndDelete(t *testing.T) {
	repo := NewRequestRepository(newTestDB(t))
	ctx := context.Background()
	_, err := repo.Create(ctx, pendingRequest("REQ-20240115-003", uuid.New(), base))
	require.NoError(t, err)

	require.NoError(t, repo.UpdateFields(ctx, "REQ-20240115-003", map[string]interface{}{"title": "Updated"}))
	got, err := repo.FindByID(ctx, "REQ-20240115-003")
	require.NoError(t, err)
	assert.Equal(t, "Updated", got.Title)

	err = repo.UpdateFields(ctx, "REQ-20240115-404", map[string]interface{}{"title": "x"})
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, repo.Delete(ctx, "REQ-20240115-003"))
	_, err = repo.FindByID(ctx, "REQ-20240115-003")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRequestRepository_ListVisibleAndList(t *testing.T) {
	repo := NewRequestRepository(newTestDB(t))
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	for i, r := range []*model.Request{
		pendingRequest("REQ-20240115-010", alice, base),
		pendingRequest("REQ-20240115-011", bob, base.Add(time.Minute)),
		pendingRequest("REQ-20240115-012", alice, base.Add(2*time.Minute)),
	} {
		if i == 1 {
			r.RequestType = model.RequestTypeCanteen
			r.CurrentApprover = "Canteen"
		}
		_, err := repo.Create(ctx, r)
		require.NoError(t, err)
	}

	all, err := repo.ListVisible(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "REQ-20240115-012", all[0].ID, "newest first")

	mine, err := repo.ListVisible(ctx, &alice)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	for _, r := range mine {
		assert.Equal(t, alice, r.RequesterID)
	}

	page, total, err := repo.List(ctx, RequestQuery{CurrentApprover: "Time Office", Page: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, page, 1)
	assert.Equal(t, "REQ-20240115-012", page[0].ID)

	canteen, total, err := repo.List(ctx, RequestQuery{RequestType: model.RequestTypeCanteen, RequesterID: &bob})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, canteen, 1)
}

func TestTransactionManager_RollsBack(t *testing.T) {
	db := newTestDB(t)
	repo := NewRequestRepository(db)
	tx := NewTransactionManager(db)
	ctx := context.Background()

	boom := errors.New("boom")
	err := tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := repo.Create(txCtx, pendingRequest("REQ-20240115-020", uuid.New(), base)); err != nil {
			return err
		}
		return tx.RunInTx(txCtx, func(inner context.Context) error {
			return boom
		})
	})
	assert.ErrorIs(t, err, boom)

	_, err = repo.FindByID(ctx, "REQ-20240115-020")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestNotificationRepository(t *testing.T) {
	repo := NewNotificationRepository(newTestDB(t))
	ctx := context.Background()
	user, other := uuid.New(), uuid.New()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, &model.Notification{
			UserID:    user,
			RequestID: "REQ-20240115-001",
			Title:     "Request Submitted",
			Type:      model.NotificationInfo,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, repo.Create(ctx, &model.Notification{UserID: other, Title: "x", Type: model.NotificationInfo, CreatedAt: base}))

	items, total, err := repo.ListForUser(ctx, user, false, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, items, 2)

	ok, err := repo.MarkRead(ctx, other, items[0].ID)
	require.NoError(t, err)
	assert.False(t, ok, "cannot mark another user's notification")

	ok, err = repo.MarkRead(ctx, user, items[0].ID)
	require.NoError(t, err)
	assert.True(t, ok)

	unread, err := repo.CountUnread(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	n, err := repo.MarkAllRead(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, total, err = repo.ListForUser(ctx, user, true, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestUserAndAuditRepository(t *testing.T) {
	db := newTestDB(t)
	users := NewUserRepository(db)
	audits := NewAuditRepository(db)
	ctx := context.Background()

	u := &model.User{Name: "Alice", Email: "alice@example.com", Password: "x", Role: model.RoleEmployee, Department: "Engineering"}
	require.NoError(t, users.Create(ctx, u))
	require.NotEqual(t, uuid.Nil, u.ID)

	got, err := users.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = users.GetByID(ctx, uuid.NewString())
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, audits.Log(ctx, &model.AuditLog{UserID: &u.ID, Action: model.ActionRequestSubmitted, EntityID: "REQ-20240115-001", CreatedAt: base}))
	require.NoError(t, audits.Log(ctx, &model.AuditLog{Action: model.ActionRequestApproved, EntityID: "REQ-20240115-001", CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, audits.Log(ctx, &model.AuditLog{Action: model.ActionRequestSubmitted, EntityID: "REQ-20240115-002", CreatedAt: base}))

	logs, total, err := audits.List(ctx, "REQ-20240115-001", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, logs, 2)
	assert.Equal(t, model.ActionRequestApproved, logs[0].Action)
	require.NotNil(t, logs[1].User)
	assert.Equal(t, "Alice", logs[1].User.Name)
}

func TestStatisticsRepository_CountBy(t *testing.T) {
	db := newTestDB(t)
	requests := NewRequestRepository(db)
	stats := NewStatisticsRepository(db)
	ctx := context.Background()

	approved := pendingRequest("REQ-20240115-031", uuid.New(), base)
	approved.Status = model.StatusApproved
	canteen := pendingRequest("REQ-20240115-032", uuid.New(), base)
	canteen.RequestType = model.RequestTypeCanteen
	canteen.CurrentApprover = "Canteen"
	old := pendingRequest("REQ-20230101-001", uuid.New(), base.AddDate(-1, 0, 0))

	for _, r := range []*model.Request{pendingRequest("REQ-20240115-030", uuid.New(), base), approved, canteen, old} {
		_, err := requests.Create(ctx, r)
		require.NoError(t, err)
	}

	start, end := base.Add(-time.Hour), base.Add(time.Hour)

	byStatus, err := stats.CountBy(ctx, "status", start, end, false)
	require.NoError(t, err)
	assert.Equal(t, []model.GroupCount{{Key: model.StatusPending, Count: 2}, {Key: model.StatusApproved, Count: 1}}, byStatus)

	pending, err := stats.CountBy(ctx, "current_approver", start, end, true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []model.GroupCount{{Key: "Canteen", Count: 1}, {Key: "Time Office", Count: 1}}, pending)

	_, err = stats.CountBy(ctx, "title; DROP TABLE requests", start, end, false)
	assert.Error(t, err)
}
