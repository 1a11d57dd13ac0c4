package repository

import (
	"context"
	"errors"

	"hrportal/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a request id does not resolve to a row
var ErrNotFound = errors.New("record not found")

// RequestQuery narrows a paginated request listing. Zero values mean "no filter".
type RequestQuery struct {
	RequesterID     *uuid.UUID // nil = every requester
	Status          string
	RequestType     string
	CurrentApprover string
	Page            int
	Limit           int
}

// RequestRepository is the document-store adapter for the requests collection
type RequestRepository interface {
	// Create inserts req unless its id is taken; created is false on an id collision.
	Create(ctx context.Context, req *model.Request) (created bool, err error)
	FindByID(ctx context.Context, id string) (*model.Request, error)
	// UpdateIfPending applies fields only while the row is still pending and, when
	// expectedLevel > 0, still at that level. It reports whether a row was written.
	UpdateIfPending(ctx context.Context, id string, expectedLevel int, fields map[string]interface{}) (bool, error)
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, id string) error
	// ListVisible returns every request visible to the scope, newest first.
	ListVisible(ctx context.Context, requesterID *uuid.UUID) ([]model.Request, error)
	List(ctx context.Context, q RequestQuery) ([]model.Request, int64, error)
}

type requestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

func (r *requestRepository) Create(ctx context.Context, req *model.Request) (bool, error) {
	res := GetDB(ctx, r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(req)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *requestRepository) FindByID(ctx context.Context, id string) (*model.Request, error) {
	var req model.Request
	if err := GetDB(ctx, r.db).First(&req, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) UpdateIfPending(ctx context.Context, id string, expectedLevel int, fields map[string]interface{}) (bool, error) {
	query := GetDB(ctx, r.db).Model(&model.Request{}).
		Where("id = ? AND status = ?", id, model.StatusPending)
	if expectedLevel > 0 {
		query = query.Where("current_level = ?", expectedLevel)
	}

	res := query.Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *requestRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	res := GetDB(ctx, r.db).Model(&model.Request{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *requestRepository) Delete(ctx context.Context, id string) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Request{}).Error
}

func (r *requestRepository) ListVisible(ctx context.Context, requesterID *uuid.UUID) ([]model.Request, error) {
	var requests []model.Request

	query := GetDB(ctx, r.db).Model(&model.Request{})
	if requesterID != nil {
		query = query.Where("requester_id = ?", *requesterID)
	}
	if err := query.Order("created_at DESC").Order("id DESC").Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *requestRepository) List(ctx context.Context, q RequestQuery) ([]model.Request, int64, error) {
	var requests []model.Request
	var total int64

	filtered := func() *gorm.DB {
		query := GetDB(ctx, r.db).Model(&model.Request{})
		if q.RequesterID != nil {
			query = query.Where("requester_id = ?", *q.RequesterID)
		}
		if q.Status != "" {
			query = query.Where("status = ?", q.Status)
		}
		if q.RequestType != "" {
			query = query.Where("request_type = ?", q.RequestType)
		}
		if q.CurrentApprover != "" {
			query = query.Where("current_approver = ?", q.CurrentApprover)
		}
		return query
	}

	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit := q.Page, q.Limit
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	offset := (page - 1) * limit
	if err := filtered().Order("created_at DESC").Order("id DESC").Offset(offset).Limit(limit).Find(&requests).Error; err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}
