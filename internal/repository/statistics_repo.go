package repository

import (
	"context"
	"fmt"
	"time"

	"hrportal/internal/model"

	"gorm.io/gorm"
)

type StatisticsRepository interface {
	// CountBy groups requests created in [start, end] by column. Only status,
	// request_type and current_approver are accepted.
	CountBy(ctx context.Context, column string, start, end time.Time, pendingOnly bool) ([]model.GroupCount, error)
}

type statisticsRepository struct {
	db *gorm.DB
}

func NewStatisticsRepository(db *gorm.DB) StatisticsRepository {
	return &statisticsRepository{db: db}
}

var groupableColumns = map[string]bool{
	"status":           true,
	"request_type":     true,
	"current_approver": true,
}

func (r *statisticsRepository) CountBy(ctx context.Context, column string, start, end time.Time, pendingOnly bool) ([]model.GroupCount, error) {
	if !groupableColumns[column] {
		return nil, fmt.Errorf("cannot group requests by %q", column)
	}

	query := GetDB(ctx, r.db).Model(&model.Request{}).
		Select(column+" AS group_key, COUNT(*) AS total").
		Where("created_at >= ? AND created_at <= ?", start, end)
	if pendingOnly {
		query = query.Where("status = ?", model.StatusPending)
	}

	var rows []model.GroupCount
	if err := query.Group(column).Order("total DESC").Order(column).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count requests by %s: %w", column, err)
	}
	return rows, nil
}
