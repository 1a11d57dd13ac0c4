package service

import (
	"context"
	"fmt"
	"time"

	"hrportal/internal/model"
	"hrportal/internal/repository"
)

type StatisticsService interface {
	GetStatistics(ctx context.Context, startDate, endDate time.Time) (model.RequestStatistics, error)
}

type statisticsService struct {
	repo repository.StatisticsRepository
}

func NewStatisticsService(repo repository.StatisticsRepository) StatisticsService {
	return &statisticsService{repo: repo}
}

// GetStatistics counts requests created within the range by status and type, and the
// pending ones by the department they wait on.
func (s *statisticsService) GetStatistics(ctx context.Context, startDate, endDate time.Time) (model.RequestStatistics, error) {
	stats := model.RequestStatistics{
		TimeRangeStartDate: startDate,
		TimeRangeEndDate:   endDate,
	}
	if endDate.Before(startDate) {
		return stats, fmt.Errorf("%w: end_date is before start_date", ErrInvalidInput)
	}

	var err error
	if stats.ByStatus, err = s.repo.CountBy(ctx, "status", startDate, endDate, false); err != nil {
		return stats, err
	}
	if stats.ByType, err = s.repo.CountBy(ctx, "request_type", startDate, endDate, false); err != nil {
		return stats, err
	}
	if stats.PendingByApprover, err = s.repo.CountBy(ctx, "current_approver", startDate, endDate, true); err != nil {
		return stats, err
	}

	for _, row := range stats.ByStatus {
		stats.Total += row.Count
	}
	return stats, nil
}
