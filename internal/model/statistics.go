package model

import (
	"time"
)

// RequestStatistics summarises the requests submitted in a time range
type RequestStatistics struct {
	Total              int64        `json:"total"`
	ByStatus           []GroupCount `json:"by_status"`
	ByType             []GroupCount `json:"by_type"`
	PendingByApprover  []GroupCount `json:"pending_by_approver"`
	TimeRangeStartDate time.Time    `json:"time_range_start_date"`
	TimeRangeEndDate   time.Time    `json:"time_range_end_date"`
}

// GroupCount is one row of a GROUP BY over requests
type GroupCount struct {
	Key   string `gorm:"column:group_key" json:"key"`
	Count int64  `gorm:"column:total" json:"count"`
}
