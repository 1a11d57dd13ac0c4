package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Request type tags. The set is open-ended at the storage level; unknown tags are
// routed to the default Admin step.
const (
	RequestTypeLeave       = "leave"
	RequestTypeGatePass    = "gate_pass"
	RequestTypeResignation = "resignation"
	RequestTypeDocument    = "document"
	RequestTypeAsset       = "asset"
	RequestTypeSIM         = "sim"
	RequestTypeSIMCard     = "sim_card"
	RequestTypeTransport   = "transport"
	RequestTypeBus         = "bus"
	RequestTypeParking     = "parking"
	RequestTypeUniform     = "uniform"
	RequestTypeCanteen     = "canteen"
	RequestTypeGuestHouse  = "guesthouse"
	RequestTypeGuestHouse2 = "guest_house"
	RequestTypeWelfare     = "welfare"
	RequestTypeGeneral     = "general"
	RequestTypeLoan        = "loan"
	RequestTypeMRF         = "mrf"
	RequestTypeJF          = "jf"
	RequestTypeInterview   = "interview"
)

// Request status values
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
)

// Priority values (informational only)
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// ApprovalStep is one level of a request's approval chain. Steps are stored inline with
// their request and are never shared.
type ApprovalStep struct {
	Level      int        `json:"level"`
	Department string     `json:"department"`
	Role       string     `json:"role"`
	Name       string     `json:"name"`
	Status     string     `json:"status"` // pending, approved, rejected
	Comments   string     `json:"comments,omitempty"`
	ActionDate *time.Time `json:"action_date,omitempty"`
	ActedBy    string     `json:"acted_by,omitempty"`
}

// Request is the unified work item for every employee-initiated ask.
// The approval chain is frozen at creation; CurrentLevel points at the step awaiting action.
type Request struct {
	ID              string                           `gorm:"type:varchar(20);primaryKey" json:"id"` // REQ-YYYYMMDD-XXX
	RequestType     string                           `gorm:"type:varchar(30);not null;index" json:"request_type"`
	RequesterID     uuid.UUID                        `gorm:"type:uuid;not null;index" json:"requester_id"`
	RequesterName   string                           `gorm:"type:varchar(255)" json:"requester_name"`
	EmployeeID      string                           `gorm:"type:varchar(50)" json:"employee_id"`
	Department      string                           `gorm:"type:varchar(100);index" json:"department"`
	Title           string                           `gorm:"type:varchar(255)" json:"title"`
	Description     string                           `gorm:"type:text" json:"description"`
	RequestData     datatypes.JSON                   `json:"request_data"`
	Status          string                           `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Priority        string                           `gorm:"type:varchar(10);not null;default:'medium'" json:"priority"`
	Approvers       datatypes.JSONSlice[ApprovalStep] `json:"approvers"`
	CurrentLevel    int                              `gorm:"not null;default:1" json:"current_level"`
	CurrentApprover string                           `gorm:"type:varchar(100);index" json:"current_approver"`
	RejectionReason string                           `gorm:"type:text" json:"rejection_reason,omitempty"`
	CancelledAt     *time.Time                       `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time                        `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time                        `json:"updated_at"`
}

// IsTerminal reports whether no further transition may leave the current status.
func (r *Request) IsTerminal() bool {
	return r.Status == StatusApproved || r.Status == StatusRejected || r.Status == StatusCancelled
}

// StepAt returns the index of the step with the given level, or -1.
func (r *Request) StepAt(level int) int {
	for i := range r.Approvers {
		if r.Approvers[i].Level == level {
			return i
		}
	}
	return -1
}

// CloneSteps returns a copy of the approval chain safe to mutate.
func (r *Request) CloneSteps() datatypes.JSONSlice[ApprovalStep] {
	steps := make(datatypes.JSONSlice[ApprovalStep], len(r.Approvers))
	copy(steps, r.Approvers)
	return steps
}

// IsValidStatus reports whether s is one of the request status values.
func IsValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// IsValidPriority reports whether p is one of the priority values.
func IsValidPriority(p string) bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}
