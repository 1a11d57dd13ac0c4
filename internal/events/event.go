package events

import (
	"time"

	"hrportal/internal/model"

	"github.com/google/uuid"
)

// Type identifies a request lifecycle event
type Type string

const (
	RequestSubmitted Type = "request.submitted"
	RequestAdvanced  Type = "request.advanced"
	RequestApproved  Type = "request.approved"
	RequestRejected  Type = "request.rejected"
	RequestCancelled Type = "request.cancelled"
	RequestUpdated   Type = "request.updated"
)

// AllTypes lists every lifecycle event, used by observers that want all of them
var AllTypes = []Type{
	RequestSubmitted,
	RequestAdvanced,
	RequestApproved,
	RequestRejected,
	RequestCancelled,
	RequestUpdated,
}

// Event is emitted after a request change has been committed
type Event struct {
	ID         string        `json:"id"`
	Type       Type          `json:"type"`
	RequestID  string        `json:"request_id"`
	ActorID    string        `json:"actor_id,omitempty"`
	Request    model.Request `json:"request"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// New builds an event carrying a copy of the committed request
func New(t Type, req *model.Request, actorID string, at time.Time) *Event {
	snapshot := *req
	snapshot.Approvers = req.CloneSteps()
	return &Event{
		ID:         uuid.NewString(),
		Type:       t,
		RequestID:  req.ID,
		ActorID:    actorID,
		Request:    snapshot,
		OccurredAt: at,
	}
}
