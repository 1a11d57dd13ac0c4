package service

import (
	"time"

	"hrportal/internal/events"
	"hrportal/internal/model"
)

// transition is a planned status change: the columns to write, the guard the write is
// conditioned on and the request as it will look once the write lands.
type transition struct {
	event         events.Type
	expectedLevel int
	fields        map[string]interface{}
	next          *model.Request
}

// planApprove approves the step at the current level and either advances to the next
// level or finalizes the request.
func planApprove(req *model.Request, actorID, comment string, now time.Time) (*transition, error) {
	if req.Status != model.StatusPending {
		return nil, ErrNotPending
	}
	idx := req.StepAt(req.CurrentLevel)
	if idx < 0 {
		return nil, ErrChainCorrupt
	}

	steps := req.CloneSteps()
	stamp := now
	steps[idx].Status = model.StatusApproved
	steps[idx].ActionDate = &stamp
	steps[idx].ActedBy = actorID
	if comment != "" {
		steps[idx].Comments = comment
	}

	next := *req
	next.Approvers = steps
	next.UpdatedAt = now

	t := &transition{
		expectedLevel: req.CurrentLevel,
		fields: map[string]interface{}{
			"approvers":  steps,
			"updated_at": now,
		},
		next: &next,
	}

	if nextIdx := req.StepAt(req.CurrentLevel + 1); nextIdx >= 0 {
		next.CurrentLevel = req.CurrentLevel + 1
		next.CurrentApprover = steps[nextIdx].Department
		t.fields["current_level"] = next.CurrentLevel
		t.fields["current_approver"] = next.CurrentApprover
		t.event = events.RequestAdvanced
		return t, nil
	}

	next.Status = model.StatusApproved
	t.fields["status"] = model.StatusApproved
	t.event = events.RequestApproved
	return t, nil
}

// planReject rejects the whole request at the current level. Later steps stay pending.
func planReject(req *model.Request, actorID, reason string, now time.Time) (*transition, error) {
	if req.Status != model.StatusPending {
		return nil, ErrNotPending
	}
	idx := req.StepAt(req.CurrentLevel)
	if idx < 0 {
		return nil, ErrChainCorrupt
	}

	steps := req.CloneSteps()
	stamp := now
	steps[idx].Status = model.StatusRejected
	steps[idx].Comments = reason
	steps[idx].ActionDate = &stamp
	steps[idx].ActedBy = actorID

	next := *req
	next.Approvers = steps
	next.Status = model.StatusRejected
	next.RejectionReason = reason
	next.UpdatedAt = now

	return &transition{
		event:         events.RequestRejected,
		expectedLevel: req.CurrentLevel,
		fields: map[string]interface{}{
			"approvers":        steps,
			"status":           model.StatusRejected,
			"rejection_reason": reason,
			"updated_at":       now,
		},
		next: &next,
	}, nil
}

// planCancel cancels a pending request at whatever level it has reached
func planCancel(req *model.Request, now time.Time) (*transition, error) {
	if req.Status != model.StatusPending {
		return nil, ErrNotPending
	}

	cancelledAt := now
	next := *req
	next.Approvers = req.CloneSteps()
	next.Status = model.StatusCancelled
	next.CancelledAt = &cancelledAt
	next.UpdatedAt = now

	return &transition{
		event: events.RequestCancelled,
		// Any level: cancel only races against other status changes.
		expectedLevel: 0,
		fields: map[string]interface{}{
			"status":       model.StatusCancelled,
			"cancelled_at": cancelledAt,
			"updated_at":   now,
		},
		next: &next,
	}, nil
}

// planFinalize approves every step still pending from the current level on. It backs a
// status=approved override on the generic update path.
func planFinalize(req *model.Request, actorID string, now time.Time) (*transition, error) {
	if req.Status != model.StatusPending {
		return nil, ErrNotPending
	}
	if req.StepAt(req.CurrentLevel) < 0 {
		return nil, ErrChainCorrupt
	}

	steps := req.CloneSteps()
	for i := range steps {
		if steps[i].Level >= req.CurrentLevel && steps[i].Status == model.StatusPending {
			stamp := now
			steps[i].Status = model.StatusApproved
			steps[i].ActionDate = &stamp
			steps[i].ActedBy = actorID
		}
	}

	next := *req
	next.Approvers = steps
	next.Status = model.StatusApproved
	next.UpdatedAt = now

	return &transition{
		event:         events.RequestApproved,
		expectedLevel: req.CurrentLevel,
		fields: map[string]interface{}{
			"approvers":  steps,
			"status":     model.StatusApproved,
			"updated_at": now,
		},
		next: &next,
	}, nil
}
