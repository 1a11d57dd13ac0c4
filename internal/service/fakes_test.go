package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"hrportal/internal/events"
	"hrportal/internal/model"
	"hrportal/internal/repository"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// fakeRequestRepo is an in-memory RequestRepository honoring the pending/level guard
type fakeRequestRepo struct {
	mu   sync.Mutex
	rows map[string]model.Request

	// afterFind, when set, runs after every FindByID read outside the lock
	afterFind func()
	// failWith, when set, is returned by every call
	failWith error
}

func newFakeRequestRepo() *fakeRequestRepo {
	return &fakeRequestRepo{rows: map[string]model.Request{}}
}

func cloneRequest(r model.Request) model.Request {
	r.Approvers = r.CloneSteps()
	if r.RequestData != nil {
		r.RequestData = append(datatypes.JSON(nil), r.RequestData...)
	}
	return r
}

func (f *fakeRequestRepo) put(r model.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[r.ID] = cloneRequest(r)
}

func (f *fakeRequestRepo) get(id string) model.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneRequest(f.rows[id])
}

func (f *fakeRequestRepo) Create(ctx context.Context, req *model.Request) (bool, error) {
	if f.failWith != nil {
		return false, f.failWith
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, taken := f.rows[req.ID]; taken {
		return false, nil
	}
	f.rows[req.ID] = cloneRequest(*req)
	return true, nil
}

func (f *fakeRequestRepo) FindByID(ctx context.Context, id string) (*model.Request, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.mu.Lock()
	row, ok := f.rows[id]
	f.mu.Unlock()
	if !ok {
		return nil, repository.ErrNotFound
	}
	if f.afterFind != nil {
		f.afterFind()
	}
	out := cloneRequest(row)
	return &out, nil
}

func (f *fakeRequestRepo) UpdateIfPending(ctx context.Context, id string, expectedLevel int, fields map[string]interface{}) (bool, error) {
	if f.failWith != nil {
		return false, f.failWith
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok || row.Status != model.StatusPending {
		return false, nil
	}
	if expectedLevel > 0 && row.CurrentLevel != expectedLevel {
		return false, nil
	}
	applyFakeFields(&row, fields)
	f.rows[id] = row
	return true, nil
}

func (f *fakeRequestRepo) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	applyFakeFields(&row, fields)
	f.rows[id] = row
	return nil
}

func (f *fakeRequestRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	return nil
}

func (f *fakeRequestRepo) ListVisible(ctx context.Context, requesterID *uuid.UUID) ([]model.Request, error) {
	all, _, err := f.List(ctx, repository.RequestQuery{RequesterID: requesterID, Limit: 1 << 20})
	return all, err
}

func (f *fakeRequestRepo) List(ctx context.Context, q repository.RequestQuery) ([]model.Request, int64, error) {
	if f.failWith != nil {
		return nil, 0, f.failWith
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []model.Request
	for _, r := range f.rows {
		if q.RequesterID != nil && r.RequesterID != *q.RequesterID {
			continue
		}
		if q.Status != "" && r.Status != q.Status {
			continue
		}
		if q.RequestType != "" && r.RequestType != q.RequestType {
			continue
		}
		if q.CurrentApprover != "" && r.CurrentApprover != q.CurrentApprover {
			continue
		}
		out = append(out, cloneRequest(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	total := int64(len(out))
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	page := q.Page
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(out) {
		return []model.Request{}, total, nil
	}
	end := start + limit
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], total, nil
}

func applyFakeFields(r *model.Request, fields map[string]interface{}) {
	for k, v := range fields {
		switch k {
		case "approvers":
			steps := v.(datatypes.JSONSlice[model.ApprovalStep])
			r.Approvers = append(datatypes.JSONSlice[model.ApprovalStep](nil), steps...)
		case "status":
			r.Status = v.(string)
		case "current_level":
			r.CurrentLevel = v.(int)
		case "current_approver":
			r.CurrentApprover = v.(string)
		case "rejection_reason":
			r.RejectionReason = v.(string)
		case "cancelled_at":
			at := v.(time.Time)
			r.CancelledAt = &at
		case "updated_at":
			r.UpdatedAt = v.(time.Time)
		case "title":
			r.Title = v.(string)
		case "description":
			r.Description = v.(string)
		case "priority":
			r.Priority = v.(string)
		case "request_data":
			r.RequestData = v.(datatypes.JSON)
		default:
			panic("unexpected column " + k)
		}
	}
}

// fakeTx runs fn directly
type fakeTx struct{}

func (fakeTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

type fakeIdentity struct {
	users map[string]*Requester
}

func (f *fakeIdentity) CurrentRequester(ctx context.Context, userID string) (*Requester, error) {
	r, ok := f.users[userID]
	if !ok {
		return nil, ErrRequesterUnresolved
	}
	copied := *r
	return &copied, nil
}

// recordingPublisher captures published events synchronously
type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, evt *events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

func mustJSON(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
