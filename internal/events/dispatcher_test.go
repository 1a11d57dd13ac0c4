package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"hrportal/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func testRequest() *model.Request {
	return &model.Request{
		ID:     "REQ-20240115-001",
		Status: model.StatusPending,
		Approvers: []model.ApprovalStep{
			{Level: 1, Department: "HR", Role: "hr_admin", Status: model.StatusPending},
		},
	}
}

func TestNew_CopiesApprovalChain(t *testing.T) {
	req := testRequest()
	evt := New(RequestSubmitted, req, "u-1", time.Now())

	req.Approvers[0].Status = model.StatusApproved

	assert.Equal(t, "REQ-20240115-001", evt.RequestID)
	assert.Equal(t, model.StatusPending, evt.Request.Approvers[0].Status)
	assert.NotEmpty(t, evt.ID)
}

func TestDispatch_RunsHandlersInOrder(t *testing.T) {
	d := NewDispatcher(zap.NewNop())
	var order []string

	d.Subscribe("first", func(ctx context.Context, evt *Event) error {
		order = append(order, "first")
		return nil
	}, RequestApproved)
	d.Subscribe("second", func(ctx context.Context, evt *Event) error {
		order = append(order, "second")
		return nil
	}, RequestApproved, RequestRejected)

	require.NoError(t, d.Dispatch(context.Background(), New(RequestApproved, testRequest(), "", time.Now())))
	require.NoError(t, d.Dispatch(context.Background(), New(RequestRejected, testRequest(), "", time.Now())))

	assert.Equal(t, []string{"first", "second", "second"}, order)
}

func TestDispatch_StopsOnError(t *testing.T) {
	d := NewDispatcher(nil)
	called := false

	d.Subscribe("failing", func(ctx context.Context, evt *Event) error {
		return errors.New("boom")
	}, RequestCancelled)
	d.Subscribe("after", func(ctx context.Context, evt *Event) error {
		called = true
		return nil
	}, RequestCancelled)

	err := d.Dispatch(context.Background(), New(RequestCancelled, testRequest(), "", time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failing")
	assert.False(t, called)
}

func TestPublish_IsolatesHandlerFailures(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	d := NewDispatcher(zap.New(core))

	var delivered atomic.Int32
	var wg sync.WaitGroup
	wg.Add(1)

	d.Subscribe("panics", func(ctx context.Context, evt *Event) error {
		panic("observer bug")
	}, RequestSubmitted)
	d.Subscribe("counts", func(ctx context.Context, evt *Event) error {
		defer wg.Done()
		delivered.Add(1)
		return nil
	}, RequestSubmitted)

	ctx, cancel := context.WithCancel(context.Background())
	d.Publish(ctx, New(RequestSubmitted, testRequest(), "", time.Now()))
	cancel()

	wg.Wait()
	require.NoError(t, d.Close())

	assert.Equal(t, int32(1), delivered.Load())
	assert.Equal(t, 1, logs.FilterMessage("Event handler failed").Len())
}

func TestClose(t *testing.T) {
	d := NewDispatcher(nil)
	require.NoError(t, d.Close())
	assert.ErrorIs(t, d.Close(), ErrClosed)
	assert.ErrorIs(t, d.Dispatch(context.Background(), New(RequestUpdated, testRequest(), "", time.Now())), ErrClosed)

	// Publish after close is a logged no-op
	d.Publish(context.Background(), New(RequestUpdated, testRequest(), "", time.Now()))
}
