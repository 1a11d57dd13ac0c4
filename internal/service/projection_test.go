package service

import (
	"context"
	"fmt"
	"testing"

	"hrportal/internal/config"
	"hrportal/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requestsOfTypes(types ...string) []model.Request {
	out := make([]model.Request, 0, len(types))
	for i, t := range types {
		out = append(out, model.Request{
			ID:          fmt.Sprintf("REQ-20240115-%03d", i),
			RequestType: t,
			Title:       "title " + t,
			Status:      model.StatusPending,
		})
	}
	return out
}

func TestProject_Fidelity(t *testing.T) {
	input := requestsOfTypes(
		"leave", "sim_card", "canteen", "guest_house", "leave", "general",
		"sim", "guesthouse", "welfare", "marketing", "leave", "bus",
	)

	p := Project(input)

	seen := map[string]int{}
	for group, bucket := range p.Buckets {
		lastIndex := -1
		for _, r := range bucket {
			seen[r.ID]++
			assert.Equal(t, group, GroupFor(r.RequestType), "request %s in bucket %s", r.ID, group)

			idx := -1
			for i := range input {
				if input[i].ID == r.ID {
					idx = i
				}
			}
			assert.Greater(t, idx, lastIndex, "bucket %s keeps input order", group)
			lastIndex = idx
		}
	}

	for _, r := range input {
		assert.Equal(t, 1, seen[r.ID], "request %s appears exactly once", r.ID)
	}

	assert.Equal(t, input, p.Requests)
}

func TestProject_AliasGroups(t *testing.T) {
	p := Project(requestsOfTypes("sim", "sim_card", "guesthouse", "guest_house", "general", "welfare"))

	assert.Len(t, p.Bucket(GroupSIM), 2)
	assert.Len(t, p.Bucket(GroupGuestHouse), 2)
	assert.Len(t, p.Bucket(GroupWelfare), 2)
	assert.Empty(t, p.Bucket(model.RequestTypeSIMCard))
	assert.Empty(t, p.Bucket(model.RequestTypeGeneral))
}

func TestProject_EmptyAndUnknown(t *testing.T) {
	p := Project(nil)
	assert.Empty(t, p.Requests)
	assert.NotNil(t, p.Requests)
	for _, g := range projectionGroups {
		bucket, ok := p.Buckets[g]
		assert.True(t, ok, g)
		assert.Empty(t, bucket)
	}

	p = Project(requestsOfTypes("marketing"))
	require.Len(t, p.Bucket("marketing"), 1)
	assert.Equal(t, "title marketing", p.Bucket("marketing")[0].Title)
	assert.Empty(t, p.Bucket("no_such_group"))
}

func TestProject_DoesNotMutateInput(t *testing.T) {
	input := requestsOfTypes("leave", "asset")
	input[0].Approvers = []model.ApprovalStep{{Level: 1, Department: "Time Office", Status: model.StatusPending}}

	p := Project(input)
	p.Buckets["leave"][0].Title = "changed"

	assert.Equal(t, "title leave", input[0].Title)
	assert.Equal(t, input[0].Approvers, p.Buckets["leave"][0].Approvers)
}

func TestProjectionService_ScopesByViewer(t *testing.T) {
	env := newTestEnv(t, config.ApprovalConfig{})
	ctx := context.Background()

	env.submit(t, model.RequestTypeLeave, nil)
	env.submit(t, model.RequestTypeSIMCard, nil)
	_, err := env.svc.Submit(ctx, bobID.String(), SubmitRequestDTO{RequestType: model.RequestTypeLeave})
	require.NoError(t, err)

	svc := NewProjectionService(env.repo, env.svc.cfg)

	mine, err := svc.Snapshot(ctx, alice())
	require.NoError(t, err)
	assert.Len(t, mine.Requests, 2)
	assert.Len(t, mine.Bucket(model.RequestTypeLeave), 1)
	assert.Len(t, mine.Bucket(GroupSIM), 1)

	all, err := svc.Snapshot(ctx, Viewer{UserID: uuid.NewString(), Role: "admin"})
	require.NoError(t, err)
	assert.Len(t, all.Requests, 3)
	assert.Len(t, all.Bucket(model.RequestTypeLeave), 2)

	_, err = svc.Snapshot(ctx, Viewer{UserID: "not-a-uuid", Role: "employee"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
