package service

import (
	"testing"

	"hrportal/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteFor_ChainIntegrity(t *testing.T) {
	types := append(RoutedTypes(), "unknown_type", "")

	for _, rt := range types {
		for _, dept := range []string{"Engineering", ""} {
			steps := RouteFor(rt, RoutingContext{RequesterDepartment: dept})
			require.NotEmpty(t, steps, "type %q", rt)

			for i, step := range steps {
				assert.Equal(t, i+1, step.Level, "type %q step %d", rt, i)
				assert.Equal(t, model.StatusPending, step.Status)
				assert.NotEmpty(t, step.Department)
				assert.Nil(t, step.ActionDate)
			}
		}
	}
}

func TestRouteFor_Leave(t *testing.T) {
	steps := RouteFor(model.RequestTypeLeave, RoutingContext{RequesterDepartment: "Engineering"})

	require.Len(t, steps, 2)
	assert.Equal(t, "Time Office", steps[0].Department)
	assert.Equal(t, "time_office", steps[0].Role)
	assert.Equal(t, "Engineering", steps[1].Department)
	assert.Equal(t, "HOD", steps[1].Role)
	assert.Equal(t, "Engineering HOD", steps[1].Name)
}

func TestRouteFor_Canteen(t *testing.T) {
	steps := RouteFor(model.RequestTypeCanteen, RoutingContext{RequesterDepartment: "Engineering"})

	require.Len(t, steps, 1)
	assert.Equal(t, model.ApprovalStep{
		Level:      1,
		Department: "Canteen",
		Role:       "canteen_admin",
		Name:       "Canteen",
		Status:     model.StatusPending,
	}, steps[0])
}

func TestRouteFor_UnknownTypeFallsBackToAdmin(t *testing.T) {
	steps := RouteFor("marketing_campaign", RoutingContext{RequesterDepartment: "Sales"})

	require.Len(t, steps, 1)
	assert.Equal(t, "Admin", steps[0].Department)
	assert.Equal(t, "Admin", steps[0].Role)
}

func TestRouteFor_EmptyRequesterDepartment(t *testing.T) {
	steps := RouteFor(model.RequestTypeGatePass, RoutingContext{RequesterDepartment: "  "})

	require.Len(t, steps, 2)
	assert.Equal(t, "Admin", steps[0].Department)
	assert.Equal(t, "Admin HOD", steps[0].Name)
	assert.Equal(t, "Security", steps[1].Department)
}

func TestRouteFor_AliasesShareChains(t *testing.T) {
	rc := RoutingContext{RequesterDepartment: "Ops"}
	assert.Equal(t, RouteFor(model.RequestTypeSIM, rc), RouteFor(model.RequestTypeSIMCard, rc))
	assert.Equal(t, RouteFor(model.RequestTypeGuestHouse, rc), RouteFor(model.RequestTypeGuestHouse2, rc))
	assert.Equal(t, RouteFor(model.RequestTypeGeneral, rc), RouteFor(model.RequestTypeWelfare, rc))
}

func TestRouteFor_ReturnsIndependentSlices(t *testing.T) {
	rc := RoutingContext{RequesterDepartment: "Ops"}
	first := RouteFor(model.RequestTypeDocument, rc)
	first[0].Status = model.StatusApproved

	second := RouteFor(model.RequestTypeDocument, rc)
	assert.Equal(t, model.StatusPending, second[0].Status)
}
