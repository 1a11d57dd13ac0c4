package service

import (
	"strings"

	"hrportal/internal/model"
)

const (
	defaultDepartment = "Admin"
	hodRole           = "HOD"
)

// RoutingContext carries the requester data department-relative steps resolve against
type RoutingContext struct {
	RequesterDepartment string
}

// StepTemplate describes one level of a chain. When RequesterDepartment is set the step
// targets the head of the requester's own department and Department/Name are ignored.
type StepTemplate struct {
	Department          string
	Role                string
	Name                string
	RequesterDepartment bool
}

// ChainTemplate is the ordered list of steps for a request type
type ChainTemplate []StepTemplate

var (
	hodStep       = StepTemplate{Role: hodRole, RequesterDepartment: true}
	hrStep        = StepTemplate{Department: "HR", Role: "hr_admin", Name: "HR"}
	itStep        = StepTemplate{Department: "IT", Role: "it_admin", Name: "IT"}
	transportStep = StepTemplate{Department: "Transport", Role: "transport_admin", Name: "Transport"}
	adminStep     = StepTemplate{Department: "Admin", Role: "admin", Name: "Admin"}
)

// routingTable maps a request type to its approval chain
var routingTable = map[string]ChainTemplate{
	model.RequestTypeLeave: {
		{Department: "Time Office", Role: "time_office", Name: "Time Office"},
		hodStep,
	},
	model.RequestTypeGatePass: {
		hodStep,
		{Department: "Security", Role: "security_admin", Name: "Security"},
	},
	model.RequestTypeResignation: {hodStep, hrStep},
	model.RequestTypeLoan: {
		hodStep,
		{Department: "Accounts", Role: "accounts_admin", Name: "Accounts"},
	},
	model.RequestTypeMRF: {hodStep, hrStep},

	model.RequestTypeDocument:  {hrStep},
	model.RequestTypeJF:        {hrStep},
	model.RequestTypeInterview: {hrStep},
	model.RequestTypeWelfare:   {hrStep},
	model.RequestTypeGeneral:   {hrStep},

	model.RequestTypeAsset:   {itStep},
	model.RequestTypeSIM:     {itStep},
	model.RequestTypeSIMCard: {itStep},

	model.RequestTypeTransport: {transportStep},
	model.RequestTypeBus:       {transportStep},
	model.RequestTypeParking:   {transportStep},

	model.RequestTypeUniform: {{Department: "Store", Role: "store_admin", Name: "Store"}},
	model.RequestTypeCanteen: {{Department: "Canteen", Role: "canteen_admin", Name: "Canteen"}},

	model.RequestTypeGuestHouse:  {adminStep},
	model.RequestTypeGuestHouse2: {adminStep},
}

// fallbackChain is used for request types missing from the table
var fallbackChain = ChainTemplate{{Department: "Admin", Role: "Admin", Name: "Admin"}}

// RouteFor returns a fresh approval chain for requestType. Levels run 1..N and every
// step starts pending. It never fails: unknown types get the single Admin step.
func RouteFor(requestType string, rc RoutingContext) []model.ApprovalStep {
	tmpl, ok := routingTable[requestType]
	if !ok {
		tmpl = fallbackChain
	}

	steps := make([]model.ApprovalStep, 0, len(tmpl))
	for i, st := range tmpl {
		step := model.ApprovalStep{
			Level:      i + 1,
			Department: st.Department,
			Role:       st.Role,
			Name:       st.Name,
			Status:     model.StatusPending,
		}
		if st.RequesterDepartment {
			dept := strings.TrimSpace(rc.RequesterDepartment)
			if dept == "" {
				dept = defaultDepartment
			}
			step.Department = dept
			step.Name = dept + " " + hodRole
		}
		steps = append(steps, step)
	}
	return steps
}

// RoutedTypes lists the request types with an explicit chain
func RoutedTypes() []string {
	types := make([]string, 0, len(routingTable))
	for t := range routingTable {
		types = append(types, t)
	}
	return types
}
