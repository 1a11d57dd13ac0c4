package service

import (
	"context"
	"fmt"

	"hrportal/internal/config"
	"hrportal/internal/model"
	"hrportal/internal/repository"
)

// Group keys of the per-domain views. Most are the request type itself.
const (
	GroupSIM        = model.RequestTypeSIM
	GroupGuestHouse = model.RequestTypeGuestHouse
	GroupWelfare    = model.RequestTypeWelfare
)

// projectionGroups lists the recognized groups in display order
var projectionGroups = []string{
	model.RequestTypeLeave,
	model.RequestTypeGatePass,
	model.RequestTypeResignation,
	model.RequestTypeDocument,
	model.RequestTypeAsset,
	GroupSIM,
	model.RequestTypeTransport,
	model.RequestTypeBus,
	model.RequestTypeParking,
	model.RequestTypeUniform,
	model.RequestTypeCanteen,
	GroupGuestHouse,
	GroupWelfare,
	model.RequestTypeLoan,
	model.RequestTypeMRF,
	model.RequestTypeJF,
	model.RequestTypeInterview,
}

// typeAliases folds alias request types into their group
var typeAliases = map[string]string{
	model.RequestTypeSIMCard:     GroupSIM,
	model.RequestTypeGuestHouse2: GroupGuestHouse,
	model.RequestTypeGeneral:     GroupWelfare,
}

// GroupFor returns the projection bucket a request type lands in
func GroupFor(requestType string) string {
	if g, ok := typeAliases[requestType]; ok {
		return g
	}
	return requestType
}

// Projection is the per-domain view of a request set. Every recognized group is present,
// possibly empty; unrecognized types get a bucket of their own.
type Projection struct {
	Requests []model.Request            `json:"requests"`
	Buckets  map[string][]model.Request `json:"buckets"`
}

// Bucket returns the requests of one group in input order
func (p Projection) Bucket(group string) []model.Request {
	if b, ok := p.Buckets[group]; ok {
		return b
	}
	return []model.Request{}
}

// Project splits requests into their groups. Order within each bucket follows the input
// and the requests themselves are passed through untouched.
func Project(requests []model.Request) Projection {
	buckets := make(map[string][]model.Request, len(projectionGroups))
	for _, g := range projectionGroups {
		buckets[g] = []model.Request{}
	}

	for _, r := range requests {
		g := GroupFor(r.RequestType)
		buckets[g] = append(buckets[g], r)
	}

	all := requests
	if all == nil {
		all = []model.Request{}
	}
	return Projection{Requests: all, Buckets: buckets}
}

// --- Service ---

// ProjectionService builds viewer-scoped snapshots for the REST view and websocket pushes
type ProjectionService interface {
	Snapshot(ctx context.Context, viewer Viewer) (Projection, error)
}

type projectionService struct {
	repo repository.RequestRepository
	cfg  config.ApprovalConfig
}

func NewProjectionService(repo repository.RequestRepository, cfg config.ApprovalConfig) ProjectionService {
	return &projectionService{repo: repo, cfg: cfg}
}

// Snapshot loads everything the viewer may see, newest first. Admin roles see every
// request; everybody else sees their own.
func (s *projectionService) Snapshot(ctx context.Context, viewer Viewer) (Projection, error) {
	scope, err := viewerScope(s.cfg, viewer)
	if err != nil {
		return Projection{}, err
	}

	requests, err := s.repo.ListVisible(ctx, scope)
	if err != nil {
		return Projection{}, fmt.Errorf("failed to load requests: %w", err)
	}
	return Project(requests), nil
}
