package service

import (
	"context"
	"errors"
	"fmt"

	"hrportal/internal/repository"

	"github.com/google/uuid"
)

// Requester is the submitting user as known at submission time
type Requester struct {
	ID         uuid.UUID
	Name       string
	Department string
	EmployeeID string
	Role       string
}

// Viewer is the authenticated caller of a request operation
type Viewer struct {
	UserID     string
	Role       string
	Department string
}

// IdentityProvider resolves the requester snapshot stored on a new request
type IdentityProvider interface {
	CurrentRequester(ctx context.Context, userID string) (*Requester, error)
}

type userIdentity struct {
	users repository.UserRepository
}

// NewIdentityProvider reads the user row on every call. Employee ids are assigned by HR
// after sign-up, so a value cached in the token may be stale.
func NewIdentityProvider(users repository.UserRepository) IdentityProvider {
	return &userIdentity{users: users}
}

func (p *userIdentity) CurrentRequester(ctx context.Context, userID string) (*Requester, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, ErrRequesterUnresolved
	}

	user, err := p.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRequesterUnresolved
		}
		return nil, fmt.Errorf("failed to load requester: %w", err)
	}

	return &Requester{
		ID:         user.ID,
		Name:       user.Name,
		Department: user.Department,
		EmployeeID: user.EmployeeID,
		Role:       user.Role,
	}, nil
}
