package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionRequestSubmitted = "REQUEST_SUBMITTED"
	ActionRequestAdvanced  = "REQUEST_ADVANCED"
	ActionRequestApproved  = "REQUEST_APPROVED"
	ActionRequestRejected  = "REQUEST_REJECTED"
	ActionRequestCancelled = "REQUEST_CANCELLED"
	ActionRequestUpdated   = "REQUEST_UPDATED"
)

// AuditLog tracks Who, What, and When for every request transition
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable when the actor is unknown
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`        // Request ID
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // Request type
	Details    string     `gorm:"type:text" json:"details"`                       // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
