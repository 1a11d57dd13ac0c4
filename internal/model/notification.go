package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification type values
const (
	NotificationInfo    = "info"
	NotificationSuccess = "success"
	NotificationError   = "error"
)

// Notification is a best-effort message to a user about one of their requests.
type Notification struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	RequestID string    `gorm:"type:varchar(20);index" json:"request_id"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	Message   string    `gorm:"type:text" json:"message"`
	Type      string    `gorm:"type:varchar(20);not null;default:'info'" json:"type"`
	IsRead    bool      `gorm:"not null;default:false;index" json:"is_read"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
