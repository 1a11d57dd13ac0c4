package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Built-in roles. Department approver roles (hod, time_office, canteen_admin, ...) are
// free-form and match the Role of an approval step.
const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
	RoleHOD      = "hod"
)

// User represents a portal account and the snapshot source for request submissions
type User struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name       string         `gorm:"type:varchar(255);not null" json:"name"`
	Email      string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Phone      string         `gorm:"type:varchar(20)" json:"phone"`
	Password   string         `gorm:"type:varchar(255);not null" json:"-"`   // Omit password from JSON requests/responses
	Role       string         `gorm:"type:varchar(50);not null" json:"role"` // admin, employee, hod, ...
	Department string         `gorm:"type:varchar(100);index" json:"department"`
	EmployeeID string         `gorm:"type:varchar(50);index" json:"employee_id"` // Assigned by HR, possibly after sign-up
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"` // GORM soft delete
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
