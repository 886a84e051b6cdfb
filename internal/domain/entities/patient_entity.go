package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Patient represents a patient in the system.
type Patient struct {
	ID          uuid.UUID `json:"id" db:"id" gorm:"type:uuid;primaryKey"`
	Name        string    `json:"name" db:"name" gorm:"not null"`
	DateOfBirth time.Time `json:"date_of_birth" db:"date_of_birth" gorm:"not null"`
	Email       string    `json:"email" db:"email" gorm:"unique;not null"`
	CreatedAt   time.Time `json:"created_at" db:"created_at" gorm:"not null"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at" gorm:"not null"`
}

func (p *Patient) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Doctor represents a member of the medical staff.
type Doctor struct {
	ID             uuid.UUID `json:"id" db:"id" gorm:"type:uuid;primaryKey"`
	Name           string    `json:"name" db:"name" gorm:"not null"`
	Email          string    `json:"email" db:"email" gorm:"unique;not null"`
	Specialization string    `json:"specialization" db:"specialization"`
	CreatedAt      time.Time `json:"created_at" db:"created_at" gorm:"not null"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at" gorm:"not null"`
}

func (d *Doctor) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
