package model

import (
	"time"

	"github.com/lib/pq"
)

type PaymentMethod struct {
	ID           uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	Slug         string         `gorm:"type:VARCHAR(255);uniqueIndex;not null" json:"slug"`
	Description  string         `gorm:"type:TEXT" json:"description"`
	Type         string         `gorm:"type:VARCHAR(50);not null" json:"type"`
	MinimumDenom uint           `gorm:"type:INTEGER;not null" json:"minimum_denom"`
	MaximumDenom uint           `gorm:"type:INTEGER" json:"maximum_denom"`
	Status       string         `gorm:"type:VARCHAR(10);not null" json:"status"`
	Prefix       pq.StringArray `gorm:"type:TEXT[]" json:"prefix"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updated_at"`
	CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
}

// Active reports whether the method accepts new payments.
func (p PaymentMethod) Active() bool {
	return p.Status == "active" || p.Status == "1"
}
