package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a grocery item in the catalogue.
type Product struct {
	ID          string          `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Name        string          `json:"name" validate:"required,min=2,max=100"`
	Description string          `json:"description" validate:"omitempty,max=500"`
	Category    string          `json:"category" gorm:"index;type:varchar(50)" validate:"omitempty,max=50"`
	Price       decimal.Decimal `json:"price" gorm:"type:decimal(10,2)"`
	ImageURL    string          `json:"imageUrl" validate:"omitempty,url"`
	Stock       int             `json:"stock" validate:"gte=0"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}
