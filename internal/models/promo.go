package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PromoKind says how a promo's value is applied.
type PromoKind string

const (
	PromoPercent PromoKind = "percent"
	PromoFixed   PromoKind = "fixed"
)

// PromoCode is an admin-managed discount code.
type PromoCode struct {
	Code        string          `json:"code" gorm:"primaryKey;type:varchar(50)" validate:"required,alphanum,max=50"`
	Kind        PromoKind       `json:"kind" gorm:"type:varchar(10)" validate:"required,oneof=percent fixed"`
	Value       decimal.Decimal `json:"value" gorm:"type:decimal(10,2)"`
	MinSubtotal decimal.Decimal `json:"minSubtotal" gorm:"type:decimal(10,2)"`
	Active      bool            `json:"active"`
	ExpiresAt   *time.Time      `json:"expiresAt,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}
