package models

import (
	"time"

	"grocer/internal/pricing"

	"github.com/shopspring/decimal"
)

// OrderStatus is the only field of an order that changes after creation.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusDelivered, OrderStatusCancelled},
}

// CanTransitionTo reports whether an order in status s may move to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Customer holds the contact and delivery details captured at checkout.
type Customer struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone" validate:"required"`
	Address  string `json:"address" validate:"required"`
	Postcode string `json:"postcode"`
}

// OrderItem is a snapshot of a cart line at the time the order was placed.
type OrderItem struct {
	ProductID string          `json:"productId" validate:"required"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity" validate:"gte=1"`
}

// Order is the persisted result of a completed checkout. The JSON field names
// are consumed by the back-office and bill generator and must stay stable.
type Order struct {
	ID                    string                 `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CreatedAt             time.Time              `json:"createdAt" gorm:"index"`
	UpdatedAt             time.Time              `json:"updatedAt"`
	IdempotencyKey        string                 `json:"idempotencyKey" gorm:"uniqueIndex;type:varchar(64)" validate:"required"`
	Customer              Customer               `json:"customer" gorm:"embedded;embeddedPrefix:customer_"`
	Items                 []OrderItem            `json:"items" gorm:"serializer:json" validate:"required,min=1,dive"`
	DeliveryNotes         string                 `json:"deliveryNotes"`
	DeliveryType          pricing.DeliveryType   `json:"deliveryType" gorm:"type:varchar(20)" validate:"required,oneof=standard express scheduled"`
	ScheduledDeliveryTime *time.Time             `json:"scheduledDeliveryTime,omitempty"`
	PromoCode             string                 `json:"promoCode,omitempty" gorm:"type:varchar(50)"`
	Fees                  pricing.Breakdown      `json:"fees" gorm:"embedded;embeddedPrefix:fee_"`
	PaymentData           map[string]interface{} `json:"paymentData" gorm:"serializer:json"`
	Status                OrderStatus            `json:"status" gorm:"type:varchar(20);index" validate:"required"`
}
