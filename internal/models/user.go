package models

import "time"

// Address is a delivery address saved on a user's profile.
type Address struct {
	Label    string `json:"label" validate:"omitempty,max=50"`
	Address  string `json:"address" validate:"required"`
	Postcode string `json:"postcode" validate:"required"`
}

// User represents a shopper or back-office account.
type User struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Name      string    `json:"name" validate:"required,min=2,max=100"`
	Email     string    `json:"email" gorm:"uniqueIndex;type:varchar(255)" validate:"required,email"`
	Phone     string    `json:"phone" validate:"omitempty,max=30"`
	Password  string    `json:"password,omitempty" gorm:"type:varchar(255)" validate:"required,min=6"`
	IsAdmin   bool      `json:"isAdmin"`
	Addresses []Address `json:"addresses" gorm:"serializer:json"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
