package models

import "time"

// Customer is the person or workshop a quote is prepared for.
type Customer struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Phone     string    `gorm:"size:50" json:"phone,omitempty"`
	Email     string    `gorm:"size:255" json:"email,omitempty"`
}

// Vehicle is the car the requested parts are for. Brand drives part eligibility.
type Vehicle struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	CustomerID uint      `gorm:"index;not null" json:"customer_id"`
	Brand      string    `gorm:"size:100;not null" json:"brand"`
	Model      string    `gorm:"size:100" json:"model,omitempty"`
	Year       int       `json:"year,omitempty"`
	VIN        string    `gorm:"column:vin;size:32" json:"vin,omitempty"`
}
