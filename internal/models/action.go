package models

import "time"

// ActionType names a workflow event recorded against a quote.
type ActionType string

const (
	ActionCreated     ActionType = "CREATED"
	ActionPriced      ActionType = "PRICED"
	ActionVerified    ActionType = "VERIFIED"
	ActionCompleted   ActionType = "COMPLETED"
	ActionOrdered     ActionType = "ORDERED"
	ActionDelivered   ActionType = "DELIVERED"
	ActionMarkedWrong ActionType = "MARKED_WRONG"
)

// QuoteAction is an append-only audit record used for reporting.
// It never authorizes anything and is never updated or deleted.
type QuoteAction struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	QuoteID    uint       `gorm:"index;not null" json:"quote_id"`
	UserID     uint       `gorm:"index;not null" json:"user_id"`
	ActionType ActionType `gorm:"size:32;not null;index" json:"action_type"`
	Timestamp  time.Time  `gorm:"not null;index" json:"timestamp"`
}
