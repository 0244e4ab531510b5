package models

import (
	"time"

	"gorm.io/datatypes"
)

// PartRuleType tells how a rule's brand list is read.
type PartRuleType string

const (
	RuleRequiredFor    PartRuleType = "required_for"
	RuleNotRequiredFor PartRuleType = "not_required_for"
	RuleNone           PartRuleType = "none"
)

// Valid reports whether t is a known rule type.
func (t PartRuleType) Valid() bool {
	switch t {
	case RuleRequiredFor, RuleNotRequiredFor, RuleNone:
		return true
	}
	return false
}

// PartRule declares for which vehicle brands a part is offered.
// A part name has at most one rule; Brands is ignored when RuleType is none.
type PartRule struct {
	ID          uint                        `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time                   `json:"created_at"`
	UpdatedAt   time.Time                   `json:"updated_at"`
	PartName    string                      `gorm:"size:255;uniqueIndex;not null" json:"part_name"`
	RuleType    PartRuleType                `gorm:"size:32;not null;default:'none'" json:"rule_type"`
	Brands      datatypes.JSONSlice[string] `json:"brands"`
	Description string                      `gorm:"size:1000" json:"description,omitempty"`
	CreatedBy   uint                        `gorm:"index" json:"created_by"`
}
