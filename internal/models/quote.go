package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// QuoteStatus represents the workflow status of a quote.
type QuoteStatus string

const (
	QuoteStatusUnpriced            QuoteStatus = "unpriced"
	QuoteStatusWaitingVerification QuoteStatus = "waiting_verification"
	QuoteStatusPriced              QuoteStatus = "priced"
	QuoteStatusCompleted           QuoteStatus = "completed"
	QuoteStatusOrdered             QuoteStatus = "ordered"
	QuoteStatusDelivered           QuoteStatus = "delivered"
	QuoteStatusWrong               QuoteStatus = "wrong"
)

// QuoteStatuses lists every status in workflow order.
var QuoteStatuses = []QuoteStatus{
	QuoteStatusUnpriced,
	QuoteStatusWaitingVerification,
	QuoteStatusPriced,
	QuoteStatusCompleted,
	QuoteStatusOrdered,
	QuoteStatusDelivered,
	QuoteStatusWrong,
}

// Valid reports whether s is a known status.
func (s QuoteStatus) Valid() bool {
	for _, known := range QuoteStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Quote is a pricing request for a set of parts against one vehicle.
type Quote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CustomerID uint      `gorm:"index;not null" json:"customer_id"`
	Customer   *Customer `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	VehicleID  uint      `gorm:"index;not null" json:"vehicle_id"`
	Vehicle    *Vehicle  `gorm:"foreignKey:VehicleID" json:"vehicle,omitempty"`

	// CreatedBy is the quote creator, used for record-level authorization.
	CreatedBy uint `gorm:"index;not null" json:"created_by"`

	PartsRequested datatypes.JSONSlice[QuotePartItem] `json:"parts_requested"`

	Status           QuoteStatus `gorm:"size:32;not null;default:'unpriced';index" json:"status"`
	TaxInvoiceNumber string      `gorm:"size:100" json:"tax_invoice_number,omitempty"`
	RequiredBy       *time.Time  `json:"required_by,omitempty"`

	CompletedAt *time.Time `json:"completed_at,omitempty"`
	OrderedAt   *time.Time `json:"ordered_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// GetUserID implements policy.Ownable.
func (q *Quote) GetUserID() uint {
	return q.CreatedBy
}

// Parts returns the requested part items.
func (q *Quote) Parts() []QuotePartItem {
	return []QuotePartItem(q.PartsRequested)
}

// SetParts replaces the requested part items.
func (q *Quote) SetParts(items []QuotePartItem) {
	q.PartsRequested = datatypes.JSONSlice[QuotePartItem](items)
}

// QuotePartItem is one requested part within a quote.
type QuotePartItem struct {
	PartID     string              `json:"part_id"`
	PartName   string              `json:"part_name,omitempty"`
	Note       string              `json:"note,omitempty"`
	FinalPrice decimal.NullDecimal `json:"final_price"`
	ListPrice  decimal.NullDecimal `json:"list_price"`
	Variants   []Variant           `json:"variants,omitempty"`
}

// Variant is one priced option (part number + price) for a part item.
type Variant struct {
	ID         string              `json:"id"`
	PartNumber string              `json:"part_number,omitempty"`
	FinalPrice decimal.NullDecimal `json:"final_price"`
	ListPrice  decimal.NullDecimal `json:"list_price"`
	Notes      string              `json:"notes,omitempty"`
	IsDefault  bool                `json:"is_default"`
}

// Placeholder part identifiers entered while a side is known but the part is not.
var placeholderPartIDs = map[string]bool{"L": true, "R": true}

// DefaultVariant returns the variant flagged default, falling back to the
// first variant, or nil when the item has none.
func (it QuotePartItem) DefaultVariant() *Variant {
	if len(it.Variants) == 0 {
		return nil
	}
	for i := range it.Variants {
		if it.Variants[i].IsDefault {
			return &it.Variants[i]
		}
	}
	return &it.Variants[0]
}

// DefaultCount returns how many variants are flagged default.
func (it QuotePartItem) DefaultCount() int {
	n := 0
	for _, v := range it.Variants {
		if v.IsDefault {
			n++
		}
	}
	return n
}

// DefaultPrice is the final price of the default variant, or the item's own
// final price when it has no variants.
func (it QuotePartItem) DefaultPrice() decimal.NullDecimal {
	if v := it.DefaultVariant(); v != nil {
		return v.FinalPrice
	}
	return it.FinalPrice
}

// IsPriced reports whether the default price is set and positive.
func (it QuotePartItem) IsPriced() bool {
	p := it.DefaultPrice()
	return p.Valid && p.Decimal.IsPositive()
}

// HasValidPartID reports whether the part identifier is set and is not a
// side placeholder.
func (it QuotePartItem) HasValidPartID() bool {
	id := strings.TrimSpace(it.PartID)
	return id != "" && !placeholderPartIDs[strings.ToUpper(id)]
}

// SyncDefaultPrices copies the default variant's prices onto the item.
func (it *QuotePartItem) SyncDefaultPrices() {
	if v := it.DefaultVariant(); v != nil {
		it.FinalPrice = v.FinalPrice
		it.ListPrice = v.ListPrice
	}
}

// HasPricedItem reports whether at least one item is priced.
func HasPricedItem(items []QuotePartItem) bool {
	for _, it := range items {
		if it.IsPriced() {
			return true
		}
	}
	return false
}

// AllPartIDsValid reports whether every item carries a real part identifier.
// An empty list is not valid, so a wrong quote cannot be corrected by
// clearing its parts.
func AllPartIDsValid(items []QuotePartItem) bool {
	if len(items) == 0 {
		return false
	}
	for _, it := range items {
		if !it.HasValidPartID() {
			return false
		}
	}
	return true
}
