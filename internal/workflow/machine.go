// Package workflow holds the quote status state machine.
//
// Apply is a pure function: it decides the next status, the audit action to
// record and the timestamp to set, and leaves persistence to the caller.
package workflow

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/diewo77/go-quotes/internal/models"
)

// Event is something that happens to a quote.
type Event string

const (
	EventPriceEntered   Event = "price_entered"
	EventVerify         Event = "verify"
	EventComplete       Event = "complete"
	EventOrder          Event = "order"
	EventDeliver        Event = "deliver"
	EventMarkWrong      Event = "mark_wrong"
	EventPartsCorrected Event = "parts_corrected"
)

var (
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrInvoiceNumberRequired = errors.New("tax invoice number required")
	ErrUnknownEvent          = errors.New("unknown workflow event")
)

// Stamp names the quote timestamp a transition sets.
type Stamp int

const (
	StampNone Stamp = iota
	StampCompleted
	StampOrdered
	StampDelivered
)

// Input is the part of the quote snapshot and request that guards look at.
type Input struct {
	Parts            []models.QuotePartItem
	TaxInvoiceNumber string
}

// Result describes the outcome of an event. When Changed is false the quote
// must not be written.
type Result struct {
	From             models.QuoteStatus
	To               models.QuoteStatus
	Changed          bool
	Action           models.ActionType
	Stamp            Stamp
	TaxInvoiceNumber string
}

type transition struct {
	from []models.QuoteStatus
	to   models.QuoteStatus
	// automatic events come from edits; an unmet guard or a foreign state
	// leaves the quote as is without error.
	automatic bool
	guard     func(Input) bool
	action    models.ActionType
	stamp     Stamp
}

var transitions = map[Event]transition{
	EventPriceEntered: {
		from:      []models.QuoteStatus{models.QuoteStatusUnpriced},
		to:        models.QuoteStatusWaitingVerification,
		automatic: true,
		guard:     func(in Input) bool { return models.HasPricedItem(in.Parts) },
		action:    models.ActionPriced,
	},
	EventVerify: {
		from:   []models.QuoteStatus{models.QuoteStatusWaitingVerification},
		to:     models.QuoteStatusPriced,
		action: models.ActionVerified,
	},
	EventComplete: {
		from:   []models.QuoteStatus{models.QuoteStatusWaitingVerification, models.QuoteStatusPriced},
		to:     models.QuoteStatusCompleted,
		action: models.ActionCompleted,
		stamp:  StampCompleted,
	},
	EventOrder: {
		from:   []models.QuoteStatus{models.QuoteStatusCompleted, models.QuoteStatusPriced},
		to:     models.QuoteStatusOrdered,
		action: models.ActionOrdered,
		stamp:  StampOrdered,
	},
	EventDeliver: {
		from:   []models.QuoteStatus{models.QuoteStatusOrdered},
		to:     models.QuoteStatusDelivered,
		action: models.ActionDelivered,
		stamp:  StampDelivered,
	},
	EventMarkWrong: {
		from: []models.QuoteStatus{
			models.QuoteStatusUnpriced,
			models.QuoteStatusPriced,
			models.QuoteStatusWaitingVerification,
		},
		to:     models.QuoteStatusWrong,
		action: models.ActionMarkedWrong,
	},
	EventPartsCorrected: {
		from:      []models.QuoteStatus{models.QuoteStatusWrong},
		to:        models.QuoteStatusUnpriced,
		automatic: true,
		guard:     func(in Input) bool { return models.AllPartIDsValid(in.Parts) },
	},
}

// Apply evaluates ev against a quote in status current.
func Apply(current models.QuoteStatus, ev Event, in Input) (Result, error) {
	res := Result{From: current, To: current}
	t, ok := transitions[ev]
	if !ok {
		return res, errors.Wrapf(ErrUnknownEvent, "%q", ev)
	}
	if !t.allows(current) {
		if t.automatic {
			return res, nil
		}
		return res, errors.Wrapf(ErrInvalidTransition, "%s from %s", ev, current)
	}
	if ev == EventOrder {
		invoice := strings.TrimSpace(in.TaxInvoiceNumber)
		if invoice == "" {
			return res, ErrInvoiceNumberRequired
		}
		res.TaxInvoiceNumber = invoice
	}
	if t.guard != nil && !t.guard(in) {
		return res, nil
	}
	res.To = t.to
	res.Changed = true
	res.Action = t.action
	res.Stamp = t.stamp
	return res, nil
}

// Allowed returns the explicit events a quote in status can take, in a
// stable order.
func Allowed(status models.QuoteStatus) []Event {
	var out []Event
	for _, ev := range []Event{EventVerify, EventComplete, EventOrder, EventDeliver, EventMarkWrong} {
		if transitions[ev].allows(status) {
			out = append(out, ev)
		}
	}
	return out
}

// Terminal reports whether no event moves a quote out of status.
func Terminal(status models.QuoteStatus) bool {
	for _, t := range transitions {
		if t.allows(status) {
			return false
		}
	}
	return true
}

func (t transition) allows(status models.QuoteStatus) bool {
	for _, s := range t.from {
		if s == status {
			return true
		}
	}
	return false
}
