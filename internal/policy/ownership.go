package policy

import (
	"context"

	"github.com/diewo77/go-quotes/gate"
)

// Ownable is implemented by records that have a creator.
type Ownable interface {
	GetUserID() uint
}

// OwnershipPolicy allows access only to the record's creator. Records that do
// not implement Ownable are denied.
type OwnershipPolicy struct{}

// NewOwnershipPolicy creates a new ownership policy.
func NewOwnershipPolicy() *OwnershipPolicy {
	return &OwnershipPolicy{}
}

func (p *OwnershipPolicy) Can(_ context.Context, userID uint, _ gate.Action, resource any) bool {
	ownable, ok := resource.(Ownable)
	if !ok {
		return false
	}
	return ownable.GetUserID() == userID
}

// BypassPolicy applies inner only when bypass returns false.
type BypassPolicy struct {
	inner  gate.Policy[uint]
	bypass func(ctx context.Context, userID uint, action gate.Action) bool
}

// NewBypassPolicy wraps inner.
func NewBypassPolicy(inner gate.Policy[uint], bypass func(ctx context.Context, userID uint, action gate.Action) bool) *BypassPolicy {
	return &BypassPolicy{inner: inner, bypass: bypass}
}

func (p *BypassPolicy) Can(ctx context.Context, userID uint, action gate.Action, resource any) bool {
	if p.bypass(ctx, userID, action) {
		return true
	}
	return p.inner.Can(ctx, userID, action, resource)
}
