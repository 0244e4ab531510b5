package gate_test

import (
	"context"
	"errors"
	"testing"

	"github.com/diewo77/go-quotes/gate"
)

const actionPrice gate.Action = "price"

type quoteStub struct {
	CreatedBy uint
}

// creatorPolicy allows updates only on quotes the user created.
type creatorPolicy struct{}

func (creatorPolicy) Can(_ context.Context, userID uint, _ gate.Action, resource any) bool {
	q, ok := resource.(*quoteStub)
	return ok && q.CreatedBy == userID
}

// mapResolver serves profiles from a map and counts lookups.
type mapResolver struct {
	profiles map[uint]gate.Profile
	err      error
	calls    int
}

func newMapResolver() *mapResolver {
	return &mapResolver{profiles: map[uint]gate.Profile{}}
}

func (r *mapResolver) Set(user uint, p gate.Profile) { r.profiles[user] = p }

func (r *mapResolver) Resolve(_ context.Context, user uint) (gate.Profile, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.profiles[user], nil
}

func newGate() *gate.Gate[uint] {
	resolver := newMapResolver()
	creator := gate.NewStaticProfile(1, "quote_creator",
		gate.NewPermission("quote", gate.ActionCreate),
		gate.NewPermission("quote", gate.ActionUpdate),
	)
	pricer := gate.NewStaticProfile(2, "price_manager",
		gate.NewPermission("quote", actionPrice),
		gate.NewPermission("quote", gate.ActionUpdate),
	)
	resolver.Set(10, creator)
	resolver.Set(11, creator)
	resolver.Set(20, pricer)
	resolver.Set(99, gate.NewStaticProfile(3, "admin", gate.PermissionSuperAdmin))
	return gate.NewGate[uint](resolver)
}

func TestGate_Authorize_ZeroUser(t *testing.T) {
	g := newGate()
	err := g.Authorize(context.Background(), 0, gate.ActionView, "quote", nil)
	if !errors.Is(err, gate.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestGate_Authorize_UnknownUser(t *testing.T) {
	g := newGate()
	err := g.Authorize(context.Background(), 42, gate.ActionView, "quote", nil)
	if !errors.Is(err, gate.ErrForbidden) {
		t.Errorf("expected ErrForbidden for user without profile, got %v", err)
	}
}

func TestGate_Authorize_ProfileOnly(t *testing.T) {
	g := newGate()
	ctx := context.Background()

	if !g.Can(ctx, 10, gate.ActionCreate, "quote", nil) {
		t.Error("creator should be allowed to create quotes")
	}
	if g.Can(ctx, 10, actionPrice, "quote", nil) {
		t.Error("creator should not be allowed to price quotes")
	}
	if !g.Can(ctx, 20, actionPrice, "quote", nil) {
		t.Error("price manager should be allowed to price quotes")
	}
	if !g.Can(ctx, 99, gate.ActionDelete, "rule", nil) {
		t.Error("superadmin should be allowed everything")
	}
}

func TestGate_Authorize_WithResourcePolicy(t *testing.T) {
	g := newGate()
	g.Register("quote", creatorPolicy{})
	ctx := context.Background()
	q := &quoteStub{CreatedBy: 10}

	if !g.Can(ctx, 10, gate.ActionUpdate, "quote", q) {
		t.Error("creator should update own quote")
	}
	if g.Can(ctx, 11, gate.ActionUpdate, "quote", q) {
		t.Error("other creator should be denied even with profile permission")
	}
	// Policies run only when a record is passed.
	if !g.Can(ctx, 11, gate.ActionUpdate, "quote", nil) {
		t.Error("profile check alone should pass without a record")
	}
}

func TestGate_CanProfile(t *testing.T) {
	g := newGate()
	g.Register("quote", creatorPolicy{})
	ctx := context.Background()

	if !g.CanProfile(ctx, 11, gate.ActionUpdate, "quote") {
		t.Error("CanProfile should ignore resource policies")
	}
	if g.CanProfile(ctx, 11, gate.ActionDelete, "quote") {
		t.Error("CanProfile should return false for missing permission")
	}
	if g.CanProfile(ctx, 0, gate.ActionView, "quote") {
		t.Error("zero user should be denied")
	}
}

func TestGate_ResolverError(t *testing.T) {
	failing := newMapResolver()
	failing.err = errors.New("db down")
	g := gate.NewGate[uint](failing)
	if err := g.Authorize(context.Background(), 1, gate.ActionView, "quote", nil); !errors.Is(err, gate.ErrForbidden) {
		t.Errorf("expected ErrForbidden on resolver failure, got %v", err)
	}
}
