package policy

import (
	"context"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/go-quotes/auth"
	"github.com/diewo77/go-quotes/gate"
	"github.com/diewo77/go-quotes/httpx"
	"github.com/diewo77/go-quotes/internal/models"
)

// AuthGate is the central authorization point: role profiles cached per user
// plus record-level policies.
type AuthGate struct {
	Gate     *gate.Gate[uint]
	Profiles *gate.CachedResolver[uint]
}

// NewAuthGate resolves profiles from the users table through a TTL cache and
// registers the quote creator policy.
func NewAuthGate(db *gorm.DB, cacheTTL time.Duration) *AuthGate {
	return NewAuthGateWithResolver(NewDBProfileResolver(db), cacheTTL)
}

// NewAuthGateWithResolver is NewAuthGate over any profile resolver.
func NewAuthGateWithResolver(resolver gate.ProfileResolver[uint], cacheTTL time.Duration) *AuthGate {
	// The gate and HasRole share one cache, so InvalidateUser covers both.
	cached := gate.NewCachedResolver[uint](resolver, cacheTTL)
	ag := &AuthGate{Gate: gate.NewGate[uint](cached), Profiles: cached}
	ag.RegisterPolicy(ResourceQuote, NewBypassPolicy(NewOwnershipPolicy(), ag.creatorUnrestricted))
	return ag
}

// creatorUnrestricted lets every role but quote_creator past the ownership
// check, and quote creators past it for everything but editing parts.
func (ag *AuthGate) creatorUnrestricted(ctx context.Context, userID uint, action gate.Action) bool {
	// Checking the action first keeps the profile lookup off every other
	// quote request. HasRole hits the same cache the gate just filled.
	return action != ActionEditParts || !ag.HasRole(ctx, userID, models.RoleQuoteCreator)
}

// RegisterPolicy adds a record-level policy for a resource type.
func (ag *AuthGate) RegisterPolicy(resourceType string, p gate.Policy[uint]) {
	ag.Gate.Register(resourceType, p)
}

// Authorize checks whether the current user can perform action on resource.
func (ag *AuthGate) Authorize(ctx context.Context, action gate.Action, resourceType string, resource any) error {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return gate.ErrUnauthorized
	}
	return ag.Gate.Authorize(ctx, userID, action, resourceType, resource)
}

func (ag *AuthGate) Can(ctx context.Context, action gate.Action, resourceType string, resource any) bool {
	return ag.Authorize(ctx, action, resourceType, resource) == nil
}

// CanProfile checks only profile permissions, before a record is loaded.
func (ag *AuthGate) CanProfile(ctx context.Context, action gate.Action, resourceType string) bool {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return false
	}
	return ag.Gate.CanProfile(ctx, userID, action, resourceType)
}

// HasRole reports whether userID currently resolves to role.
func (ag *AuthGate) HasRole(ctx context.Context, userID uint, role models.Role) bool {
	p, err := ag.Profiles.Resolve(ctx, userID)
	return err == nil && p != nil && p.Name() == string(role)
}

// InvalidateUser clears the cached profile of one user.
func (ag *AuthGate) InvalidateUser(userID uint) {
	ag.Profiles.Invalidate(userID)
}

func (ag *AuthGate) InvalidateAll() {
	ag.Profiles.InvalidateAll()
}

// RequirePermission returns middleware rejecting requests whose user lacks
// resourceType:action.
func (ag *AuthGate) RequirePermission(resourceType string, action gate.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := auth.UserIDFromContext(r.Context()); !ok {
				httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}
			if !ag.CanProfile(r.Context(), action, resourceType) {
				httpx.JSONError(w, http.StatusForbidden, "forbidden", map[string]string{
					"permission": string(gate.NewPermission(resourceType, action)),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
