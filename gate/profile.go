package gate

import "context"

// Profile represents a role with a set of permissions.
type Profile interface {
	ID() uint
	Name() string
	HasPermission(permission Permission) bool
}

// ProfileResolver resolves a user to their profile.
// A nil profile with a nil error means the user has no profile.
type ProfileResolver[U any] interface {
	Resolve(ctx context.Context, user U) (Profile, error)
}

// StaticProfile is an in-memory profile, used for role tables built at startup.
// It is immutable once created and safe to share between goroutines.
type StaticProfile struct {
	id          uint
	name        string
	permissions map[Permission]bool
	wildcards   []Permission
}

// NewStaticProfile creates a profile with the given permissions.
func NewStaticProfile(id uint, name string, permissions ...Permission) *StaticProfile {
	p := &StaticProfile{
		id:          id,
		name:        name,
		permissions: make(map[Permission]bool, len(permissions)),
	}
	for _, perm := range permissions {
		p.permissions[perm] = true
		if _, act := perm.split(); act == WildcardAll {
			p.wildcards = append(p.wildcards, perm)
		}
	}
	return p
}

func (p *StaticProfile) ID() uint     { return p.id }
func (p *StaticProfile) Name() string { return p.name }

// HasPermission checks if the profile covers the requested permission,
// wildcards included.
func (p *StaticProfile) HasPermission(requested Permission) bool {
	// Exact grants are the common case and need no scan.
	if p.permissions[requested] {
		return true
	}
	for _, perm := range p.wildcards {
		if perm.Matches(requested) {
			return true
		}
	}
	return false
}
