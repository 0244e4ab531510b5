package gate

import "strings"

// Permission represents an allowed action on a resource type.
// Format: "resource:action" (e.g., "quote:price", "rule:update")
type Permission string

// NewPermission creates a permission from resource type and action.
func NewPermission(resourceType string, action Action) Permission {
	return Permission(resourceType + ":" + string(action))
}

// Wildcards for super permissions
const (
	WildcardAll                     = "*"
	PermissionSuperAdmin Permission = "*:*"
)

// Matches checks if this permission covers a requested permission.
// "*:*" matches everything and "quote:*" matches every quote action.
func (p Permission) Matches(requested Permission) bool {
	if p == PermissionSuperAdmin || p == requested {
		return true
	}
	// Only a resource wildcard is left to check. A malformed permission
	// (no colon) splits to an empty resource and never matches.
	res, act := p.split()
	reqRes, _ := requested.split()
	return res != "" && res == reqRes && act == WildcardAll
}

func (p Permission) split() (resourceType, action string) {
	res, act, ok := strings.Cut(string(p), ":")
	if !ok {
		return "", ""
	}
	return res, act
}
