package gate

import "context"

// Policy defines record-level rules for a resource type, such as
// "a quote creator may only edit parts on their own quotes".
type Policy[U any] interface {
	// Can reports whether user may perform action on resource.
	// The profile permission has already been checked when Gate calls it,
	// and resource is never nil.
	Can(ctx context.Context, user U, action Action, resource any) bool
}
