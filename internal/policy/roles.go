package policy

import (
	"github.com/diewo77/go-quotes/gate"
	"github.com/diewo77/go-quotes/internal/models"
	"github.com/diewo77/go-quotes/internal/workflow"
)

// Resource types checked by the gate.
const (
	ResourceQuote  = "quote"
	ResourcePart   = "part"
	ResourceRule   = "rule"
	ResourceReport = "report"
	ResourceUser   = "user"
)

// Workflow actions on quotes, next to the CRUD actions of package gate.
const (
	ActionPrice     gate.Action = "price"
	ActionEditParts gate.Action = "edit_parts"
	ActionVerify    gate.Action = "verify"
	ActionComplete  gate.Action = "complete"
	ActionOrder     gate.Action = "order"
	ActionDeliver   gate.Action = "deliver"
	ActionMarkWrong gate.Action = "mark_wrong"
)

func quotePerm(a gate.Action) gate.Permission { return gate.NewPermission(ResourceQuote, a) }

// readOnly is shared by every non-admin role: anyone signed in may browse
// quotes, the part catalog and the rules behind it.
var readOnly = []gate.Permission{
	quotePerm(gate.ActionView),
	quotePerm(gate.ActionList),
	gate.NewPermission(ResourcePart, gate.ActionList),
	gate.NewPermission(ResourceRule, gate.ActionList),
}

// rolePermissions is the (role, action) policy table.
var rolePermissions = map[models.Role][]gate.Permission{
	models.RoleAdmin: {gate.PermissionSuperAdmin},
	models.RoleQuoteCreator: append([]gate.Permission{
		quotePerm(gate.ActionCreate),
		quotePerm(ActionEditParts),
	}, readOnly...),
	models.RolePriceManager: append([]gate.Permission{
		quotePerm(ActionPrice),
		quotePerm(ActionEditParts),
		quotePerm(ActionOrder),
		quotePerm(ActionDeliver),
		quotePerm(ActionComplete),
	}, readOnly...),
	models.RoleQualityController: append([]gate.Permission{
		quotePerm(ActionVerify),
		quotePerm(ActionComplete),
		quotePerm(ActionMarkWrong),
		gate.NewPermission(ResourceReport, gate.ActionView),
	}, readOnly...),
}

var profiles = buildProfiles()

// buildProfiles numbers profiles by their position in models.Roles, so ids
// stay stable as long as roles are only appended.
func buildProfiles() map[models.Role]*gate.StaticProfile {
	out := make(map[models.Role]*gate.StaticProfile, len(models.Roles))
	for i, role := range models.Roles {
		out[role] = gate.NewStaticProfile(uint(i+1), string(role), rolePermissions[role]...)
	}
	return out
}

// ProfileFor returns the profile of role, or nil for an unknown role.
func ProfileFor(role models.Role) gate.Profile {
	if p, ok := profiles[role]; ok {
		return p
	}
	return nil
}

// Allowed reports whether role holds resourceType:action.
func Allowed(role models.Role, resourceType string, action gate.Action) bool {
	p := ProfileFor(role)
	return p != nil && p.HasPermission(gate.NewPermission(resourceType, action))
}

var eventActions = map[workflow.Event]gate.Action{
	workflow.EventPriceEntered:   ActionPrice,
	workflow.EventPartsCorrected: ActionEditParts,
	workflow.EventVerify:         ActionVerify,
	workflow.EventComplete:       ActionComplete,
	workflow.EventOrder:          ActionOrder,
	workflow.EventDeliver:        ActionDeliver,
	workflow.EventMarkWrong:      ActionMarkWrong,
}

// EventAction returns the quote permission an event requires.
func EventAction(ev workflow.Event) (gate.Action, bool) {
	a, ok := eventActions[ev]
	return a, ok
}
