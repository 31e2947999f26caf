package models

// Role sets. These are fixed for the lifetime of the process and must not be mutated.
var (
	// OperatorRoles are the roles tied to one entity kind each.
	OperatorRoles = []Role{RoleAct, RoleVenue, RoleFestival, RolePromoter, RoleOrganizer, RoleAssociation}

	// EventPublisherRoles may publish events, subject to admission control.
	EventPublisherRoles = []Role{RoleVenue, RoleFestival, RoleOrganizer, RolePromoter}

	// RestrictedKinds are only listed to members (operators and admins).
	RestrictedKinds = []EntityKind{KindPromoter, KindOrganizer, KindAssociation}
)

// ParseRole returns the role named s and whether it is known.
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleUser, RoleAdmin:
		return r, true
	default:
		return r, IsOperator(r)
	}
}

// IsAdmin reports whether r is the administrator role.
func IsAdmin(r Role) bool { return r == RoleAdmin }

// IsOperator reports whether r is one of the six entity-operator roles.
func IsOperator(r Role) bool { return containsRole(OperatorRoles, r) }

// IsMember reports whether r is admin or an operator role.
func IsMember(r Role) bool { return IsAdmin(r) || IsOperator(r) }

// CanPublishEvents reports whether r belongs to the event publisher roles.
func CanPublishEvents(r Role) bool { return containsRole(EventPublisherRoles, r) }

// KindForRole returns the entity kind operated by role r.
func KindForRole(r Role) (EntityKind, bool) {
	if !IsOperator(r) {
		return "", false
	}
	return EntityKind(r), true
}

// RoleForKind returns the operator role for entity kind k.
func RoleForKind(k EntityKind) Role {
	return Role(k)
}

// CanViewKind reports whether a viewer with role r may list entities of kind k.
// Acts, venues and festivals are public; the rest are visible to members only.
func CanViewKind(r Role, k EntityKind) bool {
	for _, rk := range RestrictedKinds {
		if rk == k {
			return IsMember(r)
		}
	}
	return k.Valid()
}

func containsRole(set []Role, r Role) bool {
	for _, s := range set {
		if s == r {
			return true
		}
	}
	return false
}
