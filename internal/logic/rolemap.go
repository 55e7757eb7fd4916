package logic

// RoleMap binds each role name of a premise predicate to a role name on the
// rule's conclusion predicate. It is how an ImplicationFactor says "this
// premise variable is the same entity as that conclusion variable".
type RoleMap map[string]string

// Lookup returns the conclusion role name bound to premiseRole.
func (m RoleMap) Lookup(premiseRole string) (string, bool) {
	target, ok := m[premiseRole]
	return target, ok
}

// GroupRoleMap holds one RoleMap per member of a premise PropositionGroup,
// aligned by index.
type GroupRoleMap struct {
	Maps []RoleMap
}

// NewGroupRoleMap builds a GroupRoleMap from the given per-member maps.
func NewGroupRoleMap(maps ...RoleMap) GroupRoleMap {
	return GroupRoleMap{Maps: maps}
}

// At returns the RoleMap for premise member i.
func (g GroupRoleMap) At(i int) (RoleMap, bool) {
	if i < 0 || i >= len(g.Maps) {
		return nil, false
	}
	return g.Maps[i], true
}
