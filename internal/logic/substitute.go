package logic

import "fmt"

// Substitute binds premise's variable roles from conclusion via roleMap and
// returns the resulting ground (or partially ground) predicate. For each
// role of premise:
//   - if the role's argument is a Variable, roleMap must name a role on
//     conclusion; that role's argument is copied in, after checking its
//     domain matches the premise role's domain;
//   - if the role's argument is a Constant, it is kept unchanged.
//
// This grounds a rule's premise term against one of the grounded arguments
// of a candidate conclusion instance. Failures are ErrUnknownRole
// (roleMap has no entry for a variable role) or ErrDomainMismatch (roleMap
// points at a role whose domain disagrees); both wrap ErrUnification so
// callers doing factor extraction can drop the candidate with a single
// errors.Is(err, ErrUnification) check.
func Substitute(premise Predicate, roleMap RoleMap, conclusion Proposition) (Predicate, error) {
	roles := make([]Role, len(premise.Roles))
	for i, role := range premise.Roles {
		if role.Argument.IsConstant() {
			roles[i] = role
			continue
		}

		targetName, ok := roleMap.Lookup(role.Name)
		if !ok {
			return Predicate{}, fmt.Errorf("%w: %w: premise role %q has no entry in role-map",
				ErrUnification, ErrUnknownRole, role.Name)
		}
		targetRole, ok := conclusion.Predicate.Role(targetName)
		if !ok {
			return Predicate{}, fmt.Errorf("%w: %w: conclusion %s has no role %q",
				ErrUnification, ErrUnknownRole, conclusion.Hash(), targetName)
		}
		if targetRole.Argument.Domain() != role.Argument.Domain() {
			return Predicate{}, fmt.Errorf("%w: %w: role %q expects domain %s, conclusion role %q is %s",
				ErrUnification, ErrDomainMismatch, role.Name, role.Argument.Domain(), targetName, targetRole.Argument.Domain())
		}
		roles[i] = Role{Name: role.Name, Argument: targetRole.Argument}
	}
	return Predicate{Relation: premise.Relation, Roles: roles}, nil
}

// SubstituteGroup applies Substitute to every member of a premise group
// using the aligned GroupRoleMap, stopping at the first failure.
func SubstituteGroup(premises []Predicate, roleMaps GroupRoleMap, conclusion Proposition) ([]Predicate, error) {
	out := make([]Predicate, len(premises))
	for i, premise := range premises {
		rm, ok := roleMaps.At(i)
		if !ok {
			return nil, fmt.Errorf("%w: no role-map for premise member %d", ErrStructural, i)
		}
		substituted, err := Substitute(premise, rm, conclusion)
		if err != nil {
			return nil, err
		}
		out[i] = substituted
	}
	return out, nil
}
