package logic

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ImplicationFactor is a universally-quantified rule: premises (each with
// its own role-map into the conclusion) imply the conclusion. Every
// variable appearing in a premise must be reachable from the conclusion
// via that premise's role-map, so that grounding the conclusion fully
// determines every premise instance.
type ImplicationFactor struct {
	Premises   []Predicate
	RoleMaps   GroupRoleMap
	Conclusion Predicate
}

// NewImplicationFactor builds a rule and checks it with Validate; callers
// should check the returned error before registering the rule with a store.
func NewImplicationFactor(premises []Predicate, roleMaps GroupRoleMap, conclusion Predicate) (ImplicationFactor, error) {
	rule := ImplicationFactor{Premises: premises, RoleMaps: roleMaps, Conclusion: conclusion}
	if err := rule.Validate(); err != nil {
		return ImplicationFactor{}, err
	}
	return rule, nil
}

// Validate checks the rule's structural invariants: one role-map per
// premise, and every variable role of every premise bound to some
// conclusion role of matching domain.
func (r ImplicationFactor) Validate() error {
	if len(r.Premises) != len(r.RoleMaps.Maps) {
		return fmt.Errorf("%w: rule has %d premises but %d role-maps", ErrStructural, len(r.Premises), len(r.RoleMaps.Maps))
	}
	for i, premise := range r.Premises {
		roleMap := r.RoleMaps.Maps[i]
		for _, role := range premise.Roles {
			if role.Argument.IsConstant() {
				continue
			}
			targetName, ok := roleMap.Lookup(role.Name)
			if !ok {
				return fmt.Errorf("%w: premise %d role %q is unbound: no entry in role-map", ErrStructural, i, role.Name)
			}
			targetRole, ok := r.Conclusion.Role(targetName)
			if !ok {
				return fmt.Errorf("%w: premise %d role %q maps to unknown conclusion role %q", ErrStructural, i, role.Name, targetName)
			}
			if targetRole.Argument.Domain() != role.Argument.Domain() {
				return fmt.Errorf("%w: premise %d role %q (domain %s) maps to conclusion role %q (domain %s)",
					ErrDomainMismatch, i, role.Name, role.Argument.Domain(), targetName, targetRole.Argument.Domain())
			}
		}
	}
	return nil
}

// UniqueKey is the rule's feature identity for the log-linear model:
// a deterministic string built from the conclusion relation, each premise
// relation in order, and the role-map bindings, so that two structurally
// distinct rules never collide and the same rule always serializes the
// same way regardless of map iteration order.
func (r ImplicationFactor) UniqueKey() string {
	var b strings.Builder
	b.WriteString(r.Conclusion.HashString())
	b.WriteString("<=")
	for i, premise := range r.Premises {
		if i > 0 {
			b.WriteString("&")
		}
		b.WriteString(premise.HashString())
		b.WriteString("@")
		b.WriteString(r.RoleMaps.Maps[i].searchString())
	}
	return b.String()
}

// searchString renders a RoleMap deterministically: sorted "from->to" pairs.
func (m RoleMap) searchString() string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s->%s", k, m[k])
	}
	return strings.Join(parts, ",")
}

// SearchKeys enumerates the keys this rule is indexed under, delegating to
// the conclusion predicate's own SearchKeys so storage and query sides
// always enumerate subsets the same way: all non-empty role-name subsets.
func (r ImplicationFactor) SearchKeys() []string {
	return r.Conclusion.SearchKeys()
}

// ExistenceFactorFor builds the auto-generated existence backlink rule
// for p: one exists(x) premise per role of p, each bound to that role of
// p's fully-quantified predicate. Storing this rule
// anchors p in the grounded graph through the always-true existence leaves
// even when no declared rule concludes it.
func ExistenceFactorFor(p Proposition) (ImplicationFactor, error) {
	if p.IsExistence() {
		return ImplicationFactor{}, newStructuralErrorf("existence backlink for %s: exists(x) cannot anchor itself", p.Hash())
	}
	roles := p.Predicate.sortedRoles()
	premises := make([]Predicate, len(roles))
	maps := make([]RoleMap, len(roles))
	for i, r := range roles {
		d := r.Argument.Domain()
		premises[i] = NewExistence(d, NewVariable(d))
		maps[i] = RoleMap{"x": r.Name}
	}
	return NewImplicationFactor(premises, NewGroupRoleMap(maps...), p.Predicate.FullyQuantified())
}

// PropositionFactor is a grounded instance of an ImplicationFactor: its
// premises have all been substituted against a specific ground conclusion.
type PropositionFactor struct {
	Rule       ImplicationFactor
	Premise    PropositionGroup
	Conclusion Proposition
}

// ExtractFactor grounds rule against conclusion. It returns (factor, true,
// nil) on success. Unification failures are reported as (_, false, nil):
// a failed substitution just drops that candidate rule rather than
// propagating an error. Any other error (a structural problem in the rule
// itself) is returned as-is.
func ExtractFactor(rule ImplicationFactor, conclusion Proposition) (PropositionFactor, bool, error) {
	substituted, err := SubstituteGroup(rule.Premises, rule.RoleMaps, conclusion)
	if err != nil {
		if errors.Is(err, ErrUnification) {
			return PropositionFactor{}, false, nil
		}
		return PropositionFactor{}, false, err
	}
	members := make([]Proposition, len(substituted))
	for i, p := range substituted {
		members[i] = NewProposition(p)
	}
	return PropositionFactor{
		Rule:       rule,
		Premise:    NewPropositionGroup(members...),
		Conclusion: conclusion,
	}, true, nil
}
