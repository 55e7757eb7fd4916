package logic

import (
	"sort"
	"strings"
)

// relationInterner deduplicates relation-name strings, which repeat across
// every grounded proposition of a given predicate shape. Role names are not
// interned.
var relationInterner = NewStringInterner()

// Predicate is a relation name plus an ordered role list. Role order is the
// declaration order; structural equality and hashing treat roles as a set
// keyed by role name, so declaration order does not affect identity.
type Predicate struct {
	Relation string
	Roles    []Role
}

// NewPredicate interns the relation name and returns a Predicate over roles.
func NewPredicate(relation string, roles ...Role) Predicate {
	return Predicate{Relation: relationInterner.Intern(relation), Roles: roles}
}

// IsGround reports whether every role argument is a constant.
func (p Predicate) IsGround() bool {
	for _, r := range p.Roles {
		if r.Argument.IsVariable() {
			return false
		}
	}
	return true
}

// Role returns the role with the given name, if present.
func (p Predicate) Role(name string) (Role, bool) {
	for _, r := range p.Roles {
		if r.Name == name {
			return r, true
		}
	}
	return Role{}, false
}

// RoleNames returns the predicate's role names in declaration order.
func (p Predicate) RoleNames() []string {
	names := make([]string, len(p.Roles))
	for i, r := range p.Roles {
		names[i] = r.Name
	}
	return names
}

// StructurallyEqual reports whether p and other have the same relation name
// and the same role argument kind/domain at each role name, compared by
// role name rather than position.
func (p Predicate) StructurallyEqual(other Predicate) bool {
	if p.Relation != other.Relation || len(p.Roles) != len(other.Roles) {
		return false
	}
	for _, r := range p.Roles {
		or, ok := other.Role(r.Name)
		if !ok {
			return false
		}
		if r.Argument.IsConstant() != or.Argument.IsConstant() {
			return false
		}
		if r.Argument.Domain() != or.Argument.Domain() {
			return false
		}
	}
	return true
}

// sortedRoles returns a copy of p.Roles sorted by role name, used wherever
// canonical ordering matters (hashing, search-key generation).
func (p Predicate) sortedRoles() []Role {
	roles := make([]Role, len(p.Roles))
	copy(roles, p.Roles)
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles
}

// HashString is the canonical serialization used as identity and storage
// key: relation[role1=arg1,role2=arg2,...] sorted by role name.
func (p Predicate) HashString() string {
	roles := p.sortedRoles()
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = r.searchString()
	}
	return p.Relation + "[" + strings.Join(parts, ",") + "]"
}

// Quantify produces a predicate with arguments whose role name is in keep
// replaced by variables of matching domain, and all other roles left as-is.
// Used to build search keys for rule lookup and, with keep=all role
// names, to turn any predicate into its fully-quantified (all-variable)
// shape for rule storage.
func (p Predicate) Quantify(keep map[string]bool) Predicate {
	roles := make([]Role, len(p.Roles))
	for i, r := range p.Roles {
		if keep[r.Name] {
			roles[i] = Role{Name: r.Name, Argument: r.Argument.quantify()}
		} else {
			roles[i] = r
		}
	}
	return Predicate{Relation: p.Relation, Roles: roles}
}

// FullyQuantified returns p with every role argument replaced by a variable.
func (p Predicate) FullyQuantified() Predicate {
	keep := make(map[string]bool, len(p.Roles))
	for _, r := range p.Roles {
		keep[r.Name] = true
	}
	return p.Quantify(keep)
}

// SearchKeys enumerates the lookup keys this predicate is indexed under, or
// should be queried by: one key per non-empty subset of role names, with
// that subset's roles wildcarded (quantified) and the rest left as-is. For
// a rule's conclusion template this produces the keys it is stored under;
// for a ground query proposition it produces the keys to probe,
// wildcarding progressively more of the bound roles so a partially-fixed
// rule conclusion (one with some constant roles) is still found.
func (p Predicate) SearchKeys() []string {
	names := p.RoleNames()
	keys := make([]string, 0, (1<<len(names))-1)
	for mask := 1; mask < (1 << len(names)); mask++ {
		keep := make(map[string]bool, len(names))
		for i, name := range names {
			if mask&(1<<i) != 0 {
				keep[name] = true
			}
		}
		keys = append(keys, p.Quantify(keep).HashString())
	}
	return keys
}

// existenceRelation names the distinguished unary predicate anchoring
// otherwise-unbound propositions at probability 1.
const existenceRelation = "exists"

// IsExistence reports whether p is the distinguished exists(x) predicate.
func (p Predicate) IsExistence() bool {
	return p.Relation == existenceRelation
}

// NewExistence builds the exists(x) predicate binding arg under the fixed
// role name "x". d is not used; the role's domain is arg's own.
func NewExistence(d Domain, arg Argument) Predicate {
	return NewPredicate(existenceRelation, Role{Name: "x", Argument: arg})
}
