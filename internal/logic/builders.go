package logic

// PredicateBuilder provides a fluent API for assembling a Predicate one
// role at a time, mirroring the builder idiom used elsewhere in this
// codebase for multi-field value construction.
type PredicateBuilder struct {
	relation string
	roles    []Role
}

// NewPredicateBuilder starts a builder for the given relation name.
func NewPredicateBuilder(relation string) *PredicateBuilder {
	return &PredicateBuilder{relation: relation}
}

// Const adds a constant-bound role.
func (b *PredicateBuilder) Const(role string, d Domain, entity string) *PredicateBuilder {
	b.roles = append(b.roles, Role{Name: role, Argument: NewConstant(d, entity)})
	return b
}

// Var adds a variable role ranging over d.
func (b *PredicateBuilder) Var(role string, d Domain) *PredicateBuilder {
	b.roles = append(b.roles, Role{Name: role, Argument: NewVariable(d)})
	return b
}

// Build finalizes the predicate.
func (b *PredicateBuilder) Build() Predicate {
	return NewPredicate(b.relation, b.roles...)
}

// RuleBuilder assembles an ImplicationFactor premise-by-premise.
type RuleBuilder struct {
	premises []Predicate
	roleMaps []RoleMap
}

// NewRuleBuilder starts an empty rule builder.
func NewRuleBuilder() *RuleBuilder {
	return &RuleBuilder{}
}

// Premise adds a premise predicate bound to the conclusion via m.
func (b *RuleBuilder) Premise(p Predicate, m RoleMap) *RuleBuilder {
	b.premises = append(b.premises, p)
	b.roleMaps = append(b.roleMaps, m)
	return b
}

// Concludes finalizes the rule with the given conclusion, validating the
// role-map/domain invariants before returning.
func (b *RuleBuilder) Concludes(conclusion Predicate) (ImplicationFactor, error) {
	return NewImplicationFactor(b.premises, NewGroupRoleMap(b.roleMaps...), conclusion)
}
