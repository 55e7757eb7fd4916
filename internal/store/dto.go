package store

import (
	"encoding/json"
	"fmt"

	"firstorder-bp/internal/logic"
)

// The logic package keeps Argument's fields unexported so callers cannot
// construct an invalid half-ground/half-typed value; this file converts
// through its public constructors and accessors instead of reaching into
// its internals, so persistence stays a client of that package like any
// other caller.

type roleDTO struct {
	Name     string `json:"name"`
	Domain   string `json:"domain"`
	Constant bool   `json:"constant"`
	Entity   string `json:"entity,omitempty"`
}

type predicateDTO struct {
	Relation string    `json:"relation"`
	Roles    []roleDTO `json:"roles"`
}

func toRoleDTO(r logic.Role) roleDTO {
	dto := roleDTO{Name: r.Name, Domain: string(r.Argument.Domain()), Constant: r.Argument.IsConstant()}
	if dto.Constant {
		dto.Entity = r.Argument.EntityName()
	}
	return dto
}

func (d roleDTO) toRole() logic.Role {
	var arg logic.Argument
	if d.Constant {
		arg = logic.NewConstant(logic.Domain(d.Domain), d.Entity)
	} else {
		arg = logic.NewVariable(logic.Domain(d.Domain))
	}
	return logic.Role{Name: d.Name, Argument: arg}
}

func toPredicateDTO(p logic.Predicate) predicateDTO {
	roles := make([]roleDTO, len(p.Roles))
	for i, r := range p.Roles {
		roles[i] = toRoleDTO(r)
	}
	return predicateDTO{Relation: p.Relation, Roles: roles}
}

func (d predicateDTO) toPredicate() logic.Predicate {
	roles := make([]logic.Role, len(d.Roles))
	for i, r := range d.Roles {
		roles[i] = r.toRole()
	}
	return logic.NewPredicate(d.Relation, roles...)
}

type roleMapDTO map[string]string

type ruleDTO struct {
	Premises   []predicateDTO `json:"premises"`
	RoleMaps   []roleMapDTO   `json:"role_maps"`
	Conclusion predicateDTO   `json:"conclusion"`
}

func marshalRule(rule logic.ImplicationFactor) ([]byte, error) {
	dto := ruleDTO{Conclusion: toPredicateDTO(rule.Conclusion)}
	dto.Premises = make([]predicateDTO, len(rule.Premises))
	for i, p := range rule.Premises {
		dto.Premises[i] = toPredicateDTO(p)
	}
	dto.RoleMaps = make([]roleMapDTO, len(rule.RoleMaps.Maps))
	for i, m := range rule.RoleMaps.Maps {
		dto.RoleMaps[i] = roleMapDTO(m)
	}
	return json.Marshal(dto)
}

func unmarshalRule(data []byte) (logic.ImplicationFactor, error) {
	var dto ruleDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return logic.ImplicationFactor{}, fmt.Errorf("unmarshal rule: %w", err)
	}
	premises := make([]logic.Predicate, len(dto.Premises))
	for i, p := range dto.Premises {
		premises[i] = p.toPredicate()
	}
	roleMaps := make([]logic.RoleMap, len(dto.RoleMaps))
	for i, m := range dto.RoleMaps {
		roleMaps[i] = logic.RoleMap(m)
	}
	return logic.NewImplicationFactor(premises, logic.NewGroupRoleMap(roleMaps...), dto.Conclusion.toPredicate())
}

func marshalProposition(p logic.Proposition) ([]byte, error) {
	return json.Marshal(toPredicateDTO(p.Predicate))
}

func unmarshalProposition(data []byte) (logic.Proposition, error) {
	var dto predicateDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return logic.Proposition{}, fmt.Errorf("unmarshal proposition: %w", err)
	}
	return logic.NewProposition(dto.toPredicate()), nil
}
