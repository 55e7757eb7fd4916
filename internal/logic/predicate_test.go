package logic

import (
	"errors"
	"testing"
)

const domMan Domain = "Man"
const domWoman Domain = "Woman"

func TestPredicateHashStringSortsByRoleName(t *testing.T) {
	p1 := NewPredicate("likes",
		Role{Name: "object", Argument: NewConstant(domWoman, "alice")},
		Role{Name: "subject", Argument: NewConstant(domMan, "bob")},
	)
	p2 := NewPredicate("likes",
		Role{Name: "subject", Argument: NewConstant(domMan, "bob")},
		Role{Name: "object", Argument: NewConstant(domWoman, "alice")},
	)
	if p1.HashString() != p2.HashString() {
		t.Fatalf("expected role-order-independent hash, got %q vs %q", p1.HashString(), p2.HashString())
	}
	want := "likes[object=alice,subject=bob]"
	if p1.HashString() != want {
		t.Errorf("HashString() = %q, want %q", p1.HashString(), want)
	}
}

func TestPredicateIsGround(t *testing.T) {
	ground := NewPredicate("likes", Role{Name: "subject", Argument: NewConstant(domMan, "bob")})
	if !ground.IsGround() {
		t.Error("expected ground predicate to report IsGround")
	}
	unground := NewPredicate("likes", Role{Name: "subject", Argument: NewVariable(domMan)})
	if unground.IsGround() {
		t.Error("expected predicate with a variable role to report !IsGround")
	}
}

func TestPredicateQuantify(t *testing.T) {
	p := NewPredicate("likes",
		Role{Name: "subject", Argument: NewConstant(domMan, "bob")},
		Role{Name: "object", Argument: NewConstant(domWoman, "alice")},
	)
	q := p.Quantify(map[string]bool{"subject": true})
	subj, _ := q.Role("subject")
	if !subj.Argument.IsVariable() {
		t.Error("expected subject role to become a variable")
	}
	obj, _ := q.Role("object")
	if !obj.Argument.IsConstant() {
		t.Error("expected object role to remain constant")
	}
}

func TestPredicateStructurallyEqual(t *testing.T) {
	a := NewPredicate("likes", Role{Name: "subject", Argument: NewVariable(domMan)})
	b := NewPredicate("likes", Role{Name: "subject", Argument: NewVariable(domMan)})
	if !a.StructurallyEqual(b) {
		t.Error("expected structurally identical predicates to be equal")
	}
	c := NewPredicate("likes", Role{Name: "subject", Argument: NewConstant(domMan, "bob")})
	if a.StructurallyEqual(c) {
		t.Error("expected variable-vs-constant role to break structural equality")
	}
}

func TestExistencePredicate(t *testing.T) {
	p := NewExistence(domMan, NewConstant(domMan, "bob"))
	if !p.IsExistence() {
		t.Error("expected exists(x) predicate to report IsExistence")
	}
}

func TestExistenceFactorFor(t *testing.T) {
	p := NewProposition(NewPredicate("likes",
		Role{Name: "subject", Argument: NewConstant(domMan, "bob")},
		Role{Name: "object", Argument: NewConstant(domWoman, "alice")},
	))
	rule, err := ExistenceFactorFor(p)
	if err != nil {
		t.Fatalf("ExistenceFactorFor() error = %v", err)
	}
	if len(rule.Premises) != 2 {
		t.Fatalf("expected one exists premise per role, got %d", len(rule.Premises))
	}
	for _, premise := range rule.Premises {
		if !premise.IsExistence() {
			t.Errorf("premise %s is not an existence predicate", premise.HashString())
		}
	}

	factor, ok, err := ExtractFactor(rule, p)
	if err != nil || !ok {
		t.Fatalf("ExtractFactor() ok=%v err=%v", ok, err)
	}
	grounded := map[string]bool{}
	for _, member := range factor.Premise.Members {
		if !member.IsExistence() {
			t.Errorf("grounded member %s is not an existence proposition", member.Hash())
		}
		x, _ := member.Predicate.Role("x")
		grounded[x.Argument.EntityName()] = true
	}
	if !grounded["bob"] || !grounded["alice"] {
		t.Errorf("grounded existence members = %v, want bob and alice", grounded)
	}
}

func TestExistenceFactorForRejectsExistenceProposition(t *testing.T) {
	p := NewProposition(NewExistence(domMan, NewConstant(domMan, "bob")))
	if _, err := ExistenceFactorFor(p); !errors.Is(err, ErrStructural) {
		t.Fatalf("ExistenceFactorFor(exists) error = %v, want ErrStructural", err)
	}
}

func TestSubstituteBindsVariableFromConclusion(t *testing.T) {
	premise := NewPredicate("man", Role{Name: "subject", Argument: NewVariable(domMan)})
	conclusion := NewProposition(NewPredicate("likes",
		Role{Name: "subject", Argument: NewConstant(domMan, "bob")},
		Role{Name: "object", Argument: NewConstant(domWoman, "alice")},
	))
	roleMap := RoleMap{"subject": "subject"}

	got, err := Substitute(premise, roleMap, conclusion)
	if err != nil {
		t.Fatalf("Substitute() error = %v", err)
	}
	subj, _ := got.Role("subject")
	if subj.Argument.EntityName() != "bob" {
		t.Errorf("substituted subject = %q, want bob", subj.Argument.EntityName())
	}
}

func TestSubstituteDomainMismatch(t *testing.T) {
	premise := NewPredicate("man", Role{Name: "subject", Argument: NewVariable(domMan)})
	conclusion := NewProposition(NewPredicate("likes",
		Role{Name: "object", Argument: NewConstant(domWoman, "alice")},
	))
	roleMap := RoleMap{"subject": "object"}

	_, err := Substitute(premise, roleMap, conclusion)
	if !errors.Is(err, ErrUnification) || !errors.Is(err, ErrDomainMismatch) {
		t.Fatalf("Substitute() error = %v, want ErrUnification+ErrDomainMismatch", err)
	}
}

func TestSubstituteMissingRoleMapEntry(t *testing.T) {
	premise := NewPredicate("man", Role{Name: "subject", Argument: NewVariable(domMan)})
	conclusion := NewProposition(NewPredicate("likes",
		Role{Name: "subject", Argument: NewConstant(domMan, "bob")},
	))
	_, err := Substitute(premise, RoleMap{}, conclusion)
	if !errors.Is(err, ErrUnification) || !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("Substitute() error = %v, want ErrUnification+ErrUnknownRole", err)
	}
}

func TestImplicationFactorValidateRejectsUnboundPremiseVariable(t *testing.T) {
	premise := NewPredicate("man", Role{Name: "subject", Argument: NewVariable(domMan)})
	conclusion := NewPredicate("likes", Role{Name: "object", Argument: NewConstant(domWoman, "alice")})
	_, err := NewImplicationFactor([]Predicate{premise}, NewGroupRoleMap(RoleMap{}), conclusion)
	if !errors.Is(err, ErrStructural) {
		t.Fatalf("NewImplicationFactor() error = %v, want ErrStructural", err)
	}
}

func TestImplicationFactorSearchKeysEnumeratesAllNonEmptySubsets(t *testing.T) {
	premise := NewPredicate("man", Role{Name: "subject", Argument: NewVariable(domMan)})
	conclusion := NewPredicate("likes",
		Role{Name: "subject", Argument: NewVariable(domMan)},
		Role{Name: "object", Argument: NewVariable(domWoman)},
	)
	rule, err := NewImplicationFactor([]Predicate{premise}, NewGroupRoleMap(RoleMap{"subject": "subject"}), conclusion)
	if err != nil {
		t.Fatalf("NewImplicationFactor() error = %v", err)
	}
	keys := rule.SearchKeys()
	if len(keys) != 3 {
		t.Fatalf("SearchKeys() returned %d keys, want 3 (all non-empty subsets of 2 roles)", len(keys))
	}
}

func TestNewImplicationFactorRejectsDomainMismatchedRoleMap(t *testing.T) {
	premise := NewPredicate("man", Role{Name: "subject", Argument: NewVariable(domMan)})
	conclusion := NewPredicate("likes",
		Role{Name: "subject", Argument: NewVariable(domMan)},
		Role{Name: "object", Argument: NewVariable(domWoman)},
	)
	rule, err := NewImplicationFactor([]Predicate{premise}, NewGroupRoleMap(RoleMap{"subject": "object"}), conclusion)
	if err == nil {
		t.Fatalf("expected NewImplicationFactor to reject a domain-mismatched role-map at construction")
	}
	_ = rule
}

func TestExtractFactorSucceeds(t *testing.T) {
	premise := NewPredicate("man", Role{Name: "subject", Argument: NewVariable(domMan)})
	conclusion := NewPredicate("likes",
		Role{Name: "subject", Argument: NewVariable(domMan)},
		Role{Name: "object", Argument: NewVariable(domWoman)},
	)
	rule, err := NewImplicationFactor([]Predicate{premise}, NewGroupRoleMap(RoleMap{"subject": "subject"}), conclusion)
	if err != nil {
		t.Fatalf("NewImplicationFactor() error = %v", err)
	}

	ground := NewProposition(NewPredicate("likes",
		Role{Name: "subject", Argument: NewConstant(domMan, "bob")},
		Role{Name: "object", Argument: NewConstant(domWoman, "alice")},
	))
	factor, ok, err := ExtractFactor(rule, ground)
	if err != nil {
		t.Fatalf("ExtractFactor() error = %v", err)
	}
	if !ok {
		t.Fatal("ExtractFactor() ok = false, want true")
	}
	if factor.Premise.Len() != 1 {
		t.Fatalf("factor premise has %d members, want 1", factor.Premise.Len())
	}
	gotSubj, _ := factor.Premise.Members[0].Predicate.Role("subject")
	if gotSubj.Argument.EntityName() != "bob" {
		t.Errorf("grounded premise subject = %q, want bob", gotSubj.Argument.EntityName())
	}
}

func TestPropositionGroupHashIsOrderInsensitive(t *testing.T) {
	a := NewProposition(NewPredicate("man", Role{Name: "subject", Argument: NewConstant(domMan, "bob")}))
	b := NewProposition(NewPredicate("woman", Role{Name: "subject", Argument: NewConstant(domWoman, "alice")}))

	g1 := NewPropositionGroup(a, b)
	g2 := NewPropositionGroup(b, a)
	if g1.Hash() != g2.Hash() {
		t.Errorf("expected order-insensitive group hash, got %q vs %q", g1.Hash(), g2.Hash())
	}
}

func TestStringInternerReturnsCanonicalInstance(t *testing.T) {
	in := NewStringInterner()
	a := in.Intern("likes")
	b := in.Intern("likes")
	if a != b {
		t.Errorf("Intern() not stable across calls: %q vs %q", a, b)
	}
	if in.Size() != 1 {
		t.Errorf("Size() = %d, want 1", in.Size())
	}
}

func TestRuleBuilder(t *testing.T) {
	premise := NewPredicateBuilder("man").Var("subject", domMan).Build()
	conclusion := NewPredicateBuilder("likes").
		Var("subject", domMan).
		Var("object", domWoman).
		Build()

	rule, err := NewRuleBuilder().
		Premise(premise, RoleMap{"subject": "subject"}).
		Concludes(conclusion)
	if err != nil {
		t.Fatalf("RuleBuilder chain error = %v", err)
	}
	if rule.UniqueKey() == "" {
		t.Error("expected non-empty UniqueKey")
	}
}
