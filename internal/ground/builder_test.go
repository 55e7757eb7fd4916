package ground

import (
	"testing"

	"firstorder-bp/internal/logic"
	"firstorder-bp/internal/store"
)

func mustRule(t *testing.T, premises []logic.Predicate, roleMaps []logic.RoleMap, conclusion logic.Predicate) logic.ImplicationFactor {
	t.Helper()
	rule, err := logic.NewImplicationFactor(premises, logic.NewGroupRoleMap(roleMaps...), conclusion)
	if err != nil {
		t.Fatalf("NewImplicationFactor() error = %v", err)
	}
	return rule
}

func TestBuildGroundsOneLevelRule(t *testing.T) {
	gs := store.NewGraphStore(store.NewMemoryStore())

	// man(X) => mortal(X)
	premise := logic.NewPredicate("man", logic.Role{Name: "subject", Argument: logic.NewVariable("Man")})
	conclusion := logic.NewPredicate("mortal", logic.Role{Name: "subject", Argument: logic.NewVariable("Man")})
	rule := mustRule(t, []logic.Predicate{premise}, []logic.RoleMap{{"subject": "subject"}}, conclusion)
	if err := gs.StorePredicateImplication(rule); err != nil {
		t.Fatalf("StorePredicateImplication() error = %v", err)
	}

	target := logic.NewProposition(logic.NewPredicate("mortal",
		logic.Role{Name: "subject", Argument: logic.NewConstant("Man", "socrates")}))

	model, err := NewBuilder(gs).Build(target)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	targetHash := logic.SingleNode(target).Hash()
	children := model.BackwardAdj[targetHash]
	if len(children) != 1 {
		t.Fatalf("expected target to have 1 child (the premise group), got %d", len(children))
	}
	groupNode, ok := model.Node(children[0])
	if !ok || groupNode.IsSingle() {
		t.Fatalf("expected target's child to be a group node")
	}

	grandchildren := model.BackwardAdj[groupNode.Hash()]
	if len(grandchildren) != 1 {
		t.Fatalf("expected group node to have 1 member, got %d", len(grandchildren))
	}
	memberNode, ok := model.Node(grandchildren[0])
	if !ok || !memberNode.IsSingle() {
		t.Fatalf("expected group member to be a single node")
	}
	subj, _ := memberNode.Single().Predicate.Role("subject")
	if subj.Argument.EntityName() != "socrates" {
		t.Errorf("grounded premise subject = %q, want socrates", subj.Argument.EntityName())
	}

	if len(model.Roots) != 1 || model.Roots[0] != memberNode.Hash() {
		t.Errorf("expected the grounded premise to be the sole root, got %v", model.Roots)
	}
	if len(model.BFSOrder) != 3 {
		t.Errorf("BFSOrder has %d entries, want 3 (target, group, premise)", len(model.BFSOrder))
	}
}

// TestBuildIsBipartite stores a two-level rule set and checks every edge in
// the grounded graph connects a Single to a Group.
func TestBuildIsBipartite(t *testing.T) {
	gs := store.NewGraphStore(store.NewMemoryStore())

	man := logic.NewPredicate("man", logic.Role{Name: "subject", Argument: logic.NewVariable("Man")})
	mortal := logic.NewPredicate("mortal", logic.Role{Name: "subject", Argument: logic.NewVariable("Man")})
	buried := logic.NewPredicate("buried", logic.Role{Name: "subject", Argument: logic.NewVariable("Man")})
	for _, r := range []struct {
		premises []logic.Predicate
		maps     []logic.RoleMap
		concl    logic.Predicate
	}{
		{[]logic.Predicate{man}, []logic.RoleMap{{"subject": "subject"}}, mortal},
		{[]logic.Predicate{man, mortal}, []logic.RoleMap{{"subject": "subject"}, {"subject": "subject"}}, buried},
	} {
		rule := mustRule(t, r.premises, r.maps, r.concl)
		if err := gs.StorePredicateImplication(rule); err != nil {
			t.Fatalf("StorePredicateImplication() error = %v", err)
		}
	}

	target := logic.NewProposition(logic.NewPredicate("buried",
		logic.Role{Name: "subject", Argument: logic.NewConstant("Man", "socrates")}))
	model, err := NewBuilder(gs).Build(target)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	for parent, children := range model.BackwardAdj {
		parentNode, ok := model.Node(parent)
		if !ok {
			t.Fatalf("adjacency references unknown node %q", parent)
		}
		for _, child := range children {
			childNode, ok := model.Node(child)
			if !ok {
				t.Fatalf("adjacency references unknown node %q", child)
			}
			if parentNode.IsSingle() == childNode.IsSingle() {
				t.Errorf("edge %s -> %s connects two nodes of the same kind", parent, child)
			}
		}
	}
}

func TestBuildLeavesBareEvidenceAsRoot(t *testing.T) {
	gs := store.NewGraphStore(store.NewMemoryStore())
	target := logic.NewProposition(logic.NewPredicate("man",
		logic.Role{Name: "subject", Argument: logic.NewConstant("Man", "socrates")}))

	model, err := NewBuilder(gs).Build(target)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(model.Roots) != 1 {
		t.Fatalf("expected target with no producing rule to be its own root, got %v", model.Roots)
	}
}

func TestBuildExistenceBacklinkAnchorsBareProposition(t *testing.T) {
	gs := store.NewGraphStore(store.NewMemoryStore())
	target := logic.NewProposition(logic.NewPredicate("man",
		logic.Role{Name: "subject", Argument: logic.NewConstant("Man", "socrates")}))
	if err := gs.EnsureExistenceBacklinks(target); err != nil {
		t.Fatalf("EnsureExistenceBacklinks() error = %v", err)
	}

	model, err := NewBuilder(gs).Build(target)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	parents := model.BackwardAdj[logic.SingleNode(target).Hash()]
	if len(parents) != 1 {
		t.Fatalf("expected backlinked target to have 1 parent group, got %d", len(parents))
	}
	members := model.BackwardAdj[parents[0]]
	if len(members) != 1 {
		t.Fatalf("expected existence group to have 1 member, got %d", len(members))
	}
	memberNode, ok := model.Node(members[0])
	if !ok || !memberNode.IsSingle() || !memberNode.Single().IsExistence() {
		t.Fatalf("expected the group member to be an existence single, got %v", members[0])
	}
	if len(model.Roots) != 1 || model.Roots[0] != memberNode.Hash() {
		t.Errorf("expected the existence single to be the sole root, got %v", model.Roots)
	}
}

func TestBuildExistencePredicateIsLeaf(t *testing.T) {
	gs := store.NewGraphStore(store.NewMemoryStore())
	target := logic.NewExistence("Man", logic.NewConstant("Man", "socrates"))

	model, err := NewBuilder(gs).Build(logic.NewProposition(target))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(model.Roots) != 1 {
		t.Fatalf("expected existence predicate to be a leaf root, got %v", model.Roots)
	}
}
