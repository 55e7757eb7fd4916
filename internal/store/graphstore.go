package store

import (
	"fmt"
	"strconv"

	"firstorder-bp/internal/logic"
	"firstorder-bp/pkg/cache"
)

const (
	nsDomains   = "domains"
	nsEntities  = "entities"
	nsRelations = "relations"
	nsRules     = "rules"
	nsBackward  = "backward"
	nsTargets   = "targets"
	nsWeights   = "weights"

	domainsSetKey      = "all"
	weightsMapKey      = "values"
	implicationsSeqKey = "implications"
)

// GraphStore is the predicate graph's persistence surface: domain
// and entity registration, relation schemas, rule storage with a
// backward-link index keyed by conclusion search keys, and named inference
// targets. It is built once on top of any Store implementation.
type GraphStore struct {
	backend Store
	// ruleCache memoizes rule JSON -> logic.ImplicationFactor decoding.
	// Safe to cache unconditionally: a rule's content never changes once
	// written under its unique key.
	ruleCache *cache.LRU[string, logic.ImplicationFactor]
}

// defaultRuleCacheSize bounds the rule-decode LRU when the caller doesn't
// configure one.
const defaultRuleCacheSize = 10000

// NewGraphStore wraps backend with the predicate-graph operations.
func NewGraphStore(backend Store) *GraphStore {
	return NewGraphStoreSized(backend, defaultRuleCacheSize)
}

// NewGraphStoreSized wraps backend with the rule-decode cache bounded at
// cacheSize entries (0 or negative falls back to the default).
func NewGraphStoreSized(backend Store, cacheSize int) *GraphStore {
	if cacheSize <= 0 {
		cacheSize = defaultRuleCacheSize
	}
	return &GraphStore{
		backend:   backend,
		ruleCache: cache.New[string, logic.ImplicationFactor](&cache.Config{MaxEntries: cacheSize}),
	}
}

// RegisterDomain records d as a known domain, idempotently.
func (g *GraphStore) RegisterDomain(d logic.Domain) error {
	return g.backend.SetAdd(nsDomains, domainsSetKey, string(d))
}

// AllDomains returns every domain registered so far.
func (g *GraphStore) AllDomains() ([]logic.Domain, error) {
	members, err := g.backend.SetMembers(nsDomains, domainsSetKey)
	if err != nil {
		return nil, err
	}
	out := make([]logic.Domain, len(members))
	for i, m := range members {
		out[i] = logic.Domain(m)
	}
	return out, nil
}

// StoreEntity records entity as a member of its domain, which must have
// been registered first.
func (g *GraphStore) StoreEntity(e logic.Entity) error {
	domains, err := g.backend.SetMembers(nsDomains, domainsSetKey)
	if err != nil {
		return err
	}
	for _, d := range domains {
		if d == string(e.Domain) {
			return g.backend.SetAdd(nsEntities, string(e.Domain), e.Name)
		}
	}
	return fmt.Errorf("%w: entity %s/%s: domain not registered", logic.ErrStructural, e.Domain, e.Name)
}

// EntitiesInDomain lists every entity registered under domain.
func (g *GraphStore) EntitiesInDomain(d logic.Domain) ([]string, error) {
	return g.backend.SetMembers(nsEntities, string(d))
}

// RegisterRelation records a relation's fully-quantified role schema, so
// callers can validate a proposed ground proposition's shape before use.
func (g *GraphStore) RegisterRelation(schema logic.Predicate) error {
	data, err := marshalProposition(logic.NewProposition(schema))
	if err != nil {
		return err
	}
	return g.backend.KVPut(nsRelations, schema.Relation, string(data))
}

// RelationSchema retrieves the role schema registered for relation.
func (g *GraphStore) RelationSchema(relation string) (logic.Predicate, bool, error) {
	raw, ok, err := g.backend.KVGet(nsRelations, relation)
	if err != nil || !ok {
		return logic.Predicate{}, ok, err
	}
	prop, err := unmarshalProposition([]byte(raw))
	if err != nil {
		return logic.Predicate{}, false, err
	}
	return prop.Predicate, true, nil
}

// StorePredicateImplication persists rule under its unique key and indexes
// it under every search key derived from its conclusion (all non-empty
// role subsets), so a later lookup by any combination of bound conclusion
// roles finds it.
func (g *GraphStore) StorePredicateImplication(rule logic.ImplicationFactor) error {
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("store predicate implication: %w", err)
	}
	data, err := marshalRule(rule)
	if err != nil {
		return err
	}
	key := rule.UniqueKey()
	_, seen, err := g.backend.KVGet(nsRules, key)
	if err != nil {
		return err
	}
	if err := g.backend.KVPut(nsRules, key, string(data)); err != nil {
		return err
	}
	g.ruleCache.Set(key, rule)

	// The ordered global rule list only grows on first sight of a rule, so
	// re-storing (EnsureExistenceBacklinks is called per proposition) never
	// duplicates entries.
	if !seen {
		if err := g.backend.SeqPush(nsRules, implicationsSeqKey, key); err != nil {
			return err
		}
	}

	for _, searchKey := range rule.SearchKeys() {
		if err := g.backend.SetAdd(nsBackward, searchKey, key); err != nil {
			return err
		}
	}
	return nil
}

// AllImplications returns every stored rule in insertion order.
func (g *GraphStore) AllImplications() ([]logic.ImplicationFactor, error) {
	keys, err := g.backend.SeqGetAll(nsRules, implicationsSeqKey)
	if err != nil {
		return nil, err
	}
	rules := make([]logic.ImplicationFactor, 0, len(keys))
	for _, key := range keys {
		rule, err := g.loadRule(key)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// EnsureExistenceBacklinks stores the auto-generated exists(x) rule
// anchoring p, so that a proposition no declared rule concludes still has
// the always-true existence leaves upstream of it in the grounded graph.
// Idempotent: rule storage is keyed by the rule's unique key and the
// backward index is a set.
func (g *GraphStore) EnsureExistenceBacklinks(p logic.Proposition) error {
	rule, err := logic.ExistenceFactorFor(p)
	if err != nil {
		return err
	}
	return g.StorePredicateImplication(rule)
}

// PredicateBackwardLinks returns every rule indexed under searchKey: the
// candidate rules that could have produced a conclusion matching that
// partially-quantified shape.
func (g *GraphStore) PredicateBackwardLinks(searchKey string) ([]logic.ImplicationFactor, error) {
	ruleKeys, err := g.backend.SetMembers(nsBackward, searchKey)
	if err != nil {
		return nil, err
	}
	rules := make([]logic.ImplicationFactor, 0, len(ruleKeys))
	for _, key := range ruleKeys {
		rule, err := g.loadRule(key)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (g *GraphStore) loadRule(key string) (logic.ImplicationFactor, error) {
	if rule, ok := g.ruleCache.Get(key); ok {
		return rule, nil
	}
	raw, ok, err := g.backend.KVGet(nsRules, key)
	if err != nil {
		return logic.ImplicationFactor{}, err
	}
	if !ok {
		return logic.ImplicationFactor{}, fmt.Errorf("rule %q not found", key)
	}
	rule, err := unmarshalRule([]byte(raw))
	if err != nil {
		return logic.ImplicationFactor{}, err
	}
	g.ruleCache.Set(key, rule)
	return rule, nil
}

// RegisterTarget names a ground proposition as an inference target, so a
// later run can fetch it by name instead of re-specifying it.
func (g *GraphStore) RegisterTarget(name string, target logic.Proposition) error {
	data, err := marshalProposition(target)
	if err != nil {
		return err
	}
	return g.backend.KVPut(nsTargets, name, string(data))
}

// GetTarget retrieves the proposition registered under name.
func (g *GraphStore) GetTarget(name string) (logic.Proposition, bool, error) {
	raw, ok, err := g.backend.KVGet(nsTargets, name)
	if err != nil || !ok {
		return logic.Proposition{}, ok, err
	}
	prop, err := unmarshalProposition([]byte(raw))
	if err != nil {
		return logic.Proposition{}, false, err
	}
	return prop, true, nil
}

// SaveWeights persists every factor-model weight under the "weights" key,
// one hash field per (rule.UniqueKey, sign, class) feature name, gated by
// config.FeatureFlags.PersistWeights so training can resume across runs
// instead of reinitializing from the seed.
func (g *GraphStore) SaveWeights(weights map[string]float64) error {
	for feature, value := range weights {
		encoded := strconv.FormatFloat(value, 'g', -1, 64)
		if err := g.backend.MapPut(nsWeights, weightsMapKey, feature, encoded); err != nil {
			return fmt.Errorf("saving weight %q: %w", feature, err)
		}
	}
	return nil
}

// LoadWeights retrieves every weight SaveWeights has persisted so far,
// keyed by the same feature names. Returns an empty map, not an error, if
// nothing has been persisted yet.
func (g *GraphStore) LoadWeights() (map[string]float64, error) {
	raw, err := g.backend.MapGetAll(nsWeights, weightsMapKey)
	if err != nil {
		return nil, fmt.Errorf("loading weights: %w", err)
	}
	out := make(map[string]float64, len(raw))
	for feature, encoded := range raw {
		value, err := strconv.ParseFloat(encoded, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing persisted weight %q=%q: %w", feature, encoded, err)
		}
		out[feature] = value
	}
	return out, nil
}
