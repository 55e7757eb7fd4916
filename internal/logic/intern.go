package logic

import "sync"

// StringInterner deduplicates repeated strings. Relation names and role
// names recur across every ground proposition of a given shape, so a single
// canonical instance per distinct string keeps proposition-heavy scenarios
// (thousands of entities per domain) from retaining many copies of the same
// bytes.
type StringInterner struct {
	mu      sync.RWMutex
	strings map[string]string
}

// NewStringInterner creates an empty interning pool.
func NewStringInterner() *StringInterner {
	return &StringInterner{strings: make(map[string]string, 64)}
}

// Intern returns the canonical instance of s, registering it on first sight.
func (si *StringInterner) Intern(s string) string {
	if s == "" {
		return ""
	}

	si.mu.RLock()
	if canonical, ok := si.strings[s]; ok {
		si.mu.RUnlock()
		return canonical
	}
	si.mu.RUnlock()

	si.mu.Lock()
	defer si.mu.Unlock()
	if canonical, ok := si.strings[s]; ok {
		return canonical
	}
	si.strings[s] = s
	return s
}

// Size returns the number of distinct interned strings.
func (si *StringInterner) Size() int {
	si.mu.RLock()
	defer si.mu.RUnlock()
	return len(si.strings)
}
