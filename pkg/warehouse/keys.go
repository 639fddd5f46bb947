package warehouse

// KeySet is a hash set of natural keys.
type KeySet[K comparable] map[K]struct{}

// NewKeySet returns a set holding keys.
func NewKeySet[K comparable](keys ...K) KeySet[K] {
	s := make(KeySet[K], len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}

	return s
}

// Has reports whether k is in the set.
func (s KeySet[K]) Has(k K) bool {
	_, ok := s[k]
	return ok
}

// Add inserts k and reports whether it was absent.
func (s KeySet[K]) Add(k K) bool {
	if _, ok := s[k]; ok {
		return false
	}

	s[k] = struct{}{}

	return true
}
