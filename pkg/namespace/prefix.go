package namespace

import (
	"slices"
	"strings"
)

// PrefixSet is a sorted set of string prefixes supporting floor lookups.
// The zero value is an empty set ready to use. A PrefixSet is not safe for
// concurrent mutation; the filter only reads a snapshot taken at Build.
type PrefixSet struct {
	prefixes []string
}

// NewPrefixSet creates a set holding prefixes
func NewPrefixSet(prefixes ...string) *PrefixSet {
	s := &PrefixSet{}
	for _, p := range prefixes {
		s.Add(p)
	}
	return s
}

// Add inserts prefix, keeping the set sorted
func (s *PrefixSet) Add(prefix string) {
	i, found := slices.BinarySearch(s.prefixes, prefix)
	if found {
		return
	}
	s.prefixes = slices.Insert(s.prefixes, i, prefix)
}

// Len returns the number of prefixes
func (s *PrefixSet) Len() int {
	return len(s.prefixes)
}

// Values returns the prefixes in ascending order
func (s *PrefixSet) Values() []string {
	return slices.Clone(s.prefixes)
}

// Clone returns an independent copy of the set
func (s *PrefixSet) Clone() *PrefixSet {
	return &PrefixSet{prefixes: slices.Clone(s.prefixes)}
}

// Floor returns the greatest prefix less than or equal to key.
func (s *PrefixSet) Floor(key string) (string, bool) {
	i, found := slices.BinarySearch(s.prefixes, key)
	if found {
		return s.prefixes[i], true
	}
	if i == 0 {
		return "", false
	}
	return s.prefixes[i-1], true
}

// Matches reports whether some prefix in the set is a prefix of path.
//
// The floor of path is the only candidate unless the set holds nested
// prefixes; when the floor is not a prefix, any shorter match must also be a
// prefix of the part the floor shares with path, so the lookup repeats on
// that common part. Each round strictly shortens the key.
func (s *PrefixSet) Matches(path string) bool {
	key := path
	for {
		candidate, ok := s.Floor(key)
		if !ok {
			return false
		}
		if strings.HasPrefix(path, candidate) {
			return true
		}
		key = path[:commonPrefixLen(candidate, path)]
	}
}

func commonPrefixLen(a, b string) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}
