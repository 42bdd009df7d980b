package path

// Suits reports whether two paths are compatible.
//
// Either side may contain wildcards:
//   - a path that is exactly [Any] suits every path
//   - otherwise lengths must be equal
//   - each position matches if either side is Wildcard or both are equal
//
// There are no partial matches; one mismatching position fails the whole
// comparison.
func Suits(a, b Path) bool {
	if a.IsAny() || b.IsAny() {
		return true
	}
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].kind == KindWildcard || b[i].kind == KindWildcard {
			continue
		}
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Matches reports whether the path suits the given pattern.
func (p Path) Matches(pattern Path) bool {
	return Suits(pattern, p)
}
