package proxy

// wildcardMatch reports whether value matches pattern, where '*' matches any
// run of characters (including none) and '?' matches exactly one. The match
// is anchored at both ends. A greedy star position is remembered so the
// matcher can backtrack when a literal tail fails.
func wildcardMatch(pattern, value string) bool {
	p := []rune(pattern)
	v := []rune(value)

	var pIdx, vIdx, matchIdx int
	starIdx := -1

	for vIdx < len(v) {
		switch {
		case pIdx < len(p) && (p[pIdx] == v[vIdx] || p[pIdx] == '?'):
			pIdx++
			vIdx++
		case pIdx < len(p) && p[pIdx] == '*':
			starIdx = pIdx
			matchIdx = vIdx
			pIdx++
		case starIdx >= 0:
			pIdx = starIdx + 1
			matchIdx++
			vIdx = matchIdx
		default:
			return false
		}
	}

	// Trailing stars consume nothing.
	for pIdx < len(p) && p[pIdx] == '*' {
		pIdx++
	}
	return pIdx == len(p)
}
