package blocklist

// bmTable is a Boyer-Moore pattern with precomputed bad-character and
// good-suffix shift tables.
type bmTable struct {
	pat    []byte
	delta1 [256]int
	delta2 []int
}

func newBMTable(pat []byte) *bmTable {
	t := &bmTable{pat: pat}
	m := len(pat)
	if m == 0 {
		return t
	}
	for i := range t.delta1 {
		t.delta1[i] = m
	}
	for i := 0; i < m-1; i++ {
		t.delta1[pat[i]] = m - 1 - i
	}

	t.delta2 = make([]int, m)
	last := m
	for p := m - 1; p >= 0; p-- {
		if isPrefix(pat, p+1) {
			last = p + 1
		}
		t.delta2[p] = last + (m - 1 - p)
	}
	for p := 0; p < m-1; p++ {
		slen := suffixLength(pat, p)
		if pat[p-slen] != pat[m-1-slen] {
			t.delta2[m-1-slen] = m - 1 - p + slen
		}
	}
	return t
}

// isPrefix reports whether pat[pos:] is a prefix of pat.
func isPrefix(pat []byte, pos int) bool {
	for i := 0; i < len(pat)-pos; i++ {
		if pat[i] != pat[pos+i] {
			return false
		}
	}
	return true
}

// suffixLength is the length of the longest common suffix of pat and
// pat[:pos+1], capped at pos.
func suffixLength(pat []byte, pos int) int {
	m := len(pat)
	i := 0
	for i < pos && pat[pos-i] == pat[m-1-i] {
		i++
	}
	return i
}

// index returns the offset of the first occurrence of the pattern in s, or -1.
func (t *bmTable) index(s []byte) int {
	m := len(t.pat)
	if m == 0 {
		return -1
	}
	i := m - 1
	for i < len(s) {
		j := m - 1
		for j >= 0 && s[i] == t.pat[j] {
			i--
			j--
		}
		if j < 0 {
			return i + 1
		}
		i += max(t.delta1[s[i]], t.delta2[j])
	}
	return -1
}
