package block

// Hash-chain match finder. Each block gets its own matcher state, which is
// what keeps back-references confined to the block: positions from outside
// the block are simply never inserted. That invariant is what makes
// independent, parallel block decode possible, so it must not be relaxed
// in the name of ratio.

const (
	hashBits = 15
	hashSize = 1 << hashBits
	hashMul  = 0x9E3779B1 // Fibonacci hashing constant
)

// levelParams tunes match-search effort per compression level. Higher
// levels walk longer chains and defer matches one position (lazy
// matching) looking for something better.
type levelParams struct {
	maxChain int
	niceLen  int
	lazy     bool
}

var levels = [10]levelParams{
	{},                // level 0 unused; callers clamp to 1..9
	{8, 16, false},    // 1
	{16, 32, false},   // 2
	{32, 64, false},   // 3
	{64, 96, false},   // 4
	{128, 128, true},  // 5
	{256, 160, true},  // 6
	{512, 192, true},  // 7
	{1024, 258, true}, // 8
	{4096, 258, true}, // 9
}

type matcher struct {
	head [hashSize]int32
	prev []int32
}

func newMatcher(n int) *matcher {
	m := &matcher{prev: make([]int32, n)}
	for i := range m.head {
		m.head[i] = -1
	}
	return m
}

func hash4(src []byte, pos int) uint32 {
	v := uint32(src[pos]) | uint32(src[pos+1])<<8 | uint32(src[pos+2])<<16 | uint32(src[pos+3])<<24
	return (v * hashMul) >> (32 - hashBits)
}

// insert records pos as a future match candidate. Positions too close to
// the end of the block to hold a full hash are ignored.
func (m *matcher) insert(src []byte, pos int) {
	if pos+MinMatch > len(src) {
		return
	}
	h := hash4(src, pos)
	m.prev[pos] = m.head[h]
	m.head[h] = int32(pos)
}

// find returns the best match starting at pos, or length 0 when nothing of
// at least MinMatch bytes exists inside the window.
func (m *matcher) find(src []byte, pos int, p levelParams) (length, distance int) {
	if pos+MinMatch > len(src) {
		return 0, 0
	}
	limit := len(src) - pos
	if limit > MaxMatch {
		limit = MaxMatch
	}

	h := hash4(src, pos)
	chain := p.maxChain
	for cand := m.head[h]; cand >= 0 && chain > 0; cand = m.prev[cand] {
		chain--
		c := int(cand)
		if pos-c > MaxDistance {
			break
		}
		// Cheap rejection: a longer match must extend past the current best.
		if length > 0 && src[c+length-1] != src[pos+length-1] {
			continue
		}
		l := matchLen(src[c:], src[pos:], limit)
		if l > length {
			length = l
			distance = pos - c
			if l >= p.niceLen {
				break
			}
		}
	}
	if length < MinMatch {
		return 0, 0
	}
	return length, distance
}

func matchLen(a, b []byte, limit int) int {
	n := 0
	for n < limit && a[n] == b[n] {
		n++
	}
	return n
}

// token is a literal when dist == 0 (value in length's low byte), a
// back-reference otherwise.
type token struct {
	dist   uint16
	length uint16
}

func literalToken(b byte) token {
	return token{length: uint16(b)}
}

// tokenize runs the LZ77 stage over one block.
func tokenize(src []byte, level int) []token {
	p := levels[level]
	m := newMatcher(len(src))
	toks := make([]token, 0, len(src)/4+16)

	pos := 0
	for pos < len(src) {
		length, dist := m.find(src, pos, p)

		if length == 0 {
			toks = append(toks, literalToken(src[pos]))
			m.insert(src, pos)
			pos++
			continue
		}

		inserted := false
		if p.lazy && length < p.niceLen && pos+1 < len(src) {
			m.insert(src, pos)
			inserted = true
			if l2, d2 := m.find(src, pos+1, p); l2 > length {
				toks = append(toks, literalToken(src[pos]))
				pos++
				length, dist = l2, d2
				inserted = false
			}
		}

		toks = append(toks, token{dist: uint16(dist), length: uint16(length)})
		start := pos
		if inserted {
			start = pos + 1
		}
		for i := start; i < pos+length; i++ {
			m.insert(src, i)
		}
		pos += length
	}
	return toks
}
