package vm

// ---------------------------------------------------------------------------
// String: Interned immutable byte string
// ---------------------------------------------------------------------------

// String is an interned, immutable script string. Two cells holding the same
// byte sequence reference the same String, so equality is pointer identity.
type String struct {
	str string
}

// Str returns the Go string contents.
func (s *String) Str() string {
	return s.str
}

// Len returns the byte length.
func (s *String) Len() int {
	return len(s.str)
}

// Less reports lexicographic byte order.
func (s *String) Less(o *String) bool {
	return s.str < o.str
}

// ---------------------------------------------------------------------------
// StringPool: Interning storage
// ---------------------------------------------------------------------------

// StringPool hands out the canonical String for a byte sequence. Entries are
// weak with respect to the collector: the sweep phase removes pool entries
// whose String was not marked, so an unreachable string can be re-created
// later with a fresh identity.
type StringPool struct {
	pool map[string]*String
}

// NewStringPool creates an empty pool.
func NewStringPool() *StringPool {
	return &StringPool{pool: make(map[string]*String)}
}

// GetString returns the canonical String for str, creating it on first use.
// The second result reports whether the string was newly allocated.
func (p *StringPool) GetString(str string) (*String, bool) {
	if s, ok := p.pool[str]; ok {
		return s, false
	}
	s := &String{str: str}
	p.pool[str] = s
	return s, true
}

// Count returns the number of interned strings.
func (p *StringPool) Count() int {
	return len(p.pool)
}

// Sweep removes entries whose String is not in the marked set.
func (p *StringPool) Sweep(marked map[any]struct{}) int {
	removed := 0
	for str, s := range p.pool {
		if _, ok := marked[any(s)]; !ok {
			delete(p.pool, str)
			removed++
		}
	}
	return removed
}
