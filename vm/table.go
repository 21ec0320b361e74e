package vm

// ---------------------------------------------------------------------------
// Table: Hybrid array/hash aggregate
// ---------------------------------------------------------------------------

// Table is the universal aggregate: a dense array part indexed by
// consecutive positive integers starting at 1, plus a hash part for every
// other non-nil key. Setting a key to nil removes it. The reported length is
// the array part's length only.
type Table struct {
	array []Value
	hash  map[any]Value
}

// NewTable creates an empty table. Prefer State.NewTable, which also
// registers the table with the collector.
func NewTable() *Table {
	return &Table{}
}

// hashKey maps a key cell to a Go map key. Numbers key by numeric value,
// strings by interned identity, tables and functions by reference.
func hashKey(k Value) any {
	switch k.Type {
	case TypeBool:
		return k.Bool
	case TypeNumber:
		return k.Num
	case TypeString:
		return k.Str
	case TypeTable:
		return k.Table
	case TypeClosure:
		return k.Closure
	case TypeCFunction:
		return cfuncID(k.CFunc)
	default:
		return nil
	}
}

// arrayIndex returns the 1-based array slot for a key, or 0 if the key is
// not an integral number.
func arrayIndex(k Value) int {
	if k.Type != TypeNumber {
		return 0
	}
	n := int(k.Num)
	if float64(n) != k.Num || n < 1 {
		return 0
	}
	return n
}

// SetValue stores value under key. A nil value removes the key. A nil key is
// ignored.
func (t *Table) SetValue(key, value Value) {
	if key.Type == TypeNil {
		return
	}

	if n := arrayIndex(key); n > 0 {
		switch {
		case n <= len(t.array):
			if value.Type == TypeNil {
				t.removeArray(n)
			} else {
				t.array[n-1] = value
			}
			return
		case n == len(t.array)+1:
			if value.Type == TypeNil {
				t.deleteHash(key)
				return
			}
			t.array = append(t.array, value)
			t.migrateFromHash()
			return
		}
	}

	if value.Type == TypeNil {
		t.deleteHash(key)
		return
	}
	if t.hash == nil {
		t.hash = make(map[any]Value)
	}
	t.hash[hashKey(key)] = value
}

// removeArray deletes array slot n, keeping the array part dense: the slots
// after n move to the hash part under their old indices.
func (t *Table) removeArray(n int) {
	for i := n + 1; i <= len(t.array); i++ {
		if t.hash == nil {
			t.hash = make(map[any]Value)
		}
		t.hash[float64(i)] = t.array[i-1]
	}
	t.array = t.array[:n-1]
}

// migrateFromHash pulls successive integer keys from the hash part into the
// array part after an append extended it.
func (t *Table) migrateFromHash() {
	if t.hash == nil {
		return
	}
	for {
		next := float64(len(t.array) + 1)
		v, ok := t.hash[next]
		if !ok {
			return
		}
		delete(t.hash, next)
		t.array = append(t.array, v)
	}
}

func (t *Table) deleteHash(key Value) {
	if t.hash != nil {
		delete(t.hash, hashKey(key))
	}
}

// GetValue returns the value stored under key, or nil for a missing key.
func (t *Table) GetValue(key Value) Value {
	if key.Type == TypeNil {
		return NilValue()
	}
	if n := arrayIndex(key); n > 0 && n <= len(t.array) {
		return t.array[n-1]
	}
	if t.hash != nil {
		if v, ok := t.hash[hashKey(key)]; ok {
			return v
		}
	}
	return NilValue()
}

// ArraySize returns the length of the array part. The hash part is ignored.
func (t *Table) ArraySize() int {
	return len(t.array)
}

// visit calls f for every key and value the table retains. Used by the
// collector's mark phase.
func (t *Table) visit(f func(Value)) {
	for _, v := range t.array {
		f(v)
	}
	for k, v := range t.hash {
		switch obj := k.(type) {
		case *String:
			f(StringValue(obj))
		case *Table:
			f(TableValue(obj))
		case *Closure:
			f(ClosureValue(obj))
		}
		f(v)
	}
}
