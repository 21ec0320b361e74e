package vm

import (
	"fmt"
	"reflect"
	"strconv"
)

// ---------------------------------------------------------------------------
// Value: Tagged value cell
// ---------------------------------------------------------------------------

// ValueType is the tag of a value cell.
type ValueType int

const (
	TypeNil ValueType = iota
	TypeBool
	TypeNumber
	TypeString
	TypeTable
	TypeClosure
	TypeCFunction

	// TypeUpvalue is an internal register tag. A stack register whose local
	// has been captured by a closure is promoted in place to this tag; reads
	// and writes then go through the Upvalue cell. Scripts never observe it.
	TypeUpvalue
)

// Name returns the user-visible name of a value type.
func (t ValueType) Name() string {
	switch t {
	case TypeNil:
		return "nil"
	case TypeBool:
		return "boolean"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeTable:
		return "table"
	case TypeClosure:
		return "function"
	case TypeCFunction:
		return "function"
	case TypeUpvalue:
		return "upvalue"
	default:
		return "unknown"
	}
}

// CFunction is a host-provided callable. It reads its arguments through a
// StackAPI, pushes its results onto the stack top, and returns the result
// count.
type CFunction func(*State) int

// Value is a single tagged cell. The payload field matching Type is
// meaningful; the others are ignored. Cells carry non-owning references to
// GC-managed objects.
type Value struct {
	Type    ValueType
	Bool    bool
	Num     float64
	Str     *String
	Table   *Table
	Closure *Closure
	CFunc   CFunction
	Upvalue *Upvalue
}

// Constructors.

func NilValue() Value            { return Value{Type: TypeNil} }
func BoolValue(b bool) Value     { return Value{Type: TypeBool, Bool: b} }
func NumberValue(n float64) Value { return Value{Type: TypeNumber, Num: n} }
func StringValue(s *String) Value { return Value{Type: TypeString, Str: s} }
func TableValue(t *Table) Value  { return Value{Type: TypeTable, Table: t} }
func ClosureValue(c *Closure) Value { return Value{Type: TypeClosure, Closure: c} }
func CFunctionValue(f CFunction) Value { return Value{Type: TypeCFunction, CFunc: f} }

// In-place mutators used by the dispatcher.

// SetNil clears the cell to nil, dropping any payload reference.
func (v *Value) SetNil() {
	*v = Value{Type: TypeNil}
}

// SetBool makes the cell a boolean.
func (v *Value) SetBool(b bool) {
	*v = Value{Type: TypeBool, Bool: b}
}

// SetNumber makes the cell a number.
func (v *Value) SetNumber(n float64) {
	*v = Value{Type: TypeNumber, Num: n}
}

// SetString makes the cell a string.
func (v *Value) SetString(s *String) {
	*v = Value{Type: TypeString, Str: s}
}

// Real returns the cell a register access should go through: the upvalue's
// embedded cell for a promoted register, the cell itself otherwise.
func (v *Value) Real() *Value {
	if v.Type == TypeUpvalue {
		return &v.Upvalue.value
	}
	return v
}

// IsFalse reports whether the value is false in a boolean context. Only nil
// and false are false; zero and the empty string are true.
func (v *Value) IsFalse() bool {
	return v.Type == TypeNil || (v.Type == TypeBool && !v.Bool)
}

// TypeName returns the user-visible type name of the cell.
func (v *Value) TypeName() string {
	return v.Type.Name()
}

// Equals implements value equality: cross-type compares unequal, numbers
// compare numerically, strings by interned identity, tables and functions
// by reference identity.
func (v Value) Equals(o Value) bool {
	if v.Type != o.Type {
		return false
	}
	switch v.Type {
	case TypeNil:
		return true
	case TypeBool:
		return v.Bool == o.Bool
	case TypeNumber:
		return v.Num == o.Num
	case TypeString:
		return v.Str == o.Str
	case TypeTable:
		return v.Table == o.Table
	case TypeClosure:
		return v.Closure == o.Closure
	case TypeCFunction:
		return cfuncID(v.CFunc) == cfuncID(o.CFunc)
	case TypeUpvalue:
		return v.Upvalue == o.Upvalue
	default:
		return false
	}
}

// cfuncID returns a comparable identity for a host function. Go function
// values are not comparable with ==, so identity is the code pointer.
func cfuncID(f CFunction) uintptr {
	if f == nil {
		return 0
	}
	return reflect.ValueOf(f).Pointer()
}

// String renders the value for diagnostics and the base library's tostring.
func (v Value) String() string {
	switch v.Type {
	case TypeNil:
		return "nil"
	case TypeBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case TypeNumber:
		return NumberToString(v.Num)
	case TypeString:
		return v.Str.Str()
	case TypeTable:
		return fmt.Sprintf("table: %p", v.Table)
	case TypeClosure:
		return fmt.Sprintf("function: %p", v.Closure)
	case TypeCFunction:
		return fmt.Sprintf("function: builtin: 0x%x", cfuncID(v.CFunc))
	case TypeUpvalue:
		return fmt.Sprintf("upvalue: %p", v.Upvalue)
	default:
		return "unknown"
	}
}

// NumberToString renders a number the way concat does: integral values print
// as integers, everything else in %g form.
func NumberToString(n float64) string {
	if n == float64(int64(n)) {
		return strconv.FormatInt(int64(n), 10)
	}
	return fmt.Sprintf("%g", n)
}
