package vm

// ---------------------------------------------------------------------------
// StackAPI: Host function view of the stack
// ---------------------------------------------------------------------------

// StackAPI is the window a host function gets onto its activation: typed
// readers for the arguments above its register base, pushers for results,
// and recorders for argument misuse. A misuse recorder fills the State's
// CFunction error record; the host function then returns 0 and the
// dispatcher raises the runtime error at the caller's call site.
type StackAPI struct {
	state *State
	call  *CallInfo
}

// NewStackAPI creates the stack view for the currently executing host
// function.
func NewStackAPI(s *State) *StackAPI {
	return &StackAPI{state: s, call: s.CurrentCall()}
}

// GetStackSize returns the number of arguments the host function received.
func (api *StackAPI) GetStackSize() int {
	return api.state.stack.Top() - api.call.Base
}

// GetValue returns the argument at index (0-based), or nil when out of
// range.
func (api *StackAPI) GetValue(index int) Value {
	if index < 0 || index >= api.GetStackSize() {
		return NilValue()
	}
	return *api.state.stack.At(api.call.Base + index)
}

// --- Type predicates ---

func (api *StackAPI) IsNumber(index int) bool    { return api.GetValue(index).Type == TypeNumber }
func (api *StackAPI) IsString(index int) bool    { return api.GetValue(index).Type == TypeString }
func (api *StackAPI) IsBool(index int) bool      { return api.GetValue(index).Type == TypeBool }
func (api *StackAPI) IsTable(index int) bool     { return api.GetValue(index).Type == TypeTable }
func (api *StackAPI) IsClosure(index int) bool   { return api.GetValue(index).Type == TypeClosure }
func (api *StackAPI) IsCFunction(index int) bool { return api.GetValue(index).Type == TypeCFunction }
func (api *StackAPI) IsNil(index int) bool       { return api.GetValue(index).Type == TypeNil }

// --- Typed readers ---

// GetNumber returns the numeric argument at index; records an ArgType error
// and returns 0 on mismatch.
func (api *StackAPI) GetNumber(index int) float64 {
	v := api.GetValue(index)
	if v.Type != TypeNumber {
		api.ArgTypeError(index, TypeNumber)
		return 0
	}
	return v.Num
}

// GetString returns the string argument at index; records an ArgType error
// and returns "" on mismatch.
func (api *StackAPI) GetString(index int) string {
	v := api.GetValue(index)
	if v.Type != TypeString {
		api.ArgTypeError(index, TypeString)
		return ""
	}
	return v.Str.Str()
}

// GetBool returns the boolean argument at index; records an ArgType error
// and returns false on mismatch.
func (api *StackAPI) GetBool(index int) bool {
	v := api.GetValue(index)
	if v.Type != TypeBool {
		api.ArgTypeError(index, TypeBool)
		return false
	}
	return v.Bool
}

// GetTable returns the table argument at index; records an ArgType error
// and returns nil on mismatch.
func (api *StackAPI) GetTable(index int) *Table {
	v := api.GetValue(index)
	if v.Type != TypeTable {
		api.ArgTypeError(index, TypeTable)
		return nil
	}
	return v.Table
}

// GetClosure returns the function argument at index; records an ArgType
// error and returns nil on mismatch.
func (api *StackAPI) GetClosure(index int) *Closure {
	v := api.GetValue(index)
	if v.Type != TypeClosure {
		api.ArgTypeError(index, TypeClosure)
		return nil
	}
	return v.Closure
}

// --- Result pushers ---

// PushValue pushes one result onto the stack top.
func (api *StackAPI) PushValue(v Value) {
	api.state.stack.Push(v)
}

func (api *StackAPI) PushNil()              { api.PushValue(NilValue()) }
func (api *StackAPI) PushBool(b bool)       { api.PushValue(BoolValue(b)) }
func (api *StackAPI) PushNumber(n float64)  { api.PushValue(NumberValue(n)) }
func (api *StackAPI) PushTable(t *Table)    { api.PushValue(TableValue(t)) }

// PushString interns and pushes a string result.
func (api *StackAPI) PushString(str string) {
	api.PushValue(StringValue(api.state.GetString(str)))
}

// --- Misuse recorders ---

// ArgCountError records that the host function expected a different number
// of arguments.
func (api *StackAPI) ArgCountError(expect int) {
	rec := api.state.CFunctionErrorData()
	rec.Type = CFuncErrorArgCount
	rec.ExpectArgCount = expect
}

// ArgTypeError records that the argument at index had the wrong type.
func (api *StackAPI) ArgTypeError(index int, expect ValueType) {
	rec := api.state.CFunctionErrorData()
	rec.Type = CFuncErrorArgType
	rec.ArgIndex = index
	rec.ExpectType = expect
}

// CheckArgCount records an ArgCount error unless exactly n arguments were
// supplied. Returns true when the count matches.
func (api *StackAPI) CheckArgCount(n int) bool {
	if api.GetStackSize() != n {
		api.ArgCountError(n)
		return false
	}
	return true
}

// CheckMinArgCount records an ArgCount error unless at least n arguments
// were supplied.
func (api *StackAPI) CheckMinArgCount(n int) bool {
	if api.GetStackSize() < n {
		api.ArgCountError(n)
		return false
	}
	return true
}
