package vm

import (
	"io"
	"os"
)

// ---------------------------------------------------------------------------
// CFunction error record
// ---------------------------------------------------------------------------

// CFuncErrorType classifies an error reported by a host function.
type CFuncErrorType int

const (
	CFuncErrorNoError CFuncErrorType = iota
	CFuncErrorArgCount
	CFuncErrorArgType
)

// CFunctionError is filled by a host function (through the StackAPI) when
// it rejects its arguments. The dispatcher checks the record after every
// host call and raises a runtime error when it is set.
type CFunctionError struct {
	Type           CFuncErrorType
	ExpectArgCount int
	ArgIndex       int
	ExpectType     ValueType
}

// ---------------------------------------------------------------------------
// State
// ---------------------------------------------------------------------------

// State owns everything one independent interpreter needs: the value stack,
// the call list, the global table, the string pool, the collector, and the
// module manager. A State is single-threaded; it must not be shared across
// goroutines.
type State struct {
	stack      *Stack
	calls      callList
	global     *Table
	stringPool *StringPool
	gc         *GC
	modules    *ModuleManager
	cfuncError CFunctionError

	// Stdout receives output of the base library's print.
	Stdout io.Writer
}

// NewState creates a State with the base library registered.
func NewState() *State {
	s := &State{
		stack:      NewStack(),
		stringPool: NewStringPool(),
		Stdout:     os.Stdout,
	}
	s.gc = newGC(s)
	s.global = s.NewTable()
	s.modules = newModuleManager(s)
	RegisterBaseLib(s)
	return s
}

// --- Allocation ---

// GetString returns the canonical interned String for str.
func (s *State) GetString(str string) *String {
	obj, created := s.stringPool.GetString(str)
	if created {
		s.gc.track(obj)
	}
	return obj
}

// NewTable allocates a collector-tracked table.
func (s *State) NewTable() *Table {
	t := NewTable()
	s.gc.track(t)
	return t
}

// NewFunction allocates a collector-tracked prototype.
func (s *State) NewFunction() *Function {
	f := NewFunction()
	s.gc.track(f)
	return f
}

// NewClosure allocates a collector-tracked closure.
func (s *State) NewClosure() *Closure {
	c := &Closure{}
	s.gc.track(c)
	return c
}

// NewUpvalue allocates a collector-tracked upvalue cell.
func (s *State) NewUpvalue() *Upvalue {
	u := &Upvalue{}
	s.gc.track(u)
	return u
}

// --- Accessors ---

// Global returns the global table.
func (s *State) Global() *Table {
	return s.global
}

// GC returns the collector.
func (s *State) GC() *GC {
	return s.gc
}

// CheckRunGC gives the collector a chance to run.
func (s *State) CheckRunGC() {
	s.gc.CheckGC()
}

// Stack returns the value stack.
func (s *State) Stack() *Stack {
	return s.stack
}

// CurrentCall returns the live activation frame, or nil outside execution.
func (s *State) CurrentCall() *CallInfo {
	if s.calls.empty() {
		return nil
	}
	return s.calls.back()
}

// CallDepth returns the number of active frames.
func (s *State) CallDepth() int {
	return s.calls.depth()
}

// ClearCFunctionError resets the host error record before a host call.
func (s *State) ClearCFunctionError() {
	s.cfuncError = CFunctionError{}
}

// CFunctionErrorData returns the host error record for filling or checking.
func (s *State) CFunctionErrorData() *CFunctionError {
	return &s.cfuncError
}

// --- Globals helpers ---

// SetGlobal binds name in the global table.
func (s *State) SetGlobal(name string, v Value) {
	s.global.SetValue(StringValue(s.GetString(name)), v)
}

// GetGlobal reads name from the global table; missing names yield nil.
func (s *State) GetGlobal(name string) Value {
	return s.global.GetValue(StringValue(s.GetString(name)))
}

// RegisterCFunction binds a host function as a global.
func (s *State) RegisterCFunction(name string, f CFunction) {
	s.SetGlobal(name, CFunctionValue(f))
}

// --- Modules ---

// SetCompiler registers the compiler collaborator used by LoadString and
// LoadModule.
func (s *State) SetCompiler(c Compiler) {
	s.modules.compiler = c
}

// AddModulePath appends a directory to the module search path.
func (s *State) AddModulePath(path string) {
	s.modules.AddModulePath(path)
}

// LoadModule resolves, compiles, and runs a module by name.
func (s *State) LoadModule(name string) error {
	return s.modules.LoadModule(name)
}

// LoadString compiles and runs an anonymous chunk, returning its results.
func (s *State) LoadString(source string) ([]Value, error) {
	return s.modules.LoadString(source)
}

// --- Execution ---

// Execute wraps a compiled prototype in a closure and runs it with no
// arguments, returning everything it returns.
func (s *State) Execute(proto *Function) ([]Value, error) {
	cl := s.NewClosure()
	cl.SetPrototype(proto)
	return s.CallValue(ClosureValue(cl))
}

// CallGlobal calls a global by name.
func (s *State) CallGlobal(name string, args ...Value) ([]Value, error) {
	return s.CallValue(s.GetGlobal(name), args...)
}

// CallValue calls any callable value. Runtime errors raised during
// execution unwind every frame this call pushed and come back as the error
// result; the stack top and call depth are restored to their pre-call
// values.
func (s *State) CallValue(fn Value, args ...Value) (results []Value, err error) {
	baseTop := s.stack.Top()
	baseDepth := s.calls.depth()

	defer func() {
		if r := recover(); r != nil {
			re, ok := r.(*RuntimeError)
			if !ok {
				panic(r)
			}
			s.calls.truncate(baseDepth)
			s.stack.SetNewTop(baseTop)
			results, err = nil, re
		}
	}()

	slot := baseTop
	s.stack.Push(fn)
	for _, a := range args {
		s.stack.Push(a)
	}

	v := newVM(s)
	if v.callAt(slot, len(args), ExpValueAny) {
		v.execute(baseDepth)
	}

	n := s.stack.Top() - slot
	if n > 0 {
		results = make([]Value, n)
		for i := 0; i < n; i++ {
			results[i] = *s.stack.At(slot + i)
		}
	}
	s.stack.SetNewTop(baseTop)
	return results, nil
}

// --- GC roots ---

// markRoots enumerates every root cell for the collector: the global table,
// the live stack prefix, and every frame's callable slot plus register
// window. Closure upvalue lists are reached transitively by marking.
func (s *State) markRoots(mark func(Value)) {
	mark(TableValue(s.global))
	for i := 0; i < s.stack.top; i++ {
		mark(s.stack.values[i])
	}
	for _, c := range s.calls.calls {
		if c.FuncSlot >= 0 && c.FuncSlot < len(s.stack.values) {
			mark(s.stack.values[c.FuncSlot])
		}
		end := c.Base + MaxRegisterCount
		if end > len(s.stack.values) {
			end = len(s.stack.values)
		}
		for j := c.Base; j < end; j++ {
			mark(s.stack.values[j])
		}
	}
}
