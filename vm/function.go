package vm

// ---------------------------------------------------------------------------
// Function: Immutable compiled prototype
// ---------------------------------------------------------------------------

// UpvalueInfo describes one upvalue a prototype captures.
type UpvalueInfo struct {
	// Name of the captured variable, for error messages.
	Name *String
	// ParentLocal is true when the capture targets a register slot of the
	// immediate parent frame; false when it inherits a position in the
	// parent closure's upvalue list.
	ParentLocal bool
	// Index is a parent register slot or a parent upvalue index, depending
	// on ParentLocal.
	Index int
}

// LocalVarInfo is one record of the local-variable debug map. It is used
// only to name operands in error messages.
type LocalVarInfo struct {
	Name         *String
	RegisterSlot int
	BeginPC      int
	EndPC        int
}

// Function is the immutable compiled form of a function body: code words,
// constants, nested prototypes, upvalue descriptors, and debug tables. The
// compiler collaborator fills it through the Add* methods; the dispatcher
// only reads.
type Function struct {
	opcodes   []Instruction
	lines     []int
	constants []Value
	children  []*Function
	upvalues  []UpvalueInfo
	localVars []LocalVarInfo

	fixedArgCount int
	hasVararg     bool

	module *String // chunk name
	line   int     // line the function is defined on
}

// NewFunction creates an empty prototype. Prefer State.NewFunction, which
// also registers the prototype with the collector.
func NewFunction() *Function {
	return &Function{}
}

// --- Read surface (used by the dispatcher) ---

// OpCodes returns the instruction words.
func (f *Function) OpCodes() []Instruction {
	return f.opcodes
}

// OpCodeSize returns the number of code words.
func (f *Function) OpCodeSize() int {
	return len(f.opcodes)
}

// ConstValue returns the constant at index.
func (f *Function) ConstValue(index int) Value {
	return f.constants[index]
}

// ConstCount returns the size of the constant pool.
func (f *Function) ConstCount() int {
	return len(f.constants)
}

// ChildFunction returns the nested prototype at index.
func (f *Function) ChildFunction(index int) *Function {
	return f.children[index]
}

// ChildFunctionCount returns the number of nested prototypes.
func (f *Function) ChildFunctionCount() int {
	return len(f.children)
}

// UpvalueInfo returns the upvalue descriptor at index.
func (f *Function) UpvalueInfo(index int) *UpvalueInfo {
	return &f.upvalues[index]
}

// UpvalueCount returns the number of upvalue descriptors.
func (f *Function) UpvalueCount() int {
	return len(f.upvalues)
}

// FixedArgCount returns the declared parameter count.
func (f *Function) FixedArgCount() int {
	return f.fixedArgCount
}

// HasVararg reports whether the function accepts varargs.
func (f *Function) HasVararg() bool {
	return f.hasVararg
}

// Module returns the chunk name, or nil.
func (f *Function) Module() *String {
	return f.module
}

// Line returns the source line the function is defined on.
func (f *Function) Line() int {
	return f.line
}

// InstructionLine returns the source line for the opcode at pc, or 0 when
// no line information exists.
func (f *Function) InstructionLine(pc int) int {
	if pc < 0 || pc >= len(f.lines) {
		return 0
	}
	return f.lines[pc]
}

// SearchLocalVar returns the name of the local occupying a register slot at
// pc, or nil when the slot names no local there.
func (f *Function) SearchLocalVar(registerSlot, pc int) *String {
	for i := range f.localVars {
		lv := &f.localVars[i]
		if lv.RegisterSlot == registerSlot && lv.BeginPC <= pc && pc < lv.EndPC {
			return lv.Name
		}
	}
	return nil
}

// --- Build surface (used by the compiler collaborator) ---

// AddInstruction appends a code word with its source line and returns its
// pc. Inline words (after OpLoadInt / OpForStep) are appended the same way
// so the line table stays aligned with the code.
func (f *Function) AddInstruction(i Instruction, line int) int {
	f.opcodes = append(f.opcodes, i)
	f.lines = append(f.lines, line)
	return len(f.opcodes) - 1
}

// SetInstruction overwrites the code word at pc; used to patch jumps.
func (f *Function) SetInstruction(pc int, i Instruction) {
	f.opcodes[pc] = i
}

// AddConstant appends a constant and returns its pool index.
func (f *Function) AddConstant(v Value) int {
	f.constants = append(f.constants, v)
	return len(f.constants) - 1
}

// AddChildFunction appends a nested prototype and returns its index.
func (f *Function) AddChildFunction(child *Function) int {
	f.children = append(f.children, child)
	return len(f.children) - 1
}

// AddUpvalue appends an upvalue descriptor and returns its index.
func (f *Function) AddUpvalue(name *String, parentLocal bool, index int) int {
	f.upvalues = append(f.upvalues, UpvalueInfo{Name: name, ParentLocal: parentLocal, Index: index})
	return len(f.upvalues) - 1
}

// AddLocalVar records a local-variable debug range.
func (f *Function) AddLocalVar(name *String, registerSlot, beginPC, endPC int) {
	f.localVars = append(f.localVars, LocalVarInfo{
		Name: name, RegisterSlot: registerSlot, BeginPC: beginPC, EndPC: endPC,
	})
}

// SetFixedArgCount declares the parameter count.
func (f *Function) SetFixedArgCount(n int) {
	f.fixedArgCount = n
}

// SetHasVararg marks the function as variadic.
func (f *Function) SetHasVararg() {
	f.hasVararg = true
}

// SetModule records the chunk name and definition line.
func (f *Function) SetModule(module *String, line int) {
	f.module = module
	f.line = line
}
