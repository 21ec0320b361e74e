package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// OpCode identifies a single instruction kind.
type OpCode int

// Loads and moves
const (
	OpLoadNil   OpCode = iota // A      real(a) := nil
	OpLoadBool                // A B    real(a) := bool(B != 0)
	OpLoadInt                 // A      consume next word w; a := number(w)
	OpLoadConst               // A Bx   real(a) := K(Bx)
	OpMove                    // A B    real(a) := real(b)
)

// Upvalues and globals
const (
	OpGetUpvalue OpCode = iota + 16 // A B    real(a) := U(B)
	OpSetUpvalue                    // A B    U(B) := a
	OpGetGlobal                     // A Bx   real(a) := G[K(Bx)]
	OpSetGlobal                     // A Bx   G[K(Bx)] := a
)

// Tables
const (
	OpNewTable OpCode = iota + 32 // A      a := new table
	OpSetTable                    // A B C  a[b] := c
	OpGetTable                    // A B C  c := a[b]
)

// Calls, closures, varargs
const (
	OpClosure OpCode = iota + 48 // A Bx   a := closure of child proto Bx
	OpVarArg                     // A sBx  copy varargs to a..
	OpCall                       // A B C  call a with B-1 args expecting C-1
	OpRet                        // A sBx  return sBx values starting at a
)

// Jumps
const (
	OpJmp      OpCode = iota + 64 // sBx    ip += sBx - 1
	OpJmpFalse                    // A sBx  jump when real(a) is false
	OpJmpTrue                     // A sBx  jump when real(a) is true
	OpJmpNil                      // A sBx  jump when a is nil
)

// Arithmetic, logic, length
const (
	OpNeg OpCode = iota + 80 // A      a := -a
	OpNot                    // A      a := not a
	OpLen                    // A      a := #a
	OpAdd                    // A B C  a := b + c
	OpSub                    // A B C  a := b - c
	OpMul                    // A B C  a := b * c
	OpDiv                    // A B C  a := b / c
	OpPow                    // A B C  a := b ^ c
	OpMod                    // A B C  a := b % c
	OpConcat                 // A B C  a := b .. c
)

// Comparisons
const (
	OpLess         OpCode = iota + 96 // A B C  a := b < c
	OpGreater                         // A B C  a := b > c
	OpLessEqual                       // A B C  a := b <= c
	OpGreaterEqual                    // A B C  a := b >= c
	OpEqual                           // A B C  a := b == c
	OpUnEqual                         // A B C  a := b ~= c
)

// Numeric for
const (
	OpForInit OpCode = iota + 112 // A B C  type-check loop triple
	OpForStep                     // A B C  consume next word; conditional jump
)

// ---------------------------------------------------------------------------
// Instruction encoding
// ---------------------------------------------------------------------------

// Instruction is one fixed-width code word:
//
//	bits 24..31  opcode
//	bits 16..23  A
//	bits  8..15  B
//	bits  0..7   C
//	bits  0..15  Bx (unsigned) / sBx (excess-0x8000 signed)
//
// OpLoadInt and OpForStep consume the following word: a raw integer for
// OpLoadInt, a jump instruction carrying sBx for OpForStep.
type Instruction uint32

const sBxBias = 0x8000

// ABCCode packs an opcode with three register parameters.
func ABCCode(op OpCode, a, b, c int) Instruction {
	return Instruction(uint32(op)<<24 | uint32(a&0xFF)<<16 | uint32(b&0xFF)<<8 | uint32(c&0xFF))
}

// ABCode packs an opcode with A and B parameters.
func ABCode(op OpCode, a, b int) Instruction {
	return ABCCode(op, a, b, 0)
}

// ACode packs an opcode with a single A parameter.
func ACode(op OpCode, a int) Instruction {
	return ABCCode(op, a, 0, 0)
}

// ABxCode packs an opcode with A and a wide unsigned Bx parameter.
func ABxCode(op OpCode, a, bx int) Instruction {
	return Instruction(uint32(op)<<24 | uint32(a&0xFF)<<16 | uint32(bx&0xFFFF))
}

// AsBxCode packs an opcode with A and a signed sBx parameter.
func AsBxCode(op OpCode, a, sbx int) Instruction {
	return ABxCode(op, a, sbx+sBxBias)
}

// SBxCode packs an opcode carrying only a signed jump delta.
func SBxCode(op OpCode, sbx int) Instruction {
	return AsBxCode(op, 0, sbx)
}

// RawWord wraps an inline integer that follows OpLoadInt.
func RawWord(n int32) Instruction {
	return Instruction(uint32(n))
}

// Op returns the opcode.
func (i Instruction) Op() OpCode {
	return OpCode(i >> 24)
}

// A returns the A register parameter.
func (i Instruction) A() int {
	return int(i >> 16 & 0xFF)
}

// B returns the B register parameter.
func (i Instruction) B() int {
	return int(i >> 8 & 0xFF)
}

// C returns the C register parameter.
func (i Instruction) C() int {
	return int(i & 0xFF)
}

// Bx returns the wide unsigned parameter.
func (i Instruction) Bx() int {
	return int(i & 0xFFFF)
}

// SBx returns the signed wide parameter.
func (i Instruction) SBx() int {
	return i.Bx() - sBxBias
}

// RawInt returns the word reinterpreted as an inline integer.
func (i Instruction) RawInt() int32 {
	return int32(uint32(i))
}

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// operand layout kinds, for disassembly
type opMode int

const (
	modeA opMode = iota
	modeAB
	modeABC
	modeABx
	modeAsBx
	modeSBx
	modeAInline // A plus a following raw word
)

// OpCodeInfo holds metadata about an opcode.
type OpCodeInfo struct {
	Name string
	mode opMode
}

var opcodeTable = map[OpCode]OpCodeInfo{
	OpLoadNil:   {"LOAD_NIL", modeA},
	OpLoadBool:  {"LOAD_BOOL", modeAB},
	OpLoadInt:   {"LOAD_INT", modeAInline},
	OpLoadConst: {"LOAD_CONST", modeABx},
	OpMove:      {"MOVE", modeAB},

	OpGetUpvalue: {"GET_UPVALUE", modeAB},
	OpSetUpvalue: {"SET_UPVALUE", modeAB},
	OpGetGlobal:  {"GET_GLOBAL", modeABx},
	OpSetGlobal:  {"SET_GLOBAL", modeABx},

	OpNewTable: {"NEW_TABLE", modeA},
	OpSetTable: {"SET_TABLE", modeABC},
	OpGetTable: {"GET_TABLE", modeABC},

	OpClosure: {"CLOSURE", modeABx},
	OpVarArg:  {"VARARG", modeAsBx},
	OpCall:    {"CALL", modeABC},
	OpRet:     {"RET", modeAsBx},

	OpJmp:      {"JMP", modeSBx},
	OpJmpFalse: {"JMP_FALSE", modeAsBx},
	OpJmpTrue:  {"JMP_TRUE", modeAsBx},
	OpJmpNil:   {"JMP_NIL", modeAsBx},

	OpNeg:    {"NEG", modeA},
	OpNot:    {"NOT", modeA},
	OpLen:    {"LEN", modeA},
	OpAdd:    {"ADD", modeABC},
	OpSub:    {"SUB", modeABC},
	OpMul:    {"MUL", modeABC},
	OpDiv:    {"DIV", modeABC},
	OpPow:    {"POW", modeABC},
	OpMod:    {"MOD", modeABC},
	OpConcat: {"CONCAT", modeABC},

	OpLess:         {"LESS", modeABC},
	OpGreater:      {"GREATER", modeABC},
	OpLessEqual:    {"LESS_EQUAL", modeABC},
	OpGreaterEqual: {"GREATER_EQUAL", modeABC},
	OpEqual:        {"EQUAL", modeABC},
	OpUnEqual:      {"UNEQUAL", modeABC},

	OpForInit: {"FOR_INIT", modeABC},
	OpForStep: {"FOR_STEP", modeABC},
}

// Info returns the metadata for an opcode.
func (op OpCode) Info() OpCodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpCodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", int(op)), mode: modeA}
}

// Name returns the human-readable name for an opcode.
func (op OpCode) Name() string {
	return op.Info().Name
}

// String implements the Stringer interface.
func (op OpCode) String() string {
	return op.Name()
}

// ---------------------------------------------------------------------------
// Disassembly
// ---------------------------------------------------------------------------

// DisassembleInstruction renders the instruction at pc and returns the
// rendered line plus the pc of the next instruction (inline words are
// consumed here).
func DisassembleInstruction(code []Instruction, pc int) (string, int) {
	i := code[pc]
	op := i.Op()
	info := op.Info()
	next := pc + 1

	var line string
	switch info.mode {
	case modeA:
		line = fmt.Sprintf("%04d  %-14s %d", pc, info.Name, i.A())
	case modeAB:
		line = fmt.Sprintf("%04d  %-14s %d %d", pc, info.Name, i.A(), i.B())
	case modeABC:
		line = fmt.Sprintf("%04d  %-14s %d %d %d", pc, info.Name, i.A(), i.B(), i.C())
	case modeABx:
		line = fmt.Sprintf("%04d  %-14s %d %d", pc, info.Name, i.A(), i.Bx())
	case modeAsBx:
		line = fmt.Sprintf("%04d  %-14s %d %d", pc, info.Name, i.A(), i.SBx())
	case modeSBx:
		line = fmt.Sprintf("%04d  %-14s %d", pc, info.Name, i.SBx())
	case modeAInline:
		if next < len(code) {
			line = fmt.Sprintf("%04d  %-14s %d %d", pc, info.Name, i.A(), code[next].RawInt())
			next++
		} else {
			line = fmt.Sprintf("%04d  %-14s %d <truncated>", pc, info.Name, i.A())
		}
	}

	// FOR_STEP consumes a trailing jump word.
	if op == OpForStep && next < len(code) {
		line += fmt.Sprintf(" -> %d", next+1+code[next].SBx()-1)
		next++
	}
	return line, next
}

// Disassemble renders a prototype's full code listing, recursing into child
// prototypes.
func Disassemble(f *Function) string {
	var b strings.Builder
	disassembleInto(&b, f, "")
	return b.String()
}

func disassembleInto(b *strings.Builder, f *Function, indent string) {
	fmt.Fprintf(b, "%sfunction (%d args", indent, f.FixedArgCount())
	if f.HasVararg() {
		b.WriteString(", vararg")
	}
	fmt.Fprintf(b, ", %d opcodes)\n", f.OpCodeSize())
	code := f.OpCodes()
	for pc := 0; pc < len(code); {
		line, next := DisassembleInstruction(code, pc)
		fmt.Fprintf(b, "%s%s\n", indent, line)
		pc = next
	}
	for i := 0; i < f.ChildFunctionCount(); i++ {
		disassembleInto(b, f.ChildFunction(i), indent+"  ")
	}
}
