package vm

import (
	"fmt"
	"math"
)

// ---------------------------------------------------------------------------
// VM: The instruction dispatcher
// ---------------------------------------------------------------------------

// VM executes bytecode frames on a State. It implements the calling
// convention, arithmetic/compare/concat, closure construction, vararg copy,
// the numeric for protocol, and error reporting.
type VM struct {
	state *State
}

func newVM(s *State) *VM {
	return &VM{state: s}
}

// execute runs frames until the call list has drained back to stopDepth.
func (v *VM) execute(stopDepth int) {
	for v.state.calls.depth() > stopDepth {
		v.executeFrame()
	}
}

// reg returns the register cell at index idx of a frame's window. Frame
// setup ensures the whole window is addressable, so the returned pointer
// stays valid for the rest of the instruction.
func (v *VM) reg(call *CallInfo, idx int) *Value {
	return v.state.stack.At(call.Base + idx)
}

// executeFrame interprets the back frame until it returns, or until it
// calls a closure (the new frame then becomes current and the outer execute
// loop re-enters).
func (v *VM) executeFrame() {
	s := v.state
	call := s.calls.back()
	cl := s.stack.At(call.FuncSlot).Closure
	proto := cl.Prototype()
	code := proto.OpCodes()

	for call.IP < call.End {
		s.CheckRunGC()
		i := code[call.IP]
		call.IP++

		switch i.Op() {
		case OpLoadNil:
			v.reg(call, i.A()).Real().SetNil()

		case OpLoadBool:
			v.reg(call, i.A()).Real().SetBool(i.B() != 0)

		case OpLoadInt:
			// The next word is a raw inline integer. The write skips the
			// upvalue indirection: the compiler guarantees the destination
			// register is never a captured local.
			w := code[call.IP]
			call.IP++
			v.reg(call, i.A()).SetNumber(float64(w.RawInt()))

		case OpLoadConst:
			*v.reg(call, i.A()).Real() = proto.ConstValue(i.Bx())

		case OpMove:
			*v.reg(call, i.A()).Real() = *v.reg(call, i.B()).Real()

		case OpCall:
			if v.call(call, i) {
				return
			}

		case OpGetUpvalue:
			*v.reg(call, i.A()).Real() = cl.GetUpvalue(i.B()).GetValue()

		case OpSetUpvalue:
			cl.GetUpvalue(i.B()).SetValue(*v.reg(call, i.A()))

		case OpGetGlobal:
			key := proto.ConstValue(i.Bx())
			*v.reg(call, i.A()).Real() = s.global.GetValue(key)

		case OpSetGlobal:
			key := proto.ConstValue(i.Bx())
			s.global.SetValue(key, *v.reg(call, i.A()))

		case OpClosure:
			v.generateClosure(call, cl, proto, i)

		case OpVarArg:
			v.copyVarArg(call, proto, i)

		case OpRet:
			v.ret(call, i)
			return

		case OpJmpFalse:
			if v.reg(call, i.A()).Real().IsFalse() {
				call.IP += i.SBx() - 1
			}

		case OpJmpTrue:
			if !v.reg(call, i.A()).Real().IsFalse() {
				call.IP += i.SBx() - 1
			}

		case OpJmpNil:
			if v.reg(call, i.A()).Type == TypeNil {
				call.IP += i.SBx() - 1
			}

		case OpJmp:
			call.IP += i.SBx() - 1

		case OpNeg:
			a := v.reg(call, i.A())
			v.checkType(a, TypeNumber, "neg")
			a.Num = -a.Num

		case OpNot:
			a := v.reg(call, i.A())
			a.SetBool(a.IsFalse())

		case OpLen:
			a := v.reg(call, i.A())
			switch a.Type {
			case TypeTable:
				a.SetNumber(float64(a.Table.ArraySize()))
			case TypeString:
				a.SetNumber(float64(a.Str.Len()))
			default:
				v.reportTypeError(call, a, "get length of")
			}

		case OpAdd:
			a, b, c := v.regABC(call, i)
			v.checkArithType(b, c, "add")
			a.SetNumber(b.Num + c.Num)

		case OpSub:
			a, b, c := v.regABC(call, i)
			v.checkArithType(b, c, "sub")
			a.SetNumber(b.Num - c.Num)

		case OpMul:
			a, b, c := v.regABC(call, i)
			v.checkArithType(b, c, "multiply")
			a.SetNumber(b.Num * c.Num)

		case OpDiv:
			a, b, c := v.regABC(call, i)
			v.checkArithType(b, c, "div")
			a.SetNumber(b.Num / c.Num)

		case OpPow:
			a, b, c := v.regABC(call, i)
			v.checkArithType(b, c, "power")
			a.SetNumber(math.Pow(b.Num, c.Num))

		case OpMod:
			a, b, c := v.regABC(call, i)
			v.checkArithType(b, c, "mod")
			a.SetNumber(math.Mod(b.Num, c.Num))

		case OpConcat:
			a, b, c := v.regABC(call, i)
			v.concat(a, b, c)

		case OpLess:
			a, b, c := v.regABC(call, i)
			v.checkInequalityType(b, c, "compare(<)")
			if b.Type == TypeNumber {
				a.SetBool(b.Num < c.Num)
			} else {
				a.SetBool(b.Str.Less(c.Str))
			}

		case OpGreater:
			a, b, c := v.regABC(call, i)
			v.checkInequalityType(b, c, "compare(>)")
			if b.Type == TypeNumber {
				a.SetBool(b.Num > c.Num)
			} else {
				a.SetBool(c.Str.Less(b.Str))
			}

		case OpLessEqual:
			a, b, c := v.regABC(call, i)
			v.checkInequalityType(b, c, "compare(<=)")
			if b.Type == TypeNumber {
				a.SetBool(b.Num <= c.Num)
			} else {
				a.SetBool(!c.Str.Less(b.Str))
			}

		case OpGreaterEqual:
			a, b, c := v.regABC(call, i)
			v.checkInequalityType(b, c, "compare(>=)")
			if b.Type == TypeNumber {
				a.SetBool(b.Num >= c.Num)
			} else {
				a.SetBool(!b.Str.Less(c.Str))
			}

		case OpEqual:
			a, b, c := v.regABC(call, i)
			a.SetBool(b.Equals(*c))

		case OpUnEqual:
			a, b, c := v.regABC(call, i)
			a.SetBool(!b.Equals(*c))

		case OpNewTable:
			a := v.reg(call, i.A())
			*a = TableValue(s.NewTable())

		case OpSetTable:
			a, b, c := v.regABC(call, i)
			v.checkTableType(call, a, b, "set", "to")
			a.Table.SetValue(*b, *c)

		case OpGetTable:
			a, b, c := v.regABC(call, i)
			v.checkTableType(call, a, b, "get", "from")
			*c = a.Table.GetValue(*b)

		case OpForInit:
			a, b, c := v.regABC(call, i)
			v.forInit(a, b, c)

		case OpForStep:
			a, b, c := v.regABC(call, i)
			jump := code[call.IP]
			call.IP++
			if (c.Num > 0 && a.Num > b.Num) ||
				(c.Num <= 0 && a.Num < b.Num) {
				call.IP += jump.SBx() - 1
			}
		}
	}

	// The frame ran off the end of its opcodes without an explicit return:
	// it returns zero values.
	newTop := call.FuncSlot
	if newTop < 0 {
		newTop = call.Base
	}
	s.stack.SetNewTop(newTop)
	if call.ExpectResults != ExpValueAny {
		for k := 0; k < call.ExpectResults; k++ {
			s.stack.At(newTop + k).SetNil()
		}
		s.stack.SetNewTop(newTop + call.ExpectResults)
	}
	v.releasePromoted(call, s.stack.Top())
	s.calls.pop()
}

// releasePromoted nils the returning frame's upvalue-tagged registers at or
// above from. The Upvalue cells live on in the closures that captured them;
// the stack cells are reused by the caller and later frames, which must not
// read or write through a stale indirection.
func (v *VM) releasePromoted(call *CallInfo, from int) {
	for j := from; j < call.Base+MaxRegisterCount; j++ {
		if cell := v.state.stack.At(j); cell.Type == TypeUpvalue {
			cell.SetNil()
		}
	}
}

func (v *VM) regABC(call *CallInfo, i Instruction) (a, b, c *Value) {
	return v.reg(call, i.A()), v.reg(call, i.B()), v.reg(call, i.C())
}

// ---------------------------------------------------------------------------
// Calling protocol
// ---------------------------------------------------------------------------

// call implements OpCall. Reports true when a new frame was pushed and the
// outer loop must re-enter; false when execution continues in the current
// frame (host calls and their marshaled results).
func (v *VM) call(call *CallInfo, i Instruction) bool {
	slot := call.Base + i.A()
	argCount := i.B() - 1
	if argCount != ExpValueAny {
		v.state.stack.SetNewTop(slot + 1 + argCount)
	}
	return v.dispatchCall(slot, i.C()-1)
}

// callAt is the host entry: fn sits at slot with argCount args above it.
func (v *VM) callAt(slot, argCount, expect int) bool {
	v.state.stack.SetNewTop(slot + 1 + argCount)
	return v.dispatchCall(slot, expect)
}

func (v *VM) dispatchCall(slot, expect int) bool {
	fn := v.state.stack.At(slot)
	switch fn.Type {
	case TypeClosure:
		v.callClosure(slot, expect)
		return true
	case TypeCFunction:
		v.callCFunction(slot, expect)
		return false
	default:
		v.reportTypeError(v.state.CurrentCall(), fn, "call")
		return true
	}
}

// callClosure builds the activation frame for a script function. For a
// vararg function the register base moves above the supplied arguments and
// the fixed parameters are copied up; the varargs stay below the base,
// reachable by OpVarArg.
func (v *VM) callClosure(slot, expect int) {
	s := v.state
	proto := s.stack.At(slot).Closure.Prototype()
	callee := &CallInfo{
		FuncSlot:      slot,
		IP:            0,
		End:           proto.OpCodeSize(),
		ExpectResults: expect,
	}

	arg := slot + 1
	available := s.stack.Top() - arg
	fixed := proto.FixedArgCount()

	if proto.HasVararg() {
		callee.Base = s.stack.Top()
		s.stack.EnsureSize(callee.Base + MaxRegisterCount)
		copied := 0
		for ; copied < available && copied < fixed; copied++ {
			*s.stack.At(callee.Base + copied) = *s.stack.At(arg + copied)
		}
		for k := copied; k < fixed; k++ {
			s.stack.At(callee.Base + k).SetNil()
		}
	} else {
		callee.Base = arg
		s.stack.EnsureSize(callee.Base + MaxRegisterCount)
		for k := available; k < fixed; k++ {
			s.stack.At(callee.Base + k).SetNil()
		}
	}

	s.stack.SetNewTop(callee.Base + fixed)
	s.calls.push(callee)
}

// callCFunction runs a host function to completion on a transient host
// frame, then marshals its results down to the callable's slot.
func (v *VM) callCFunction(slot, expect int) {
	s := v.state
	callee := &CallInfo{FuncSlot: slot, Base: slot + 1, ExpectResults: expect}
	s.stack.EnsureSize(callee.Base + MaxRegisterCount)
	s.calls.push(callee)

	cfunc := s.stack.At(slot).CFunc
	s.ClearCFunctionError()
	resCount := cfunc(s)
	v.checkCFunctionError()

	src := s.stack.Top() - resCount
	dst := slot
	if expect == ExpValueAny {
		for k := 0; k < resCount; k++ {
			*s.stack.At(dst) = *s.stack.At(src + k)
			dst++
		}
	} else {
		count := resCount
		if expect < count {
			count = expect
		}
		for k := 0; k < count; k++ {
			*s.stack.At(dst) = *s.stack.At(src + k)
			dst++
		}
		for k := count; k < expect; k++ {
			s.stack.At(dst).SetNil()
			dst++
		}
	}

	s.stack.SetNewTop(dst)
	s.calls.pop()
}

// ---------------------------------------------------------------------------
// Return protocol
// ---------------------------------------------------------------------------

func (v *VM) ret(call *CallInfo, i Instruction) {
	s := v.state
	src := call.Base + i.A()
	retCount := i.SBx()
	if retCount != ExpValueAny {
		s.stack.SetNewTop(src + retCount)
	}

	dst := call.FuncSlot
	expect := call.ExpectResults
	resultCount := s.stack.Top() - src

	if expect == ExpValueAny {
		for k := 0; k < resultCount; k++ {
			*s.stack.At(dst) = *s.stack.At(src + k)
			dst++
		}
	} else {
		count := resultCount
		if expect < count {
			count = expect
		}
		for k := 0; k < count; k++ {
			*s.stack.At(dst) = *s.stack.At(src + k)
			dst++
		}
		for k := count; k < expect; k++ {
			s.stack.At(dst).SetNil()
			dst++
		}
	}

	s.stack.SetNewTop(dst)
	v.releasePromoted(call, dst)
	s.calls.pop()
}

// ---------------------------------------------------------------------------
// Closure construction
// ---------------------------------------------------------------------------

// generateClosure implements OpClosure. Capturing a parent local promotes
// the register in place to an upvalue cell, so every later closure created
// in this frame that captures the same local shares the one Upvalue.
func (v *VM) generateClosure(call *CallInfo, cl *Closure, proto *Function, i Instruction) {
	s := v.state
	childProto := proto.ChildFunction(i.Bx())
	nc := s.NewClosure()
	nc.SetPrototype(childProto)
	*v.reg(call, i.A()) = ClosureValue(nc)

	for idx := 0; idx < childProto.UpvalueCount(); idx++ {
		info := childProto.UpvalueInfo(idx)
		if info.ParentLocal {
			reg := v.reg(call, info.Index)
			if reg.Type != TypeUpvalue {
				u := s.NewUpvalue()
				u.SetValue(*reg)
				*reg = Value{Type: TypeUpvalue, Upvalue: u}
				nc.AddUpvalue(u)
			} else {
				nc.AddUpvalue(reg.Upvalue)
			}
		} else {
			nc.AddUpvalue(cl.GetUpvalue(info.Index))
		}
	}
}

// ---------------------------------------------------------------------------
// Vararg copy
// ---------------------------------------------------------------------------

func (v *VM) copyVarArg(call *CallInfo, proto *Function, i Instruction) {
	s := v.state
	dst := call.Base + i.A()
	argBase := call.FuncSlot + 1
	totalArgs := call.Base - argBase
	varargCount := totalArgs - proto.FixedArgCount()
	if varargCount < 0 {
		varargCount = 0
	}
	src := argBase + proto.FixedArgCount()

	expect := i.SBx()
	if expect == ExpValueAny {
		s.stack.EnsureSize(dst + varargCount)
		for k := 0; k < varargCount; k++ {
			*s.stack.At(dst + k) = *s.stack.At(src + k)
		}
		s.stack.SetNewTop(dst + varargCount)
	} else {
		s.stack.EnsureSize(dst + expect)
		k := 0
		for ; k < varargCount && k < expect; k++ {
			*s.stack.At(dst + k) = *s.stack.At(src + k)
		}
		for ; k < expect; k++ {
			s.stack.At(dst + k).SetNil()
		}
	}
}

// ---------------------------------------------------------------------------
// Concat and numeric for
// ---------------------------------------------------------------------------

// concat joins two string-or-number operands into an interned string.
// Integral numbers stringify as integers, everything else in %g form.
func (v *VM) concat(dst, b, c *Value) {
	okType := func(x *Value) bool {
		return x.Type == TypeString || x.Type == TypeNumber
	}
	if !okType(b) || !okType(c) {
		throwError(newBinOperandError(b, c, "concat", v.currentInstructionLine()))
	}
	part := func(x *Value) string {
		if x.Type == TypeString {
			return x.Str.Str()
		}
		return NumberToString(x.Num)
	}
	dst.SetString(v.state.GetString(part(b) + part(c)))
}

func (v *VM) forInit(init, limit, step *Value) {
	if init.Type != TypeNumber {
		throwError(newExpectTypeError(init, "'for' init", TypeNumber, v.currentInstructionLine()))
	}
	if limit.Type != TypeNumber {
		throwError(newExpectTypeError(limit, "'for' limit", TypeNumber, v.currentInstructionLine()))
	}
	if step.Type != TypeNumber {
		throwError(newExpectTypeError(step, "'for' step", TypeNumber, v.currentInstructionLine()))
	}
}

// ---------------------------------------------------------------------------
// Error reporting
// ---------------------------------------------------------------------------

// currentInstructionLine maps the live frame's last fetched opcode to its
// source line. Host frames and an empty call list yield line 0.
func (v *VM) currentInstructionLine() int {
	s := v.state
	if s.calls.empty() {
		return 0
	}
	call := s.calls.back()
	fn := s.stack.At(call.FuncSlot)
	if fn.Type != TypeClosure {
		return 0
	}
	return fn.Closure.Prototype().InstructionLine(call.IP - 1)
}

// getOperandNameAndScope recovers the name and scope of the operand held in
// a register: it scans backward from the current pc for the most recent
// instruction that wrote the register and names it from that producer.
func (v *VM) getOperandNameAndScope(call *CallInfo, val *Value) (string, string) {
	s := v.state
	if call == nil {
		return "?", ""
	}
	fn := s.stack.At(call.FuncSlot)
	if fn.Type != TypeClosure {
		return "?", ""
	}
	proto := fn.Closure.Prototype()
	code := proto.OpCodes()

	reg := -1
	for j := 0; j < MaxRegisterCount; j++ {
		if s.stack.At(call.Base+j) == val {
			reg = j
			break
		}
	}
	if reg < 0 {
		return "?", ""
	}

	pc := call.IP - 1
	for k := pc - 1; k >= 0; k-- {
		in := code[k]
		switch in.Op() {
		case OpGetGlobal:
			if reg == in.A() {
				key := proto.ConstValue(in.Bx())
				if key.Type == TypeString {
					return key.Str.Str(), "global"
				}
				return "?", ""
			}
		case OpMove:
			if reg == in.A() {
				if name := proto.SearchLocalVar(in.B(), pc); name != nil {
					return name.Str(), "local"
				}
				return "?", ""
			}
		case OpGetUpvalue:
			if reg == in.A() {
				info := proto.UpvalueInfo(in.B())
				if info.Name != nil {
					return info.Name.Str(), "upvalue"
				}
				return "?", "upvalue"
			}
		case OpGetTable:
			if reg == in.C() {
				keyReg := v.reg(call, in.B())
				if keyReg.Type == TypeString {
					return keyReg.Str.Str(), "table member"
				}
				return "?", "table member"
			}
		}
	}
	return "?", ""
}

// checkCFunctionError raises a runtime error when the host function filled
// the State's error record. The host frame is popped before the line is
// computed, so the error points at the caller's call instruction.
func (v *VM) checkCFunctionError() {
	s := v.state
	rec := s.CFunctionErrorData()
	if rec.Type == CFuncErrorNoError {
		return
	}

	var msg string
	switch rec.Type {
	case CFuncErrorArgCount:
		msg = fmt.Sprintf("expect %d arguments", rec.ExpectArgCount)
	case CFuncErrorArgType:
		call := s.calls.back()
		arg := s.stack.At(call.Base + rec.ArgIndex)
		msg = fmt.Sprintf("argument #%d is a %s value, expect a %s value",
			rec.ArgIndex+1, arg.TypeName(), rec.ExpectType.Name())
	}

	s.calls.pop()
	throwError(NewRuntimeError(msg, v.currentInstructionLine()))
}

func (v *VM) checkType(a *Value, t ValueType, op string) {
	if a.Type != t {
		v.reportTypeError(v.state.CurrentCall(), a, op)
	}
}

func (v *VM) checkArithType(b, c *Value, op string) {
	if b.Type != TypeNumber || c.Type != TypeNumber {
		throwError(newBinOperandError(b, c, op, v.currentInstructionLine()))
	}
}

func (v *VM) checkInequalityType(b, c *Value, op string) {
	if b.Type != c.Type || (b.Type != TypeNumber && b.Type != TypeString) {
		throwError(newBinOperandError(b, c, op, v.currentInstructionLine()))
	}
}

func (v *VM) checkTableType(call *CallInfo, t, k *Value, op, desc string) {
	if t.Type == TypeTable {
		return
	}
	name, scope := v.getOperandNameAndScope(call, t)
	keyName := "?"
	if k.Type == TypeString {
		keyName = k.Str.Str()
	}
	opDesc := fmt.Sprintf("%s table key '%s' %s", op, keyName, desc)
	throwError(newOperandError(t, name, scope, opDesc, v.currentInstructionLine()))
}

func (v *VM) reportTypeError(call *CallInfo, val *Value, op string) {
	name, scope := v.getOperandNameAndScope(call, val)
	throwError(newOperandError(val, name, scope, op, v.currentInstructionLine()))
}
