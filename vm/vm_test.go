package vm

import (
	"strings"
	"testing"
)

// Tests in this file hand-assemble prototypes: bytecode reaches the engine
// in-memory from the compiler collaborator, so the suite plays the compiler
// and feeds the dispatcher directly. Each scenario quotes the script source
// the bytecode corresponds to.

// run executes a prototype and fails the test on a runtime error.
func run(t *testing.T, s *State, proto *Function) []Value {
	t.Helper()
	results, err := s.Execute(proto)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	return results
}

// wantNumber asserts a single numeric result.
func wantNumber(t *testing.T, results []Value, want float64) {
	t.Helper()
	if len(results) != 1 {
		t.Fatalf("result count = %d, want 1", len(results))
	}
	if results[0].Type != TypeNumber {
		t.Fatalf("result type = %s, want number", results[0].TypeName())
	}
	if results[0].Num != want {
		t.Fatalf("result = %v, want %v", results[0].Num, want)
	}
}

// emit helpers: LOAD_INT consumes a trailing raw word; the line is recorded
// for both words to keep the pc-to-line table aligned.

func emitLoadInt(f *Function, reg int, n int32, line int) {
	f.AddInstruction(ACode(OpLoadInt, reg), line)
	f.AddInstruction(RawWord(n), line)
}

// ---------------------------------------------------------------------------
// End-to-end scenarios
// ---------------------------------------------------------------------------

// local t = {}; t[1]=10; t[2]=20; return #t   -->  2
func TestScenarioTableLength(t *testing.T) {
	s := NewState()
	f := s.NewFunction()

	f.AddInstruction(ACode(OpNewTable, 0), 1) // r0 = {}
	emitLoadInt(f, 1, 1, 1)                   // r1 = 1
	emitLoadInt(f, 2, 10, 1)                  // r2 = 10
	f.AddInstruction(ABCCode(OpSetTable, 0, 1, 2), 1)
	emitLoadInt(f, 1, 2, 1)
	emitLoadInt(f, 2, 20, 1)
	f.AddInstruction(ABCCode(OpSetTable, 0, 1, 2), 1)
	f.AddInstruction(ABCode(OpMove, 1, 0), 1) // r1 = t
	f.AddInstruction(ACode(OpLen, 1), 1)      // r1 = #t
	f.AddInstruction(AsBxCode(OpRet, 1, 1), 1)

	wantNumber(t, run(t, s, f), 2)
}

// local function mk() local x=0; return function() x=x+1; return x end end
// local f=mk(); f(); f(); return f()   -->  3
func TestScenarioCounterClosure(t *testing.T) {
	s := NewState()

	inner := s.NewFunction()
	inner.AddUpvalue(s.GetString("x"), true, 0)
	inner.AddInstruction(ABCode(OpGetUpvalue, 0, 0), 2) // r0 = x
	emitLoadInt(inner, 1, 1, 2)
	inner.AddInstruction(ABCCode(OpAdd, 0, 0, 1), 2)    // r0 = x + 1
	inner.AddInstruction(ABCode(OpSetUpvalue, 0, 0), 2) // x = r0
	inner.AddInstruction(AsBxCode(OpRet, 0, 1), 2)

	mk := s.NewFunction()
	mk.AddChildFunction(inner)
	emitLoadInt(mk, 0, 0, 1)                        // local x = 0
	mk.AddInstruction(ABxCode(OpClosure, 1, 0), 2)  // r1 = inner
	mk.AddInstruction(AsBxCode(OpRet, 1, 1), 2)

	main := s.NewFunction()
	main.AddChildFunction(mk)
	main.AddInstruction(ABxCode(OpClosure, 0, 0), 1) // r0 = mk
	main.AddInstruction(ABCode(OpMove, 1, 0), 3)
	main.AddInstruction(ABCCode(OpCall, 1, 1, 2), 3) // r1 = mk()
	main.AddInstruction(ABCode(OpMove, 2, 1), 3)
	main.AddInstruction(ABCCode(OpCall, 2, 1, 1), 3) // f()
	main.AddInstruction(ABCode(OpMove, 2, 1), 3)
	main.AddInstruction(ABCCode(OpCall, 2, 1, 1), 3) // f()
	main.AddInstruction(ABCode(OpMove, 2, 1), 3)
	main.AddInstruction(ABCCode(OpCall, 2, 1, 2), 3) // r2 = f()
	main.AddInstruction(AsBxCode(OpRet, 2, 1), 3)

	wantNumber(t, run(t, s, main), 3)
}

// local s=""; for i=1,3 do s = s .. i end; return s   -->  "123"
func TestScenarioConcatLoop(t *testing.T) {
	s := NewState()
	f := s.NewFunction()
	kEmpty := f.AddConstant(StringValue(s.GetString("")))

	f.AddInstruction(ABxCode(OpLoadConst, 0, kEmpty), 1) // pc0: s = ""
	emitLoadInt(f, 1, 1, 2)                              // pc1-2: i = 1
	emitLoadInt(f, 2, 3, 2)                              // pc3-4: limit
	emitLoadInt(f, 3, 1, 2)                              // pc5-6: step
	f.AddInstruction(ABCCode(OpForInit, 1, 2, 3), 2)     // pc7
	f.AddInstruction(ABCCode(OpForStep, 1, 2, 3), 2)     // pc8
	f.AddInstruction(SBxCode(OpJmp, 4), 2)               // pc9: exit -> pc13
	f.AddInstruction(ABCCode(OpConcat, 0, 0, 1), 2)      // pc10: s = s .. i
	f.AddInstruction(ABCCode(OpAdd, 1, 1, 3), 2)         // pc11: i += step
	f.AddInstruction(SBxCode(OpJmp, -4), 2)              // pc12: back to pc8
	f.AddInstruction(AsBxCode(OpRet, 0, 1), 3)           // pc13

	results := run(t, s, f)
	if len(results) != 1 || results[0].Type != TypeString {
		t.Fatalf("result = %v, want one string", results)
	}
	if got := results[0].Str.Str(); got != "123" {
		t.Fatalf("result = %q, want %q", got, "123")
	}
}

// local a,b,c = (function() return 1,2 end)(); return c   -->  nil
func TestScenarioNilFill(t *testing.T) {
	s := NewState()

	fn := s.NewFunction()
	emitLoadInt(fn, 0, 1, 1)
	emitLoadInt(fn, 1, 2, 1)
	fn.AddInstruction(AsBxCode(OpRet, 0, 2), 1) // return 1, 2

	main := s.NewFunction()
	main.AddChildFunction(fn)
	main.AddInstruction(ABxCode(OpClosure, 0, 0), 1)
	main.AddInstruction(ABCCode(OpCall, 0, 1, 4), 1) // a,b,c = fn()
	main.AddInstruction(AsBxCode(OpRet, 2, 1), 1)    // return c

	results := run(t, s, main)
	if len(results) != 1 {
		t.Fatalf("result count = %d, want 1", len(results))
	}
	if results[0].Type != TypeNil {
		t.Fatalf("c = %s, want nil", results[0].String())
	}
}

// return (function(...) return select('#', ...) end)(1,2,3,4)   -->  4
func TestScenarioSelectVarargCount(t *testing.T) {
	s := NewState()

	fn := s.NewFunction()
	fn.SetHasVararg()
	kSelect := fn.AddConstant(StringValue(s.GetString("select")))
	kHash := fn.AddConstant(StringValue(s.GetString("#")))
	fn.AddInstruction(ABxCode(OpGetGlobal, 0, kSelect), 1) // r0 = select
	fn.AddInstruction(ABxCode(OpLoadConst, 1, kHash), 1)   // r1 = "#"
	fn.AddInstruction(AsBxCode(OpVarArg, 2, ExpValueAny), 1)
	fn.AddInstruction(ABCCode(OpCall, 0, 0, 2), 1) // r0 = select("#", ...)
	fn.AddInstruction(AsBxCode(OpRet, 0, 1), 1)

	main := s.NewFunction()
	main.AddChildFunction(fn)
	main.AddInstruction(ABxCode(OpClosure, 0, 0), 1)
	emitLoadInt(main, 1, 1, 1)
	emitLoadInt(main, 2, 2, 1)
	emitLoadInt(main, 3, 3, 1)
	emitLoadInt(main, 4, 4, 1)
	main.AddInstruction(ABCCode(OpCall, 0, 5, 2), 1)
	main.AddInstruction(AsBxCode(OpRet, 0, 1), 1)

	wantNumber(t, run(t, s, main), 4)
}

// local t={}; return t.x   -->  nil (missing key is not an error)
func TestScenarioMissingKey(t *testing.T) {
	s := NewState()
	f := s.NewFunction()
	kx := f.AddConstant(StringValue(s.GetString("x")))

	f.AddInstruction(ACode(OpNewTable, 0), 1)
	f.AddInstruction(ABxCode(OpLoadConst, 1, kx), 1)
	f.AddInstruction(ABCCode(OpGetTable, 0, 1, 2), 1) // r2 = t["x"]
	f.AddInstruction(AsBxCode(OpRet, 2, 1), 1)

	results := run(t, s, f)
	if len(results) != 1 || results[0].Type != TypeNil {
		t.Fatalf("t.x = %v, want nil", results)
	}
}

// return 1 + "a"   -->  runtime error naming add and the string operand
func TestScenarioAddTypeError(t *testing.T) {
	s := NewState()
	f := s.NewFunction()
	ka := f.AddConstant(StringValue(s.GetString("a")))

	emitLoadInt(f, 0, 1, 1)
	f.AddInstruction(ABxCode(OpLoadConst, 1, ka), 1)
	f.AddInstruction(ABCCode(OpAdd, 2, 0, 1), 2) // the + is on line 2
	f.AddInstruction(AsBxCode(OpRet, 2, 1), 2)

	_, err := s.Execute(f)
	if err == nil {
		t.Fatal("expected a runtime error")
	}
	re, ok := err.(*RuntimeError)
	if !ok {
		t.Fatalf("error type = %T, want *RuntimeError", err)
	}
	if !strings.Contains(re.Message, "add") {
		t.Errorf("message %q should mention add", re.Message)
	}
	if !strings.Contains(re.Message, "string") {
		t.Errorf("message %q should mention the string operand", re.Message)
	}
	if re.Line != 2 {
		t.Errorf("error line = %d, want 2", re.Line)
	}
}

// ---------------------------------------------------------------------------
// Universal properties
// ---------------------------------------------------------------------------

// Two closures created in the same frame capturing the same local share one
// upvalue; a write through one is visible through the other after the
// enclosing function has returned.
//
//	local x = 10
//	return function() x = x + 5 end, function() return x end
func TestClosureUpvalueSharing(t *testing.T) {
	s := NewState()

	inc := s.NewFunction()
	inc.AddUpvalue(s.GetString("x"), true, 0)
	inc.AddInstruction(ABCode(OpGetUpvalue, 0, 0), 2)
	emitLoadInt(inc, 1, 5, 2)
	inc.AddInstruction(ABCCode(OpAdd, 0, 0, 1), 2)
	inc.AddInstruction(ABCode(OpSetUpvalue, 0, 0), 2)
	inc.AddInstruction(AsBxCode(OpRet, 0, 0), 2)

	get := s.NewFunction()
	get.AddUpvalue(s.GetString("x"), true, 0)
	get.AddInstruction(ABCode(OpGetUpvalue, 0, 0), 2)
	get.AddInstruction(AsBxCode(OpRet, 0, 1), 2)

	chunk := s.NewFunction()
	chunk.AddChildFunction(inc)
	chunk.AddChildFunction(get)
	emitLoadInt(chunk, 0, 10, 1)                      // local x = 10
	chunk.AddInstruction(ABxCode(OpClosure, 1, 0), 2) // r1 = inc
	chunk.AddInstruction(ABxCode(OpClosure, 2, 1), 2) // r2 = get
	chunk.AddInstruction(AsBxCode(OpRet, 1, 2), 2)    // return inc, get

	results := run(t, s, chunk)
	if len(results) != 2 {
		t.Fatalf("result count = %d, want 2", len(results))
	}
	f1, f2 := results[0], results[1]
	if f1.Type != TypeClosure || f2.Type != TypeClosure {
		t.Fatalf("results = %s, %s, want two functions", f1.String(), f2.String())
	}

	if f1.Closure.GetUpvalue(0) != f2.Closure.GetUpvalue(0) {
		t.Fatal("the two closures should share upvalue identity")
	}

	// The enclosing chunk has returned; mutate through one, observe through
	// the other.
	if _, err := s.CallValue(f1); err != nil {
		t.Fatalf("inc: %v", err)
	}
	got, err := s.CallValue(f2)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	wantNumber(t, got, 15)
}

// After f(); return, the call stack depth is back at its pre-call value.
func TestCallDepthRestored(t *testing.T) {
	s := NewState()

	var depthDuring int
	s.RegisterCFunction("probe", func(st *State) int {
		depthDuring = st.CallDepth()
		return 0
	})

	f := s.NewFunction()
	kProbe := f.AddConstant(StringValue(s.GetString("probe")))
	f.AddInstruction(ABxCode(OpGetGlobal, 0, kProbe), 1)
	f.AddInstruction(ABCCode(OpCall, 0, 1, 1), 1)
	f.AddInstruction(AsBxCode(OpRet, 0, 0), 2)

	run(t, s, f)
	// One script frame plus the transient host frame.
	if depthDuring != 2 {
		t.Errorf("depth during host call = %d, want 2", depthDuring)
	}
	if got := s.CallDepth(); got != 0 {
		t.Errorf("depth after execution = %d, want 0", got)
	}
}

// function f(...) return ... end preserves vararg count and order.
func TestVarargPassThrough(t *testing.T) {
	s := NewState()

	fn := s.NewFunction()
	fn.SetHasVararg()
	fn.AddInstruction(AsBxCode(OpVarArg, 0, ExpValueAny), 1)
	fn.AddInstruction(AsBxCode(OpRet, 0, ExpValueAny), 1)

	main := s.NewFunction()
	main.AddChildFunction(fn)
	main.AddInstruction(ABxCode(OpClosure, 0, 0), 1)
	emitLoadInt(main, 1, 10, 1)
	emitLoadInt(main, 2, 20, 1)
	emitLoadInt(main, 3, 30, 1)
	main.AddInstruction(ABCCode(OpCall, 0, 4, 0), 1)     // all results
	main.AddInstruction(AsBxCode(OpRet, 0, ExpValueAny), 1)

	results := run(t, s, main)
	if len(results) != 3 {
		t.Fatalf("result count = %d, want 3", len(results))
	}
	for i, want := range []float64{10, 20, 30} {
		if results[i].Num != want {
			t.Errorf("result[%d] = %v, want %v", i, results[i].Num, want)
		}
	}
}

// Vararg copy with a fixed expect count nil-fills past the available args.
func TestVarargFixedExpectNilFill(t *testing.T) {
	s := NewState()

	fn := s.NewFunction()
	fn.SetHasVararg()
	fn.AddInstruction(AsBxCode(OpVarArg, 0, 3), 1) // r0..r2 = first 3 varargs
	fn.AddInstruction(AsBxCode(OpRet, 0, 3), 1)

	main := s.NewFunction()
	main.AddChildFunction(fn)
	main.AddInstruction(ABxCode(OpClosure, 0, 0), 1)
	emitLoadInt(main, 1, 7, 1)
	main.AddInstruction(ABCCode(OpCall, 0, 2, 0), 1) // fn(7)
	main.AddInstruction(AsBxCode(OpRet, 0, ExpValueAny), 1)

	results := run(t, s, main)
	if len(results) != 3 {
		t.Fatalf("result count = %d, want 3", len(results))
	}
	if results[0].Num != 7 {
		t.Errorf("result[0] = %v, want 7", results[0].Num)
	}
	if results[1].Type != TypeNil || results[2].Type != TypeNil {
		t.Errorf("results[1..2] = %s, %s, want nil, nil",
			results[1].String(), results[2].String())
	}
}

// buildCountLoop assembles:
//
//	local n = 0; for i=init,limit,step do n = n + 1 end; return n
func buildCountLoop(s *State, init, limit, step int32) *Function {
	f := s.NewFunction()
	emitLoadInt(f, 0, 0, 1)    // pc0-1: n = 0
	emitLoadInt(f, 1, init, 2) // pc2-3
	emitLoadInt(f, 2, limit, 2)
	emitLoadInt(f, 3, step, 2)
	emitLoadInt(f, 4, 1, 2)                          // pc8-9: increment
	f.AddInstruction(ABCCode(OpForInit, 1, 2, 3), 2) // pc10
	f.AddInstruction(ABCCode(OpForStep, 1, 2, 3), 2) // pc11
	f.AddInstruction(SBxCode(OpJmp, 4), 2)           // pc12: exit -> pc16
	f.AddInstruction(ABCCode(OpAdd, 0, 0, 4), 2)     // pc13: n = n + 1
	f.AddInstruction(ABCCode(OpAdd, 1, 1, 3), 2)     // pc14: i += step
	f.AddInstruction(SBxCode(OpJmp, -4), 2)          // pc15: back to pc11
	f.AddInstruction(AsBxCode(OpRet, 0, 1), 3)       // pc16
	return f
}

// for i=a,b,s executes exactly max(0, floor((b-a)/s)+1) iterations.
func TestNumericForIterationCount(t *testing.T) {
	tests := []struct {
		init, limit, step int32
		want              float64
	}{
		{1, 3, 1, 3},
		{3, 1, -1, 3},
		{1, 0, 1, 0},
		{0, 1, -1, 0},
		{1, 3, 2, 2},
		{1, 10, 3, 4},
		{5, 5, 1, 1},
	}
	for _, tt := range tests {
		s := NewState()
		f := buildCountLoop(s, tt.init, tt.limit, tt.step)
		results := run(t, s, f)
		if results[0].Num != tt.want {
			t.Errorf("for i=%d,%d,%d ran %v iterations, want %v",
				tt.init, tt.limit, tt.step, results[0].Num, tt.want)
		}
	}
}

// The numeric for triple is type-checked on entry.
func TestNumericForTypeError(t *testing.T) {
	s := NewState()
	f := s.NewFunction()
	kOops := f.AddConstant(StringValue(s.GetString("oops")))

	f.AddInstruction(ABxCode(OpLoadConst, 1, kOops), 1) // init is a string
	emitLoadInt(f, 2, 3, 1)
	emitLoadInt(f, 3, 1, 1)
	f.AddInstruction(ABCCode(OpForInit, 1, 2, 3), 2)
	f.AddInstruction(AsBxCode(OpRet, 0, 0), 3)

	_, err := s.Execute(f)
	if err == nil {
		t.Fatal("expected a runtime error")
	}
	if !strings.Contains(err.Error(), "'for' init") {
		t.Errorf("error %q should blame 'for' init", err.Error())
	}
}

// ---------------------------------------------------------------------------
// Dispatcher details
// ---------------------------------------------------------------------------

func TestGlobalsRoundTrip(t *testing.T) {
	s := NewState()
	f := s.NewFunction()
	kAnswer := f.AddConstant(StringValue(s.GetString("answer")))

	emitLoadInt(f, 0, 42, 1)
	f.AddInstruction(ABxCode(OpSetGlobal, 0, kAnswer), 1)
	f.AddInstruction(ACode(OpLoadNil, 0), 2)
	f.AddInstruction(ABxCode(OpGetGlobal, 0, kAnswer), 2)
	f.AddInstruction(AsBxCode(OpRet, 0, 1), 2)

	wantNumber(t, run(t, s, f), 42)
	if got := s.GetGlobal("answer"); got.Num != 42 {
		t.Errorf("global answer = %v, want 42", got.Num)
	}
}

func TestArithmeticAndComparisons(t *testing.T) {
	// return (2 + 3) * 4 - 6 / 2  -->  17
	s := NewState()
	f := s.NewFunction()
	emitLoadInt(f, 0, 2, 1)
	emitLoadInt(f, 1, 3, 1)
	f.AddInstruction(ABCCode(OpAdd, 0, 0, 1), 1) // r0 = 5
	emitLoadInt(f, 1, 4, 1)
	f.AddInstruction(ABCCode(OpMul, 0, 0, 1), 1) // r0 = 20
	emitLoadInt(f, 1, 6, 1)
	emitLoadInt(f, 2, 2, 1)
	f.AddInstruction(ABCCode(OpDiv, 1, 1, 2), 1) // r1 = 3
	f.AddInstruction(ABCCode(OpSub, 0, 0, 1), 1) // r0 = 17
	f.AddInstruction(AsBxCode(OpRet, 0, 1), 1)

	wantNumber(t, run(t, s, f), 17)
}

func TestStringComparisonIsLexicographic(t *testing.T) {
	// return "abc" < "abd"  -->  true
	s := NewState()
	f := s.NewFunction()
	k1 := f.AddConstant(StringValue(s.GetString("abc")))
	k2 := f.AddConstant(StringValue(s.GetString("abd")))

	f.AddInstruction(ABxCode(OpLoadConst, 0, k1), 1)
	f.AddInstruction(ABxCode(OpLoadConst, 1, k2), 1)
	f.AddInstruction(ABCCode(OpLess, 2, 0, 1), 1)
	f.AddInstruction(AsBxCode(OpRet, 2, 1), 1)

	results := run(t, s, f)
	if results[0].Type != TypeBool || !results[0].Bool {
		t.Fatalf(`"abc" < "abd" = %s, want true`, results[0].String())
	}
}

func TestCompareMismatchedTypesFails(t *testing.T) {
	// return 1 < "a"  -->  runtime error
	s := NewState()
	f := s.NewFunction()
	ka := f.AddConstant(StringValue(s.GetString("a")))
	emitLoadInt(f, 0, 1, 1)
	f.AddInstruction(ABxCode(OpLoadConst, 1, ka), 1)
	f.AddInstruction(ABCCode(OpLess, 2, 0, 1), 1)
	f.AddInstruction(AsBxCode(OpRet, 2, 1), 1)

	if _, err := s.Execute(f); err == nil {
		t.Fatal("expected a runtime error comparing number with string")
	}
}

func TestEqualAcrossTypesIsDefined(t *testing.T) {
	// return 1 == "1"  -->  false (no error)
	s := NewState()
	f := s.NewFunction()
	k1 := f.AddConstant(StringValue(s.GetString("1")))
	emitLoadInt(f, 0, 1, 1)
	f.AddInstruction(ABxCode(OpLoadConst, 1, k1), 1)
	f.AddInstruction(ABCCode(OpEqual, 2, 0, 1), 1)
	f.AddInstruction(AsBxCode(OpRet, 2, 1), 1)

	results := run(t, s, f)
	if results[0].Type != TypeBool || results[0].Bool {
		t.Fatalf(`1 == "1" = %s, want false`, results[0].String())
	}
}

func TestConcatNumbers(t *testing.T) {
	// return 1 .. 2.5  -->  "12.5"
	s := NewState()
	f := s.NewFunction()
	kHalf := f.AddConstant(NumberValue(2.5))
	emitLoadInt(f, 0, 1, 1)
	f.AddInstruction(ABxCode(OpLoadConst, 1, kHalf), 1)
	f.AddInstruction(ABCCode(OpConcat, 2, 0, 1), 1)
	f.AddInstruction(AsBxCode(OpRet, 2, 1), 1)

	results := run(t, s, f)
	if results[0].Type != TypeString || results[0].Str.Str() != "12.5" {
		t.Fatalf("1 .. 2.5 = %s, want 12.5", results[0].String())
	}
}

func TestConcatInternsResult(t *testing.T) {
	s := NewState()
	f := s.NewFunction()
	kFoo := f.AddConstant(StringValue(s.GetString("foo")))
	kBar := f.AddConstant(StringValue(s.GetString("bar")))
	f.AddInstruction(ABxCode(OpLoadConst, 0, kFoo), 1)
	f.AddInstruction(ABxCode(OpLoadConst, 1, kBar), 1)
	f.AddInstruction(ABCCode(OpConcat, 2, 0, 1), 1)
	f.AddInstruction(AsBxCode(OpRet, 2, 1), 1)

	results := run(t, s, f)
	if results[0].Str != s.GetString("foobar") {
		t.Error("concat result should be interned")
	}
}

func TestJumpsAndTruthiness(t *testing.T) {
	// if 0 then return 1 else return 2 end  -->  1 (zero is true)
	s := NewState()
	f := s.NewFunction()
	emitLoadInt(f, 0, 0, 1)                         // pc0-1
	f.AddInstruction(AsBxCode(OpJmpFalse, 0, 4), 1) // pc2: false -> pc6
	emitLoadInt(f, 1, 1, 1)                         // pc3-4
	f.AddInstruction(AsBxCode(OpRet, 1, 1), 1)      // pc5
	emitLoadInt(f, 1, 2, 1)                         // pc6-7
	f.AddInstruction(AsBxCode(OpRet, 1, 1), 1)      // pc8

	wantNumber(t, run(t, s, f), 1)
}

func TestJmpNilUsesRawTag(t *testing.T) {
	// local x = nil; if x == nil then return 7 end
	s := NewState()
	f := s.NewFunction()
	f.AddInstruction(ACode(OpLoadNil, 0), 1)       // pc0
	f.AddInstruction(AsBxCode(OpJmpNil, 0, 2), 1)  // pc1: nil -> pc3
	f.AddInstruction(AsBxCode(OpRet, 0, 0), 1)     // pc2
	emitLoadInt(f, 1, 7, 1)                        // pc3-4
	f.AddInstruction(AsBxCode(OpRet, 1, 1), 1)     // pc5

	wantNumber(t, run(t, s, f), 7)
}

func TestNegNotLen(t *testing.T) {
	// return -( #"abcd" ), not nil
	s := NewState()
	f := s.NewFunction()
	kStr := f.AddConstant(StringValue(s.GetString("abcd")))
	f.AddInstruction(ABxCode(OpLoadConst, 0, kStr), 1)
	f.AddInstruction(ACode(OpLen, 0), 1)
	f.AddInstruction(ACode(OpNeg, 0), 1)
	f.AddInstruction(ACode(OpLoadNil, 1), 1)
	f.AddInstruction(ACode(OpNot, 1), 1)
	f.AddInstruction(AsBxCode(OpRet, 0, 2), 1)

	results := run(t, s, f)
	if results[0].Num != -4 {
		t.Errorf("-#\"abcd\" = %v, want -4", results[0].Num)
	}
	if results[1].Type != TypeBool || !results[1].Bool {
		t.Errorf("not nil = %s, want true", results[1].String())
	}
}

func TestCallNonCallableFails(t *testing.T) {
	s := NewState()
	f := s.NewFunction()
	f.AddInstruction(ACode(OpLoadNil, 0), 1)
	f.AddInstruction(ABCCode(OpCall, 0, 1, 1), 1)
	f.AddInstruction(AsBxCode(OpRet, 0, 0), 1)

	_, err := s.Execute(f)
	if err == nil {
		t.Fatal("expected a runtime error calling nil")
	}
	if !strings.Contains(err.Error(), "call") || !strings.Contains(err.Error(), "nil") {
		t.Errorf("error %q should mention calling a nil value", err.Error())
	}
}

// Missing arguments of a script function read as nil.
func TestMissingArgsAreNil(t *testing.T) {
	s := NewState()

	fn := s.NewFunction()
	fn.SetFixedArgCount(2)
	fn.AddInstruction(AsBxCode(OpRet, 1, 1), 1) // return second parameter

	main := s.NewFunction()
	main.AddChildFunction(fn)
	main.AddInstruction(ABxCode(OpClosure, 0, 0), 1)
	emitLoadInt(main, 1, 9, 1)
	main.AddInstruction(ABCCode(OpCall, 0, 2, 2), 1) // fn(9)
	main.AddInstruction(AsBxCode(OpRet, 0, 1), 1)

	results := run(t, s, main)
	if results[0].Type != TypeNil {
		t.Fatalf("missing parameter = %s, want nil", results[0].String())
	}
}

// A frame that runs off its code end behaves as returning zero values.
func TestImplicitReturn(t *testing.T) {
	s := NewState()

	fn := s.NewFunction()
	emitLoadInt(fn, 0, 1, 1) // no Ret afterwards

	main := s.NewFunction()
	main.AddChildFunction(fn)
	main.AddInstruction(ABxCode(OpClosure, 0, 0), 1)
	main.AddInstruction(ABCCode(OpCall, 0, 1, 2), 1) // r0 = fn()
	main.AddInstruction(AsBxCode(OpRet, 0, 1), 1)

	results := run(t, s, main)
	if len(results) != 1 || results[0].Type != TypeNil {
		t.Fatalf("implicit return = %v, want one nil", results)
	}
	if got := s.CallDepth(); got != 0 {
		t.Errorf("depth after implicit return = %d, want 0", got)
	}
}
