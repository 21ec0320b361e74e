package vm

import (
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// StackAPI tests
// ---------------------------------------------------------------------------

func TestStackAPIReadsArguments(t *testing.T) {
	s := NewState()
	tbl := s.NewTable()

	var gotCount int
	var gotNum float64
	var gotStr string
	var gotBool bool
	var gotTable *Table
	s.RegisterCFunction("inspect", func(st *State) int {
		api := NewStackAPI(st)
		gotCount = api.GetStackSize()
		gotNum = api.GetNumber(0)
		gotStr = api.GetString(1)
		gotBool = api.GetBool(2)
		gotTable = api.GetTable(3)
		return 0
	})

	_, err := s.CallGlobal("inspect",
		NumberValue(3.5),
		StringValue(s.GetString("hi")),
		BoolValue(true),
		TableValue(tbl),
	)
	if err != nil {
		t.Fatalf("CallGlobal: %v", err)
	}

	if gotCount != 4 {
		t.Errorf("GetStackSize() = %d, want 4", gotCount)
	}
	if gotNum != 3.5 {
		t.Errorf("GetNumber(0) = %v, want 3.5", gotNum)
	}
	if gotStr != "hi" {
		t.Errorf("GetString(1) = %q, want %q", gotStr, "hi")
	}
	if !gotBool {
		t.Error("GetBool(2) = false, want true")
	}
	if gotTable != tbl {
		t.Error("GetTable(3) returned a different table")
	}
}

func TestStackAPIPredicates(t *testing.T) {
	s := NewState()

	var ok bool
	s.RegisterCFunction("check", func(st *State) int {
		api := NewStackAPI(st)
		ok = api.IsNumber(0) && api.IsString(1) && api.IsNil(2) &&
			!api.IsTable(0) && api.IsNil(99)
		return 0
	})

	_, err := s.CallGlobal("check",
		NumberValue(1), StringValue(s.GetString("s")), NilValue())
	if err != nil {
		t.Fatalf("CallGlobal: %v", err)
	}
	if !ok {
		t.Error("predicates disagreed with the pushed arguments")
	}
}

func TestStackAPIPushesResults(t *testing.T) {
	s := NewState()
	s.RegisterCFunction("three", func(st *State) int {
		api := NewStackAPI(st)
		api.PushNumber(1)
		api.PushString("two")
		api.PushBool(false)
		return 3
	})

	results, err := s.CallGlobal("three")
	if err != nil {
		t.Fatalf("CallGlobal: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("result count = %d, want 3", len(results))
	}
	if results[0].Num != 1 {
		t.Errorf("result[0] = %v, want 1", results[0].Num)
	}
	if results[1].Str.Str() != "two" {
		t.Errorf("result[1] = %s, want 'two'", results[1].String())
	}
	if results[2].Type != TypeBool || results[2].Bool {
		t.Errorf("result[2] = %s, want false", results[2].String())
	}
}

func TestStackAPIOutOfRangeIsNil(t *testing.T) {
	s := NewState()
	var v Value
	s.RegisterCFunction("peek", func(st *State) int {
		v = NewStackAPI(st).GetValue(5)
		return 0
	})
	if _, err := s.CallGlobal("peek"); err != nil {
		t.Fatalf("CallGlobal: %v", err)
	}
	if v.Type != TypeNil {
		t.Errorf("out-of-range argument = %s, want nil", v.String())
	}
}

func TestStackAPIArgCountCheck(t *testing.T) {
	s := NewState()
	s.RegisterCFunction("pair", func(st *State) int {
		api := NewStackAPI(st)
		if !api.CheckArgCount(2) {
			return 0
		}
		api.PushNumber(api.GetNumber(0) + api.GetNumber(1))
		return 1
	})

	results, err := s.CallGlobal("pair", NumberValue(2), NumberValue(5))
	if err != nil {
		t.Fatalf("CallGlobal: %v", err)
	}
	if results[0].Num != 7 {
		t.Errorf("pair(2, 5) = %v, want 7", results[0].Num)
	}

	if _, err := s.CallGlobal("pair", NumberValue(2)); err == nil {
		t.Fatal("expected an arg count error")
	} else if !strings.Contains(err.Error(), "expect 2 arguments") {
		t.Errorf("error = %q, want arg count message", err.Error())
	}
}

// ---------------------------------------------------------------------------
// Base library tests
// ---------------------------------------------------------------------------

func TestBasePrint(t *testing.T) {
	s := NewState()
	var out strings.Builder
	s.Stdout = &out

	_, err := s.CallGlobal("print",
		NumberValue(1), StringValue(s.GetString("two")), BoolValue(true), NilValue())
	if err != nil {
		t.Fatalf("print: %v", err)
	}
	if got := out.String(); got != "1\ttwo\ttrue\tnil\n" {
		t.Errorf("print output = %q, want %q", got, "1\ttwo\ttrue\tnil\n")
	}
}

func TestBaseType(t *testing.T) {
	s := NewState()
	tests := []struct {
		v    Value
		want string
	}{
		{NilValue(), "nil"},
		{NumberValue(1), "number"},
		{StringValue(s.GetString("x")), "string"},
		{TableValue(s.NewTable()), "table"},
	}
	for _, tt := range tests {
		results, err := s.CallGlobal("type", tt.v)
		if err != nil {
			t.Fatalf("type: %v", err)
		}
		if results[0].Str.Str() != tt.want {
			t.Errorf("type(%s) = %s, want %q", tt.v.String(), results[0].String(), tt.want)
		}
	}
}

func TestBaseToString(t *testing.T) {
	s := NewState()
	results, err := s.CallGlobal("tostring", NumberValue(2.5))
	if err != nil {
		t.Fatalf("tostring: %v", err)
	}
	if results[0].Str.Str() != "2.5" {
		t.Errorf("tostring(2.5) = %s, want 2.5", results[0].String())
	}
}

func TestBaseSelect(t *testing.T) {
	s := NewState()
	hash := StringValue(s.GetString("#"))
	args := []Value{hash, NumberValue(10), NumberValue(20), NumberValue(30)}

	results, err := s.CallGlobal("select", args...)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(results) != 1 || results[0].Num != 3 {
		t.Fatalf("select('#', ...) = %v, want 3", results)
	}

	results, err = s.CallGlobal("select",
		NumberValue(2), NumberValue(10), NumberValue(20), NumberValue(30))
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(results) != 2 || results[0].Num != 20 || results[1].Num != 30 {
		t.Fatalf("select(2, 10, 20, 30) = %v, want [20 30]", results)
	}
}

func TestBaseCollectGarbage(t *testing.T) {
	s := NewState()
	for i := 0; i < 50; i++ {
		s.NewTable()
	}
	results, err := s.CallGlobal("collectgarbage")
	if err != nil {
		t.Fatalf("collectgarbage: %v", err)
	}
	if results[0].Type != TypeNumber || results[0].Num < 50 {
		t.Errorf("collectgarbage() = %s, want >= 50 freed", results[0].String())
	}
}
