package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Base library
// ---------------------------------------------------------------------------

// RegisterBaseLib binds the base host functions into the global table.
// Each is an ordinary CFunction driving the StackAPI, which is also what a
// host extension would write.
func RegisterBaseLib(s *State) {
	s.RegisterCFunction("print", basePrint)
	s.RegisterCFunction("type", baseType)
	s.RegisterCFunction("tostring", baseToString)
	s.RegisterCFunction("select", baseSelect)
	s.RegisterCFunction("collectgarbage", baseCollectGarbage)
}

// basePrint writes its arguments tab-separated to the State's Stdout.
func basePrint(s *State) int {
	api := NewStackAPI(s)
	parts := make([]string, api.GetStackSize())
	for i := range parts {
		parts[i] = api.GetValue(i).String()
	}
	fmt.Fprintln(s.Stdout, strings.Join(parts, "\t"))
	return 0
}

// baseType returns the type name of its argument.
func baseType(s *State) int {
	api := NewStackAPI(s)
	if !api.CheckArgCount(1) {
		return 0
	}
	v := api.GetValue(0)
	api.PushString(v.TypeName())
	return 1
}

// baseToString renders its argument the way print does.
func baseToString(s *State) int {
	api := NewStackAPI(s)
	if !api.CheckArgCount(1) {
		return 0
	}
	api.PushString(api.GetValue(0).String())
	return 1
}

// baseSelect mirrors the canonical select: select('#', ...) returns the
// count of the remaining arguments; select(n, ...) returns the arguments
// from the n-th one on.
func baseSelect(s *State) int {
	api := NewStackAPI(s)
	if !api.CheckMinArgCount(1) {
		return 0
	}
	rest := api.GetStackSize() - 1

	first := api.GetValue(0)
	if first.Type == TypeString && first.Str.Str() == "#" {
		api.PushNumber(float64(rest))
		return 1
	}
	if first.Type != TypeNumber {
		api.ArgTypeError(0, TypeNumber)
		return 0
	}

	n := int(first.Num)
	if n < 1 {
		api.ArgTypeError(0, TypeNumber)
		return 0
	}
	count := 0
	for i := n; i <= rest; i++ {
		api.PushValue(api.GetValue(i))
		count++
	}
	return count
}

// baseCollectGarbage forces a full collection and returns the number of
// objects freed.
func baseCollectGarbage(s *State) int {
	api := NewStackAPI(s)
	freed := s.GC().Collect()
	api.PushNumber(float64(freed))
	return 1
}
