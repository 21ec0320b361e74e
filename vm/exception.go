package vm

import "fmt"

// ---------------------------------------------------------------------------
// Runtime errors
// ---------------------------------------------------------------------------

// RuntimeError aborts script execution. Inside the dispatcher it travels as
// a panic value; the State's execute boundary recovers it, drains the call
// list back to the pre-execute depth, and returns it as an ordinary error.
type RuntimeError struct {
	Message string
	Line    int
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%d: %s", e.Line, e.Message)
}

// NewRuntimeError creates an error with a plain message.
func NewRuntimeError(message string, line int) *RuntimeError {
	return &RuntimeError{Message: message, Line: line}
}

// newOperandError names a single offending operand:
//
//	attempt to call global 'foo' (a nil value)
//	attempt to call '?' (a table value)
func newOperandError(v *Value, name, scope, op string, line int) *RuntimeError {
	var msg string
	if scope != "" {
		msg = fmt.Sprintf("attempt to %s %s '%s' (a %s value)", op, scope, name, v.TypeName())
	} else {
		msg = fmt.Sprintf("attempt to %s '%s' (a %s value)", op, name, v.TypeName())
	}
	return &RuntimeError{Message: msg, Line: line}
}

// newBinOperandError blames a two-operand operation:
//
//	attempt to add a number value with a string value
func newBinOperandError(v1, v2 *Value, op string, line int) *RuntimeError {
	msg := fmt.Sprintf("attempt to %s a %s value with a %s value",
		op, v1.TypeName(), v2.TypeName())
	return &RuntimeError{Message: msg, Line: line}
}

// newExpectTypeError blames a value of the wrong type where a specific one
// is required:
//
//	'for' init is a string value, expect a number value
func newExpectTypeError(v *Value, what string, expect ValueType, line int) *RuntimeError {
	msg := fmt.Sprintf("%s is a %s value, expect a %s value",
		what, v.TypeName(), expect.Name())
	return &RuntimeError{Message: msg, Line: line}
}

// throwError raises e through the dispatcher. Recovered only at the State
// execute boundary.
func throwError(e *RuntimeError) {
	panic(e)
}
