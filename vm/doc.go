// Package vm implements the Selene virtual machine.
//
// This package contains:
//   - Tagged value representation and the shared value stack
//   - Register-based bytecode encoding and disassembly
//   - Function prototypes, closures, and shared upvalue cells
//   - The instruction dispatcher and calling convention
//   - Mark-sweep garbage collection over the engine heap
//   - The Stack API for host extension functions
//   - Module loading and the prototype image codec
package vm
