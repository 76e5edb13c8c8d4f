// Package cpu implements the processor and assembler for the universal machine.
//
// The CPU consists of eight 32-bit general-purpose registers (r0-r7) and a
// fetch-decode-dispatch loop over fourteen operations. Instructions are
// fetched from segment 0 of a segmented memory, which the running program
// can also allocate, free and replace with any other segment.
//
// The assembler provides a small assembly language for the instruction set,
// supporting macros, labels, equates, and compile-time expression evaluation.
package cpu
