package cpu

import (
	"fmt"

	"github.com/ezrec/um/bitpack"
)

// Op is an operation code.
type Op int

//go:generate go tool stringer -linecomment -type=Op
const (
	OP_CMOV  = Op(0)  // cmov
	OP_LOAD  = Op(1)  // load
	OP_STORE = Op(2)  // store
	OP_ADD   = Op(3)  // add
	OP_MUL   = Op(4)  // mul
	OP_DIV   = Op(5)  // div
	OP_NAND  = Op(6)  // nand
	OP_HALT  = Op(7)  // halt
	OP_MAP   = Op(8)  // map
	OP_UNMAP = Op(9)  // unmap
	OP_OUT   = Op(10) // out
	OP_IN    = Op(11) // in
	OP_LOADP = Op(12) // loadp
	OP_LOADI = Op(13) // loadi
)

// Instruction word layout.
const (
	OPCODE_WIDTH    = 4  // Width of the opcode field.
	OPCODE_LSB      = 28 // Opcode field position.
	REGISTER_WIDTH  = 3  // Width of a register selector.
	REG_A_LSB       = 6  // Register A position.
	REG_B_LSB       = 3  // Register B position.
	REG_C_LSB       = 0  // Register C position.
	LOADI_REG_LSB   = 25 // Register A position for OP_LOADI.
	IMMEDIATE_WIDTH = 25 // Width of the OP_LOADI immediate.

	IMMEDIATE_MAX = (1 << IMMEDIATE_WIDTH) - 1 // Largest OP_LOADI immediate.
	OP_COUNT      = 14                         // Number of defined opcodes.
	REGISTERS     = 8                          // Number of registers.
)

// Valid returns true for the fourteen defined operations.
func (op Op) Valid() bool {
	return op >= OP_CMOV && op < OP_COUNT
}

// Register is a register selector.
type Register uint8

func (reg Register) String() string {
	return fmt.Sprintf("r%d", uint8(reg))
}

// Instruction is a decoded instruction word.
type Instruction struct {
	Op    Op
	A     Register
	B     Register
	C     Register
	Value uint32 // OP_LOADI immediate.
}

// Code is a single 32-bit instruction word.
type Code uint32

// getu extracts a field of a fixed layout.
func getu(word uint32, width, lsb uint) uint32 {
	value, err := bitpack.Getu(uint64(word), width, lsb)
	if err != nil {
		panic(err)
	}
	return uint32(value)
}

// newu inserts a field of a fixed layout.
func newu(word uint32, width, lsb uint, value uint32) uint32 {
	out, err := bitpack.Newu(uint64(word), width, lsb, uint64(value))
	if err != nil {
		panic(err)
	}
	return uint32(out)
}

// MakeCode creates a three register instruction.
func MakeCode(op Op, a, b, c Register) Code {
	if op == OP_LOADI {
		panic("loadi is not a three register instruction")
	}
	word := newu(0, OPCODE_WIDTH, OPCODE_LSB, uint32(op))
	word = newu(word, REGISTER_WIDTH, REG_A_LSB, uint32(a))
	word = newu(word, REGISTER_WIDTH, REG_B_LSB, uint32(b))
	word = newu(word, REGISTER_WIDTH, REG_C_LSB, uint32(c))
	return Code(word)
}

// MakeCodeLoadImm creates an immediate load of value into register a.
func MakeCodeLoadImm(a Register, value uint32) Code {
	word := newu(0, OPCODE_WIDTH, OPCODE_LSB, uint32(OP_LOADI))
	word = newu(word, REGISTER_WIDTH, LOADI_REG_LSB, uint32(a))
	word = newu(word, IMMEDIATE_WIDTH, 0, value)
	return Code(word)
}

// Op returns the operation field, which may be invalid.
func (code Code) Op() Op {
	return Op(getu(uint32(code), OPCODE_WIDTH, OPCODE_LSB))
}

// Decode the instruction word.
func (code Code) Decode() (ins Instruction, err error) {
	word := uint32(code)

	ins.Op = code.Op()
	switch {
	case ins.Op == OP_LOADI:
		ins.A = Register(getu(word, REGISTER_WIDTH, LOADI_REG_LSB))
		ins.Value = getu(word, IMMEDIATE_WIDTH, 0)
	case ins.Op.Valid():
		ins.A = Register(getu(word, REGISTER_WIDTH, REG_A_LSB))
		ins.B = Register(getu(word, REGISTER_WIDTH, REG_B_LSB))
		ins.C = Register(getu(word, REGISTER_WIDTH, REG_C_LSB))
	default:
		err = ErrOpcodeInvalid
	}

	return
}

// Code encodes the instruction.
func (ins Instruction) Code() Code {
	if ins.Op == OP_LOADI {
		return MakeCodeLoadImm(ins.A, ins.Value)
	}
	return MakeCode(ins.Op, ins.A, ins.B, ins.C)
}

// String returns the assembly language representation of the instruction.
func (ins Instruction) String() (out string) {
	switch ins.Op {
	case OP_HALT:
		out = ins.Op.String()
	case OP_MAP, OP_LOADP:
		out = fmt.Sprintf("%v %v %v", ins.Op, ins.B, ins.C)
	case OP_UNMAP, OP_OUT, OP_IN:
		out = fmt.Sprintf("%v %v", ins.Op, ins.C)
	case OP_LOADI:
		out = fmt.Sprintf("%v %v %#x", ins.Op, ins.A, ins.Value)
	default:
		out = fmt.Sprintf("%v %v %v %v", ins.Op, ins.A, ins.B, ins.C)
	}

	return
}

// String returns the assembly language representation of this word.
// Undecodable words are shown as data.
func (code Code) String() string {
	ins, err := code.Decode()
	if err != nil {
		return fmt.Sprintf(".word 0x%08x", uint32(code))
	}

	return ins.String()
}
