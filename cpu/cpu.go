// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"errors"
	"fmt"
	"iter"
	"log"
	"maps"
	"math/bits"

	"github.com/ezrec/um/io"
	"github.com/ezrec/um/memory"
)

// Channel is a byte I/O channel interface.
type Channel io.Channel

const (
	OUTPUT_MAX = 0xff       // Largest register value written by OP_OUT.
	INPUT_EOF  = 0xffffffff // Register value read by OP_IN at end of input.
)

var _cpu_defines = map[string]string{
	"REGISTERS":     fmt.Sprintf("%v", REGISTERS),
	"IMMEDIATE_MAX": fmt.Sprintf("0x%x", IMMEDIATE_MAX),
	"OUTPUT_MAX":    fmt.Sprintf("0x%x", OUTPUT_MAX),
	"INPUT_EOF":     fmt.Sprintf("0x%x", INPUT_EOF),
}

// State is the execution state of the CPU.
type State int

//go:generate go tool stringer -linecomment -type=State
const (
	STATE_RUNNING = State(0) // running
	STATE_HALTED  = State(1) // halted
	STATE_ABORTED = State(2) // aborted
)

// Cpu is the execution context of the universal machine.
type Cpu struct {
	Verbose bool // Set to enable verbose logging.

	Memory  *memory.Memory // Segmented memory, segment 0 is the program.
	Console Channel        // Byte channel for OP_IN and OP_OUT.

	Register [REGISTERS]uint32 // Register bank.
	State    State             // Execution state.

	Power int // Power (register bits flipped) counter.
	Ticks int // Instructions executed.
}

// NewCpu creates a new CPU attached to a memory and console.
func NewCpu(mem *memory.Memory, console Channel) (cpu *Cpu) {
	cpu = &Cpu{
		Memory:  mem,
		Console: console,
	}

	return
}

// Defines for the cpu
func (cpu *Cpu) Defines() iter.Seq2[string, string] {
	return maps.All(_cpu_defines)
}

// String returns the current CPU state as a string.
func (cpu *Cpu) String() (text string) {
	text = fmt.Sprintf("% 5s: %v\n", "state", cpu.State)
	if cpu.Memory != nil {
		text += fmt.Sprintf("% 5s: %08X\n", "pc", cpu.Memory.Pc)
	}
	for n, val := range cpu.Register {
		text += fmt.Sprintf("% 5s: %04X_%04X\n", Register(n).String(), val>>16, val&0xffff)
	}

	return
}

// Reset the CPU state.
// - Clears the registers.
// - Zeros statistics counters.
// - Rewinds the console.
func (cpu *Cpu) Reset() (err error) {
	if cpu.Verbose {
		log.Printf("cpu: reset")
	}

	clear(cpu.Register[:])
	cpu.State = STATE_RUNNING
	cpu.Ticks = 0
	cpu.Power = 0

	if cpu.Console != nil {
		cpu.Console.Rewind()
	}

	return
}

// FetchCode fetches the next instruction from segment 0.
func (cpu *Cpu) FetchCode() (code Code, err error) {
	if cpu.State != STATE_RUNNING {
		err = ErrHalted
		return
	}

	word, err := cpu.Memory.Fetch()
	if err != nil {
		return
	}

	code = Code(word)
	return
}

// Tick executes a single CPU instruction cycle.
// Running off the end of segment 0 halts the CPU; any fault aborts it.
func (cpu *Cpu) Tick() (err error) {
	if cpu.State != STATE_RUNNING {
		err = ErrHalted
		return
	}

	code, err := cpu.FetchCode()
	if errors.Is(err, memory.ErrExhausted) {
		if cpu.Verbose {
			log.Printf("cpu: instruction stream exhausted")
		}
		cpu.State = STATE_HALTED
		err = nil
		return
	}
	if err != nil {
		cpu.State = STATE_ABORTED
		return
	}

	err = cpu.Execute(code)
	if err != nil {
		cpu.State = STATE_ABORTED
		return
	}

	return
}

// Execute executes a single instruction word.
func (cpu *Cpu) Execute(code Code) (err error) {
	defer func() {
		if err != nil {
			err = errors.Join(ErrOpcode(code), err)
		}
	}()

	ins, err := code.Decode()
	if err != nil {
		return
	}

	if cpu.Verbose {
		// The program counter has already moved past this instruction.
		log.Printf("%08x: %v", cpu.Memory.Pc-1, ins)
	}

	prior := cpu.Register
	reg := &cpu.Register
	a, b, c := ins.A, ins.B, ins.C
	mem := cpu.Memory

	switch ins.Op {
	case OP_CMOV:
		if reg[c] != 0 {
			reg[a] = reg[b]
		}
	case OP_LOAD:
		var value uint32
		value, err = mem.Load(reg[b], reg[c])
		if err != nil {
			return
		}
		reg[a] = value
	case OP_STORE:
		err = mem.Store(reg[a], reg[b], reg[c])
		if err != nil {
			return
		}
	case OP_ADD:
		reg[a] = reg[b] + reg[c]
	case OP_MUL:
		reg[a] = reg[b] * reg[c]
	case OP_DIV:
		if reg[c] == 0 {
			err = ErrDivideByZero
			return
		}
		reg[a] = reg[b] / reg[c]
	case OP_NAND:
		reg[a] = ^(reg[b] & reg[c])
	case OP_HALT:
		if cpu.Verbose {
			log.Printf("cpu: halt")
		}
		cpu.State = STATE_HALTED
	case OP_MAP:
		var index uint32
		index, err = mem.Map(reg[c])
		if err != nil {
			return
		}
		reg[b] = index
	case OP_UNMAP:
		err = mem.Unmap(reg[c])
		if err != nil {
			return
		}
	case OP_OUT:
		if reg[c] > OUTPUT_MAX {
			if cpu.Verbose {
				log.Printf("cpu: output 0x%x ignored", reg[c])
			}
			break
		}
		if cpu.Console == nil {
			err = ErrChannelInvalid
			return
		}
		err = cpu.Console.WriteByte(byte(reg[c]))
		if err != nil {
			return
		}
	case OP_IN:
		var value byte
		if cpu.Console == nil {
			reg[c] = INPUT_EOF
			break
		}
		value, err = cpu.Console.ReadByte()
		if errors.Is(err, io.EOF) {
			err = nil
			reg[c] = INPUT_EOF
			break
		}
		if err != nil {
			return
		}
		reg[c] = uint32(value)
	case OP_LOADP:
		err = mem.Install(reg[b], reg[c])
		if err != nil {
			return
		}
	case OP_LOADI:
		reg[a] = ins.Value
	default:
		err = ErrOpcodeInvalid
		return
	}

	cpu.Ticks += 1
	for n := range reg {
		cpu.Power += bits.OnesCount32(prior[n] ^ reg[n])
	}

	return
}
