// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package emulator

import (
	"bytes"
	"errors"
	"fmt"
	goio "io"
	"iter"
	"log"
	"maps"

	"github.com/ezrec/um/cpu"
	"github.com/ezrec/um/internal"
	"github.com/ezrec/um/io"
	"github.com/ezrec/um/memory"
)

var _emulator_defines = map[string]string{
	"WORD_BYTES": fmt.Sprintf("%v", memory.WORD_BYTES),
}

// Emulator state. CPU + memory + console tape.
type Emulator struct {
	Verbose  bool         // If set, enables verbose logging.
	*cpu.Cpu              // Reference to the CPU simulation.
	Program  *cpu.Program // Program listing for line numbers, if assembled.

	Memory *memory.Memory // Segmented memory.
	Tape   io.Tape        // Console tape.

	image []byte // Program image restored by Reset.
}

// NewEmulator creates a new emulator.
func NewEmulator() (emu *Emulator) {
	emu = &Emulator{
		Memory: memory.NewMemory(),
	}

	emu.Cpu = cpu.NewCpu(emu.Memory, &emu.Tape)
	emu.Cpu.Reset()

	return
}

// Defines returns an iterator over all of the defines, ordered by name.
func (emu *Emulator) Defines() iter.Seq2[string, string] {
	return internal.Sorted2(internal.Concat2(
		maps.All(_emulator_defines),
		emu.Cpu.Defines(),
	))
}

// Close the emulator, releasing all memory.
func (emu *Emulator) Close() (err error) {
	err = emu.Memory.Close()
	if emu.Cpu.State == cpu.STATE_RUNNING {
		emu.Cpu.State = cpu.STATE_ABORTED
	}

	return
}

// Load reads a program image, and resets the machine to run it.
func (emu *Emulator) Load(input goio.Reader) (err error) {
	image, err := goio.ReadAll(input)
	if err != nil {
		return
	}

	emu.Program = nil
	emu.image = image

	err = emu.Reset()
	return
}

// LoadProgram loads an assembled program, and resets the machine to run it.
func (emu *Emulator) LoadProgram(prog *cpu.Program) (err error) {
	err = emu.Load(bytes.NewReader(prog.Image()))
	if err != nil {
		return
	}

	emu.Program = prog
	return
}

// Reset the machine to the start of the loaded program image.
func (emu *Emulator) Reset() (err error) {
	emu.Memory.Verbose = emu.Verbose
	emu.Memory.Reset()

	_, err = emu.Memory.ReadImage(bytes.NewReader(emu.image))
	if err != nil {
		return
	}

	emu.Cpu.Verbose = emu.Verbose
	err = emu.Cpu.Reset()
	return
}

// Ticks returns the total ticks since a reset.
func (emu *Emulator) Ticks() int {
	return emu.Cpu.Ticks
}

// Power returns the total power consumed.
func (emu *Emulator) Power() int {
	return emu.Cpu.Power
}

// Pc returns the current program counter.
func (emu *Emulator) Pc() uint32 {
	return emu.Memory.Pc
}

// LineNo returns the source line number for the next instruction.
func (emu *Emulator) LineNo() int {
	if emu.Program == nil {
		return 0
	}

	dbg := emu.Program.Debug(emu.Memory.Pc)
	if dbg.Opcode == nil {
		return 0
	}

	return dbg.LineNo
}

// Tick performs a single tick of the emulator.
func (emu *Emulator) Tick() (done bool, err error) {
	// Set CPU verbosity
	emu.Cpu.Verbose = emu.Verbose
	emu.Memory.Verbose = emu.Verbose

	pc := emu.Memory.Pc
	lineno := emu.LineNo()
	defer func() {
		if err != nil {
			err = &ErrRuntime{Pc: pc, LineNo: lineno, Err: err}
		}
	}()

	err = emu.Cpu.Tick()
	if errors.Is(err, cpu.ErrHalted) {
		err = nil
	}

	done = emu.Cpu.State != cpu.STATE_RUNNING

	return
}

// Run the machine until it halts or faults.
// Memory is released however the run ends.
func (emu *Emulator) Run() (err error) {
	defer func() {
		flush_err := emu.Tape.Flush()
		if err == nil {
			err = flush_err
		}
		emu.Memory.Close()
	}()

	for {
		var done bool
		done, err = emu.Tick()
		if err != nil || done {
			break
		}
	}
	if err != nil {
		return
	}

	if emu.Verbose {
		log.Printf("emulator: %v after %d ticks, power %d", emu.Cpu.State, emu.Ticks(), emu.Power())
	}

	return
}
