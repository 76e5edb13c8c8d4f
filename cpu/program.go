package cpu

import (
	"encoding/binary"
	"io"
	"iter"
)

// Opcode represents a line of assembled code with its source location and generated instructions.
type Opcode struct {
	LineNo    int
	Ip        int
	Words     []string
	Codes     []Code
	LinkLabel string
}

// Program is an assembled program image.
type Program struct {
	Opcodes []Opcode
}

type Debug struct {
	*Opcode
	Index int
}

// Debug locates the opcode that generated the word at pc.
func (prog *Program) Debug(pc uint32) (dbg Debug) {
	for n, op := range prog.Opcodes {
		if uint64(pc) >= uint64(op.Ip) && uint64(pc) < uint64(op.Ip)+uint64(len(op.Codes)) {
			index := int(pc - uint32(op.Ip))
			dbg = Debug{
				Opcode: &prog.Opcodes[n],
				Index:  index,
			}
			break
		}
	}

	return
}

// Codes iterates over the words of the program and their addresses.
func (prog *Program) Codes() iter.Seq2[uint32, Code] {
	return func(yield func(pc uint32, code Code) bool) {
		for _, op := range prog.Opcodes {
			pc := uint32(op.Ip)
			for n, code := range op.Codes {
				if !yield(pc+uint32(n), code) {
					return
				}
			}
		}
	}
}

// Binary returns the words of the program.
func (prog *Program) Binary() (bins []uint32) {
	for _, code := range prog.Codes() {
		bins = append(bins, uint32(code))
	}

	return
}

// Image returns the program as a big-endian byte image.
func (prog *Program) Image() (image []byte) {
	for _, word := range prog.Binary() {
		image = binary.BigEndian.AppendUint32(image, word)
	}

	return
}

// WriteTo writes the program image to w.
func (prog *Program) WriteTo(w io.Writer) (n int64, err error) {
	written, err := w.Write(prog.Image())
	n = int64(written)

	return
}
