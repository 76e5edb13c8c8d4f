// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package memory

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"slices"
)

const (
	WORD_BYTES = 4 // Bytes per word in a program image.
)

// Slot is an entry in the segment table.
type Slot struct {
	Live  bool     // Set while the slot holds a mapped segment.
	Words []uint32 // Segment contents.
}

// Memory is the segmented memory of the machine.
//
// Segment 0 is the instruction stream, and the program counter is an
// offset into it.
type Memory struct {
	Verbose bool // Set to enable verbose logging.
	Strict  bool // Reject program images that end mid-word.

	Pc uint32 // Next instruction to fetch from segment 0.

	slot []Slot // Segment table.
	free Pool   // Unmapped indices, most recent last.
}

// NewMemory creates a memory with an empty segment 0.
func NewMemory() (mem *Memory) {
	mem = &Memory{}
	mem.Reset()

	return
}

// Reset releases every segment, then maps an empty segment 0.
func (mem *Memory) Reset() {
	mem.Close()

	mem.slot = []Slot{{Live: true, Words: []uint32{}}}
	mem.Pc = 0
}

// Close releases every segment and the free pool.
func (mem *Memory) Close() (err error) {
	for n := range mem.slot {
		mem.slot[n] = Slot{}
	}
	mem.slot = nil
	mem.free.Reset()
	mem.Pc = 0

	return
}

// String returns a summary of the memory state.
func (mem *Memory) String() string {
	var seg0 int
	if len(mem.slot) > 0 {
		seg0 = len(mem.slot[0].Words)
	}
	return fmt.Sprintf("pc: %08x/%08x segments: %d mapped: %d free: %d",
		mem.Pc, seg0, len(mem.slot), mem.Mapped(), mem.free.Len())
}

// Segments returns the number of slots in the segment table.
func (mem *Memory) Segments() int {
	return len(mem.slot)
}

// Mapped returns the number of live segments.
func (mem *Memory) Mapped() (count int) {
	for _, slot := range mem.slot {
		if slot.Live {
			count++
		}
	}
	return
}

// Live returns true if index refers to a mapped segment.
func (mem *Memory) Live(index uint32) bool {
	return uint64(index) < uint64(len(mem.slot)) && mem.slot[index].Live
}

// Len returns the word count of a mapped segment.
func (mem *Memory) Len(index uint32) (words uint32, err error) {
	slot, err := mem.segment(index, 0)
	if err != nil {
		return
	}

	words = uint32(len(slot.Words))
	return
}

// segment returns the live slot at index.
func (mem *Memory) segment(index uint32, offset uint32) (slot *Slot, err error) {
	if len(mem.slot) == 0 {
		err = &ErrSegment{Index: index, Offset: offset, Err: ErrClosed}
		return
	}
	if !mem.Live(index) {
		err = &ErrSegment{Index: index, Offset: offset, Err: ErrInvalidSegment}
		return
	}

	slot = &mem.slot[index]
	return
}

// word returns the address of a word in a live segment.
func (mem *Memory) word(index uint32, offset uint32) (word *uint32, err error) {
	slot, err := mem.segment(index, offset)
	if err != nil {
		return
	}
	if uint64(offset) >= uint64(len(slot.Words)) {
		err = &ErrSegment{Index: index, Offset: offset, Err: ErrOutOfBounds}
		return
	}

	word = &slot.Words[offset]
	return
}

// ReadImage appends the big-endian words of a program image to segment 0.
// A trailing partial word is dropped, and is an error in Strict mode.
func (mem *Memory) ReadImage(input io.Reader) (words int, err error) {
	seg0, err := mem.segment(0, 0)
	if err != nil {
		return
	}

	var buff [WORD_BYTES]byte
	for {
		var n int
		n, err = io.ReadFull(input, buff[:])
		if errors.Is(err, io.EOF) {
			err = nil
			break
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = nil
			if mem.Verbose {
				log.Printf("memory: image: dropped %d trailing bytes", n)
			}
			if mem.Strict {
				err = ErrMalformedInput
			}
			break
		}
		if err != nil {
			return
		}
		seg0.Words = append(seg0.Words, binary.BigEndian.Uint32(buff[:]))
		words++
	}

	if mem.Verbose {
		log.Printf("memory: image: %d words", words)
	}

	return
}

// Fetch returns the instruction at the program counter, and advances it.
func (mem *Memory) Fetch() (word uint32, err error) {
	seg0, err := mem.segment(0, mem.Pc)
	if err != nil {
		return
	}

	if uint64(mem.Pc) >= uint64(len(seg0.Words)) {
		err = ErrExhausted
		return
	}

	word = seg0.Words[mem.Pc]
	mem.Pc++

	return
}

// Map a new segment of zeroed words, returning its index.
// The most recently unmapped index is reused first.
func (mem *Memory) Map(words uint32) (index uint32, err error) {
	if len(mem.slot) == 0 {
		err = ErrClosed
		return
	}

	index, ok := mem.free.Pop()
	if !ok {
		if uint64(len(mem.slot)) > math.MaxUint32 {
			err = ErrAddressSpace
			return
		}
		index = uint32(len(mem.slot))
		mem.slot = append(mem.slot, Slot{})
	}

	mem.slot[index] = Slot{
		Live:  true,
		Words: make([]uint32, words),
	}

	if mem.Verbose {
		log.Printf("memory: map %d words at %d", words, index)
	}

	return
}

// Unmap a segment, making its index available for reuse.
// Segment 0 can only be replaced through Install.
func (mem *Memory) Unmap(index uint32) (err error) {
	if index == 0 {
		err = &ErrSegment{Index: index, Err: ErrInvalidSegment}
		return
	}

	slot, err := mem.segment(index, 0)
	if err != nil {
		return
	}

	*slot = Slot{}
	mem.free.Push(index)

	if mem.Verbose {
		log.Printf("memory: unmap %d", index)
	}

	return
}

// Load a word from a segment.
func (mem *Memory) Load(index uint32, offset uint32) (value uint32, err error) {
	word, err := mem.word(index, offset)
	if err != nil {
		return
	}

	value = *word
	return
}

// Store a word in a segment.
func (mem *Memory) Store(index uint32, offset uint32, value uint32) (err error) {
	word, err := mem.word(index, offset)
	if err != nil {
		return
	}

	*word = value
	return
}

// Install replaces segment 0 with a copy of the segment at index, and
// moves the program counter to offset. Installing segment 0 only moves
// the program counter.
func (mem *Memory) Install(index uint32, offset uint32) (err error) {
	src, err := mem.segment(index, offset)
	if err != nil {
		return
	}

	if uint64(offset) > uint64(len(src.Words)) {
		err = &ErrSegment{Index: index, Offset: offset, Err: ErrOutOfBounds}
		return
	}

	if index != 0 {
		words := slices.Clone(src.Words)

		// Unmapped segment 0 is on top of the pool, so it is remapped at once.
		mem.slot[0] = Slot{}
		mem.free.Push(0)
		var seg0 uint32
		seg0, err = mem.Map(uint32(len(words)))
		if err != nil {
			return
		}
		if seg0 != 0 {
			panic("segment 0 not remapped")
		}
		copy(mem.slot[0].Words, words)

		if mem.Verbose {
			log.Printf("memory: install %d (%d words)", index, len(words))
		}
	}

	mem.Pc = offset

	return
}
