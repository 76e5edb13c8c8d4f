package memory

import (
	"github.com/ezrec/um/translate"
)

var f = translate.From

var (
	// Memory errors
	ErrInvalidSegment = translate.Error("segment not mapped")
	ErrOutOfBounds    = translate.Error("offset out of bounds")
	ErrExhausted      = translate.Error("instruction stream exhausted")
	ErrAddressSpace   = translate.Error("segment address space exhausted")
	ErrClosed         = translate.Error("memory closed")

	// Program image errors
	ErrMalformedInput = translate.Error("program image truncated mid-word")
)

// ErrSegment locates a memory fault.
type ErrSegment struct {
	Index  uint32
	Offset uint32
	Err    error
}

func (err *ErrSegment) Error() string {
	return f("segment %d offset %d %v", err.Index, err.Offset, err.Err)
}

func (err *ErrSegment) Unwrap() error {
	return err.Err
}
