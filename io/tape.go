package io

import (
	"io"
)

// flusher is implemented by buffered writers, such as bufio.Writer.
type flusher interface {
	Flush() error
}

// Tape provides sequential byte I/O over an io.Reader for input and an
// io.Writer for output.
type Tape struct {
	Input  io.Reader
	Output io.Writer

	Received int // Bytes read since the last rewind.
	Sent     int // Bytes written since the last rewind.

	one [1]byte
}

var _ Channel = (*Tape)(nil)

// Rewind is not possible on a tape; it only clears the counters.
func (tc *Tape) Rewind() {
	tc.Received = 0
	tc.Sent = 0
}

// ReadByte reads the next byte from the input stream.
// Buffered output is flushed first, so prompts are visible.
// A missing input behaves as an empty stream.
func (tc *Tape) ReadByte() (value byte, err error) {
	err = tc.Flush()
	if err != nil {
		return
	}

	if tc.Input == nil {
		err = io.EOF
		return
	}

	for {
		var n int
		n, err = tc.Input.Read(tc.one[:])
		if n == 1 {
			err = nil
			break
		}
		if err != nil {
			return
		}
	}

	value = tc.one[0]
	tc.Received++

	return
}

// WriteByte writes a byte to the output stream.
func (tc *Tape) WriteByte(value byte) (err error) {
	if tc.Output == nil {
		err = ErrChannelClosed
		return
	}

	tc.one[0] = value
	_, err = tc.Output.Write(tc.one[:])
	if err != nil {
		return
	}
	tc.Sent++

	return
}

// Flush pushes buffered output, if the output is buffered.
func (tc *Tape) Flush() (err error) {
	fl, ok := tc.Output.(flusher)
	if ok {
		err = fl.Flush()
	}

	return
}
