// Package io provides the byte channels attached to the universal machine's
// input and output instructions.
package io

import (
	"io"
)

// Channel defines the interface for a byte stream attached to the machine.
type Channel interface {
	// Rewind resets the channel to its initial state.
	Rewind()
	// ReadByte reads the next input byte, or returns io.EOF.
	ReadByte() (value byte, err error)
	// WriteByte writes a single output byte.
	WriteByte(value byte) error
}

// EOF is returned by ReadByte when no more input is available.
var EOF = io.EOF
