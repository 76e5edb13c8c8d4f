// Package bitpack extracts and inserts unsigned bit fields in 64-bit words.
//
// Fields are described by a width in bits and the zero-based offset of the
// field's least significant bit.
package bitpack

import (
	"github.com/ezrec/um/translate"
)

var f = translate.From

const (
	WORD_BITS = 64 // Width of the words handled by this package.
)

var (
	// ErrOutOfRange is returned when a field does not fit in the word, or a
	// value does not fit in its field.
	ErrOutOfRange = translate.Error("bit field out of range")
)

// ErrField describes the field that was out of range.
type ErrField struct {
	Width uint
	Lsb   uint
	Err   error
}

func (err *ErrField) Error() string {
	return f("field width %d lsb %d: %v", err.Width, err.Lsb, err.Err)
}

func (err *ErrField) Unwrap() error {
	return err.Err
}

// mask returns a mask of width low bits.
func mask(width uint) uint64 {
	if width >= WORD_BITS {
		return ^uint64(0)
	}
	return (uint64(1) << width) - 1
}

func check(width, lsb uint) (err error) {
	if width > WORD_BITS || lsb > WORD_BITS || width+lsb > WORD_BITS {
		err = &ErrField{Width: width, Lsb: lsb, Err: ErrOutOfRange}
	}
	return
}

// Fitsu returns true if value can be represented in width unsigned bits.
func Fitsu(value uint64, width uint) bool {
	if width >= WORD_BITS {
		return true
	}
	return value>>width == 0
}

// Getu extracts the unsigned field of width bits starting at lsb.
func Getu(word uint64, width, lsb uint) (value uint64, err error) {
	err = check(width, lsb)
	if err != nil {
		return
	}
	if width == 0 {
		return
	}

	value = (word >> lsb) & mask(width)
	return
}

// Newu returns word with the field of width bits at lsb replaced by value.
func Newu(word uint64, width, lsb uint, value uint64) (out uint64, err error) {
	err = check(width, lsb)
	if err != nil {
		return
	}
	if !Fitsu(value, width) {
		err = &ErrField{Width: width, Lsb: lsb, Err: ErrOutOfRange}
		return
	}
	if width == 0 {
		out = word
		return
	}

	field := mask(width) << lsb
	out = (word & ^field) | (value << lsb)
	return
}
