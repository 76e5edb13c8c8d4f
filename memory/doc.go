// Package memory implements the segmented memory of the universal machine.
//
// Memory is a table of segments, each a fixed-length run of 32-bit words
// addressed by a segment index and an offset. Unmapped indices are kept on
// a stack and reused, most recent first, before the table grows. Segment 0
// holds the running program, fetched through the program counter.
package memory
