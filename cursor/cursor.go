/*
NAME
  cursor.go

DESCRIPTION
  cursor.go provides a bounded, single-byte-rewindable reader over an
  immutable in-memory byte slice, used as the innermost primitive of the
  blackbox decoder.

AUTHORS
  Mia Calder <mia@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package cursor provides a bounded reader over an immutable byte slice with
// one-byte rewind and a latching EOF flag, matching the access pattern the
// blackbox decoder needs for resync-after-corruption (see the root package's
// runData).
package cursor

// Cursor reads bytes from a borrowed, immutable slice. It never allocates
// and never writes to buf.
type Cursor struct {
	buf []byte
	off int
	eof bool
}

// New returns a Cursor reading from buf starting at offset 0.
func New(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Read returns the next byte and true, or (0, false) if the cursor is at or
// past the end of buf. Once Read returns false the eof flag latches until
// cleared with ClearEOF or Seek.
func (c *Cursor) Read() (byte, bool) {
	if c.off >= len(c.buf) {
		c.eof = true
		return 0, false
	}
	b := c.buf[c.off]
	c.off++
	return b, true
}

// Unread rewinds the cursor by exactly one byte. It is only valid to call
// immediately after a Read that returned true; calling it otherwise will
// under-run the offset and is a programming error in the caller.
func (c *Cursor) Unread() {
	c.off--
}

// Offset returns the current byte offset into buf.
func (c *Cursor) Offset() int {
	return c.off
}

// Seek rewinds (or advances) the cursor to an absolute offset and clears the
// latched EOF flag. This is used by the frame orchestrator to resynchronise
// after a corrupt frame.
func (c *Cursor) Seek(off int) {
	c.off = off
	c.eof = false
}

// ClearEOF clears the latched EOF flag without moving the offset.
func (c *Cursor) ClearEOF() {
	c.eof = false
}

// EOF reports whether a Read has latched the end-of-data condition since the
// cursor was created or last cleared.
func (c *Cursor) EOF() bool {
	return c.eof
}

// Len returns the total length of the underlying slice.
func (c *Cursor) Len() int {
	return len(c.buf)
}
