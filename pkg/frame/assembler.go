// Package frame implements the byte-level P1 telegram framer described in
// spec §4.1: a bounded working buffer and a {Idle, Data, End} state machine
// that reassembles exactly one telegram per "\r\n" close and silently drops
// whatever it is holding on overflow.
package frame

// Capacity is the working buffer size B from spec §4.1.
const Capacity = 1500

type state int

const (
	stateIdle state = iota
	stateData
	stateEnd
)

// Assembler reassembles P1 telegrams from a byte stream fed one byte at a
// time. It is not safe for concurrent use — the P1 reader task owns it
// exclusively, per spec §5.
//
// Only bytes belonging to a telegram in progress are ever written into buf
// (inter-telegram bytes are discarded in the Idle state), so the working
// buffer always starts at index 0 for the telegram currently being
// assembled — there is no leading garbage to compact away.
type Assembler struct {
	buf      [Capacity]byte
	bufIndex int
	st       state
}

// New returns an empty Assembler in the Idle state.
func New() *Assembler {
	return &Assembler{}
}

// Feed appends one byte to the assembler. When that byte closes a frame (the
// '\n' of a trailing "\r\n" following the '!' CRC marker), Feed returns the
// assembled telegram as a slice into the assembler's internal buffer — valid
// only until the next Feed call — and ok is true. The returned slice has its
// trailing '\n' overwritten with a NUL byte, so it may be treated as a
// C-style string downstream, per spec §4.1.
func (a *Assembler) Feed(b byte) (telegram []byte, ok bool) {
	switch a.st {
	case stateIdle:
		if b == '/' {
			a.bufIndex = 0
			a.buf[0] = b
			a.bufIndex = 1
			a.st = stateData
		}
		// Any other byte between telegrams is discarded.
		return nil, false

	case stateData:
		if !a.append(b) {
			a.reset()
			return nil, false
		}
		if b == '!' {
			a.st = stateEnd
		}
		return nil, false

	case stateEnd:
		if !a.append(b) {
			a.reset()
			return nil, false
		}
		if b == '\n' && a.bufIndex >= 2 && a.buf[a.bufIndex-2] == '\r' {
			size := a.bufIndex
			a.buf[size-1] = 0
			out := a.buf[:size]
			a.bufIndex = 0
			a.st = stateIdle
			return out, true
		}
		return nil, false
	}
	return nil, false
}

// append writes b at bufIndex. It returns false — signalling overflow — if
// the buffer is already full.
func (a *Assembler) append(b byte) bool {
	if a.bufIndex >= Capacity {
		return false
	}
	a.buf[a.bufIndex] = b
	a.bufIndex++
	return true
}

// reset drops any in-progress telegram and returns the assembler to Idle.
func (a *Assembler) reset() {
	a.bufIndex = 0
	a.st = stateIdle
}
