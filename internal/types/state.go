package types

import (
	"fmt"

	"github.com/cespare/xxhash"
)

// SnapshotVersion is written as the first byte of every snapshot. Bump it
// whenever the wire layout of a Stater changes incompatibly.
const SnapshotVersion = 1

// Stater is implemented by every component whose state must survive a
// snapshot. Save and Load must write/read the same fields in the same
// order; callers are responsible for calling Load only on a State produced
// by a compatible Save.
type Stater interface {
	Save(*State)
	Load(*State)
}

// State is an append-only byte buffer used as the wire format for
// component snapshots. Writers call the Write* methods in a fixed order;
// readers call the matching Read* methods in the same order. Each
// component is framed with a length prefix (WriteComponent/ReadComponent)
// so that a snapshot carrying an unknown or resized component can still be
// skipped by an older reader instead of corrupting the rest of the stream.
type State struct {
	raw           []byte
	readPosition  int
	writePosition int
}

// NewState creates an empty State ready for writing.
func NewState() *State {
	return &State{raw: make([]byte, 0, 256)}
}

// StateFromBytes wraps raw bytes (as produced by Bytes) for reading.
func StateFromBytes(raw []byte) *State {
	return &State{raw: raw}
}

// ResetPosition rewinds both the read and write cursors.
func (s *State) ResetPosition() {
	s.readPosition = 0
	s.writePosition = 0
}

func (s *State) Write8(v uint8) {
	s.raw = append(s.raw, v)
	s.writePosition++
}

func (s *State) Write16(v uint16) {
	s.raw = append(s.raw, byte(v), byte(v>>8))
	s.writePosition += 2
}

func (s *State) Write32(v uint32) {
	s.raw = append(s.raw, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
	s.writePosition += 4
}

func (s *State) Write64(v uint64) {
	for i := 0; i < 8; i++ {
		s.raw = append(s.raw, byte(v>>(8*i)))
	}
	s.writePosition += 8
}

func (s *State) WriteBool(v bool) {
	if v {
		s.raw = append(s.raw, 1)
	} else {
		s.raw = append(s.raw, 0)
	}
	s.writePosition++
}

func (s *State) WriteData(data []byte) {
	s.raw = append(s.raw, data...)
	s.writePosition += len(data)
}

// WriteComponent writes name's length-prefixed payload produced by fn,
// so an unfamiliar reader can skip it entirely.
func (s *State) WriteComponent(fn func(*State)) {
	inner := NewState()
	fn(inner)
	s.Write32(uint32(len(inner.raw)))
	s.WriteData(inner.raw)
}

func (s *State) Read8() uint8 {
	v := s.raw[s.readPosition]
	s.readPosition++
	return v
}

func (s *State) Read16() uint16 {
	v := uint16(s.raw[s.readPosition]) | uint16(s.raw[s.readPosition+1])<<8
	s.readPosition += 2
	return v
}

func (s *State) Read32() uint32 {
	v := uint32(s.raw[s.readPosition]) |
		uint32(s.raw[s.readPosition+1])<<8 |
		uint32(s.raw[s.readPosition+2])<<16 |
		uint32(s.raw[s.readPosition+3])<<24
	s.readPosition += 4
	return v
}

func (s *State) Read64() uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(s.raw[s.readPosition+i]) << (8 * i)
	}
	s.readPosition += 8
	return v
}

func (s *State) ReadBool() bool {
	v := s.raw[s.readPosition] != 0
	s.readPosition++
	return v
}

func (s *State) ReadData(p []byte) {
	copy(p, s.raw[s.readPosition:])
	s.readPosition += len(p)
}

// ReadComponent reads a length-prefixed payload. If fn is nil the payload
// is skipped entirely, which lets an older reader tolerate components it
// doesn't know about yet.
func (s *State) ReadComponent(fn func(*State)) {
	n := s.Read32()
	payload := s.raw[s.readPosition : s.readPosition+int(n)]
	s.readPosition += int(n)
	if fn != nil {
		fn(StateFromBytes(payload))
	}
}

// Bytes returns the accumulated payload without the version/checksum
// trailer; use Seal to produce a complete snapshot.
func (s *State) Bytes() []byte {
	return s.raw
}

// Seal frames the payload with the version byte and a trailing xxhash
// checksum of everything written so far, producing a self-contained
// snapshot a caller can persist or transmit.
func (s *State) Seal() []byte {
	out := make([]byte, 0, len(s.raw)+9)
	out = append(out, SnapshotVersion)
	out = append(out, s.raw...)
	sum := xxhash.Sum64(out)
	for i := 0; i < 8; i++ {
		out = append(out, byte(sum>>(8*i)))
	}
	return out
}

// ErrBadSnapshot is returned by Unseal when the version tag is unknown or
// the checksum does not match the payload. No partial state is mutated in
// either case; the caller's existing component state is left untouched.
type ErrBadSnapshot struct {
	Reason string
}

func (e *ErrBadSnapshot) Error() string {
	return fmt.Sprintf("bad snapshot: %s", e.Reason)
}

// Unseal validates a snapshot produced by Seal and returns a State
// positioned at the start of the payload, ready for Read* calls.
func Unseal(raw []byte) (*State, error) {
	if len(raw) < 9 {
		return nil, &ErrBadSnapshot{Reason: "snapshot too short"}
	}
	version := raw[0]
	if version != SnapshotVersion {
		return nil, &ErrBadSnapshot{Reason: fmt.Sprintf("unsupported version %d", version)}
	}
	payload := raw[:len(raw)-8]
	wantSum := raw[len(raw)-8:]
	gotSum := xxhash.Sum64(payload)
	for i := 0; i < 8; i++ {
		if wantSum[i] != byte(gotSum>>(8*i)) {
			return nil, &ErrBadSnapshot{Reason: "checksum mismatch"}
		}
	}
	return &State{raw: payload[1:]}, nil
}
