package gan

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrMalformedState rejects a facelets frame whose extracted fields do not
// form a valid cube state. Such frames are dropped without a verdict so a
// corrupt decrypt can never read as "solved".
var ErrMalformedState = errors.New("gan: facelets frame failed validation")

// Move is a face turn drawn from the fixed 12-symbol alphabet.
type Move uint8

// Move codes in wire order.
const (
	MoveB Move = iota
	MoveBPrime
	MoveF
	MoveFPrime
	MoveU
	MoveUPrime
	MoveD
	MoveDPrime
	MoveR
	MoveRPrime
	MoveL
	MoveLPrime

	moveCount
)

// MoveUnknown marks a turn the firmware reported without a symbol, as
// legacy frames do.
const MoveUnknown Move = 0xFF

var moveNames = [moveCount]string{
	"B", "B'", "F", "F'", "U", "U'", "D", "D'", "R", "R'", "L", "L'",
}

func (m Move) String() string {
	if m == MoveUnknown {
		return "?"
	}
	if m >= moveCount {
		return fmt.Sprintf("move(0x%02X)", uint8(m))
	}
	return moveNames[m]
}

// MoveEvent is a single face turn with its notification serial. Serials
// increase monotonically and detect duplicate or out-of-order frames.
type MoveEvent struct {
	Move   Move
	Serial uint16
}

// Kind classifies a decrypted frame.
type Kind int

const (
	KindUnrecognized Kind = iota
	KindMove
	KindMoveLegacy // 0x55 0x01 frame: a turn happened, move fields absent
	KindState
)

func (k Kind) String() string {
	switch k {
	case KindMove:
		return "move"
	case KindMoveLegacy:
		return "move-legacy"
	case KindState:
		return "state"
	default:
		return "unrecognized"
	}
}

// Event is the decoded content of one plaintext frame.
type Event struct {
	Kind   Kind
	Move   MoveEvent // Kind == KindMove
	State  CubeState // Kind == KindState
	Solved bool      // Kind == KindState
}

// ParseFrame interprets one decrypted frame. It returns an unrecognized
// event for frames that are not cube telemetry and ErrMalformedState for
// facelets frames that fail validation.
func ParseFrame(clear []byte) (Event, error) {
	if len(clear) < 16 || clear[0] != Marker {
		return Event{Kind: KindUnrecognized}, nil
	}

	switch {
	case len(clear) == 16 && clear[1] == frameTypeMoveLegacy:
		return Event{Kind: KindMoveLegacy}, nil
	case len(clear) == 16 && clear[1] == frameTypeEvent:
		return parseMove(clear)
	case len(clear) >= 19 && clear[1] == frameTypeEvent:
		return parseFacelets(clear)
	default:
		return Event{Kind: KindUnrecognized}, nil
	}
}

// parseMove decodes a 16-byte move-variant frame: serial at bytes 2-3
// little-endian, move code at byte 5. Some firmware revisions emit the bytes
// after the 2-byte header reversed; when the move code is out of range the
// tail is reversed and parsing retried once.
func parseMove(clear []byte) (Event, error) {
	if Move(clear[5]) >= moveCount {
		rev := make([]byte, 0, len(clear))
		rev = append(rev, clear[0], clear[1])
		for i := len(clear) - 1; i >= 2; i-- {
			rev = append(rev, clear[i])
		}
		clear = rev
		if Move(clear[5]) >= moveCount {
			return Event{Kind: KindUnrecognized}, nil
		}
	}
	return Event{
		Kind: KindMove,
		Move: MoveEvent{
			Move:   Move(clear[5]),
			Serial: binary.LittleEndian.Uint16(clear[2:4]),
		},
	}, nil
}

// Bit offsets of the packed state fields, counting from the start of the
// frame (header included), big-endian bit order.
const (
	cpOffset = 40  // 7 corners x 3 bits
	coOffset = 61  // 7 corners x 2 bits
	epOffset = 77  // 11 edges x 4 bits
	eoOffset = 121 // 11 edges x 1 bit
)

// bits extracts n bits starting at bit offset start, treating data as one
// big-endian bitstream.
func bits(data []byte, start, n int) int {
	v := 0
	for i := start; i < start+n; i++ {
		v = v<<1 | int(data[i/8]>>(7-i%8)&1)
	}
	return v
}

// parseFacelets reconstructs the full cube state from a facelets frame. The
// wire format omits the last element of each array; the omitted corner and
// edge are recovered from the permutation sums (28 and 66) and the
// orientation sum constraints (0 mod 3 and 0 mod 2).
func parseFacelets(clear []byte) (Event, error) {
	var cp, co [8]int
	var ep, eo [12]int

	sum := 0
	for i := 0; i < 7; i++ {
		cp[i] = bits(clear, cpOffset+i*3, 3)
		sum += cp[i]
	}
	cp[7] = 28 - sum

	sum = 0
	for i := 0; i < 7; i++ {
		co[i] = bits(clear, coOffset+i*2, 2)
		sum += co[i]
	}
	co[7] = (3 - sum%3) % 3

	sum = 0
	for i := 0; i < 11; i++ {
		ep[i] = bits(clear, epOffset+i*4, 4)
		sum += ep[i]
	}
	ep[11] = 66 - sum

	sum = 0
	for i := 0; i < 11; i++ {
		eo[i] = bits(clear, eoOffset+i, 1)
		sum += eo[i]
	}
	eo[11] = (2 - sum%2) % 2

	if !isPermutation(cp[:], 8) || !isPermutation(ep[:], 12) {
		return Event{}, fmt.Errorf("%w: permutation not a bijection", ErrMalformedState)
	}
	for _, o := range co {
		if o < 0 || o > 2 {
			return Event{}, fmt.Errorf("%w: corner orientation %d", ErrMalformedState, o)
		}
	}
	for _, o := range eo {
		if o < 0 || o > 1 {
			return Event{}, fmt.Errorf("%w: edge orientation %d", ErrMalformedState, o)
		}
	}

	var s CubeState
	for i := range cp {
		s.CP[i] = uint8(cp[i])
		s.CO[i] = uint8(co[i])
	}
	for i := range ep {
		s.EP[i] = uint8(ep[i])
		s.EO[i] = uint8(eo[i])
	}
	return Event{Kind: KindState, State: s, Solved: s.IsSolved()}, nil
}

// isPermutation reports whether vals is a bijection over 0..n-1.
func isPermutation(vals []int, n int) bool {
	if len(vals) != n {
		return false
	}
	var seen [12]bool
	for _, v := range vals {
		if v < 0 || v >= n || seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}
