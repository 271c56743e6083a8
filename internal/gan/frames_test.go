package gan

import (
	"errors"
	"testing"
)

// setBits writes the low n bits of val into data at bit offset start,
// big-endian bit order, mirroring the extraction in parseFacelets.
func setBits(data []byte, start, n, val int) {
	for i := 0; i < n; i++ {
		bit := val >> (n - 1 - i) & 1
		pos := start + i
		if bit == 1 {
			data[pos/8] |= 1 << (7 - pos%8)
		} else {
			data[pos/8] &^= 1 << (7 - pos%8)
		}
	}
}

// faceletsFrame synthesizes a 19-byte plaintext facelets frame from explicit
// field arrays. Only the first 7 corners and 11 edges are encoded; the wire
// format derives the rest.
func faceletsFrame(cp, co [7]int, ep, eo [11]int) []byte {
	frame := make([]byte, 19)
	frame[0] = Marker
	frame[1] = 0x02
	for i, v := range cp {
		setBits(frame, cpOffset+i*3, 3, v)
	}
	for i, v := range co {
		setBits(frame, coOffset+i*2, 2, v)
	}
	for i, v := range ep {
		setBits(frame, epOffset+i*4, 4, v)
	}
	for i, v := range eo {
		setBits(frame, eoOffset+i, 1, v)
	}
	return frame
}

func identityFrame() []byte {
	var cp, co [7]int
	var ep, eo [11]int
	for i := range cp {
		cp[i] = i
	}
	for i := range ep {
		ep[i] = i
	}
	return faceletsFrame(cp, co, ep, eo)
}

func TestParseFaceletsIdentityIsSolved(t *testing.T) {
	ev, err := ParseFrame(identityFrame())
	if err != nil {
		t.Fatalf("ParseFrame() error = %v", err)
	}
	if ev.Kind != KindState {
		t.Fatalf("kind = %v, want state", ev.Kind)
	}
	if !ev.Solved {
		t.Error("identity state should report solved")
	}
	if got := ev.State.Facelets(); got != SolvedFacelets {
		t.Errorf("facelets = %q, want %q", got, SolvedFacelets)
	}
	// Derived last elements must have been recovered from the sums.
	if ev.State.CP[7] != 7 || ev.State.EP[11] != 11 {
		t.Errorf("derived pieces = CP[7]=%d EP[11]=%d, want 7 and 11", ev.State.CP[7], ev.State.EP[11])
	}
}

func TestParseFaceletsSwappedCornersNotSolved(t *testing.T) {
	cp := [7]int{1, 0, 2, 3, 4, 5, 6}
	var co [7]int
	var ep, eo [11]int
	for i := range ep {
		ep[i] = i
	}
	ev, err := ParseFrame(faceletsFrame(cp, co, ep, eo))
	if err != nil {
		t.Fatalf("ParseFrame() error = %v", err)
	}
	if ev.Kind != KindState {
		t.Fatalf("kind = %v, want state", ev.Kind)
	}
	if ev.Solved {
		t.Error("swapped corner permutation must not report solved")
	}
}

func TestParseFaceletsSwappedEdgesNotSolved(t *testing.T) {
	var cp, co [7]int
	var ep, eo [11]int
	for i := range cp {
		cp[i] = i
	}
	for i := range ep {
		ep[i] = i
	}
	ep[3], ep[4] = ep[4], ep[3]
	ev, err := ParseFrame(faceletsFrame(cp, co, ep, eo))
	if err != nil {
		t.Fatalf("ParseFrame() error = %v", err)
	}
	if ev.Solved {
		t.Error("swapped edge permutation must not report solved")
	}
}

func TestParseFaceletsTwistedCornersNotSolved(t *testing.T) {
	var cp, co [7]int
	var ep, eo [11]int
	for i := range cp {
		cp[i] = i
	}
	for i := range ep {
		ep[i] = i
	}
	// One twist each way: orientation sum stays 0 mod 3, state stays valid.
	co[0], co[1] = 1, 2
	ev, err := ParseFrame(faceletsFrame(cp, co, ep, eo))
	if err != nil {
		t.Fatalf("ParseFrame() error = %v", err)
	}
	if ev.Kind != KindState {
		t.Fatalf("kind = %v, want state", ev.Kind)
	}
	if ev.Solved {
		t.Error("twisted corners must not report solved")
	}
}

func TestParseFaceletsRejectsNonBijection(t *testing.T) {
	// All-zero corner fields: derived CP[7] = 28, out of range.
	var cp, co [7]int
	var ep, eo [11]int
	for i := range ep {
		ep[i] = i
	}
	_, err := ParseFrame(faceletsFrame(cp, co, ep, eo))
	if !errors.Is(err, ErrMalformedState) {
		t.Errorf("ParseFrame() error = %v, want ErrMalformedState", err)
	}
}

func TestParseFaceletsRejectsBadOrientation(t *testing.T) {
	var cp [7]int
	var ep, eo [11]int
	for i := range cp {
		cp[i] = i
	}
	for i := range ep {
		ep[i] = i
	}
	co := [7]int{3, 0, 0, 0, 0, 0, 0} // 3 is not a legal corner twist
	_, err := ParseFrame(faceletsFrame(cp, co, ep, eo))
	if !errors.Is(err, ErrMalformedState) {
		t.Errorf("ParseFrame() error = %v, want ErrMalformedState", err)
	}
}

func moveFrame(serial uint16, code byte) []byte {
	frame := make([]byte, 16)
	frame[0] = Marker
	frame[1] = 0x02
	frame[2] = byte(serial)
	frame[3] = byte(serial >> 8)
	frame[5] = code
	return frame
}

func TestParseMoveAlphabet(t *testing.T) {
	want := []string{"B", "B'", "F", "F'", "U", "U'", "D", "D'", "R", "R'", "L", "L'"}
	for code, notation := range want {
		ev, err := ParseFrame(moveFrame(uint16(code), byte(code)))
		if err != nil {
			t.Fatalf("ParseFrame(code %d) error = %v", code, err)
		}
		if ev.Kind != KindMove {
			t.Fatalf("kind = %v, want move", ev.Kind)
		}
		if got := ev.Move.Move.String(); got != notation {
			t.Errorf("code %d = %q, want %q", code, got, notation)
		}
		if ev.Move.Serial != uint16(code) {
			t.Errorf("serial = %d, want %d", ev.Move.Serial, code)
		}
	}
}

func TestParseMoveReversalFallback(t *testing.T) {
	frame := make([]byte, 16)
	frame[0] = Marker
	frame[1] = 0x02
	frame[5] = 12 // out of range: forces the tail reversal
	// After reversing bytes 2..15, byte 5 comes from byte 12 and the
	// serial from bytes 15 (low) and 14 (high).
	frame[12] = byte(MoveFPrime)
	frame[15] = 0x34
	frame[14] = 0x12

	ev, err := ParseFrame(frame)
	if err != nil {
		t.Fatalf("ParseFrame() error = %v", err)
	}
	if ev.Kind != KindMove {
		t.Fatalf("kind = %v, want move", ev.Kind)
	}
	if ev.Move.Move != MoveFPrime {
		t.Errorf("move = %v, want F'", ev.Move.Move)
	}
	if ev.Move.Serial != 0x1234 {
		t.Errorf("serial = 0x%04X, want 0x1234", ev.Move.Serial)
	}
}

func TestParseMoveDoubleFailureUnrecognized(t *testing.T) {
	frame := make([]byte, 16)
	frame[0] = Marker
	frame[1] = 0x02
	frame[5] = 12
	frame[12] = 99 // reversal also lands out of range
	ev, err := ParseFrame(frame)
	if err != nil {
		t.Fatalf("ParseFrame() error = %v", err)
	}
	if ev.Kind != KindUnrecognized {
		t.Errorf("kind = %v, want unrecognized", ev.Kind)
	}
}

func TestParseLegacyMoveFrame(t *testing.T) {
	frame := make([]byte, 16)
	frame[0] = Marker
	frame[1] = 0x01
	ev, err := ParseFrame(frame)
	if err != nil {
		t.Fatalf("ParseFrame() error = %v", err)
	}
	if ev.Kind != KindMoveLegacy {
		t.Errorf("kind = %v, want move-legacy", ev.Kind)
	}
}

func TestParseFrameRejectsNonTelemetry(t *testing.T) {
	cases := [][]byte{
		make([]byte, 16),      // no marker
		{Marker, 0x02},        // too short
		append([]byte{Marker, 0x07}, make([]byte, 14)...), // unknown type
	}
	for i, frame := range cases {
		ev, err := ParseFrame(frame)
		if err != nil {
			t.Fatalf("case %d: ParseFrame() error = %v", i, err)
		}
		if ev.Kind != KindUnrecognized {
			t.Errorf("case %d: kind = %v, want unrecognized", i, ev.Kind)
		}
	}
}
