package gan

// CubeState is the corner/edge permutation and orientation representation of
// a 3x3 cube. Permutations are bijections (corners over 0-7, edges over
// 0-11); corner orientations sum to 0 mod 3 and edge orientations to 0 mod 2.
type CubeState struct {
	CP [8]uint8  // corner permutation
	CO [8]uint8  // corner orientation, 0-2
	EP [12]uint8 // edge permutation
	EO [12]uint8 // edge orientation, 0-1
}

// SolvedFacelets is the facelet string of a solved cube in URFDLB face order.
const SolvedFacelets = "UUUUUUUUURRRRRRRRRFFFFFFFFFDDDDDDDDDLLLLLLLLLBBBBBBBBB"

const faceLetters = "URFDLB"

// Facelet indices of each corner slot, in orientation order. Facelets are
// numbered 0-53: U 0-8, R 9-17, F 18-26, D 27-35, L 36-44, B 45-53.
var cornerFacelets = [8][3]int{
	{8, 9, 20},   // URF
	{6, 18, 38},  // UFL
	{0, 36, 47},  // ULB
	{2, 45, 11},  // UBR
	{29, 26, 15}, // DFR
	{27, 44, 24}, // DLF
	{33, 53, 42}, // DBL
	{35, 17, 51}, // DRB
}

// Facelet indices of each edge slot.
var edgeFacelets = [12][2]int{
	{5, 10},  // UR
	{7, 19},  // UF
	{3, 37},  // UL
	{1, 46},  // UB
	{32, 16}, // DR
	{28, 25}, // DF
	{30, 43}, // DL
	{34, 52}, // DB
	{23, 12}, // FR
	{21, 41}, // FL
	{50, 39}, // BL
	{48, 14}, // BR
}

// Solved returns the identity cube state.
func Solved() CubeState {
	var s CubeState
	for i := range s.CP {
		s.CP[i] = uint8(i)
	}
	for i := range s.EP {
		s.EP[i] = uint8(i)
	}
	return s
}

// Facelets renders the state as a 54-character facelet string in URFDLB
// order. Each corner slot paints three stickers and each edge slot two; the
// orientation selects the cyclic rotation of the piece within its slot.
func (s CubeState) Facelets() string {
	var f [54]byte
	for i := range f {
		f[i] = faceLetters[i/9]
	}
	for slot := 0; slot < 8; slot++ {
		piece := int(s.CP[slot])
		ori := int(s.CO[slot])
		for k := 0; k < 3; k++ {
			f[cornerFacelets[slot][(k+ori)%3]] = faceLetters[cornerFacelets[piece][k]/9]
		}
	}
	for slot := 0; slot < 12; slot++ {
		piece := int(s.EP[slot])
		ori := int(s.EO[slot])
		for k := 0; k < 2; k++ {
			f[edgeFacelets[slot][(k+ori)%2]] = faceLetters[edgeFacelets[piece][k]/9]
		}
	}
	return string(f[:])
}

// IsSolved reports whether the state renders to the solved facelet string.
// The comparison runs over the rendered string rather than the raw arrays:
// identity permutation plus zero orientation and visual solvedness only
// coincide under the facelet mapping, and the string is the artifact worth
// inspecting when they disagree.
func (s CubeState) IsSolved() bool {
	return s.Facelets() == SolvedFacelets
}
