package adpcm

// Yamaha 4-bit ADPCM as decoded by the Saturn sound processor (SCSP).

// Step limits.
const (
	MinStep = 127
	MaxStep = 24576
)

var yamahaQuantMul = [16]int32{
	1, 3, 5, 7, 9, 11, 13, 15,
	-1, -3, -5, -7, -9, -11, -13, -15,
}

var yamahaRateTable = [8]int32{
	230, 230, 230, 230, 307, 409, 512, 614,
}

// Yamaha decoder state. The zero value starts at MinStep like NewYamaha.
type Yamaha struct {
	Signal int16
	Step   int32 // MinStep-MaxStep.
}

// NewYamaha returns the initial Yamaha state.
func NewYamaha() *Yamaha {
	return &Yamaha{Step: MinStep}
}

// Decode implements State.
func (s *Yamaha) Decode(dst []int16, src []byte, order NibbleOrder) []int16 {
	return decodeBytes(dst, src, order, s.nibble)
}

// Reset implements State.
func (s *Yamaha) Reset() {
	*s = Yamaha{Step: MinStep}
}

func (s *Yamaha) nibble(n uint8) int16 {
	s.Step = clampStep(s.Step)
	x := s.Step * yamahaQuantMul[n&15]

	// The logical shift adds 7 for negative products, rounding toward zero.
	delta := (x + int32(uint32(x)>>29)) >> 3
	s.Signal = clamp16(int32(s.Signal) + delta)

	s.Step = clampStep((s.Step * yamahaRateTable[n&7]) >> 8)
	return s.Signal
}

func clampStep(step int32) int32 {
	switch {
	case step < MinStep:
		return MinStep
	case step > MaxStep:
		return MaxStep
	}
	return step
}
