package adpcm

// DVI/IMA 4-bit ADPCM.

const maxStepIndex = 88

var dviIndexTable = [16]int8{
	-1, -1, -1, -1, 2, 4, 6, 8,
	-1, -1, -1, -1, 2, 4, 6, 8,
}

var dviStepTable = [maxStepIndex + 1]int32{
	7, 8, 9, 10, 11, 12, 13, 14, 16, 17,
	19, 21, 23, 25, 28, 31, 34, 37, 41, 45,
	50, 55, 60, 66, 73, 80, 88, 97, 107, 118,
	130, 143, 157, 173, 190, 209, 230, 253, 279, 307,
	337, 371, 408, 449, 494, 544, 598, 658, 724, 796,
	876, 963, 1060, 1166, 1282, 1411, 1552, 1707, 1878, 2066,
	2272, 2499, 2749, 3024, 3327, 3660, 4026, 4428, 4871, 5358,
	5894, 6484, 7132, 7845, 8630, 9493, 10442, 11487, 12635, 13899,
	15290, 16818, 18500, 20350, 22385, 24623, 27086, 29794, 32767,
}

// DVI decoder state.
type DVI struct {
	Predictor int16
	StepIndex uint8 // 0-88.
}

// Decode implements State.
func (s *DVI) Decode(dst []int16, src []byte, order NibbleOrder) []int16 {
	return decodeBytes(dst, src, order, s.nibble)
}

// Reset implements State.
func (s *DVI) Reset() {
	*s = DVI{}
}

func (s *DVI) nibble(n uint8) int16 {
	index := int(s.StepIndex)
	if index > maxStepIndex {
		index = maxStepIndex
	}
	step := dviStepTable[index]

	diff := step >> 3
	if n&4 != 0 {
		diff += step
	}
	if n&2 != 0 {
		diff += step >> 1
	}
	if n&1 != 0 {
		diff += step >> 2
	}

	predictor := int32(s.Predictor)
	if n&8 != 0 {
		predictor -= diff
	} else {
		predictor += diff
	}
	s.Predictor = clamp16(predictor)

	index += int(dviIndexTable[n&7])
	switch {
	case index < 0:
		index = 0
	case index > maxStepIndex:
		index = maxStepIndex
	}
	s.StepIndex = uint8(index)

	return s.Predictor
}
