package rng

// Source is the random stream threaded through every transition. Float64
// returns a value in [0, 1).
type Source interface {
	Float64() float64
}

const golden = 0x9e3779b97f4a7c15

// SplitMix is a seedable splitmix64 stream. Its whole state is one word, so it
// can be saved next to the game state and restored exactly.
type SplitMix struct {
	state uint64
}

func New(seed int64) *SplitMix {
	return &SplitMix{state: uint64(seed)}
}

func Restore(state uint64) *SplitMix {
	return &SplitMix{state: state}
}

func (s *SplitMix) State() uint64 { return s.state }

func (s *SplitMix) Uint64() uint64 {
	s.state += golden
	return mix64(s.state)
}

func (s *SplitMix) Float64() float64 {
	return float64(s.Uint64()>>11) / (1 << 53)
}

func mix64(z uint64) uint64 {
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Fixed replays Values in order and then repeats the last one. An empty
// Fixed always returns 0.
type Fixed struct {
	Values []float64
	i      int
}

func (f *Fixed) Float64() float64 {
	if len(f.Values) == 0 {
		return 0
	}
	if f.i >= len(f.Values) {
		return f.Values[len(f.Values)-1]
	}
	v := f.Values[f.i]
	f.i++
	return v
}

// Never returns a source whose draws never pass a chance gate.
func Never() Source { return &Fixed{Values: []float64{0.999999999}} }

// Always returns a source whose draws pass every non-zero chance gate.
func Always() Source { return &Fixed{} }
