package rng

// SequenceSource implements Source by replaying a fixed sequence of values.
// It is intended for deterministic tests.
type SequenceSource struct {
	values []int
	pos    int
}

// NewSequenceSource returns a SequenceSource that yields the given values in
// order, reducing each modulo the requested bound. When the sequence is
// exhausted it wraps around to the beginning.
//
// Precondition: values must be non-empty.
func NewSequenceSource(values ...int) *SequenceSource {
	if len(values) == 0 {
		panic("rng: NewSequenceSource called with no values")
	}
	return &SequenceSource{values: values}
}

// Intn returns the next sequence value reduced modulo n.
//
// Precondition: n > 0.
func (s *SequenceSource) Intn(n int) int {
	if n <= 0 {
		panic("rng: Intn called with n <= 0")
	}
	v := s.values[s.pos%len(s.values)]
	s.pos++
	if v < 0 {
		v = -v
	}
	return v % n
}
