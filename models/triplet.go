package models

// Triplet ist ein Pfad aus Schlüsseln, der in einem skalaren Blattwert endet.
type Triplet struct {
	Path []string
	Leaf any
}

// Values liefert das Tupel (k1, ..., kn, leaf).
func (t Triplet) Values() []any {
	out := make([]any, 0, len(t.Path)+1)
	for _, k := range t.Path {
		out = append(out, k)
	}
	return append(out, t.Leaf)
}

// MarshalJSON schreibt das Triplet als flaches Array.
func (t Triplet) MarshalJSON() ([]byte, error) {
	return marshalScalar(t.Values())
}
