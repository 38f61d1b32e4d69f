package services

import (
	"iter"

	"paper-triplets/models"
)

// Flatten liefert die Triplets eines Baums lazy in Tiefensuche und Einfügereihenfolge.
// Listenelemente verlängern den Pfad nicht; ein skalarer Wurzelknoten ergibt ein 1-Tupel.
// Die Sequenz kann beliebig oft erneut durchlaufen werden.
func Flatten(node models.Node) iter.Seq[models.Triplet] {
	return func(yield func(models.Triplet) bool) {
		if isComposite(node) {
			walk(node, nil, yield)
			return
		}
		yield(models.Triplet{Leaf: scalarValue(node)})
	}
}

// FlattenAll sammelt alle Triplets in eine Slice.
func FlattenAll(node models.Node) []models.Triplet {
	out := []models.Triplet{}
	for t := range Flatten(node) {
		out = append(out, t)
	}
	return out
}

// walk gibt false zurück, sobald der Konsument abbricht.
func walk(node models.Node, path []string, yield func(models.Triplet) bool) bool {
	switch n := node.(type) {
	case *models.Mapping:
		for _, e := range n.Entries() {
			childPath := extend(path, e.Key)
			if isComposite(e.Value) {
				if !walk(e.Value, childPath, yield) {
					return false
				}
				continue
			}
			if !yield(models.Triplet{Path: childPath, Leaf: scalarValue(e.Value)}) {
				return false
			}
		}
	case models.Sequence:
		for _, item := range n {
			if isComposite(item) {
				if !walk(item, path, yield) {
					return false
				}
				continue
			}
			if !yield(models.Triplet{Path: extend(path), Leaf: scalarValue(item)}) {
				return false
			}
		}
	}
	return true
}

// extend kopiert den Pfad, damit ausgegebene Triplets keinen Speicher teilen.
func extend(path []string, keys ...string) []string {
	out := make([]string, 0, len(path)+len(keys))
	out = append(out, path...)
	return append(out, keys...)
}

func isComposite(n models.Node) bool {
	switch n.(type) {
	case *models.Mapping, models.Sequence:
		return true
	}
	return false
}

func scalarValue(n models.Node) any {
	if s, ok := n.(models.Scalar); ok {
		return s.Value
	}
	return nil
}
