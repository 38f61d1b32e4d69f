package models

import "encoding/json"

// MainContentKey ist der Schlüssel, unter dem Text ohne Unterabschnitt in der Baumdarstellung erscheint.
const MainContentKey = "main_content"

// Block ist ein Textsammelbereich innerhalb eines Abschnitts: entweder der
// direkte Text des Abschnitts oder ein Unterabschnitt mit Überschrift.
type Block struct {
	Heading string `json:"heading,omitempty"`
	Direct  bool   `json:"direct,omitempty"`
	Text    string `json:"text"`
}

// Section ist ein Abschnitt erster Ebene mit seinen Blöcken in Dokumentreihenfolge.
type Section struct {
	Heading string   `json:"heading"`
	Blocks  []*Block `json:"blocks"`
}

// DirectText liefert den Text ohne Unterabschnitt, falls vorhanden.
func (s *Section) DirectText() (string, bool) {
	for _, b := range s.Blocks {
		if b.Direct {
			return b.Text, true
		}
	}
	return "", false
}

// Subsection liefert den Unterabschnitt mit der gegebenen Überschrift.
func (s *Section) Subsection(heading string) (*Block, bool) {
	for _, b := range s.Blocks {
		if !b.Direct && b.Heading == heading {
			return b, true
		}
	}
	return nil, false
}

// SectionTree ist die rekonstruierte Abschnittshierarchie eines Dokuments.
type SectionTree struct {
	Sections []*Section `json:"sections"`
}

// Section liefert den Abschnitt mit der gegebenen Überschrift.
func (t *SectionTree) Section(heading string) (*Section, bool) {
	for _, s := range t.Sections {
		if s.Heading == heading {
			return s, true
		}
	}
	return nil, false
}

// Node wandelt den Baum in die Map-Darstellung {Überschrift: {Unterüberschrift|main_content: Text}} um.
// Ein Unterabschnitt, der wörtlich "main_content" heißt, wird hier mit dem direkten Text zusammengeführt.
func (t *SectionTree) Node() *Mapping {
	root := NewMapping()
	for _, s := range t.Sections {
		inner := NewMapping()
		for _, b := range s.Blocks {
			key := b.Heading
			if b.Direct {
				key = MainContentKey
			}
			if prev, ok := inner.Get(key); ok {
				prevText, _ := prev.(Scalar).Value.(string)
				inner.Set(key, Scalar{Value: joinText(prevText, b.Text)})
				continue
			}
			inner.Set(key, Scalar{Value: b.Text})
		}
		root.Set(s.Heading, inner)
	}
	return root
}

// MarshalJSON schreibt die Map-Darstellung.
func (t *SectionTree) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Node())
}

func joinText(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}
