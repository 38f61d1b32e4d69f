package models

// PassageType ist die Rolle eines Passage-Eintrags in der Dokumenthierarchie.
type PassageType string

const (
	PassageTitle1    PassageType = "title_1"
	PassageTitle2    PassageType = "title_2"
	PassageParagraph PassageType = "paragraph"
	PassageOther     PassageType = "other"
)

// ParsePassageType bildet einen BioC infons.type-Wert auf einen PassageType ab.
// Alles außer title_1, title_2 und paragraph wird zu PassageOther.
func ParsePassageType(s string) PassageType {
	switch PassageType(s) {
	case PassageTitle1, PassageTitle2, PassageParagraph:
		return PassageType(s)
	default:
		return PassageOther
	}
}

// Passage ist eine getypte Texteinheit in Lesereihenfolge.
type Passage struct {
	Type    PassageType `json:"type"`
	RawText string      `json:"raw_text"`
}
