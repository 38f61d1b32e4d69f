package services

import (
	"encoding/json"
	"errors"
	"fmt"

	"paper-triplets/models"
	"paper-triplets/providers/bioc"
)

// ErrMalformedDocument ist das Sentinel für MalformedDocumentError (errors.Is).
var ErrMalformedDocument = errors.New("malformed document")

// MalformedDocumentError: die Eingabe hat nicht die erwartete Collection/Document/Passages-Hülle.
type MalformedDocumentError struct {
	Reason string
	Err    error
}

func (e *MalformedDocumentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed document: %s: %v", e.Reason, e.Err)
	}
	return "malformed document: " + e.Reason
}

func (e *MalformedDocumentError) Unwrap() error { return e.Err }

func (e *MalformedDocumentError) Is(target error) bool { return target == ErrMalformedDocument }

// BuildHierarchy gruppiert Passagen in Lesereihenfolge zu einem Abschnittsbaum.
//
// title_1 setzt den aktiven Abschnitt und löscht den Unterabschnitt, title_2 setzt
// den Unterabschnitt (ohne aktiven Abschnitt wird er verworfen), paragraph hängt
// Text an den aktiven Unterabschnitt bzw. den direkten Text an. Text vor dem ersten
// title_1 wird verworfen, andere Typen ignoriert. Gleichlautende Überschriften
// verweisen auf denselben Eintrag.
func BuildHierarchy(passages []models.Passage, normalize func(string) string) *models.SectionTree {
	if normalize == nil {
		normalize = Normalize
	}
	tree := &models.SectionTree{}

	var current *models.Section
	var currentL2 *string

	for _, p := range passages {
		switch p.Type {
		case models.PassageTitle1:
			heading := normalize(p.RawText)
			currentL2 = nil
			if s, ok := tree.Section(heading); ok {
				current = s
				continue
			}
			current = &models.Section{Heading: heading}
			tree.Sections = append(tree.Sections, current)

		case models.PassageTitle2:
			heading := normalize(p.RawText)
			currentL2 = &heading
			if !active(current) {
				continue
			}
			if _, ok := current.Subsection(heading); !ok {
				current.Blocks = append(current.Blocks, &models.Block{Heading: heading})
			}

		case models.PassageParagraph:
			if !active(current) {
				continue
			}
			text := normalize(p.RawText)
			var dest *models.Block
			if currentL2 != nil && *currentL2 != "" {
				dest = subsectionBlock(current, *currentL2)
			} else {
				dest = directBlock(current)
			}
			appendText(dest, text)
		}
	}
	return tree
}

// Ein Abschnitt mit leerer Überschrift nimmt keinen Text auf.
func active(s *models.Section) bool {
	return s != nil && s.Heading != ""
}

func directBlock(s *models.Section) *models.Block {
	for _, b := range s.Blocks {
		if b.Direct {
			return b
		}
	}
	b := &models.Block{Direct: true}
	s.Blocks = append(s.Blocks, b)
	return b
}

// subsectionBlock liefert den Unterabschnitt und legt ihn bei Bedarf an.
func subsectionBlock(s *models.Section, heading string) *models.Block {
	if b, ok := s.Subsection(heading); ok {
		return b
	}
	b := &models.Block{Heading: heading}
	s.Blocks = append(s.Blocks, b)
	return b
}

func appendText(b *models.Block, text string) {
	if text == "" {
		return
	}
	if b.Text == "" {
		b.Text = text
		return
	}
	b.Text += " " + text
}

// BuildHierarchyFromBioC dekodiert einen BioC-JSON-Export und baut den Baum des ersten Dokuments.
func BuildHierarchyFromBioC(raw []byte, normalize func(string) string) (*models.SectionTree, error) {
	passages, err := PassagesFromBioC(raw)
	if err != nil {
		return nil, err
	}
	return BuildHierarchy(passages, normalize), nil
}

// PassagesFromBioC extrahiert die Passagen des ersten Dokuments der ersten Collection.
func PassagesFromBioC(raw []byte) ([]models.Passage, error) {
	collections, err := bioc.DecodeCollections(raw)
	if err != nil {
		return nil, &MalformedDocumentError{Reason: "invalid BioC JSON", Err: err}
	}
	if len(collections) == 0 {
		return nil, &MalformedDocumentError{Reason: "no collection"}
	}
	docs := collections[0].Documents
	if len(docs) == 0 {
		return nil, &MalformedDocumentError{Reason: "no documents"}
	}
	rawPassages := docs[0].Passages
	if len(rawPassages) == 0 || string(rawPassages) == "null" {
		return nil, &MalformedDocumentError{Reason: "document has no passages list"}
	}
	var items []bioc.Passage
	if err := json.Unmarshal(rawPassages, &items); err != nil {
		return nil, &MalformedDocumentError{Reason: "invalid passages list", Err: err}
	}

	passages := make([]models.Passage, 0, len(items))
	for _, it := range items {
		passages = append(passages, models.Passage{
			Type:    models.ParsePassageType(it.Type()),
			RawText: it.Text,
		})
	}
	return passages, nil
}
