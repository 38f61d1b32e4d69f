// Package bioc enthält die Logik für den Abruf von BioC-JSON-Exporten aus der NCBI BioNLP-API.
package bioc

import (
	"bytes"
	"encoding/json"
)

// Collection ist die Top-Level-Struktur eines BioC-JSON-Exports.
type Collection struct {
	Source    string     `json:"source"`
	Date      string     `json:"date"`
	Key       string     `json:"key"`
	Documents []Document `json:"documents"`
}

// Document ist ein einzelnes Dokument einer Collection.
type Document struct {
	ID       string          `json:"id"`
	Infons   map[string]any  `json:"infons"`
	Passages json.RawMessage `json:"passages"`
}

// Passage ist ein einzelner Textabschnitt mit Typangabe in infons.type.
type Passage struct {
	Offset int            `json:"offset"`
	Infons map[string]any `json:"infons"`
	Text   string         `json:"text"`
}

// Type liefert infons.type oder "" wenn nicht gesetzt.
func (p Passage) Type() string {
	t, _ := p.Infons["type"].(string)
	return t
}

// DecodeCollections akzeptiert sowohl eine Liste von Collections (API-Format)
// als auch eine einzelne Collection.
func DecodeCollections(raw []byte) ([]Collection, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var c Collection
		if err := json.Unmarshal(trimmed, &c); err != nil {
			return nil, err
		}
		return []Collection{c}, nil
	}
	var cs []Collection
	if err := json.Unmarshal(trimmed, &cs); err != nil {
		return nil, err
	}
	return cs, nil
}
