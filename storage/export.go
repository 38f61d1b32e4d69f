package storage

import (
	"encoding/json"
	"io"

	"paper-triplets/models"
	"paper-triplets/services"
)

// WriteGroupedJSON schreibt die Abschnittsbäume als eingerücktes JSON-Array.
// Nicht-ASCII-Zeichen bleiben unverändert.
func WriteGroupedJSON(w io.Writer, docs []*services.ProcessedDocument) error {
	trees := make([]*models.SectionTree, 0, len(docs))
	for _, d := range docs {
		trees = append(trees, d.Tree)
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(trees)
}

type tripletLine struct {
	PMCID   string         `json:"pmcid"`
	Triplet models.Triplet `json:"triplet"`
}

// WriteTripletsJSONL schreibt eine Zeile pro Triplet: {"pmcid": ..., "triplet": [k1, ..., leaf]}.
func WriteTripletsJSONL(w io.Writer, docs []*services.ProcessedDocument) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, d := range docs {
		for _, t := range d.Triplets {
			if err := enc.Encode(tripletLine{PMCID: d.PMCID, Triplet: t}); err != nil {
				return err
			}
		}
	}
	return nil
}
