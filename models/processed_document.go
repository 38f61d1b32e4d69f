package models

import (
	"time"

	"gorm.io/datatypes"
)

// ProcessedDocument speichert den rekonstruierten Abschnittsbaum eines Papers.
type ProcessedDocument struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	PMCID        string         `json:"pmcid" gorm:"column:pmcid;uniqueIndex;not null"`
	RunID        string         `json:"run_id" gorm:"index"`
	Tree         datatypes.JSON `json:"tree"`
	SectionCount int            `json:"section_count"`
	TripletCount int            `json:"triplet_count"`
	ProcessedAt  time.Time      `json:"processed_at"`

	Triplets []TripletRecord `json:"-" gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE"`
}

// TableName gibt explizit den Tabellennamen an.
func (ProcessedDocument) TableName() string {
	return "processed_documents"
}

// TripletRecord ist ein gespeichertes Triplet; Position erhält die Reihenfolge.
type TripletRecord struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	DocumentID uint           `json:"document_id" gorm:"index:idx_triplet_doc_pos,unique"`
	Position   int            `json:"position" gorm:"index:idx_triplet_doc_pos,unique"`
	Path       datatypes.JSON `json:"path"`
	Leaf       datatypes.JSON `json:"leaf"`
}

func (TripletRecord) TableName() string { return "triplet_records" }
