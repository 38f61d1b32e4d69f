package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"paper-triplets/models"
	"paper-triplets/services"
)

// ErrNotFound wird zurückgegeben, wenn kein Dokument zur PMCID existiert.
var ErrNotFound = errors.New("document not found")

// Repository speichert verarbeitete Dokumente und ihre Triplets per GORM.
type Repository struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewRepository erstellt ein neues Repository.
func NewRepository(db *gorm.DB, logger *zap.Logger) *Repository {
	return &Repository{DB: db, Logger: logger}
}

// Migrate legt die Tabellen an bzw. aktualisiert sie.
func (r *Repository) Migrate() error {
	return r.DB.AutoMigrate(&models.ProcessedDocument{}, &models.TripletRecord{})
}

// SaveDocument legt das Dokument an oder ersetzt Baum und Triplets eines vorhandenen.
func (r *Repository) SaveDocument(ctx context.Context, runID string, doc *services.ProcessedDocument) error {
	tree, err := json.Marshal(doc.Tree)
	if err != nil {
		return fmt.Errorf("marshal tree: %w", err)
	}
	records, err := tripletRecords(doc.Triplets)
	if err != nil {
		return err
	}

	row := models.ProcessedDocument{
		PMCID:        doc.PMCID,
		RunID:        runID,
		Tree:         datatypes.JSON(tree),
		SectionCount: len(doc.Tree.Sections),
		TripletCount: len(doc.Triplets),
		ProcessedAt:  time.Now(),
	}

	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "pmcid"}},
			DoUpdates: clause.AssignmentColumns([]string{"run_id", "tree", "section_count", "triplet_count", "processed_at", "updated_at"}),
		}).Create(&row).Error; err != nil {
			return err
		}
		// Bei Upsert ist die ID nicht zuverlässig gesetzt
		var stored models.ProcessedDocument
		if err := tx.Select("id").Where("pmcid = ?", doc.PMCID).First(&stored).Error; err != nil {
			return err
		}
		if err := tx.Where("document_id = ?", stored.ID).Delete(&models.TripletRecord{}).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		for i := range records {
			records[i].DocumentID = stored.ID
		}
		return tx.CreateInBatches(records, 500).Error
	})
}

func tripletRecords(triplets []models.Triplet) ([]models.TripletRecord, error) {
	records := make([]models.TripletRecord, 0, len(triplets))
	for i, t := range triplets {
		path, err := json.Marshal(t.Path)
		if err != nil {
			return nil, fmt.Errorf("marshal triplet path: %w", err)
		}
		leaf, err := json.Marshal(t.Leaf)
		if err != nil {
			return nil, fmt.Errorf("marshal triplet leaf: %w", err)
		}
		records = append(records, models.TripletRecord{
			Position: i,
			Path:     datatypes.JSON(path),
			Leaf:     datatypes.JSON(leaf),
		})
	}
	return records, nil
}

// ListDocuments liefert alle Dokumente ohne Baum, neueste zuerst.
func (r *Repository) ListDocuments(ctx context.Context, limit int) ([]models.ProcessedDocument, error) {
	query := r.DB.WithContext(ctx).Model(&models.ProcessedDocument{}).
		Omit("tree").Order("processed_at desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var docs []models.ProcessedDocument
	if err := query.Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

// GetDocument holt ein Dokument per PMCID.
func (r *Repository) GetDocument(ctx context.Context, pmcid string) (*models.ProcessedDocument, error) {
	var doc models.ProcessedDocument
	err := r.DB.WithContext(ctx).Where("pmcid = ?", pmcid).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetTriplets liefert die Triplets eines Dokuments in ursprünglicher Reihenfolge.
func (r *Repository) GetTriplets(ctx context.Context, pmcid string) ([]models.Triplet, error) {
	doc, err := r.GetDocument(ctx, pmcid)
	if err != nil {
		return nil, err
	}
	var records []models.TripletRecord
	if err := r.DB.WithContext(ctx).Where("document_id = ?", doc.ID).Order("position asc").Find(&records).Error; err != nil {
		return nil, err
	}
	triplets := make([]models.Triplet, 0, len(records))
	for _, rec := range records {
		var t models.Triplet
		if err := json.Unmarshal(rec.Path, &t.Path); err != nil {
			return nil, fmt.Errorf("decode triplet %d path: %w", rec.Position, err)
		}
		if err := json.Unmarshal(rec.Leaf, &t.Leaf); err != nil {
			return nil, fmt.Errorf("decode triplet %d leaf: %w", rec.Position, err)
		}
		triplets = append(triplets, t)
	}
	return triplets, nil
}
