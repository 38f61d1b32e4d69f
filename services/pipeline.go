package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"paper-triplets/config"
	"paper-triplets/models"
	"paper-triplets/providers"
)

// Sink nimmt verarbeitete Dokumente entgegen (z.B. das Datenbank-Repository).
type Sink interface {
	SaveDocument(ctx context.Context, runID string, doc *ProcessedDocument) error
}

// ProcessedDocument ist das Ergebnis der Pipeline für ein einzelnes Paper.
type ProcessedDocument struct {
	PMCID    string
	Tree     *models.SectionTree
	Triplets []models.Triplet
}

// SkippedDocument beschreibt ein übersprungenes Paper.
type SkippedDocument struct {
	PMCID  string `json:"pmcid"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

// RunResult fasst einen Pipeline-Lauf zusammen.
type RunResult struct {
	RunID      string
	Documents  []*ProcessedDocument
	Skipped    []SkippedDocument
	SinkErrors int
	StartedAt  time.Time
	FinishedAt time.Time
}

// TripletCount ist die Gesamtzahl erzeugter Triplets.
func (r *RunResult) TripletCount() int {
	n := 0
	for _, d := range r.Documents {
		n += len(d.Triplets)
	}
	return n
}

const (
	skipFetch     = "fetch_failed"
	skipMalformed = "malformed_document"
)

// PipelineService orchestriert Abruf, Hierarchieaufbau und Flattening.
type PipelineService struct {
	Config     *config.Config
	Logger     *zap.Logger
	Source     providers.DocumentSource
	IDs        providers.IDSource
	Sink       Sink
	Metrics    *PipelineMetrics
	Normalizer *TextNormalizer

	limiter *rate.Limiter
}

// NewPipelineService erstellt eine neue Instanz des PipelineService. ids, sink und metrics dürfen nil sein.
func NewPipelineService(cfg *config.Config, logger *zap.Logger, source providers.DocumentSource, ids providers.IDSource, sink Sink, metrics *PipelineMetrics) *PipelineService {
	limit := rate.Inf
	if cfg.FetchDelay > 0 {
		limit = rate.Every(cfg.FetchDelay)
	}
	return &PipelineService{
		Config:     cfg,
		Logger:     logger,
		Source:     source,
		IDs:        ids,
		Sink:       sink,
		Metrics:    metrics,
		Normalizer: NewTextNormalizer(logger),
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// RunFromSource lädt die IDs aus der Publikationsquelle und verarbeitet sie.
func (p *PipelineService) RunFromSource(ctx context.Context) (*RunResult, error) {
	if p.IDs == nil {
		return nil, errors.New("no id source configured")
	}
	ids, err := p.IDs.LoadIDs(ctx)
	if err != nil {
		p.Logger.Error("Fehler beim Laden der Dokument-IDs", zap.Error(err))
		return nil, err
	}
	return p.Run(ctx, ids)
}

// Run verarbeitet die IDs nacheinander. Fehlgeschlagene Dokumente werden
// protokolliert und übersprungen; die Reihenfolge der übrigen bleibt erhalten.
// Bei Abbruch des Kontexts wird das Teilergebnis mit ctx.Err() zurückgegeben.
func (p *PipelineService) Run(ctx context.Context, ids []string) (*RunResult, error) {
	result := &RunResult{RunID: uuid.NewString(), StartedAt: time.Now()}
	log := p.Logger.With(zap.String("run_id", result.RunID))
	log.Info("Starte Pipeline-Lauf", zap.Int("ids", len(ids)), zap.String("source", p.Source.Name()))

	for _, id := range ids {
		if err := p.limiter.Wait(ctx); err != nil {
			result.FinishedAt = time.Now()
			log.Warn("Pipeline-Lauf abgebrochen", zap.Error(err))
			return result, ctx.Err()
		}

		doc, skip := p.process(ctx, id)
		if skip != nil {
			log.Warn("Dokument übersprungen", zap.String("pmcid", id), zap.String("reason", skip.Reason), zap.Error(skip.Err))
			result.Skipped = append(result.Skipped, *skip)
			p.Metrics.skipped(skip.Reason)
			if ctx.Err() != nil {
				result.FinishedAt = time.Now()
				return result, ctx.Err()
			}
			continue
		}

		result.Documents = append(result.Documents, doc)
		p.Metrics.processed(len(doc.Triplets))

		if p.Sink != nil {
			if err := p.Sink.SaveDocument(ctx, result.RunID, doc); err != nil {
				log.Error("Speichern fehlgeschlagen", zap.String("pmcid", id), zap.Error(err))
				result.SinkErrors++
			}
		}
		log.Info("Dokument verarbeitet", zap.String("pmcid", id), zap.Int("sections", len(doc.Tree.Sections)), zap.Int("triplets", len(doc.Triplets)))
	}

	result.FinishedAt = time.Now()
	log.Info("Pipeline-Lauf abgeschlossen",
		zap.Int("processed", len(result.Documents)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("triplets", result.TripletCount()),
		zap.Duration("duration", result.FinishedAt.Sub(result.StartedAt)))
	return result, nil
}

func (p *PipelineService) process(ctx context.Context, id string) (*ProcessedDocument, *SkippedDocument) {
	raw, err := p.Source.Fetch(ctx, id)
	if err != nil {
		return nil, &SkippedDocument{PMCID: id, Reason: skipFetch, Err: err}
	}
	tree, err := BuildHierarchyFromBioC(raw, p.Normalizer.Normalize)
	if err != nil {
		return nil, &SkippedDocument{PMCID: id, Reason: skipMalformed, Err: err}
	}
	return &ProcessedDocument{
		PMCID:    id,
		Tree:     tree,
		Triplets: FlattenAll(tree.Node()),
	}, nil
}
