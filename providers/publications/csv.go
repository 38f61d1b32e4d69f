// Package publications liest die Publikationstabelle und extrahiert daraus Dokument-IDs.
package publications

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"paper-triplets/config"
)

var (
	pmcRegex  = regexp.MustCompile(`(PMC\d+)`)
	pmidRegex = regexp.MustCompile(`pubmed\.ncbi\.nlm\.nih\.gov/(\d+)`)
)

// Resolver löst eine PMID in eine PMCID auf (z.B. pubmed.Converter).
type Resolver interface {
	PMCID(ctx context.Context, pmid string) (string, error)
}

// Source lädt die Publikationstabelle von einer URL oder aus einer Datei.
type Source struct {
	Config   *config.Config
	Logger   *zap.Logger
	Resolver Resolver
}

// NewSource erstellt eine neue Publikationsquelle. resolver darf nil sein.
func NewSource(cfg *config.Config, logger *zap.Logger, resolver Resolver) *Source {
	return &Source{Config: cfg, Logger: logger, Resolver: resolver}
}

var httpClient = &http.Client{Timeout: 60 * time.Second}

// LoadIDs liest die Tabelle und gibt die PMCIDs in Tabellenreihenfolge zurück.
func (s *Source) LoadIDs(ctx context.Context) ([]string, error) {
	location := s.Config.PublicationsCSV
	log := s.Logger.With(zap.String("source", location))

	rc, err := open(ctx, location)
	if err != nil {
		log.Error("Publikationstabelle konnte nicht geöffnet werden", zap.Error(err))
		return nil, err
	}
	defer rc.Close()

	ids, err := ExtractIDs(ctx, rc, s.Config.PublicationsLink, s.Resolver, s.Logger)
	if err != nil {
		return nil, err
	}
	log.Info("Dokument-IDs geladen", zap.Int("count", len(ids)))
	return ids, nil
}

func open(ctx context.Context, location string) (io.ReadCloser, error) {
	if !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://") {
		return os.Open(location)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("publications csv request failed with status: %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// ExtractIDs liest CSV mit Kopfzeile und extrahiert aus der Spalte column die
// erste PMCID je Zeile. Reihenfolge bleibt erhalten, Duplikate bleiben stehen.
// Zeilen mit reinem PubMed-Link werden über resolver aufgelöst, sofern gesetzt.
func ExtractIDs(ctx context.Context, r io.Reader, column string, resolver Resolver, logger *zap.Logger) ([]string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("publications csv is empty")
		}
		return nil, err
	}
	col := -1
	for i, name := range header {
		if strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) == column {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("column %q not found in publications csv", column)
	}

	ids := []string{}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("publications csv line %d: %w", line, err)
		}
		if col >= len(record) {
			continue
		}
		link := record[col]
		if m := pmcRegex.FindStringSubmatch(link); m != nil {
			ids = append(ids, m[1])
			continue
		}
		if resolver == nil {
			continue
		}
		m := pmidRegex.FindStringSubmatch(link)
		if m == nil {
			continue
		}
		pmcid, err := resolver.PMCID(ctx, m[1])
		if err != nil {
			logger.Warn("PMID konnte nicht aufgelöst werden", zap.String("pmid", m[1]), zap.Error(err))
			continue
		}
		if pmcid != "" {
			ids = append(ids, pmcid)
		}
	}
	return ids, nil
}
