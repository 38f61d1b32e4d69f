package bioc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"paper-triplets/config"
)

// ErrNotJSON wird zurückgegeben, wenn die API keinen gültigen JSON-Body liefert
// (die BioNLP-API antwortet bei unbekannten IDs mit 200 und Klartext).
var ErrNotJSON = errors.New("response body is not JSON")

// StatusError beschreibt eine Antwort mit Nicht-200-Status.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bioc request failed with status: %d", e.StatusCode)
}

// Fetcher implementiert das DocumentSource-Interface für die BioC-JSON-API.
type Fetcher struct {
	Config     *config.Config
	Logger     *zap.Logger
	HTTPClient *http.Client
	cache      *gocache.Cache
}

// NewFetcher erstellt einen neuen BioC-Fetcher. Erfolgreiche Antworten werden
// für Config.BioCCacheTTL im Speicher gehalten.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	f := &Fetcher{
		Config:     cfg,
		Logger:     logger,
		HTTPClient: &http.Client{Timeout: timeout},
	}
	if cfg.BioCCacheTTL > 0 {
		f.cache = gocache.New(cfg.BioCCacheTTL, 10*time.Minute)
	}
	return f
}

// Name gibt den Namen der Quelle zurück.
func (f *Fetcher) Name() string {
	return "bioc"
}

// Fetch holt den BioC-JSON-Export für eine PMCID. Es gibt genau einen Versuch.
func (f *Fetcher) Fetch(ctx context.Context, id string) ([]byte, error) {
	log := f.Logger.With(zap.String("pmcid", id))

	if f.cache != nil {
		if v, ok := f.cache.Get(id); ok {
			log.Debug("BioC-Antwort aus Cache.")
			return v.([]byte), nil
		}
	}

	fetchURL := f.documentURL(id)
	log.Debug("Rufe BioC API auf", zap.String("url", fetchURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotJSON)
	}

	if f.cache != nil {
		f.cache.SetDefault(id, body)
	}
	log.Debug("BioC-Export geladen", zap.Int("bytes", len(body)))
	return body, nil
}

func (f *Fetcher) documentURL(id string) string {
	base := strings.TrimRight(f.Config.BioCBaseURL, "/")
	encoding := f.Config.BioCEncoding
	if encoding == "" {
		encoding = "unicode"
	}
	return fmt.Sprintf("%s/BioC_json/%s/%s", base, url.PathEscape(id), encoding)
}
