// Package pubmed enthält die Logik für die Interaktion mit dem PMC ID Converter.
package pubmed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"paper-triplets/config"
)

// IDConvResponse repräsentiert die JSON-Antwort des PMC ID Converters.
type IDConvResponse struct {
	Status  string `json:"status"`
	Records []struct {
		PMID   string `json:"pmid"`
		PMCID  string `json:"pmcid"`
		Status string `json:"status"`
	} `json:"records"`
}

// Converter löst PubMed-IDs in PMCIDs auf.
type Converter struct {
	Config     *config.Config
	Logger     *zap.Logger
	HTTPClient *http.Client
}

// NewConverter erstellt einen neuen ID-Converter.
func NewConverter(cfg *config.Config, logger *zap.Logger) *Converter {
	return &Converter{
		Config:     cfg,
		Logger:     logger,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// PMCID holt die PMCID zu einer PMID. Ohne Treffer wird "" ohne Fehler zurückgegeben.
func (c *Converter) PMCID(ctx context.Context, pmid string) (string, error) {
	q := url.Values{}
	q.Set("ids", pmid)
	q.Set("format", "json")
	convURL := c.Config.IDConvURL + "?" + q.Encode()
	c.Logger.Debug("Rufe ID Converter URL auf", zap.String("url", convURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, convURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("idconv failed: status %d", resp.StatusCode)
	}

	var convResponse IDConvResponse
	if err := json.NewDecoder(resp.Body).Decode(&convResponse); err != nil {
		return "", err
	}

	if len(convResponse.Records) > 0 && convResponse.Records[0].PMCID != "" {
		return convResponse.Records[0].PMCID, nil
	}
	return "", nil
}
