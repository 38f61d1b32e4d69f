package providers

import "context"

// DocumentSource ist das Interface, das jede Dokumentquelle (z.B. BioC) implementieren muss.
type DocumentSource interface {
	// Fetch holt den rohen JSON-Export für eine Dokument-ID (z.B. "PMC1234567").
	Fetch(ctx context.Context, id string) ([]byte, error)

	// Name gibt den eindeutigen Namen der Quelle zurück (z.B. "bioc").
	Name() string
}

// IDSource liefert die geordnete Liste der zu verarbeitenden Dokument-IDs.
type IDSource interface {
	LoadIDs(ctx context.Context) ([]string, error)
}
