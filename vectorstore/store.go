package vectorstore

import "context"

// Scored ist ein Treffer der Vektorsuche: Dokument-ID plus Ähnlichkeit.
type Scored struct {
	DocID    string
	Score    float32
	Category string
	Title    string
}

// Store ist die Schnittstelle zum optionalen Vektorindex. Der Kern behandelt
// ihn ausschließlich als Quelle gerankter IDs; Lebenszyklus und Persistenz
// des Index gehören dem Client.
type Store interface {
	// UpsertDocument legt den Vektor eines Dokuments ab oder ersetzt ihn.
	UpsertDocument(ctx context.Context, docID string, vector []float32, payload map[string]any) error

	// Query liefert die topK ähnlichsten Dokumente zum Vektor.
	Query(ctx context.Context, vector []float32, topK int) ([]Scored, error)
}
