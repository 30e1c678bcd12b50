package vectorstore

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"research-agent/config"
)

// QdrantStore ist die Store-Implementierung über das offizielle Qdrant-SDK.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	logger     *zap.Logger
}

// NewQdrantStore verbindet sich mit Qdrant und legt die Collection an,
// falls sie fehlt (Cosine-Distanz).
func NewQdrantStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*QdrantStore, error) {
	host, port := parseHostPort(cfg.QdrantAddr, "localhost", 6334)

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant client init failed: %w", err)
	}

	s := &QdrantStore{
		client:     client,
		collection: cfg.QdrantCollection,
		logger:     logger,
	}
	if err := s.ensureCollection(ctx, uint64(cfg.EmbeddingDim)); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context, dim uint64) error {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("qdrant unreachable: %w", err)
	}
	for _, c := range collections {
		if c == s.collection {
			return nil
		}
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dim,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant collection create failed: %w", err)
	}
	s.logger.Info("Created qdrant collection", zap.String("collection", s.collection))
	return nil
}

// UpsertDocument legt den Vektor eines Dokuments ab. Die Punkt-ID wird
// deterministisch aus der Dokument-ID abgeleitet, Upserts ersetzen also.
func (s *QdrantStore) UpsertDocument(ctx context.Context, docID string, vector []float32, payload map[string]any) error {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["doc_id"] = docID

	pointID := uuid.NewSHA1(uuid.NameSpaceOID, []byte(docID)).String()
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewIDUUID(pointID),
				Vectors: qdrant.NewVectors(vector...),
				Payload: qdrant.NewValueMap(payload),
			},
		},
	})
	return err
}

// Query liefert die topK ähnlichsten Dokumente.
func (s *QdrantStore) Query(ctx context.Context, vector []float32, topK int) ([]Scored, error) {
	limit := uint64(topK)
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, err
	}

	results := make([]Scored, 0, len(points))
	for _, point := range points {
		hit := Scored{Score: point.Score}
		if val, ok := point.Payload["doc_id"]; ok {
			hit.DocID = val.GetStringValue()
		}
		if val, ok := point.Payload["category"]; ok {
			hit.Category = val.GetStringValue()
		}
		if val, ok := point.Payload["title"]; ok {
			hit.Title = val.GetStringValue()
		}
		results = append(results, hit)
	}
	return results, nil
}

// parseHostPort zerlegt "host:port" mit Fallback auf Defaults.
func parseHostPort(addr, defaultHost string, defaultPort int) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return defaultHost, defaultPort
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, defaultPort
	}
	return host, port
}
