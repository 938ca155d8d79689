package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	"vaultindex/internal/contextutil"
)

// QdrantStore implements Store using a Qdrant collection with cosine
// distance. It is selected with VECTOR_BACKEND=qdrant for vaults large
// enough to outgrow the in-process sqlite scan.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	dimension  int
}

// NewQdrantStore creates a Qdrant-backed vector index.
// urlStr should be in the format "http://host:port" (e.g., "http://localhost:6333").
// The gRPC port (typically 6334) is derived from the HTTP port. The
// collection is created on first use and validated on subsequent runs.
func NewQdrantStore(ctx context.Context, urlStr, collection string, dimension int) (*QdrantStore, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsedURL.Hostname()
	if host == "" {
		host = "localhost"
	}

	port := 6334 // Default gRPC port
	if parsedURL.Port() != "" {
		httpPort, err := strconv.Atoi(parsedURL.Port())
		if err == nil {
			// gRPC port is typically HTTP port + 1
			port = httpPort + 1
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	s := &QdrantStore{
		client:     client,
		collection: collection,
		dimension:  dimension,
	}

	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

// ensureCollection creates the collection if missing and validates the
// vector size if it exists. A size mismatch means the collection was built
// for a different embedding model; that is surfaced, never auto-repaired.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if !exists {
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(s.dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		return nil
	}

	info, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to get collection info: %w", err)
	}

	config := info.Config
	if config == nil || config.Params == nil {
		return fmt.Errorf("%w: collection config is invalid", ErrCorrupt)
	}
	vectorsConfig := config.Params.GetVectorsConfig()
	if vectorsConfig == nil {
		return fmt.Errorf("%w: collection vectors config is invalid", ErrCorrupt)
	}
	params := vectorsConfig.GetParams()
	if params == nil {
		return fmt.Errorf("%w: collection vector params are invalid", ErrCorrupt)
	}
	if int(params.Size) != s.dimension {
		return fmt.Errorf("%w: collection vector size %d does not match configured %d (clear and reindex)",
			ErrCorrupt, params.Size, s.dimension)
	}

	return nil
}

// Upsert inserts or replaces points in the collection.
func (s *QdrantStore) Upsert(ctx context.Context, points []Point) error {
	logger := contextutil.LoggerFromContext(ctx)

	if len(points) == 0 {
		return nil
	}

	qdrantPoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		if len(p.Vector) != s.dimension {
			return fmt.Errorf("point %s has dimension %d, expected %d", p.ID, len(p.Vector), s.dimension)
		}
		qdrantPoints = append(qdrantPoints, &qdrant.PointStruct{
			Id:      qdrant.NewID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(payloadToMap(p.Payload)),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         qdrantPoints,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to upsert points", "count", len(points), "error", err)
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	logger.DebugContext(ctx, "upserted points", "count", len(points))
	return nil
}

// Delete removes points by their ids.
func (s *QdrantStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	qdrantIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		qdrantIDs = append(qdrantIDs, qdrant.NewID(id))
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points:         qdrant.NewPointsSelector(qdrantIDs...),
	})
	if err != nil {
		return fmt.Errorf("failed to delete points: %w", err)
	}
	return nil
}

// DeleteBySource removes all points whose payload source path matches.
func (s *QdrantStore) DeleteBySource(ctx context.Context, sourcePath string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("source_path", sourcePath),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to delete points for %s: %w", sourcePath, err)
	}
	return nil
}

// Replace upserts the new points, then prunes points for the source that are
// not part of the new set. Chunk ids are stable, so surviving chunks are
// overwritten in place; only the stale tail has a brief visibility window
// between the two acknowledged operations.
func (s *QdrantStore) Replace(ctx context.Context, sourcePath string, points []Point) error {
	if len(points) == 0 {
		return s.DeleteBySource(ctx, sourcePath)
	}

	if err := s.Upsert(ctx, points); err != nil {
		return err
	}

	keep := make([]*qdrant.PointId, 0, len(points))
	for _, p := range points {
		keep = append(keep, qdrant.NewID(p.ID))
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("source_path", sourcePath),
			},
			MustNot: []*qdrant.Condition{
				qdrant.NewHasID(keep...),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to prune stale points for %s: %w", sourcePath, err)
	}
	return nil
}

// Query performs a similarity search against the collection. Qdrant applies
// the score threshold server-side; the ascending-id tie-break is applied
// here for deterministic ordering.
func (s *QdrantStore) Query(ctx context.Context, vector []float32, topK int, minScore float32) ([]Result, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be greater than 0")
	}

	limit := uint64(topK)
	threshold := minScore
	scoredPoints, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		ScoreThreshold: &threshold,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	results := make([]Result, 0, len(scoredPoints))
	for _, sp := range scoredPoints {
		id := ""
		if sp.Id != nil {
			id = sp.Id.GetUuid()
		}
		results = append(results, Result{
			ID:      id,
			Score:   sp.Score,
			Payload: payloadFromQdrant(sp.Payload),
		})
	}

	// Qdrant orders by score but breaks ties arbitrarily
	SortResults(results)

	return results, nil
}

// Count returns the exact number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	exact := true
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return int(count), nil
}

// Clear drops and recreates the collection.
func (s *QdrantStore) Clear(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return s.ensureCollection(ctx)
}

// Name identifies the backend.
func (s *QdrantStore) Name() string { return "qdrant" }

// Close closes the underlying gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// payloadToMap converts a typed payload to the map form qdrant stores.
func payloadToMap(p Payload) map[string]any {
	return map[string]any{
		"source_path":  p.SourcePath,
		"seq":          p.Seq,
		"text":         p.Text,
		"start_offset": p.StartOffset,
		"end_offset":   p.EndOffset,
		"content_hash": p.ContentHash,
		"title":        p.Title,
	}
}

// payloadFromQdrant converts a qdrant payload back to the typed form.
func payloadFromQdrant(values map[string]*qdrant.Value) Payload {
	var p Payload
	if values == nil {
		return p
	}
	p.SourcePath = values["source_path"].GetStringValue()
	p.Seq = int(values["seq"].GetIntegerValue())
	p.Text = values["text"].GetStringValue()
	p.StartOffset = int(values["start_offset"].GetIntegerValue())
	p.EndOffset = int(values["end_offset"].GetIntegerValue())
	p.ContentHash = values["content_hash"].GetStringValue()
	p.Title = values["title"].GetStringValue()
	return p
}
