package recommendation

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"closetapi/models"

	"github.com/qdrant/go-client/qdrant"
)

type QdrantConfig struct {
	URL        string // "https://xyz.cloud.qdrant.io:6333" or "localhost:6334"
	APIKey     string
	Collection string
	Dims       uint64
}

// QdrantStore serves nearest-neighbour probes from a Qdrant collection whose
// point ids are clothing ids and whose payload carries owner_id and category.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	dims       uint64
}

// parseQdrantURL extracts host, gRPC port and TLS flag. The REST port 6333 is
// swapped for the gRPC port 6334.
func parseQdrantURL(rawURL string) (host string, port int, useTLS bool, err error) {
	u, parseErr := url.Parse(rawURL)
	if parseErr != nil || u.Host == "" {
		u, parseErr = url.Parse("grpc://" + rawURL)
		if parseErr != nil || u.Host == "" {
			return "", 0, false, fmt.Errorf("qdrant: invalid url %q", rawURL)
		}
	}
	useTLS = u.Scheme == "https"
	host = u.Hostname()
	port = 6334
	if portStr := u.Port(); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return "", 0, false, fmt.Errorf("qdrant: invalid port %q", portStr)
		}
		if p != 6333 {
			port = p
		}
	}
	return host, port, useTLS, nil
}

func NewQdrantStore(cfg QdrantConfig) (*QdrantStore, error) {
	host, port, useTLS, err := parseQdrantURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: connect to %s:%d: %w", host, port, err)
	}
	return &QdrantStore{client: client, collection: cfg.Collection, dims: cfg.Dims}, nil
}

// EnsureCollection creates the collection and its payload indexes when missing.
func (q *QdrantStore) EnsureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("qdrant: check collection: %w", err)
	}
	if !exists {
		if err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: q.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     q.dims,
				Distance: qdrant.Distance_Cosine,
			}),
		}); err != nil {
			return fmt.Errorf("qdrant: create collection %q: %w", q.collection, err)
		}
	}
	integerType := qdrant.FieldType_FieldTypeInteger
	if _, err := q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: q.collection,
		FieldName:      "owner_id",
		FieldType:      &integerType,
	}); err != nil {
		return fmt.Errorf("qdrant: index owner_id: %w", err)
	}
	keywordType := qdrant.FieldType_FieldTypeKeyword
	if _, err := q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: q.collection,
		FieldName:      "category",
		FieldType:      &keywordType,
	}); err != nil {
		return fmt.Errorf("qdrant: index category: %w", err)
	}
	return nil
}

func ownerCategoryFilter(userID uint, category models.Category) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatchInt("owner_id", int64(userID)),
			qdrant.NewMatch("category", string(category)),
		},
	}
}

func (q *QdrantStore) NearestNeighbors(ctx context.Context, userID uint, category models.Category, probe []float32, k int) ([]Neighbor, error) {
	if k <= 0 || len(probe) == 0 {
		return []Neighbor{}, nil
	}
	limit := uint64(k)
	scored, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(probe),
		Filter:         ownerCategoryFilter(userID, category),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(false),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: probe %s: %w", category, err)
	}
	neighbors := make([]Neighbor, 0, len(scored))
	for _, point := range scored {
		neighbors = append(neighbors, Neighbor{
			ID:         uint(point.GetId().GetNum()),
			Similarity: float64(point.GetScore()),
		})
	}
	sortNeighbors(neighbors)
	return neighbors, nil
}

func (q *QdrantStore) Upsert(ctx context.Context, item models.Clothing, vector []float32) error {
	wait := true
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewIDNum(uint64(item.ID)),
				Vectors: qdrant.NewVectors(vector...),
				Payload: qdrant.NewValueMap(map[string]any{
					"owner_id": int64(item.OwnerID),
					"category": string(item.Category),
				}),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert item %d: %w", item.ID, err)
	}
	return nil
}

func (q *QdrantStore) Remove(ctx context.Context, itemID uint) error {
	wait := true
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDNum(uint64(itemID))),
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete item %d: %w", itemID, err)
	}
	return nil
}

// sortNeighbors orders by similarity, then id, so equal scores never depend
// on index internals.
func sortNeighbors(neighbors []Neighbor) {
	sort.SliceStable(neighbors, func(i, j int) bool {
		if neighbors[i].Similarity != neighbors[j].Similarity {
			return neighbors[i].Similarity > neighbors[j].Similarity
		}
		return neighbors[i].ID < neighbors[j].ID
	})
}
