package recommendation

import (
	"context"
	"fmt"
	"sort"

	"closetapi/config"
	"closetapi/models"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// Neighbor is one retrieval hit. Similarity is cosine similarity, higher is closer.
type Neighbor struct {
	ID         uint
	Similarity float64
}

// CandidateStore is the nearest-neighbour contract of the wardrobe index.
// Results are scoped to one owner and one category, closest first.
type CandidateStore interface {
	NearestNeighbors(ctx context.Context, userID uint, category models.Category, probe []float32, k int) ([]Neighbor, error)
}

// VectorIndex receives item embeddings produced by the indexing task.
type VectorIndex interface {
	Upsert(ctx context.Context, item models.Clothing, vector []float32) error
	Remove(ctx context.Context, itemID uint) error
}

// VectorBackend is a store that can both be probed and written.
type VectorBackend interface {
	CandidateStore
	VectorIndex
}

// OpenVectorBackend picks the configured backend. Qdrant collections are
// created on first use; pgvector lives in the migrated clothings table.
func OpenVectorBackend(ctx context.Context, cfg config.SearchConfig, dims int32, db *gorm.DB) (VectorBackend, error) {
	switch cfg.Backend {
	case "qdrant":
		store, err := NewQdrantStore(QdrantConfig{
			URL:        cfg.QdrantURL,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.QdrantCollection,
			Dims:       uint64(dims),
		})
		if err != nil {
			return nil, err
		}
		if err := store.EnsureCollection(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case "", "pgvector":
		return NewPgvectorStore(db), nil
	default:
		return nil, fmt.Errorf("unknown search backend %q", cfg.Backend)
	}
}

// ItemSource loads wardrobe rows for retrieved ids.
type ItemSource interface {
	ItemsByID(ctx context.Context, userID uint, ids []uint) ([]models.Clothing, error)
}

// PgvectorStore keeps embeddings in the clothings table and probes them with
// the cosine distance operator.
type PgvectorStore struct {
	db *gorm.DB
}

func NewPgvectorStore(db *gorm.DB) *PgvectorStore {
	return &PgvectorStore{db: db}
}

func (s *PgvectorStore) NearestNeighbors(ctx context.Context, userID uint, category models.Category, probe []float32, k int) ([]Neighbor, error) {
	if k <= 0 || len(probe) == 0 {
		return []Neighbor{}, nil
	}
	vector := pgvector.NewVector(probe)
	var rows []Neighbor
	err := s.db.WithContext(ctx).Raw(`
		SELECT id, 1 - (embedding <=> ?) AS similarity
		FROM clothings
		WHERE owner_id = ? AND category = ? AND embedding IS NOT NULL
		ORDER BY embedding <=> ?, id
		LIMIT ?`,
		vector, userID, category, vector, k,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("pgvector probe for %s: %w", category, err)
	}
	if rows == nil {
		rows = []Neighbor{}
	}
	return rows, nil
}

func (s *PgvectorStore) Upsert(ctx context.Context, item models.Clothing, vector []float32) error {
	embedding := pgvector.NewVector(vector)
	return s.db.WithContext(ctx).Model(&models.Clothing{}).
		Where("id = ?", item.ID).
		UpdateColumn("embedding", embedding).Error
}

func (s *PgvectorStore) Remove(ctx context.Context, itemID uint) error {
	return s.db.WithContext(ctx).Model(&models.Clothing{}).
		Where("id = ?", itemID).
		UpdateColumn("embedding", nil).Error
}

type GormItemSource struct {
	db *gorm.DB
}

func NewGormItemSource(db *gorm.DB) *GormItemSource {
	return &GormItemSource{db: db}
}

// ItemsByID returns the owner's items in the order of ids; unknown ids are dropped.
func (s *GormItemSource) ItemsByID(ctx context.Context, userID uint, ids []uint) ([]models.Clothing, error) {
	if len(ids) == 0 {
		return []models.Clothing{}, nil
	}
	var items []models.Clothing
	if err := s.db.WithContext(ctx).Omit("embedding").Where("owner_id = ? AND id IN ?", userID, ids).Find(&items).Error; err != nil {
		return nil, err
	}
	return orderByIDs(items, ids), nil
}

func orderByIDs(items []models.Clothing, ids []uint) []models.Clothing {
	position := make(map[uint]int, len(ids))
	for i, id := range ids {
		if _, ok := position[id]; !ok {
			position[id] = i
		}
	}
	ordered := make([]models.Clothing, 0, len(items))
	for _, item := range items {
		if _, ok := position[item.ID]; ok {
			ordered = append(ordered, item)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return position[ordered[i].ID] < position[ordered[j].ID]
	})
	return ordered
}
