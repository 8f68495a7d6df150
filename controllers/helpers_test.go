package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"closetapi/config"
	"closetapi/dbhelper"
	"closetapi/logging"
	"closetapi/models"
	"closetapi/recommendation"
	"closetapi/test"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// wardrobeStore ranks every item of the category equally, in id order.
type wardrobeStore struct {
	db *gorm.DB
}

func (s wardrobeStore) NearestNeighbors(ctx context.Context, userID uint, category models.Category, probe []float32, k int) ([]recommendation.Neighbor, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.Clothing{}).
		Where("owner_id = ? AND category = ?", userID, category).
		Order("id").Limit(k).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	neighbors := make([]recommendation.Neighbor, len(ids))
	for i, id := range ids {
		neighbors[i] = recommendation.Neighbor{ID: id, Similarity: 0.8}
	}
	return neighbors, nil
}

func newTestEngine(db *gorm.DB) *recommendation.Engine {
	search := config.DefaultSearch()
	retriever := recommendation.NewRetriever(
		&test.EmbedderMock{Vector: []float32{1, 0}},
		wardrobeStore{db: db},
		recommendation.NewGormItemSource(db),
		search.CandidatesPerCategory,
		nil,
	)
	return recommendation.NewEngine(
		recommendation.NewResolver(config.DefaultResolver(), nil, nil, nil, nil),
		retriever,
		recommendation.NewScorer(config.DefaultScoring()),
		recommendation.NewComposer(search),
		nil,
	)
}

func setupTestServer(t *testing.T) (*echo.Echo, *gorm.DB, *test.EnqueuerMock) {
	db := dbhelper.SetupTestDB(t)
	enqueuer := &test.EnqueuerMock{}
	e := SetupServer(
		config.ServerConfig{JWTSecret: test.JWTSecret()},
		db,
		&test.AWSProviderMock{},
		test.URLCacheMock{},
		newTestEngine(db),
		recommendation.NewLedger(db, nil),
		enqueuer,
		logging.Nop(),
	)
	return e, db, enqueuer
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), target), rec.Body.String())
}

// fakeOutfit creates one item per mandatory slot.
func fakeOutfit(db *gorm.DB, ownerID uint) (top, bottom, shoes *models.Clothing) {
	top = test.FakeClothing(db, ownerID, models.CategoryTop, "Oxford Shirt")
	bottom = test.FakeClothing(db, ownerID, models.CategoryBottom, "Chinos")
	shoes = test.FakeClothing(db, ownerID, models.CategoryShoes, "Loafers")
	return top, bottom, shoes
}
