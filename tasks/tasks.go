package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"closetapi/logging"
	"closetapi/models"
	"closetapi/recommendation"
	"closetapi/services"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	TypeClothingIndex   = "clothing:index"
	TypeClothingReindex = "clothing:reindex"
	TypeOutfitWorn      = "outfit:worn"

	QueueIndexing = "indexing"
	QueueDefault  = "default"
)

const (
	maxIndexRetries = 3
	// items pending longer than this are considered lost by the broker
	stalePendingAfter = 10 * time.Minute
	reindexBatchSize  = 500
)

type ClothingIndexPayload struct {
	ClothingID uint `json:"clothing_id"`
}

type OutfitWornPayload struct {
	UserID uint               `json:"user_id"`
	Log    models.OutfitLogIn `json:"log"`
	WornAt time.Time          `json:"worn_at"`
	// DedupKey is fixed when the task is built so a redelivery writes nothing.
	DedupKey string `json:"dedup_key,omitempty"`
}

// Enqueuer is the part of asynq.Client the API and the sweep need.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// DocumentEmbedder embeds item documents for the vector index.
type DocumentEmbedder interface {
	EmbedDocument(ctx context.Context, text string) ([]float32, error)
}

// NewClient initializes an asynq client for enqueuing tasks
func NewClient(brokerAddr string) *asynq.Client {
	return asynq.NewClient(asynq.RedisClientOpt{Addr: brokerAddr})
}

func NewClothingIndexTask(clothingID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(ClothingIndexPayload{ClothingID: clothingID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeClothingIndex, payload), nil
}

func NewOutfitWornTask(userID uint, in models.OutfitLogIn, wornAt time.Time) (*asynq.Task, error) {
	payload, err := json.Marshal(OutfitWornPayload{UserID: userID, Log: in, WornAt: wornAt.UTC(), DedupKey: uuid.NewString()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeOutfitWorn, payload), nil
}

func NewClothingReindexTask() *asynq.Task {
	return asynq.NewTask(TypeClothingReindex, nil)
}

// EnqueueClothingIndex schedules (re)indexing of one wardrobe item.
func EnqueueClothingIndex(enqueuer Enqueuer, clothingID uint, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	task, err := NewClothingIndexTask(clothingID)
	if err != nil {
		return nil, err
	}
	opts = append([]asynq.Option{asynq.MaxRetry(maxIndexRetries), asynq.Queue(QueueIndexing)}, opts...)
	return enqueuer.Enqueue(task, opts...)
}

// EnqueueOutfitWorn schedules the wear log write for a worn outfit.
func EnqueueOutfitWorn(enqueuer Enqueuer, userID uint, in models.OutfitLogIn, wornAt time.Time) (*asynq.TaskInfo, error) {
	task, err := NewOutfitWornTask(userID, in, wornAt)
	if err != nil {
		return nil, err
	}
	return enqueuer.Enqueue(task, asynq.MaxRetry(5), asynq.Queue(QueueDefault))
}

// HandleClothingIndexTask embeds an item's attribute document and writes the
// vector to the candidate index.
func HandleClothingIndexTask(ctx context.Context, t *asynq.Task, db *gorm.DB, embedder DocumentEmbedder, index recommendation.VectorIndex, logger *logging.Logger) error {
	var payload ClothingIndexPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("clothing index payload: %v: %w", err, asynq.SkipRetry)
	}
	logger = logger.With("clothing_id", payload.ClothingID)

	var item models.Clothing
	if err := db.WithContext(ctx).Omit("embedding").First(&item, payload.ClothingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Info("clothing deleted before indexing")
			return nil
		}
		sentry.CaptureException(fmt.Errorf("[Clothing: %v] Error on retrieving clothing for indexing: %w", payload.ClothingID, err))
		return err
	}

	text := item.EmbeddingText()
	logger.Debug("indexing clothing", "text", text)
	vector, err := embedder.EmbedDocument(ctx, text)
	if err != nil {
		saveIndexFail(db, item, "embedding failed", true, logger)
		sentry.CaptureException(fmt.Errorf("[Clothing: %v] Error on embedding: %w", payload.ClothingID, err))
		return err
	}
	if err := index.Upsert(ctx, item, vector); err != nil {
		saveIndexFail(db, item, "vector index write failed", true, logger)
		sentry.CaptureException(fmt.Errorf("[Clothing: %v] Error on vector upsert: %w", payload.ClothingID, err))
		return err
	}

	err = db.WithContext(ctx).Model(&models.Clothing{}).
		Where("id = ?", item.ID).
		Updates(map[string]interface{}{
			"index_status":      models.IndexReady,
			"index_retry_times": 0,
			"index_error":       nil,
		}).Error
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Clothing: %v] Error on saving index status: %w", payload.ClothingID, err))
		return err
	}
	logger.Info("clothing indexed", "dims", len(vector))
	return nil
}

func saveIndexFail(db *gorm.DB, item models.Clothing, msg string, shouldRetry bool, logger *logging.Logger) {
	status := models.IndexPending
	retries := item.IndexRetryTimes + 1
	if !shouldRetry || retries >= maxIndexRetries {
		status = models.IndexFailed
	}
	err := db.Model(&models.Clothing{}).
		Where("id = ?", item.ID).
		Updates(map[string]interface{}{
			"index_status":      status,
			"index_retry_times": retries,
			"index_error":       msg,
		}).Error
	if err != nil {
		logger.Error("failed to save index failure", "error", err)
		sentry.CaptureException(fmt.Errorf("[Fail Clothing %v] Error on saving clothing for failed index status", item.ID))
	}
}

// HandleOutfitWornTask stores a wear log and bumps the wear counters of every
// item in the outfit in the same transaction. last_worn never moves back, and
// a task delivered twice counts once.
func HandleOutfitWornTask(ctx context.Context, t *asynq.Task, db *gorm.DB, logger *logging.Logger) error {
	var payload OutfitWornPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("outfit worn payload: %v: %w", err, asynq.SkipRetry)
	}
	identity := payload.Log.Identity()
	if !identity.Complete() {
		return fmt.Errorf("outfit worn: %w: %w", recommendation.ErrMissingOutfitItem, asynq.SkipRetry)
	}
	ids := identity.DistinctItemIDs()
	wornAt := payload.WornAt.UTC()

	tpo := models.TPO(payload.Log.TPO)
	if !tpo.Valid() {
		tpo = models.TPODaily
	}
	log := models.OutfitLog{
		UserAccountID:    payload.UserID,
		OuterID:          identity.OuterID,
		TopID:            identity.TopID,
		BottomID:         identity.BottomID,
		ShoesID:          identity.ShoesID,
		TPO:              tpo,
		WornAt:           wornAt,
		Location:         payload.Log.Location,
		WeatherTemp:      payload.Log.WeatherTemp,
		WeatherCondition: payload.Log.WeatherCondition,
		Note:             payload.Log.Note,
	}
	if payload.DedupKey != "" {
		log.DedupKey = &payload.DedupKey
	}

	duplicate := false
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := recommendation.CheckOutfitItems(tx, payload.UserID, identity); err != nil {
			if recommendation.IsOutfitRejection(err) {
				return fmt.Errorf("outfit worn: %w: %w", err, asynq.SkipRetry)
			}
			return err
		}
		created := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&log)
		if created.Error != nil {
			return created.Error
		}
		if created.RowsAffected == 0 {
			duplicate = true
			return nil
		}
		return tx.Model(&models.Clothing{}).
			Where("id IN ? AND owner_id = ?", ids, payload.UserID).
			UpdateColumns(map[string]interface{}{
				"wear_count": gorm.Expr("wear_count + 1"),
				"last_worn":  gorm.Expr("CASE WHEN last_worn IS NULL OR last_worn < ? THEN ? ELSE last_worn END", wornAt, wornAt),
			}).Error
	})
	if err != nil {
		if !errors.Is(err, asynq.SkipRetry) {
			sentry.CaptureException(fmt.Errorf("[User: %v] Error on saving outfit log: %w", payload.UserID, err))
		}
		logger.Warn("outfit log failed", "user_id", payload.UserID, "error", err)
		return err
	}
	if duplicate {
		logger.Info("outfit log already saved", "user_id", payload.UserID, "dedup_key", payload.DedupKey)
		return nil
	}
	logger.Info("outfit log saved", "user_id", payload.UserID, "log_id", log.ID, "items", len(ids))
	return nil
}

// HandleClothingReindexTask re-enqueues items whose indexing was lost or gave
// up. Failed items get a fresh retry budget.
func HandleClothingReindexTask(ctx context.Context, t *asynq.Task, db *gorm.DB, enqueuer Enqueuer, logger *logging.Logger) error {
	var items []models.Clothing
	err := db.WithContext(ctx).
		Select("id", "index_status").
		Where("(index_status = ? AND updated_at < ?) OR index_status = ?",
			models.IndexPending, time.Now().Add(-stalePendingAfter), models.IndexFailed).
		Order("id").
		Limit(reindexBatchSize).
		Find(&items).Error
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Reindex] Error fetching clothes: %w", err))
		return err
	}

	enqueued := 0
	for _, item := range items {
		if item.IndexStatus == models.IndexFailed {
			if err := db.WithContext(ctx).Model(&models.Clothing{}).
				Where("id = ?", item.ID).
				Updates(map[string]interface{}{"index_status": models.IndexPending, "index_retry_times": 0}).Error; err != nil {
				logger.Warn("failed to reset index status", "clothing_id", item.ID, "error", err)
				continue
			}
		}
		_, err := EnqueueClothingIndex(enqueuer, item.ID, asynq.Unique(stalePendingAfter))
		if err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
			logger.Warn("failed to enqueue reindex", "clothing_id", item.ID, "error", err)
			continue
		}
		enqueued++
	}
	logger.Info("reindex sweep finished", "candidates", len(items), "enqueued", enqueued)
	return nil
}

var _ DocumentEmbedder = (*services.GeminiService)(nil)
