package recommendation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"closetapi/logging"
	"closetapi/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FeedbackStatus string

const (
	StatusCreated   FeedbackStatus = "created"
	StatusUpdated   FeedbackStatus = "updated"
	StatusDuplicate FeedbackStatus = "duplicate"
	StatusCancelled FeedbackStatus = "cancelled"
	StatusNotFound  FeedbackStatus = "not_found"
)

type FeedbackResult struct {
	Status   FeedbackStatus        `json:"status"`
	Feedback models.OutfitFeedback `json:"feedback"`
}

type CancelResult struct {
	Status   FeedbackStatus         `json:"status"`
	Feedback *models.OutfitFeedback `json:"feedback,omitempty"`
}

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// Ledger owns feedback records and the accept/reject counters they move.
// Every record change and its counter effects commit in one transaction.
type Ledger struct {
	db     *gorm.DB
	logger *logging.Logger
}

func NewLedger(db *gorm.DB, logger *logging.Logger) *Ledger {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Ledger{db: db, logger: logger}
}

// NormalizeIdempotencyKey returns the canonical form of a version 4 UUID.
// Nil and blank keys mean "no key".
func NormalizeIdempotencyKey(key *string) (*string, error) {
	if key == nil || strings.TrimSpace(*key) == "" {
		return nil, nil
	}
	parsed, err := uuid.Parse(strings.TrimSpace(*key))
	if err != nil || parsed.Version() != 4 {
		return nil, ErrInvalidIdempotencyKey
	}
	canonical := parsed.String()
	return &canonical, nil
}

// CheckOutfitItems verifies that every slot holds an item of the user's
// wardrobe whose category matches the slot.
func CheckOutfitItems(db *gorm.DB, userID uint, identity models.OutfitIdentity) error {
	if !identity.Complete() {
		return ErrMissingOutfitItem
	}
	ids := identity.DistinctItemIDs()
	var items []models.Clothing
	err := db.Model(&models.Clothing{}).
		Select("id", "category").
		Where("owner_id = ? AND id IN ?", userID, ids).
		Find(&items).Error
	if err != nil {
		return fmt.Errorf("checking outfit items: %w", err)
	}
	if len(items) != len(ids) {
		return ErrOutfitItemNotFound
	}
	categories := make(map[uint]models.Category, len(items))
	for _, item := range items {
		categories[item.ID] = item.Category
	}
	if !identity.SlotsMatch(categories) {
		return ErrOutfitSlotMismatch
	}
	return nil
}

// Record stores one feedback event. Retries with the same key or the same
// type are duplicates and move no counter; a change of mind moves one.
func (l *Ledger) Record(ctx context.Context, userID uint, identity models.OutfitIdentity, feedbackType models.FeedbackType, key *string) (FeedbackResult, error) {
	if !identity.Complete() {
		return FeedbackResult{}, ErrMissingOutfitItem
	}
	if !feedbackType.Valid() {
		return FeedbackResult{}, ErrInvalidFeedbackType
	}
	key, err := NormalizeIdempotencyKey(key)
	if err != nil {
		return FeedbackResult{}, err
	}
	if err := CheckOutfitItems(l.db.WithContext(ctx), userID, identity); err != nil {
		return FeedbackResult{}, err
	}

	hash := identity.Hash()
	ids := identity.DistinctItemIDs()
	var result FeedbackResult

	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if key != nil {
			var byKey models.OutfitFeedback
			err := tx.Where("user_account_id = ? AND idempotency_key = ?", userID, *key).Take(&byKey).Error
			switch {
			case err == nil:
				if byKey.OutfitHash != hash {
					return ErrIdempotencyPayloadMismatch
				}
				result = FeedbackResult{Status: StatusDuplicate, Feedback: byKey}
				return nil
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return err
			}
		}

		var existing models.OutfitFeedback
		err := tx.Where("user_account_id = ? AND outfit_hash = ?", userID, hash).Take(&existing).Error
		if err == nil {
			if existing.FeedbackType == feedbackType {
				result = FeedbackResult{Status: StatusDuplicate, Feedback: existing}
				return nil
			}
			return l.changeMind(tx, existing, feedbackType, ids, &result)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		record := models.OutfitFeedback{
			UserAccountID:  userID,
			OuterID:        identity.OuterID,
			TopID:          identity.TopID,
			BottomID:       identity.BottomID,
			ShoesID:        identity.ShoesID,
			OutfitHash:     hash,
			FeedbackType:   feedbackType,
			IdempotencyKey: key,
		}
		created := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
		if created.Error != nil {
			return created.Error
		}
		if created.RowsAffected == 0 {
			winner, err := conflictWinner(tx, userID, hash, key)
			if err != nil {
				return err
			}
			result = FeedbackResult{Status: StatusDuplicate, Feedback: winner}
			return nil
		}
		if err := incrementCounter(tx, ids, feedbackType.CounterColumn()); err != nil {
			return err
		}
		result = FeedbackResult{Status: StatusCreated, Feedback: record}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrIdempotencyPayloadMismatch) {
			l.logger.Error("feedback record failed", "user_id", userID, "outfit_hash", hash, "error", err)
		}
		return FeedbackResult{}, err
	}
	FeedbackEvents.WithLabelValues(string(feedbackType), string(result.Status)).Inc()
	return result, nil
}

// conflictWinner loads the record a concurrent request inserted first. The
// conflict is on the key when one was sent, else on the outfit hash; a key
// that won with another outfit is a payload mismatch.
func conflictWinner(tx *gorm.DB, userID uint, hash string, key *string) (models.OutfitFeedback, error) {
	var winner models.OutfitFeedback
	if key != nil {
		err := tx.Where("user_account_id = ? AND idempotency_key = ?", userID, *key).Take(&winner).Error
		if err == nil {
			if winner.OutfitHash != hash {
				return models.OutfitFeedback{}, ErrIdempotencyPayloadMismatch
			}
			return winner, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return models.OutfitFeedback{}, err
		}
	}
	if err := tx.Where("user_account_id = ? AND outfit_hash = ?", userID, hash).Take(&winner).Error; err != nil {
		return models.OutfitFeedback{}, err
	}
	return winner, nil
}

// changeMind flips the type only if nobody else flipped it first, so the old
// counter is decremented at most once.
func (l *Ledger) changeMind(tx *gorm.DB, existing models.OutfitFeedback, feedbackType models.FeedbackType, ids []uint, result *FeedbackResult) error {
	previous := existing.FeedbackType
	updated := tx.Model(&models.OutfitFeedback{}).
		Where("id = ? AND feedback_type = ?", existing.ID, previous).
		Update("feedback_type", feedbackType)
	if updated.Error != nil {
		return updated.Error
	}
	if updated.RowsAffected == 0 {
		var current models.OutfitFeedback
		if err := tx.First(&current, existing.ID).Error; err != nil {
			return err
		}
		*result = FeedbackResult{Status: StatusDuplicate, Feedback: current}
		return nil
	}
	if err := decrementCounter(tx, ids, previous.CounterColumn()); err != nil {
		return err
	}
	if err := incrementCounter(tx, ids, feedbackType.CounterColumn()); err != nil {
		return err
	}
	existing.FeedbackType = feedbackType
	*result = FeedbackResult{Status: StatusUpdated, Feedback: existing}
	return nil
}

// Cancel removes the record of the outfit and undoes its counter. A missing
// record is a not_found result, not an error.
func (l *Ledger) Cancel(ctx context.Context, userID uint, identity models.OutfitIdentity) (CancelResult, error) {
	if !identity.Complete() {
		return CancelResult{}, ErrMissingOutfitItem
	}
	hash := identity.Hash()
	result := CancelResult{Status: StatusNotFound}

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.OutfitFeedback
		err := tx.Where("user_account_id = ? AND outfit_hash = ?", userID, hash).Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		deleted := tx.Where("id = ?", existing.ID).Delete(&models.OutfitFeedback{})
		if deleted.Error != nil {
			return deleted.Error
		}
		if deleted.RowsAffected == 0 {
			return nil
		}
		if err := decrementCounter(tx, existing.Identity().DistinctItemIDs(), existing.FeedbackType.CounterColumn()); err != nil {
			return err
		}
		result = CancelResult{Status: StatusCancelled, Feedback: &existing}
		return nil
	})
	if err != nil {
		l.logger.Error("feedback cancel failed", "user_id", userID, "outfit_hash", hash, "error", err)
		return CancelResult{}, err
	}
	feedbackType := "NONE"
	if result.Feedback != nil {
		feedbackType = string(result.Feedback.FeedbackType)
	}
	FeedbackEvents.WithLabelValues(feedbackType, string(result.Status)).Inc()
	return result, nil
}

// History lists the user's feedback, newest first.
func (l *Ledger) History(ctx context.Context, userID uint, limit int) ([]models.OutfitFeedback, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	records := []models.OutfitFeedback{}
	err := l.db.WithContext(ctx).
		Where("user_account_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

func incrementCounter(tx *gorm.DB, ids []uint, column string) error {
	return tx.Model(&models.Clothing{}).
		Where("id IN ?", ids).
		UpdateColumn(column, gorm.Expr(column+" + 1")).Error
}

func decrementCounter(tx *gorm.DB, ids []uint, column string) error {
	return tx.Model(&models.Clothing{}).
		Where("id IN ?", ids).
		UpdateColumn(column, gorm.Expr("CASE WHEN "+column+" > 0 THEN "+column+" - 1 ELSE 0 END")).Error
}
