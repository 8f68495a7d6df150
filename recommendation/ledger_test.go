package recommendation

import (
	"context"
	"sync"
	"testing"

	"closetapi/dbhelper"
	"closetapi/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type ledgerFixture struct {
	db       *gorm.DB
	ledger   *Ledger
	user     models.UserAccount
	outfit   models.OutfitIdentity
	stranger models.UserAccount
}

func setupLedger(t *testing.T) ledgerFixture {
	db := dbhelper.SetupTestDB(t)
	user := models.UserAccount{Name: "Test", Email: "ledger@test.com"}
	require.NoError(t, db.Create(&user).Error)
	stranger := models.UserAccount{Name: "Other", Email: "other@test.com"}
	require.NoError(t, db.Create(&stranger).Error)

	created := map[models.Category]uint{}
	for _, category := range models.OutfitCategories {
		item := models.Clothing{OwnerID: user.ID, Category: category, Colors: models.StringList{"Black"}}
		require.NoError(t, db.Create(&item).Error)
		created[category] = item.ID
	}
	outer := created[models.CategoryOuter]
	return ledgerFixture{
		db:       db,
		ledger:   NewLedger(db, nil),
		user:     user,
		stranger: stranger,
		outfit: models.OutfitIdentity{
			OuterID:  &outer,
			TopID:    created[models.CategoryTop],
			BottomID: created[models.CategoryBottom],
			ShoesID:  created[models.CategoryShoes],
		},
	}
}

type counters struct{ accept, reject int }

func (f ledgerFixture) counters(t *testing.T) map[uint]counters {
	var items []models.Clothing
	require.NoError(t, f.db.Where("id IN ?", f.outfit.ItemIDs()).Find(&items).Error)
	out := map[uint]counters{}
	for _, item := range items {
		out[item.ID] = counters{accept: item.AcceptCount, reject: item.RejectCount}
	}
	return out
}

func (f ledgerFixture) assertCounters(t *testing.T, accept, reject int) {
	t.Helper()
	for id, c := range f.counters(t) {
		assert.Equal(t, accept, c.accept, "accept_count of %d", id)
		assert.Equal(t, reject, c.reject, "reject_count of %d", id)
	}
}

func (f ledgerFixture) feedbackCount(t *testing.T) int64 {
	var n int64
	require.NoError(t, f.db.Model(&models.OutfitFeedback{}).Count(&n).Error)
	return n
}

func newKey() *string {
	key := uuid.New().String()
	return &key
}

func TestRecordCreatesAndIncrements(t *testing.T) {
	f := setupLedger(t)
	result, err := f.ledger.Record(context.Background(), f.user.ID, f.outfit, models.FeedbackAccept, newKey())
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, result.Status)
	assert.Equal(t, f.outfit.Hash(), result.Feedback.OutfitHash)
	assert.NotZero(t, result.Feedback.ID)
	f.assertCounters(t, 1, 0)
}

func TestRecordSameKeyTwiceIncrementsOnce(t *testing.T) {
	f := setupLedger(t)
	key := newKey()

	first, err := f.ledger.Record(context.Background(), f.user.ID, f.outfit, models.FeedbackAccept, key)
	require.NoError(t, err)
	second, err := f.ledger.Record(context.Background(), f.user.ID, f.outfit, models.FeedbackAccept, key)
	require.NoError(t, err)

	assert.Equal(t, StatusCreated, first.Status)
	assert.Equal(t, StatusDuplicate, second.Status)
	assert.Equal(t, first.Feedback.ID, second.Feedback.ID)
	assert.Equal(t, int64(1), f.feedbackCount(t))
	f.assertCounters(t, 1, 0)
}

func TestRecordConcurrentRetriesIncrementOnce(t *testing.T) {
	f := setupLedger(t)
	key := newKey()

	var wg sync.WaitGroup
	statuses := make([]FeedbackStatus, 8)
	for i := range statuses {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := f.ledger.Record(context.Background(), f.user.ID, f.outfit, models.FeedbackReject, key)
			assert.NoError(t, err)
			statuses[i] = result.Status
		}(i)
	}
	wg.Wait()

	created := 0
	for _, status := range statuses {
		if status == StatusCreated {
			created++
		}
	}
	assert.Equal(t, 1, created)
	f.assertCounters(t, 0, 1)
}

func TestRecordWithoutKeyDedupsByOutfit(t *testing.T) {
	f := setupLedger(t)
	_, err := f.ledger.Record(context.Background(), f.user.ID, f.outfit, models.FeedbackAccept, nil)
	require.NoError(t, err)
	result, err := f.ledger.Record(context.Background(), f.user.ID, f.outfit, models.FeedbackAccept, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusDuplicate, result.Status)
	f.assertCounters(t, 1, 0)
}

func TestRecordChangeOfMindMovesCounter(t *testing.T) {
	f := setupLedger(t)
	_, err := f.ledger.Record(context.Background(), f.user.ID, f.outfit, models.FeedbackAccept, newKey())
	require.NoError(t, err)

	result, err := f.ledger.Record(context.Background(), f.user.ID, f.outfit, models.FeedbackReject, newKey())
	require.NoError(t, err)
	assert.Equal(t, StatusUpdated, result.Status)
	assert.Equal(t, models.FeedbackReject, result.Feedback.FeedbackType)
	assert.Equal(t, int64(1), f.feedbackCount(t))
	f.assertCounters(t, 0, 1)
}

func TestRecordKeyReusedForOtherOutfit(t *testing.T) {
	f := setupLedger(t)
	key := newKey()
	_, err := f.ledger.Record(context.Background(), f.user.ID, f.outfit, models.FeedbackAccept, key)
	require.NoError(t, err)

	withoutOuter := f.outfit
	withoutOuter.OuterID = nil
	_, err = f.ledger.Record(context.Background(), f.user.ID, withoutOuter, models.FeedbackAccept, key)
	assert.ErrorIs(t, err, ErrIdempotencyPayloadMismatch)
	assert.Equal(t, "IDEMPOTENCY_PAYLOAD_MISMATCH", ErrorCode(err))
	assert.Equal(t, int64(1), f.feedbackCount(t))
}

func TestConflictWinnerByKey(t *testing.T) {
	f := setupLedger(t)
	key := newKey()
	first, err := f.ledger.Record(context.Background(), f.user.ID, f.outfit, models.FeedbackAccept, key)
	require.NoError(t, err)

	// the state a losing insert sees after the unique key index rejected it
	withoutOuter := f.outfit
	withoutOuter.OuterID = nil
	_, err = conflictWinner(f.db, f.user.ID, withoutOuter.Hash(), key)
	assert.ErrorIs(t, err, ErrIdempotencyPayloadMismatch)

	winner, err := conflictWinner(f.db, f.user.ID, f.outfit.Hash(), key)
	require.NoError(t, err)
	assert.Equal(t, first.Feedback.ID, winner.ID)

	winner, err = conflictWinner(f.db, f.user.ID, f.outfit.Hash(), newKey())
	require.NoError(t, err)
	assert.Equal(t, first.Feedback.ID, winner.ID)
}

func TestRecordConcurrentKeyReuseForOtherOutfits(t *testing.T) {
	f := setupLedger(t)
	key := newKey()
	withoutOuter := f.outfit
	withoutOuter.OuterID = nil

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, outfit := range []models.OutfitIdentity{f.outfit, withoutOuter} {
		wg.Add(1)
		go func(i int, outfit models.OutfitIdentity) {
			defer wg.Done()
			_, errs[i] = f.ledger.Record(context.Background(), f.user.ID, outfit, models.FeedbackAccept, key)
		}(i, outfit)
	}
	wg.Wait()

	mismatches := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, ErrIdempotencyPayloadMismatch)
			mismatches++
		}
	}
	assert.Equal(t, 1, mismatches)
	assert.Equal(t, int64(1), f.feedbackCount(t))
}

func TestRecordRejectsSlotMismatch(t *testing.T) {
	f := setupLedger(t)

	swapped := f.outfit
	swapped.TopID, swapped.BottomID = f.outfit.BottomID, f.outfit.TopID
	_, err := f.ledger.Record(context.Background(), f.user.ID, swapped, models.FeedbackAccept, nil)
	assert.ErrorIs(t, err, ErrOutfitSlotMismatch)
	assert.Equal(t, "OUTFIT_SLOT_MISMATCH", ErrorCode(err))

	sameItemTwice := f.outfit
	sameItemTwice.BottomID = f.outfit.TopID
	_, err = f.ledger.Record(context.Background(), f.user.ID, sameItemTwice, models.FeedbackAccept, nil)
	assert.ErrorIs(t, err, ErrOutfitSlotMismatch)

	assert.Equal(t, int64(0), f.feedbackCount(t))
	f.assertCounters(t, 0, 0)

	_, err = f.ledger.Record(context.Background(), f.user.ID, f.outfit, models.FeedbackAccept, nil)
	require.NoError(t, err)
}

func TestRecordRejectsMalformedKeyBeforeWriting(t *testing.T) {
	f := setupLedger(t)
	for _, raw := range []string{"not-a-uuid", "6ba7b810-9dad-11d1-80b4-00c04fd430c8"} {
		key := raw
		_, err := f.ledger.Record(context.Background(), f.user.ID, f.outfit, models.FeedbackAccept, &key)
		assert.ErrorIs(t, err, ErrInvalidIdempotencyKey, raw)
		assert.Equal(t, "INVALID_IDEMPOTENCY_KEY", ErrorCode(err))
	}
	assert.Equal(t, int64(0), f.feedbackCount(t))
	f.assertCounters(t, 0, 0)
}

func TestRecordValidation(t *testing.T) {
	f := setupLedger(t)

	incomplete := f.outfit
	incomplete.ShoesID = 0
	_, err := f.ledger.Record(context.Background(), f.user.ID, incomplete, models.FeedbackAccept, nil)
	assert.ErrorIs(t, err, ErrMissingOutfitItem)

	_, err = f.ledger.Record(context.Background(), f.user.ID, f.outfit, models.FeedbackType("LOVE"), nil)
	assert.ErrorIs(t, err, ErrInvalidFeedbackType)

	_, err = f.ledger.Record(context.Background(), f.stranger.ID, f.outfit, models.FeedbackAccept, nil)
	assert.ErrorIs(t, err, ErrOutfitItemNotFound)

	assert.Equal(t, int64(0), f.feedbackCount(t))
	f.assertCounters(t, 0, 0)
}

func TestCancelWithoutRecordIsNotFound(t *testing.T) {
	f := setupLedger(t)
	result, err := f.ledger.Cancel(context.Background(), f.user.ID, f.outfit)
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, result.Status)
	assert.Nil(t, result.Feedback)
	f.assertCounters(t, 0, 0)
}

func TestCancelUndoesCounter(t *testing.T) {
	f := setupLedger(t)
	_, err := f.ledger.Record(context.Background(), f.user.ID, f.outfit, models.FeedbackReject, nil)
	require.NoError(t, err)

	result, err := f.ledger.Cancel(context.Background(), f.user.ID, f.outfit)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, result.Status)
	f.assertCounters(t, 0, 0)

	again, err := f.ledger.Cancel(context.Background(), f.user.ID, f.outfit)
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, again.Status)
	f.assertCounters(t, 0, 0)
}

func TestCancelNeverGoesNegative(t *testing.T) {
	f := setupLedger(t)
	_, err := f.ledger.Record(context.Background(), f.user.ID, f.outfit, models.FeedbackAccept, nil)
	require.NoError(t, err)
	// counters reset behind the ledger's back
	require.NoError(t, f.db.Model(&models.Clothing{}).Where("id IN ?", f.outfit.ItemIDs()).UpdateColumn("accept_count", 0).Error)

	_, err = f.ledger.Cancel(context.Background(), f.user.ID, f.outfit)
	require.NoError(t, err)
	f.assertCounters(t, 0, 0)
}

func TestCancelSkipsAbsentOuter(t *testing.T) {
	f := setupLedger(t)
	withoutOuter := f.outfit
	withoutOuter.OuterID = nil
	_, err := f.ledger.Record(context.Background(), f.user.ID, withoutOuter, models.FeedbackAccept, nil)
	require.NoError(t, err)

	c := f.counters(t)
	assert.Equal(t, 0, c[*f.outfit.OuterID].accept)
	assert.Equal(t, 1, c[f.outfit.TopID].accept)

	_, err = f.ledger.Cancel(context.Background(), f.user.ID, withoutOuter)
	require.NoError(t, err)
	f.assertCounters(t, 0, 0)
}

func TestHistoryNewestFirst(t *testing.T) {
	f := setupLedger(t)
	withoutOuter := f.outfit
	withoutOuter.OuterID = nil

	_, err := f.ledger.Record(context.Background(), f.user.ID, f.outfit, models.FeedbackAccept, nil)
	require.NoError(t, err)
	_, err = f.ledger.Record(context.Background(), f.user.ID, withoutOuter, models.FeedbackReject, nil)
	require.NoError(t, err)

	history, err := f.ledger.History(context.Background(), f.user.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.FeedbackReject, history[0].FeedbackType)

	limited, err := f.ledger.History(context.Background(), f.user.ID, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := f.ledger.History(context.Background(), f.stranger.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestNormalizeIdempotencyKey(t *testing.T) {
	key, err := NormalizeIdempotencyKey(nil)
	assert.NoError(t, err)
	assert.Nil(t, key)

	blank := "  "
	key, err = NormalizeIdempotencyKey(&blank)
	assert.NoError(t, err)
	assert.Nil(t, key)

	upper := "F47AC10B-58CC-4372-A567-0E02B2C3D479"
	key, err = NormalizeIdempotencyKey(&upper)
	require.NoError(t, err)
	assert.Equal(t, "f47ac10b-58cc-4372-a567-0e02b2c3d479", *key)
}
