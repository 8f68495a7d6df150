package controllers

import (
	"context"
	"net/http"
	"testing"

	"closetapi/logging"
	"closetapi/models"
	"closetapi/tasks"
	"closetapi/test"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogOutfitThroughWorker(t *testing.T) {
	e, db, enqueuer := setupTestServer(t)
	user := test.FakeUser(db, "Minji", "")
	top, bottom, shoes := fakeOutfit(db, user.ID)

	rec := serve(e, test.NewJSONAuthRequest(http.MethodPost, "/api/outfit-logs", test.UserPk(user), models.OutfitLogIn{
		TopID:    top.ID,
		BottomID: bottom.ID,
		ShoesID:  shoes.ID,
		TPO:      string(models.TPOCommute),
		Note:     test.NewRefString("rainy monday"),
	}))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var accepted struct {
		Success bool   `json:"success"`
		TaskID  string `json:"task_id"`
	}
	decode(t, rec, &accepted)
	assert.True(t, accepted.Success)
	assert.Equal(t, "task-1", accepted.TaskID)

	// nothing is written before the worker runs
	var count int64
	db.Model(&models.OutfitLog{}).Count(&count)
	assert.Equal(t, int64(0), count)

	require.Equal(t, []string{tasks.TypeOutfitWorn}, enqueuer.TypesEnqueued())
	require.NoError(t, tasks.HandleOutfitWornTask(context.Background(), enqueuer.Tasks[0], db, logging.Nop()))

	rec = serve(e, test.NewJSONAuthRequest(http.MethodGet, "/api/outfit-logs", test.UserPk(user), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Logs []models.OutfitLog `json:"logs"`
	}
	decode(t, rec, &listed)
	require.Len(t, listed.Logs, 1)
	assert.Equal(t, top.ID, listed.Logs[0].TopID)
	assert.Equal(t, shoes.ID, listed.Logs[0].ShoesID)

	var worn models.Clothing
	require.NoError(t, db.Omit("embedding").First(&worn, bottom.ID).Error)
	assert.Equal(t, 1, worn.WearCount)
	assert.NotNil(t, worn.LastWorn)
}

func TestLogOutfitForeignItem(t *testing.T) {
	e, db, enqueuer := setupTestServer(t)
	user := test.FakeUser(db, "Minji", "minji@example.com")
	other := test.FakeUser(db, "Jisoo", "jisoo@example.com")
	top, bottom, _ := fakeOutfit(db, user.ID)
	foreignShoes := test.FakeClothing(db, other.ID, models.CategoryShoes, "Boots")

	rec := serve(e, test.NewJSONAuthRequest(http.MethodPost, "/api/outfit-logs", test.UserPk(user), models.OutfitLogIn{
		TopID:    top.ID,
		BottomID: bottom.ID,
		ShoesID:  foreignShoes.ID,
	}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var response models.ErrorOut
	decode(t, rec, &response)
	assert.Equal(t, "OUTFIT_ITEM_NOT_FOUND", response.Code)
	assert.Empty(t, enqueuer.TypesEnqueued())
}

func TestLogOutfitMissingShoes(t *testing.T) {
	e, db, enqueuer := setupTestServer(t)
	user := test.FakeUser(db, "Minji", "")
	top, bottom, _ := fakeOutfit(db, user.ID)

	rec := serve(e, test.NewJSONAuthRequest(http.MethodPost, "/api/outfit-logs", test.UserPk(user), models.OutfitLogIn{
		TopID:    top.ID,
		BottomID: bottom.ID,
	}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, enqueuer.TypesEnqueued())
}

func TestLogOutfitShoesInTopSlot(t *testing.T) {
	e, db, enqueuer := setupTestServer(t)
	user := test.FakeUser(db, "Minji", "")
	_, bottom, shoes := fakeOutfit(db, user.ID)
	otherShoes := test.FakeClothing(db, user.ID, models.CategoryShoes, "Boots")

	rec := serve(e, test.NewJSONAuthRequest(http.MethodPost, "/api/outfit-logs", test.UserPk(user), models.OutfitLogIn{
		TopID:    otherShoes.ID,
		BottomID: bottom.ID,
		ShoesID:  shoes.ID,
	}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var response models.ErrorOut
	decode(t, rec, &response)
	assert.Equal(t, "OUTFIT_SLOT_MISMATCH", response.Code)
	assert.Empty(t, enqueuer.TypesEnqueued())
}
