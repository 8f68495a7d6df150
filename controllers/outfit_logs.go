package controllers

import (
	"net/http"
	"time"

	"closetapi/models"
	"closetapi/recommendation"
	"closetapi/tasks"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

const (
	defaultOutfitLogLimit = 30
	maxOutfitLogLimit     = 100
)

type OutfitLogController struct{}

func (controller *OutfitLogController) OutfitLogRoutes(g *echo.Group) {
	g.POST("", controller.LogOutfit)
	g.GET("", controller.ListOutfitLogs)
}

// LogOutfit checks ownership and slots up front and leaves the write to the worker.
func (controller *OutfitLogController) LogOutfit(c echo.Context) error {
	var req models.OutfitLogIn
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	}
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return errorJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
	}
	db := c.Get("__db").(*gorm.DB)
	enqueuer, ok := c.Get("__enqueuer").(tasks.Enqueuer)
	if !ok || enqueuer == nil {
		return errorJSON(c, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "Service is not available, please try again a bit later")
	}

	if err := recommendation.CheckOutfitItems(db.WithContext(c.Request().Context()), user.ID, req.Identity()); err != nil {
		if recommendation.IsOutfitRejection(err) {
			return errorJSON(c, ledgerErrorStatus(err), recommendation.ErrorCode(err), err.Error())
		}
		sentry.CaptureException(err)
		return errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to check outfit items")
	}

	info, err := tasks.EnqueueOutfitWorn(enqueuer, user.ID, req, time.Now())
	if err != nil {
		sentry.CaptureException(err)
		return errorJSON(c, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "Sorry, could not log the outfit, please try again")
	}
	currentLogger(c).Info("outfit worn task submitted", "user_id", user.ID, "task_id", info.ID)
	return c.JSON(http.StatusAccepted, echo.Map{"success": true, "task_id": info.ID})
}

func (controller *OutfitLogController) ListOutfitLogs(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return errorJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
	}
	db := c.Get("__db").(*gorm.DB)

	logs := []models.OutfitLog{}
	err := db.Where("user_account_id = ?", user.ID).
		Order("worn_at DESC").Order("id DESC").
		Limit(queryLimit(c, defaultOutfitLogLimit, maxOutfitLogLimit)).
		Find(&logs).Error
	if err != nil {
		sentry.CaptureException(err)
		return errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch outfit logs")
	}
	return c.JSON(http.StatusOK, echo.Map{"logs": logs})
}
