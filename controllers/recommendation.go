package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"closetapi/models"
	"closetapi/recommendation"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
)

type SearchIn struct {
	Keyword       *string `json:"keyword" validate:"omitempty,max=50"`
	Query         *string `json:"query" validate:"omitempty,max=300"`
	CalendarEvent *string `json:"calendar_event" validate:"omitempty,max=200"`
	// YYYY-MM-DD in the configured zone
	Date    *string `json:"date" validate:"omitempty,max=10"`
	IsToday *bool   `json:"is_today"`
	Style   *string `json:"style" validate:"omitempty,max=50"`
}

type SearchOut struct {
	Context recommendation.SearchContext `json:"context"`
	recommendation.OutfitSearchResults
}

type FeedbackIn struct {
	OuterID        *uint   `json:"outer_id"`
	TopID          uint    `json:"top_id"`
	BottomID       uint    `json:"bottom_id"`
	ShoesID        uint    `json:"shoes_id"`
	FeedbackType   string  `json:"feedback_type"`
	IdempotencyKey *string `json:"idempotency_key"`
}

func (in FeedbackIn) Identity() models.OutfitIdentity {
	return models.OutfitIdentity{OuterID: in.OuterID, TopID: in.TopID, BottomID: in.BottomID, ShoesID: in.ShoesID}
}

type FeedbackOut struct {
	Success  bool                          `json:"success"`
	Status   recommendation.FeedbackStatus `json:"status"`
	Feedback models.OutfitFeedback         `json:"feedback"`
}

type CancelOut struct {
	Success  bool                          `json:"success"`
	Status   recommendation.FeedbackStatus `json:"status"`
	Message  string                        `json:"message"`
	Feedback *models.OutfitFeedback        `json:"feedback,omitempty"`
}

type RecommendationController struct {
	Recommender Recommender
	Ledger      *recommendation.Ledger
}

func (controller *RecommendationController) RecommendationRoutes(g *echo.Group) {
	g.POST("/search", controller.Search)
	g.POST("/feedback", controller.RecordFeedback)
	g.POST("/feedback/cancel", controller.CancelFeedback)
	g.GET("/feedback", controller.FeedbackHistory)
}

func optional(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func (controller *RecommendationController) Search(c echo.Context) error {
	var req SearchIn
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

	searchRequest := recommendation.SearchRequest{
		Keyword:       optional(req.Keyword),
		Query:         optional(req.Query),
		CalendarEvent: optional(req.CalendarEvent),
		Style:         optional(req.Style),
		Tomorrow:      req.IsToday != nil && !*req.IsToday,
	}
	if date := optional(req.Date); date != "" {
		parsed, err := time.Parse(time.DateOnly, date)
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, "INVALID_DATE", "date must be formatted as YYYY-MM-DD")
		}
		searchRequest.Date = &parsed
	}

	results := controller.Recommender.Search(c.Request().Context(), user, searchRequest)
	return c.JSON(http.StatusOK, SearchOut{Context: results.Meta.Context, OutfitSearchResults: results})
}

func ledgerErrorStatus(err error) int {
	switch {
	case errors.Is(err, recommendation.ErrOutfitItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, recommendation.ErrIdempotencyPayloadMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, recommendation.ErrInvalidIdempotencyKey),
		errors.Is(err, recommendation.ErrMissingOutfitItem),
		errors.Is(err, recommendation.ErrOutfitSlotMismatch),
		errors.Is(err, recommendation.ErrInvalidFeedbackType):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func ledgerError(c echo.Context, err error) error {
	status := ledgerErrorStatus(err)
	if status == http.StatusInternalServerError {
		sentry.CaptureException(fmt.Errorf("feedback ledger: %w", err))
		return errorJSON(c, status, recommendation.ErrorCode(err), "Sorry, could not save feedback, please try again")
	}
	return errorJSON(c, status, recommendation.ErrorCode(err), err.Error())
}

func (controller *RecommendationController) RecordFeedback(c echo.Context) error {
	var req FeedbackIn
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
	}
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return errorJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
	}

	feedbackType := models.FeedbackType(strings.ToUpper(strings.TrimSpace(req.FeedbackType)))
	result, err := controller.Ledger.Record(c.Request().Context(), user.ID, req.Identity(), feedbackType, req.IdempotencyKey)
	if err != nil {
		return ledgerError(c, err)
	}
	status := http.StatusOK
	if result.Status == recommendation.StatusCreated {
		status = http.StatusCreated
	}
	return c.JSON(status, FeedbackOut{Success: true, Status: result.Status, Feedback: result.Feedback})
}

func (controller *RecommendationController) CancelFeedback(c echo.Context) error {
	var req FeedbackIn
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
	}
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return errorJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
	}

	result, err := controller.Ledger.Cancel(c.Request().Context(), user.ID, req.Identity())
	if err != nil {
		return ledgerError(c, err)
	}
	if result.Status == recommendation.StatusNotFound {
		return c.JSON(http.StatusOK, CancelOut{Success: false, Status: result.Status, Message: "Nothing to cancel for this outfit"})
	}
	return c.JSON(http.StatusOK, CancelOut{Success: true, Status: result.Status, Message: "Feedback cancelled", Feedback: result.Feedback})
}

func (controller *RecommendationController) FeedbackHistory(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return errorJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
	}
	limit := queryLimit(c, recommendation.DefaultHistoryLimit, recommendation.MaxHistoryLimit)
	records, err := controller.Ledger.History(c.Request().Context(), user.ID, limit)
	if err != nil {
		sentry.CaptureException(err)
		return errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch feedback history")
	}
	return c.JSON(http.StatusOK, echo.Map{"feedback": records})
}
