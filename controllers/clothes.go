package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"closetapi/models"
	"closetapi/services"
	"closetapi/tasks"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type ClothingResponse struct {
	ID             uint     `json:"id"`
	Name           string   `json:"name"`
	Description    *string  `json:"description"`
	Category       string   `json:"category"`
	SubCategory    string   `json:"sub_category"`
	Colors         []string `json:"colors"`
	StyleMoods     []string `json:"style_mood"`
	TPOs           []string `json:"tpo"`
	Seasons        []string `json:"seasons"`
	WaterResistant bool     `json:"water_resistant"`
	IndexStatus    string   `json:"index_status"`
	WearCount      int      `json:"wear_count"`
	LastWorn       *string  `json:"last_worn"`
	Uri            *string  `json:"uri,omitempty"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
}

type ClothingCreatedResponse struct {
	ClothingResponse ClothingResponse `json:"clothes"`
	FileUploadUrl    string           `json:"file_upload_url"`
}

type ClothesListResponse struct {
	Outer  []ClothingResponse `json:"outer"`
	Top    []ClothingResponse `json:"top"`
	Bottom []ClothingResponse `json:"bottom"`
	Shoes  []ClothingResponse `json:"shoes"`
	Other  []ClothingResponse `json:"other"`
}

type ClothesController struct {
	AWSService services.AWSServiceProvider
	URLCache   services.URLCacheServiceProvider
}

func (controller *ClothesController) ClothingRoutes(g *echo.Group) {
	g.POST("/create", controller.CreateClothing)
	g.GET("/list", controller.ListClothes)
	g.PATCH("/:id", controller.UpdateClothing)
}

func toClothingResponse(item models.Clothing, uri *string) ClothingResponse {
	response := ClothingResponse{
		ID:             item.ID,
		Name:           item.Name,
		Description:    item.Description,
		Category:       string(item.Category),
		SubCategory:    item.SubCategory,
		Colors:         nonNil(item.Colors),
		StyleMoods:     nonNil(item.StyleMoods),
		TPOs:           nonNil(item.TPOs),
		Seasons:        nonNil(item.Seasons),
		WaterResistant: item.WaterResistant,
		IndexStatus:    item.IndexStatus,
		WearCount:      item.WearCount,
		Uri:            uri,
		CreatedAt:      item.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:      item.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
	if item.LastWorn != nil {
		response.LastWorn = StrPointer(item.LastWorn.Format("2006-01-02"))
	}
	return response
}

func nonNil(values models.StringList) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func (controller *ClothesController) CreateClothing(c echo.Context) error {
	var req models.ClothingCreateIn
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
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Database connection error")
	}
	enqueuer, ok := c.Get("__enqueuer").(tasks.Enqueuer)
	if !ok || enqueuer == nil {
		return errorJSON(c, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "Service is not available, please try again a bit later")
	}
	logger := currentLogger(c)

	objectKey, err := services.ClothingObjectKey(user.ID, *req.FileName)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "UNSUPPORTED_IMAGE", err.Error())
	}
	bucketName := services.GetEnv("R2_BUCKET_NAME", "")
	uploadUrl, err := controller.AWSService.PresignLink(c.Request().Context(), bucketName, objectKey)
	if err != nil {
		logger.Error("unable to presign upload", "user_id", user.ID, "error", err)
		sentry.CaptureException(err)
		return errorJSON(c, http.StatusInternalServerError, "PRESIGN_FAILED", "Error while creating clothe with attachment")
	}

	clothing := models.Clothing{
		Name:        req.Name,
		Description: req.Description,
		OwnerID:     user.ID,
		ImageURL:    &objectKey,
		IndexStatus: models.IndexPending,
	}
	req.ClothingAttributesIn.Apply(&clothing)
	if err := db.Create(&clothing).Error; err != nil {
		sentry.CaptureException(err)
		return errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save clothing, please try again")
	}

	info, err := tasks.EnqueueClothingIndex(enqueuer, clothing.ID)
	if err != nil {
		// the reindex sweep picks the item up later
		logger.Warn("failed to enqueue clothing index", "clothing_id", clothing.ID, "error", err)
		sentry.CaptureException(err)
	} else {
		logger.Info("clothing index task submitted", "clothing_id", clothing.ID, "task_id", info.ID)
	}

	return c.JSON(http.StatusCreated, ClothingCreatedResponse{
		ClothingResponse: toClothingResponse(clothing, nil),
		FileUploadUrl:    uploadUrl,
	})
}

func (controller *ClothesController) UpdateClothing(c echo.Context) error {
	var clothingID uint
	if err := echo.PathParamsBinder(c).Uint("id", &clothingID).BindError(); err != nil {
		return errorJSON(c, http.StatusBadRequest, "INVALID_ID", "Invalid clothing id")
	}
	var req models.ClothingUpdateIn
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
	logger := currentLogger(c)

	var clothing models.Clothing
	err := db.Omit("embedding").Where("id = ? AND owner_id = ?", clothingID, user.ID).Take(&clothing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errorJSON(c, http.StatusNotFound, "NOT_FOUND", "Clothing not found")
	}
	if err != nil {
		sentry.CaptureException(err)
		return errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch clothing")
	}

	if req.Name != nil {
		clothing.Name = *req.Name
	}
	if req.Description != nil {
		clothing.Description = req.Description
	}
	// any change to the embedded document needs a fresh vector
	reindex := req.Attributes != nil || req.Name != nil || req.Description != nil
	if req.Attributes != nil {
		req.Attributes.Apply(&clothing)
	}
	if reindex {
		clothing.IndexStatus = models.IndexPending
		clothing.IndexRetryTimes = 0
	}

	err = db.Model(&clothing).
		Select("name", "description", "category", "sub_category", "colors", "style_moods", "tpos", "seasons", "water_resistant", "index_status", "index_retry_times").
		Updates(&clothing).Error
	if err != nil {
		sentry.CaptureException(err)
		return errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update clothing")
	}

	if reindex {
		if enqueuer, ok := c.Get("__enqueuer").(tasks.Enqueuer); ok && enqueuer != nil {
			if _, err := tasks.EnqueueClothingIndex(enqueuer, clothing.ID); err != nil {
				logger.Warn("failed to enqueue clothing reindex", "clothing_id", clothing.ID, "error", err)
				sentry.CaptureException(err)
			}
		}
	}
	return c.JSON(http.StatusOK, toClothingResponse(clothing, nil))
}

// populatePresignedClothingImages enriches clothes with presigned URLs
// concurrently. A failing cache falls back to presigning directly.
func (controller *ClothesController) populatePresignedClothingImages(ctx context.Context, clothes []models.Clothing, c echo.Context) []ClothingResponse {
	if len(clothes) == 0 {
		return []ClothingResponse{}
	}
	logger := currentLogger(c)

	var wg sync.WaitGroup
	processedResponses := make([]ClothingResponse, len(clothes))
	bucketName := services.GetEnv("R2_BUCKET_NAME", "")

	for i, clothingItem := range clothes {
		wg.Add(1)
		go func(index int, item models.Clothing) {
			defer wg.Done()

			var imageUrl string
			if item.ImageURL != nil && *item.ImageURL != "" {
				objectKey := *item.ImageURL
				url, err := controller.URLCache.GetReadURL(ctx, objectKey)
				if err == nil {
					imageUrl = url
				} else {
					logger.Warn("url cache failed, presigning directly", "object_key", objectKey, "error", err)
					sentry.WithScope(func(scope *sentry.Scope) {
						scope.SetTag("failure_type", "cache_system")
						scope.SetExtra("objectKey", objectKey)
						sentry.CaptureException(err)
					})
					fallbackUrl, fallbackErr := controller.AWSService.GetPresignedR2FileReadURL(ctx, bucketName, objectKey)
					if fallbackErr != nil {
						logger.Error("manual presign fallback failed", "object_key", objectKey, "error", fallbackErr)
						sentry.CaptureException(fallbackErr)
					} else {
						imageUrl = fallbackUrl
					}
				}
			}
			processedResponses[index] = toClothingResponse(item, &imageUrl)
		}(i, clothingItem)
	}

	wg.Wait()
	return processedResponses
}

func (controller *ClothesController) ListClothes(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return errorJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Database connection error")
	}

	var clothes []models.Clothing
	if err := db.Omit("embedding").Where("owner_id = ?", user.ID).Order("id").Find(&clothes).Error; err != nil {
		sentry.CaptureException(fmt.Errorf("[User %v] list clothes: %w", user.ID, err))
		return errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch clothes")
	}
	processedResponses := controller.populatePresignedClothingImages(c.Request().Context(), clothes, c)

	response := ClothesListResponse{
		Outer:  []ClothingResponse{},
		Top:    []ClothingResponse{},
		Bottom: []ClothingResponse{},
		Shoes:  []ClothingResponse{},
		Other:  []ClothingResponse{},
	}
	for _, resp := range processedResponses {
		switch models.Category(resp.Category) {
		case models.CategoryOuter:
			response.Outer = append(response.Outer, resp)
		case models.CategoryTop:
			response.Top = append(response.Top, resp)
		case models.CategoryBottom:
			response.Bottom = append(response.Bottom, resp)
		case models.CategoryShoes:
			response.Shoes = append(response.Shoes, resp)
		default:
			response.Other = append(response.Other, resp)
		}
	}
	return c.JSON(http.StatusOK, response)
}
