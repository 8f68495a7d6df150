package controllers

import (
	"context"
	"net/http"

	"closetapi/config"
	"closetapi/logging"
	"closetapi/models"
	"closetapi/recommendation"
	"closetapi/services"
	"closetapi/tasks"

	"github.com/go-playground/validator"
	echojwt "github.com/labstack/echo-jwt"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// NewValidator registers the wardrobe vocabulary tags.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("tpo", models.ValidateTPO)
	v.RegisterValidation("category", models.ValidateCategory)
	v.RegisterValidation("stylemood", models.ValidateStyleMood)
	v.RegisterValidation("season", models.ValidateSeason)
	v.RegisterValidation("feedbacktype", models.ValidateFeedbackType)
	return v
}

// Recommender produces outfit recommendations for one request.
type Recommender interface {
	Search(ctx context.Context, user models.UserAccount, req recommendation.SearchRequest) recommendation.OutfitSearchResults
}

func SetupServer(
	cfg config.ServerConfig,
	db *gorm.DB,
	awsService services.AWSServiceProvider,
	urlCache services.URLCacheServiceProvider,
	recommender Recommender,
	ledger *recommendation.Ledger,
	enqueuer tasks.Enqueuer,
	logger *logging.Logger,
) *echo.Echo {
	if logger == nil {
		logger = logging.Nop()
	}
	if err := awsService.InitPresignClient(context.Background()); err != nil {
		logger.Fatal("failed to initialize AWS provider: S3", "error", err)
	}

	e := echo.New()
	e.Validator = &CustomValidator{validator: NewValidator()}
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("__db", db)
			c.Set("__enqueuer", enqueuer)
			c.Set("__logger", logger)
			return next(c)
		}
	})

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	apiGroup := e.Group("/api", echojwt.JWT([]byte(cfg.JWTSecret)), UserMiddleware)

	recommendationController := RecommendationController{Recommender: recommender, Ledger: ledger}
	recommendationController.RecommendationRoutes(apiGroup.Group("/recommendations"))

	clothesController := ClothesController{AWSService: awsService, URLCache: urlCache}
	clothesController.ClothingRoutes(apiGroup.Group("/clothes"))

	outfitLogController := OutfitLogController{}
	outfitLogController.OutfitLogRoutes(apiGroup.Group("/outfit-logs"))

	profileController := ProfileController{}
	profileController.ProfileRoutes(apiGroup.Group("/profile"))

	return e
}
