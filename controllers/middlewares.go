package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"closetapi/models"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// UserMiddleware loads the account named by the token's sub claim.
func UserMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		db := c.Get("__db").(*gorm.DB)
		userRaw := c.Get("user")
		if userRaw == nil {
			return echo.ErrUnauthorized
		}
		user := userRaw.(*jwt.Token)
		claims := user.Claims.(jwt.MapClaims)
		sub, _ := claims["sub"].(string)
		userID, err := strconv.ParseUint(sub, 10, 64)
		if err != nil || userID == 0 {
			return echo.ErrUnauthorized
		}

		var currentUser models.UserAccount
		result := db.Where("id = ?", uint(userID)).Take(&currentUser)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return echo.ErrUnauthorized
		}
		if result.Error != nil {
			currentLogger(c).Error("failed to fetch user", "user_id", userID, "error", result.Error)
			return echo.ErrInternalServerError
		}
		if currentUser.Banned {
			return echo.NewHTTPError(http.StatusLocked)
		}
		c.Set("currentUser", currentUser)
		return next(c)
	}
}
