package controllers

import (
	"net/http"
	"strings"

	"closetapi/models"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type ProfileController struct {
}

func userInfo(user models.UserAccount) models.UserInfoOut {
	return models.UserInfoOut{
		Id:              user.ID,
		Name:            user.Name,
		Email:           user.Email,
		AvatarURL:       user.AvatarURL,
		HomeLocation:    user.HomeLocation,
		PreferredStyles: nonNil(user.PreferredStyles),
		CalendarLinked:  user.HasCalendar(),
	}
}

func (controller *ProfileController) ProfileRoutes(g *echo.Group) {
	g.GET("/me", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		return c.JSON(http.StatusOK, userInfo(user))
	})

	g.PATCH("", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)

		var req models.ProfileUpdateIn
		if err := c.Bind(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		}
		if err := c.Validate(req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		}

		updates := map[string]interface{}{}
		if req.Name != nil {
			updates["name"] = strings.TrimSpace(*req.Name)
		}
		if req.HomeLocation != nil {
			// an empty location unsets it
			if location := strings.TrimSpace(*req.HomeLocation); location != "" {
				updates["home_location"] = location
			} else {
				updates["home_location"] = nil
			}
		}
		if req.PreferredStyles != nil {
			updates["preferred_styles"] = models.StringList(req.PreferredStyles)
		}
		if req.CalendarRefreshToken != nil {
			if token := strings.TrimSpace(*req.CalendarRefreshToken); token != "" {
				updates["calendar_refresh_token"] = token
			} else {
				updates["calendar_refresh_token"] = nil
			}
		}
		if len(updates) > 0 {
			if err := db.Model(&models.UserAccount{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
				sentry.CaptureException(err)
				return errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update profile")
			}
		}

		var updated models.UserAccount
		if err := db.Take(&updated, user.ID).Error; err != nil {
			return errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch profile")
		}
		return c.JSON(http.StatusOK, userInfo(updated))
	})
}
