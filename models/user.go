package models

type UserAccount struct {
	JsonModel
	Name     string `json:"name"`
	Email    string `json:"email" gorm:"unique"`
	Banned   bool   `gorm:"default:false" json:"-"`
	GoogleID string `json:"-"`
	//"STARTED_AUTH", "FINISHED_AUTH"
	Status    string `json:"-"`
	AvatarURL string `json:"avatar_url"`

	// city or district name used for weather lookups, e.g. "Seoul"
	HomeLocation    *string    `json:"home_location"`
	PreferredStyles StringList `json:"preferred_styles"`
	// offline google token for calendar reads, never serialized
	CalendarRefreshToken *string `json:"-"`
}

func (u UserAccount) HasCalendar() bool {
	return u.CalendarRefreshToken != nil && *u.CalendarRefreshToken != ""
}

type ProfileUpdateIn struct {
	Name                 *string  `json:"name" validate:"omitempty,max=100"`
	HomeLocation         *string  `json:"home_location" validate:"omitempty,max=100"`
	PreferredStyles      []string `json:"preferred_styles" validate:"omitempty,max=5,dive,stylemood"`
	CalendarRefreshToken *string  `json:"calendar_refresh_token" validate:"omitempty,max=512"`
}

type UserInfoOut struct {
	Id              uint     `json:"id"`
	Name            string   `json:"name"`
	Email           string   `json:"email"`
	AvatarURL       string   `json:"avatar_url"`
	HomeLocation    *string  `json:"home_location"`
	PreferredStyles []string `json:"preferred_styles"`
	CalendarLinked  bool     `json:"calendar_linked"`
}
