package models

type ClothingAttributesIn struct {
	Category       string   `json:"category" validate:"required,category"`
	SubCategory    string   `json:"sub_category" validate:"omitempty,max=50"`
	Colors         []string `json:"colors" validate:"required,min=1,max=3,dive,max=30"`
	StyleMoods     []string `json:"style_mood" validate:"omitempty,max=4,dive,stylemood"`
	TPOs           []string `json:"tpo" validate:"omitempty,max=5,dive,tpo"`
	Seasons        []string `json:"seasons" validate:"omitempty,max=4,dive,season"`
	WaterResistant bool     `json:"water_resistant"`
}

type ClothingCreateIn struct {
	ClothingAttributesIn
	Name        string  `json:"name" validate:"omitempty,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	FileName    *string `json:"file_name" validate:"required,max=200"`
}

type ClothingUpdateIn struct {
	Name        *string               `json:"name" validate:"omitempty,max=100"`
	Description *string               `json:"description" validate:"omitempty,max=500"`
	Attributes  *ClothingAttributesIn `json:"attributes"`
}

func (in ClothingAttributesIn) Apply(c *Clothing) {
	c.Category = Category(in.Category)
	c.SubCategory = in.SubCategory
	c.Colors = StringList(in.Colors)
	c.StyleMoods = StringList(in.StyleMoods)
	c.TPOs = StringList(in.TPOs)
	c.Seasons = StringList(in.Seasons)
	c.WaterResistant = in.WaterResistant
}

type OutfitLogIn struct {
	OuterID          *uint    `json:"outer_id"`
	TopID            uint     `json:"top_id" validate:"required"`
	BottomID         uint     `json:"bottom_id" validate:"required"`
	ShoesID          uint     `json:"shoes_id" validate:"required"`
	TPO              string   `json:"tpo" validate:"omitempty,tpo"`
	Location         *string  `json:"location" validate:"omitempty,max=100"`
	WeatherTemp      *float64 `json:"weather_temp"`
	WeatherCondition *string  `json:"weather_condition" validate:"omitempty,max=50"`
	Note             *string  `json:"note" validate:"omitempty,max=500"`
}

func (in OutfitLogIn) Identity() OutfitIdentity {
	return OutfitIdentity{OuterID: in.OuterID, TopID: in.TopID, BottomID: in.BottomID, ShoesID: in.ShoesID}
}
