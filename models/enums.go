package models

import (
	"database/sql/driver"
	"fmt"

	"github.com/go-playground/validator"
)

// TPO is the time-place-occasion label of an outfit.
type TPO string

const (
	TPODate    TPO = "Date"
	TPODaily   TPO = "Daily"
	TPOCommute TPO = "Commute"
	TPOSports  TPO = "Sports"
	TPOTravel  TPO = "Travel"
	TPOWedding TPO = "Wedding"
	TPOParty   TPO = "Party"
	TPOHome    TPO = "Home"
	TPOSchool  TPO = "School"
	TPOOther   TPO = "Other"
)

var AllTPOs = []TPO{TPODate, TPODaily, TPOCommute, TPOSports, TPOTravel, TPOWedding, TPOParty, TPOHome, TPOSchool, TPOOther}

func (t TPO) Valid() bool {
	for _, v := range AllTPOs {
		if v == t {
			return true
		}
	}
	return false
}

func (t *TPO) Scan(value interface{}) error {
	s, err := scanString(value)
	*t = TPO(s)
	return err
}

func (t TPO) Value() (driver.Value, error) {
	return string(t), nil
}

type Category string

const (
	CategoryOuter  Category = "Outer"
	CategoryTop    Category = "Top"
	CategoryBottom Category = "Bottom"
	CategoryShoes  Category = "Shoes"
	CategoryOther  Category = "Other"
)

// OutfitCategories are the slots of a composed outfit, in response order.
var OutfitCategories = []Category{CategoryOuter, CategoryTop, CategoryBottom, CategoryShoes}

func (c Category) Valid() bool {
	switch c {
	case CategoryOuter, CategoryTop, CategoryBottom, CategoryShoes, CategoryOther:
		return true
	}
	return false
}

// Key is the lower-case JSON key used for per-category maps.
func (c Category) Key() string {
	switch c {
	case CategoryOuter:
		return "outer"
	case CategoryTop:
		return "top"
	case CategoryBottom:
		return "bottom"
	case CategoryShoes:
		return "shoes"
	default:
		return "other"
	}
}

func (c *Category) Scan(value interface{}) error {
	s, err := scanString(value)
	*c = Category(s)
	return err
}

func (c Category) Value() (driver.Value, error) {
	return string(c), nil
}

type StyleMood string

const (
	StyleCasual   StyleMood = "Casual"
	StyleStreet   StyleMood = "Street"
	StyleMinimal  StyleMood = "Minimal"
	StyleFormal   StyleMood = "Formal"
	StyleSporty   StyleMood = "Sporty"
	StyleVintage  StyleMood = "Vintage"
	StyleGorpcore StyleMood = "Gorpcore"
	StyleOther    StyleMood = "Other"
)

var AllStyleMoods = []StyleMood{StyleCasual, StyleStreet, StyleMinimal, StyleFormal, StyleSporty, StyleVintage, StyleGorpcore, StyleOther}

type Season string

const (
	SeasonSpring Season = "Spring"
	SeasonSummer Season = "Summer"
	SeasonAutumn Season = "Autumn"
	SeasonWinter Season = "Winter"
)

var AllSeasons = []Season{SeasonSpring, SeasonSummer, SeasonAutumn, SeasonWinter}

// Adjacent reports whether two seasons border each other on the yearly cycle.
func (s Season) Adjacent(other Season) bool {
	idx := func(x Season) int {
		for i, v := range AllSeasons {
			if v == x {
				return i
			}
		}
		return -1
	}
	a, b := idx(s), idx(other)
	if a < 0 || b < 0 || a == b {
		return false
	}
	diff := (a - b + len(AllSeasons)) % len(AllSeasons)
	return diff == 1 || diff == len(AllSeasons)-1
}

type FeedbackType string

const (
	FeedbackAccept FeedbackType = "ACCEPT"
	FeedbackReject FeedbackType = "REJECT"
)

func (f FeedbackType) Valid() bool {
	return f == FeedbackAccept || f == FeedbackReject
}

// CounterColumn is the clothing counter that feedback of this type moves.
func (f FeedbackType) CounterColumn() string {
	if f == FeedbackReject {
		return "reject_count"
	}
	return "accept_count"
}

func (f *FeedbackType) Scan(value interface{}) error {
	s, err := scanString(value)
	*f = FeedbackType(s)
	return err
}

func (f FeedbackType) Value() (driver.Value, error) {
	return string(f), nil
}

func scanString(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("unsupported enum source type %T", value)
	}
}

func ValidateTPO(fl validator.FieldLevel) bool {
	return TPO(fl.Field().String()).Valid()
}

func ValidateCategory(fl validator.FieldLevel) bool {
	return Category(fl.Field().String()).Valid()
}

func ValidateFeedbackType(fl validator.FieldLevel) bool {
	return FeedbackType(fl.Field().String()).Valid()
}

func ValidateStyleMood(fl validator.FieldLevel) bool {
	value := StyleMood(fl.Field().String())
	for _, v := range AllStyleMoods {
		if v == value {
			return true
		}
	}
	return false
}

func ValidateSeason(fl validator.FieldLevel) bool {
	value := Season(fl.Field().String())
	for _, v := range AllSeasons {
		if v == value {
			return true
		}
	}
	return false
}
