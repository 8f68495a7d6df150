package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// EmbeddingDims must match the vector column size below.
const EmbeddingDims = 768

// Index statuses for the embedding pipeline.
const (
	IndexPending = "pending"
	IndexReady   = "ready"
	IndexFailed  = "failed"
)

type Clothing struct {
	JsonModel
	Name        string      `json:"name"`
	Description *string     `gorm:"type:text" json:"description"`
	Owner       UserAccount `json:"-"`
	OwnerID     uint        `gorm:"index:idx_clothing_owner_category" json:"-"`
	Category    Category    `gorm:"index:idx_clothing_owner_category" json:"category"`
	SubCategory string      `json:"sub_category"`
	Colors      StringList  `json:"colors"`
	StyleMoods  StringList  `json:"style_mood"`
	TPOs        StringList  `gorm:"column:tpos" json:"tpo"`
	Seasons     StringList  `json:"seasons"`
	// rain boots, shell jackets
	WaterResistant bool    `gorm:"default:false" json:"water_resistant"`
	ImageURL       *string `json:"image_url"`

	Embedding       *pgvector.Vector `gorm:"type:vector(768)" json:"-"`
	IndexStatus     string           `gorm:"default:pending" json:"index_status"`
	IndexRetryTimes int              `json:"-"`
	IndexError      *string          `json:"-"`

	// counters, only moved through atomic updates
	WearCount   int        `gorm:"not null;default:0" json:"wear_count"`
	LastWorn    *time.Time `json:"last_worn"`
	AcceptCount int        `gorm:"not null;default:0" json:"accept_count"`
	RejectCount int        `gorm:"not null;default:0" json:"reject_count"`
}

// EmbeddingText is the document embedded for semantic retrieval.
func (c Clothing) EmbeddingText() string {
	text := string(c.Category)
	if c.SubCategory != "" {
		text += " " + c.SubCategory
	}
	if c.Name != "" {
		text += ". " + c.Name
	}
	appendList := func(label string, values StringList) {
		if len(values) == 0 {
			return
		}
		text += ". " + label + ": "
		for i, v := range values {
			if i > 0 {
				text += ", "
			}
			text += v
		}
	}
	appendList("Colors", c.Colors)
	appendList("Style", c.StyleMoods)
	appendList("Occasions", c.TPOs)
	appendList("Seasons", c.Seasons)
	if c.WaterResistant {
		text += ". Water resistant"
	}
	if c.Description != nil && *c.Description != "" {
		text += ". " + *c.Description
	}
	return text
}
