package models

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"
)

// OutfitIdentity names one combination of wardrobe items. Outer is optional.
type OutfitIdentity struct {
	OuterID  *uint `json:"outer_id,omitempty"`
	TopID    uint  `json:"top_id"`
	BottomID uint  `json:"bottom_id"`
	ShoesID  uint  `json:"shoes_id"`
}

// ItemIDs returns the present item ids, outer first when set.
func (o OutfitIdentity) ItemIDs() []uint {
	ids := make([]uint, 0, 4)
	if o.OuterID != nil && *o.OuterID != 0 {
		ids = append(ids, *o.OuterID)
	}
	return append(ids, o.TopID, o.BottomID, o.ShoesID)
}

// DistinctItemIDs is ItemIDs without zeros and repeats.
func (o OutfitIdentity) DistinctItemIDs() []uint {
	return DistinctIDs(o.ItemIDs())
}

// SlotsMatch reports whether every filled slot holds an item of the slot's
// category. categories maps item id to its category.
func (o OutfitIdentity) SlotsMatch(categories map[uint]Category) bool {
	if o.OuterID != nil && *o.OuterID != 0 && categories[*o.OuterID] != CategoryOuter {
		return false
	}
	return categories[o.TopID] == CategoryTop &&
		categories[o.BottomID] == CategoryBottom &&
		categories[o.ShoesID] == CategoryShoes
}

// DistinctIDs drops zeros and repeats, keeping first-seen order.
func DistinctIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Complete reports whether all mandatory slots are filled.
func (o OutfitIdentity) Complete() bool {
	return o.TopID != 0 && o.BottomID != 0 && o.ShoesID != 0
}

// Hash is stable for the same set of items regardless of request order:
// sha256 over the sorted ids joined by ":", first 16 hex chars.
func (o OutfitIdentity) Hash() string {
	ids := o.ItemIDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, ":")))
	return hex.EncodeToString(sum[:])[:16]
}

type OutfitFeedback struct {
	JsonModel
	UserAccountID uint         `gorm:"not null;uniqueIndex:idx_feedback_user_outfit;uniqueIndex:idx_feedback_user_key" json:"-"`
	OuterID       *uint        `json:"outer_id"`
	TopID         uint         `gorm:"not null" json:"top_id"`
	BottomID      uint         `gorm:"not null" json:"bottom_id"`
	ShoesID       uint         `gorm:"not null" json:"shoes_id"`
	OutfitHash    string       `gorm:"not null;size:16;uniqueIndex:idx_feedback_user_outfit" json:"outfit_hash"`
	FeedbackType  FeedbackType `gorm:"not null;size:16" json:"feedback_type"`
	// nullable, NULLs never collide on the unique index
	IdempotencyKey *string `gorm:"size:36;uniqueIndex:idx_feedback_user_key" json:"idempotency_key,omitempty"`
}

func (f OutfitFeedback) Identity() OutfitIdentity {
	return OutfitIdentity{OuterID: f.OuterID, TopID: f.TopID, BottomID: f.BottomID, ShoesID: f.ShoesID}
}

type OutfitLog struct {
	JsonModel
	UserAccountID    uint      `gorm:"index" json:"-"`
	OuterID          *uint     `json:"outer_id"`
	TopID            uint      `json:"top_id"`
	BottomID         uint      `json:"bottom_id"`
	ShoesID          uint      `json:"shoes_id"`
	TPO              TPO       `gorm:"size:16" json:"tpo"`
	WornAt           time.Time `gorm:"index" json:"worn_at"`
	Location         *string   `json:"location"`
	WeatherTemp      *float64  `json:"weather_temp"`
	WeatherCondition *string   `json:"weather_condition"`
	Note             *string   `gorm:"type:text" json:"note"`
	DedupKey         *string   `gorm:"size:64;uniqueIndex" json:"-"`
}
