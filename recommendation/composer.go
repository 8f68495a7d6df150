package recommendation

import (
	"closetapi/config"
	"closetapi/models"
)

// Composer pairs the i-th ranked item of every slot into outfit i.
type Composer struct {
	keepPerCategory int
	maxOutfits      int
}

func NewComposer(cfg config.SearchConfig) *Composer {
	return &Composer{keepPerCategory: cfg.KeepPerCategory, maxOutfits: cfg.MaxOutfits}
}

func (c *Composer) Compose(ranked CategorySearchResults, sc SearchContext, probeText string) OutfitSearchResults {
	kept := CategorySearchResults{}
	counts := make(map[string]int, len(models.OutfitCategories))
	for _, category := range models.OutfitCategories {
		list := *ranked.For(category)
		// counted before the cut so the meta shows what retrieval found
		counts[category.Key()] = len(list)
		if len(list) > c.keepPerCategory {
			list = list[:c.keepPerCategory]
		}
		if list == nil {
			list = []ScoredClothing{}
		}
		*kept.For(category) = list
	}

	return OutfitSearchResults{
		Outfits:    c.pair(kept),
		Candidates: kept,
		Meta: SearchMeta{
			Context:         sc,
			TotalCandidates: counts,
			AppliedSeason:   sc.Season,
			ProbeText:       probeText,
		},
	}
}

func (c *Composer) pair(kept CategorySearchResults) []Outfit {
	n := min(len(kept.Top), len(kept.Bottom), len(kept.Shoes), c.maxOutfits)
	outfits := make([]Outfit, 0, max(n, 0))
	for i := 0; i < n; i++ {
		outfit := Outfit{
			TopID:    kept.Top[i].Item.ID,
			BottomID: kept.Bottom[i].Item.ID,
			ShoesID:  kept.Shoes[i].Item.ID,
			Top:      kept.Top[i],
			Bottom:   kept.Bottom[i],
			Shoes:    kept.Shoes[i],
		}
		members := []float64{outfit.Top.Score, outfit.Bottom.Score, outfit.Shoes.Score}
		if i < len(kept.Outer) {
			outer := kept.Outer[i]
			id := outer.Item.ID
			outfit.OuterID = &id
			outfit.Outer = &outer
			members = append(members, outer.Score)
		}
		sum := 0.0
		for _, score := range members {
			sum += score
		}
		outfit.Score = sum / float64(len(members))
		outfits = append(outfits, outfit)
	}
	return outfits
}
