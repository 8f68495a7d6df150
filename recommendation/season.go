package recommendation

import "closetapi/models"

// SeasonFor buckets a forecast into a season. Unknown weather counts as Spring.
func SeasonFor(w *Weather) models.Season {
	if w == nil || w.Temp == nil {
		return models.SeasonSpring
	}
	temp := *w.Temp
	switch {
	case temp < 5:
		return models.SeasonWinter
	case temp < 15:
		return models.SeasonAutumn
	case temp < 23:
		return models.SeasonSpring
	default:
		return models.SeasonSummer
	}
}
