package recommendation

import (
	"strings"

	"closetapi/languageutil"
	"closetapi/models"
)

// tpoKeywordTable is the complete keyword -> TPO dictionary for explicit
// occasion choices. Keys are matched after languageutil.Normalize. Every TPO
// name maps to itself; anything not listed is "no opinion".
var tpoKeywordTable = []struct {
	keyword string
	tpo     models.TPO
}{
	{"date", models.TPODate},
	{"date night", models.TPODate},
	{"데이트", models.TPODate},
	{"소개팅", models.TPODate},

	{"daily", models.TPODaily},
	{"everyday", models.TPODaily},
	{"casual day", models.TPODaily},
	{"데일리", models.TPODaily},
	{"일상", models.TPODaily},

	{"commute", models.TPOCommute},
	{"work", models.TPOCommute},
	{"office", models.TPOCommute},
	{"interview", models.TPOCommute},
	{"출근", models.TPOCommute},
	{"회사", models.TPOCommute},
	{"면접", models.TPOCommute},

	{"sports", models.TPOSports},
	{"workout", models.TPOSports},
	{"gym", models.TPOSports},
	{"운동", models.TPOSports},
	{"헬스", models.TPOSports},
	{"스포츠", models.TPOSports},

	{"travel", models.TPOTravel},
	{"trip", models.TPOTravel},
	{"vacation", models.TPOTravel},
	{"여행", models.TPOTravel},

	{"wedding", models.TPOWedding},
	{"wedding guest", models.TPOWedding},
	{"결혼식", models.TPOWedding},
	{"하객", models.TPOWedding},

	{"party", models.TPOParty},
	{"파티", models.TPOParty},
	{"모임", models.TPOParty},

	{"home", models.TPOHome},
	{"집", models.TPOHome},
	{"홈웨어", models.TPOHome},

	{"school", models.TPOSchool},
	{"class", models.TPOSchool},
	{"학교", models.TPOSchool},
	{"등교", models.TPOSchool},

	{"other", models.TPOOther},
	{"기타", models.TPOOther},
}

// styleKeywordTable maps style hints (English and Korean) onto style moods.
var styleKeywordTable = []struct {
	keyword string
	mood    models.StyleMood
}{
	{"casual", models.StyleCasual},
	{"캐주얼", models.StyleCasual},
	{"street", models.StyleStreet},
	{"hip", models.StyleStreet},
	{"스트릿", models.StyleStreet},
	{"힙", models.StyleStreet},
	{"minimal", models.StyleMinimal},
	{"modern", models.StyleMinimal},
	{"미니멀", models.StyleMinimal},
	{"모던", models.StyleMinimal},
	{"formal", models.StyleFormal},
	{"classic", models.StyleFormal},
	{"클래식", models.StyleFormal},
	{"포멀", models.StyleFormal},
	{"sporty", models.StyleSporty},
	{"스포티", models.StyleSporty},
	{"vintage", models.StyleVintage},
	{"빈티지", models.StyleVintage},
	{"gorpcore", models.StyleGorpcore},
	{"고프코어", models.StyleGorpcore},
}

var (
	tpoByKeyword   = map[string]models.TPO{}
	styleByKeyword = map[string]models.StyleMood{}
)

func init() {
	for _, entry := range tpoKeywordTable {
		tpoByKeyword[languageutil.Normalize(entry.keyword)] = entry.tpo
	}
	for _, entry := range styleKeywordTable {
		styleByKeyword[languageutil.Normalize(entry.keyword)] = entry.mood
	}
	for _, mood := range models.AllStyleMoods {
		styleByKeyword[languageutil.Normalize(string(mood))] = mood
	}
}

// LookupTPO maps an explicit occasion keyword. ok is false for unmapped keywords.
func LookupTPO(keyword string) (models.TPO, bool) {
	tpo, ok := tpoByKeyword[languageutil.Normalize(keyword)]
	return tpo, ok
}

// ParseTPOLabel validates a label produced by an external collaborator
// against the fixed TPO set, case-insensitively.
func ParseTPOLabel(label string) (models.TPO, bool) {
	normalized := languageutil.Normalize(label)
	if normalized == "" {
		return "", false
	}
	for _, tpo := range models.AllTPOs {
		if languageutil.Normalize(string(tpo)) == normalized {
			return tpo, true
		}
	}
	return "", false
}

// LookupStyles resolves a style hint to moods. The whole hint is tried
// first, then each word; results keep first-seen order without duplicates.
func LookupStyles(hint string) []models.StyleMood {
	normalized := languageutil.Normalize(hint)
	if normalized == "" {
		return nil
	}
	if mood, ok := styleByKeyword[normalized]; ok {
		return []models.StyleMood{mood}
	}
	var moods []models.StyleMood
	seen := map[models.StyleMood]bool{}
	words := strings.FieldsFunc(normalized, func(r rune) bool {
		return r == ',' || r == ' ' || r == '/'
	})
	for _, word := range words {
		if mood, ok := styleByKeyword[word]; ok && !seen[mood] {
			seen[mood] = true
			moods = append(moods, mood)
		}
	}
	return moods
}
