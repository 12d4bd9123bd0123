package compare

import (
	"maps"
	"slices"

	"watchlist-compare/models"
)

// Intersect returns the films whose titles appear in every watchlist,
// sorted by title. The records come from the first watchlist, which acts
// as the reference for link and poster data.
func Intersect(watchlists []models.Watchlist) []models.Film {
	if len(watchlists) == 0 {
		return []models.Film{}
	}

	common := watchlists[0].Titles()
	for _, w := range watchlists[1:] {
		titles := w.Titles()
		for title := range common {
			if _, ok := titles[title]; !ok {
				delete(common, title)
			}
		}
		if len(common) == 0 {
			break
		}
	}

	ref := watchlists[0]
	films := make([]models.Film, 0, len(common))
	for _, title := range slices.Sorted(maps.Keys(common)) {
		film, _ := ref.Lookup(title)
		films = append(films, film)
	}
	return films
}
