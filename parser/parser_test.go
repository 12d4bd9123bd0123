package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watchlist-compare/models"
)

const testBase = "https://letterboxd.com"

func lazyPoster(name, link, img string) string {
	return `<div class="react-component" data-component-class="LazyPoster" data-item-name="` + name +
		`" data-item-link="` + link + `">` + img + `</div>`
}

func TestParser_Extract(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected []models.Film
	}{
		{
			name: "lazy poster with relative link and data-src",
			html: lazyPoster("Dune", "/film/dune/",
				`<img data-src="//a.ltrbxd.com/dune.jpg?v=abc123" src="/empty.png">`),
			expected: []models.Film{{
				Title:  "Dune",
				Link:   "https://letterboxd.com/film/dune/",
				Poster: "https://a.ltrbxd.com/dune.jpg",
			}},
		},
		{
			name: "src used when data-src missing",
			html: lazyPoster("Parasite", "https://letterboxd.com/film/parasite/",
				`<img src="https://a.ltrbxd.com/parasite.jpg">`),
			expected: []models.Film{{
				Title:  "Parasite",
				Link:   "https://letterboxd.com/film/parasite/",
				Poster: "https://a.ltrbxd.com/parasite.jpg",
			}},
		},
		{
			name: "poster is optional and title is trimmed",
			html: lazyPoster("  Amélie ", "/film/amelie/", ""),
			expected: []models.Film{{
				Title: "Amélie",
				Link:  "https://letterboxd.com/film/amelie/",
			}},
		},
		{
			name: "records without title or link are dropped",
			html: lazyPoster("", "/film/x/", "") +
				lazyPoster("No Link", "", "") +
				lazyPoster("Heat", "/film/heat/", ""),
			expected: []models.Film{{
				Title: "Heat",
				Link:  "https://letterboxd.com/film/heat/",
			}},
		},
		{
			name: "legacy poster-container markup",
			html: `<ul>
				<li class="poster-container" data-film-name="Alien" data-target-link="/film/alien/">
					<img src="//a.ltrbxd.com/alien.jpg?v=1" alt="Alien">
				</li>
				<li class="poster-container">
					<div class="film-poster" data-film-link="/film/aliens/"><img alt="Aliens"></div>
				</li>
			</ul>`,
			expected: []models.Film{
				{Title: "Alien", Link: "https://letterboxd.com/film/alien/", Poster: "https://a.ltrbxd.com/alien.jpg"},
				{Title: "Aliens", Link: "https://letterboxd.com/film/aliens/"},
			},
		},
		{
			name:     "empty page",
			html:     `<html><body><p>This watchlist is empty.</p></body></html>`,
			expected: nil,
		},
	}

	p := NewParser(testBase + "/")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			films, err := p.Extract(tt.html)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, films)
		})
	}
}

func TestParser_LazyPosterPreferredOverLegacy(t *testing.T) {
	html := lazyPoster("Dune", "/film/dune/", "") +
		`<li class="poster-container" data-film-name="Other" data-target-link="/film/other/"></li>`

	films, err := NewParser(testBase).Extract(html)
	require.NoError(t, err)
	require.Len(t, films, 1)
	assert.Equal(t, "Dune", films[0].Title)
}

func TestParser_KeepsPageOrderAndDuplicates(t *testing.T) {
	html := lazyPoster("B", "/film/b/", "") + lazyPoster("A", "/film/a/", "") + lazyPoster("B", "/film/b-2/", "")

	films, err := NewParser(testBase).Extract(html)
	require.NoError(t, err)
	require.Len(t, films, 3)
	assert.Equal(t, []string{"B", "A", "B"}, []string{films[0].Title, films[1].Title, films[2].Title})
}
