package parser

import (
	"fmt"
	"strings"

	"watchlist-compare/models"

	"github.com/PuerkitoBio/goquery"
)

// FilmExtractor turns one watchlist page into film records.
// An empty result means the page has no items.
type FilmExtractor interface {
	Extract(htmlContent string) ([]models.Film, error)
}

const (
	lazyPosterSelector      = `div.react-component[data-component-class="LazyPoster"]`
	posterContainerSelector = `li.poster-container`
)

// Parser extracts film data from watchlist HTML
type Parser struct {
	baseURL string
}

// NewParser creates a new Parser instance. Relative film links are resolved
// against baseURL.
func NewParser(baseURL string) *Parser {
	return &Parser{baseURL: strings.TrimRight(baseURL, "/")}
}

// Extract implements FilmExtractor
func (p *Parser) Extract(htmlContent string) ([]models.Film, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var films []models.Film

	// Current site markup: react LazyPoster components
	doc.Find(lazyPosterSelector).Each(func(i int, s *goquery.Selection) {
		film := p.extractLazyPoster(s)
		if film != nil {
			films = append(films, *film)
		}
	})

	// If nothing matched, try the older list-item markup
	if len(films) == 0 {
		doc.Find(posterContainerSelector).Each(func(i int, s *goquery.Selection) {
			film := p.extractPosterContainer(s)
			if film != nil {
				films = append(films, *film)
			}
		})
	}

	return films, nil
}

func (p *Parser) extractLazyPoster(s *goquery.Selection) *models.Film {
	title := s.AttrOr("data-item-name", "")
	link := s.AttrOr("data-item-link", "")
	return p.buildFilm(title, link, s.Find("img").First())
}

// extractPosterContainer handles <li class="poster-container"> items. The
// film data sits either on the li itself or on an inner div.film-poster.
func (p *Parser) extractPosterContainer(s *goquery.Selection) *models.Film {
	inner := s.Find("div.film-poster").First()
	img := s.Find("img").First()

	title := firstAttr([]*goquery.Selection{s, inner}, "data-film-name", "data-item-name")
	if strings.TrimSpace(title) == "" {
		title = img.AttrOr("alt", "")
	}

	link := firstAttr([]*goquery.Selection{s, inner}, "data-target-link", "data-film-link", "data-item-link")
	if link == "" {
		link = s.Find("a[href*='/film/']").First().AttrOr("href", "")
	}

	return p.buildFilm(title, link, img)
}

// buildFilm normalises the raw attributes. Records without a title or link
// are dropped.
func (p *Parser) buildFilm(title, link string, img *goquery.Selection) *models.Film {
	title = strings.TrimSpace(title)
	link = p.absoluteLink(strings.TrimSpace(link))
	if title == "" || link == "" {
		return nil
	}
	return &models.Film{
		Title:  title,
		Link:   link,
		Poster: posterURL(img),
	}
}

func (p *Parser) absoluteLink(link string) string {
	if strings.HasPrefix(link, "/") && !strings.HasPrefix(link, "//") {
		return p.baseURL + link
	}
	if strings.HasPrefix(link, "//") {
		return "https:" + link
	}
	return link
}

// posterURL prefers the lazy-load source and strips the cache-busting suffix
func posterURL(img *goquery.Selection) string {
	if img == nil || img.Length() == 0 {
		return ""
	}
	poster := strings.TrimSpace(img.AttrOr("data-src", ""))
	if poster == "" {
		poster = strings.TrimSpace(img.AttrOr("src", ""))
	}
	if strings.HasPrefix(poster, "//") {
		poster = "https:" + poster
	}
	if i := strings.Index(poster, "?v="); i >= 0 {
		poster = poster[:i]
	}
	return poster
}

func firstAttr(selections []*goquery.Selection, names ...string) string {
	for _, s := range selections {
		if s == nil || s.Length() == 0 {
			continue
		}
		for _, name := range names {
			if v := strings.TrimSpace(s.AttrOr(name, "")); v != "" {
				return v
			}
		}
	}
	return ""
}
