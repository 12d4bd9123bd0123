package progress

import "watchlist-compare/models"

// EventType identifies a progress event
type EventType string

const (
	// Non-terminal, one per user
	EventUserCached EventType = "user_cached"
	EventUserDone   EventType = "user_done"
	EventUserError  EventType = "user_error"

	// Terminal, exactly one per comparison
	EventError  EventType = "error"
	EventResult EventType = "result"
)

// Event is one message on the progress stream of a comparison
type Event struct {
	Type      EventType        `json:"type"`
	Username  string           `json:"username,omitempty"`
	Kind      models.ErrorKind `json:"kind,omitempty"`
	Message   string           `json:"message,omitempty"`
	FilmCount int              `json:"film_count,omitempty"`
	Films     []models.Film    `json:"films,omitempty"`
}

// Terminal reports whether e ends the stream
func (e Event) Terminal() bool {
	return e.Type == EventError || e.Type == EventResult
}

// UserCached reports a watchlist adopted from the cache
func UserCached(username string, films int) Event {
	return Event{Type: EventUserCached, Username: username, FilmCount: films}
}

// UserDone reports a freshly scraped watchlist
func UserDone(username string, films int) Event {
	return Event{Type: EventUserDone, Username: username, FilmCount: films}
}

// UserError reports a user excluded from the comparison
func UserError(err *models.ScrapeError) Event {
	return Event{Type: EventUserError, Username: err.Username, Kind: err.Kind, Message: err.Message}
}

// Error is the terminal failure event
func Error(kind models.ErrorKind, message string) Event {
	return Event{Type: EventError, Kind: kind, Message: message}
}

// Result is the terminal success event. films is never nil so an empty
// intersection encodes as an empty list.
func Result(films []models.Film) Event {
	if films == nil {
		films = []models.Film{}
	}
	return Event{Type: EventResult, Films: films, FilmCount: len(films)}
}
