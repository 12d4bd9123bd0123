package progress

import (
	"encoding/json"
	"fmt"
)

// ResultPrefix marks the frame that carries the comparison result
const ResultPrefix = "COMPARISON_RESULT:"

// Frame renders an event as the text payload of one stream frame
func Frame(e Event) (string, error) {
	switch e.Type {
	case EventResult:
		films := e.Films
		if films == nil {
			films = Result(nil).Films
		}
		data, err := json.Marshal(films)
		if err != nil {
			return "", fmt.Errorf("failed to encode comparison result: %w", err)
		}
		return ResultPrefix + string(data), nil
	case EventError:
		return "ERROR: " + e.Message, nil
	case EventUserError:
		return fmt.Sprintf("ERROR: %s.", e.Message), nil
	case EventUserDone:
		return fmt.Sprintf("%s done scraping. %d films collected.", e.Username, e.FilmCount), nil
	case EventUserCached:
		return fmt.Sprintf("Using cached watchlist for %s. %d films.", e.Username, e.FilmCount), nil
	default:
		return "", fmt.Errorf("unknown event type %q", e.Type)
	}
}

// SSE renders an event as a complete server-sent-events frame
func SSE(e Event) (string, error) {
	payload, err := Frame(e)
	if err != nil {
		return "", err
	}
	return "data: " + payload + "\n\n", nil
}
