package workflow

import (
	"context"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"accessbus/src/types"
)

const (
	DefaultAutocompleteLimit = 5
	minAutocompleteInput     = 3
)

type SearchFlow struct {
	api   SearchAPI
	deps  Deps
	limit int
}

func NewSearchFlow(api SearchAPI, deps Deps, limit int) *SearchFlow {
	if limit <= 0 {
		limit = DefaultAutocompleteLimit
	}
	return &SearchFlow{api: api, deps: deps.withDefaults(), limit: limit}
}

// Autocomplete suggests stops for text. Short input sends no request and
// failures yield no suggestions.
func (f *SearchFlow) Autocomplete(ctx context.Context, text string) []types.Stop {
	q := strings.TrimSpace(text)
	if utf8.RuneCountInString(q) < minAutocompleteInput {
		return nil
	}
	stops, err := f.api.Autocomplete(ctx, q, f.limit)
	if err != nil {
		f.deps.Logger.Printf("Error fetching suggestions for %q: %s\n", q, err.Error())
		return nil
	}
	return stops
}

func (f *SearchFlow) Timetables(ctx context.Context, originID, destinationID string) ([]types.Timetable, error) {
	out, err := f.api.Timetables(ctx, originID, destinationID)
	if err != nil {
		f.deps.Logger.Printf("Error fetching timetables: %s\n", err.Error())
		f.deps.Alerter.Alert(AlertMessage(err))
		return nil, err
	}
	return out, nil
}

// WaitMinutes is the number of whole minutes from now until the "15:04"
// arrival clock time. Times more than twelve hours behind now are read as
// tomorrow. Unparseable or past arrivals give 0.
func WaitMinutes(arrival string, now time.Time) int {
	clock, err := time.Parse("15:04", arrival)
	if err != nil {
		return 0
	}
	t := time.Date(now.Year(), now.Month(), now.Day(), clock.Hour(), clock.Minute(), 0, 0, now.Location())
	if now.Sub(t) > 12*time.Hour {
		t = t.AddDate(0, 0, 1)
	}
	mins := int(math.Ceil(t.Sub(now).Minutes()))
	if mins < 0 {
		return 0
	}
	return mins
}
