// Package catalog defines the domain types shared by the ingestion pipeline.
package catalog

import "time"

// Game is one primary catalog record as reported by the list endpoint.
// The ID is assigned upstream (the Steam id) and is stable across runs;
// it doubles as the idempotency key for re-fetches.
type Game struct {
	ID                  int64
	Name                string
	FirstReleaseDate    time.Time
	EarlyAccessExitDate *time.Time
	EarlyAccess         bool
	CopiesSold          int64
	Price               float64
	Revenue             float64
	AvgPlaytime         float64
	ReviewScore         int
	PublisherClass      string

	// Reference names embedded in the list payload.
	Publishers []string
	Developers []string
}

// GameRef identifies a stored game for the enrichment paths.
type GameRef struct {
	ID   int64
	Name string
}

// Details carries the four reference-name lists returned by the detail
// source. Both the API and browser fetchers produce this same shape.
type Details struct {
	Genres    []string
	Tags      []string
	Features  []string
	Languages []string
}

// Names returns the name list for the given detail category.
func (d Details) Names(c Category) []string {
	switch c {
	case CategoryGenre:
		return d.Genres
	case CategoryTag:
		return d.Tags
	case CategoryFeature:
		return d.Features
	case CategoryLanguage:
		return d.Languages
	default:
		return nil
	}
}

// Empty reports whether the detail fetch yielded no names at all.
func (d Details) Empty() bool {
	return len(d.Genres) == 0 && len(d.Tags) == 0 && len(d.Features) == 0 && len(d.Languages) == 0
}
