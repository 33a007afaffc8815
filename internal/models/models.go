package models

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// MediaType identifies the kind of media a rule or item applies to.
type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeTV    MediaType = "tv_series"
)

// Valid returns true if the media type is recognized.
func (mt MediaType) Valid() bool {
	return mt == MediaTypeMovie || mt == MediaTypeTV
}

// RadarrInfo holds the Radarr-side view of a movie.
type RadarrInfo struct {
	ID                  int64  `json:"id"`
	HasFile             bool   `json:"hasFile"`
	Monitored           bool   `json:"monitored"`
	QualityProfileID    int64  `json:"qualityProfileId"`
	MinimumAvailability string `json:"minimumAvailability"`
}

// SonarrInfo holds the Sonarr-side view of a series.
type SonarrInfo struct {
	ID                int64   `json:"id"`
	Monitored         bool    `json:"monitored"`
	Status            string  `json:"status"`
	EpisodeFileCount  int     `json:"episodeFileCount"`
	PercentOfEpisodes float64 `json:"percentOfEpisodes"`
}

// MediaItem is the normalized input to the rule evaluator. Optional fields
// use pointers (or empty strings) so "absent" stays distinguishable from zero.
type MediaItem struct {
	PlexRatingKey string    `json:"plexRatingKey"`
	Title         string    `json:"title"`
	PlayCount     int       `json:"playCount"`
	MediaType     MediaType `json:"mediaType"`
	LibraryID     string    `json:"libraryId,omitempty"`

	Year          *int       `json:"year,omitempty"`
	LastWatchedAt *time.Time `json:"lastWatchedAt,omitempty"`
	AddedAt       *time.Time `json:"addedAt,omitempty"`

	FileSize *int64 `json:"fileSize,omitempty"`
	FilePath string `json:"filePath,omitempty"`
	Duration *int   `json:"duration,omitempty"` // seconds
	Bitrate  *int   `json:"bitrate,omitempty"`  // kbps

	Resolution string `json:"resolution,omitempty"`
	VideoCodec string `json:"videoCodec,omitempty"`
	AudioCodec string `json:"audioCodec,omitempty"`
	Container  string `json:"container,omitempty"`

	Rating         *float64 `json:"rating,omitempty"`
	AudienceRating *float64 `json:"audienceRating,omitempty"`
	ContentRating  string   `json:"contentRating,omitempty"`

	Genres []string `json:"genres,omitempty"`
	Labels []string `json:"labels,omitempty"`

	Poster string `json:"poster,omitempty"`
	TMDBID string `json:"tmdbId,omitempty"`
	TVDBID string `json:"tvdbId,omitempty"`

	Radarr *RadarrInfo `json:"radarr,omitempty"`
	Sonarr *SonarrInfo `json:"sonarr,omitempty"`
}

// ExternalID returns the id of the catalog service that owns the item,
// or 0 if the item is not linked to one.
func (m *MediaItem) ExternalID() int64 {
	switch {
	case m.Radarr != nil:
		return m.Radarr.ID
	case m.Sonarr != nil:
		return m.Sonarr.ID
	}
	return 0
}
