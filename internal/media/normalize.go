package media

import (
	"strconv"
	"time"

	"plexmaint/internal/models"
	"plexmaint/internal/plex"
)

// Normalization keeps absent upstream values absent: empty attributes map
// to nil pointers or empty strings, never to zero values.

func epochToTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil || secs <= 0 {
		return nil
	}
	t := time.Unix(secs, 0).UTC()
	return &t
}

func atoiPtr(s string) *int {
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

func atofPtr(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

func int64Ptr(v int64) *int64 {
	return &v
}

func tagList(tags []plex.TagAttr) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t.Tag != "" {
			out = append(out, t.Tag)
		}
	}
	return out
}

// baseItem normalizes the Plex-side attributes shared by movies and shows.
func baseItem(it plex.Item, mt models.MediaType, libraryID string) models.MediaItem {
	item := models.MediaItem{
		PlexRatingKey:  it.RatingKey,
		Title:          it.Title,
		MediaType:      mt,
		LibraryID:      libraryID,
		Year:           atoiPtr(it.Year),
		AddedAt:        epochToTime(it.AddedAt),
		LastWatchedAt:  epochToTime(it.LastViewedAt),
		Poster:         it.Thumb,
		Rating:         atofPtr(it.Rating),
		AudienceRating: atofPtr(it.AudienceRating),
		ContentRating:  it.ContentRating,
		Genres:         tagList(it.Genres),
		Labels:         tagList(it.Labels),
	}
	if pc := atoiPtr(it.ViewCount); pc != nil {
		item.PlayCount = *pc
	}

	if len(it.Media) > 0 {
		m := it.Media[0]
		if ms := atoiPtr(m.Duration); ms != nil {
			secs := *ms / 1000
			item.Duration = &secs
		}
		item.Bitrate = atoiPtr(m.Bitrate)
		item.Resolution = m.VideoResolution
		item.VideoCodec = m.VideoCodec
		item.AudioCodec = m.AudioCodec
		item.Container = m.Container
		if len(m.Parts) > 0 {
			item.FilePath = m.Parts[0].File
			if size, err := strconv.ParseInt(m.Parts[0].Size, 10, 64); err == nil && size > 0 {
				item.FileSize = &size
			}
		}
	}

	return item
}
