package fields

import (
	"strings"

	"github.com/google/uuid"

	"plexmaint/internal/models"
)

// FieldType drives evaluator dispatch and value-shape validation.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeDate    FieldType = "date"
	TypeBoolean FieldType = "boolean"
	TypeArray   FieldType = "array"
	TypeEnum    FieldType = "enum"
)

// Unit tags the canonical unit of a numeric field.
type Unit string

const (
	UnitBytes   Unit = "bytes"
	UnitSeconds Unit = "seconds"
	UnitMinutes Unit = "minutes"
	UnitHours   Unit = "hours"
	UnitDays    Unit = "days"
	UnitKbps    Unit = "kbps"
)

// DataSource tags where a field's value originates. Used only for UI grouping.
type DataSource string

const (
	SourcePlex     DataSource = "plex"
	SourceTautulli DataSource = "tautulli"
	SourceRadarr   DataSource = "radarr"
	SourceSonarr   DataSource = "sonarr"
)

// Comparison operators. Which operators are legal for a field is part of
// the registry entry, not the evaluator.
const (
	OpEquals      = "equals"
	OpNotEquals   = "notEquals"
	OpContains    = "contains"
	OpNotContains = "notContains"
	OpStartsWith  = "startsWith"
	OpEndsWith    = "endsWith"
	OpRegex       = "regex"
	OpIn          = "in"
	OpNotIn       = "notIn"
	OpGt          = "gt"
	OpGe          = "ge"
	OpLt          = "lt"
	OpLe          = "le"
	OpBetween     = "between"
	OpBefore      = "before"
	OpAfter       = "after"
	OpOlderThan   = "olderThan"
	OpNewerThan   = "newerThan"
	OpIsNull      = "isNull"
	OpIsNotNull   = "isNotNull"
	OpContainsAny = "containsAny"
	OpContainsAll = "containsAll"
	OpIsEmpty     = "isEmpty"
	OpIsNotEmpty  = "isNotEmpty"
)

// EnumValue is one (value, label) pair of an enum field.
type EnumValue struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Field is one immutable catalog entry.
type Field struct {
	Key              string             `json:"key"`
	Label            string             `json:"label"`
	Description      string             `json:"description,omitempty"`
	Type             FieldType          `json:"type"`
	DataSource       DataSource         `json:"data_source"`
	MediaTypes       []models.MediaType `json:"media_types"`
	AllowedOperators []string           `json:"allowed_operators"`
	EnumValues       []EnumValue        `json:"enum_values,omitempty"`
	Unit             Unit               `json:"unit,omitempty"`
}

// AppliesTo returns true if the field is usable for the given media type.
func (f *Field) AppliesTo(mt models.MediaType) bool {
	for _, m := range f.MediaTypes {
		if m == mt {
			return true
		}
	}
	return false
}

// AllowsOperator returns true if op is legal for this field.
func (f *Field) AllowsOperator(op string) bool {
	for _, o := range f.AllowedOperators {
		if o == op {
			return true
		}
	}
	return false
}

var (
	stringOps = []string{OpEquals, OpNotEquals, OpContains, OpNotContains, OpStartsWith, OpEndsWith, OpRegex, OpIn, OpNotIn}
	numberOps = []string{OpEquals, OpNotEquals, OpGt, OpGe, OpLt, OpLe, OpBetween}
	dateOps   = []string{OpBefore, OpAfter, OpBetween, OpOlderThan, OpNewerThan, OpIsNull, OpIsNotNull}
	boolOps   = []string{OpEquals, OpNotEquals}
	arrayOps  = []string{OpContains, OpNotContains, OpContainsAny, OpContainsAll, OpIsEmpty, OpIsNotEmpty}
	// Ordinal operators on enums compare the raw enum value as a string.
	enumOps = append(append([]string{}, stringOps...), OpGt, OpGe, OpLt, OpLe)

	bothTypes = []models.MediaType{models.MediaTypeMovie, models.MediaTypeTV}
	movieOnly = []models.MediaType{models.MediaTypeMovie}
	tvOnly    = []models.MediaType{models.MediaTypeTV}
)

// registry is the closed, process-global field catalog. It is read-only
// after init and safe for concurrent use.
var registry = []Field{
	{Key: "title", Label: "Title", Type: TypeString, DataSource: SourcePlex, MediaTypes: bothTypes, AllowedOperators: stringOps},
	{Key: "year", Label: "Year", Type: TypeNumber, DataSource: SourcePlex, MediaTypes: bothTypes, AllowedOperators: numberOps},
	{Key: "addedAt", Label: "Date Added", Description: "When the item was added to the library", Type: TypeDate, DataSource: SourcePlex, MediaTypes: bothTypes, AllowedOperators: dateOps},
	{Key: "lastWatchedAt", Label: "Last Watched", Description: "Most recent watch across all users", Type: TypeDate, DataSource: SourceTautulli, MediaTypes: bothTypes, AllowedOperators: dateOps},
	{Key: "playCount", Label: "Play Count", Type: TypeNumber, DataSource: SourceTautulli, MediaTypes: bothTypes, AllowedOperators: numberOps},
	{Key: "neverWatched", Label: "Never Watched", Description: "True when the play count is zero", Type: TypeBoolean, DataSource: SourceTautulli, MediaTypes: bothTypes, AllowedOperators: boolOps},
	{Key: "daysSinceAdded", Label: "Days Since Added", Type: TypeNumber, DataSource: SourcePlex, MediaTypes: bothTypes, AllowedOperators: numberOps, Unit: UnitDays},
	{Key: "daysSinceWatched", Label: "Days Since Watched", Type: TypeNumber, DataSource: SourceTautulli, MediaTypes: bothTypes, AllowedOperators: numberOps, Unit: UnitDays},
	{Key: "fileSize", Label: "File Size", Type: TypeNumber, DataSource: SourcePlex, MediaTypes: bothTypes, AllowedOperators: numberOps, Unit: UnitBytes},
	{Key: "filePath", Label: "File Path", Type: TypeString, DataSource: SourcePlex, MediaTypes: bothTypes, AllowedOperators: stringOps},
	{Key: "duration", Label: "Duration", Type: TypeNumber, DataSource: SourcePlex, MediaTypes: bothTypes, AllowedOperators: numberOps, Unit: UnitSeconds},
	{Key: "bitrate", Label: "Bitrate", Type: TypeNumber, DataSource: SourcePlex, MediaTypes: bothTypes, AllowedOperators: numberOps, Unit: UnitKbps},
	{Key: "resolution", Label: "Resolution", Type: TypeEnum, DataSource: SourcePlex, MediaTypes: bothTypes, AllowedOperators: enumOps,
		EnumValues: []EnumValue{{"sd", "SD"}, {"480", "480p"}, {"576", "576p"}, {"720", "720p"}, {"1080", "1080p"}, {"4k", "4K"}}},
	{Key: "videoCodec", Label: "Video Codec", Type: TypeString, DataSource: SourcePlex, MediaTypes: bothTypes, AllowedOperators: stringOps},
	{Key: "audioCodec", Label: "Audio Codec", Type: TypeString, DataSource: SourcePlex, MediaTypes: bothTypes, AllowedOperators: stringOps},
	{Key: "container", Label: "Container", Type: TypeString, DataSource: SourcePlex, MediaTypes: bothTypes, AllowedOperators: stringOps},
	{Key: "rating", Label: "Critic Rating", Type: TypeNumber, DataSource: SourcePlex, MediaTypes: bothTypes, AllowedOperators: numberOps},
	{Key: "audienceRating", Label: "Audience Rating", Type: TypeNumber, DataSource: SourcePlex, MediaTypes: bothTypes, AllowedOperators: numberOps},
	{Key: "contentRating", Label: "Content Rating", Type: TypeString, DataSource: SourcePlex, MediaTypes: bothTypes, AllowedOperators: stringOps},
	{Key: "genres", Label: "Genres", Type: TypeArray, DataSource: SourcePlex, MediaTypes: bothTypes, AllowedOperators: arrayOps},
	{Key: "labels", Label: "Labels", Type: TypeArray, DataSource: SourcePlex, MediaTypes: bothTypes, AllowedOperators: arrayOps},

	{Key: "radarr.hasFile", Label: "Has File (Radarr)", Type: TypeBoolean, DataSource: SourceRadarr, MediaTypes: movieOnly, AllowedOperators: boolOps},
	{Key: "radarr.monitored", Label: "Monitored (Radarr)", Type: TypeBoolean, DataSource: SourceRadarr, MediaTypes: movieOnly, AllowedOperators: boolOps},
	{Key: "radarr.qualityProfileId", Label: "Quality Profile (Radarr)", Type: TypeNumber, DataSource: SourceRadarr, MediaTypes: movieOnly, AllowedOperators: numberOps},
	{Key: "radarr.minimumAvailability", Label: "Minimum Availability (Radarr)", Type: TypeEnum, DataSource: SourceRadarr, MediaTypes: movieOnly, AllowedOperators: enumOps,
		EnumValues: []EnumValue{{"announced", "Announced"}, {"inCinemas", "In Cinemas"}, {"released", "Released"}}},

	{Key: "sonarr.monitored", Label: "Monitored (Sonarr)", Type: TypeBoolean, DataSource: SourceSonarr, MediaTypes: tvOnly, AllowedOperators: boolOps},
	{Key: "sonarr.status", Label: "Series Status (Sonarr)", Type: TypeEnum, DataSource: SourceSonarr, MediaTypes: tvOnly, AllowedOperators: enumOps,
		EnumValues: []EnumValue{{"continuing", "Continuing"}, {"ended", "Ended"}, {"upcoming", "Upcoming"}, {"deleted", "Deleted"}}},
	{Key: "sonarr.episodeFileCount", Label: "Episode File Count (Sonarr)", Type: TypeNumber, DataSource: SourceSonarr, MediaTypes: tvOnly, AllowedOperators: numberOps},
	{Key: "sonarr.percentOfEpisodes", Label: "Episodes Downloaded % (Sonarr)", Type: TypeNumber, DataSource: SourceSonarr, MediaTypes: tvOnly, AllowedOperators: numberOps},
}

var byKey = func() map[string]*Field {
	m := make(map[string]*Field, len(registry))
	for i := range registry {
		m[registry[i].Key] = &registry[i]
	}
	return m
}()

// Lookup returns the field for a key, or nil if the key is unknown.
func Lookup(key string) *Field {
	return byKey[key]
}

// ForMediaType returns all fields applicable to the given media type,
// in catalog order.
func ForMediaType(mt models.MediaType) []Field {
	var out []Field
	for _, f := range registry {
		if f.AppliesTo(mt) {
			out = append(out, f)
		}
	}
	return out
}

// ByDataSource groups the applicable fields by their origin service.
func ByDataSource(mt models.MediaType) map[DataSource][]Field {
	out := make(map[DataSource][]Field)
	for _, f := range registry {
		if f.AppliesTo(mt) {
			out[f.DataSource] = append(out[f.DataSource], f)
		}
	}
	return out
}

var operatorLabels = map[string]string{
	OpEquals:      "is",
	OpNotEquals:   "is not",
	OpContains:    "contains",
	OpNotContains: "does not contain",
	OpStartsWith:  "starts with",
	OpEndsWith:    "ends with",
	OpRegex:       "matches regex",
	OpIn:          "is one of",
	OpNotIn:       "is not one of",
	OpGt:          "is greater than",
	OpGe:          "is at least",
	OpLt:          "is less than",
	OpLe:          "is at most",
	OpBetween:     "is between",
	OpBefore:      "is before",
	OpAfter:       "is after",
	OpOlderThan:   "is older than",
	OpNewerThan:   "is newer than",
	OpIsNull:      "is not set",
	OpIsNotNull:   "is set",
	OpContainsAny: "contains any of",
	OpContainsAll: "contains all of",
	OpIsEmpty:     "is empty",
	OpIsNotEmpty:  "is not empty",
}

// FormatOperator returns the display label for an operator.
func FormatOperator(op string) string {
	if label, ok := operatorLabels[op]; ok {
		return label
	}
	return op
}

// GenerateID returns a short opaque id for new tree nodes.
func GenerateID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
