package rules

import (
	"log"
	"regexp"
	"strings"
	"time"

	"plexmaint/internal/fields"
	"plexmaint/internal/models"
)

// Day counts for relative-date units. Months and years are fixed
// approximations so evaluation stays deterministic.
const (
	daysPerMonth = 30
	daysPerYear  = 365
)

// Evaluate runs the predicate tree against one item. It is pure: "now" is
// pinned by the caller at evaluation start so a whole scan shares one
// reference time.
func Evaluate(item *models.MediaItem, c *models.Criteria, now time.Time) bool {
	if c == nil {
		return false
	}
	return evalNode(item, &c.Node, now)
}

func evalNode(item *models.MediaItem, n *models.Node, now time.Time) bool {
	switch n.Type {
	case models.NodeGroup:
		return evalGroup(item, n, now)
	case models.NodeCondition:
		return evalCondition(item, n, now)
	default:
		log.Printf("rules: unknown node type %q, evaluating to false", n.Type)
		return false
	}
}

// evalGroup evaluates children left to right with short-circuiting.
// An empty AND is true; an empty OR is false.
func evalGroup(item *models.MediaItem, n *models.Node, now time.Time) bool {
	switch n.Operator {
	case models.GroupOr:
		for i := range n.Conditions {
			if evalNode(item, &n.Conditions[i], now) {
				return true
			}
		}
		return false
	default: // AND, including malformed operators on otherwise valid groups
		for i := range n.Conditions {
			if !evalNode(item, &n.Conditions[i], now) {
				return false
			}
		}
		return true
	}
}

func evalCondition(item *models.MediaItem, n *models.Node, now time.Time) bool {
	field := fields.Lookup(n.Field)
	if field == nil {
		log.Printf("rules: condition references unknown field %q, evaluating to false", n.Field)
		return false
	}
	if !field.AllowsOperator(n.Operator) {
		log.Printf("rules: operator %q not allowed for field %q, evaluating to false", n.Operator, n.Field)
		return false
	}

	value, present := resolveField(item, n.Field, now)

	// Null checks apply before any type dispatch.
	switch n.Operator {
	case fields.OpIsNull:
		return !present
	case fields.OpIsNotNull:
		return present
	}

	if !present {
		// Never-watched items are infinitely old: an absent lastWatchedAt
		// matches olderThan. Every other operator fails safe.
		return n.Field == "lastWatchedAt" && n.Operator == fields.OpOlderThan
	}

	switch field.Type {
	case fields.TypeString:
		return evalString(asString(value), n)
	case fields.TypeEnum:
		return evalEnum(asString(value), n)
	case fields.TypeNumber:
		f, ok := asFloat(value)
		return ok && evalNumber(f, n)
	case fields.TypeDate:
		t, ok := value.(time.Time)
		return ok && evalDate(t, n, now)
	case fields.TypeBoolean:
		b, ok := value.(bool)
		return ok && evalBool(b, n)
	case fields.TypeArray:
		return evalArray(asStringSlice(value), n)
	}
	return false
}

// resolveField reads an item attribute by key. Dotted keys walk
// sub-records; the three virtual fields are computed here. The second
// return is false when the value is absent on this item.
func resolveField(item *models.MediaItem, key string, now time.Time) (any, bool) {
	switch key {
	case "title":
		return item.Title, item.Title != ""
	case "year":
		if item.Year == nil {
			return nil, false
		}
		return float64(*item.Year), true
	case "addedAt":
		if item.AddedAt == nil {
			return nil, false
		}
		return *item.AddedAt, true
	case "lastWatchedAt":
		if item.LastWatchedAt == nil {
			return nil, false
		}
		return *item.LastWatchedAt, true
	case "playCount":
		return float64(item.PlayCount), true
	case "neverWatched":
		return item.PlayCount == 0, true
	case "daysSinceAdded":
		if item.AddedAt == nil {
			return nil, false
		}
		return daysBetween(*item.AddedAt, now), true
	case "daysSinceWatched":
		if item.LastWatchedAt == nil {
			return nil, false
		}
		return daysBetween(*item.LastWatchedAt, now), true
	case "fileSize":
		if item.FileSize == nil {
			return nil, false
		}
		return float64(*item.FileSize), true
	case "filePath":
		return item.FilePath, item.FilePath != ""
	case "duration":
		if item.Duration == nil {
			return nil, false
		}
		return float64(*item.Duration), true
	case "bitrate":
		if item.Bitrate == nil {
			return nil, false
		}
		return float64(*item.Bitrate), true
	case "resolution":
		return item.Resolution, item.Resolution != ""
	case "videoCodec":
		return item.VideoCodec, item.VideoCodec != ""
	case "audioCodec":
		return item.AudioCodec, item.AudioCodec != ""
	case "container":
		return item.Container, item.Container != ""
	case "rating":
		if item.Rating == nil {
			return nil, false
		}
		return *item.Rating, true
	case "audienceRating":
		if item.AudienceRating == nil {
			return nil, false
		}
		return *item.AudienceRating, true
	case "contentRating":
		return item.ContentRating, item.ContentRating != ""
	case "genres":
		return item.Genres, true
	case "labels":
		return item.Labels, true
	}

	if sub, rest, ok := strings.Cut(key, "."); ok {
		switch sub {
		case "radarr":
			if item.Radarr == nil {
				return nil, false
			}
			return resolveRadarr(item.Radarr, rest)
		case "sonarr":
			if item.Sonarr == nil {
				return nil, false
			}
			return resolveSonarr(item.Sonarr, rest)
		}
	}

	log.Printf("rules: unknown field key %q", key)
	return nil, false
}

func resolveRadarr(r *models.RadarrInfo, key string) (any, bool) {
	switch key {
	case "hasFile":
		return r.HasFile, true
	case "monitored":
		return r.Monitored, true
	case "qualityProfileId":
		return float64(r.QualityProfileID), true
	case "minimumAvailability":
		return r.MinimumAvailability, r.MinimumAvailability != ""
	}
	return nil, false
}

func resolveSonarr(s *models.SonarrInfo, key string) (any, bool) {
	switch key {
	case "monitored":
		return s.Monitored, true
	case "status":
		return s.Status, s.Status != ""
	case "episodeFileCount":
		return float64(s.EpisodeFileCount), true
	case "percentOfEpisodes":
		return s.PercentOfEpisodes, true
	}
	return nil, false
}

func daysBetween(from, to time.Time) float64 {
	return float64(int(to.Sub(from).Hours() / 24))
}

// String comparisons other than equals/notEquals/regex/in/notIn are
// case-insensitive.
func evalString(got string, n *models.Node) bool {
	switch n.Operator {
	case fields.OpEquals:
		return got == asString(n.Value)
	case fields.OpNotEquals:
		return got != asString(n.Value)
	case fields.OpContains:
		return strings.Contains(strings.ToLower(got), strings.ToLower(asString(n.Value)))
	case fields.OpNotContains:
		return !strings.Contains(strings.ToLower(got), strings.ToLower(asString(n.Value)))
	case fields.OpStartsWith:
		return strings.HasPrefix(strings.ToLower(got), strings.ToLower(asString(n.Value)))
	case fields.OpEndsWith:
		return strings.HasSuffix(strings.ToLower(got), strings.ToLower(asString(n.Value)))
	case fields.OpRegex:
		re, err := regexp.Compile("(?i)" + asString(n.Value))
		if err != nil {
			log.Printf("rules: invalid regex %q: %v", asString(n.Value), err)
			return false
		}
		return re.MatchString(got)
	case fields.OpIn:
		return containsString(asStringSlice(n.Value), got)
	case fields.OpNotIn:
		return !containsString(asStringSlice(n.Value), got)
	}
	return false
}

// Enum comparison: string operators as-is, ordinal operators by string
// ordering of the raw enum value. Digit-first ordering of values like
// "720" vs "1080" is preserved deliberately.
func evalEnum(got string, n *models.Node) bool {
	want := asString(n.Value)
	switch n.Operator {
	case fields.OpGt:
		return got > want
	case fields.OpGe:
		return got >= want
	case fields.OpLt:
		return got < want
	case fields.OpLe:
		return got <= want
	}
	return evalString(got, n)
}

func evalNumber(got float64, n *models.Node) bool {
	switch n.Operator {
	case fields.OpBetween:
		min, max, ok := asRange(n.Value)
		return ok && got >= min && got <= max
	}
	want, ok := asFloat(n.Value)
	if !ok {
		return false
	}
	switch n.Operator {
	case fields.OpEquals:
		return got == want
	case fields.OpNotEquals:
		return got != want
	case fields.OpGt:
		return got > want
	case fields.OpGe:
		return got >= want
	case fields.OpLt:
		return got < want
	case fields.OpLe:
		return got <= want
	}
	return false
}

func evalDate(got time.Time, n *models.Node, now time.Time) bool {
	switch n.Operator {
	case fields.OpBefore:
		want, ok := asTime(n.Value)
		return ok && got.Before(want)
	case fields.OpAfter:
		want, ok := asTime(n.Value)
		return ok && got.After(want)
	case fields.OpBetween:
		vals := asAnySlice(n.Value)
		if len(vals) != 2 {
			return false
		}
		start, ok1 := asTime(vals[0])
		end, ok2 := asTime(vals[1])
		return ok1 && ok2 && !got.Before(start) && !got.After(end)
	case fields.OpOlderThan:
		threshold, ok := relativeThreshold(n, now)
		return ok && got.Before(threshold)
	case fields.OpNewerThan:
		threshold, ok := relativeThreshold(n, now)
		return ok && got.After(threshold)
	}
	return false
}

// relativeThreshold computes now minus N units for olderThan/newerThan.
func relativeThreshold(n *models.Node, now time.Time) (time.Time, bool) {
	amount, ok := asFloat(n.Value)
	if !ok {
		return time.Time{}, false
	}
	var days float64
	switch n.ValueUnit {
	case "days":
		days = amount
	case "months":
		days = amount * daysPerMonth
	case "years":
		days = amount * daysPerYear
	default:
		log.Printf("rules: %s requires a valueUnit of days, months or years", n.Operator)
		return time.Time{}, false
	}
	return now.Add(-time.Duration(days * 24 * float64(time.Hour))), true
}

func evalBool(got bool, n *models.Node) bool {
	want, ok := n.Value.(bool)
	if !ok {
		return false
	}
	if n.Operator == fields.OpNotEquals {
		return got != want
	}
	return got == want
}

func evalArray(got []string, n *models.Node) bool {
	switch n.Operator {
	case fields.OpIsEmpty:
		return len(got) == 0
	case fields.OpIsNotEmpty:
		return len(got) > 0
	case fields.OpContains:
		return containsFold(got, asString(n.Value))
	case fields.OpNotContains:
		return !containsFold(got, asString(n.Value))
	case fields.OpContainsAny:
		for _, want := range asStringSlice(n.Value) {
			if containsFold(got, want) {
				return true
			}
		}
		return false
	case fields.OpContainsAll:
		want := asStringSlice(n.Value)
		if len(want) == 0 {
			return false
		}
		for _, w := range want {
			if !containsFold(got, w) {
				return false
			}
		}
		return true
	}
	return false
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func containsFold(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}
