package scan

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"plexmaint/internal/arrutil"
	"plexmaint/internal/media"
	"plexmaint/internal/models"
	"plexmaint/internal/rules"
	"plexmaint/internal/store"
)

// ProgressReportInterval is how many evaluated items pass between
// progress callbacks.
const ProgressReportInterval = 10

// Rule-level failures. These are recorded on the scan row (when one
// exists) and must never be retried by the job layer.
var (
	ErrRuleNotFound = errors.New("rule not found")
	ErrRuleDisabled = errors.New("rule is disabled")
	ErrRuleInvalid  = errors.New("rule is invalid")
	ErrCancelled    = errors.New("cancelled")
)

// Retriable reports whether a scan failure is worth a queue retry.
// Rule-level failures, cancellations and upstream credential rejections
// are final; availability and persistence failures may be transient.
func Retriable(err error) bool {
	if err == nil {
		return false
	}
	if arrutil.IsAuth(err) {
		return false
	}
	return !errors.Is(err, ErrRuleNotFound) &&
		!errors.Is(err, ErrRuleDisabled) &&
		!errors.Is(err, ErrRuleInvalid) &&
		!errors.Is(err, ErrCancelled)
}

// ProgressFunc receives a percent in [0,100]. Calls are monotonic
// non-decreasing and must not block.
type ProgressFunc func(percent int)

// Result is the structured outcome of a scan. Scan never panics or
// returns an error across this boundary; failures land in Err with
// Status FAILED.
type Result struct {
	ScanID       int64
	Status       models.ScanStatus
	ItemsScanned int
	ItemsFlagged int
	Err          error
}

type Orchestrator struct {
	store   *store.Store
	sources media.SourceResolver
}

func New(s *store.Store, sources media.SourceResolver) *Orchestrator {
	return &Orchestrator{store: s, sources: sources}
}

// Scan runs one rule against its libraries and records candidates.
// The scan row is created RUNNING and transitions exactly once.
func (o *Orchestrator) Scan(ctx context.Context, ruleID int64, onProgress ProgressFunc) Result {
	rule, err := o.store.GetMaintenanceRule(ctx, ruleID)
	if errors.Is(err, models.ErrNotFound) {
		return Result{Status: models.ScanFailed, Err: fmt.Errorf("%w: maintenance rule %d", ErrRuleNotFound, ruleID)}
	}
	if err != nil {
		return Result{Status: models.ScanFailed, Err: err}
	}
	if !rule.Enabled {
		return Result{Status: models.ScanFailed, Err: fmt.Errorf("%w: rule %q (id %d)", ErrRuleDisabled, rule.Name, rule.ID)}
	}

	scanID, err := o.store.CreateScan(ctx, rule.ID)
	if err != nil {
		return Result{Status: models.ScanFailed, Err: fmt.Errorf("creating scan: %w", err)}
	}

	result := o.run(ctx, scanID, rule, onProgress)
	result.ScanID = scanID

	if result.Err != nil {
		if ferr := o.store.FinishScan(ctx, scanID, models.ScanFailed, result.ItemsScanned, result.ItemsFlagged, result.Err.Error()); ferr != nil {
			log.Printf("scan %d: recording failure: %v", scanID, ferr)
		}
		result.Status = models.ScanFailed
		return result
	}

	if err := o.store.FinishScan(ctx, scanID, models.ScanCompleted, result.ItemsScanned, result.ItemsFlagged, ""); err != nil {
		result.Status = models.ScanFailed
		result.Err = fmt.Errorf("finalizing scan: %w", err)
		return result
	}
	if err := o.store.TouchRuleLastRun(ctx, rule.ID, time.Now().UTC()); err != nil {
		log.Printf("scan %d: updating rule last run: %v", scanID, err)
	}
	result.Status = models.ScanCompleted
	return result
}

func (o *Orchestrator) run(ctx context.Context, scanID int64, rule *models.MaintenanceRule, onProgress ProgressFunc) Result {
	var result Result

	criteria, err := models.ParseCriteria(rule.Criteria)
	if err != nil {
		result.Err = fmt.Errorf("%w: rule %q (id %d): %v", ErrRuleInvalid, rule.Name, rule.ID, err)
		return result
	}
	if len(criteria.LibraryIDs) == 0 {
		result.Err = fmt.Errorf("%w: rule %q (id %d) has no libraries selected", ErrRuleInvalid, rule.Name, rule.ID)
		return result
	}
	if !rule.MediaType.Valid() {
		result.Err = fmt.Errorf("%w: rule %q (id %d) has unsupported media type %q", ErrRuleInvalid, rule.Name, rule.ID, rule.MediaType)
		return result
	}

	source, err := o.sources.Source(ctx, rule.MediaType)
	if err != nil {
		result.Err = err
		return result
	}

	// Stop on the first library failure; a partial scan would
	// under-report candidates silently.
	var items []models.MediaItem
	for _, libID := range criteria.LibraryIDs {
		fetched, err := source.FetchItems(ctx, media.LibraryRef{ID: libID})
		if err != nil {
			result.Err = fmt.Errorf("fetching library %s: %w", libID, err)
			return result
		}
		items = append(items, fetched...)
	}

	now := time.Now().UTC()
	total := len(items)
	var flagged []models.CandidateInit

	for i := range items {
		if ctx.Err() != nil {
			result.Err = ErrCancelled
			return result
		}

		if rules.Evaluate(&items[i], criteria, now) {
			flagged = append(flagged, candidateInit(&items[i], rule.Name, source.Name()))
		}
		result.ItemsScanned++

		if onProgress != nil && result.ItemsScanned%ProgressReportInterval == 0 {
			onProgress(result.ItemsScanned * 100 / total)
		}
	}

	if err := o.store.BatchInsertCandidates(ctx, scanID, flagged); err != nil {
		result.Err = fmt.Errorf("saving candidates: %w", err)
		return result
	}
	result.ItemsFlagged = len(flagged)

	if onProgress != nil {
		onProgress(100)
	}
	return result
}

// candidateInit builds the insert row for a flagged item. Items without a
// Plex rating key get a synthetic one so candidates stay addressable.
func candidateInit(item *models.MediaItem, ruleName, sourceName string) models.CandidateInit {
	init := models.CandidateInit{
		MediaType:     item.MediaType,
		PlexRatingKey: item.PlexRatingKey,
		TMDBID:        item.TMDBID,
		TVDBID:        item.TVDBID,
		Title:         item.Title,
		Year:          item.Year,
		Poster:        item.Poster,
		FilePath:      item.FilePath,
		FileSize:      item.FileSize,
		PlayCount:     item.PlayCount,
		LastWatchedAt: item.LastWatchedAt,
		AddedAt:       item.AddedAt,
		MatchedRules:  []string{ruleName},
	}
	if item.Radarr != nil {
		id := item.Radarr.ID
		init.RadarrID = &id
	}
	if item.Sonarr != nil {
		id := item.Sonarr.ID
		init.SonarrID = &id
	}

	if init.PlexRatingKey == "" {
		if extID := item.ExternalID(); extID != 0 {
			init.PlexRatingKey = fmt.Sprintf("%s_%d", sourceName, extID)
		} else {
			suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
			init.PlexRatingKey = fmt.Sprintf("unknown_%d_%s", time.Now().UnixMilli(), suffix)
		}
	}
	return init
}
