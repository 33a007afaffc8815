package deletion

import (
	"context"
	"fmt"
	"log"
	"time"

	"plexmaint/internal/media"
	"plexmaint/internal/models"
	"plexmaint/internal/store"
)

// Result summarizes one executor run. Errors holds one human-readable
// entry per failed candidate, in the form "{title}: {message}".
type Result struct {
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// ProgressFunc receives a percent in [0,100].
type ProgressFunc func(percent int)

// Executor deletes approved candidates through Radarr/Sonarr and writes
// the audit log. It processes candidates one at a time; the queue layer
// enforces that no two executions run concurrently.
type Executor struct {
	store   *store.Store
	sources media.SourceResolver
}

func New(s *store.Store, sources media.SourceResolver) *Executor {
	return &Executor{store: s, sources: sources}
}

// Execute deletes the APPROVED subset of candidateIDs. Candidates in any
// other state are silently skipped. A per-candidate failure is recorded
// on the candidate and counted; it never aborts the batch. Execute only
// returns an error when the candidate set itself cannot be loaded.
func (e *Executor) Execute(ctx context.Context, candidateIDs []int64, deleteFiles bool, userID string, onProgress ProgressFunc) (*Result, error) {
	candidates, err := e.store.FindApprovedCandidates(ctx, candidateIDs)
	if err != nil {
		return nil, fmt.Errorf("loading approved candidates: %w", err)
	}

	result := &Result{}
	total := len(candidates)

	for i := range candidates {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		c := &candidates[i]

		if err := e.deleteOne(ctx, c, deleteFiles, userID); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", c.Title, err.Error()))
			if rerr := e.store.RecordDeletionError(ctx, c.ID, err.Error()); rerr != nil {
				log.Printf("deletion: recording error for candidate %d: %v", c.ID, rerr)
			}
		} else {
			result.Success++
		}

		if onProgress != nil {
			onProgress((i + 1) * 100 / total)
		}
	}

	return result, nil
}

func (e *Executor) deleteOne(ctx context.Context, c *models.MaintenanceCandidate, deleteFiles bool, userID string) error {
	source, err := e.sources.Source(ctx, c.MediaType)
	if err != nil {
		return err
	}

	var externalID int64
	switch c.MediaType {
	case models.MediaTypeMovie:
		if c.RadarrID == nil {
			return fmt.Errorf("no Radarr id on candidate")
		}
		externalID = *c.RadarrID
	case models.MediaTypeTV:
		if c.SonarrID == nil {
			return fmt.Errorf("no Sonarr id on candidate")
		}
		externalID = *c.SonarrID
	default:
		return fmt.Errorf("unsupported media type %q", c.MediaType)
	}

	if err := source.DeleteMedia(ctx, externalID, deleteFiles); err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := e.store.MarkCandidateDeleted(ctx, c.ID, now); err != nil {
		// The upstream delete went through; surface the bookkeeping
		// failure but keep the audit row.
		log.Printf("deletion: marking candidate %d deleted: %v", c.ID, err)
	}

	entry := &models.DeletionLogEntry{
		CandidateID:  c.ID,
		MediaType:    c.MediaType,
		Title:        c.Title,
		Year:         c.Year,
		FileSize:     c.FileSize,
		DeletedBy:    userID,
		DeletedFrom:  source.Name(),
		FilesDeleted: deleteFiles,
		RuleNames:    c.MatchedRules,
		CreatedAt:    now,
	}
	if err := e.store.InsertDeletionLog(ctx, entry); err != nil {
		log.Printf("deletion: audit log for candidate %d: %v", c.ID, err)
	}
	return nil
}
