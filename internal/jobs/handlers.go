package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"plexmaint/internal/arrutil"
	"plexmaint/internal/deletion"
	"plexmaint/internal/queue"
	"plexmaint/internal/scan"
	"plexmaint/internal/store"
)

// Scan progress starts at 10 and the orchestrator's 0-100 fills the
// remaining 90; the first 10 covers fetch/setup before items flow.
func scanProgress(report func(int)) scan.ProgressFunc {
	return func(pct int) {
		report(10 + pct*90/100)
	}
}

// ScanHandler runs maintenance-queue jobs. Rule-level failures are
// recorded on the scan row and swallowed; only transient failures are
// returned so the queue retries them.
func ScanHandler(st *store.Store, orch *scan.Orchestrator) queue.HandlerFunc {
	return func(ctx context.Context, job *queue.Job, progress func(int)) (any, error) {
		var payload queue.ScanPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return nil, fmt.Errorf("decoding scan payload: %w", err)
		}

		// Cron fires don't stack: while a scan for the rule is still
		// RUNNING, a scheduled trigger is a no-op. Manual triggers
		// always run.
		if !payload.ManualTrigger {
			running, err := st.HasRunningScan(ctx, payload.RuleID)
			if err != nil {
				return nil, err
			}
			if running {
				log.Printf("scan job %s: rule %d already has a running scan, skipping", job.ID, payload.RuleID)
				return map[string]any{"skipped": true}, nil
			}
		}

		progress(10)
		result := orch.Scan(ctx, payload.RuleID, scanProgress(progress))

		if result.Err != nil {
			if scan.Retriable(result.Err) {
				if arrutil.IsUnavailable(result.Err) {
					log.Printf("scan job %s: rule %d: upstream unavailable, retrying: %v", job.ID, payload.RuleID, result.Err)
				}
				return nil, result.Err
			}
			if arrutil.IsAuth(result.Err) {
				log.Printf("scan job %s: rule %d: upstream rejected credentials, check integration settings: %v", job.ID, payload.RuleID, result.Err)
			} else {
				log.Printf("scan job %s: rule %d failed permanently: %v", job.ID, payload.RuleID, result.Err)
			}
			return map[string]any{
				"scanId": result.ScanID,
				"error":  result.Err.Error(),
			}, nil
		}

		progress(100)
		return map[string]any{
			"scanId":          result.ScanID,
			"itemsScanned":    result.ItemsScanned,
			"candidatesFound": result.ItemsFlagged,
		}, nil
	}
}

// DeletionHandler runs deletion-queue jobs. Per-candidate failures are
// part of the result, not an error; only a failure to load the batch
// bubbles up for retry.
func DeletionHandler(exec *deletion.Executor) queue.HandlerFunc {
	return func(ctx context.Context, job *queue.Job, progress func(int)) (any, error) {
		var payload queue.DeletionPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return nil, fmt.Errorf("decoding deletion payload: %w", err)
		}

		result, err := exec.Execute(ctx, payload.CandidateIDs, payload.DeleteFiles, payload.UserID, progress)
		if err != nil {
			return nil, err
		}

		progress(100)
		return map[string]any{
			"deletedCount": result.Success,
			"failedCount":  result.Failed,
			"errors":       result.Errors,
		}, nil
	}
}
