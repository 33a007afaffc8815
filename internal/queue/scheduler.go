package queue

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"plexmaint/internal/models"
)

// Job names carried on the queues.
const (
	JobScan     = "scan"
	JobDeletion = "delete-candidates"
)

// ScanPayload is the maintenance-queue job body.
type ScanPayload struct {
	RuleID        int64 `json:"ruleId"`
	ManualTrigger bool  `json:"manualTrigger"`
}

// DeletionPayload is the deletion-queue job body.
type DeletionPayload struct {
	CandidateIDs []int64 `json:"candidateIds"`
	DeleteFiles  bool    `json:"deleteFiles"`
	UserID       string  `json:"userId"`
}

// RuleLister is the slice of the store the scheduler needs.
type RuleLister interface {
	ListScheduledEnabledRules(ctx context.Context) ([]models.MaintenanceRule, error)
}

// ScheduleEntry describes one active cron registration.
type ScheduleEntry struct {
	SchedulerID string    `json:"schedulerId"`
	RuleID      int64     `json:"ruleId"`
	Pattern     string    `json:"pattern"`
	Next        time.Time `json:"next"`
}

// Scheduler keeps one in-process cron entry per enabled scheduled rule
// and enqueues a scan job when an entry fires.
type Scheduler struct {
	cron  *cron.Cron
	rules RuleLister
	queue Enqueuer

	mu      sync.Mutex
	entries map[int64]cron.EntryID
	specs   map[int64]string
}

func NewScheduler(rules RuleLister, q Enqueuer) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		rules:   rules,
		queue:   q,
		entries: make(map[int64]cron.EntryID),
		specs:   make(map[int64]string),
	}
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the cron loop and waits for any in-flight fire to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Sync registers, replaces or removes the cron entry for one rule,
// depending on its enabled flag and schedule.
func (s *Scheduler) Sync(rule *models.MaintenanceRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[rule.ID]; ok {
		s.cron.Remove(id)
		delete(s.entries, rule.ID)
		delete(s.specs, rule.ID)
	}

	if !rule.Enabled || rule.Schedule == "" {
		return nil
	}

	ruleID := rule.ID
	entryID, err := s.cron.AddFunc(rule.Schedule, func() { s.fire(ruleID) })
	if err != nil {
		return fmt.Errorf("scheduling rule %d (%q): %w", rule.ID, rule.Schedule, err)
	}
	s.entries[rule.ID] = entryID
	s.specs[rule.ID] = rule.Schedule
	return nil
}

// Remove drops the cron entry for a deleted rule, if one exists.
func (s *Scheduler) Remove(ruleID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[ruleID]; ok {
		s.cron.Remove(id)
		delete(s.entries, ruleID)
		delete(s.specs, ruleID)
	}
}

func (s *Scheduler) fire(ruleID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := s.queue.Enqueue(ctx, JobScan, ScanPayload{RuleID: ruleID}); err != nil {
		log.Printf("scheduler: enqueueing scan for rule %d: %v", ruleID, err)
	}
}

// SyncAll rebuilds entries from the store. A single bad rule does not
// block the rest; failures are logged and counted.
func (s *Scheduler) SyncAll(ctx context.Context) error {
	rules, err := s.rules.ListScheduledEnabledRules(ctx)
	if err != nil {
		return fmt.Errorf("loading scheduled rules: %w", err)
	}

	synced, failed := 0, 0
	for i := range rules {
		if err := s.Sync(&rules[i]); err != nil {
			log.Printf("scheduler: %v", err)
			failed++
			continue
		}
		synced++
	}
	log.Printf("scheduler: synced %d rule schedule(s), %d failed", synced, failed)
	return nil
}

// SyncAllWithRetry runs SyncAll at startup and retries once after a
// delay if the store is not ready yet.
func (s *Scheduler) SyncAllWithRetry(ctx context.Context, retryAfter time.Duration) {
	if err := s.SyncAll(ctx); err == nil {
		return
	} else {
		log.Printf("scheduler: initial sync failed, retrying in %s: %v", retryAfter, err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(retryAfter):
		if err := s.SyncAll(ctx); err != nil {
			log.Printf("scheduler: retry sync failed: %v", err)
		}
	}
}

// ListActive returns the registered entries with their next fire time.
func (s *Scheduler) ListActive() []ScheduleEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ScheduleEntry, 0, len(s.entries))
	for ruleID, entryID := range s.entries {
		entry := s.cron.Entry(entryID)
		out = append(out, ScheduleEntry{
			SchedulerID: fmt.Sprintf("maintenance-rule-%d", ruleID),
			RuleID:      ruleID,
			Pattern:     s.specs[ruleID],
			Next:        entry.Next,
		})
	}
	return out
}
