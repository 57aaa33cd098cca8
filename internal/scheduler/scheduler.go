// Package scheduler turns the time triggers of enabled tasks into alarm
// firings on the trigger dispatcher.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/markvault/markvault/internal/domain"
	"github.com/markvault/markvault/internal/store"
	"github.com/markvault/markvault/internal/task"
)

// Scheduler maintains one cron entry (or one-shot timer) per ENABLED task
// with a time trigger. It has no schedule state of its own: Sync rebuilds
// everything from the task store, so callers just re-Sync after any task
// mutation.
type Scheduler struct {
	store      *store.TaskStore
	dispatcher *task.Dispatcher
	logger     *slog.Logger
	now        func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID
	timers  map[string]*time.Timer
	baseCtx context.Context
}

// New creates a scheduler over the given store and dispatcher.
func New(
	taskStore *store.TaskStore,
	dispatcher *task.Dispatcher,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		store:      taskStore,
		dispatcher: dispatcher,
		logger:     logger.With("component", "scheduler"),
		now:        time.Now,
		cron:       cron.New(),
		entries:    make(map[string]cron.EntryID),
		timers:     make(map[string]*time.Timer),
		baseCtx:    context.Background(),
	}
}

// Start begins firing alarms. ctx becomes the base context alarm handling
// runs under; cancelling it stops the scheduler.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()
	s.cron.Start()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()
}

// Stop halts the cron runner and cancels pending one-shot timers. Alarms
// already in flight run to completion.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cron.Stop()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}

// Sync rebuilds the alarm set from the current task collection: every
// ENABLED task with a time trigger gets exactly one entry, everything else
// gets none. Unschedulable triggers are logged and skipped; one bad task
// must not keep the rest off the clock.
func (s *Scheduler) Sync(ctx context.Context) error {
	tasks, err := s.store.GetTasksByStatus(ctx, domain.TaskStatusEnabled)
	if err != nil {
		return fmt.Errorf("load tasks for scheduling: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, entry := range s.entries {
		s.cron.Remove(entry)
		delete(s.entries, id)
	}
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}

	for _, t := range tasks {
		trigger, ok := t.Trigger.(domain.TimeTrigger)
		if !ok {
			continue
		}
		if err := s.schedule(t.ID, trigger); err != nil {
			s.logger.Error("cannot schedule task",
				"task_id", t.ID,
				"task_name", t.Name,
				"error", err)
		}
	}

	s.logger.Info("schedule synced",
		"cron_entries", len(s.entries),
		"one_shot_timers", len(s.timers))
	return nil
}

// schedule adds one entry for the trigger. Callers must hold s.mu.
func (s *Scheduler) schedule(taskID string, trigger domain.TimeTrigger) error {
	if trigger.Schedule == domain.ScheduleOnce {
		return s.scheduleOnce(taskID, trigger)
	}

	spec, err := cronSpec(trigger)
	if err != nil {
		return err
	}
	entry, err := s.cron.AddFunc(spec, func() {
		s.fire(taskID)
	})
	if err != nil {
		return fmt.Errorf("add cron entry %q: %w", spec, err)
	}
	s.entries[taskID] = entry
	return nil
}

// scheduleOnce arms a timer for a one-shot trigger. A fire time already in
// the past is skipped entirely rather than fired late: the moment the user
// asked for is gone, and a surprise run at startup is worse than none.
func (s *Scheduler) scheduleOnce(taskID string, trigger domain.TimeTrigger) error {
	if trigger.When <= 0 {
		return fmt.Errorf("one-shot trigger has no fire time")
	}
	fireAt := time.UnixMilli(trigger.When)
	delay := fireAt.Sub(s.now())
	if delay <= 0 {
		s.logger.Warn("skipping one-shot trigger in the past",
			"task_id", taskID,
			"fire_at", fireAt)
		return nil
	}
	s.timers[taskID] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, taskID)
		s.mu.Unlock()
		s.fire(taskID)
	})
	return nil
}

func (s *Scheduler) fire(taskID string) {
	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	s.dispatcher.HandleAlarm(ctx, taskID)
}

// cronSpec maps a recurring time trigger onto a standard 5-field cron
// expression (or an @every interval).
func cronSpec(trigger domain.TimeTrigger) (string, error) {
	switch trigger.Schedule {
	case domain.ScheduleInterval:
		if trigger.IntervalMinutes <= 0 {
			return "", fmt.Errorf("interval trigger needs a positive minute count")
		}
		return fmt.Sprintf("@every %dm", trigger.IntervalMinutes), nil
	case domain.ScheduleDaily:
		return fmt.Sprintf("%d %d * * *", trigger.Minute, trigger.Hour), nil
	case domain.ScheduleWeekly:
		if trigger.DayOfWeek < 0 || trigger.DayOfWeek > 6 {
			return "", fmt.Errorf("weekly trigger has day of week %d", trigger.DayOfWeek)
		}
		return fmt.Sprintf("%d %d * * %d", trigger.Minute, trigger.Hour, trigger.DayOfWeek), nil
	case domain.ScheduleMonthly:
		if trigger.DayOfMonth < 1 || trigger.DayOfMonth > 31 {
			return "", fmt.Errorf("monthly trigger has day of month %d", trigger.DayOfMonth)
		}
		return fmt.Sprintf("%d %d %d * *", trigger.Minute, trigger.Hour, trigger.DayOfMonth), nil
	default:
		return "", fmt.Errorf("unschedulable trigger kind %q", trigger.Schedule)
	}
}
