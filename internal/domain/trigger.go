package domain

import (
	"encoding/json"
	"fmt"
)

// TriggerType discriminates the members of the Trigger union.
type TriggerType string

// Trigger type discriminator values as they appear on the wire.
const (
	TriggerTypeTime   TriggerType = "time"
	TriggerTypeEvent  TriggerType = "event"
	TriggerTypeManual TriggerType = "manual"
)

// Trigger is the condition that causes a task to run: a time schedule, a
// browser/bookmark event, or manual-only invocation. It is a sealed union;
// the executor and dispatcher switch exhaustively on the concrete type.
type Trigger interface {
	TriggerType() TriggerType
	isTrigger()
}

// ScheduleKind enumerates the time-trigger schedule shapes.
type ScheduleKind string

// Schedule kinds for TimeTrigger.
const (
	ScheduleOnce     ScheduleKind = "ONCE"
	ScheduleInterval ScheduleKind = "INTERVAL"
	ScheduleDaily    ScheduleKind = "DAILY"
	ScheduleWeekly   ScheduleKind = "WEEKLY"
	ScheduleMonthly  ScheduleKind = "MONTHLY"
)

// TimeTrigger fires on a schedule. Which fields are meaningful depends on
// Schedule: ONCE uses When (unix millis), INTERVAL uses IntervalMinutes,
// DAILY uses Hour/Minute, WEEKLY adds DayOfWeek (0=Sunday), MONTHLY adds
// DayOfMonth (1-31).
type TimeTrigger struct {
	Schedule        ScheduleKind `json:"schedule"`
	When            int64        `json:"when,omitempty"`
	IntervalMinutes int          `json:"intervalMinutes,omitempty"`
	Hour            int          `json:"hour"`
	Minute          int          `json:"minute"`
	DayOfWeek       int          `json:"dayOfWeek,omitempty"`
	DayOfMonth      int          `json:"dayOfMonth,omitempty"`
}

func (TimeTrigger) TriggerType() TriggerType { return TriggerTypeTime }
func (TimeTrigger) isTrigger()               {}

// EventKind enumerates the browser occurrences an EventTrigger can react to.
type EventKind string

// Event kinds for EventTrigger.
const (
	EventBrowserStartup   EventKind = "BROWSER_STARTUP"
	EventBookmarkCreated  EventKind = "BOOKMARK_CREATED"
	EventBookmarkRemoved  EventKind = "BOOKMARK_REMOVED"
	EventBookmarkChanged  EventKind = "BOOKMARK_CHANGED"
	EventBookmarkMoved    EventKind = "BOOKMARK_MOVED"
	EventExtensionClicked EventKind = "EXTENSION_CLICKED"
)

// EventConditions optionally narrows an EventTrigger to events whose payload
// matches the given substring filters. Empty fields match everything.
type EventConditions struct {
	URLContains   string `json:"urlContains,omitempty"`
	TitleContains string `json:"titleContains,omitempty"`
}

// EventTrigger fires when a matching browser or bookmark event is observed.
type EventTrigger struct {
	Event      EventKind        `json:"event"`
	Conditions *EventConditions `json:"conditions,omitempty"`
}

func (EventTrigger) TriggerType() TriggerType { return TriggerTypeEvent }
func (EventTrigger) isTrigger()               {}

// ManualTrigger marks a task that only runs on direct user action. The
// dispatcher never fires manual tasks from events or alarms.
type ManualTrigger struct{}

func (ManualTrigger) TriggerType() TriggerType { return TriggerTypeManual }
func (ManualTrigger) isTrigger()               {}

// MarshalTrigger encodes a trigger with its type discriminator.
func MarshalTrigger(t Trigger) (json.RawMessage, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: trigger is nil", ErrValidation)
	}
	switch tt := t.(type) {
	case TimeTrigger:
		return json.Marshal(struct {
			Type TriggerType `json:"type"`
			TimeTrigger
		}{TriggerTypeTime, tt})
	case EventTrigger:
		return json.Marshal(struct {
			Type TriggerType `json:"type"`
			EventTrigger
		}{TriggerTypeEvent, tt})
	case ManualTrigger:
		return json.Marshal(struct {
			Type TriggerType `json:"type"`
		}{TriggerTypeManual})
	default:
		return nil, fmt.Errorf("%w: unknown trigger type %T", ErrValidation, t)
	}
}

// UnmarshalTrigger decodes a trigger envelope back into its concrete member.
func UnmarshalTrigger(data json.RawMessage) (Trigger, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: trigger payload is empty", ErrValidation)
	}
	var env struct {
		Type TriggerType `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	switch env.Type {
	case TriggerTypeTime:
		var tt TimeTrigger
		if err := json.Unmarshal(data, &tt); err != nil {
			return nil, err
		}
		return tt, nil
	case TriggerTypeEvent:
		var et EventTrigger
		if err := json.Unmarshal(data, &et); err != nil {
			return nil, err
		}
		return et, nil
	case TriggerTypeManual:
		return ManualTrigger{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown trigger type %q", ErrValidation, env.Type)
	}
}

// IsOnceSchedule reports whether t is a one-shot time schedule. Successful
// runs of one-shot tasks end in COMPLETED rather than ENABLED.
func IsOnceSchedule(t Trigger) bool {
	tt, ok := t.(TimeTrigger)
	return ok && tt.Schedule == ScheduleOnce
}
