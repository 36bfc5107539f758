package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// dayFormat is the local day bucket used everywhere occurrences, completion
// counts and scheduler cursors are compared.
const dayFormat = "2006-01-02"

// Occurrence describes whether a quest has an open occurrence around a
// reference instant and where its window lies.
type Occurrence struct {
	ActiveToday bool       // the reference date is an occurrence day
	OpenNow     bool       // the reference instant falls inside the open window
	WindowStart time.Time
	WindowEnd   *time.Time // nil for an open-ended venture
	DueAt       *time.Time // deadline; defaults to WindowEnd when no due time is set
	PastDue     bool       // reference instant is at or past DueAt
}

// RecurrenceRule is the parsed form of a quest's rule string
type RecurrenceRule struct {
	freq      RotationFrequency
	weekdays  []time.Weekday // weekly
	monthDays []int          // monthly, 1-31
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday,
	"wed": time.Wednesday, "thu": time.Thursday, "fri": time.Friday,
	"sat": time.Saturday,
}

// ParseRecurrenceRule parses a rule string: "daily", "weekly:mon,wed" or
// "monthly:1,15". An empty rule is valid and means the quest never recurs.
func ParseRecurrenceRule(rule string) (*RecurrenceRule, error) {
	if rule == "" {
		return nil, nil
	}
	head, tail, hasTail := strings.Cut(rule, ":")
	switch head {
	case "daily":
		if hasTail {
			return nil, NewValidationError("recurrenceRule", "daily takes no arguments")
		}
		return &RecurrenceRule{freq: RotationDaily}, nil
	case "weekly":
		if !hasTail || tail == "" {
			return nil, NewValidationError("recurrenceRule", "weekly requires day names, e.g. weekly:mon,thu")
		}
		r := &RecurrenceRule{freq: RotationWeekly}
		for _, name := range strings.Split(tail, ",") {
			wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
			if !ok {
				return nil, NewValidationError("recurrenceRule", fmt.Sprintf("unknown weekday %q", name))
			}
			r.weekdays = append(r.weekdays, wd)
		}
		return r, nil
	case "monthly":
		if !hasTail || tail == "" {
			return nil, NewValidationError("recurrenceRule", "monthly requires day numbers, e.g. monthly:1,15")
		}
		r := &RecurrenceRule{freq: RotationMonthly}
		for _, part := range strings.Split(tail, ",") {
			day, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || day < 1 || day > 31 {
				return nil, NewValidationError("recurrenceRule", fmt.Sprintf("invalid month day %q", part))
			}
			r.monthDays = append(r.monthDays, day)
		}
		return r, nil
	default:
		return nil, NewValidationError("recurrenceRule", fmt.Sprintf("unknown rule %q", rule))
	}
}

// occursOn reports whether the rule fires on the given local date
func (r *RecurrenceRule) occursOn(day time.Time) bool {
	switch r.freq {
	case RotationDaily:
		return true
	case RotationWeekly:
		wd := day.Weekday()
		for _, d := range r.weekdays {
			if d == wd {
				return true
			}
		}
		return false
	case RotationMonthly:
		dom := day.Day()
		for _, d := range r.monthDays {
			if d == dom {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// parseClock parses "HH:MM" into minutes since midnight
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// ValidateRecurrence checks a quest's recurrence configuration at definition
// time. A duty with an empty rule is accepted as "never recurs" but flagged
// so the admin UI can warn about it.
func ValidateRecurrence(q *Quest) error {
	switch q.Kind {
	case QuestKindDuty:
		if _, err := ParseRecurrenceRule(q.RecurrenceRule); err != nil {
			return err
		}
		if !q.AllDay {
			start, err := parseClock(q.StartTime)
			if err != nil {
				return NewValidationError("startTime", err.Error())
			}
			end, err := parseClock(q.EndTime)
			if err != nil {
				return NewValidationError("endTime", err.Error())
			}
			if end <= start {
				return NewValidationError("endTime", "must be after startTime within the same day")
			}
			if q.DueTime != "" {
				due, err := parseClock(q.DueTime)
				if err != nil {
					return NewValidationError("dueTime", err.Error())
				}
				if due < start || due > end {
					return NewValidationError("dueTime", "must fall within the time window")
				}
			}
		}
	case QuestKindVenture, QuestKindJourney:
		if q.StartAt != nil && q.EndAt != nil && !q.EndAt.After(*q.StartAt) {
			return NewValidationError("endAt", "must be after startAt")
		}
	}
	return nil
}

// ResolveOccurrence computes the quest's occurrence around the reference
// instant. For duties the recurrence rule decides whether the reference
// date is an occurrence day and the time-of-day window bounds the open
// interval; for ventures and journeys the occurrence is the absolute
// [StartAt, EndAt) interval.
func ResolveOccurrence(q *Quest, now time.Time) (Occurrence, error) {
	switch q.Kind {
	case QuestKindDuty:
		return resolveDuty(q, now)
	default:
		return resolveAbsolute(q, now), nil
	}
}

func resolveDuty(q *Quest, now time.Time) (Occurrence, error) {
	rule, err := ParseRecurrenceRule(q.RecurrenceRule)
	if err != nil {
		return Occurrence{}, err
	}
	// No rule on a duty = never recurs.
	if rule == nil || !rule.occursOn(now) {
		return Occurrence{}, nil
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	windowStart := dayStart
	windowEnd := dayEnd
	if !q.AllDay && q.StartTime != "" && q.EndTime != "" {
		start, err := parseClock(q.StartTime)
		if err != nil {
			return Occurrence{}, NewValidationError("startTime", err.Error())
		}
		end, err := parseClock(q.EndTime)
		if err != nil {
			return Occurrence{}, NewValidationError("endTime", err.Error())
		}
		if end <= start {
			return Occurrence{}, NewValidationError("endTime", "must be after startTime within the same day")
		}
		windowStart = dayStart.Add(time.Duration(start) * time.Minute)
		windowEnd = dayStart.Add(time.Duration(end) * time.Minute)
	}

	dueAt := windowEnd
	if q.DueTime != "" {
		due, err := parseClock(q.DueTime)
		if err != nil {
			return Occurrence{}, NewValidationError("dueTime", err.Error())
		}
		dueAt = dayStart.Add(time.Duration(due) * time.Minute)
	}

	return Occurrence{
		ActiveToday: true,
		OpenNow:     !now.Before(windowStart) && now.Before(windowEnd),
		WindowStart: windowStart,
		WindowEnd:   &windowEnd,
		DueAt:       &dueAt,
		PastDue:     !now.Before(dueAt),
	}, nil
}

func resolveAbsolute(q *Quest, now time.Time) Occurrence {
	occ := Occurrence{}
	if q.StartAt == nil {
		return occ
	}
	occ.WindowStart = *q.StartAt
	occ.WindowEnd = q.EndAt
	occ.DueAt = q.EndAt
	if now.Before(*q.StartAt) {
		return occ
	}
	if q.EndAt != nil && !now.Before(*q.EndAt) {
		occ.PastDue = true
		return occ
	}
	occ.ActiveToday = true
	occ.OpenNow = true
	return occ
}
