package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Saturday 2026-08-29 local.
func saturday(hour, minute int) time.Time {
	return time.Date(2026, 8, 29, hour, minute, 0, 0, time.Local)
}

func TestParseRecurrenceRule(t *testing.T) {
	daily, err := ParseRecurrenceRule("daily")
	require.NoError(t, err)
	assert.True(t, daily.occursOn(saturday(12, 0)))

	weekly, err := ParseRecurrenceRule("weekly:mon,sat")
	require.NoError(t, err)
	assert.True(t, weekly.occursOn(saturday(12, 0)))
	assert.False(t, weekly.occursOn(saturday(12, 0).AddDate(0, 0, 1))) // sunday

	monthly, err := ParseRecurrenceRule("monthly:1,29")
	require.NoError(t, err)
	assert.True(t, monthly.occursOn(saturday(12, 0)))
	assert.False(t, monthly.occursOn(saturday(12, 0).AddDate(0, 0, 1)))

	// Empty rule is valid and never fires.
	none, err := ParseRecurrenceRule("")
	require.NoError(t, err)
	assert.Nil(t, none)

	for _, bad := range []string{"hourly", "weekly", "weekly:", "weekly:funday", "monthly:0", "monthly:32", "daily:mon"} {
		_, err := ParseRecurrenceRule(bad)
		assert.Error(t, err, bad)
		assert.True(t, IsValidation(err), bad)
	}
}

func TestResolveDutyOccurrenceWindow(t *testing.T) {
	quest := &Quest{
		Kind:           QuestKindDuty,
		RecurrenceRule: "daily",
		StartTime:      "06:00",
		EndTime:        "22:00",
	}

	occ, err := ResolveOccurrence(quest, saturday(12, 0))
	require.NoError(t, err)
	assert.True(t, occ.ActiveToday)
	assert.True(t, occ.OpenNow)
	assert.False(t, occ.PastDue)
	require.NotNil(t, occ.WindowEnd)
	assert.Equal(t, saturday(6, 0), occ.WindowStart)
	assert.Equal(t, saturday(22, 0), *occ.WindowEnd)

	// Before the window opens the day is active but not open.
	occ, err = ResolveOccurrence(quest, saturday(5, 30))
	require.NoError(t, err)
	assert.True(t, occ.ActiveToday)
	assert.False(t, occ.OpenNow)

	// After the window closes the occurrence is past due.
	occ, err = ResolveOccurrence(quest, saturday(23, 0))
	require.NoError(t, err)
	assert.True(t, occ.ActiveToday)
	assert.False(t, occ.OpenNow)
	assert.True(t, occ.PastDue)
}

func TestResolveDutyDueTime(t *testing.T) {
	quest := &Quest{
		Kind:           QuestKindDuty,
		RecurrenceRule: "daily",
		StartTime:      "06:00",
		EndTime:        "22:00",
		DueTime:        "20:00",
	}

	occ, err := ResolveOccurrence(quest, saturday(21, 0))
	require.NoError(t, err)
	assert.True(t, occ.OpenNow, "window stays open past the due instant")
	assert.True(t, occ.PastDue)
	require.NotNil(t, occ.DueAt)
	assert.Equal(t, saturday(20, 0), *occ.DueAt)
}

func TestResolveDutyNonOccurrenceDay(t *testing.T) {
	quest := &Quest{Kind: QuestKindDuty, RecurrenceRule: "weekly:mon", AllDay: true}
	occ, err := ResolveOccurrence(quest, saturday(12, 0))
	require.NoError(t, err)
	assert.False(t, occ.ActiveToday)

	// A duty without a rule never has an occurrence.
	quest.RecurrenceRule = ""
	occ, err = ResolveOccurrence(quest, saturday(12, 0))
	require.NoError(t, err)
	assert.False(t, occ.ActiveToday)
}

func TestResolveVentureOccurrence(t *testing.T) {
	start := saturday(10, 0)
	end := saturday(18, 0)
	quest := &Quest{Kind: QuestKindVenture, StartAt: &start, EndAt: &end}

	occ, err := ResolveOccurrence(quest, saturday(9, 0))
	require.NoError(t, err)
	assert.False(t, occ.ActiveToday)

	occ, err = ResolveOccurrence(quest, saturday(12, 0))
	require.NoError(t, err)
	assert.True(t, occ.OpenNow)

	occ, err = ResolveOccurrence(quest, saturday(18, 0))
	require.NoError(t, err)
	assert.False(t, occ.OpenNow)
	assert.True(t, occ.PastDue)

	// Open-ended venture stays open once started.
	quest.EndAt = nil
	occ, err = ResolveOccurrence(quest, saturday(23, 59))
	require.NoError(t, err)
	assert.True(t, occ.OpenNow)
	assert.Nil(t, occ.WindowEnd)
}

func TestValidateRecurrence(t *testing.T) {
	cases := []struct {
		name  string
		quest Quest
		ok    bool
	}{
		{"all-day duty", Quest{Kind: QuestKindDuty, RecurrenceRule: "daily", AllDay: true}, true},
		{"windowed duty", Quest{Kind: QuestKindDuty, RecurrenceRule: "daily", StartTime: "06:00", EndTime: "22:00"}, true},
		{"inverted window", Quest{Kind: QuestKindDuty, RecurrenceRule: "daily", StartTime: "22:00", EndTime: "06:00"}, false},
		{"due outside window", Quest{Kind: QuestKindDuty, RecurrenceRule: "daily", StartTime: "06:00", EndTime: "22:00", DueTime: "23:00"}, false},
		{"due inside window", Quest{Kind: QuestKindDuty, RecurrenceRule: "daily", StartTime: "06:00", EndTime: "22:00", DueTime: "20:00"}, true},
		{"bad rule", Quest{Kind: QuestKindDuty, RecurrenceRule: "fortnightly", AllDay: true}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateRecurrence(&tc.quest)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, IsValidation(err))
			}
		})
	}

	start := saturday(10, 0)
	end := saturday(9, 0)
	err := ValidateRecurrence(&Quest{Kind: QuestKindVenture, StartAt: &start, EndAt: &end})
	assert.True(t, IsValidation(err))
}
