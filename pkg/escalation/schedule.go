// Package escalation implements the Escalation Engine and Schedule
// Resolver: ladder-based notification policies driven by a tick loop, and
// on-call rotation math for daily/weekly/custom schedules.
package escalation

import (
	"time"

	"github.com/fluxguard/incidentcore/pkg/model"
)

var (
	dailyEpoch  = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	weeklyEpoch = time.Date(2020, 1, 6, 0, 0, 0, 0, time.UTC) // Monday
)

// ResolveSchedule computes who is on-call, layer by layer, at the instant
// now for the given schedule. Layers whose restriction excludes now, or
// whose user list is empty, are skipped.
func ResolveSchedule(sched *model.OnCallSchedule, now time.Time) []model.Resolved {
	loc, err := time.LoadLocation(sched.Timezone)
	if err != nil || sched.Timezone == "" {
		loc = time.UTC
	}
	local := now.In(loc)

	var out []model.Resolved
	for _, layer := range sched.Layers {
		if len(layer.Users) == 0 {
			continue
		}
		if !layer.Restriction.Includes(int(local.Weekday()), local.Hour()) {
			continue
		}
		idx := rotationIndex(layer.Rotation, local, len(layer.Users))
		out = append(out, model.Resolved{
			Email:      layer.Users[idx],
			LayerName:  layer.Name,
			ScheduleID: sched.ID,
		})
	}
	return out
}

func rotationIndex(r model.Rotation, local time.Time, numUsers int) int {
	if numUsers <= 0 {
		return 0
	}
	switch r.Kind {
	case model.RotationDaily:
		return dailyIndex(r, local, numUsers)
	case model.RotationWeekly:
		return weeklyIndex(r, local, numUsers)
	case model.RotationCustom:
		return customIndex(r, local, numUsers)
	default:
		return 0
	}
}

// dailyIndex compares calendar dates (not raw elapsed hours) so that the
// handoff hour, not midnight, is the rotation boundary: a timestamp earlier
// in the day than HandoffHour still belongs to the previous day's rotation.
func dailyIndex(r model.Rotation, local time.Time, numUsers int) int {
	localDate := midnight(local)
	epochDate := midnight(sameLocation(dailyEpoch, local))
	days := int(localDate.Sub(epochDate).Hours() / 24)
	if local.Hour() < r.HandoffHour {
		days--
	}
	return mod(days, numUsers)
}

func weeklyIndex(r model.Rotation, local time.Time, numUsers int) int {
	epoch := sameLocation(weeklyEpoch, local).Add(time.Duration(r.HandoffHour) * time.Hour)
	mostRecentHandoff := mostRecentWeekday(local, time.Weekday(r.HandoffDay), r.HandoffHour)
	weeks := int(mostRecentHandoff.Sub(epoch).Hours() / 24 / 7)
	return mod(weeks, numUsers)
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// mostRecentWeekday finds the latest instant at or before local that falls
// on weekday at hour:00.
func mostRecentWeekday(local time.Time, weekday time.Weekday, hour int) time.Time {
	candidate := time.Date(local.Year(), local.Month(), local.Day(), hour, 0, 0, 0, local.Location())
	for candidate.After(local) || candidate.Weekday() != weekday {
		candidate = candidate.AddDate(0, 0, -1)
	}
	return candidate
}

func customIndex(r model.Rotation, local time.Time, numUsers int) int {
	if r.DurationHours <= 0 {
		return 0
	}
	epoch := sameLocation(dailyEpoch, local)
	rotations := int(local.Sub(epoch).Hours() / float64(r.DurationHours))
	return mod(rotations, numUsers)
}

func sameLocation(t time.Time, ref time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), ref.Location())
}

func mod(a, n int) int {
	if n == 0 {
		return 0
	}
	m := a % n
	if m < 0 {
		m += n
	}
	return m
}

// NextHandoffTime returns the first future instant at which layer's
// rotation index changes, probing each hour boundary after now (handoffs
// always fall on the hour). Used by upstream schedulers that want to wake
// exactly at a handoff rather than poll.
func NextHandoffTime(layer model.Layer, now time.Time) time.Time {
	if len(layer.Users) == 0 {
		return now
	}
	loc := now.Location()
	current := rotationIndex(layer.Rotation, now.In(loc), len(layer.Users))
	probe := now.Truncate(time.Hour)
	limit := now.AddDate(0, 0, 400) // rotation periods never exceed ~1yr
	for probe.Before(limit) {
		probe = probe.Add(time.Hour)
		if rotationIndex(layer.Rotation, probe.In(loc), len(layer.Users)) != current {
			return probe
		}
	}
	return limit
}
