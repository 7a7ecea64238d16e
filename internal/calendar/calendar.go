// Package calendar renders event timelines as iCalendar feeds.
package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	ics "github.com/arran4/golang-ical"

	"eventline/internal/domain"
	"eventline/internal/schedule"
)

const productID = "-//eventline//timeline//EN"

var ErrNoEventDate = errors.New("event has no date; set event_date before exporting a calendar")

// Location resolves an event's timezone; empty means UTC.
func Location(tz string) (*time.Location, error) {
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", tz, err)
	}
	return loc, nil
}

// Build renders entries as one VEVENT each. items is the event's full
// sequenced timeline; it decides on which day an entry falls once the
// schedule has run past midnight.
func Build(ev domain.Event, items []domain.TimelineItem, entries []schedule.Entry, now time.Time) (string, error) {
	if ev.EventDate == "" {
		return "", ErrNoEventDate
	}
	loc, err := Location(ev.Timezone)
	if err != nil {
		return "", err
	}
	day, err := time.ParseInLocation("2006-01-02", ev.EventDate, loc)
	if err != nil {
		return "", fmt.Errorf("event_date %q: %w", ev.EventDate, err)
	}
	timings, err := schedule.Timings(items)
	if err != nil {
		return "", err
	}
	offsets := make(map[string]int, len(timings))
	for _, t := range timings {
		offsets[t.ID] = t.DayOffset
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName(ev.Name)
	cal.SetXWRTimezone(loc.String())

	for _, e := range entries {
		start, err := at(day, e.Start, offsets[e.Item.ID])
		if err != nil {
			return "", fmt.Errorf("item %s: %w", e.Item.ID, err)
		}
		vev := cal.AddEvent(e.Item.ID + "@eventline")
		vev.SetDtStampTime(now.UTC())
		vev.SetStartAt(start)
		vev.SetEndAt(start.Add(time.Duration(e.Item.Duration) * time.Minute))
		vev.SetSummary(e.Item.Title)
		if desc := description(e.Item); desc != "" {
			vev.SetDescription(desc)
		}
		if ev.Venue != "" {
			vev.SetLocation(ev.Venue)
		}
		if e.Item.Category != "" {
			vev.SetProperty(ics.ComponentPropertyCategories, e.Item.Category)
		}
	}
	return cal.Serialize(), nil
}

func at(day time.Time, hhmm string, offset int) (time.Time, error) {
	m, err := schedule.ToMinutes(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	d := day.AddDate(0, 0, offset)
	return time.Date(d.Year(), d.Month(), d.Day(), m/60, m%60, 0, 0, d.Location()), nil
}

func description(it domain.TimelineItem) string {
	var parts []string
	if it.Description != "" {
		parts = append(parts, it.Description)
	}
	if it.AssignedRole != "" {
		parts = append(parts, "Role: "+it.AssignedRole)
	}
	if it.Notes != "" {
		parts = append(parts, "Notes: "+it.Notes)
	}
	return strings.Join(parts, "\n")
}
