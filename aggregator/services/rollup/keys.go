package rollupservice

import (
	"errors"
	"fmt"
	"hsmeta/pkg/gamevalues"
	"hsmeta/pkg/models/meta"
	"time"
)

const DefaultKeyPrefix = "api/constructed/stats"

var ErrNoPatchDate = errors.New("last patch date is not configured")

// Plans which shard keys make up a rollup window.
// Every date is handled in UTC.
type KeyPlanner struct {
	Prefix    string
	LastPatch time.Time
}

func (kp KeyPlanner) KeyPrefix() string {
	if kp.Prefix == "" {
		return DefaultKeyPrefix
	}
	return kp.Prefix
}

func classSuffix(class string) string {
	if class == "" {
		return ""
	}
	return "-" + class
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Key of the shard holding one hour of data.
func (kp KeyPlanner) HourlyKey(format gamevalues.Format, rank gamevalues.RankBracket, hour time.Time, class string) string {
	return fmt.Sprintf("%s/decks/%s/%s/hourly/%s%s.gz.json",
		kp.KeyPrefix(), format, rank, hour.UTC().Truncate(time.Hour).Format(meta.ISOLayout), classSuffix(class))
}

// Key of the shard holding one day of deck data.
func (kp KeyPlanner) DailyKey(format gamevalues.Format, rank gamevalues.RankBracket, day time.Time, class string) string {
	return fmt.Sprintf("%s/decks/%s/%s/daily/%s%s.gz.json",
		kp.KeyPrefix(), format, rank, startOfDay(day).Format(meta.ISOLayout), classSuffix(class))
}

// Key of the document holding one day of archetype data.
func (kp KeyPlanner) ArchetypeDailyKey(format gamevalues.Format, rank gamevalues.RankBracket, day time.Time, class string) string {
	return fmt.Sprintf("%s/archetypes/%s/%s/daily/%s%s.gz.json",
		kp.KeyPrefix(), format, rank, startOfDay(day).Format(meta.ISOLayout), classSuffix(class))
}

// First day covered by the daily shards of a time period.
func (kp KeyPlanner) StartDate(period gamevalues.TimePeriod, now time.Time) (time.Time, error) {
	today := startOfDay(now)

	switch period {
	case gamevalues.PeriodPast3:
		return today.AddDate(0, 0, -3), nil
	case gamevalues.PeriodPast7:
		return today.AddDate(0, 0, -7), nil
	case gamevalues.PeriodPast20:
		return today.AddDate(0, 0, -20), nil
	case gamevalues.PeriodCurrentSeason:
		return time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC), nil
	case gamevalues.PeriodLastPatch:
		if kp.LastPatch.IsZero() {
			return time.Time{}, ErrNoPatchDate
		}
		// The patch day itself is covered by its hourly shards.
		return startOfDay(kp.LastPatch).AddDate(0, 0, 1), nil
	default:
		return time.Time{}, fmt.Errorf("unknown time period %q", period)
	}
}

// Shard keys of a rolling window:
// the hourly shards of the current day, the daily shards of the previous days,
// and for last-patch the hourly shards of the patch day after the release.
func (kp KeyPlanner) WindowKeys(sel meta.Selector, now time.Time) ([]string, error) {
	start, err := kp.StartDate(sel.TimePeriod, now)
	if err != nil {
		return nil, err
	}

	now = now.UTC()
	today := startOfDay(now)
	firstHour := today
	var patchHours []time.Time

	if sel.TimePeriod == gamevalues.PeriodLastPatch {
		afterPatch := kp.LastPatch.UTC().Truncate(time.Hour).Add(time.Hour)
		if afterPatch.After(firstHour) {
			firstHour = afterPatch
		}
		for hour := afterPatch; hour.Before(startOfDay(kp.LastPatch).AddDate(0, 0, 1)); hour = hour.Add(time.Hour) {
			if hour.Before(today) {
				patchHours = append(patchHours, hour)
			}
		}
	}

	var keys []string
	for hour := firstHour; !hour.After(now); hour = hour.Add(time.Hour) {
		keys = append(keys, kp.HourlyKey(sel.Format, sel.RankBracket, hour, sel.PlayerClass))
	}
	for day := start; day.Before(today); day = day.AddDate(0, 0, 1) {
		keys = append(keys, kp.DailyKey(sel.Format, sel.RankBracket, day, sel.PlayerClass))
	}
	for _, hour := range patchHours {
		keys = append(keys, kp.HourlyKey(sel.Format, sel.RankBracket, hour, sel.PlayerClass))
	}
	return keys, nil
}

// The 24 hourly shard keys of one day.
func (kp KeyPlanner) DayKeys(sel meta.Selector, day time.Time) []string {
	start := startOfDay(day)
	keys := make([]string, 0, 24)
	for i := 0; i < 24; i++ {
		keys = append(keys, kp.HourlyKey(sel.Format, sel.RankBracket, start.Add(time.Duration(i)*time.Hour), sel.PlayerClass))
	}
	return keys
}
