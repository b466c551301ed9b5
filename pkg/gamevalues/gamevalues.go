package gamevalues

import (
	"fmt"
	"slices"
	"strings"
)

// Create the types for clarity.
type (
	Format      string
	RankBracket string
	TimePeriod  string
)

const (
	FormatStandard Format = "standard"
	FormatWild     Format = "wild"
	FormatTwist    Format = "twist"
	FormatClassic  Format = "classic"
)

const (
	RankCompetitive   RankBracket = "competitive"
	RankTop2000Legend RankBracket = "top-2000-legend"
	RankLegend        RankBracket = "legend"
	RankLegendDiamond RankBracket = "legend-diamond"
	RankDiamond       RankBracket = "diamond"
	RankPlatinum      RankBracket = "platinum"
	RankBronzeGold    RankBracket = "bronze-gold"
	RankAll           RankBracket = "all"
)

const (
	PeriodLastPatch     TimePeriod = "last-patch"
	PeriodPast20        TimePeriod = "past-20"
	PeriodPast7         TimePeriod = "past-7"
	PeriodPast3         TimePeriod = "past-3"
	PeriodCurrentSeason TimePeriod = "current-season"
)

// Values that exist on the data, including the ones that are never dispatched.
var (
	allFormats      = []Format{FormatStandard, FormatWild, FormatTwist, FormatClassic}
	allRankBrackets = []RankBracket{RankCompetitive, RankTop2000Legend, RankLegend, RankLegendDiamond, RankDiamond, RankPlatinum, RankBronzeGold, RankAll}
	allTimePeriods  = []TimePeriod{PeriodLastPatch, PeriodPast20, PeriodPast7, PeriodPast3, PeriodCurrentSeason}
)

// Values used when a selector is expanded.
var (
	DispatchFormats      = []Format{FormatStandard, FormatWild, FormatTwist}
	DispatchRankBrackets = []RankBracket{RankTop2000Legend, RankLegend, RankLegendDiamond, RankDiamond, RankPlatinum, RankBronzeGold, RankAll}
	DispatchTimePeriods  = allTimePeriods
)

// Hero classes, as they appear on the shard keys and deck data.
var Classes = []string{
	"deathknight",
	"demonhunter",
	"druid",
	"hunter",
	"mage",
	"paladin",
	"priest",
	"rogue",
	"shaman",
	"warlock",
	"warrior",
}

// Check if the given name is one of the hero classes.
func IsClass(name string) bool {
	return slices.Contains(Classes, name)
}

// Parse a raw format, returning an error if unknown.
func ParseFormat(raw string) (Format, error) {
	format := Format(strings.ToLower(strings.TrimSpace(raw)))
	if !slices.Contains(allFormats, format) {
		return "", fmt.Errorf("unknown format %q", raw)
	}
	return format, nil
}

// Parse a raw rank bracket, returning an error if unknown.
func ParseRankBracket(raw string) (RankBracket, error) {
	rank := RankBracket(strings.ToLower(strings.TrimSpace(raw)))
	if !slices.Contains(allRankBrackets, rank) {
		return "", fmt.Errorf("unknown rank bracket %q", raw)
	}
	return rank, nil
}

// Parse a raw time period, returning an error if unknown.
func ParseTimePeriod(raw string) (TimePeriod, error) {
	period := TimePeriod(strings.ToLower(strings.TrimSpace(raw)))
	if !slices.Contains(allTimePeriods, period) {
		return "", fmt.Errorf("unknown time period %q", raw)
	}
	return period, nil
}

// Parse a raw player class, returning an error if unknown.
func ParseClass(raw string) (string, error) {
	class := strings.ToLower(strings.TrimSpace(raw))
	if !IsClass(class) {
		return "", fmt.Errorf("unknown player class %q", raw)
	}
	return class, nil
}
