package jobs

import (
	"hsmeta/pkg/gamevalues"
	"hsmeta/pkg/models/meta"
)

// Expand returns every complete selector matching the given one.
// Empty fields are filled with every dispatched value of that dimension.
func Expand(sel meta.Selector) []meta.Selector {
	periods := []gamevalues.TimePeriod{sel.TimePeriod}
	if sel.TimePeriod == "" {
		periods = gamevalues.DispatchTimePeriods
	}
	return expand(sel, periods)
}

// ExpandDay is like Expand, but the time period is always left empty.
func ExpandDay(sel meta.Selector) []meta.Selector {
	return expand(sel, []gamevalues.TimePeriod{""})
}

func expand(sel meta.Selector, periods []gamevalues.TimePeriod) []meta.Selector {
	formats := []gamevalues.Format{sel.Format}
	if sel.Format == "" {
		formats = gamevalues.DispatchFormats
	}
	ranks := []gamevalues.RankBracket{sel.RankBracket}
	if sel.RankBracket == "" {
		ranks = gamevalues.DispatchRankBrackets
	}
	classes := []string{sel.PlayerClass}
	if sel.PlayerClass == "" {
		classes = gamevalues.Classes
	}

	selectors := make([]meta.Selector, 0, len(formats)*len(ranks)*len(periods)*len(classes))
	for _, format := range formats {
		for _, rank := range ranks {
			for _, period := range periods {
				for _, class := range classes {
					selectors = append(selectors, meta.Selector{
						Format:      format,
						RankBracket: rank,
						TimePeriod:  period,
						PlayerClass: class,
					})
				}
			}
		}
	}
	return selectors
}
