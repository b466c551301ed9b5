package meta

import (
	"fmt"
	"hsmeta/pkg/gamevalues"
)

// Identifies one rollup invocation.
// Empty fields mean that the caller must fan out over every value of that dimension.
type Selector struct {
	Format      gamevalues.Format
	RankBracket gamevalues.RankBracket
	TimePeriod  gamevalues.TimePeriod
	PlayerClass string
}

func (s Selector) String() string {
	class := s.PlayerClass
	if class == "" {
		class = "all-classes"
	}
	return fmt.Sprintf("%s/%s/%s/%s", s.Format, s.RankBracket, s.TimePeriod, class)
}

// Check if the selector targets a single rolling window.
func (s Selector) Complete() bool {
	return s.Format != "" && s.RankBracket != "" && s.TimePeriod != "" && s.PlayerClass != ""
}

// ParseSelector validates the raw values of a selector. Empty values stay empty.
func ParseSelector(format, rank, period, class string) (Selector, error) {
	var sel Selector
	var err error

	if format != "" {
		if sel.Format, err = gamevalues.ParseFormat(format); err != nil {
			return Selector{}, err
		}
	}
	if rank != "" {
		if sel.RankBracket, err = gamevalues.ParseRankBracket(rank); err != nil {
			return Selector{}, err
		}
	}
	if period != "" {
		if sel.TimePeriod, err = gamevalues.ParseTimePeriod(period); err != nil {
			return Selector{}, err
		}
	}
	if class != "" {
		if sel.PlayerClass, err = gamevalues.ParseClass(class); err != nil {
			return Selector{}, err
		}
	}
	return sel, nil
}
