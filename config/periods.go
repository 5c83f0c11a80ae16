package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/guildhub/superlatives/internal/domain/shared"
	"github.com/guildhub/superlatives/internal/domain/superlative"
	"github.com/guildhub/superlatives/pkg/timeutil"
)

// PeriodFile is the on-disk shape of the competition timeline.
//
//	periods:
//	  - id: 2026-10-wars
//	    title: October War Effort
//	    start: 2026-10
//	    metric: wars
//	    brackets:
//	      primary:
//	        - {id: recruit, name: Recruit, threshold: 0}
//	        - {id: knight, name: Knight, threshold: 25}
type PeriodFile struct {
	Periods []PeriodEntry `koanf:"periods"`
}

// PeriodEntry is one period in the timeline file.
type PeriodEntry struct {
	ID       string                    `koanf:"id"`
	Title    string                    `koanf:"title"`
	Start    string                    `koanf:"start"` // "YYYY-MM" or RFC 3339
	Metric   string                    `koanf:"metric"`
	Brackets map[string][]BracketEntry `koanf:"brackets"`
}

// BracketEntry is one bracket threshold.
type BracketEntry struct {
	ID        string `koanf:"id"`
	Name      string `koanf:"name"`
	Threshold int64  `koanf:"threshold"`
}

// LoadPeriods reads the timeline file and builds the period registry.
// Month-only start values are resolved in loc.
func LoadPeriods(path string, loc *time.Location) (*superlative.Registry, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, shared.WrapError("config", "LoadPeriods", shared.ErrConfig, "read "+path, err)
	}
	return buildRegistry(k, loc)
}

func buildRegistry(k *koanf.Koanf, loc *time.Location) (*superlative.Registry, error) {
	var pf PeriodFile
	if err := k.UnmarshalWithConf("", &pf, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, shared.WrapError("config", "LoadPeriods", shared.ErrConfig, "decode", err)
	}

	periods := make([]superlative.Period, 0, len(pf.Periods))
	for i, e := range pf.Periods {
		p, err := e.toPeriod(loc)
		if err != nil {
			return nil, shared.WrapError("config", "LoadPeriods", shared.ErrConfig,
				fmt.Sprintf("period #%d", i+1), err)
		}
		periods = append(periods, p)
	}

	return superlative.NewRegistry(periods)
}

func (e PeriodEntry) toPeriod(loc *time.Location) (superlative.Period, error) {
	if loc == nil {
		loc = time.UTC
	}

	start, err := parseStart(e.Start, loc)
	if err != nil {
		return superlative.Period{}, err
	}

	metric, err := superlative.ParseMetricSpec(e.Metric)
	if err != nil {
		return superlative.Period{}, err
	}

	brackets := make(map[superlative.Track][]superlative.Bracket, len(e.Brackets))
	for name, entries := range e.Brackets {
		track, err := superlative.ParseTrack(name)
		if err != nil {
			return superlative.Period{}, err
		}
		list := make([]superlative.Bracket, 0, len(entries))
		for _, b := range entries {
			list = append(list, superlative.Bracket{ID: b.ID, Name: b.Name, Threshold: b.Threshold})
		}
		brackets[track] = list
	}

	title := e.Title
	if title == "" {
		title = e.ID
	}

	return superlative.Period{
		ID:       e.ID,
		Title:    title,
		Start:    start,
		Metric:   metric,
		Brackets: brackets,
	}, nil
}

func parseStart(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.ParseInLocation(timeutil.MonthLayout, value, loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid start %q: want YYYY-MM or RFC 3339", value)
}
