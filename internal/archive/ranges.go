package archive

import (
	"strings"
	"time"

	"feeledger/internal/core"
)

// Preset names a relative export window.
type Preset string

const (
	PresetAll     Preset = ""
	PresetDaily   Preset = "daily"
	PresetWeekly  Preset = "weekly"
	PresetMonthly Preset = "monthly"
	PresetYearly  Preset = "yearly"
)

func ParsePreset(s string) (Preset, error) {
	p := Preset(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case PresetAll, PresetDaily, PresetWeekly, PresetMonthly, PresetYearly:
		return p, nil
	}
	return "", core.Validation("range", "range must be daily, weekly, monthly or yearly")
}

// Resolve turns the preset into an absolute window ending at now.
// Daily starts at midnight of now's day; the others reach back a week, a month or a year.
func (p Preset) Resolve(now time.Time) core.DateRange {
	switch p {
	case PresetDaily:
		y, m, d := now.Date()
		return core.DateRange{From: time.Date(y, m, d, 0, 0, 0, 0, now.Location()), To: now}
	case PresetWeekly:
		return core.DateRange{From: now.AddDate(0, 0, -7), To: now}
	case PresetMonthly:
		return core.DateRange{From: now.AddDate(0, -1, 0), To: now}
	case PresetYearly:
		return core.DateRange{From: now.AddDate(-1, 0, 0), To: now}
	}
	return core.DateRange{}
}
