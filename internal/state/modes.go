package state

import (
	"time"

	"github.com/villageroaster/bakeboard/internal/model"
)

const (
	recentWindow  = 30 * time.Minute
	afternoonHour = 14
	eveningHour   = 18
)

// roastMode switches the board to showing the day's roasts once the
// afternoon starts and nothing has been roasted for a while.
func roastMode(st model.DailyState, now time.Time) model.RoastMode {
	if now.Hour() < afternoonHour || len(st.RoastLog) == 0 {
		return model.RoastModeRoasting
	}
	if !st.LastRoastAt.IsZero() && now.Sub(st.LastRoastAt) <= recentWindow {
		return model.RoastModeRoasting
	}
	return model.RoastModeDisplay
}

// bakeMode labels the bake list. A freshly landed plan always reads as
// baking.
func bakeMode(st model.DailyState, now time.Time) model.BakeMode {
	if !st.LastBakeAt.IsZero() && now.Sub(st.LastBakeAt) <= recentWindow {
		return model.BakeModeBaking
	}
	switch {
	case now.Hour() >= eveningHour:
		return model.BakeModeFreshBaked
	case now.Hour() >= afternoonHour:
		return model.BakeModeBakedToday
	default:
		return model.BakeModeBaking
	}
}
