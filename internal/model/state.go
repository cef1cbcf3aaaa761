package model

import (
	"slices"
	"time"
)

// DateLayout is the calendar day key format used for DailyState.Date.
const DateLayout = "2006-01-02"

// DailyState is the board's aggregate for one calendar day.
type DailyState struct {
	Date         string    `json:"date"`
	CurrentRoast string    `json:"roast_current"`
	RoastLog     []string  `json:"roasts_today"`
	BakePlan     []string  `json:"bake_items"`
	BakeSource   string    `json:"bake_source,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
	LastRoastAt  time.Time `json:"last_roast_at,omitzero"`
	LastBakeAt   time.Time `json:"last_bake_at,omitzero"`
}

// NewDailyState returns an empty aggregate for the given day.
func NewDailyState(date string, now time.Time) DailyState {
	return DailyState{
		Date:      date,
		RoastLog:  []string{},
		BakePlan:  []string{},
		UpdatedAt: now,
	}
}

// Clone returns a deep copy; slices in the copy never alias the receiver.
func (s DailyState) Clone() DailyState {
	out := s
	out.RoastLog = cloneList(s.RoastLog)
	out.BakePlan = cloneList(s.BakePlan)
	return out
}

func cloneList(in []string) []string {
	if in == nil {
		return []string{}
	}
	return slices.Clone(in)
}

// BakeMode describes how the display should label the bake list.
type BakeMode string

const (
	BakeModeBaking     BakeMode = "baking"
	BakeModeBakedToday BakeMode = "baked_today"
	BakeModeFreshBaked BakeMode = "fresh_baked"
)

// RoastMode describes whether the roaster is active or idle for display.
type RoastMode string

const (
	RoastModeRoasting RoastMode = "roasting"
	RoastModeDisplay  RoastMode = "display"
)

// Snapshot is a consistent read view of the DailyState plus values derived
// at read time. Snapshots are never persisted.
type Snapshot struct {
	DailyState
	CurrentIndex int       `json:"bake_current_index"`
	BakeMode     BakeMode  `json:"bake_mode"`
	RoastMode    RoastMode `json:"roast_mode"`
}
