package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/villageroaster/bakeboard/internal/model"
)

func TestRoastMode(t *testing.T) {
	t.Parallel()

	withRoasts := func(last time.Time) model.DailyState {
		return model.DailyState{RoastLog: []string{"Honduras"}, LastRoastAt: last}
	}

	tests := []struct {
		name string
		st   model.DailyState
		now  time.Time
		want model.RoastMode
	}{
		{"morning", withRoasts(day(4, 8, 0)), day(4, 10, 0), model.RoastModeRoasting},
		{"afternoon, no roasts", model.DailyState{}, day(4, 15, 0), model.RoastModeRoasting},
		{"afternoon, recent roast", withRoasts(day(4, 14, 45)), day(4, 15, 0), model.RoastModeRoasting},
		{"afternoon, exactly thirty minutes", withRoasts(day(4, 14, 30)), day(4, 15, 0), model.RoastModeRoasting},
		{"afternoon, stale roast", withRoasts(day(4, 11, 0)), day(4, 15, 0), model.RoastModeDisplay},
		{"afternoon, unknown time", withRoasts(time.Time{}), day(4, 14, 0), model.RoastModeDisplay},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, roastMode(tt.st, tt.now))
		})
	}
}

func TestBakeMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		lastBake time.Time
		now      time.Time
		want     model.BakeMode
	}{
		{"morning", time.Time{}, day(4, 9, 0), model.BakeModeBaking},
		{"afternoon", time.Time{}, day(4, 14, 0), model.BakeModeBakedToday},
		{"evening", time.Time{}, day(4, 18, 0), model.BakeModeFreshBaked},
		{"evening, fresh plan", day(4, 18, 40), day(4, 19, 0), model.BakeModeBaking},
		{"afternoon, old plan", day(4, 7, 0), day(4, 16, 0), model.BakeModeBakedToday},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, bakeMode(model.DailyState{LastBakeAt: tt.lastBake}, tt.now))
		})
	}
}
