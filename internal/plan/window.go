package plan

import "time"

// Window is the working shift, in whole local hours.
type Window struct {
	StartHour int
	EndHour   int
}

// CurrentIndex returns which of n plan items should be highlighted at now.
// Before the shift it is the first item; after the shift it backs up to show
// the last three; in between it advances in proportion to elapsed minutes.
// The shift boundaries are taken on now's calendar day in now's location.
func (w Window) CurrentIndex(n int, now time.Time) int {
	if n <= 0 {
		return 0
	}

	y, mo, d := now.Date()
	loc := now.Location()
	start := time.Date(y, mo, d, w.StartHour, 0, 0, 0, loc)
	end := time.Date(y, mo, d, w.EndHour, 0, 0, 0, loc)

	if !now.After(start) {
		return 0
	}
	if !now.Before(end) {
		return max(0, n-3)
	}

	total := max(1, int(end.Sub(start)/time.Minute))
	elapsed := int(now.Sub(start) / time.Minute)

	idx := int(float64(elapsed) / float64(total) * float64(n))
	return min(max(idx, 0), n-1)
}
