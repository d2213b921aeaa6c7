// Package stats derives dashboard figures from check-in history.
// Everything here is a pure function of its inputs and the supplied clock.
package stats

import (
	"math"
	"time"

	"github.com/skintrack/server/internal/models"
)

// MaxStreakDays caps how far back Streak walks
const MaxStreakDays = 30

const day = 24 * time.Hour

type dayKey struct {
	year  int
	month time.Month
	day   int
}

func keyOf(t time.Time) dayKey {
	y, m, d := t.Date()
	return dayKey{y, m, d}
}

// Streak counts consecutive calendar days, ending today, that each hold at
// least one check-in. Days are taken in now's location. The first empty day
// ends the streak, today included.
func Streak(checkIns []*models.CheckIn, now time.Time) int {
	loc := now.Location()

	days := make(map[dayKey]struct{}, len(checkIns))
	for _, c := range checkIns {
		if c == nil {
			continue
		}
		days[keyOf(c.CreatedAt.In(loc))] = struct{}{}
	}

	y, m, d := now.Date()
	streak := 0
	for i := 0; i < MaxStreakDays; i++ {
		// time.Date normalises d-i across month and year boundaries
		if _, ok := days[keyOf(time.Date(y, m, d-i, 0, 0, 0, 0, loc))]; !ok {
			break
		}
		streak++
	}
	return streak
}

// DaysRemaining returns the whole days left on a test. Duration wins over
// EndDate; with neither the default test length applies. Never negative.
func DaysRemaining(test *models.Test, now time.Time) int {
	if test == nil {
		return 0
	}

	elapsed := int(math.Floor(float64(now.Sub(test.StartDate)) / float64(day)))

	total := models.DefaultTestDurationDays
	switch {
	case test.Duration != nil:
		total = *test.Duration
	case test.EndDate != nil:
		total = int(math.Ceil(float64(test.EndDate.Sub(test.StartDate)) / float64(day)))
	}

	return max(0, total-elapsed)
}
