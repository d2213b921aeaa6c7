package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/skintrack/server/internal/models"
)

func checkInsOnDays(now time.Time, offsets ...int) []*models.CheckIn {
	out := make([]*models.CheckIn, 0, len(offsets))
	for _, off := range offsets {
		out = append(out, &models.CheckIn{
			ID:        "c",
			CreatedAt: now.AddDate(0, 0, -off),
			Completed: true,
		})
	}
	return out
}

func TestStreak(t *testing.T) {
	now := time.Date(2024, time.March, 15, 18, 30, 0, 0, time.UTC)

	t.Run("three consecutive days", func(t *testing.T) {
		assert.Equal(t, 3, Streak(checkInsOnDays(now, 0, 1, 2), now))
	})

	t.Run("a gap yesterday breaks the streak", func(t *testing.T) {
		assert.Equal(t, 1, Streak(checkInsOnDays(now, 0, 2), now))
	})

	t.Run("no check-ins", func(t *testing.T) {
		assert.Equal(t, 0, Streak(nil, now))
	})

	t.Run("nothing today means zero", func(t *testing.T) {
		assert.Equal(t, 0, Streak(checkInsOnDays(now, 1, 2, 3), now))
	})

	t.Run("caps at thirty days", func(t *testing.T) {
		offsets := make([]int, 31)
		for i := range offsets {
			offsets[i] = i
		}
		assert.Equal(t, 30, Streak(checkInsOnDays(now, offsets...), now))
	})

	t.Run("several check-ins on one day count once", func(t *testing.T) {
		checkIns := append(checkInsOnDays(now, 0, 0, 1), checkInsOnDays(now.Add(-time.Hour), 0)...)
		assert.Equal(t, 2, Streak(checkIns, now))
	})

	t.Run("uses local calendar days", func(t *testing.T) {
		loc := time.FixedZone("UTC-5", -5*60*60)
		localNow := time.Date(2024, time.March, 15, 0, 30, 0, 0, loc)
		// 22:00 local yesterday is already today in UTC
		yesterday := time.Date(2024, time.March, 15, 3, 0, 0, 0, time.UTC)
		checkIns := []*models.CheckIn{
			{CreatedAt: localNow.Add(-10 * time.Minute).UTC()},
			{CreatedAt: yesterday},
		}
		assert.Equal(t, 2, Streak(checkIns, localNow))
	})

	t.Run("crosses a month boundary", func(t *testing.T) {
		first := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
		assert.Equal(t, 3, Streak(checkInsOnDays(first, 0, 1, 2), first))
	})
}

func TestDaysRemaining(t *testing.T) {
	now := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	days := func(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }
	intPtr := func(n int) *int { return &n }
	timePtr := func(t time.Time) *time.Time { return &t }

	tests := []struct {
		name string
		test *models.Test
		want int
	}{
		{
			name: "duration counts down",
			test: &models.Test{StartDate: now.Add(-days(5)), Duration: intPtr(14)},
			want: 9,
		},
		{
			name: "past duration floors at zero",
			test: &models.Test{StartDate: now.Add(-days(20)), Duration: intPtr(14)},
			want: 0,
		},
		{
			name: "end date without duration",
			test: &models.Test{StartDate: now.Add(-days(5)), EndDate: timePtr(now.Add(days(9)))},
			want: 9,
		},
		{
			name: "falls back to fourteen days",
			test: &models.Test{StartDate: now.Add(-days(20))},
			want: 0,
		},
		{
			name: "default applies to a fresh test",
			test: &models.Test{StartDate: now.Add(-days(3))},
			want: 11,
		},
		{
			name: "partial days are floored",
			test: &models.Test{StartDate: now.Add(-days(5) - 23*time.Hour), Duration: intPtr(14)},
			want: 9,
		},
		{
			name: "duration wins over end date",
			test: &models.Test{StartDate: now.Add(-days(2)), Duration: intPtr(7), EndDate: timePtr(now.Add(days(30)))},
			want: 5,
		},
		{
			name: "end date rounds partial days up",
			test: &models.Test{StartDate: now, EndDate: timePtr(now.Add(days(3) + time.Hour))},
			want: 4,
		},
		{
			name: "nil test",
			test: nil,
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysRemaining(tt.test, now))
		})
	}
}
