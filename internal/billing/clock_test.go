package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycrm/relaycrm/internal/types"
)

func newTestClock(t *testing.T) *Clock {
	t.Helper()
	clock, err := NewClockFromTimezone("America/Sao_Paulo")
	require.NoError(t, err)
	return clock
}

func TestResolveAnchorDay(t *testing.T) {
	clock := newTestClock(t)

	tests := []struct {
		name     string
		instant  time.Time
		expected int
	}{
		{
			name:     "day within clamp bound",
			instant:  clock.At(2026, time.March, 15),
			expected: 15,
		},
		{
			name:     "day 31 clamps to 28",
			instant:  clock.At(2026, time.January, 31),
			expected: 28,
		},
		{
			name:     "day 29 clamps to 28",
			instant:  clock.At(2026, time.March, 29),
			expected: 28,
		},
		{
			// 2026-03-02 01:00 UTC is still 2026-03-01 in Sao Paulo
			name:     "observes business timezone not UTC",
			instant:  time.Date(2026, time.March, 2, 1, 0, 0, 0, time.UTC),
			expected: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, clock.ResolveAnchorDay(tt.instant, 28))
		})
	}
}

func TestNextBillingDate(t *testing.T) {
	clock := newTestClock(t)

	tests := []struct {
		name        string
		periodStart time.Time
		anchorDay   int
		cycle       types.BillingCycle
		expected    time.Time
	}{
		{
			name:        "monthly anchor 28 from january lands on feb 28",
			periodStart: clock.At(2026, time.January, 31),
			anchorDay:   28,
			cycle:       types.BillingCycleMonthly,
			expected:    clock.At(2026, time.February, 28),
		},
		{
			name:        "monthly anchor 15 mid month",
			periodStart: clock.At(2026, time.March, 15),
			anchorDay:   15,
			cycle:       types.BillingCycleMonthly,
			expected:    clock.At(2026, time.April, 15),
		},
		{
			name:        "quarterly crosses year boundary",
			periodStart: clock.At(2026, time.November, 10),
			anchorDay:   10,
			cycle:       types.BillingCycleQuarterly,
			expected:    clock.At(2027, time.February, 10),
		},
		{
			name:        "semiannual keeps anchor",
			periodStart: clock.At(2026, time.January, 5),
			anchorDay:   5,
			cycle:       types.BillingCycleSemiannual,
			expected:    clock.At(2026, time.July, 5),
		},
		{
			name:        "annual into leap february honours anchor 28",
			periodStart: clock.At(2027, time.February, 28),
			anchorDay:   28,
			cycle:       types.BillingCycleAnnual,
			expected:    clock.At(2028, time.February, 28),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := clock.NextBillingDate(tt.periodStart, tt.anchorDay, tt.cycle)
			assert.True(t, got.Equal(tt.expected), "got %s want %s", got, tt.expected)
			assert.Equal(t, BillingHour, got.In(clock.Location()).Hour())
		})
	}
}

// Every anchor day in [1,28] must resolve to a real calendar date with
// day = min(anchor, daysInTargetMonth) for every month of the year.
func TestNextBillingDateAnchorStability(t *testing.T) {
	clock := newTestClock(t)

	for anchor := 1; anchor <= 28; anchor++ {
		start := clock.At(2026, time.January, anchor)
		for month := 0; month < 12; month++ {
			next := clock.NextBillingDate(start, anchor, types.BillingCycleMonthly)
			local := next.In(clock.Location())

			last := daysInMonth(local.Year(), local.Month())
			want := anchor
			if want > last {
				want = last
			}
			require.Equal(t, want, local.Day(),
				"anchor %d month %s", anchor, local.Month())

			start = next
		}
	}
}

func TestPeriodEnd(t *testing.T) {
	clock := newTestClock(t)

	tests := []struct {
		name        string
		periodStart time.Time
		cycle       types.BillingCycle
		expected    time.Time
	}{
		{
			name:        "monthly same day next month",
			periodStart: clock.At(2026, time.March, 10),
			cycle:       types.BillingCycleMonthly,
			expected:    clock.At(2026, time.April, 10),
		},
		{
			name:        "monthly clamps jan 31 to feb 28",
			periodStart: clock.At(2026, time.January, 31),
			cycle:       types.BillingCycleMonthly,
			expected:    clock.At(2026, time.February, 28),
		},
		{
			name:        "annual same day next year",
			periodStart: clock.At(2026, time.June, 1),
			cycle:       types.BillingCycleAnnual,
			expected:    clock.At(2027, time.June, 1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := clock.PeriodEnd(tt.periodStart, tt.cycle)
			assert.True(t, got.Equal(tt.expected), "got %s want %s", got, tt.expected)
		})
	}
}

func TestDaysOverdue(t *testing.T) {
	clock := newTestClock(t)

	due := clock.At(2026, time.March, 1)

	tests := []struct {
		name     string
		asOf     time.Time
		expected int
	}{
		{"same day is not overdue", clock.At(2026, time.March, 1), 0},
		{"four days past due", clock.At(2026, time.March, 5), 4},
		{"nine days past due", clock.At(2026, time.March, 10), 9},
		{"before due date is negative", clock.At(2026, time.February, 27), -2},
		{
			// 2026-03-02 02:00 UTC is 2026-03-01 23:00 in Sao Paulo,
			// still the due day itself
			"utc evening of due day does not count",
			time.Date(2026, time.March, 2, 2, 0, 0, 0, time.UTC),
			0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, clock.DaysOverdue(due, tt.asOf))
			assert.Equal(t, tt.expected > 0, clock.IsOverdue(due, tt.asOf))
		})
	}
}

func TestDayBounds(t *testing.T) {
	clock := newTestClock(t)

	start, end := clock.DayBounds(clock.At(2026, time.March, 5))
	assert.Equal(t, time.Date(2026, time.March, 5, 0, 0, 0, 0, clock.Location()), start)
	assert.Equal(t, time.Date(2026, time.March, 6, 0, 0, 0, 0, clock.Location()), end)

	assert.True(t, clock.SameDay(start, end.Add(-time.Second)))
	assert.False(t, clock.SameDay(start, end))
}
