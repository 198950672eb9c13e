package schedule

import (
	"testing"
	"time"

	"github.com/facturo/facturo/internal/recurring/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestNext_DailyAndWeekly(t *testing.T) {
	next, err := Next(date(2024, time.March, 10), domain.FrequencyDaily)
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.March, 11), next)

	next, err = Next(date(2024, time.March, 10), domain.FrequencyWeekly)
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.March, 17), next)
}

func TestNext_MonthlyClampsToEndOfMonth(t *testing.T) {
	cases := []struct {
		name string
		from time.Time
		want time.Time
	}{
		{"jan 31 leap year", date(2024, time.January, 31), date(2024, time.February, 29)},
		{"jan 31 non-leap year", date(2023, time.January, 31), date(2023, time.February, 28)},
		{"mar 31 to apr 30", date(2024, time.March, 31), date(2024, time.April, 30)},
		{"mid month unaffected", date(2024, time.January, 15), date(2024, time.February, 15)},
		{"dec rolls into next year", date(2024, time.December, 15), date(2025, time.January, 15)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Next(tc.from, domain.FrequencyMonthly)
			require.NoError(t, err)
			assert.Equal(t, tc.want, next)
		})
	}
}

func TestNext_QuarterlyAndYearly(t *testing.T) {
	next, err := Next(date(2024, time.November, 30), domain.FrequencyQuarterly)
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.February, 28), next)

	next, err = Next(date(2024, time.February, 29), domain.FrequencyYearly)
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.February, 28), next)
}

func TestNext_InvalidFrequency(t *testing.T) {
	_, err := Next(date(2024, time.January, 1), domain.Frequency("fortnightly"))
	assert.ErrorIs(t, err, domain.ErrInvalidFrequency)
}

func TestNext_AnchoredToScheduleDateNotToday(t *testing.T) {
	// A delayed run still advances from the stored schedule date.
	from := date(2024, time.January, 15)
	next, err := Next(from, domain.FrequencyMonthly)
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.February, 15), next)
}

func TestDateOnly(t *testing.T) {
	ts := time.Date(2024, time.June, 3, 17, 45, 12, 999, time.FixedZone("UTC+7", 7*3600))
	assert.Equal(t, date(2024, time.June, 3), DateOnly(ts))
}

func TestDueOn(t *testing.T) {
	next := date(2024, time.May, 10)

	assert.True(t, DueOn(next, date(2024, time.May, 10)))
	assert.True(t, DueOn(next, date(2024, time.May, 11)))
	assert.False(t, DueOn(next, date(2024, time.May, 9)))

	// Time of day is ignored.
	assert.True(t, DueOn(next, time.Date(2024, time.May, 10, 0, 0, 1, 0, time.UTC)))
}

func TestAfter(t *testing.T) {
	assert.True(t, After(date(2024, time.May, 11), date(2024, time.May, 10)))
	assert.False(t, After(date(2024, time.May, 10), date(2024, time.May, 10)))
	assert.False(t, After(time.Date(2024, time.May, 10, 23, 0, 0, 0, time.UTC), date(2024, time.May, 10)))
}
