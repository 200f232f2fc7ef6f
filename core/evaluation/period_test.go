package evaluation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in      string
		want    Period
		wantErr error
	}{
		{in: "", want: PeriodAll},
		{in: "all", want: PeriodAll},
		{in: " Current_Month ", want: PeriodCurrentMonth},
		{in: "previous_month", want: PeriodPreviousMonth},
		{in: "last_3_months", want: PeriodLast3Months},
		{in: "last_6_months", want: PeriodLast6Months},
		{in: "last_year", wantErr: ErrInvalidPeriod},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePeriod(tt.in)
			assert.Equal(t, tt.wantErr, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPeriod_Window(t *testing.T) {
	now := date(2024, time.March, 15, 10)

	tests := []struct {
		name     string
		period   Period
		now      time.Time
		wantFrom time.Time
		wantTo   time.Time
	}{
		{name: "current month", period: PeriodCurrentMonth, now: now, wantFrom: date(2024, time.March, 1, 0), wantTo: date(2024, time.April, 1, 0)},
		{name: "current month (december)", period: PeriodCurrentMonth, now: date(2023, time.December, 31, 23), wantFrom: date(2023, time.December, 1, 0), wantTo: date(2024, time.January, 1, 0)},
		{name: "previous month", period: PeriodPreviousMonth, now: now, wantFrom: date(2024, time.February, 1, 0), wantTo: date(2024, time.March, 1, 0)},
		{name: "previous month (january rollover)", period: PeriodPreviousMonth, now: date(2024, time.January, 10, 8), wantFrom: date(2023, time.December, 1, 0), wantTo: date(2024, time.January, 1, 0)},
		{name: "last 3 months", period: PeriodLast3Months, now: now, wantFrom: date(2023, time.December, 15, 10), wantTo: now},
		{name: "last 6 months", period: PeriodLast6Months, now: now, wantFrom: date(2023, time.September, 15, 10), wantTo: now},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to := tt.period.Window(tt.now)
			assert.True(t, from.Equal(tt.wantFrom), "from = %v; want %v", from, tt.wantFrom)
			assert.True(t, to.Equal(tt.wantTo), "to = %v; want %v", to, tt.wantTo)
		})
	}
}

func TestFilterByPeriod(t *testing.T) {
	now := date(2024, time.January, 20, 12)
	evals := []Evaluation{
		{ID: "future", CreatedAt: date(2024, time.February, 1, 0)},
		{ID: "jan-1", CreatedAt: date(2024, time.January, 1, 0)},
		{ID: "dec-31", CreatedAt: time.Date(2023, time.December, 31, 23, 59, 59, 0, time.UTC)},
		{ID: "dec-1", CreatedAt: date(2023, time.December, 1, 0)},
		{ID: "nov-30", CreatedAt: date(2023, time.November, 30, 0)},
		{ID: "oct-20", CreatedAt: date(2023, time.October, 20, 12)},
		{ID: "oct-19", CreatedAt: date(2023, time.October, 19, 12)},
		{ID: "jul-20", CreatedAt: date(2023, time.July, 20, 12)},
		{ID: "jan-2023", CreatedAt: date(2023, time.January, 20, 12)},
	}
	ids := func(evs []Evaluation) []string {
		out := make([]string, 0, len(evs))
		for _, ev := range evs {
			out = append(out, ev.ID)
		}
		return out
	}

	tests := []struct {
		period Period
		want   []string
	}{
		{period: PeriodCurrentMonth, want: []string{"jan-1"}},
		{period: PeriodPreviousMonth, want: []string{"dec-31", "dec-1"}},
		{period: PeriodLast3Months, want: []string{"jan-1", "dec-31", "dec-1", "nov-30", "oct-20"}},
		{period: PeriodLast6Months, want: []string{"jan-1", "dec-31", "dec-1", "nov-30", "oct-20", "oct-19", "jul-20"}},
		{period: PeriodAll, want: ids(evals)},
		{period: Period("lol"), want: []string{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			got := FilterByPeriod(evals, tt.period, now)
			require.Equal(t, tt.want, ids(got))
			for _, ev := range got {
				assert.True(t, tt.period.Includes(ev.CreatedAt, now))
				assert.Contains(t, evals, ev)
			}
		})
	}
}
