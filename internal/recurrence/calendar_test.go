package recurrence

import (
	"testing"
	"time"

	"github.com/mmynk/sharedledger/internal/models"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestAdvance(t *testing.T) {
	tests := []struct {
		name string
		rule models.RecurrenceRule
		from time.Time
		want time.Time
	}{
		{"none is a no-op", models.RuleNone, date(2024, 5, 17), date(2024, 5, 17)},
		{"daily", models.RuleDaily, date(2024, 5, 17), date(2024, 5, 18)},
		{"daily across month end", models.RuleDaily, date(2024, 1, 31), date(2024, 2, 1)},
		{"daily across year end", models.RuleDaily, date(2023, 12, 31), date(2024, 1, 1)},
		{"daily into leap day", models.RuleDaily, date(2024, 2, 28), date(2024, 2, 29)},
		{"weekly", models.RuleWeekly, date(2024, 5, 17), date(2024, 5, 24)},
		{"weekly across month end", models.RuleWeekly, date(2024, 2, 26), date(2024, 3, 4)},
		{"monthly same day", models.RuleMonthly, date(2024, 5, 17), date(2024, 6, 17)},
		{"monthly jan 31 non-leap", models.RuleMonthly, date(2023, 1, 31), date(2023, 2, 28)},
		{"monthly jan 31 leap", models.RuleMonthly, date(2024, 1, 31), date(2024, 2, 29)},
		{"monthly jan 30 non-leap", models.RuleMonthly, date(2023, 1, 30), date(2023, 2, 28)},
		{"monthly jan 29 leap", models.RuleMonthly, date(2024, 1, 29), date(2024, 2, 29)},
		{"monthly mar 31", models.RuleMonthly, date(2023, 3, 31), date(2023, 4, 30)},
		{"monthly aug 31", models.RuleMonthly, date(2023, 8, 31), date(2023, 9, 30)},
		{"monthly december rolls year", models.RuleMonthly, date(2023, 12, 31), date(2024, 1, 31)},
		{"monthly feb 28 stays 28", models.RuleMonthly, date(2023, 2, 28), date(2023, 3, 28)},
		{"unknown rule is a no-op", models.RecurrenceRule("YEARLY"), date(2024, 5, 17), date(2024, 5, 17)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Advance(tt.rule, tt.from)
			if !got.Equal(tt.want) {
				t.Errorf("Advance(%s, %s) = %s, want %s",
					tt.rule, tt.from.Format(time.DateOnly), got.Format(time.DateOnly), tt.want.Format(time.DateOnly))
			}
		})
	}
}

func TestAdvancePreservesTimeOfDay(t *testing.T) {
	from := time.Date(2023, 1, 31, 18, 45, 12, 0, time.UTC)
	want := time.Date(2023, 2, 28, 18, 45, 12, 0, time.UTC)

	if got := Advance(models.RuleMonthly, from); !got.Equal(want) {
		t.Errorf("Advance() = %s, want %s", got, want)
	}
}

func TestAdvanceNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	// 2024-03-01 02:00 in UTC+9 is 2024-02-29 17:00 UTC.
	from := time.Date(2024, 3, 1, 2, 0, 0, 0, loc)
	want := time.Date(2024, 3, 1, 17, 0, 0, 0, time.UTC)

	got := Advance(models.RuleDaily, from)
	if !got.Equal(want) || got.Location() != time.UTC {
		t.Errorf("Advance() = %s, want %s", got, want)
	}
}

func TestAdvanceIsDeterministic(t *testing.T) {
	from := date(2024, 1, 31)
	first := Advance(models.RuleMonthly, from)
	for i := 0; i < 10; i++ {
		if got := Advance(models.RuleMonthly, from); !got.Equal(first) {
			t.Fatalf("call %d returned %s, want %s", i, got, first)
		}
	}
	if !from.Equal(date(2024, 1, 31)) {
		t.Fatalf("input was modified: %s", from)
	}
}

func TestAdvanceMonthlyClampPersists(t *testing.T) {
	// Once clamped, the series continues from the clamped day.
	d := date(2023, 1, 31)
	want := []time.Time{date(2023, 2, 28), date(2023, 3, 28), date(2023, 4, 28)}
	for i, w := range want {
		d = Advance(models.RuleMonthly, d)
		if !d.Equal(w) {
			t.Fatalf("step %d = %s, want %s", i+1, d.Format(time.DateOnly), w.Format(time.DateOnly))
		}
	}
}
