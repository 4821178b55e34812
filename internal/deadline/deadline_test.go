package deadline_test

import (
	"testing"
	"time"

	"printline/internal/deadline"
)

func date(y int, m time.Month, d, hour int) time.Time {
	return time.Date(y, m, d, hour, 0, 0, 0, time.UTC)
}

func TestClassifyTiers(t *testing.T) {
	now := date(2024, time.March, 10, 9)
	cases := []struct {
		name      string
		due       time.Time
		wantDays  int
		wantTier  deadline.Tier
		wantLabel string
	}{
		{"due today late evening", date(2024, time.March, 10, 23), 0, deadline.TierCritical, "Due today"},
		{"due today earlier hour", date(2024, time.March, 10, 1), 0, deadline.TierCritical, "Due today"},
		{"tomorrow", date(2024, time.March, 11, 8), 1, deadline.TierCritical, "1 day remaining"},
		{"two days", date(2024, time.March, 12, 8), 2, deadline.TierCritical, "2 days remaining"},
		{"three days", date(2024, time.March, 13, 8), 3, deadline.TierWarning, "3 days remaining"},
		{"five days", date(2024, time.March, 15, 8), 5, deadline.TierWarning, "5 days remaining"},
		{"six days", date(2024, time.March, 16, 8), 6, deadline.TierUpcoming, "6 days remaining"},
		{"yesterday", date(2024, time.March, 9, 23), -1, deadline.TierOverdue, "1 day overdue"},
		{"a week late", date(2024, time.March, 3, 8), -7, deadline.TierOverdue, "7 days overdue"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := deadline.Classify(tc.due, now, 50, deadline.Thresholds{})
			if a.DaysRemaining != tc.wantDays {
				t.Fatalf("days = %d, want %d", a.DaysRemaining, tc.wantDays)
			}
			if a.Tier != tc.wantTier {
				t.Fatalf("tier = %s, want %s", a.Tier, tc.wantTier)
			}
			if a.Label != tc.wantLabel {
				t.Fatalf("label = %q, want %q", a.Label, tc.wantLabel)
			}
		})
	}
}

func TestClassifyCustomThresholds(t *testing.T) {
	now := date(2024, time.March, 10, 9)
	th := deadline.Thresholds{CriticalDays: 1, WarningDays: 3}
	if a := deadline.Classify(date(2024, time.March, 12, 8), now, 0, th); a.Tier != deadline.TierWarning {
		t.Fatalf("2 days with critical=1 should be warning, got %s", a.Tier)
	}
	if a := deadline.Classify(date(2024, time.March, 14, 8), now, 0, th); a.Tier != deadline.TierUpcoming {
		t.Fatalf("4 days with warning=3 should be upcoming, got %s", a.Tier)
	}
}

func TestClassifyIdempotent(t *testing.T) {
	now := date(2024, time.March, 10, 9)
	due := date(2024, time.March, 12, 8)
	first := deadline.Classify(due, now, 75, deadline.Thresholds{})
	second := deadline.Classify(due, now, 75, deadline.Thresholds{})
	if first != second {
		t.Fatalf("classify not idempotent: %+v vs %+v", first, second)
	}
}

func TestClassifyClampsProgress(t *testing.T) {
	now := date(2024, time.March, 10, 9)
	if a := deadline.Classify(now, now, 250, deadline.Thresholds{}); a.Progress != 100 {
		t.Fatalf("progress = %d, want 100", a.Progress)
	}
	if a := deadline.Classify(now, now, -5, deadline.Thresholds{}); a.Progress != 0 {
		t.Fatalf("progress = %d, want 0", a.Progress)
	}
}
