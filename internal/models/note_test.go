package models

import "testing"

func TestLatestDate(t *testing.T) {
	notes := []DailyNote{
		{Date: "2026-10-17"},
		{Date: "2026-10-19"},
		{Date: "2026-10-18"},
	}
	if got := LatestDate(notes); got != "2026-10-19" {
		t.Errorf("LatestDate = %q, want 2026-10-19", got)
	}
	if got := LatestDate(nil); got != "" {
		t.Errorf("LatestDate(nil) = %q, want empty", got)
	}
}
