// Package models defines the domain types shared by the brain reset stages.
package models

// DailyNote is one calendar day's note as fetched from Craft. It only lives
// for the duration of a single request.
type DailyNote struct {
	ID      string `json:"id,omitempty"`
	Date    string `json:"date"` // YYYY-MM-DD
	Content string `json:"content"`
}

// LatestDate returns the greatest date among notes, or "" when notes is
// empty. Dates are ISO formatted so string comparison orders them.
func LatestDate(notes []DailyNote) string {
	latest := ""
	for _, n := range notes {
		if n.Date > latest {
			latest = n.Date
		}
	}
	return latest
}
