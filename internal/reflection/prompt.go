package reflection

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/starford/brainreset/internal/models"
)

// Fallback is returned when the gateway answers without completion text.
const Fallback = "Unable to generate reflection."

// Section headers the model must produce, in order.
var Sections = []string{
	"## 🎯 Key Themes",
	"## ✅ Decisions Made",
	"## 🔄 Open Loops",
	"## ⚡ Next Actions",
	"## 💡 Insights & Patterns",
	"## 🧭 The One Thing",
	"## 🔒 Closure Prompts",
}

// CombineNotes sorts notes ascending by date and joins them as dated
// Markdown sections separated by horizontal rules. notes is not modified.
func CombineNotes(notes []models.DailyNote) string {
	sorted := make([]models.DailyNote, len(notes))
	copy(sorted, notes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	parts := make([]string, len(sorted))
	for i, n := range sorted {
		parts[i] = "## " + n.Date + "\n" + n.Content
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// PeriodLabel names the period covered by days.
func PeriodLabel(days int) string {
	switch {
	case days <= 1:
		return "daily"
	case days <= 7:
		return "weekly"
	case days <= 14:
		return "bi-weekly"
	default:
		return "monthly"
	}
}

// Title returns the document heading, labelled with the ISO calendar week
// (or weeks) that end at now.
func Title(days int, now time.Time) string {
	period := map[string]string{
		"daily":     "Daily",
		"weekly":    "Weekly",
		"bi-weekly": "Bi-Weekly",
		"monthly":   "Monthly",
	}[PeriodLabel(days)]

	year, week := now.ISOWeek()
	if days <= 7 {
		return fmt.Sprintf("%s Brain Reset (Week %d, %d)", period, week, year)
	}
	startYear, startWeek := now.AddDate(0, 0, -(days - 1)).ISOWeek()
	if startYear != year {
		return fmt.Sprintf("%s Brain Reset (Week %d, %d to Week %d, %d)", period, startWeek, startYear, week, year)
	}
	return fmt.Sprintf("%s Brain Reset (Weeks %d-%d, %d)", period, startWeek, week, year)
}

func itemCount(days int) string {
	if days <= 1 {
		return "2-3"
	}
	return "3-5"
}

// SystemPrompt returns the instructions sent as the system message.
func SystemPrompt(days int, now time.Time) string {
	label := PeriodLabel(days)
	n := itemCount(days)

	var b strings.Builder
	fmt.Fprintf(&b, "You are a thoughtful assistant helping a knowledge worker reflect on their %s notes.\n", label)
	fmt.Fprintf(&b, "Analyze their daily notes and create a structured %s reflection document.\n\n", label)
	b.WriteString("Your output must be in Markdown format with these exact sections:\n")
	fmt.Fprintf(&b, "# %s\n\n", Title(days, now))
	fmt.Fprintf(&b, "%s\nIdentify %s recurring themes, topics, or focus areas.\n\n", Sections[0], n)
	fmt.Fprintf(&b, "%s\nList important decisions that were made or conclusions that were reached.\n\n", Sections[1])
	fmt.Fprintf(&b, "%s\nIdentify unfinished tasks, pending items, or things that need follow-up.\n\n", Sections[2])
	fmt.Fprintf(&b, "%s\nSuggest %s concrete next actions based on the content.\n\n", Sections[3], n)
	fmt.Fprintf(&b, "%s\nShare any interesting patterns, insights, or observations.\n\n", Sections[4])
	fmt.Fprintf(&b, "%s\nIn a single sentence, name the most important thing to focus on next.\n\n", Sections[5])
	fmt.Fprintf(&b, "%s\nWrite 2-3 short questions that help close out this period.\n\n", Sections[6])
	b.WriteString("Be concise but insightful. Use bullet points. Focus on what matters.")
	return b.String()
}

// UserPrompt returns the user message carrying the combined notes.
func UserPrompt(days int, combined string) string {
	plural := "s"
	if days == 1 {
		plural = ""
	}
	return fmt.Sprintf("Here are my daily notes from the past %d day%s. Please create a %s reflection:\n\n%s",
		days, plural, PeriodLabel(days), combined)
}
