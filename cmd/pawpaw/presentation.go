package main

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/MarcoPoloResearchLab/pawpaw/internal/activities"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// categoryStyle is the display metadata the core model does not carry.
type categoryStyle struct {
	label string
	icon  string
	color lipgloss.Color
}

var categoryStyles = map[activities.Category]categoryStyle{
	activities.CategoryPee:   {label: "Pee", icon: "💧", color: lipgloss.Color("#00BCD4")},
	activities.CategoryPoo:   {label: "Poo", icon: "💩", color: lipgloss.Color("#8D6E63")},
	activities.CategoryEat:   {label: "Eat", icon: "🍖", color: lipgloss.Color("#4CAF50")},
	activities.CategoryPlay:  {label: "Play", icon: "🎾", color: lipgloss.Color("#FF9800")},
	activities.CategoryWalk:  {label: "Walk", icon: "🐾", color: lipgloss.Color("#3F51B5")},
	activities.CategoryOther: {label: "Other", icon: "⭐", color: lipgloss.Color("#9E9E9E")},
}

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F7DC6F"))
)

func styleFor(category activities.Category) categoryStyle {
	if style, ok := categoryStyles[category]; ok {
		return style
	}
	return categoryStyles[activities.CategoryOther]
}

func categoryLabel(category activities.Category) string {
	style := styleFor(category)
	return lipgloss.NewStyle().Foreground(style.color).Bold(true).Render(style.icon + " " + style.label)
}

// formatDuration renders whole minutes, e.g. "10 min".
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%d min", int(d/time.Minute))
}

// shade maps a histogram count to an opacity between 0.15 and 1.
func shade(count, max int) float64 {
	if max < 1 {
		max = 1
	}
	return 0.15 + 0.85*float64(count)/float64(max)
}

var shadeGlyphs = []string{"·", "░", "▒", "▓", "█"}

func shadeGlyph(opacity float64) string {
	if opacity <= 0.15 {
		return shadeGlyphs[0]
	}
	step := int(math.Ceil((opacity - 0.15) / 0.85 * float64(len(shadeGlyphs)-1)))
	if step >= len(shadeGlyphs) {
		step = len(shadeGlyphs) - 1
	}
	return shadeGlyphs[step]
}

func formatRecordLine(record activities.Record, loc *time.Location) string {
	start := record.StartTime.In(loc)
	line := fmt.Sprintf("%s  %-10s %s  %s",
		start.Format("15:04"),
		categoryLabel(record.Category),
		formatDuration(record.Duration()),
		dimStyle.Render(record.ID))
	if note := record.NoteText(); note != "" {
		line += "\n       " + note
	}
	return line
}

func formatDay(day time.Time, now time.Time) string {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, day.Location())
	switch {
	case day.Equal(today):
		return "Today"
	case day.Equal(today.AddDate(0, 0, -1)):
		return "Yesterday"
	default:
		return day.Format("Mon, Jan 2 2006")
	}
}

// confirmFunc asks the user a yes/no question.
type confirmFunc func(title, description string) (bool, error)

func confirmWithPrompt(title, description string) (bool, error) {
	confirmed := false
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Yes").
				Negative("No").
				Value(&confirmed),
		),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	return confirmed, nil
}
