// Package theme renders tasks for the terminal.
package theme

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/nhle/taskradar/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite  = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorBorder = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for table headers.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// HelpStyle is used for hints and empty-state text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// StatusStyle returns a color-coded style for a task status.
func StatusStyle(status model.Status) lipgloss.Style {
	base := cellStyle.Bold(true)

	switch status {
	case model.StatusPending:
		return base.Foreground(ColorBlue)
	case model.StatusInProgress:
		return base.Foreground(ColorYellow)
	case model.StatusCompleted:
		return base.Foreground(ColorGreen)
	default:
		return base.Foreground(ColorGray)
	}
}

// PriorityStyle returns a color-coded style for a task priority.
func PriorityStyle(priority model.Priority) lipgloss.Style {
	base := cellStyle.Bold(true)

	switch priority {
	case model.PriorityHigh:
		return base.Foreground(ColorRed)
	case model.PriorityMedium:
		return base.Foreground(ColorYellow)
	default:
		return base.Foreground(ColorGray)
	}
}

const (
	colStatus   = 2
	colPriority = 3
)

// TaskTable renders tasks as a bordered table.
func TaskTable(tasks []model.Task) string {
	if len(tasks) == 0 {
		return HelpStyle.Render("no tasks")
	}

	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{
			shortID(t.ID),
			t.Title,
			string(t.Status),
			string(t.Priority),
			string(t.Category),
			due(t.DueDate),
			sourceLabel(t),
		})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorBorder)).
		Headers("ID", "TITLE", "STATUS", "PRIORITY", "CATEGORY", "DUE", "SOURCE").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return HeaderStyle
			}
			switch col {
			case colStatus:
				return StatusStyle(tasks[row].Status)
			case colPriority:
				return PriorityStyle(tasks[row].Priority)
			}
			return cellStyle
		}).
		Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func due(d *time.Time) string {
	if d == nil {
		return "-"
	}
	return d.Local().Format("2006-01-02 15:04")
}

func sourceLabel(t model.Task) string {
	if t.SourceApp != nil && *t.SourceApp != "" {
		return fmt.Sprintf("%s (%s)", t.Source, *t.SourceApp)
	}
	return string(t.Source)
}
