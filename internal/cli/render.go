package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/pmartell/agentsched/internal/server"
)

// Status styles
var (
	styleStatusRunning = lipgloss.NewStyle().
				Foreground(lipgloss.Color("yellow")).
				Bold(true)

	styleStatusCompleted = lipgloss.NewStyle().
				Foreground(lipgloss.Color("green")).
				Bold(true)

	styleStatusFailed = lipgloss.NewStyle().
				Foreground(lipgloss.Color("red")).
				Bold(true)

	styleStatusMuted = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))

	styleHeader = lipgloss.NewStyle().Bold(true)

	styleLabel = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

func renderStatus(status string, interrupted bool) string {
	switch status {
	case "running":
		return styleStatusRunning.Render(status)
	case "completed":
		return styleStatusCompleted.Render(status)
	case "failed":
		if interrupted {
			return styleStatusFailed.Render("interrupted")
		}
		return styleStatusFailed.Render(status)
	case "cancelled":
		return styleStatusMuted.Render(status)
	default:
		return styleStatusMuted.Render(status)
	}
}

// renderTaskTable lays out tasks in fixed-width columns. Styled cells are
// padded before styling so ANSI escapes don't skew the widths.
func renderTaskTable(tasks []server.TaskView) string {
	var b strings.Builder

	header := fmt.Sprintf("%-5s %-28s %-12s %-14s %s",
		"ID", "TITLE", "STATUS", "DEPENDS", "SESSION")
	b.WriteString(styleHeader.Render(header))
	b.WriteString("\n")

	for _, t := range tasks {
		display := t.Status
		if t.Status == "failed" && t.Interrupted {
			display = "interrupted"
		}
		padding := ""
		if n := 12 - len(display); n > 0 {
			padding = strings.Repeat(" ", n)
		}
		b.WriteString(fmt.Sprintf("%-5d %-28s %s %-14s %s\n",
			t.ID,
			truncate(t.Title, 28),
			renderStatus(t.Status, t.Interrupted)+padding,
			renderDeps(t.DependsOn),
			shortSession(t.SessionID)))
	}
	return b.String()
}

func renderTaskDetail(t *server.TaskView) string {
	var b strings.Builder
	line := func(label, value string) {
		b.WriteString(fmt.Sprintf("%s %s\n", styleLabel.Render(fmt.Sprintf("%-12s", label+":")), value))
	}

	line("Task", fmt.Sprintf("%d  %s", t.ID, t.Title))
	line("Status", renderStatus(t.Status, t.Interrupted))
	line("Depends", renderDeps(t.DependsOn))
	line("Cwd", t.Cwd)
	if t.SessionID != "" {
		line("Session", t.SessionID)
	}
	if t.LogPath != "" {
		line("Log", t.LogPath)
	}
	line("Created", t.CreatedAt.Local().Format(time.RFC3339))
	if t.StartedAt != nil {
		line("Started", t.StartedAt.Local().Format(time.RFC3339))
	}
	if t.FinishedAt != nil {
		line("Finished", t.FinishedAt.Local().Format(time.RFC3339))
	}
	if t.ExitInfo != "" {
		line("Exit", t.ExitInfo)
	}
	if t.Prompt != "" {
		b.WriteString(styleLabel.Render("Prompt:"))
		b.WriteString("\n")
		b.WriteString(t.Prompt)
		if !strings.HasSuffix(t.Prompt, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func renderDeps(deps []int64) string {
	if len(deps) == 0 {
		return "-"
	}
	parts := make([]string, len(deps))
	for i, d := range deps {
		parts[i] = strconv.FormatInt(d, 10)
	}
	return strings.Join(parts, ",")
}

func shortSession(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return "-"
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
