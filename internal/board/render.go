// Package board is the waiting-room screen: it follows the public display
// feed and draws both lanes in the terminal.
package board

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss/v2"

	"github.com/raptaro/meditrakk-sub001/internal/queue/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	laneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("86")).
			Padding(0, 2).
			Width(30)

	laneTitleStyle = lipgloss.NewStyle().Bold(true)

	servingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	waitingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))

	newBadgeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)
)

// Ticket formats the number patients see on the board, e.g. P-007.
func Ticket(lane models.Lane, number int) string {
	prefix := "R"
	if lane == models.LanePriority {
		prefix = "P"
	}
	return fmt.Sprintf("%s-%03d", prefix, number)
}

func renderLane(title string, lane models.Lane, entries []models.DisplayEntry) string {
	var b strings.Builder
	b.WriteString(laneTitleStyle.Render(title))
	b.WriteString("\n\n")
	if len(entries) == 0 {
		b.WriteString(waitingStyle.Render("Tidak ada antrian"))
		return laneStyle.Render(b.String())
	}
	for _, e := range entries {
		line := Ticket(lane, e.QueueNumber)
		if e.IsNewPatient {
			line += " " + newBadgeStyle.Render("baru")
		}
		if e.Status == models.StatusInProgress {
			b.WriteString(servingStyle.Render("▶ " + line + "  dilayani"))
		} else {
			b.WriteString(waitingStyle.Render("  " + line))
		}
		b.WriteString("\n")
	}
	return laneStyle.Render(strings.TrimRight(b.String(), "\n"))
}

// Render draws one display snapshot. stale marks a board that is running on
// the poll fallback.
func Render(snap models.DisplaySnapshot, stale bool) string {
	lanes := lipgloss.JoinHorizontal(lipgloss.Top,
		renderLane("PRIORITAS", models.LanePriority, snap.PriorityQueue),
		"  ",
		renderLane("REGULER", models.LaneRegular, snap.RegularQueue),
	)
	footer := "Diperbarui " + snap.GeneratedAt.Local().Format(time.TimeOnly)
	if stale {
		footer += " (offline, memuat ulang berkala)"
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("ANTRIAN POLIKLINIK"),
		lanes,
		footerStyle.Render(footer),
	)
}
