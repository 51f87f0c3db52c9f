package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/saishdhuri8/NFC4-CodeShot/internal/protocol"
)

func newTable(headers []string, rows [][]string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})
}

// ParticipantTable renders a room roster.
func ParticipantTable(participants []protocol.Participant, now time.Time) string {
	if len(participants) == 0 {
		return MutedStyle.Render("Nobody else is in the room")
	}

	rows := make([][]string, 0, len(participants))
	for i, p := range participants {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			p.UserID,
			p.Role,
			FormatAgo(now.Sub(p.JoinedAt)),
		})
	}
	return newTable([]string{"#", "User", "Role", "Joined"}, rows).Render()
}

// HealthView renders a /health snapshot.
func HealthView(status protocol.HealthStatus) string {
	rows := [][]string{
		{"Status", status.Status},
		{"Active Rooms", fmt.Sprintf("%d", status.ActiveRooms)},
		{"Participants", fmt.Sprintf("%d", status.TotalParticipants)},
		{"Uptime", FormatUptime(status.Uptime)},
		{"Timestamp", status.Timestamp.Format(time.RFC3339)},
	}
	return newTable([]string{"Metric", "Value"}, rows).Render()
}

type RoomInfo struct {
	RoomID string
	UserID string
	Role   string
}

func (r RoomInfo) View() string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(Success).
		Padding(1, 2)

	content := fmt.Sprintf("%s Interview Room\n\n%s Room ID:  %s\n%s You:      %s",
		IconRoom,
		IconCopy, BoldStyle.Foreground(Primary).Render(r.RoomID),
		IconPeer, RoleStyle(r.Role).Render(fmt.Sprintf("%s (%s)", r.UserID, r.Role)),
	)
	return boxStyle.Render(content)
}

// FormatAgo renders a coarse "time since" label.
func FormatAgo(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh%02dm ago", int(d.Hours()), int(d.Minutes())%60)
	}
}

// FormatUptime renders seconds as h/m/s.
func FormatUptime(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
