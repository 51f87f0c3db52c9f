package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/saishdhuri8/NFC4-CodeShot/internal/protocol"
)

const maxChatLines = 500

// ChatSource is where the chat view reads room events from.
type ChatSource struct {
	History          <-chan []protocol.ChatMessage
	Messages         <-chan protocol.ChatMessage
	UserConnected    <-chan protocol.PresencePayload
	UserDisconnected <-chan protocol.PresencePayload
	Errors           <-chan string
}

type (
	historyMsg      []protocol.ChatMessage
	incomingMsg     protocol.ChatMessage
	joinedMsg       protocol.PresencePayload
	leftMsg         protocol.PresencePayload
	serverErrorMsg  string
	disconnectedMsg struct{}
)

// next waits for the next room event. Any closed channel means the
// connection is gone.
func (src ChatSource) next() tea.Msg {
	select {
	case h, ok := <-src.History:
		if !ok {
			return disconnectedMsg{}
		}
		return historyMsg(h)
	case m, ok := <-src.Messages:
		if !ok {
			return disconnectedMsg{}
		}
		return incomingMsg(m)
	case p, ok := <-src.UserConnected:
		if !ok {
			return disconnectedMsg{}
		}
		return joinedMsg(p)
	case p, ok := <-src.UserDisconnected:
		if !ok {
			return disconnectedMsg{}
		}
		return leftMsg(p)
	case e, ok := <-src.Errors:
		if !ok {
			return disconnectedMsg{}
		}
		return serverErrorMsg(e)
	}
}

// ChatModel is the interactive room chat.
type ChatModel struct {
	room   RoomInfo
	src    ChatSource
	send   func(string) error
	input  textinput.Model
	lines  []string
	height int

	disconnected bool
	quitting     bool
}

// NewChatModel builds a chat view. send posts a line to the room.
func NewChatModel(room RoomInfo, src ChatSource, send func(string) error) *ChatModel {
	ti := textinput.New()
	ti.Placeholder = "Type a message, /quit to leave"
	ti.Prompt = "› "
	ti.CharLimit = 2000
	ti.Focus()

	return &ChatModel{
		room:   room,
		src:    src,
		send:   send,
		input:  ti,
		height: 20,
	}
}

func (m *ChatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.listen())
}

func (m *ChatModel) listen() tea.Cmd {
	return m.src.next
}

func (m *ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			return m, m.submit()
		}

	case tea.WindowSizeMsg:
		m.height = msg.Height
		m.input.Width = max(10, msg.Width-4)

	case historyMsg:
		m.ShowHistory(msg)
		return m, m.listen()

	case incomingMsg:
		m.appendLine(FormatChatMessage(protocol.ChatMessage(msg)))
		return m, m.listen()

	case joinedMsg:
		m.appendLine(SystemStyle.Render(fmt.Sprintf("%s joined as %s", msg.UserID, msg.Role)))
		return m, m.listen()

	case leftMsg:
		m.appendLine(SystemStyle.Render(fmt.Sprintf("%s left", msg.UserID)))
		return m, m.listen()

	case serverErrorMsg:
		m.appendLine(ErrorStyle.Render("server: " + string(msg)))
		return m, m.listen()

	case disconnectedMsg:
		m.disconnected = true
		m.appendLine(ErrorStyle.Render("disconnected from server"))
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *ChatModel) submit() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	m.input.Reset()

	switch text {
	case "":
		return nil
	case "/quit":
		m.quitting = true
		return tea.Quit
	}

	if err := m.send(text); err != nil {
		m.appendLine(ErrorStyle.Render("send failed: " + err.Error()))
	}
	return nil
}

// ShowHistory prints the room's earlier messages.
func (m *ChatModel) ShowHistory(history []protocol.ChatMessage) {
	if len(history) > 0 {
		m.appendLine(SystemStyle.Render(fmt.Sprintf("%d earlier messages", len(history))))
	}
	for _, c := range history {
		m.appendLine(FormatChatMessage(c))
	}
}

func (m *ChatModel) appendLine(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > maxChatLines {
		m.lines = m.lines[len(m.lines)-maxChatLines:]
	}
}

// Disconnected reports whether the chat ended because the connection dropped.
func (m *ChatModel) Disconnected() bool {
	return m.disconnected
}

func (m *ChatModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("%s %s  %s", IconChat, m.room.RoomID, MutedStyle.Render(m.room.UserID))))
	b.WriteString("\n")

	visible := max(1, m.height-5)
	start := max(0, len(m.lines)-visible)
	for _, line := range m.lines[start:] {
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(MutedStyle.Render("enter to send · esc to quit"))
	return b.String()
}

// FormatChatMessage renders one chat line.
func FormatChatMessage(c protocol.ChatMessage) string {
	who := c.UserID
	if c.Role != "" {
		who = fmt.Sprintf("%s (%s)", c.UserID, c.Role)
	}
	return fmt.Sprintf("%s %s: %s",
		TimestampStyle.Render(c.Timestamp.Local().Format("15:04")),
		RoleStyle(c.Role).Render(who),
		c.Text,
	)
}
