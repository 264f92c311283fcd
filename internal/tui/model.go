// Package tui renders the meeting: peer tiles, the chat transcript and
// the input line. It is a pure consumer of controller snapshots; all
// session logic lives in internal/session.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Kidhurshan/Meetly-Video-Conferencing-App/internal/session"
)

const transcriptLines = 12

// refreshMsg arrives whenever the controller has something new. ok is
// false once the session is torn down.
type refreshMsg struct{ ok bool }

// Model is the bubbletea model for one meeting.
type Model struct {
	ctrl     *session.Controller
	roomID   string
	userName string

	input textinput.Model
	snap  session.Snapshot
	width int
}

// New builds the meeting view.
func New(ctrl *session.Controller, roomID, userName string) Model {
	ti := textinput.New()
	ti.Placeholder = "Type a message and press Enter"
	ti.CharLimit = 512
	ti.Focus()

	return Model{
		ctrl:     ctrl,
		roomID:   roomID,
		userName: userName,
		input:    ti,
		snap:     ctrl.Snapshot(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForUpdate(m.ctrl))
}

func waitForUpdate(ctrl *session.Controller) tea.Cmd {
	return func() tea.Msg {
		_, ok := <-ctrl.Updates()
		return refreshMsg{ok: ok}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case refreshMsg:
		if !msg.ok {
			return m, tea.Quit
		}
		m.snap = m.ctrl.Snapshot()
		return m, waitForUpdate(m.ctrl)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.ctrl.Leave()
			return m, tea.Quit

		case "enter":
			m.ctrl.SendChatMessage(m.input.Value())
			m.input.Reset()
			return m, nil

		case "ctrl+t":
			m.ctrl.ToggleAudio()
			return m, nil

		case "ctrl+g":
			m.ctrl.ToggleVideo()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Meetly — room "+m.roomID) + "\n")
	b.WriteString(m.statusLine() + "\n\n")
	b.WriteString(m.peerTiles() + "\n")
	b.WriteString(m.transcript())
	b.WriteString("\n" + m.input.View() + "\n")
	b.WriteString(helpStyle.Render("enter send · ctrl+t mic · ctrl+g camera · esc leave"))

	return b.String()
}

func (m Model) statusLine() string {
	parts := []string{
		flag("signaling", m.snap.SignalingConnected),
		flag("peer link", m.snap.AdapterReady),
		flag("mic", m.snap.AudioEnabled),
		flag("camera", m.snap.VideoEnabled),
	}
	line := strings.Join(parts, "  ")
	if m.snap.LastError != nil {
		line += "  " + errorStyle.Render(m.snap.LastError.Error())
	}
	return line
}

func flag(label string, on bool) string {
	if on {
		return statusOnStyle.Render("● " + label)
	}
	return statusOffStyle.Render("○ " + label)
}

func (m Model) peerTiles() string {
	if len(m.snap.Peers) == 0 {
		return helpStyle.Render("Waiting for others to join...") + "\n"
	}

	tiles := make([]string, 0, len(m.snap.Peers))
	for _, p := range m.snap.Peers {
		media := "connecting"
		if p.Stream != nil {
			media = fmt.Sprintf("%d track(s)", len(p.Stream.Tracks()))
		}
		tiles = append(tiles, peerStyle.Render(p.Name+"\n"+media))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tiles...) + "\n"
}

func (m Model) transcript() string {
	msgs := m.snap.Messages
	if len(msgs) > transcriptLines {
		msgs = msgs[len(msgs)-transcriptLines:]
	}

	var b strings.Builder
	for _, msg := range msgs {
		b.WriteString(timeStyle.Render(msg.Timestamp.Format("15:04")) + " ")
		b.WriteString(senderStyle.Render(msg.SenderName) + ": ")
		b.WriteString(msg.Content + "\n")
	}
	return b.String()
}
