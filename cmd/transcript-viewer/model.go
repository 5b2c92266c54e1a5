package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ai-care-assistant-service/internal/models"
	"ai-care-assistant-service/internal/service/scroll"
)

// cellHeight converts terminal rows into the nominal units the scroll
// threshold is configured in.
const cellHeight = 20

var (
	titleStyle     = lipgloss.NewStyle().Bold(true)
	statusStyle    = lipgloss.NewStyle().Faint(true)
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	partialStyle   = lipgloss.NewStyle().Italic(true).Faint(true)
	jumpStyle      = lipgloss.NewStyle().Reverse(true)
)

type frameMsg models.StreamFrame

type statusMsg string

// scrollFireMsg carries a scroll controller callback onto the update loop
// so it touches the viewport on the same goroutine as everything else.
type scrollFireMsg struct {
	fn func()
}

// teaScheduler delivers scroll timers through send.
func teaScheduler(send func(tea.Msg)) scroll.Scheduler {
	return func(d time.Duration, fn func()) func() bool {
		return time.AfterFunc(d, func() { send(scrollFireMsg{fn: fn}) }).Stop
	}
}

type model struct {
	conversationID string
	vp             viewport.Model
	ready          bool
	messages       []models.DisplayMessage
	status         string
	ctrl           *scroll.Controller
}

// terminalViewport adapts the bubbles viewport to the scroll controller.
type terminalViewport struct {
	m *model
}

func (t terminalViewport) Measure() (scroll.Position, bool) {
	if !t.m.ready {
		return scroll.Position{}, false
	}
	return scroll.Position{
		Offset:         t.m.vp.YOffset * cellHeight,
		ContentHeight:  t.m.vp.TotalLineCount() * cellHeight,
		ViewportHeight: t.m.vp.Height * cellHeight,
	}, true
}

func (t terminalViewport) ScrollToBottom() {
	t.m.vp.GotoBottom()
}

func newModel(conversationID string, opts ...scroll.Option) *model {
	m := &model{conversationID: conversationID, status: "connecting"}
	m.ctrl = scroll.NewController(terminalViewport{m: m}, opts...)
	return m
}

func (m *model) Init() tea.Cmd {
	return nil
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		height := msg.Height - 2
		if height < 1 {
			height = 1
		}
		if !m.ready {
			m.vp = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.vp.Width = msg.Width
			m.vp.Height = height
		}
		m.render()
		m.ctrl.NotifyContentChanged()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.ctrl.Close()
			return m, tea.Quit
		case "G", "end":
			m.ctrl.JumpToLatest()
			return m, nil
		}
		return m, m.scrollViewport(msg)

	case tea.MouseMsg:
		return m, m.scrollViewport(msg)

	case frameMsg:
		m.messages = applyFrame(m.messages, models.StreamFrame(msg))
		m.render()
		m.ctrl.NotifyContentChanged()
		return m, nil

	case scrollFireMsg:
		msg.fn()
		return m, nil

	case statusMsg:
		m.status = string(msg)
		return m, nil
	}
	return m, nil
}

// scrollViewport forwards user input to the viewport and reports the
// resulting position to the controller.
func (m *model) scrollViewport(msg tea.Msg) tea.Cmd {
	if !m.ready {
		return nil
	}
	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	m.ctrl.OnScroll()
	return cmd
}

func (m *model) render() {
	if !m.ready {
		return
	}
	width := m.vp.Width
	if width < 10 {
		width = 10
	}

	var b strings.Builder
	for i, msg := range m.messages {
		if i > 0 {
			b.WriteString("\n")
		}
		label := assistantStyle.Render("assistant")
		if msg.Role == models.RoleUser {
			label = userStyle.Render("you")
		}
		text := msg.Text
		if !msg.IsFinal {
			text = partialStyle.Render(text + " ...")
		}
		b.WriteString(lipgloss.NewStyle().Width(width).Render(label + "  " + text))
	}
	m.vp.SetContent(b.String())
}

func (m *model) View() string {
	if !m.ready {
		return "loading..."
	}
	header := titleStyle.Render("conversation "+m.conversationID) + "  " + statusStyle.Render(m.status)

	footer := statusStyle.Render(fmt.Sprintf("%d messages  q quit", len(m.messages)))
	if m.ctrl.ShowJumpToLatest() {
		footer = jumpStyle.Render(" new messages below, press G to jump to latest ")
	}
	return header + "\n" + m.vp.View() + "\n" + footer
}

// applyFrame folds a stream frame into the local message list.
func applyFrame(msgs []models.DisplayMessage, f models.StreamFrame) []models.DisplayMessage {
	switch f.Type {
	case models.FrameSnapshot:
		return append([]models.DisplayMessage(nil), f.Messages...)
	case models.FrameUpsert:
		if f.Message == nil || f.Position < 0 {
			return msgs
		}
		if f.Position < len(msgs) {
			msgs[f.Position] = *f.Message
			return msgs
		}
		if f.Created && f.Position == len(msgs) {
			return append(msgs, *f.Message)
		}
	}
	return msgs
}
