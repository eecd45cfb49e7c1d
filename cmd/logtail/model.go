package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	jsoniter "github.com/json-iterator/go"

	"tradehook/internal/client/dispatch"
	"tradehook/internal/client/logstream"
	"tradehook/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	cursorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	payloadStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)

	statusStyles = map[string]lipgloss.Style{
		models.WebhookStatusReceived: lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		models.WebhookStatusIgnored:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		models.WebhookStatusRejected: lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	}
)

// mailbox - последний снимок от потока
//
// Render не блокируется: при медленном UI промежуточные снимки
// заменяются более новыми.
type mailbox struct {
	mu      sync.Mutex
	entries []models.WebhookLog
	ready   chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{ready: make(chan struct{}, 1)}
}

func (m *mailbox) Render(entries []models.WebhookLog) {
	m.mu.Lock()
	m.entries = entries
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
}

// wait - команда ожидания следующего снимка
func (m *mailbox) wait() tea.Cmd {
	return func() tea.Msg {
		<-m.ready
		m.mu.Lock()
		defer m.mu.Unlock()
		return entriesMsg(m.entries)
	}
}

type entriesMsg []models.WebhookLog

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// model - таблица логов в терминале
type model struct {
	title    string
	sub      *logstream.Subscription
	box      *mailbox
	expanded *logstream.Expanded
	actions  *dispatch.Table

	entries   []models.WebhookLog
	cursor    int
	connected bool
	focused   bool
	lastErr   string
}

func newModel(title string, sub *logstream.Subscription, box *mailbox) *model {
	m := &model{
		title:    title,
		sub:      sub,
		box:      box,
		expanded: logstream.NewExpanded(),
		actions:  dispatch.New(),
		focused:  true,
	}
	dispatch.Bind(m.actions, dispatch.Page{Stream: sub, Expanded: m.expanded})
	return m
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(m.box.wait(), tick())
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.sub.Close()
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.entries)-1 {
				m.cursor++
			}
		case "enter", " ":
			if m.cursor < len(m.entries) {
				m.dispatch(dispatch.Event{Action: dispatch.ActionExpandRow, RowID: m.entries[m.cursor].ID})
			}
		}

	case tea.FocusMsg:
		m.focused = true
		m.dispatch(dispatch.Event{Action: dispatch.ActionVisibilityChange, Flag: true})

	case tea.BlurMsg:
		m.focused = false
		m.dispatch(dispatch.Event{Action: dispatch.ActionVisibilityChange, Flag: false})

	case entriesMsg:
		m.entries = msg
		if m.cursor >= len(m.entries) {
			m.cursor = max(len(m.entries)-1, 0)
		}
		return m, m.box.wait()

	case tickMsg:
		m.connected = m.sub.Connected()
		return m, tick()
	}

	return m, nil
}

func (m *model) dispatch(ev dispatch.Event) {
	if err := m.actions.Dispatch(context.Background(), ev); err != nil {
		m.lastErr = err.Error()
	}
}

func (m *model) View() string {
	var b strings.Builder

	state := "connected"
	switch {
	case !m.focused:
		state = "paused"
	case !m.connected:
		state = "reconnecting"
	}
	b.WriteString(headerStyle.Render(fmt.Sprintf("%s  [%s]  %d entries", m.title, state, len(m.entries))))
	b.WriteString("\n\n")

	if len(m.entries) == 0 {
		b.WriteString(dimStyle.Render("No webhook logs yet."))
		b.WriteString("\n")
	}

	for i, e := range m.entries {
		line := fmt.Sprintf("%s  %-24s  %s",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			truncate(e.AutomationName, 24),
			statusStyle(e.Status).Render(fmt.Sprintf("%-8s", e.Status)),
		)
		if i == m.cursor {
			b.WriteString(cursorStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")

		if m.expanded.IsExpanded(e.ID) {
			b.WriteString(payloadStyle.Render(prettyPayload(e.Payload)))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	if m.lastErr != "" {
		b.WriteString(statusStyle(models.WebhookStatusRejected).Render(m.lastErr))
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render("↑/↓ move • enter expand • q quit"))
	return b.String()
}

func statusStyle(status string) lipgloss.Style {
	if s, ok := statusStyles[status]; ok {
		return s
	}
	return dimStyle
}

// prettyPayload - payload с отступами, невалидный JSON как есть
func prettyPayload(raw []byte) string {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(out)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
