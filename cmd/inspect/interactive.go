package main

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/napigo/napigo"
	"github.com/napigo/napigo/engine"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	actionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	statStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateMenu modelState = iota
	stateInput
	stateShowResult
)

type actionInfo struct {
	name string
	desc string
}

var actions = []actionInfo{
	{"post", "post 25 increments from a background goroutine"},
	{"send", "blocking add from this goroutine"},
	{"gc", "run a collection cycle"},
	{"dispose", "dispose the runtime context"},
}

type inspectModel struct {
	err       error
	eng       *engine.Engine
	bridge    *demoBridge
	gcStress  bool
	queueHint int
	stats     bridgeStats
	result    string
	input     textinput.Model
	selected  int
	state     modelState
}

func newInspectModel(gcStress bool, queueHint int) *inspectModel {
	return &inspectModel{
		gcStress:  gcStress,
		queueHint: queueHint,
		state:     stateMenu,
	}
}

type readyMsg struct {
	err    error
	eng    *engine.Engine
	bridge *demoBridge
}

type tickMsg time.Time

type opMsg struct {
	err    error
	result string
}

func (m *inspectModel) Init() tea.Cmd {
	return tea.Batch(m.setup, tick())
}

func tick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *inspectModel) setup() tea.Msg {
	eng := engine.NewWithConfig(&engine.Config{QueueHint: m.queueHint, GCStress: m.gcStress})

	var bridge *demoBridge
	var err error
	eng.Do(func(env napigo.Env) {
		bridge, err = newDemoBridge(env, eng)
	})
	if err != nil {
		eng.Shutdown()
		return readyMsg{err: err}
	}
	return readyMsg{eng: eng, bridge: bridge}
}

func (m *inspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.state == stateInput && msg.String() == "q" {
				break // let the text input take the character
			}
			if m.eng != nil {
				m.eng.Shutdown()
			}
			return m, tea.Quit

		case "up", "k":
			if m.state == stateMenu && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateMenu && m.selected < len(actions)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateMenu:
				return m, m.runAction()
			case stateInput:
				return m, m.runSend()
			case stateShowResult:
				m.state = stateMenu
				m.result = ""
				m.err = nil
			}

		case "esc":
			if m.state == stateInput || m.state == stateShowResult {
				m.state = stateMenu
				m.result = ""
				m.err = nil
			}
		}

	case readyMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.eng = msg.eng
		m.bridge = msg.bridge
		m.stats = m.bridge.stats()

	case tickMsg:
		if m.bridge != nil {
			m.stats = m.bridge.stats()
		}
		return m, tick()

	case opMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInput {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *inspectModel) runAction() tea.Cmd {
	if m.bridge == nil {
		return nil
	}
	switch actions[m.selected].name {
	case "post":
		bridge := m.bridge
		return func() tea.Msg {
			var wg sync.WaitGroup
			wg.Add(25)
			bridge.postIncrements(25, &wg)
			wg.Wait()
			return opMsg{result: "25 increments delivered"}
		}

	case "send":
		ti := textinput.New()
		ti.Placeholder = "f64"
		ti.Prompt = "delta: "
		ti.Width = 20
		ti.Focus()
		m.input = ti
		m.state = stateInput
		return nil

	case "gc":
		bridge := m.bridge
		return func() tea.Msg {
			bridge.collect()
			return opMsg{result: fmt.Sprintf("collection done, %d pin(s) live", bridge.stats().Pins)}
		}

	case "dispose":
		bridge := m.bridge
		return func() tea.Msg {
			if err := bridge.dispose(); err != nil {
				return opMsg{result: "disposed", err: err}
			}
			return opMsg{result: "disposed cleanly"}
		}
	}
	return nil
}

func (m *inspectModel) runSend() tea.Cmd {
	bridge := m.bridge
	raw := m.input.Value()
	m.state = stateMenu
	return func() tea.Msg {
		delta, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return opMsg{err: fmt.Errorf("parse %q: %w", raw, err)}
		}
		n, err := bridge.sendAdd(delta)
		if err != nil {
			return opMsg{err: err}
		}
		return opMsg{result: fmt.Sprintf("counter = %v", n)}
	}
}

func (m *inspectModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if m.bridge == nil {
		return "Starting engine..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Bridge Inspector"))
	b.WriteString("\n\n")
	b.WriteString(m.formatStats())
	b.WriteString("\n\n")

	switch m.state {
	case stateMenu:
		for i, a := range actions {
			line := a.name + "  " + helpStyle.Render(a.desc)
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + a.name))
				b.WriteString("  " + helpStyle.Render(a.desc))
			} else {
				b.WriteString("  " + actionStyle.Render(a.name) + strings.TrimPrefix(line, a.name))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter run • q quit"))

	case stateInput:
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter send • esc back"))

	case stateShowResult:
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func (m *inspectModel) formatStats() string {
	return strings.Join([]string{
		"counter " + statStyle.Render(fmt.Sprintf("%v", m.stats.Count)),
		"pins " + statStyle.Render(strconv.Itoa(m.stats.Pins)),
		"keep-alive " + statStyle.Render(strconv.Itoa(m.stats.KeepAlive)),
		"async scopes " + statStyle.Render(strconv.Itoa(m.stats.AsyncScopes)),
	}, " • ")
}

func runInteractive(gcStress bool, queueHint int) error {
	p := tea.NewProgram(newInspectModel(gcStress, queueHint), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
