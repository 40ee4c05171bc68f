package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/wippyai/wasm-submemory/host"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
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
	stateSelectFunc modelState = iota
	stateInputArgs
	stateShowResult
)

type interactiveModel struct {
	err      error
	host     *host.Host
	opts     options
	status   string
	result   string
	funcs    []funcInfo
	inputs   []textinput.Model
	selected int
	focusIdx int
	current  uint32
	state    modelState
}

func newInteractiveModel(opts options) *interactiveModel {
	return &interactiveModel{
		opts:  opts,
		state: stateSelectFunc,
	}
}

type loadedMsg struct {
	err   error
	host  *host.Host
	funcs []funcInfo
}

type callResultMsg struct {
	err    error
	result string
}

type hostMsg struct {
	err     error
	status  string
	current uint32
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadModule
}

func (m *interactiveModel) loadModule() tea.Msg {
	ctx := context.Background()

	data, err := load(m.opts)
	if err != nil {
		return loadedMsg{err: err}
	}

	all, err := exportedFuncs(data)
	if err != nil {
		return loadedMsg{err: err}
	}
	var funcs []funcInfo
	for _, f := range all {
		if !f.bookkeeping {
			funcs = append(funcs, f)
		}
	}
	if len(funcs) == 0 {
		return loadedMsg{err: errors.New("module exports no functions")}
	}

	h, err := host.New(ctx, data, nil)
	if err != nil {
		return loadedMsg{err: err}
	}
	if _, err := h.Add(ctx); err != nil {
		h.Close(ctx)
		return loadedMsg{err: err}
	}
	return loadedMsg{host: h, funcs: funcs}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.state == stateInputArgs && msg.String() != "ctrl+c" && !isNavKey(msg.String()) {
			break
		}
		switch msg.String() {
		case "ctrl+c", "q":
			if m.host != nil {
				m.host.Close(context.Background())
			}
			return m, tea.Quit

		case "up", "k":
			if m.state == stateSelectFunc && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectFunc && m.selected < len(m.funcs)-1 {
				m.selected++
			}

		case "a":
			if m.state == stateSelectFunc && m.host != nil {
				return m, m.addSubmemory
			}

		case "r":
			if m.state == stateSelectFunc && m.host != nil {
				return m, m.resetSubmemory
			}

		case "left", "h":
			if m.state == stateSelectFunc && m.current > 0 {
				m.current--
				m.status = ""
			}

		case "right", "l":
			if m.state == stateSelectFunc && m.host != nil && m.current+1 < m.host.Count() {
				m.current++
				m.status = ""
			}

		case "enter":
			switch m.state {
			case stateSelectFunc:
				if len(m.funcs) == 0 {
					break
				}
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.callFunction
				}
				m.state = stateInputArgs

			case stateInputArgs:
				return m, m.callFunction

			case stateShowResult:
				m.state = stateSelectFunc
				m.result = ""
				m.err = nil
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectFunc
				m.inputs = nil
			case stateShowResult:
				m.state = stateSelectFunc
				m.result = ""
				m.err = nil
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.funcs = msg.funcs
		m.host = msg.host

	case hostMsg:
		if msg.err != nil {
			m.status = errorStyle.Render(msg.err.Error())
			return m, nil
		}
		m.status = msg.status
		m.current = msg.current

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

// isNavKey reports whether key keeps its meaning while typing arguments.
func isNavKey(key string) bool {
	switch key {
	case "enter", "tab", "esc":
		return true
	}
	return false
}

func (m *interactiveModel) addSubmemory() tea.Msg {
	idx, err := m.host.Add(context.Background())
	if err != nil {
		return hostMsg{err: err, current: m.current}
	}
	return hostMsg{status: fmt.Sprintf("added submemory %d", idx), current: idx}
}

func (m *interactiveModel) resetSubmemory() tea.Msg {
	if err := m.host.Reset(context.Background(), m.current); err != nil {
		return hostMsg{err: err, current: m.current}
	}
	return hostMsg{status: fmt.Sprintf("reset submemory %d", m.current), current: m.current}
}

func (m *interactiveModel) prepareInputs() {
	f := m.funcs[m.selected]
	m.inputs = make([]textinput.Model, len(f.params))
	for i, p := range f.params {
		ti := textinput.New()
		ti.Placeholder = p.String()
		ti.Prompt = fmt.Sprintf("arg%d: ", i)
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *interactiveModel) callFunction() tea.Msg {
	if m.host == nil {
		return callResultMsg{err: errors.New("module not loaded")}
	}

	f := m.funcs[m.selected]
	args := make([]uint64, len(m.inputs))
	for i, input := range m.inputs {
		v, err := parseArg(input.Value(), f.params[i])
		if err != nil {
			return callResultMsg{err: fmt.Errorf("arg%d: %w", i, err)}
		}
		args[i] = v
	}

	res, err := m.host.Call(context.Background(), m.current, f.name, args...)
	if err != nil {
		return callResultMsg{err: err}
	}
	return callResultMsg{result: formatResults(res, f.results)}
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if m.host == nil {
		return "Loading module..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Submemory Explorer"))
	b.WriteString(" ")
	b.WriteString(m.opts.input)
	b.WriteString("\n")
	b.WriteString(m.header())
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectFunc:
		b.WriteString("Select a function to call:\n\n")
		for i, f := range m.funcs {
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + f.String()))
			} else {
				b.WriteString("  " + m.formatFunc(f))
			}
			b.WriteString("\n")
		}
		if m.status != "" {
			b.WriteString("\n")
			b.WriteString(m.status)
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • ←/→ submemory • a add • r reset • enter call • q quit"))

	case stateInputArgs:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s on submemory %d\n\n", funcStyle.Render(f.name), m.current))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(f.params[i].String()))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s on submemory %d:\n\n", funcStyle.Render(f.name), m.current))
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

func (m *interactiveModel) header() string {
	layout := m.host.Layout()
	size := "?"
	if v, err := m.host.View(m.current); err == nil {
		size = fmt.Sprintf("%d KiB", v.Size()/1024)
	}
	return typeStyle.Render(fmt.Sprintf("policy %s • submemory %d of %d • %s in use of %d KiB",
		layout.Policy, m.current, m.host.Count(), size, layout.SubmemorySize/1024))
}

func (m *interactiveModel) formatFunc(f funcInfo) string {
	params := make([]string, len(f.params))
	for i, p := range f.params {
		params[i] = typeStyle.Render(p.String())
	}
	result := ""
	if len(f.results) > 0 {
		results := make([]string, len(f.results))
		for i, r := range f.results {
			results[i] = r.String()
		}
		result = " -> " + typeStyle.Render(strings.Join(results, ", "))
	}
	return funcStyle.Render(f.name) + "(" + strings.Join(params, ", ") + ")" + result
}

func runInteractive(opts options) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("interactive mode requires a terminal")
	}
	p := tea.NewProgram(newInteractiveModel(opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
