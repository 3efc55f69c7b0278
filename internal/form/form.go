// Package form is the interactive editor for the DER parameter file.
package form

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"dersim/internal/config"
)

// ErrAborted is returned when the user leaves the form without saving.
var ErrAborted = errors.New("configuration aborted")

var (
	labelStyle   = lipgloss.NewStyle().Width(34)
	focusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	titleStyle   = lipgloss.NewStyle().Bold(true).MarginBottom(1)
	choiceMarker = "‹ %s ›"
)

// item is one row of the form: a text input, or a selector when choices is
// set.
type item struct {
	key     string
	label   string
	input   textinput.Model
	choices []string
	choice  int
}

func (it item) value() string {
	if it.choices != nil {
		return it.choices[it.choice]
	}
	return strings.TrimSpace(it.input.Value())
}

func textItem(key, label, value string) item {
	in := textinput.New()
	in.Prompt = ""
	in.CharLimit = 64
	in.SetValue(value)
	return item{key: key, label: label, input: in}
}

func choiceItem(key, label string, choices []string, current string) item {
	it := item{key: key, label: label, choices: choices}
	for i, c := range choices {
		if c == current {
			it.choice = i
		}
	}
	return it
}

// Model is the bubbletea model of the form.
type Model struct {
	items   []item
	focus   int
	steady  bool
	err     error
	errKey  string
	result  *config.SimulationConfig
	aborted bool
}

// New returns a form prefilled with cfg.
func New(cfg config.SimulationConfig) Model {
	modes := make([]string, len(config.ControlModes))
	for i, m := range config.ControlModes {
		modes[i] = string(m)
	}
	der := "False"
	if cfg.DEREnabled {
		der = "True"
	}
	m := Model{
		items: []item{
			textItem(config.KeySimulationTime, "Simulation time (s)", strconv.FormatFloat(cfg.SimulationTime, 'g', -1, 64)),
			textItem(config.KeyNumberSteps, "Number of steps", strconv.Itoa(cfg.NumberSteps)),
			textItem(config.KeyPointsPerStep, "Points per step", strconv.Itoa(cfg.PointsPerStep)),
			choiceItem(config.KeyDER, "DER", []string{"True", "False"}, der),
			textItem(config.KeyBus, "Bus", cfg.BusID),
			textItem(config.KeyRatedVoltage, "Rated voltage (kV)", strconv.FormatFloat(cfg.RatedVoltageKV, 'g', -1, 64)),
			textItem(config.KeyLine, "Line", cfg.LineID),
			choiceItem(config.KeyControlMode, "Control mode", modes, string(cfg.ControlMode)),
			textItem(config.KeyRatedPower, "Rated apparent power (MVA)", strconv.FormatFloat(cfg.RatedApparentPowerMVA, 'g', -1, 64)),
			textItem(config.KeyRatedPF, "Rated power factor", strconv.FormatFloat(cfg.RatedPowerFactor, 'g', -1, 64)),
			textItem(config.KeyConstantQ, "Constant reactive power (pu)", strconv.FormatFloat(cfg.ConstantReactivePower, 'g', -1, 64)),
			choiceItem(config.KeyNormalCategory, "Normal operation category", []string{"A", "B"}, string(cfg.NormalCategory)),
			choiceItem(config.KeyAbnormalCategory, "Abnormal operation category", []string{"I", "II", "III"}, string(cfg.AbnormalCategory)),
		},
		steady: cfg.SteadyState(),
	}
	if m.steady {
		m.applySteadyState()
	}
	m.setFocus(0)
	return m
}

// Result returns the validated configuration once the form was submitted.
func (m Model) Result() (*config.SimulationConfig, error) {
	if m.aborted || m.result == nil {
		return nil, ErrAborted
	}
	return m.result, nil
}

func (m *Model) find(key string) int {
	for i, it := range m.items {
		if it.key == key {
			return i
		}
	}
	return -1
}

// locked reports whether the steady-state toggle owns the item.
func (m *Model) locked(i int) bool {
	k := m.items[i].key
	return m.steady && (k == config.KeySimulationTime || k == config.KeyNumberSteps)
}

func (m *Model) applySteadyState() {
	m.items[m.find(config.KeySimulationTime)].input.SetValue(strconv.Itoa(config.SteadyStateTime))
	m.items[m.find(config.KeyNumberSteps)].input.SetValue("0")
}

func (m *Model) setFocus(i int) {
	n := len(m.items)
	i = (i%n + n) % n
	for m.locked(i) {
		i = (i + 1) % n
	}
	for j := range m.items {
		if m.items[j].choices == nil {
			m.items[j].input.Blur()
		}
	}
	m.focus = i
	if m.items[i].choices == nil {
		m.items[i].input.Focus()
	}
}

func (m *Model) move(delta int) {
	n := len(m.items)
	i := m.focus
	for {
		i = ((i+delta)%n + n) % n
		if !m.locked(i) {
			break
		}
	}
	m.setFocus(i)
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	cur := &m.items[m.focus]
	switch key.String() {
	case "esc", "ctrl+c":
		m.aborted = true
		return m, tea.Quit
	case "tab", "down":
		m.move(1)
		return m, nil
	case "shift+tab", "up":
		m.move(-1)
		return m, nil
	case "ctrl+s":
		m.steady = !m.steady
		if m.steady {
			m.applySteadyState()
			if m.locked(m.focus) {
				m.move(1)
			}
		}
		return m, nil
	case "enter":
		if m.focus < len(m.items)-1 {
			m.move(1)
			return m, nil
		}
		if m.submit() {
			return m, tea.Quit
		}
		return m, nil
	}
	if cur.choices != nil {
		switch key.String() {
		case "left", "h":
			cur.choice = (cur.choice - 1 + len(cur.choices)) % len(cur.choices)
		case "right", "l", " ":
			cur.choice = (cur.choice + 1) % len(cur.choices)
		}
		return m, nil
	}
	var cmd tea.Cmd
	cur.input, cmd = cur.input.Update(msg)
	return m, cmd
}

// submit validates the form and stores the result. On failure the first
// offending field takes the focus.
func (m *Model) submit() bool {
	m.err, m.errKey = nil, ""
	var b strings.Builder
	for _, it := range m.items {
		v := it.value()
		if v == "" || len(strings.Fields(v)) != 1 {
			m.fail(it.key, &config.ValidationError{Field: it.key, Reason: "must be a single non-empty value"})
			return false
		}
		fmt.Fprintf(&b, "%s %s\n", it.key, v)
	}
	cfg, err := config.Read(strings.NewReader(b.String()))
	if err != nil {
		var pe *config.ParseError
		if errors.As(err, &pe) && pe.Line-1 < len(m.items) {
			m.fail(m.items[pe.Line-1].key, err)
		} else {
			m.fail("", err)
		}
		return false
	}
	if err := cfg.Validate(); err != nil {
		var ve *config.ValidationError
		key := ""
		if errors.As(err, &ve) {
			key = ve.Field
		}
		m.fail(key, err)
		return false
	}
	m.result = cfg
	return true
}

func (m *Model) fail(key string, err error) {
	m.err, m.errKey = err, key
	if i := m.find(key); i >= 0 && !m.locked(i) {
		m.setFocus(i)
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("DER simulation parameters"))
	b.WriteString("\n")
	for i, it := range m.items {
		label := it.label
		if i == m.focus {
			label = focusStyle.Render("> " + label)
		} else {
			label = "  " + label
		}
		var val string
		switch {
		case it.choices != nil:
			val = fmt.Sprintf(choiceMarker, it.value())
		case m.locked(i):
			val = dimStyle.Render(it.input.Value())
		default:
			val = it.input.View()
		}
		line := labelStyle.Render(label) + val
		if m.err != nil && it.key == m.errKey {
			line += "  " + errorStyle.Render("!")
		}
		b.WriteString(line + "\n")
	}
	steady := "off"
	if m.steady {
		steady = "on"
	}
	fmt.Fprintf(&b, "\nSteady state (ctrl+s): %s\n", steady)
	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()) + "\n")
	}
	b.WriteString(dimStyle.Render("tab/shift+tab move • ←/→ change selection • enter on last field saves • esc cancels"))
	return b.String()
}

// Run shows the form on the terminal and returns the submitted configuration.
func Run(initial config.SimulationConfig, opts ...tea.ProgramOption) (*config.SimulationConfig, error) {
	final, err := tea.NewProgram(New(initial), opts...).Run()
	if err != nil {
		return nil, err
	}
	return final.(Model).Result()
}
