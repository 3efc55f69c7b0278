package sim

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"dersim/internal/config"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// logMsg carries a log line for the viewport.
type logMsg struct{ line string }

// sampleMsg carries a streamed row.
type sampleMsg struct{ SampleRow }

// stateMsg reports an orchestrator state change.
type stateMsg struct{ state State }

// summaryMsg carries the end-of-run summary.
type summaryMsg struct{ RunSummary }

const maxLogLines = 1000

// TUIWriter renders a run using a bubbletea TUI.
type TUIWriter struct {
	program teaProgram
	done    chan struct{}
	running atomic.Bool
}

// NewTUIWriter starts a bubbletea program and returns a TUIWriter. onQuit is
// called when the user leaves the TUI while the run is still going.
func NewTUIWriter(cfg config.SimulationConfig, onQuit func()) *TUIWriter {
	w := &TUIWriter{done: make(chan struct{})}
	w.running.Store(true)
	p := tea.NewProgram(newTUIModel(cfg), tea.WithAltScreen())
	w.program = p
	go func() {
		_, _ = p.Run()
		close(w.done)
		if w.running.Load() && onQuit != nil {
			onQuit()
		}
	}()
	return w
}

// Write implements SampleWriter.
func (w *TUIWriter) Write(row SampleRow) error {
	line := fmt.Sprintf("%s[%8.3fs]%s %sstep=%d%s %sloadmult=%.3f%s %sv=(%.4f,%.4f,%.4f)%s",
		colorGray, row.Time, colorReset,
		colorBlue, row.Index, colorReset,
		colorCyan, row.LoadMult, colorReset,
		colorYellow, row.Va, row.Vb, row.Vc, colorReset,
	)
	if row.Mode != "" {
		line += fmt.Sprintf(" %sp=%.3f q=%.3f%s %s%s%s",
			colorGreen, row.P, row.Q, colorReset,
			statusColor(row.Status), row.Status, colorReset)
	}
	w.program.Send(logMsg{line: line})
	w.program.Send(sampleMsg{row})
	return nil
}

// WriteBatch implements batch mode.
func (w *TUIWriter) WriteBatch(rows []SampleRow) error {
	for _, r := range rows {
		_ = w.Write(r)
	}
	return nil
}

// WriteSummary shows the end-of-run summary.
func (w *TUIWriter) WriteSummary(s RunSummary) error {
	w.program.Send(summaryMsg{s})
	return nil
}

// SetState implements StateReporter.
func (w *TUIWriter) SetState(st State) {
	if st == StateDone || st == StateFailed {
		w.running.Store(false)
	}
	w.program.Send(stateMsg{st})
}

// Wait blocks until the user quits the TUI.
func (w *TUIWriter) Wait() {
	if w.done != nil {
		<-w.done
	}
}

// Close stops the program.
func (w *TUIWriter) Close() error {
	w.running.Store(false)
	if w.program != nil {
		w.program.Send(tea.Quit())
	}
	w.Wait()
	return nil
}

type tuiModel struct {
	cfg          config.SimulationConfig
	table        table.Model
	bar          progress.Model
	vp           viewport.Model
	logs         []string
	state        State
	summary      *RunSummary
	steps        int
	total        int
	minV         float64
	maxV         float64
	trips        int
	lastStatus   string
	wrap         bool
	autoscroll   bool
	help         bool
	header       string
	headerHeight int
	height       int
}

func newTUIModel(cfg config.SimulationConfig) tuiModel {
	cols := []table.Column{
		{Title: "Config", Width: 18},
		{Title: "Value", Width: 14},
		{Title: "Config", Width: 18},
		{Title: "Value", Width: 14},
	}
	withDER := "False"
	if cfg.DEREnabled {
		withDER = "True"
	}
	rows := []table.Row{
		{"Simulation Time (s)", fmt.Sprintf("%g", cfg.SimulationTime), "DER", withDER},
		{"Number of Steps", fmt.Sprintf("%d", cfg.NumberSteps), "Control Mode", string(cfg.ControlMode)},
		{"Points per Step", fmt.Sprintf("%d", cfg.PointsPerStep), "S Rated (MVA)", fmt.Sprintf("%g", cfg.RatedApparentPowerMVA)},
		{"Bus", cfg.BusID, "PF Rated", fmt.Sprintf("%g", cfg.RatedPowerFactor)},
		{"Line", cfg.LineID, "Categories", fmt.Sprintf("%s / %s", cfg.NormalCategory, cfg.AbnormalCategory)},
	}
	t := table.New(table.WithColumns(cols), table.WithRows(rows), table.WithHeight(len(rows)+1))
	m := tuiModel{
		cfg:        cfg,
		table:      t,
		bar:        progress.New(progress.WithDefaultGradient()),
		vp:         viewport.New(0, 0),
		total:      cfg.TotalPoints(),
		autoscroll: true,
	}
	m.header = m.renderHeader()
	m.headerHeight = lipgloss.Height(m.header)
	return m
}

func (m tuiModel) Init() tea.Cmd { return nil }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.table.SetWidth(msg.Width)
		m.vp.Width = msg.Width
		m.bar.Width = msg.Width - 20
		if m.bar.Width < 10 {
			m.bar.Width = 10
		}
		m.height = msg.Height
		m.header = m.renderHeader()
		m.headerHeight = lipgloss.Height(m.header)
		m.updateViewportHeight()
		m.refreshViewport()
	case tea.KeyMsg:
		if m.help {
			switch msg.String() {
			case "?", "h", "esc":
				m.help = false
				m.updateViewportHeight()
			}
			return m, nil
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "w":
			m.wrap = !m.wrap
			m.refreshViewport()
			return m, nil
		case "s":
			m.autoscroll = !m.autoscroll
			if m.autoscroll {
				m.vp.GotoBottom()
			}
			return m, nil
		case "h", "?":
			m.help = !m.help
			return m, nil
		}
		if !m.autoscroll {
			switch msg.String() {
			case "j", "down":
				m.vp.LineDown(1)
			case "k", "up":
				m.vp.LineUp(1)
			case "pgdown", "ctrl+n":
				m.vp.LineDown(10)
			case "pgup", "ctrl+p":
				m.vp.LineUp(10)
			default:
				var cmd tea.Cmd
				m.vp, cmd = m.vp.Update(msg)
				return m, cmd
			}
		}
		return m, nil
	case logMsg:
		m.logs = append(m.logs, msg.line)
		if len(m.logs) > maxLogLines {
			m.logs = m.logs[len(m.logs)-maxLogLines:]
		}
		m.refreshViewport()
	case sampleMsg:
		if m.steps == 0 {
			m.minV, m.maxV = msg.Va, msg.Va
		}
		for _, v := range []float64{msg.Va, msg.Vb, msg.Vc} {
			if v < m.minV {
				m.minV = v
			}
			if v > m.maxV {
				m.maxV = v
			}
		}
		if tripOnset(m.lastStatus, msg.Status) {
			m.trips++
		}
		m.lastStatus = msg.Status
		m.steps = msg.Index + 1
	case stateMsg:
		m.state = msg.state
	case summaryMsg:
		s := msg.RunSummary
		m.summary = &s
		m.updateViewportHeight()
	}
	return m, nil
}

func (m *tuiModel) updateViewportHeight() {
	bottomHeight := lipgloss.Height(m.renderBottom())
	h := m.height - m.headerHeight - bottomHeight - 3
	if h < 0 {
		h = 0
	}
	m.vp.Height = h
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m *tuiModel) refreshViewport() {
	var lines []string
	for _, l := range m.logs {
		if m.wrap && m.vp.Width > 0 {
			lines = append(lines, wordwrap.String(l, m.vp.Width))
		} else {
			lines = append(lines, l)
		}
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m tuiModel) View() string {
	if m.help {
		return m.renderHelp()
	}
	divider := strings.Repeat("─", m.vp.Width)
	return strings.Join([]string{
		m.header,
		divider,
		m.vp.View(),
		divider,
		m.renderBottom(),
	}, "\n")
}

func (m tuiModel) renderHeader() string {
	title := lipgloss.NewStyle().Bold(true).Render(m.cfg.ControlMode.Title(m.cfg.NormalCategory))
	if !m.cfg.DEREnabled {
		title = lipgloss.NewStyle().Bold(true).Render("Feeder without DER")
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, m.table.View())
}

func (m tuiModel) percent() float64 {
	if m.total <= 0 {
		return 0
	}
	return float64(m.steps) / float64(m.total)
}

func (m tuiModel) renderBottom() string {
	stateColor := lipgloss.Color("11")
	switch m.state {
	case StateDone:
		stateColor = lipgloss.Color("10")
	case StateFailed:
		stateColor = lipgloss.Color("9")
	}
	state := lipgloss.NewStyle().Foreground(stateColor).Render(m.state.String())
	wrapColor := lipgloss.Color("9")
	if m.wrap {
		wrapColor = lipgloss.Color("10")
	}
	scrollColor := lipgloss.Color("10")
	if !m.autoscroll {
		scrollColor = lipgloss.Color("9")
	}
	wrapIndicator := lipgloss.NewStyle().Foreground(wrapColor).Render("●")
	scrollIndicator := lipgloss.NewStyle().Foreground(scrollColor).Render("●")

	progressLine := fmt.Sprintf("%s %d/%d", m.bar.ViewAs(m.percent()), m.steps, m.total)
	stats := fmt.Sprintf("%sSTATE%s %s %sv=[%.4f, %.4f]%s %strips=%d%s | Wrap %s | Scroll %s | Help h",
		colorBlue, colorReset, state,
		colorYellow, m.minV, m.maxV, colorReset,
		colorRed, m.trips, colorReset,
		wrapIndicator, scrollIndicator)
	lines := []string{progressLine, stats}
	if m.summary != nil {
		lines = append(lines, fmt.Sprintf("%sSUMMARY%s run=%s samples=%d solves=%d elapsed=%s (q to quit)",
			colorGreen, colorReset, m.summary.RunID, m.summary.Samples, m.summary.Solves, m.summary.Elapsed))
	}
	return strings.Join(lines, "\n")
}

func (m tuiModel) renderHelp() string {
	lines := []string{
		"Key Bindings:",
		" q  quit",
		" w  toggle wrap for log lines",
		" s  toggle auto-scroll",
		" h/? toggle this help view",
		"",
		"When auto-scroll is disabled:",
		" j/k or up/down    scroll one line",
		" pgdown/pgup       scroll a page",
	}
	return strings.Join(lines, "\n")
}
