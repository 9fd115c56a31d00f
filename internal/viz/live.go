package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/cstrsim/internal/control"
	"github.com/san-kum/cstrsim/internal/reactor"
)

const (
	chartWidth  = 60
	chartHeight = 8
	phaseWidth  = 30
	phaseHeight = 10
	nudgeStep   = 1.0
)

type TickMsg time.Time

// Model runs one reactor episode in the terminal, one control interval per
// tick.
type Model struct {
	ep         *reactor.Episode
	ctrl       reactor.Controller
	manual     *control.ManualController
	ctrlName   string
	cfg        reactor.EpisodeConfig
	iterations int
	frame      time.Duration

	history []reactor.Observation
	actions []float64
	running bool
	err     error

	showHelp bool
}

// NewModel resets ep with cfg. When ctrl is a *control.ManualController the
// arrow keys adjust the coolant.
func NewModel(ep *reactor.Episode, ctrl reactor.Controller, ctrlName string, cfg reactor.EpisodeConfig, iterations, frameRate int) (Model, error) {
	if frameRate <= 0 {
		frameRate = 10
	}
	m := Model{
		ep:         ep,
		ctrl:       ctrl,
		ctrlName:   ctrlName,
		cfg:        cfg,
		iterations: iterations,
		frame:      time.Second / time.Duration(frameRate),
		running:    true,
	}
	if mc, ok := ctrl.(*control.ManualController); ok {
		m.manual = mc
	}
	if err := m.reset(); err != nil {
		return Model{}, err
	}
	return m, nil
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.frame, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd { return m.tick() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "s", "n":
			if !m.running {
				m.step()
			}
		case "r":
			if err := m.reset(); err != nil {
				m.err = err
			}
		case "up", "k":
			if m.manual != nil {
				m.manual.Nudge(nudgeStep)
			}
		case "down", "j":
			if m.manual != nil {
				m.manual.Nudge(-nudgeStep)
			}
		case "h":
			if m.manual != nil {
				m.manual.Hold = !m.manual.Hold
			}
		case "t":
			NextTheme()
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if m.running && !m.Done() {
			m.step()
		}
		return m, m.tick()
	}
	return m, nil
}

// Done reports whether the episode halted or ran all its intervals.
func (m Model) Done() bool {
	return m.ep.Halted() || m.ep.Steps() >= m.iterations
}

func (m *Model) reset() error {
	obs, err := m.ep.Reset(m.cfg)
	if err != nil {
		return err
	}
	if rc, ok := m.ctrl.(interface{ Reset() }); ok {
		rc.Reset()
	}
	m.history = append(m.history[:0], obs)
	m.actions = m.actions[:0]
	m.err = nil
	return nil
}

// step applies one controller decision. A failing controller holds the
// coolant; a rejected step pauses the view with the error shown.
func (m *Model) step() {
	if m.Done() {
		return
	}
	delta, err := m.ctrl.Compute(m.ep.State())
	if err != nil {
		m.err = err
		delta = 0
	}
	obs, err := m.ep.Step(reactor.Action{CoolantDelta: delta})
	if err != nil {
		m.err = err
		m.running = false
		return
	}
	m.history = append(m.history, obs)
	m.actions = append(m.actions, delta)
}

func (m Model) History() []reactor.Observation { return m.history }
func (m Model) Actions() []float64             { return m.actions }

func (m Model) status(st styles) string {
	switch {
	case m.ep.Halted():
		return st.halted.Render("HALTED: " + m.ep.HaltReason().String())
	case m.ep.Steps() >= m.iterations:
		return st.paused.Render("COMPLETE")
	case !m.running:
		return st.paused.Render("PAUSED")
	}
	return st.running.Render("RUNNING")
}

func series(obs []reactor.Observation, f func(reactor.Observation) float64) []float64 {
	out := make([]float64, len(obs))
	for i, o := range obs {
		out[i] = f(o)
	}
	return out
}

func (m Model) charts(st styles) string {
	if len(m.history) < 2 {
		return st.help.Render("waiting for data...")
	}
	tr := series(m.history, func(o reactor.Observation) float64 { return o.Tr })
	tref := series(m.history, func(o reactor.Observation) float64 { return o.Tref })
	cr := series(m.history, func(o reactor.Observation) float64 { return o.Cr })
	cref := series(m.history, func(o reactor.Observation) float64 { return o.Cref })

	temp := asciigraph.PlotMany([][]float64{tr, tref},
		asciigraph.Height(chartHeight),
		asciigraph.Width(chartWidth),
		asciigraph.Precision(1),
		asciigraph.SeriesColors(asciigraph.Red, asciigraph.Green),
		asciigraph.Caption("Tr vs Tref (K)"),
	)
	conc := asciigraph.PlotMany([][]float64{cr, cref},
		asciigraph.Height(chartHeight),
		asciigraph.Width(chartWidth),
		asciigraph.Precision(2),
		asciigraph.SeriesColors(asciigraph.Blue, asciigraph.Green),
		asciigraph.Caption("Cr vs Cref (kmol/m3)"),
	)
	return st.graph.Render(temp) + "\n" + st.graph.Render(conc)
}

func (m Model) stats(st styles) string {
	obs := m.ep.State()
	row := func(label, value string) string {
		return st.label.Render(label) + st.value.Render(value) + "\n"
	}

	var s strings.Builder
	s.WriteString(row("t", fmt.Sprintf("%.2f", m.ep.Elapsed())))
	s.WriteString(row("Cr", fmt.Sprintf("%.4f", obs.Cr)))
	s.WriteString(row("Cref", fmt.Sprintf("%.4f", obs.Cref)))
	s.WriteString(row("Tr", fmt.Sprintf("%.2f K", obs.Tr)))
	s.WriteString(row("Tref", fmt.Sprintf("%.2f K", obs.Tref)))
	s.WriteString(row("Tc", fmt.Sprintf("%.2f K", obs.Tc)))
	last := 0.0
	if len(m.actions) > 0 {
		last = m.actions[len(m.actions)-1]
	}
	s.WriteString(row("dTc", fmt.Sprintf("%+.2f", last)))
	if m.manual != nil {
		hold := ""
		if m.manual.Hold {
			hold = " (hold)"
		}
		s.WriteString(row("pending", fmt.Sprintf("%+.2f%s", m.manual.Delta(), hold)))
	}
	s.WriteString("\n")

	progress := 0.0
	if m.iterations > 0 {
		progress = float64(m.ep.Steps()) / float64(m.iterations)
	}
	s.WriteString(ProgressBar(progress, 24) + fmt.Sprintf(" %d/%d\n", m.ep.Steps(), m.iterations))
	s.WriteString(ActionSparkline(m.actions, 24) + "\n\n")

	canvas := NewCanvas(phaseWidth, phaseHeight)
	canvas.DrawPhase(m.history, PhaseBounds(m.history))
	s.WriteString(st.label.Render("Cr/Tr phase") + "\n")
	s.WriteString(canvas.String())
	return st.panel.Render(s.String())
}

func (m Model) View() string {
	st := currentStyles()

	title := fmt.Sprintf("CSTR  %s  %s", m.cfg.Mode, m.ctrlName)
	var s strings.Builder
	s.WriteString(st.header.Render(title) + "\n")
	s.WriteString(m.status(st))
	if m.err != nil {
		s.WriteString("  " + st.halted.Render(m.err.Error()))
	}
	s.WriteString("\n\n")
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, m.charts(st), "  ", m.stats(st)))
	s.WriteString("\n")

	help := "SP:Pause S:Step R:Reset T:Theme Q:Quit ?:Help"
	if m.manual != nil {
		help = "↑↓:Coolant H:Hold " + help
	}
	s.WriteString(st.help.Render(help))

	if m.showHelp {
		return `
╔══════════════════════════════════════╗
║           KEYBOARD SHORTCUTS         ║
╠══════════════════════════════════════╣
║  Space    - Pause/Resume episode     ║
║  S/N      - Single step when paused  ║
║  R        - Reset episode            ║
║  Up/K     - Raise coolant (manual)   ║
║  Down/J   - Lower coolant (manual)   ║
║  H        - Hold adjustment (manual) ║
║  T        - Cycle themes             ║
║  Q        - Quit                     ║
║  ?        - Toggle this help         ║
╚══════════════════════════════════════╝
` + "\n" + s.String()
	}
	return s.String()
}
