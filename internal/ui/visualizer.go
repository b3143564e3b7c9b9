package ui

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cybre/birthday-visualizer/internal/dsp"
	"github.com/cybre/birthday-visualizer/internal/engine"
	"github.com/cybre/birthday-visualizer/internal/utils"
)

// Frame is what the terminal visualizer shows for one tick.
type Frame struct {
	Time       time.Time
	Track      string
	TrackColor string
	Preset     string
	Smoothed   dsp.BandEnergies
	Raw        dsp.BandEnergies
	Beat       bool
	BeatLevel  float64
	Threshold  float64
	Spectrum   []uint8
	Targets    int
	Tasks      int
}

// FrameFromSnapshot copies the displayable parts of an engine snapshot.
func FrameFromSnapshot(s engine.Snapshot) Frame {
	return Frame{
		Time:      s.Time,
		Smoothed:  s.Smoothed,
		Raw:       s.Raw,
		Beat:      s.Beat,
		BeatLevel: s.BeatLevel,
		Threshold: s.Threshold,
		Spectrum:  append([]uint8(nil), s.Spectrum...),
		Targets:   s.Targets,
		Tasks:     s.Tasks,
	}
}

// Controls are invoked from the UI goroutine when the matching key is pressed. Presets
// are bound to the number keys in order.
type Controls struct {
	OnExit     func()
	OnNext     func()
	OnPrevious func()
	OnShuffle  func()
	OnPreset   func(name string)
	Presets    []string
}

type Visualizer struct {
	program   *tea.Program
	mu        sync.Mutex
	lastSend  time.Time
	throttle  time.Duration
	closeOnce sync.Once
}

type frameMsg struct {
	frame      Frame
	receivedAt time.Time
}

type visualizerModel struct {
	controls    Controls
	frame       Frame
	first       time.Time
	lastUpdated time.Time
	ready       bool
	width       int
	exitOnce    sync.Once
}

var (
	vizContainerStyle    = lipgloss.NewStyle().Padding(0, 2)
	vizTimestampStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	vizMetricLabelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	vizMetricValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	vizBeatActiveStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("197")).Bold(true)
	vizBeatInactiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	vizWaitingStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
	vizLabelStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	vizEmptyStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("237"))
)

const (
	vizBarWidth      = 32
	spectrumColumns  = 48
	renderLatency    = 45 * time.Millisecond
	headerText       = "Happy Birthday!"
	spectrumGlyphs   = "▁▂▃▄▅▆▇█"
	spectrumGlyphCnt = 8
)

// band bars: label, hue range.
var bandBars = []struct {
	label      string
	hueStart   float64
	hueEnd     float64
	saturation float64
	value      func(Frame) float64
}{
	{"Bass", 25, 45, 0.92, func(f Frame) float64 { return f.Smoothed.Bass }},
	{"Mid", 55, 75, 0.9, func(f Frame) float64 { return f.Smoothed.Mid }},
	{"Treble", 210, 240, 0.85, func(f Frame) float64 { return f.Smoothed.Treble }},
	{"Volume", 190, 140, 0.85, func(f Frame) float64 { return f.Smoothed.Volume }},
	{"Beat Level", 330, 360, 0.9, func(f Frame) float64 { return f.BeatLevel }},
}

func NewVisualizer(controls Controls) *Visualizer {
	model := &visualizerModel{controls: controls}
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithoutSignalHandler())

	v := &Visualizer{
		program:  program,
		throttle: renderLatency,
	}

	go program.Run()

	return v
}

// Update shows frame unless the previous one was sent less than the render latency ago.
func (v *Visualizer) Update(frame Frame) {
	v.mu.Lock()
	if time.Since(v.lastSend) < v.throttle {
		v.mu.Unlock()
		return
	}
	v.lastSend = time.Now()
	v.mu.Unlock()

	v.program.Send(frameMsg{
		frame:      frame,
		receivedAt: time.Now(),
	})
}

func (v *Visualizer) Close() {
	v.closeOnce.Do(func() {
		v.program.Quit()
	})
}

func (m *visualizerModel) Init() tea.Cmd {
	return nil
}

func (m *visualizerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case frameMsg:
		if m.first.IsZero() {
			m.first = msg.frame.Time
		}
		m.frame = msg.frame
		m.lastUpdated = msg.receivedAt
		m.ready = true
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.invokeExit()
			return m, tea.Quit
		case key.Matches(msg, keys.Next):
			call(m.controls.OnNext)
		case key.Matches(msg, keys.Previous):
			call(m.controls.OnPrevious)
		case key.Matches(msg, keys.Shuffle):
			call(m.controls.OnShuffle)
		case key.Matches(msg, keys.Preset):
			idx := int(msg.String()[0] - '1')
			if idx < len(m.controls.Presets) && m.controls.OnPreset != nil {
				m.controls.OnPreset(m.controls.Presets[idx])
			}
		}
	}
	return m, nil
}

func (m *visualizerModel) View() string {
	if !m.ready {
		return vizContainerStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render(headerText),
			"",
			vizWaitingStyle.Render("Waiting for the music…"),
		))
	}

	elapsed := m.frame.Time.Sub(m.first).Seconds()
	body := lipgloss.JoinVertical(
		lipgloss.Left,
		renderHeader(m.frame, elapsed, m.lastUpdated),
		renderMetrics(m.frame),
		"",
		renderSpectrum(m.frame.Spectrum, spectrumColumns),
		"",
		renderBars(m.frame),
		"",
		m.renderHints(),
	)
	return vizContainerStyle.Render(body)
}

func (m *visualizerModel) renderHints() string {
	return hints(keys.Next, keys.Previous, keys.Shuffle, keys.Preset, keys.Quit)
}

// titleHue follows the scene's title colour: treble plus a slow drift.
func titleHue(frame Frame, elapsed float64) float64 {
	return utils.WrapUnit(frame.Smoothed.Treble+elapsed*0.1) * 360
}

func renderHeader(frame Frame, elapsed float64, updatedAt time.Time) string {
	color := lipgloss.Color(hexColorFromHSV(titleHue(frame, elapsed), 0.8, 0.5+frame.Smoothed.Treble*0.5))
	title := titleStyle.Foreground(color).Render(headerText)
	timestamp := vizTimestampStyle.Render(updatedAt.Format("15:04:05.000"))
	return lipgloss.JoinHorizontal(lipgloss.Left, title, "  ", timestamp)
}

func renderMetrics(frame Frame) string {
	track := frame.Track
	if track == "" {
		track = "live input"
	}
	trackValue := vizMetricValueStyle.Render(track)
	if frame.TrackColor != "" {
		trackValue = vizMetricValueStyle.Foreground(lipgloss.Color(frame.TrackColor)).Render(track)
	}
	trackMetric := lipgloss.JoinHorizontal(lipgloss.Left, vizMetricLabelStyle.Render("Track:"), " ", trackValue)

	preset := renderMetric("Preset", orDefault(frame.Preset, "custom"))
	top := lipgloss.JoinHorizontal(lipgloss.Left, trackMetric, "   ", preset)

	bottom := lipgloss.JoinHorizontal(lipgloss.Left,
		renderBeatMetric(frame),
		"   ",
		renderMetric("Targets", fmt.Sprintf("%d", frame.Targets)),
		"   ",
		renderMetric("Effects", fmt.Sprintf("%d", frame.Tasks)),
	)
	return lipgloss.JoinVertical(lipgloss.Left, top, bottom)
}

func renderMetric(label, value string) string {
	return lipgloss.JoinHorizontal(
		lipgloss.Left,
		vizMetricLabelStyle.Render(label+":"),
		" ",
		vizMetricValueStyle.Render(value),
	)
}

func renderBeatMetric(frame Frame) string {
	marker := vizBeatInactiveStyle.Render("○")
	if frame.Beat {
		marker = vizBeatActiveStyle.Render("●")
	}
	return lipgloss.JoinHorizontal(
		lipgloss.Left,
		vizMetricLabelStyle.Render("Beat:"),
		" ",
		marker,
		" ",
		vizMetricValueStyle.Render(fmt.Sprintf("bass %4.2f / threshold %4.2f", frame.Raw.Bass, frame.Threshold)),
	)
}

// spectrumLevels averages the spectrum into columns and scales each to a glyph index in
// [0, spectrumGlyphCnt], where 0 means silent.
func spectrumLevels(spectrum []uint8, columns int) []int {
	levels := make([]int, columns)
	if len(spectrum) == 0 || columns <= 0 {
		return levels
	}
	for c := range columns {
		lo := c * len(spectrum) / columns
		hi := max((c+1)*len(spectrum)/columns, lo+1)
		hi = min(hi, len(spectrum))
		sum := 0
		for _, v := range spectrum[lo:hi] {
			sum += int(v)
		}
		avg := float64(sum) / float64(hi-lo)
		levels[c] = int(math.Ceil(avg / dsp.MaxMagnitude * spectrumGlyphCnt))
	}
	return levels
}

func renderSpectrum(spectrum []uint8, columns int) string {
	glyphs := []rune(spectrumGlyphs)
	var b strings.Builder
	b.WriteString(subtitleStyle.Render("Spectrum "))
	for c, level := range spectrumLevels(spectrum, columns) {
		if level == 0 {
			b.WriteString(vizEmptyStyle.Render("·"))
			continue
		}
		hue := 300 * float64(c) / float64(max(columns-1, 1))
		color := lipgloss.Color(hexColorFromHSV(hue, 0.85, 0.5+0.5*float64(level)/spectrumGlyphCnt))
		b.WriteString(lipgloss.NewStyle().Foreground(color).Render(string(glyphs[level-1])))
	}
	return b.String()
}

func renderBars(frame Frame) string {
	lines := make([]string, len(bandBars))
	for i, bar := range bandBars {
		lines[i] = renderBar(bar.label, bar.value(frame), bar.hueStart, bar.hueEnd, bar.saturation)
	}
	return strings.Join(lines, "\n")
}

func renderBar(label string, value, hueStart, hueEnd, saturation float64) string {
	clamped := utils.Clamp01(value)
	filled := int(math.Round(clamped * vizBarWidth))
	if clamped > 0 && filled == 0 {
		filled = 1
	}

	var b strings.Builder
	b.Grow(128)
	b.WriteString(vizLabelStyle.Render(fmt.Sprintf("%-12s", label)))
	b.WriteString(" [")
	steps := max(filled-1, 1)
	for i := range filled {
		progress := float64(i) / float64(steps)
		hue := hueStart + (hueEnd-hueStart)*progress
		color := lipgloss.Color(hexColorFromHSV(hue, saturation, 0.4+0.5*progress))
		b.WriteString(lipgloss.NewStyle().Foreground(color).Render("█"))
	}
	b.WriteString(vizEmptyStyle.Render(strings.Repeat("░", vizBarWidth-filled)))
	b.WriteString("] ")
	b.WriteString(vizLabelStyle.Render(fmt.Sprintf("%3.0f%%", clamped*100)))
	return b.String()
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func call(fn func()) {
	if fn != nil {
		fn()
	}
}

func (m *visualizerModel) invokeExit() {
	m.exitOnce.Do(func() {
		call(m.controls.OnExit)
	})
}
