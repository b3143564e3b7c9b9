package ui

import (
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rotisserie/eris"
	"golang.org/x/term"

	"github.com/cybre/birthday-visualizer/internal/utils"
)

var (
	ErrSelectionAborted = eris.New("selection aborted")
	ErrNoInteractiveTTY = eris.New("no interactive terminal available")
)

type Option struct {
	Label string
}

type SetupConfig struct {
	RequireDevice bool
	RequirePreset bool
	InitialDevice int
	InitialPreset int
}

type SetupResult struct {
	DeviceIndex int
	PresetIndex int
}

// RunSetup asks for an input device and a preset. Steps that are not required are
// skipped; when none are, the initial choices are returned without touching the terminal.
func RunSetup(devices, presets []Option, cfg SetupConfig) (SetupResult, error) {
	if !cfg.RequireDevice && !cfg.RequirePreset {
		return SetupResult{
			DeviceIndex: utils.ClampIndex(cfg.InitialDevice, len(devices)),
			PresetIndex: utils.ClampIndex(cfg.InitialPreset, len(presets)),
		}, nil
	}

	if !isInteractiveTerminal() {
		return SetupResult{}, ErrNoInteractiveTTY
	}

	finalModel, err := tea.NewProgram(newSetupModel(devices, presets, cfg)).Run()
	if err != nil {
		return SetupResult{}, eris.Wrap(err, "setup screen failed")
	}

	result := finalModel.(setupModel)
	if result.err != nil {
		return SetupResult{}, result.err
	}
	return result.result(), nil
}

type setupStep int

const (
	stepSelectDevice setupStep = iota
	stepSelectPreset
	stepConfirm
	stepDone
)

type setupModel struct {
	step    setupStep
	cfg     SetupConfig
	devices []Option
	presets []Option

	cursor      int
	deviceIndex int
	presetIndex int
	err         error
}

func newSetupModel(devices, presets []Option, cfg SetupConfig) setupModel {
	m := setupModel{
		cfg:         cfg,
		devices:     devices,
		presets:     presets,
		deviceIndex: utils.ClampIndex(cfg.InitialDevice, len(devices)),
		presetIndex: utils.ClampIndex(cfg.InitialPreset, len(presets)),
	}
	m.enter(m.firstStep())
	return m
}

func (m setupModel) result() SetupResult {
	return SetupResult{
		DeviceIndex: utils.ClampIndex(m.deviceIndex, len(m.devices)),
		PresetIndex: utils.ClampIndex(m.presetIndex, len(m.presets)),
	}
}

func (m setupModel) wantsDevice() bool { return m.cfg.RequireDevice && len(m.devices) > 0 }

func (m setupModel) wantsPreset() bool { return m.cfg.RequirePreset && len(m.presets) > 0 }

func (m setupModel) firstStep() setupStep {
	switch {
	case m.wantsDevice():
		return stepSelectDevice
	case m.wantsPreset():
		return stepSelectPreset
	default:
		return stepConfirm
	}
}

// enter moves to step and places the cursor on that step's current choice.
func (m *setupModel) enter(step setupStep) {
	m.step = step
	switch step {
	case stepSelectDevice:
		m.cursor = m.deviceIndex
	case stepSelectPreset:
		m.cursor = m.presetIndex
	default:
		m.cursor = 0
	}
}

// commit stores the cursor as the current step's choice.
func (m *setupModel) commit() {
	switch m.step {
	case stepSelectDevice:
		m.deviceIndex = m.cursor
	case stepSelectPreset:
		m.presetIndex = m.cursor
	}
}

func (m setupModel) nextStep() setupStep {
	if m.step == stepSelectDevice && m.wantsPreset() {
		return stepSelectPreset
	}
	return stepConfirm
}

func (m setupModel) previousStep() setupStep {
	switch m.step {
	case stepConfirm:
		if m.wantsPreset() {
			return stepSelectPreset
		}
		if m.wantsDevice() {
			return stepSelectDevice
		}
	case stepSelectPreset:
		if m.wantsDevice() {
			return stepSelectDevice
		}
	}
	return m.step
}

func (m setupModel) Init() tea.Cmd {
	return nil
}

func (m setupModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.step == stepDone {
		return m, tea.Quit
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, keys.Quit):
		m.err = ErrSelectionAborted
		return m, tea.Quit
	case key.Matches(keyMsg, keys.Up):
		if items := m.currentItems(); len(items) > 0 {
			m.cursor = wrapIndex(m.cursor-1, len(items))
		}
	case key.Matches(keyMsg, keys.Down):
		if items := m.currentItems(); len(items) > 0 {
			m.cursor = wrapIndex(m.cursor+1, len(items))
		}
	case key.Matches(keyMsg, keys.Forward):
		if m.step != stepConfirm {
			m.commit()
			m.enter(m.nextStep())
		}
	case key.Matches(keyMsg, keys.Back):
		if prev := m.previousStep(); prev != m.step {
			m.commit()
			m.enter(prev)
		}
	case key.Matches(keyMsg, keys.Confirm):
		if m.step == stepConfirm {
			m.step = stepDone
			return m, tea.Quit
		}
		m.commit()
		m.enter(m.nextStep())
	}
	return m, nil
}

func (m setupModel) View() string {
	switch m.step {
	case stepSelectDevice:
		return m.renderList("Select an audio input device", m.devices)
	case stepSelectPreset:
		return m.renderList("Pick a party preset", m.presets)
	case stepConfirm:
		return m.renderSummary()
	default:
		return ""
	}
}

func (m setupModel) currentItems() []Option {
	switch m.step {
	case stepSelectDevice:
		return m.devices
	case stepSelectPreset:
		return m.presets
	default:
		return nil
	}
}

func (m setupModel) renderList(title string, items []Option) string {
	lines := []string{"", titleStyle.Render(title)}
	if m.step == stepSelectPreset && m.wantsDevice() {
		lines = append(lines, "", renderSummaryRow("Device", label(m.devices, m.deviceIndex)))
	}

	back := keys.Back
	back.SetEnabled(m.previousStep() != m.step)
	lines = append(lines,
		"",
		renderOptionList(items, m.cursor),
		"",
		hints(keys.Up, keys.Down, keys.Confirm, back, keys.Quit),
		"",
	)
	return strings.Join(lines, "\n")
}

func (m setupModel) renderSummary() string {
	lines := []string{
		"",
		titleStyle.Render("Ready to party"),
		"",
		renderSummaryRow("Device", label(m.devices, m.deviceIndex)),
		renderSummaryRow("Preset", label(m.presets, m.presetIndex)),
		"",
		renderInstructions([]string{"enter start", hint(keys.Back), hint(keys.Quit)}),
		"",
	}
	return strings.Join(lines, "\n")
}

func label(items []Option, idx int) string {
	if idx >= 0 && idx < len(items) {
		return items[idx].Label
	}
	return "not selected"
}

func renderOptionList(items []Option, cursor int) string {
	if len(items) == 0 {
		return emptyStateStyle.Render("No options detected")
	}

	rows := make([]string, len(items))
	for i, item := range items {
		pointer := inactivePointerStyle.Render(" ")
		text := itemStyle.Render(item.Label)
		if cursor == i {
			pointer = pointerStyle.Render("›")
			text = selectedItemStyle.Render(item.Label)
		}
		rows[i] = lipgloss.JoinHorizontal(lipgloss.Left, pointer, " ", text)
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func wrapIndex(idx, length int) int {
	if length <= 0 {
		return 0
	}
	idx %= length
	if idx < 0 {
		idx += length
	}
	return idx
}

func isInteractiveTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
