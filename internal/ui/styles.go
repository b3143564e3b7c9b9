package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/crazy3lf/colorconv"

	"github.com/cybre/birthday-visualizer/internal/utils"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("213")).
			Bold(true)
	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("246"))
	pointerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("213"))
	inactivePointerStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))
	itemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))
	selectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("219")).
				Bold(true)
	instructionKeyStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("213")).
				Bold(true)
	instructionTextStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))
	instructionDividerStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))
	summaryLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("246"))
	summaryValueStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252")).
				Bold(true)
	emptyStateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

// renderInstructions renders "keys action" hints separated by dots. Every token but the
// last in a hint is highlighted as a key.
func renderInstructions(parts []string) string {
	var segments []string
	for i, part := range parts {
		if i > 0 {
			segments = append(segments, instructionDividerStyle.Render(" · "))
		}
		segments = append(segments, renderInstruction(part))
	}
	return lipgloss.JoinHorizontal(lipgloss.Left, segments...)
}

func renderInstruction(part string) string {
	tokens := strings.Fields(part)
	switch len(tokens) {
	case 0:
		return ""
	case 1:
		return instructionTextStyle.Render(tokens[0])
	}

	keys := instructionKeyStyle.Render(strings.Join(tokens[:len(tokens)-1], " "))
	return keys + instructionTextStyle.Render(" "+tokens[len(tokens)-1])
}

func renderSummaryRow(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Left,
		summaryLabelStyle.Render(label+": "),
		summaryValueStyle.Render(value),
	)
}

func hexColorFromHSV(h, s, v float64) string {
	r, g, b, err := colorconv.HSVToRGB(h, utils.Clamp01(s), utils.Clamp01(v))
	if err != nil {
		return "#FFFFFF"
	}
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}
