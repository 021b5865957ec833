// Package ui renders installation plans and states for the terminal.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/petrijr/appinstall/pkg/api"
)

var (
	purple = lipgloss.Color("99")
	green  = lipgloss.Color("76")
	red    = lipgloss.Color("204")
	yellow = lipgloss.Color("214")
	dim    = lipgloss.Color("243")
	faint  = lipgloss.Color("238")
)

var (
	AccentStyle  = lipgloss.NewStyle().Foreground(purple)
	SuccessStyle = lipgloss.NewStyle().Foreground(green)
	ErrorStyle   = lipgloss.NewStyle().Foreground(red)
	WarnStyle    = lipgloss.NewStyle().Foreground(yellow)
	MutedStyle   = lipgloss.NewStyle().Foreground(dim)
	BoldStyle    = lipgloss.NewStyle().Bold(true)
	LabelStyle   = lipgloss.NewStyle().Foreground(dim)
)

func Bold(s string) string  { return BoldStyle.Render(s) }
func Muted(s string) string { return MutedStyle.Render(s) }

func SuccessMsg(format string, a ...any) string {
	return SuccessStyle.Render("✓") + " " + fmt.Sprintf(format, a...)
}

func ErrorMsg(format string, a ...any) string {
	return ErrorStyle.Render("✗") + " " + fmt.Sprintf(format, a...)
}

func InfoMsg(format string, a ...any) string {
	return AccentStyle.Render("●") + " " + fmt.Sprintf(format, a...)
}

// Pair holds a key-value pair for KeyValues output.
type Pair struct {
	key   string
	value string
}

// KV creates a key-value pair.
func KV(key, value string) Pair {
	return Pair{key: key, value: value}
}

// KeyValues renders aligned "key:  value" lines with a trailing newline.
func KeyValues(indent string, pairs ...Pair) string {
	maxLen := 0
	for _, p := range pairs {
		if len(p.key) > maxLen {
			maxLen = len(p.key)
		}
	}

	var sb strings.Builder
	for _, p := range pairs {
		label := fmt.Sprintf("%-*s", maxLen+1, p.key+":")
		sb.WriteString(indent + LabelStyle.Render(label) + " " + p.value + "\n")
	}
	return sb.String()
}

// Table renders a styled table with rounded borders.
func Table(headers []string, rows [][]string) string {
	headerStyle := lipgloss.NewStyle().Foreground(purple).Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(faint)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...)

	return t.String()
}

var stepMarks = map[api.StepState]string{
	api.StepPending:    MutedStyle.Render("○"),
	api.StepInProgress: WarnStyle.Render("◐"),
	api.StepSucceeded:  SuccessStyle.Render("✓"),
	api.StepFailed:     ErrorStyle.Render("✗"),
	api.StepSkipped:    MutedStyle.Render("–"),
}

// StepMark returns the symbol shown for a step status.
func StepMark(s api.StepState) string {
	if m, ok := stepMarks[s]; ok {
		return m
	}
	return "?"
}

// InstallationStatus renders an installation status in its color.
func InstallationStatus(s api.InstallationStatus) string {
	switch s {
	case api.InstallationSucceeded:
		return SuccessStyle.Render(string(s))
	case api.InstallationFailed:
		return ErrorStyle.Render(string(s))
	case api.InstallationInProgress:
		return WarnStyle.Render(string(s))
	default:
		return MutedStyle.Render(string(s))
	}
}

// StepTree renders a status tree, one step per line, children indented.
func StepTree(root *api.StepStatus) string {
	var sb strings.Builder
	writeStep(&sb, root, "", true, true)
	return sb.String()
}

func writeStep(sb *strings.Builder, s *api.StepStatus, prefix string, last, top bool) {
	if s == nil {
		return
	}

	branch, childPrefix := "", ""
	if !top {
		branch = "├── "
		childPrefix = prefix + "│   "
		if last {
			branch = "└── "
			childPrefix = prefix + "    "
		}
	}

	label := s.Meta.Label
	if label == "" {
		label = s.Name
	}
	line := StepMark(s.Status) + " " + label
	if label != s.Name {
		line += " " + Muted("("+s.Name+")")
	}
	if s.Status == api.StepSkipped {
		line += " " + Muted("skipped")
	}
	sb.WriteString(MutedStyle.Render(prefix+branch) + line + "\n")

	for i, c := range s.Children {
		writeStep(sb, c, childPrefix, i == len(s.Children)-1, false)
	}
}
