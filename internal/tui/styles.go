package tui

import "github.com/charmbracelet/lipgloss"

var (
	primary = lipgloss.Color("#5A56E0")
	muted   = lipgloss.Color("#7D7D8A")
	success = lipgloss.Color("#2E9E5B")
	warning = lipgloss.Color("#D08A1C")
	danger  = lipgloss.Color("#D6455D")
)

// Styles holds the renderer's lipgloss styles.
type Styles struct {
	Header     lipgloss.Style
	StepTitle  lipgloss.Style
	Label      lipgloss.Style
	Focused    lipgloss.Style
	Derived    lipgloss.Style
	FieldError lipgloss.Style
	Suggestion lipgloss.Style
	Footer     lipgloss.Style
	Success    lipgloss.Style
	Warning    lipgloss.Style
	Error      lipgloss.Style
	StepDone   lipgloss.Style
	StepTodo   lipgloss.Style
}

// DefaultStyles returns the built-in palette.
func DefaultStyles() Styles {
	return Styles{
		Header: lipgloss.NewStyle().
			Background(primary).
			Foreground(lipgloss.Color("#ffffff")).
			Padding(0, 2).
			Bold(true),
		StepTitle: lipgloss.NewStyle().
			Foreground(primary).
			Bold(true).
			MarginBottom(1),
		Label: lipgloss.NewStyle().
			Width(34),
		Focused: lipgloss.NewStyle().
			Width(34).
			Foreground(primary).
			Bold(true),
		Derived: lipgloss.NewStyle().
			Foreground(muted).
			Italic(true),
		FieldError: lipgloss.NewStyle().
			Foreground(danger).
			PaddingLeft(2),
		Suggestion: lipgloss.NewStyle().
			PaddingLeft(2).
			BorderLeft(true).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(primary),
		Footer: lipgloss.NewStyle().
			Foreground(muted),
		Success: lipgloss.NewStyle().
			Foreground(success).
			Bold(true),
		Warning: lipgloss.NewStyle().
			Foreground(warning),
		Error: lipgloss.NewStyle().
			Foreground(danger).
			Bold(true),
		StepDone: lipgloss.NewStyle().
			Foreground(success),
		StepTodo: lipgloss.NewStyle().
			Foreground(muted),
	}
}
