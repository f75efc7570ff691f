// Package tui renders the wizard as a terminal form. All state lives in the
// wizard controller; the model only mirrors it into inputs.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	domain "github.com/ganot/stepwise/internal/domain/wizard"
	"github.com/ganot/stepwise/internal/wizard"
)

type (
	loadedMsg    struct{ err error }
	navigatedMsg struct{ err error }
	suggestedMsg struct {
		res *wizard.SuggestionResult
		err error
	}
	submittedMsg struct {
		receipt *domain.Receipt
		err     error
	}
)

type input struct {
	field domain.Field
	model textinput.Model
}

// Model is the bubbletea model for one wizard run.
type Model struct {
	ctx    context.Context
	ctrl   *wizard.Controller
	styles Styles

	step     int
	inputs   []input
	focus    int
	inflight map[wizard.Op]bool

	notice     wizard.Notice
	suggestion *wizard.SuggestionResult
	receipt    *domain.Receipt
	width      int
}

// New creates a model driving ctrl. Remote calls use ctx.
func New(ctx context.Context, ctrl *wizard.Controller) Model {
	return Model{
		ctx:      ctx,
		ctrl:     ctrl,
		styles:   DefaultStyles(),
		inflight: map[wizard.Op]bool{},
	}
}

// Receipt returns the submission receipt once the wizard is submitted.
func (m Model) Receipt() *domain.Receipt {
	return m.receipt
}

func (m Model) Init() tea.Cmd {
	m.inflight[wizard.OpLoad] = true
	return m.load()
}

func (m Model) load() tea.Cmd {
	return func() tea.Msg {
		return loadedMsg{err: m.ctrl.LoadSavedProgress(m.ctx)}
	}
}

func (m Model) next() tea.Cmd {
	return func() tea.Msg {
		return navigatedMsg{err: m.ctrl.GoNext(m.ctx)}
	}
}

func (m Model) suggest(force bool) tea.Cmd {
	return func() tea.Msg {
		res, err := m.ctrl.RequestSuggestion(m.ctx, force)
		return suggestedMsg{res: res, err: err}
	}
}

func (m Model) submit() tea.Cmd {
	return func() tea.Msg {
		receipt, err := m.ctrl.SubmitFinal(m.ctx)
		return submittedMsg{receipt: receipt, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case loadedMsg:
		delete(m.inflight, wizard.OpLoad)
		m.notice = wizard.Describe(msg.err)
		m.syncInputs()
		return m, nil

	case navigatedMsg:
		delete(m.inflight, wizard.OpNext)
		m.notice = wizard.Describe(msg.err)
		if msg.err == nil {
			m.suggestion = nil
		}
		m.syncInputs()
		return m, nil

	case suggestedMsg:
		delete(m.inflight, wizard.OpSuggest)
		m.notice = wizard.Describe(msg.err)
		if msg.err == nil {
			m.suggestion = msg.res
			m.syncInputs()
		}
		return m, nil

	case submittedMsg:
		delete(m.inflight, wizard.OpSubmit)
		m.notice = wizard.Describe(msg.err)
		if msg.err == nil {
			m.receipt = msg.receipt
			return m, tea.Quit
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "tab", "down":
		m.moveFocus(1)
		return m, nil
	case "shift+tab", "up":
		m.moveFocus(-1)
		return m, nil
	}

	if m.busy() {
		// Controls are disabled while a navigation call is outstanding.
		return m, nil
	}

	switch msg.String() {
	case "enter":
		m.inflight[wizard.OpNext] = true
		return m, m.next()
	case "esc":
		if err := m.ctrl.GoPrevious(); err != nil {
			m.notice = wizard.Describe(err)
			return m, nil
		}
		m.notice = wizard.Notice{}
		m.suggestion = nil
		m.syncInputs()
		return m, nil
	case "ctrl+g", "ctrl+f":
		if m.inflight[wizard.OpSuggest] {
			return m, nil
		}
		m.inflight[wizard.OpSuggest] = true
		return m, m.suggest(msg.String() == "ctrl+f")
	case "ctrl+s":
		m.inflight[wizard.OpSubmit] = true
		return m, m.submit()
	}

	return m.updateFocused(msg)
}

func (m Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	if len(m.inputs) == 0 {
		return m, nil
	}
	in := &m.inputs[m.focus]
	before := in.model.Value()
	var cmd tea.Cmd
	in.model, cmd = in.model.Update(msg)
	if after := in.model.Value(); after != before {
		if err := m.ctrl.EditField(in.field.Name, after); err != nil {
			m.notice = wizard.Describe(err)
		}
	}
	return m, cmd
}

func (m Model) busy() bool {
	return m.inflight[wizard.OpLoad] || m.inflight[wizard.OpNext] || m.inflight[wizard.OpSubmit]
}

func (m *Model) moveFocus(delta int) {
	if len(m.inputs) == 0 {
		return
	}
	m.inputs[m.focus].model.Blur()
	m.focus = (m.focus + delta + len(m.inputs)) % len(m.inputs)
	m.inputs[m.focus].model.Focus()
}

// syncInputs rebuilds the inputs from the controller's active draft.
func (m *Model) syncInputs() {
	snap := m.ctrl.Snapshot()
	if snap.CurrentStep != m.step {
		m.focus = 0
	}
	m.step = snap.CurrentStep

	m.inputs = nil
	for _, f := range snap.Step.Fields {
		if f.Kind == domain.KindDerived {
			continue
		}
		ti := textinput.New()
		ti.Prompt = "› "
		ti.Placeholder = placeholder(f)
		ti.SetValue(snap.Step.FieldText(snap.Draft, f.Name))
		m.inputs = append(m.inputs, input{field: f, model: ti})
	}
	if m.focus >= len(m.inputs) {
		m.focus = 0
	}
	if len(m.inputs) > 0 {
		m.inputs[m.focus].model.Focus()
	}
}

func placeholder(f domain.Field) string {
	switch f.Kind {
	case domain.KindBool:
		return "yes / no"
	case domain.KindList:
		return "comma separated"
	case domain.KindChoice:
		return strings.Join(f.Options, " / ")
	case domain.KindDecimal:
		return "e.g. 7.25"
	case domain.KindDate:
		return "YYYY-MM-DD"
	}
	return ""
}

func (m Model) View() string {
	snap := m.ctrl.Snapshot()
	def := m.ctrl.Definition()
	var b strings.Builder

	b.WriteString(m.styles.Header.Render(def.Title))
	b.WriteString("\n\n")

	if m.receipt != nil {
		b.WriteString(m.styles.Success.Render("Submitted."))
		fmt.Fprintf(&b, " Receipt %s\n", m.receipt.ID)
		return b.String()
	}
	if m.inflight[wizard.OpLoad] {
		b.WriteString("Loading saved progress…\n")
		return b.String()
	}

	b.WriteString(m.renderProgress(snap))
	b.WriteString("\n\n")
	b.WriteString(m.styles.StepTitle.Render(fmt.Sprintf("Step %d of %d: %s", snap.CurrentStep, snap.TotalSteps, snap.Step.Title)))
	b.WriteString("\n")

	fieldErrs := map[string]string{}
	if m.notice.Kind == wizard.NoticeValidation {
		for _, fe := range m.notice.Fields {
			if _, seen := fieldErrs[fe.Field]; !seen {
				fieldErrs[fe.Field] = fe.Message
			}
		}
	}

	idx := 0
	for _, f := range snap.Step.Fields {
		if f.Kind == domain.KindDerived {
			b.WriteString(m.styles.Label.Render(f.Label))
			b.WriteString(m.styles.Derived.Render(orDash(snap.Step.FieldText(snap.Draft, f.Name)) + " (computed)"))
			b.WriteString("\n")
			continue
		}
		label := m.styles.Label
		if idx == m.focus {
			label = m.styles.Focused
		}
		b.WriteString(label.Render(f.Label))
		b.WriteString(m.inputs[idx].model.View())
		b.WriteString("\n")
		if msg, ok := fieldErrs[f.Name]; ok {
			b.WriteString(m.styles.FieldError.Render(msg))
			b.WriteString("\n")
		}
		idx++
	}

	if m.suggestion != nil {
		b.WriteString("\n")
		b.WriteString(m.styles.Suggestion.Render(renderSuggestion(m.suggestion)))
		b.WriteString("\n")
	}

	if m.notice.Kind != wizard.NoticeNone && (m.notice.Kind != wizard.NoticeValidation || len(fieldErrs) == 0) {
		b.WriteString("\n")
		b.WriteString(m.renderNotice())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.styles.Footer.Render(m.footer(snap)))
	return b.String()
}

func (m Model) renderProgress(snap wizard.Snapshot) string {
	parts := make([]string, 0, snap.TotalSteps)
	for i := 1; i <= snap.TotalSteps; i++ {
		switch {
		case i < snap.CurrentStep:
			parts = append(parts, m.styles.StepDone.Render("●"))
		case i == snap.CurrentStep:
			parts = append(parts, m.styles.Focused.UnsetWidth().Render("◉"))
		default:
			parts = append(parts, m.styles.StepTodo.Render("○"))
		}
	}
	return strings.Join(parts, " ")
}

func (m Model) renderNotice() string {
	switch m.notice.Kind {
	case wizard.NoticeTransient:
		msg := m.notice.Message
		if m.notice.Retryable {
			msg += " Press the same key to retry."
		}
		return m.styles.Warning.Render(msg)
	case wizard.NoticeQuota, wizard.NoticeBusy:
		return m.styles.Warning.Render(m.notice.Message)
	default:
		return m.styles.Error.Render(m.notice.Message)
	}
}

func (m Model) footer(snap wizard.Snapshot) string {
	keys := "enter next · esc back · tab move · ctrl+g suggest"
	if snap.CurrentStep == snap.TotalSteps {
		keys += " · ctrl+s submit"
	}
	keys += " · ctrl+c quit"

	switch {
	case m.busy() || m.inflight[wizard.OpSuggest]:
		return "Working…  " + keys
	case snap.Quota != nil:
		return fmt.Sprintf("Suggestions left: %d of %d  %s", snap.Quota.Remaining(), snap.Quota.Limit, keys)
	}
	return keys
}

func renderSuggestion(res *wizard.SuggestionResult) string {
	var b strings.Builder
	b.WriteString(res.Suggestion.Explanation)
	if res.Suggestion.Confidence != nil {
		fmt.Fprintf(&b, "\nConfidence: %d%%", *res.Suggestion.Confidence)
	}
	if len(res.Suggestion.Sources) > 0 {
		fmt.Fprintf(&b, "\nSources: %s", strings.Join(res.Suggestion.Sources, ", "))
	}
	if len(res.Applied) > 0 {
		fmt.Fprintf(&b, "\nFilled in: %s", strings.Join(res.Applied, ", "))
	}
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}
