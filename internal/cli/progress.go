package cli

import (
	"context"
	"fmt"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/AlfRonDon/NeuraReport-sub005/internal/generate"
	"github.com/AlfRonDon/NeuraReport-sub005/internal/models"
)

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// itemEventMsg carries one generation item snapshot.
type itemEventMsg models.GenerationItem

// runDoneMsg signals that every seeded item reached a terminal state.
type runDoneMsg []models.GenerationItem

// generateModel is the bubbletea model for a multi-template generation run.
type generateModel struct {
	events   <-chan models.GenerationItem
	order    []string
	items    map[string]models.GenerationItem
	progress progress.Model
	theme    Theme
	final    []models.GenerationItem
	done     bool
	quitting bool
}

func newGenerateModel(seeded []models.GenerationItem, events <-chan models.GenerationItem) generateModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(30),
	)

	m := generateModel{
		events:   events,
		items:    make(map[string]models.GenerationItem, len(seeded)),
		progress: prog,
		theme:    defaultTheme,
	}
	for _, item := range seeded {
		m.order = append(m.order, item.ID)
		m.items[item.ID] = item
	}
	return m
}

// waitForEvent blocks on the subscription channel as a command.
func (m generateModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		item, ok := <-m.events
		if !ok {
			return nil
		}
		return itemEventMsg(item)
	}
}

func (m generateModel) Init() tea.Cmd {
	return tea.Batch(
		m.waitForEvent(),
		m.progress.Init(),
	)
}

func (m generateModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case itemEventMsg:
		item := models.GenerationItem(msg)
		if _, ok := m.items[item.ID]; ok {
			m.items[item.ID] = item
		}
		return m, m.waitForEvent()

	case runDoneMsg:
		m.done = true
		m.final = msg
		for _, item := range m.final {
			m.items[item.ID] = item
		}
		return m, tea.Quit

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m generateModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m generateModel) renderContent() string {
	var out string
	for _, id := range m.order {
		item := m.items[id]
		switch item.Status {
		case models.RunStatusComplete:
			out += m.theme.completedStyle().Render("✓") + " " + item.Name + "\n"
		case models.RunStatusFailed:
			out += m.theme.errorStyle().Render("✗") + " " + item.Name + ": " + item.Error + "\n"
		default:
			status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", item.Status))
			bar := m.progress.ViewAs(float64(item.Progress) / 100)
			out += fmt.Sprintf("%s %s %s\n", status, bar, item.Name)
		}
	}
	if !m.done {
		out += m.theme.hintStyle().Render("Press Ctrl+C to abort the display; runs continue") + "\n"
	}
	return out
}

// runWithProgress drives RunSeeded under an interactive progress display and
// returns the terminal items.
func runWithProgress(ctx context.Context, orch *generate.Orchestrator, paramsFor generate.ParamsFunc) ([]models.GenerationItem, error) {
	events, cancel := orch.Subscribe()
	defer cancel()

	p := tea.NewProgram(newGenerateModel(orch.Items(), events))

	go func() {
		items := orch.RunSeeded(ctx, paramsFor)
		p.Send(runDoneMsg(items))
	}()

	finalModel, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("progress UI error: %w", err)
	}

	if m, ok := finalModel.(generateModel); ok && m.done {
		return m.final, nil
	}
	// Display aborted; the run loop still finishes, fetch its current state.
	return orch.Items(), nil
}
