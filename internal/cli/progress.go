package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/agriassist/internal/service"
)

// Theme holds the color scheme for terminal output.
type Theme struct {
	Status     lipgloss.Color
	Success    lipgloss.Color
	Error      lipgloss.Color
	Hint       lipgloss.Color
	ProgressBg lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:     lipgloss.Color("#5FAFD7"), // light blue
	Success:    lipgloss.Color("#00D787"), // green
	Error:      lipgloss.Color("#FF005F"), // red
	Hint:       lipgloss.Color("#6C6C6C"), // dim gray
	ProgressBg: lipgloss.Color("#3A3A3A"), // dark gray
}

// Style functions for dynamic theming
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

// buildProgressMsg reports embedded documents.
type buildProgressMsg struct {
	done, total int
}

// buildDoneMsg carries the build outcome.
type buildDoneMsg struct {
	result *service.BuildResult
	err    error
}

// progressModel is the bubbletea model for index build progress.
type progressModel struct {
	cancel   context.CancelFunc
	done     int
	total    int
	progress progress.Model
	theme    Theme
	finished bool
	quitting bool
	result   *service.BuildResult
	err      error
}

// newProgressModel creates a new progress model.
func newProgressModel(cancel context.CancelFunc) progressModel {
	// Create progress bar with color blend
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return progressModel{
		cancel:   cancel,
		progress: prog,
		theme:    defaultTheme,
	}
}

// Init returns the initial command.
func (m progressModel) Init() tea.Cmd {
	return m.progress.Init()
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			// The build goroutine sees the cancelled context and reports back.
			m.quitting = true
			m.cancel()
			return m, nil
		}

	case buildProgressMsg:
		m.done, m.total = msg.done, msg.total
		return m, nil

	case buildDoneMsg:
		m.finished = true
		m.result = msg.result
		m.err = msg.err
		return m, tea.Quit

	case progress.FrameMsg:
		// Update progress bar animation
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m progressModel) renderContent() string {
	if m.finished {
		return m.finalView()
	}
	if m.quitting {
		return m.theme.hintStyle().Render("Cancelling build...") + "\n"
	}
	if m.total == 0 {
		return m.theme.statusStyle().Render("[loading]") + " reading advisory records...\n"
	}

	pct := float64(m.done) / float64(m.total)
	status := m.theme.statusStyle().Render("[embedding]")
	counts := fmt.Sprintf("%d/%d advisories", m.done, m.total)
	hint := m.theme.hintStyle().Render("Press Ctrl+C to cancel (the existing index is kept)")

	return fmt.Sprintf("%s %s %s\n%s\n", status, m.progress.ViewAs(pct), counts, hint)
}

// finalView renders the completion message.
func (m progressModel) finalView() string {
	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("✗ Build failed: %s", m.err)) + "\n"
	}
	return buildSummary(m.theme, m.result)
}

// buildSummary renders a finished build.
func buildSummary(theme Theme, r *service.BuildResult) string {
	if r == nil {
		return theme.completedStyle().Render("✓ Completed") + "\n"
	}
	var b strings.Builder
	if r.Saved {
		b.WriteString(theme.completedStyle().Render("✓ Index built") + "\n\n")
	} else {
		b.WriteString(theme.completedStyle().Render("✓ Records valid (dry run)") + "\n\n")
	}
	fmt.Fprintf(&b, "  Advisories:  %d\n", r.Records)
	fmt.Fprintf(&b, "  Model:       %s\n", r.Model)
	fmt.Fprintf(&b, "  Dimension:   %d\n", r.Dimension)
	if r.Saved {
		fmt.Fprintf(&b, "  Directory:   %s\n", r.IndexDir)
	}
	fmt.Fprintf(&b, "  Duration:    %s\n", r.Duration.Round(time.Millisecond))
	return b.String()
}

// RunBuildProgress runs build while rendering an interactive progress bar.
// build receives a context cancelled by Ctrl+C and a progress callback.
func RunBuildProgress(build func(ctx context.Context, onProgress func(done, total int)) (*service.BuildResult, error)) (*service.BuildResult, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := tea.NewProgram(newProgressModel(cancel))

	go func() {
		res, err := build(ctx, func(done, total int) {
			p.Send(buildProgressMsg{done: done, total: total})
		})
		p.Send(buildDoneMsg{result: res, err: err})
	}()

	finalModel, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("progress UI error: %w", err)
	}

	// Check final state
	m, ok := finalModel.(progressModel)
	if !ok {
		return nil, fmt.Errorf("progress UI error: unexpected model %T", finalModel)
	}
	return m.result, m.err
}
