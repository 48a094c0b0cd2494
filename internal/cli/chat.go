package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/raphaelgruber/agriassist/internal/assistant"
	"github.com/raphaelgruber/agriassist/internal/client"
	"github.com/raphaelgruber/agriassist/internal/models"
	"github.com/spf13/cobra"
)

var (
	chatServerURL string
	chatTopK      int
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive advisory chat",
	Long: `Start an interactive chat. Follow-up questions use the conversation so far.

Commands inside the chat:
  /stats           show session statistics
  /clear           forget the conversation
  /export <file>   save the session log as JSON
  /quit            leave the chat

Examples:
  agriassist chat
  agriassist chat --server http://localhost:8585`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatServerURL, "server", "", "chat with a running agriassist-server instead of the local index")
	chatCmd.Flags().IntVarP(&chatTopK, "top-k", "k", 0, "number of advisories to retrieve (overrides AGRI_TOP_K)")
}

// chatBackend is one conversation, local or remote.
type chatBackend interface {
	Ask(ctx context.Context, question string) (models.AnswerResult, error)
	Clear(ctx context.Context) error
	Statistics(ctx context.Context) (models.Statistics, error)
	Export(ctx context.Context, w io.Writer) error
}

// localChat runs the conversation in-process.
type localChat struct {
	sess *assistant.Session
}

func (l localChat) Ask(ctx context.Context, q string) (models.AnswerResult, error) {
	return l.sess.Ask(ctx, q)
}

func (l localChat) Clear(context.Context) error {
	l.sess.Clear()
	return nil
}

func (l localChat) Statistics(context.Context) (models.Statistics, error) {
	return l.sess.Statistics(), nil
}

func (l localChat) Export(_ context.Context, w io.Writer) error {
	return l.sess.Export(w)
}

// remoteChat runs the conversation on a server over WebSocket.
type remoteChat struct {
	conn *client.ChatConn
}

func (r remoteChat) Ask(ctx context.Context, q string) (models.AnswerResult, error) {
	resp, err := r.conn.Ask(ctx, q)
	if err != nil {
		return models.AnswerResult{}, err
	}
	if resp.Result == nil {
		return models.AnswerResult{}, errors.New("answer frame without result")
	}
	if resp.Error != "" {
		return *resp.Result, errors.New(resp.Error)
	}
	return *resp.Result, nil
}

func (r remoteChat) Clear(ctx context.Context) error {
	return r.conn.Clear(ctx)
}

func (r remoteChat) Statistics(ctx context.Context) (models.Statistics, error) {
	s, err := r.conn.Statistics(ctx)
	if err != nil {
		return models.Statistics{}, err
	}
	return *s, nil
}

func (r remoteChat) Export(context.Context, io.Writer) error {
	return errors.New("export is only available for local chats")
}

// answerMsg carries a finished ask.
type answerMsg struct {
	result models.AnswerResult
	err    error
}

// chatModel is the bubbletea model for the interactive chat.
type chatModel struct {
	ctx        context.Context
	backend    chatBackend
	input      textinput.Model
	spinner    spinner.Model
	theme      Theme
	waiting    bool
	quitting   bool
	transcript []string
}

func newChatModel(ctx context.Context, backend chatBackend) chatModel {
	in := textinput.New()
	in.Placeholder = "Ask about crops, pests, fertilizers, irrigation..."
	in.Prompt = "> "
	in.CharLimit = 500
	in.SetWidth(80)
	in.Focus()

	return chatModel{
		ctx:     ctx,
		backend: backend,
		input:   in,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		theme:   defaultTheme,
	}
}

// Init starts the cursor blink.
func (m chatModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages and returns the updated model.
func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			if m.waiting {
				return m, nil
			}
			line := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if line == "" {
				return m, nil
			}
			if strings.HasPrefix(line, "/") {
				return m.command(line)
			}
			m.waiting = true
			return m, tea.Batch(m.print(m.theme.statusStyle().Render("You: ")+line), m.ask(line), m.spinner.Tick)
		}

	case answerMsg:
		m.waiting = false
		if msg.err != nil && msg.result.Error == "" {
			return m, m.print(m.theme.errorStyle().Render("Error: "+msg.err.Error()) + "\n")
		}
		return m, m.print(formatAnswer(m.theme, msg.result))

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// command handles a slash command.
func (m chatModel) command(line string) (tea.Model, tea.Cmd) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		m.quitting = true
		return m, tea.Quit

	case "/clear":
		if err := m.backend.Clear(m.ctx); err != nil {
			return m, m.print(m.theme.errorStyle().Render("Error: " + err.Error()))
		}
		return m, m.print(m.theme.hintStyle().Render("Conversation cleared."))

	case "/stats":
		stats, err := m.backend.Statistics(m.ctx)
		if err != nil {
			return m, m.print(m.theme.errorStyle().Render("Error: " + err.Error()))
		}
		return m, m.print(formatStats(m.theme, stats))

	case "/export":
		if arg == "" {
			return m, m.print(m.theme.errorStyle().Render("Usage: /export <file>"))
		}
		if err := exportTo(m.ctx, m.backend, arg); err != nil {
			return m, m.print(m.theme.errorStyle().Render("Error: " + err.Error()))
		}
		return m, m.print(m.theme.hintStyle().Render("Session exported to " + arg))

	case "/help":
		return m, m.print(m.theme.hintStyle().Render("Commands: /stats, /clear, /export <file>, /quit"))

	default:
		return m, m.print(m.theme.errorStyle().Render("Unknown command " + name + " (try /help)"))
	}
}

// print records a line and prints it above the input.
func (m *chatModel) print(s string) tea.Cmd {
	m.transcript = append(m.transcript, s)
	return tea.Println(s)
}

// ask answers a question off the update loop.
func (m chatModel) ask(q string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.backend.Ask(m.ctx, q)
		return answerMsg{result: res, err: err}
	}
}

// View renders the input line.
func (m chatModel) View() tea.View {
	if m.quitting {
		return tea.NewView(m.theme.hintStyle().Render("Goodbye! Happy farming.") + "\n")
	}
	if m.waiting {
		return tea.NewView(m.spinner.View() + " thinking...\n")
	}
	hint := m.theme.hintStyle().Render("/stats /clear /export <file> /quit")
	return tea.NewView(m.input.View() + "\n" + hint + "\n")
}

func exportTo(ctx context.Context, backend chatBackend, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := backend.Export(ctx, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var backend chatBackend
	if chatServerURL != "" {
		conn, err := client.New(chatServerURL).DialChat(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()
		backend = remoteChat{conn: conn}
	} else {
		if chatTopK > 0 {
			cfg.TopK = chatTopK
		}
		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		backend = localChat{sess: rt.NewSession("")}
	}

	fmt.Fprintln(cmd.OutOrStdout(), defaultTheme.completedStyle().Render("🌾 Agricultural advisory assistant"))
	fmt.Fprintln(cmd.OutOrStdout(), defaultTheme.hintStyle().Render("Ask a question, or /quit to leave."))

	p := tea.NewProgram(newChatModel(ctx, backend))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat UI error: %w", err)
	}
	return nil
}
