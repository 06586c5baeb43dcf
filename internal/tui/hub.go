// Package tui provides the Bubble Tea hub shown by `devrelay serve`.
//
// The hub launches when a human runs serve in an interactive terminal.
// It is never activated for agents, CI/CD, or piped output -- the
// --json/--plain flags and an isatty check gate it.
package tui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/devrelay/cli/internal/bridge"
	"github.com/devrelay/cli/internal/discovery"
	"github.com/devrelay/cli/internal/status"
	"github.com/devrelay/cli/internal/ui"
)

// ShouldRunHub returns true if the interactive hub should be launched.
// Returns false when stdout is not a terminal, or --json/--plain are set.
//
// Parameters:
//   - jsonOutput: whether --json was passed
//   - plain: whether --plain was passed
//
// Returns:
//   - bool: true if the hub should run
func ShouldRunHub(jsonOutput, plain bool) bool {
	if jsonOutput || plain {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// Supervisor is the slice of the bridge manager the hub renders and drives.
type Supervisor interface {
	State() status.ServerStatus
	Name() string
	Target() discovery.Target
	Handle() *bridge.Handle
	StatusHint() string
	Restart(ctx context.Context) error
}

// Options configures the hub.
type Options struct {
	// Version is the CLI version string for the header.
	Version string

	// ProjectName labels the header. May be empty.
	ProjectName string

	// OpenURL is the bridge origin the proxy serves, e.g.
	// "http://127.0.0.1:8000". The o key opens it in a browser.
	OpenURL string

	// Supervisor is the bridge manager behind the hub.
	Supervisor Supervisor

	// SessionCount returns the live proxy session count. Nil hides it.
	SessionCount func() int

	// Subscribe registers the dev server output feed. The hub calls it
	// once with its own sink before entering the event loop.
	Subscribe func(sink func(line string, stderr bool))
}

// maxHubLines bounds the scrollback kept in the output viewport.
const maxHubLines = 500

// --- Messages ---

// outputMsg carries one dev server output line into the event loop.
type outputMsg struct {
	line   string
	stderr bool
}

// tickMsg drives the periodic state refresh.
type tickMsg time.Time

// restartDoneMsg signals that a requested restart finished.
type restartDoneMsg struct{ err error }

func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// restartCmd restarts the dev server off the event loop.
func restartCmd(sup Supervisor) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		return restartDoneMsg{err: sup.Restart(ctx)}
	}
}

// --- Model ---

// hubModel is the Bubble Tea model for the serve hub.
type hubModel struct {
	opts Options

	spinner  spinner.Model
	viewport viewport.Model
	vpReady  bool

	lines      []string
	state      string
	restarting bool
	err        error

	width  int
	height int
}

// newHubModel creates the initial hub model.
func newHubModel(opts Options) hubModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = ui.SpinnerStyle

	return hubModel{
		opts:    opts,
		spinner: s,
		state:   string(opts.Supervisor.State()),
	}
}

// Init starts the spinner and the periodic state refresh.
func (m hubModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// Update handles all incoming messages and key events.
func (m hubModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := max(msg.Height-7, 3)
		if !m.vpReady {
			m.viewport = viewport.New(msg.Width, vpHeight)
			m.viewport.SetContent(strings.Join(m.lines, "\n"))
			m.viewport.GotoBottom()
			m.vpReady = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = vpHeight
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		m.state = string(m.opts.Supervisor.State())
		return m, tickCmd()

	case outputMsg:
		line := msg.line
		if msg.stderr {
			line = ui.DimStyle.Render(line)
		}
		m.lines = append(m.lines, line)
		if len(m.lines) > maxHubLines {
			m.lines = m.lines[len(m.lines)-maxHubLines:]
		}
		if m.vpReady {
			atBottom := m.viewport.AtBottom()
			m.viewport.SetContent(strings.Join(m.lines, "\n"))
			if atBottom {
				m.viewport.GotoBottom()
			}
		}
		return m, nil

	case restartDoneMsg:
		m.restarting = false
		m.err = msg.err
		m.state = string(m.opts.Supervisor.State())
		return m, nil
	}

	return m, nil
}

// handleKey processes key events.
func (m hubModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "r":
		if m.restarting {
			return m, nil
		}
		m.restarting = true
		m.err = nil
		return m, tea.Batch(m.spinner.Tick, restartCmd(m.opts.Supervisor))

	case "o":
		_ = ui.OpenBrowser(m.opts.OpenURL)
		return m, nil
	}

	// Remaining keys scroll the output viewport
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// --- View rendering ---

var separatorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#374151"))

// separator returns a horizontal line of the given width.
func separator(width int) string {
	return separatorStyle.Render(strings.Repeat("─", width))
}

// View renders the hub screen.
func (m hubModel) View() string {
	var b strings.Builder
	w := m.width
	if w == 0 {
		w = 80
	}
	sepW := min(w, 72)

	b.WriteString(ui.TitleStyle.Render(" DEVRELAY") + "  " + ui.DimStyle.Render("v"+m.opts.Version))
	if m.opts.ProjectName != "" {
		b.WriteString("  " + ui.DimStyle.Render(m.opts.ProjectName))
	}
	b.WriteString("\n")
	b.WriteString(separator(sepW) + "\n")
	b.WriteString(m.renderStatusLine() + "\n")
	b.WriteString(m.renderBridgeLine() + "\n")
	b.WriteString(separator(sepW) + "\n")
	if m.vpReady {
		b.WriteString(m.viewport.View() + "\n")
	}
	b.WriteString(separator(sepW) + "\n")
	b.WriteString(m.renderHelp())
	return b.String()
}

// renderStatusLine renders the dev server state with icon and process info.
func (m hubModel) renderStatusLine() string {
	if m.restarting {
		return " " + m.spinner.View() + " Restarting " + m.opts.Supervisor.Name() + "..."
	}

	label := status.StatusIcon(m.state) + " " + m.opts.Supervisor.Name() + " " + m.state
	var styled string
	switch status.StatusCategory(m.state) {
	case "success":
		styled = ui.StatusReadyStyle.Render(label)
	case "error":
		styled = ui.StatusCrashedStyle.Render(label)
	case "info":
		styled = m.spinner.View() + " " + ui.StatusStartingStyle.Render(label)
	default:
		styled = ui.StatusStoppedStyle.Render(label)
	}

	extra := ""
	if handle := m.opts.Supervisor.Handle(); handle != nil && status.IsActive(m.state) {
		extra = ui.DimStyle.Render(fmt.Sprintf("  pid %d  up %s",
			handle.PID(), handle.Uptime().Round(time.Second)))
	}
	return " " + styled + extra
}

// renderBridgeLine renders the proxy origin and its current target.
func (m hubModel) renderBridgeLine() string {
	if !status.IsActive(m.state) {
		if hint := m.opts.Supervisor.StatusHint(); hint != "" {
			return " " + ui.DimStyle.Render(hint)
		}
	}

	parts := []string{ui.LinkStyle.Render(m.opts.OpenURL)}
	if status.IsActive(m.state) {
		parts = append(parts,
			ui.DimStyle.Render("→"),
			ui.InfoStyle.Render(m.opts.Supervisor.Target().HTTPBaseURL))
	}
	if m.opts.SessionCount != nil {
		count := m.opts.SessionCount()
		noun := "sessions"
		if count == 1 {
			noun = "session"
		}
		parts = append(parts, ui.DimStyle.Render(fmt.Sprintf("(%d %s)", count, noun)))
	}
	return " " + strings.Join(parts, " ")
}

// renderHelp renders the bottom key hint bar, with any restart error above it.
func (m hubModel) renderHelp() string {
	keys := []string{
		helpKey("r", "restart"),
		helpKey("o", "open browser"),
		helpKey("↑/↓", "scroll"),
		helpKey("q", "quit"),
	}
	bar := " " + strings.Join(keys, "  ")
	if m.err != nil {
		return " " + ui.ErrorStyle.Render("✗ "+m.err.Error()) + "\n" + bar
	}
	return bar
}

// helpKey formats a key hint like "r restart".
func helpKey(key, desc string) string {
	return ui.AccentStyle.Render(key) + " " + ui.DimStyle.Render(desc)
}

// RunHub launches the serve hub. This is the entry point called from
// cmd/devrelay/serve.go once the bridge is up.
//
// Parameters:
//   - opts: Hub wiring
//
// Returns:
//   - error: Any error from the Bubble Tea runtime
func RunHub(opts Options) error {
	p := tea.NewProgram(
		newHubModel(opts),
		tea.WithAltScreen(),
	)
	if opts.Subscribe != nil {
		opts.Subscribe(func(line string, stderr bool) {
			p.Send(outputMsg{line: line, stderr: stderr})
		})
	}
	_, err := p.Run()
	return err
}
