package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
	"github.com/jwulff/steno/history/internal/daemon"
	"github.com/jwulff/steno/history/internal/history"
	"github.com/jwulff/steno/history/internal/ui"
	"go.uber.org/zap"

	tea "github.com/charmbracelet/bubbletea"
)

// commandTimeout bounds every request sent to the daemon.
const commandTimeout = 5 * time.Second

// Model is the root bubbletea model for the history browser.
type Model struct {
	socketPath string
	log        *zap.Logger

	// Connection state
	remote    *daemon.Remote
	connected bool
	connError string

	// History
	ctrl          *history.Controller
	changes       chan struct{}
	done          chan struct{}
	stopListening func()
	loaded        bool
	loadError     string

	// UI state
	cursor    int
	search    textinput.Model
	searching bool
	width     int
	height    int

	// Errors
	errorMessage   string
	errorTransient bool

	// Reconnect
	reconnecting     bool
	reconnectAttempt int
}

// New creates a new Model that will connect to the daemon at socketPath.
func New(socketPath string, log *zap.Logger) Model {
	if log == nil {
		log = zap.NewNop()
	}
	search := textinput.New()
	search.Placeholder = "Search..."
	search.Prompt = "/ "
	search.CharLimit = 200

	return Model{
		socketPath: socketPath,
		log:        log,
		search:     search,
	}
}

// Init connects to the daemon.
func (m Model) Init() tea.Cmd {
	return connectCmd(m.socketPath, m.log)
}

// connectCmd dials the daemon command connection.
func connectCmd(socketPath string, log *zap.Logger) tea.Cmd {
	return func() tea.Msg {
		remote, err := daemon.Dial(socketPath, log)
		if err != nil {
			return DaemonConnectErrorMsg{Err: err}
		}
		return DaemonConnectedMsg{Remote: remote}
	}
}

// loadCmd fetches the history and starts the push subscription.
func loadCmd(ctrl *history.Controller) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		return HistoryLoadedMsg{Err: ctrl.Load(ctx)}
	}
}

// waitForChangeCmd blocks until the controller reports a change.
func waitForChangeCmd(changes <-chan struct{}, done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-changes:
			return StateChangedMsg{}
		case <-done:
			return nil
		}
	}
}

// watchSubscriptionCmd waits for the push stream to break.
func watchSubscriptionCmd(remote *daemon.Remote, done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case err := <-remote.SubscriptionErr():
			return SubscriptionErrorMsg{Err: err}
		case <-done:
			return nil
		}
	}
}

// historyCmd runs a controller command and reports failures.
func historyCmd(fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			return CommandErrorMsg{Err: err}
		}
		return nil
	}
}

// clearTransientErrorCmd fires after a delay to clear transient errors.
func clearTransientErrorCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(time.Time) tea.Msg {
		return ClearTransientErrorMsg{}
	})
}

// reconnectCmd schedules a reconnection attempt with exponential backoff.
func reconnectCmd(attempt int) tea.Cmd {
	delay := time.Duration(1<<min(attempt, 4)) * time.Second // 1s, 2s, 4s, 8s, 16s cap
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return ReconnectTickMsg{}
	})
}

// attach wires a controller into the model and returns the commands that
// keep the view in sync with it.
func (m *Model) attach(ctrl *history.Controller) tea.Cmd {
	m.ctrl = ctrl
	m.changes = make(chan struct{}, 1)
	m.done = make(chan struct{})
	m.cursor = 0

	changes := m.changes
	m.stopListening = ctrl.OnChange(func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	})

	ctrl.SetSearchQuery(m.search.Value())
	return waitForChangeCmd(m.changes, m.done)
}

// detach tears down the controller and connection.
func (m *Model) detach() {
	if m.stopListening != nil {
		m.stopListening()
		m.stopListening = nil
	}
	if m.done != nil {
		close(m.done)
		m.done = nil
	}
	if m.ctrl != nil {
		m.ctrl.Close()
		m.ctrl = nil
	}
	m.changes = nil
	if m.remote != nil {
		m.remote.Close()
		m.remote = nil
	}
	m.connected = false
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.search.Width = max(10, msg.Width-4)
		return m, nil

	case DaemonConnectedMsg:
		m.remote = msg.Remote
		m.connected = true
		m.connError = ""
		m.reconnecting = false
		m.reconnectAttempt = 0
		ctrl := history.NewController(m.remote, history.WithLogger(m.log))
		wait := m.attach(ctrl)
		return m, tea.Batch(
			wait,
			loadCmd(ctrl),
			watchSubscriptionCmd(m.remote, m.done),
		)

	case DaemonConnectErrorMsg:
		m.connected = false
		m.connError = msg.Err.Error()
		m.reconnecting = true
		return m, reconnectCmd(m.reconnectAttempt)

	case HistoryLoadedMsg:
		m.loaded = true
		if errors.Is(msg.Err, history.ErrSubscribeFailed) {
			// Without pushes the mirror would never see deletes or clears.
			m.log.Warn("history subscription failed", zap.Error(msg.Err))
			m.detach()
			m.connError = msg.Err.Error()
			m.reconnecting = true
			return m, reconnectCmd(m.reconnectAttempt)
		}
		if msg.Err != nil {
			m.loadError = msg.Err.Error()
			m.log.Warn("load history", zap.Error(msg.Err))
		} else {
			m.loadError = ""
		}
		return m, nil

	case StateChangedMsg:
		if m.ctrl != nil && m.ctrl.Len() > 0 {
			m.loadError = ""
		}
		m.clampCursor()
		if m.changes == nil {
			return m, nil
		}
		return m, waitForChangeCmd(m.changes, m.done)

	case SubscriptionErrorMsg:
		m.log.Warn("history subscription lost", zap.Error(msg.Err))
		m.detach()
		m.connError = msg.Err.Error()
		m.reconnecting = true
		return m, reconnectCmd(m.reconnectAttempt)

	case CommandErrorMsg:
		m.errorMessage = msg.Err.Error()
		m.errorTransient = true
		return m, clearTransientErrorCmd()

	case ReconnectTickMsg:
		m.reconnectAttempt++
		return m, connectCmd(m.socketPath, m.log)

	case ClearTransientErrorMsg:
		if m.errorTransient {
			m.errorMessage = ""
			m.errorTransient = false
		}
		return m, nil
	}

	if m.searching {
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		return m, cmd
	}
	return m, nil
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == KeyCtrlC {
		m.detach()
		return m, tea.Quit
	}

	if m.searching {
		return m.handleSearchKey(msg)
	}

	if m.ctrl != nil && m.ctrl.ClearPending() {
		switch key {
		case KeyConfirmYes:
			return m, historyCmd(m.ctrl.ConfirmClearAll)
		case KeyConfirmNo, KeyEsc:
			m.ctrl.CancelClearAll()
		}
		return m, nil
	}

	switch key {
	case KeyQuit:
		m.detach()
		return m, tea.Quit

	case KeyJ, KeyDown:
		m.cursor++
		m.clampCursor()
		return m, nil

	case KeyK, KeyUp:
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case KeySearch:
		m.searching = true
		return m, m.search.Focus()

	case KeyEsc:
		m.search.SetValue("")
		if m.ctrl != nil {
			m.ctrl.SetSearchQuery("")
		}
		m.clampCursor()
		return m, nil
	}

	if m.ctrl == nil {
		return m, nil
	}

	switch key {
	case KeyTab:
		if m.ctrl.FilterMode() == history.FilterAll {
			m.ctrl.SetFilterMode(history.FilterFavorites)
		} else {
			m.ctrl.SetFilterMode(history.FilterAll)
		}
		m.clampCursor()
		return m, nil

	case KeyClearAll:
		m.ctrl.RequestClearAll()
		return m, nil
	}

	entry, ok := m.selected()
	if !ok {
		return m, nil
	}
	ctrl := m.ctrl

	switch key {
	case KeyFavorite:
		return m, historyCmd(func(ctx context.Context) error {
			return ctrl.ToggleFavorite(ctx, entry.ID)
		})

	case KeyCopy, KeyEnter:
		return m, historyCmd(func(ctx context.Context) error {
			return ctrl.Copy(ctx, entry.ID)
		})

	case KeyDelete:
		return m, historyCmd(func(ctx context.Context) error {
			return ctrl.DeleteEntry(ctx, entry.ID)
		})
	}

	return m, nil
}

// handleSearchKey edits the search box while it has focus.
func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyEsc, KeyEnter:
		m.searching = false
		m.search.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if m.ctrl != nil {
		m.ctrl.SetSearchQuery(m.search.Value())
	}
	m.clampCursor()
	return m, cmd
}

func (m Model) visible() []history.Entry {
	if m.ctrl == nil {
		return nil
	}
	return m.ctrl.View()
}

func (m Model) selected() (history.Entry, bool) {
	entries := m.visible()
	if m.cursor < 0 || m.cursor >= len(entries) {
		return history.Entry{}, false
	}
	return entries[m.cursor], true
}

func (m *Model) clampCursor() {
	n := len(m.visible())
	if m.cursor >= n {
		m.cursor = max(0, n-1)
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) listVisibleRows() int {
	if m.height == 0 {
		return 10
	}
	// Reserve: header(1) + search(1) + divider(2) + prompt/error(1) + footer(1)
	// Each entry takes two lines.
	return max(1, (m.height-6)/2)
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sections []string

	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderSearch())
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))
	sections = append(sections, m.renderList())
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))

	if m.ctrl != nil && m.ctrl.ClearPending() {
		sections = append(sections, ui.PromptStyle.Render("Delete all entries? (y/n)"))
	} else if m.errorMessage != "" {
		sections = append(sections, m.renderErrorBar())
	}

	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := ui.TitleStyle.Render("HISTORY")

	count := 0
	mode := history.FilterAll
	if m.ctrl != nil {
		count = m.ctrl.Len()
		mode = m.ctrl.FilterMode()
	}
	entries := ui.StatusStyle.Render(fmt.Sprintf(" %d entries", count))

	all := ui.FilterInactiveStyle.Render("All")
	favs := ui.FilterInactiveStyle.Render("★ Favorites")
	if mode == history.FilterAll {
		all = ui.FilterActiveStyle.Render("All")
	} else {
		favs = ui.FilterActiveStyle.Render("★ Favorites")
	}

	left := title + entries
	right := all + "  " + favs
	gap := max(1, m.width-lipgloss.Width(left)-lipgloss.Width(right))
	return left + strings.Repeat(" ", gap) + right
}

func (m Model) renderSearch() string {
	if m.searching || m.search.Value() != "" {
		return m.search.View()
	}
	return ui.DimStyle.Render("/ Search...")
}

func (m Model) renderList() string {
	rows := m.listVisibleRows()
	var lines []string

	switch {
	case !m.connected && m.reconnecting:
		lines = append(lines, "", ui.ErrorTextStyle.Render("  Daemon disconnected. Reconnecting..."))
		lines = append(lines, ui.DimStyle.Render("  Start with: steno-history serve"))
	case !m.connected:
		lines = append(lines, ui.DimStyle.Render("  Connecting to history daemon..."))
	case m.loadError != "":
		lines = append(lines, "", ui.ErrorTextStyle.Render("  Could not load history: "+m.loadError))
	default:
		entries := m.visible()
		if len(entries) == 0 {
			lines = append(lines, "", ui.DimStyle.Render("  No entries"))
			break
		}

		start := 0
		if m.cursor >= rows {
			start = m.cursor - rows + 1
		}
		end := min(len(entries), start+rows)

		copiedID, hasCopied := m.ctrl.CopiedID()
		for i := start; i < end; i++ {
			copied := hasCopied && copiedID == entries[i].ID
			lines = append(lines, m.renderEntry(entries[i], i == m.cursor, copied)...)
		}
	}

	for len(lines) < rows*2 {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderEntry(e history.Entry, selected, copied bool) []string {
	marker := "  "
	if selected {
		marker = ui.SelectedStyle.Render("> ")
	}

	star := ui.DimStyle.Render("☆")
	if e.Favorite {
		star = ui.FavoriteStyle.Render("★")
	}

	text := truncateToWidth(firstLine(e.DisplayText()), max(10, m.width-6))
	if selected {
		text = ui.SelectedStyle.Render(text)
	}

	meta := ui.TimestampStyle.Render(e.Timestamp.Local().Format("02.01. 15:04")) +
		"  " + ui.WordBadgeStyle.Render(fmt.Sprintf("%d W", e.WordCount))
	if e.PolishUsed {
		meta += "  " + ui.PolishBadgeStyle.Render("⚡ Polish")
	}
	if copied {
		meta += "  " + ui.CopiedStyle.Render("✓ copied")
	}

	return []string{
		marker + star + " " + text,
		"    " + meta,
	}
}

func (m Model) renderErrorBar() string {
	return ui.ErrorStyle.Render("Error: ") + ui.ErrorTextStyle.Render(m.errorMessage)
}

func (m Model) renderFooter() string {
	var parts []string

	if m.searching {
		parts = append(parts, ui.FooterKeyStyle.Render("Enter/Esc")+ui.FooterDescStyle.Render(" Done"))
		return strings.Join(parts, "  ")
	}

	if m.connected {
		parts = append(parts, ui.FooterKeyStyle.Render("j/k")+ui.FooterDescStyle.Render(" Nav"))
		parts = append(parts, ui.FooterKeyStyle.Render("/")+ui.FooterDescStyle.Render(" Search"))
		parts = append(parts, ui.FooterKeyStyle.Render("Tab")+ui.FooterDescStyle.Render(" Filter"))
		parts = append(parts, ui.FooterKeyStyle.Render("c")+ui.FooterDescStyle.Render(" Copy"))
		parts = append(parts, ui.FooterKeyStyle.Render("s")+ui.FooterDescStyle.Render(" Star"))
		parts = append(parts, ui.FooterKeyStyle.Render("d")+ui.FooterDescStyle.Render(" Delete"))
		parts = append(parts, ui.FooterKeyStyle.Render("C")+ui.FooterDescStyle.Render(" Clear all"))
	}

	parts = append(parts, ui.FooterKeyStyle.Render("q")+ui.FooterDescStyle.Render(" Quit"))

	return strings.Join(parts, "  ")
}

// Helpers

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}

func truncateToWidth(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible <= width {
		return s
	}
	// Simple truncation for non-styled strings
	runes := []rune(s)
	if len(runes) > width-1 {
		return string(runes[:width-1]) + "…"
	}
	return s
}
