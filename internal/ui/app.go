package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/deepsearch/internal/otel"
	"github.com/abelbrown/deepsearch/internal/search"
	"github.com/abelbrown/deepsearch/internal/session"
	"github.com/abelbrown/deepsearch/internal/upload"
)

// ObsConfig wires observability into the UI.
type ObsConfig struct {
	Ring   *otel.RingBuffer
	Logger *otel.Logger
}

// AppConfig holds the command functions the App uses to reach the rest of
// the client. Any of them may be nil, which disables that action.
type AppConfig struct {
	Upload           func(path string) tea.Cmd
	Search           func(query string) tea.Cmd
	Reset            func() tea.Cmd
	Jump             func(ts float64) tea.Cmd
	Prepare          func() tea.Cmd
	SetWeights       func(visual, text float64) tea.Cmd
	SetFrameInterval func(seconds float64) tea.Cmd
	RecentQueries    func() tea.Cmd
	PreviewURL       func(previewPath string) string

	// Initial values shown before the first SessionChanged arrives.
	Session       session.Session
	FrameInterval float64
	VisualWeight  float64
	TextWeight    float64
	ShowDebug     bool

	Obs ObsConfig
}

type focusArea int

const (
	focusQuery focusArea = iota
	focusResults
)

// App is the root Bubble Tea model.
// IMPORTANT: App does NOT hold the session controller. It renders snapshots
// delivered as SessionChanged messages and acts only through AppConfig.
type App struct {
	cfg  AppConfig
	sess session.Session

	pathInput  textinput.Model
	queryInput textinput.Model
	spinner    spinner.Model
	progress   progress.Model
	settings   SettingsPanel

	focus      focusArea
	cursor     int
	history    []string
	historyIdx int

	notice   string
	lastJump float64
	jumped   bool

	uploading bool
	searching bool
	resetting bool

	settingsVisible bool
	debugVisible    bool

	width  int
	height int
	ready  bool
}

// NewAppWithConfig creates an App from cfg.
func NewAppWithConfig(cfg AppConfig) App {
	if cfg.Session.Status == "" {
		cfg.Session.Status = session.StatusStartup
	}
	if cfg.FrameInterval == 0 {
		cfg.FrameInterval = upload.DefaultFrameInterval
	}
	if cfg.VisualWeight == 0 && cfg.TextWeight == 0 {
		cfg.VisualWeight, cfg.TextWeight = search.DefaultWeight, search.DefaultWeight
	}

	path := textinput.New()
	path.Placeholder = "/path/to/video.mp4"
	path.Prompt = "› "
	path.CharLimit = 4096

	query := textinput.New()
	query.Placeholder = "describe a scene, e.g. a cat jumping"
	query.Prompt = "/ "
	query.CharLimit = 256

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SliderActive

	a := App{
		cfg:          cfg,
		sess:         cfg.Session,
		pathInput:    path,
		queryInput:   query,
		spinner:      s,
		progress:     progress.New(progress.WithDefaultGradient()),
		settings:     NewSettingsPanel(cfg.FrameInterval, cfg.VisualWeight, cfg.TextWeight),
		debugVisible: cfg.ShowDebug,
	}
	a.syncFocus()
	return a
}

// Init starts the cursor blink and spinner.
func (a App) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, a.spinner.Tick)
}

// Update handles messages and returns the updated model and any commands.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	defer otel.Trace(a.cfg.Obs.Logger, "ui", msg)()

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		a.pathInput.Width = max(msg.Width-8, 10)
		a.queryInput.Width = max(msg.Width-8, 10)
		a.progress.Width = min(max(msg.Width-12, 10), 60)
		return a, nil

	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case SessionChanged:
		return a.applySession(msg.Session)

	case Notice:
		a.notice = msg.Text
		return a, nil

	case UploadDone:
		a.uploading = false
		switch {
		case msg.Err == nil:
			a.pathInput.Reset()
		case errors.Is(msg.Err, upload.ErrNoFile):
			a.notice = "Select a video file to upload"
		case errors.Is(msg.Err, session.ErrOffline):
			a.notice = "Backend offline, upload unavailable"
		}
		return a, nil

	case SearchDone:
		// failures are logged by the search controller and stay silent here
		a.searching = false
		if msg.Err == nil {
			a.cursor = 0
			if msg.Results > 0 {
				a.focus = focusResults
				a.syncFocus()
			}
		}
		return a, nil

	case ResetDone:
		a.resetting = false
		return a, nil

	case JumpDone:
		if msg.Err == nil {
			a.lastJump = msg.Timestamp
			a.jumped = true
		}
		return a, nil

	case HistoryLoaded:
		if msg.Err == nil && len(msg.Queries) > 0 {
			a.history = msg.Queries
			a.historyIdx = 0
			a.recallHistory()
		}
		return a, nil

	case SettingsApplied:
		if msg.Err != nil {
			a.notice = msg.Err.Error()
		}
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	// cursor blink and other input-internal messages
	return a, a.updateInputs(msg)
}

// applySession installs a newer snapshot and reacts to mode and media changes.
func (a App) applySession(s session.Session) (tea.Model, tea.Cmd) {
	if s.Version < a.sess.Version {
		return a, nil
	}
	prev := a.sess
	a.sess = s

	if a.cursor >= len(s.Results) {
		a.cursor = max(len(s.Results)-1, 0)
	}
	if len(s.Results) == 0 && a.focus == focusResults {
		a.focus = focusQuery
	}
	if s.Media == nil {
		a.jumped = false
	}

	modeChanged := s.Mode() != prev.Mode()
	if modeChanged {
		a.focus = focusQuery
		a.syncFocus()
	}
	if s.Query == "" && prev.Query != "" {
		// cleared by reset
		a.queryInput.Reset()
		a.history = nil
	}

	if a.cfg.Prepare == nil {
		return a, nil
	}
	enteredWorkspace := modeChanged && s.Mode() == session.ModeWorkspace
	mediaGone := prev.Media != nil && s.Media == nil
	if enteredWorkspace || mediaGone {
		return a, a.cfg.Prepare()
	}
	return a, nil
}

// handleKeyMsg processes keyboard input.
func (a App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return a, tea.Quit
	case key.Matches(msg, keys.Debug):
		a.debugVisible = !a.debugVisible
		return a, nil
	}
	if a.debugVisible {
		if key.Matches(msg, keys.Escape) {
			a.debugVisible = false
		}
		return a, nil
	}

	// Clear any existing notice on key press
	a.notice = ""

	switch {
	case key.Matches(msg, keys.Reset):
		return a.reset()
	case key.Matches(msg, keys.Settings):
		a.settingsVisible = !a.settingsVisible
		return a, nil
	}
	if a.settingsVisible {
		return a.handleSettingsKey(msg)
	}

	switch a.sess.Mode() {
	case session.ModeUpload:
		return a.handleUploadKey(msg)
	case session.ModeWorkspace:
		return a.handleWorkspaceKey(msg)
	}
	return a, nil
}

func (a App) reset() (tea.Model, tea.Cmd) {
	if a.resetting || a.cfg.Reset == nil {
		return a, nil
	}
	a.resetting = true
	a.queryInput.Reset()
	a.cursor = 0
	a.focus = focusQuery
	a.history = nil
	a.jumped = false
	a.syncFocus()
	return a, a.cfg.Reset()
}

func (a App) handleSettingsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, keys.Escape) {
		a.settingsVisible = false
		return a, nil
	}

	var changed settingID
	a.settings, changed = a.settings.Update(msg)
	switch changed {
	case settingFrameInterval:
		if a.cfg.SetFrameInterval != nil {
			return a, a.cfg.SetFrameInterval(a.settings.FrameInterval())
		}
	case settingVisualWeight, settingTextWeight:
		if a.cfg.SetWeights != nil {
			return a, a.cfg.SetWeights(a.settings.Weights())
		}
	}
	return a, nil
}

func (a App) handleUploadKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, keys.Enter) {
		if a.uploading || a.cfg.Upload == nil {
			return a, nil
		}
		a.uploading = true
		return a, a.cfg.Upload(strings.TrimSpace(a.pathInput.Value()))
	}

	var cmd tea.Cmd
	a.pathInput, cmd = a.pathInput.Update(msg)
	return a, cmd
}

func (a App) handleWorkspaceKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Focus):
		if a.focus == focusQuery && len(a.sess.Results) > 0 {
			a.focus = focusResults
		} else {
			a.focus = focusQuery
		}
		a.syncFocus()
		return a, nil

	case key.Matches(msg, keys.History):
		if len(a.history) > 0 {
			a.historyIdx = (a.historyIdx + 1) % len(a.history)
			a.recallHistory()
			return a, nil
		}
		if a.cfg.RecentQueries != nil {
			return a, a.cfg.RecentQueries()
		}
		return a, nil
	}

	if a.focus == focusResults {
		return a.handleResultsKey(msg)
	}

	if key.Matches(msg, keys.Enter) {
		q := strings.TrimSpace(a.queryInput.Value())
		if q == "" || a.searching || a.cfg.Search == nil {
			return a, nil
		}
		a.searching = true
		a.history = nil
		return a, a.cfg.Search(q)
	}

	var cmd tea.Cmd
	a.queryInput, cmd = a.queryInput.Update(msg)
	return a, cmd
}

func (a App) handleResultsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if a.cursor > 0 {
			a.cursor--
		}
	case key.Matches(msg, keys.Down):
		if a.cursor < len(a.sess.Results)-1 {
			a.cursor++
		}
	case key.Matches(msg, keys.Escape):
		a.focus = focusQuery
		a.syncFocus()
	case key.Matches(msg, keys.Enter):
		if a.cursor < len(a.sess.Results) && a.cfg.Jump != nil {
			return a, a.cfg.Jump(a.sess.Results[a.cursor].Timestamp)
		}
	}
	return a, nil
}

func (a *App) recallHistory() {
	if a.historyIdx < len(a.history) {
		a.queryInput.SetValue(a.history[a.historyIdx])
		a.queryInput.CursorEnd()
		a.focus = focusQuery
		a.syncFocus()
	}
}

// syncFocus points keyboard focus at the input the current mode uses.
func (a *App) syncFocus() {
	a.pathInput.Blur()
	a.queryInput.Blur()
	switch a.sess.Mode() {
	case session.ModeUpload:
		a.pathInput.Focus()
	case session.ModeWorkspace:
		if a.focus == focusQuery {
			a.queryInput.Focus()
		}
	}
}

func (a *App) updateInputs(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch {
	case a.pathInput.Focused():
		a.pathInput, cmd = a.pathInput.Update(msg)
	case a.queryInput.Focused():
		a.queryInput, cmd = a.queryInput.Update(msg)
	}
	return cmd
}

// View renders the UI.
func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}

	if a.debugVisible {
		return debugOverlay(a.cfg.Obs.Ring, a.width, a.height-1) + "\n" + debugStatusBar(a.width)
	}

	var b strings.Builder
	b.WriteString(a.renderHeader())
	b.WriteString("\n")
	if a.notice != "" {
		b.WriteString(NoticeStyle.Render(a.notice))
		b.WriteString("\n")
	}

	switch a.sess.Mode() {
	case session.ModeUpload:
		b.WriteString(a.renderUpload())
	case session.ModeProgress:
		b.WriteString(a.renderProgress())
	case session.ModeWorkspace:
		b.WriteString(a.renderWorkspace())
	}

	if a.settingsVisible {
		b.WriteString("\n")
		b.WriteString(a.settings.View(min(max(a.width-4, 30), 64)))
	}

	b.WriteString("\n")
	b.WriteString(a.renderStatusBar())
	return b.String()
}

func (a App) renderHeader() string {
	badge := OfflineBadge.Render("○ Backend Offline")
	if a.sess.BackendOnline {
		badge = OnlineBadge.Render("● System Ready")
	}
	title := Header.Render("DeepSearch")
	line := title + "  " + badge
	if a.sess.Filename != "" {
		line += "  " + StatusBarText.Render(a.sess.Filename)
	}
	return line
}

func (a App) renderUpload() string {
	var b strings.Builder
	b.WriteString(SectionTitle.Render("Upload a video to index"))
	b.WriteString("\n")
	if !a.sess.BackendOnline {
		b.WriteString(HelpStyle.Render("Waiting for the backend. Uploads start once it responds."))
		b.WriteString("\n")
	}
	b.WriteString(InputBar.Render(InputPrompt.Render("File ") + a.pathInput.View()))
	b.WriteString("\n")
	b.WriteString(SliderDim.Render(fmt.Sprintf("  frame interval %.1fs", a.settings.FrameInterval())))
	b.WriteString("\n")
	if a.uploading {
		b.WriteString(a.spinner.View() + " Submitting…\n")
	}
	return b.String()
}

func (a App) renderProgress() string {
	verb := "Indexing"
	if a.sess.Status == session.StatusUploading {
		verb = "Uploading"
	}
	name := a.sess.Filename
	if name == "" {
		name = "video"
	}

	var b strings.Builder
	b.WriteString(SectionTitle.Render(a.spinner.View() + " " + verb + " " + name))
	b.WriteString("\n\n  ")
	b.WriteString(a.progress.ViewAs(float64(a.sess.Progress) / 100))
	b.WriteString(fmt.Sprintf(" %3d%%\n", a.sess.Progress))
	return b.String()
}

func (a App) renderWorkspace() string {
	var b strings.Builder

	if a.sess.Status == session.StatusFailed {
		b.WriteString(ErrorStyle.Render("Indexing failed. Press ctrl+r to reset and upload again."))
		b.WriteString("\n")
	}

	switch {
	case a.sess.NeedsReupload():
		b.WriteString(NoticeStyle.Render("Session restored, re-upload video to view"))
	case a.jumped:
		b.WriteString(StatusBarText.Render("  ▶ " + a.sess.Media.Name + " at " + FormatTimestamp(a.lastJump)))
	default:
		b.WriteString(StatusBarText.Render("  ■ " + a.sess.Media.Name))
	}
	b.WriteString("\n\n")

	line := InputPrompt.Render("Search ") + a.queryInput.View()
	if a.searching {
		line += " " + a.spinner.View()
	}
	b.WriteString(InputBar.Render(line))
	b.WriteString("\n")
	visual, text := a.settings.Weights()
	b.WriteString(SliderDim.Render(fmt.Sprintf("  visual %.1f · text %.1f", visual, text)))
	b.WriteString("\n\n")

	listHeight := a.height - 12
	if a.settingsVisible {
		listHeight -= 12
	}
	b.WriteString(RenderResults(a.sess.Results, a.cursor, a.focus == focusResults,
		a.width, max(listHeight, 2), a.cfg.PreviewURL))
	return b.String()
}

func (a App) renderStatusBar() string {
	hint := func(k, desc string) string {
		return StatusBarKey.Render(k) + StatusBarText.Render(":"+desc) + "  "
	}

	var s string
	switch a.sess.Mode() {
	case session.ModeUpload:
		s = hint("enter", "upload")
	case session.ModeWorkspace:
		if a.focus == focusResults {
			s = hint("↑/↓", "select") + hint("enter", "play") + hint("tab", "query")
		} else {
			s = hint("enter", "search") + hint("tab", "results") + hint("ctrl+p", "history")
		}
	}
	s += hint("ctrl+s", "settings") + hint("ctrl+r", "reset") + hint("ctrl+d", "debug") + hint("ctrl+c", "quit")
	return StatusBar.Width(a.width).Render(s)
}

// Mode returns the UI mode of the shown session (for testing).
func (a App) Mode() session.Mode {
	return a.sess.Mode()
}

// Cursor returns the selected result index (for testing).
func (a App) Cursor() int {
	return a.cursor
}
