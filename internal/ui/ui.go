package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/stemx/internal/models"
	"github.com/desertthunder/stemx/internal/player"
	"github.com/desertthunder/stemx/internal/shared"
	"github.com/desertthunder/stemx/internal/tasks"
	"github.com/desertthunder/stemx/internal/upload"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	FormView ViewState = iota
	ProcessingView
	PlayerView
)

const (
	tickInterval = 200 * time.Millisecond
	volumeStep   = 0.05
	barWidth     = 20
)

// Options wires the model to the rest of the application.
type Options struct {
	// Upload configures the controller behind the form. Its View is replaced by the model.
	Upload upload.Options

	// Progress carries stem fetch updates produced while a session is being built.
	Progress <-chan tasks.ProgressUpdate

	// DownloadURL resolves the ZIP download URL for a list of track URLs.
	DownloadURL func(urls []string) (string, error)

	// OpenURL opens a URL outside the terminal. Defaults to [shared.OpenBrowser].
	OpenURL func(url string) error
}

// Model represents the TUI application state.
type Model struct {
	ctx        context.Context
	view       ViewState
	controller *upload.Controller
	events     chan tea.Msg
	progressCh <-chan tasks.ProgressUpdate

	inputs []textinput.Model
	focus  int

	spinner  spinner.Model
	progress tasks.ProgressUpdate
	status   string
	failed   bool

	session  *player.Session
	snapshot player.Snapshot
	selected int
	ticking  bool
	notice   string

	downloadURL func([]string) (string, error)
	openURL     func(string) error

	width  int
	height int
	help   help.Model
	keys   keyMap
}

// NewModel creates the interactive upload and player model.
func NewModel(ctx context.Context, opts Options) *Model {
	m := newModel(ctx, opts)
	m.events = make(chan tea.Msg, 16)

	uploadOpts := opts.Upload
	uploadOpts.View = eventView{events: m.events}
	m.controller = upload.NewController(uploadOpts)

	file := textinput.New()
	file.Prompt = "File: "
	file.Placeholder = "path/to/song.mp3"
	file.Focus()

	link := textinput.New()
	link.Prompt = "URL:  "
	link.Placeholder = "https://www.youtube.com/watch?v=..."

	m.inputs = []textinput.Model{file, link}
	return m
}

// NewPlayerModel creates a model that only shows the player for an existing session.
func NewPlayerModel(ctx context.Context, s *player.Session, opts Options) *Model {
	m := newModel(ctx, opts)
	m.view = PlayerView
	m.session = s
	m.snapshot = s.Snapshot()
	return m
}

func newModel(ctx context.Context, opts Options) *Model {
	openURL := opts.OpenURL
	if openURL == nil {
		openURL = shared.OpenBrowser
	}

	return &Model{
		ctx:         ctx,
		view:        FormView,
		progressCh:  opts.Progress,
		spinner:     spinner.New(spinner.WithSpinner(spinner.Dot)),
		downloadURL: opts.DownloadURL,
		openURL:     openURL,
		help:        help.New(),
		keys:        newKeyMap(),
	}
}

// Init starts listening for controller events and, in player mode, the playhead ticker.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.waitForEvent(), m.waitForProgress()}
	switch m.view {
	case FormView:
		cmds = append(cmds, textinput.Blink)
	case PlayerView:
		cmds = append(cmds, m.startTicking())
	}
	return tea.Batch(cmds...)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.quit) && (msg.String() == "ctrl+c" || m.view != FormView) {
			return m, tea.Sequence(m.teardown(), tea.Quit)
		}
		switch m.view {
		case FormView:
			return m.handleFormKeys(msg)
		case PlayerView:
			return m.handlePlayerKeys(msg)
		}
		return m, nil

	case spinner.TickMsg:
		if m.view != ProcessingView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateInputs(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgStatus:
		d := msg.data.(statusData)
		m.status = d.message
		m.failed = d.status == upload.StatusFailed || d.status == upload.StatusError
		return m, m.waitForEvent()

	case MsgHidePlayer:
		m.session = nil
		m.snapshot = player.Snapshot{}
		m.notice = ""
		if m.view == PlayerView {
			m.view = ProcessingView
		}
		return m, m.waitForEvent()

	case MsgShowPlayer:
		m.session = msg.data.(*player.Session)
		m.snapshot = m.session.Snapshot()
		m.selected = 0
		m.view = PlayerView
		return m, tea.Batch(m.waitForEvent(), m.startTicking())

	case MsgSubmitDone:
		if err, _ := msg.data.(error); err != nil && m.view == ProcessingView {
			m.view = FormView
			return m, m.inputs[m.focus].Focus()
		}
		return m, nil

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgTick:
		if m.session == nil || m.view != PlayerView {
			m.ticking = false
			return m, nil
		}
		m.snapshot = m.session.Snapshot()
		if m.snapshot.State == player.Finished {
			m.ticking = false
			m.notice = "Playback finished, server files released."
			return m, nil
		}
		return m, tick()

	case MsgNotice:
		d := msg.data.(struct {
			text string
			err  error
		})
		m.notice = d.text
		if d.err != nil {
			m.notice = styles.err.Render(d.err.Error())
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) handleFormKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.next), msg.String() == "up", msg.String() == "down":
		m.inputs[m.focus].Blur()
		m.focus = (m.focus + 1) % len(m.inputs)
		return m, m.inputs[m.focus].Focus()

	case key.Matches(msg, m.keys.submit):
		sub := upload.Submission{
			File: strings.TrimSpace(m.inputs[0].Value()),
			URL:  strings.TrimSpace(m.inputs[1].Value()),
		}
		m.inputs[m.focus].Blur()
		m.view = ProcessingView
		m.progress = tasks.ProgressUpdate{}
		return m, tea.Batch(m.spinner.Tick, m.submit(sub))
	}

	return m.updateInputs(msg)
}

func (m *Model) handlePlayerKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.session == nil {
		return m, nil
	}
	m.notice = ""

	switch {
	case key.Matches(msg, m.keys.toggle):
		m.apply(m.session.Toggle())
	case key.Matches(msg, m.keys.stop):
		m.apply(m.session.Stop())
	case key.Matches(msg, m.keys.up):
		if m.selected > 0 {
			m.selected--
		}
	case key.Matches(msg, m.keys.down):
		if m.selected < len(m.snapshot.Tracks)-1 {
			m.selected++
		}
	case key.Matches(msg, m.keys.louder):
		m.nudgeVolume(volumeStep)
	case key.Matches(msg, m.keys.quieter):
		m.nudgeVolume(-volumeStep)
	case key.Matches(msg, m.keys.download):
		return m, m.download()
	case key.Matches(msg, m.keys.back):
		if m.controller == nil {
			return m, nil
		}
		return m, m.reset()
	}

	m.snapshot = m.session.Snapshot()
	if m.snapshot.State == player.Playing && !m.ticking {
		return m, m.startTicking()
	}
	return m, nil
}

func (m *Model) apply(err error) {
	if err != nil {
		m.notice = styles.err.Render(err.Error())
	}
}

func (m *Model) nudgeVolume(delta float64) {
	if m.selected >= len(m.snapshot.Tracks) {
		return
	}
	t := m.snapshot.Tracks[m.selected]
	m.apply(m.session.SetVolume(t.Kind, t.Volume+delta))
}

func (m *Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.view != FormView || len(m.inputs) == 0 {
		return m, nil
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

// reset closes the current session and returns to the form.
func (m *Model) reset() tea.Cmd {
	ctrl := m.controller
	m.session = nil
	m.snapshot = player.Snapshot{}
	m.view = FormView
	m.status = ""
	m.notice = ""
	return tea.Batch(
		func() tea.Msg {
			_ = ctrl.Close()
			return nil
		},
		m.inputs[m.focus].Focus(),
	)
}

func (m *Model) submit(sub upload.Submission) tea.Cmd {
	return func() tea.Msg {
		_, err := m.controller.Submit(m.ctx, sub)
		return submitDoneMsg(err)
	}
}

func (m *Model) download() tea.Cmd {
	urls := make([]string, 0, len(m.snapshot.Tracks))
	for _, t := range m.snapshot.Tracks {
		urls = append(urls, t.URL)
	}

	return func() tea.Msg {
		if m.downloadURL == nil {
			return noticeMsg("", fmt.Errorf("%w: download", shared.ErrNotImplemented))
		}
		u, err := m.downloadURL(urls)
		if err != nil {
			return noticeMsg("", err)
		}
		if err := m.openURL(u); err != nil {
			return noticeMsg("", err)
		}
		return noticeMsg("Opened "+u, nil)
	}
}

// teardown releases the session before the program exits.
func (m *Model) teardown() tea.Cmd {
	return func() tea.Msg {
		_ = m.Close()
		return nil
	}
}

// Close releases the live session and requests deletion of its files. It is safe to call more than once.
func (m *Model) Close() error {
	if m.controller != nil {
		_ = m.controller.Close()
	}
	if m.session != nil {
		return m.session.Close()
	}
	return nil
}

func (m *Model) startTicking() tea.Cmd {
	if m.ticking {
		return nil
	}
	m.ticking = true
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) waitForEvent() tea.Cmd {
	if m.events == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case msg := <-m.events:
			return msg
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) waitForProgress() tea.Cmd {
	if m.progressCh == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case update, ok := <-m.progressCh:
			if !ok {
				return nil
			}
			return progressUpdateMsg(update)
		case <-m.ctx.Done():
			return nil
		}
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case FormView:
		return m.renderForm()
	case ProcessingView:
		return m.renderProcessing()
	case PlayerView:
		return m.renderPlayer()
	default:
		return ""
	}
}

func (m *Model) renderStatus() string {
	switch {
	case m.status == "":
		return ""
	case m.failed:
		return styles.err.Render(m.status)
	default:
		return styles.ok.Render(m.status)
	}
}

func (m *Model) renderForm() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("stemx · separate vocals and instruments"))
	b.WriteString("\n")
	for _, in := range m.inputs {
		b.WriteString(in.View())
		b.WriteString("\n")
	}
	if s := m.renderStatus(); s != "" {
		fmt.Fprintf(&b, "\n%s\n", s)
	}

	quit := key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit"))
	fmt.Fprintf(&b, "\n%s", m.help.ShortHelpView([]key.Binding{m.keys.submit, m.keys.next, quit}))
	return b.String()
}

func (m *Model) renderProcessing() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Separating tracks"))
	fmt.Fprintf(&b, "\n%s %s\n", m.spinner.View(), m.status)
	if m.progress.Message != "" {
		fmt.Fprintf(&b, "\n%s\n", styles.muted.Render(m.progress.Message))
	}
	return b.String()
}

func (m *Model) renderPlayer() string {
	snap := m.snapshot
	var b strings.Builder

	title := "Tracks"
	if snap.ID != "" {
		title = fmt.Sprintf("Tracks · %s", snap.ID)
	}
	b.WriteString(styles.title.Render(title))
	b.WriteString("\n")

	if s := m.renderStatus(); s != "" {
		fmt.Fprintf(&b, "%s\n\n", s)
	}

	for i, t := range snap.Tracks {
		b.WriteString(renderTrack(t, i == m.selected))
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\n[%s]  %s  %s\n", transportLabel(snap), formatPosition(snap.Playhead), styles.muted.Render(snap.State.String()))
	if m.notice != "" {
		fmt.Fprintf(&b, "\n%s\n", m.notice)
	}

	fmt.Fprintf(&b, "\n%s", m.help.FullHelpView(m.keys.FullHelp()))
	return b.String()
}

func renderTrack(t models.Track, selected bool) string {
	cursor := "  "
	if selected {
		cursor = styles.cursor.Render("> ")
	}

	name := fmt.Sprintf("%-7s", t.Kind)
	if t.Highlighted {
		name = styles.active.Render(name)
	}

	pos := formatPosition(time.Duration(t.Position * float64(time.Second)))
	return fmt.Sprintf("%s%s %s %3.0f%%  %s", cursor, name, volumeBar(t.Volume, barWidth), t.Volume*100, styles.muted.Render(pos))
}

func transportLabel(snap player.Snapshot) string {
	if snap.State == player.Playing {
		return "⏸ " + snap.Transport
	}
	return "▶ " + snap.Transport
}

func volumeBar(level float64, width int) string {
	filled := int(level*float64(width) + 0.5)
	filled = max(0, min(width, filled))
	return strings.Repeat("█", filled) + styles.muted.Render(strings.Repeat("░", width-filled))
}

func formatPosition(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
