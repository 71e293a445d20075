package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jwebster45206/scene-engine/internal/config"
	"github.com/jwebster45206/scene-engine/internal/prefetch"
	"github.com/jwebster45206/scene-engine/internal/scenesync"
	"github.com/jwebster45206/scene-engine/internal/services"
	"github.com/jwebster45206/scene-engine/internal/session"
	"github.com/jwebster45206/scene-engine/pkg/scene"
)

const (
	AppTitle        = "SCENE ENGINE"
	PlaceHolderText = "Type a command (look, go north, take torch)..."
	LoadingText     = "Drawing the scene..."

	maxLogLines = 500
)

type logKind int

const (
	logInfo logKind = iota
	logUser
	logGame
	logError
)

type logLine struct {
	kind logKind
	text string
}

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config     *config.Config
	game       services.GameServer
	engine     *engine
	playerID   string
	session    *session.Session
	subscribed map[*session.Session]bool

	// sceneChanged is signalled by the session's observer. The UI reads the
	// latest view on receipt, so coalesced signals lose nothing.
	sceneChanged chan struct{}

	logViewport    viewport.Model
	statusViewport viewport.Model
	textarea       textarea.Model
	lines          []logLine
	snapshot       *scene.Snapshot
	scene          scenesync.View
	prefetched     *prefetch.Result

	ready   bool
	width   int
	height  int
	sending bool

	// Quit confirmation state
	showQuitModal bool

	// Progress bar state
	progressTick int
	ticking      bool
}

type commandResultMsg struct {
	resp *services.CommandResponse
	err  error
}

type sceneChangedMsg struct{}

type sceneSyncedMsg struct {
	outcome scenesync.Outcome
	batch   *prefetch.Batch
}

type prefetchDoneMsg struct {
	result prefetch.Result
}

type progressTickMsg struct{}

var (
	logPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	statusPanelStyle = lipgloss.NewStyle().
				PaddingTop(2).
				PaddingBottom(0).
				PaddingLeft(0).
				PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	gameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

func NewConsoleUI(cfg *config.Config, game services.GameServer, eng *engine, playerID string) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 500
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	logVp := viewport.New(50, 20)
	logVp.MouseWheelEnabled = true

	statusVp := viewport.New(20, 20)

	m := ConsoleUI{
		config:         cfg,
		game:           game,
		engine:         eng,
		playerID:       playerID,
		subscribed:     make(map[*session.Session]bool),
		sceneChanged:   make(chan struct{}, 1),
		textarea:       ta,
		logViewport:    logVp,
		statusViewport: statusVp,
	}

	m.appendLog(logInfo, "Type commands below to play. /help lists console commands.")
	if playerID != "" {
		m.attachSession()
		m.appendLog(logInfo, "Resuming as player "+playerID+".")
		m.sending = true
		m.ticking = true
	}
	return m
}

// attachSession points the UI at the current player's scene session.
func (m *ConsoleUI) attachSession() {
	sess := m.engine.sessions.Session(m.playerID)
	if !m.subscribed[sess] {
		ch := m.sceneChanged
		sess.Subscribe(func(scenesync.View) {
			select {
			case ch <- struct{}{}:
			default:
			}
		})
		m.subscribed[sess] = true
	}
	m.session = sess
	m.scene = sess.View()
}

func (m *ConsoleUI) appendLog(kind logKind, text string) {
	m.lines = append(m.lines, logLine{kind: kind, text: text})
	if len(m.lines) > maxLogLines {
		m.lines = slices.Clone(m.lines[len(m.lines)-maxLogLines:])
	}
}

// writeLogContent renders the log for the current viewport width.
func (m *ConsoleUI) writeLogContent() {
	width := m.logViewport.Width - 6 // Account for left(3) + right(3) padding
	if width < 10 {
		width = 10
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render(AppTitle) + "\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", width)) + "\n\n")

	for _, line := range m.lines {
		content.WriteString(renderLogLine(line, width) + "\n")
	}

	if m.sending {
		content.WriteString("\n" + renderProgressBar(width, m.progressTick) + "\n")
	}

	m.logViewport.SetContent(content.String())
	m.logViewport.GotoBottom()
}

func renderLogLine(line logLine, width int) string {
	switch line.kind {
	case logUser:
		return userStyle.Render("> ") + wordwrap.String(line.text, width-2)
	case logGame:
		return gameStyle.Render(wordwrap.String(line.text, width))
	case logError:
		return errorStyle.Render(wordwrap.String(line.text, width))
	default:
		return promptStyle.Render(wordwrap.String(line.text, width))
	}
}

// writeSidebar renders the scene panel above the status pane.
func (m *ConsoleUI) writeSidebar() {
	width := m.statusViewport.Width
	if width < 10 {
		width = 10
	}
	content := renderScene(m.scene, m.progressTick, width) + "\n" +
		writeStatus(m.snapshot, m.prefetched) + "\n" + writeKeyHelp()
	m.statusViewport.SetContent(content)
}

func renderScene(v scenesync.View, tick, width int) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("SCENE") + "\n\n")

	switch {
	case v.Loading:
		content.WriteString(loadingStyle.Render(LoadingText) + "\n")
		content.WriteString(renderProgressBar(width, tick) + "\n")
		if v.HasImage() {
			content.WriteString(promptStyle.Render("previous: "+describeImage(v.Image)) + "\n")
		}
	case v.HasImage():
		content.WriteString(wordwrap.String(describeImage(v.Image), width) + "\n")
	case v.CurrentKey != "":
		content.WriteString(promptStyle.Render("No image for this scene") + "\n")
	default:
		content.WriteString(promptStyle.Render("No scene yet") + "\n")
	}

	if v.CurrentKey != "" {
		content.WriteString(promptStyle.Render("key "+v.CurrentKey.Short()) + "\n")
	}
	return content.String()
}

// writeStatus renders the player's status pane from the last snapshot.
func writeStatus(snap *scene.Snapshot, prefetched *prefetch.Result) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("STATUS") + "\n\n")

	if snap == nil {
		content.WriteString("Waiting for the game...\n")
		return content.String()
	}

	content.WriteString(labelStyle.Render("Location:") + "\n")
	if snap.Location != nil && snap.Location.Name != "" {
		content.WriteString(snap.Location.Name + "\n\n")
	} else {
		content.WriteString("Unknown\n\n")
	}

	var people, others []string
	for _, e := range snap.Entities {
		switch e.Type {
		case "npc", "player":
			people = append(people, e.Name)
		default:
			if e.HP != nil {
				others = append(others, fmt.Sprintf("%s (%d hp)", e.Name, *e.HP))
			} else {
				others = append(others, e.Name)
			}
		}
	}
	writeList(&content, "People here:", people, "Nobody")
	if len(others) > 0 {
		writeList(&content, "Also here:", others, "")
	}

	var exits []string
	if snap.Location != nil {
		for _, exit := range snap.Location.Exits {
			exits = append(exits, fmt.Sprintf("%s → %s", exit.Label, exit.To))
		}
	}
	writeList(&content, "Exits:", exits, "None")

	if p := snap.Player; p != nil {
		content.WriteString(labelStyle.Render("Stats:") + "\n")
		content.WriteString(fmt.Sprintf("HP %d/%d  XP %d  Level %d\n\n", p.HP, p.MaxHP, p.XP, p.Level))

		var items []string
		for _, name := range slices.Sorted(maps.Keys(p.Inventory)) {
			items = append(items, fmt.Sprintf("%s x%d", name, p.Inventory[name]))
		}
		writeList(&content, "Inventory:", items, "Empty")

		content.WriteString(labelStyle.Render("Quests:") + "\n")
		content.WriteString(fmt.Sprintf("%d active, %d completed\n\n", len(p.ActiveQuests), len(p.CompletedQuests)))
	}

	if prefetched != nil && prefetched.Requested > 0 {
		content.WriteString(promptStyle.Render(fmt.Sprintf("Prefetched %d nearby scenes (%d failed)",
			prefetched.Requested, prefetched.Failed)) + "\n\n")
	}
	return content.String()
}

func writeList(b *strings.Builder, label string, items []string, empty string) {
	b.WriteString(labelStyle.Render(label) + "\n")
	if len(items) == 0 {
		b.WriteString(empty + "\n\n")
		return
	}
	for _, item := range items {
		b.WriteString("• " + item + "\n")
	}
	b.WriteString("\n")
}

func writeKeyHelp() string {
	var content strings.Builder
	content.WriteString("Keys:\n")
	content.WriteString("• Enter: Send\n")
	content.WriteString("• Ctrl+Y: Copy image\n")
	content.WriteString("• Ctrl+C: Quit\n")
	content.WriteString("• /help: Help\n")
	return content.String()
}

// errorLine formats a failed command for the log.
func errorLine(err error) string {
	if errors.Is(err, services.ErrUnreachable) {
		return "[error] network error"
	}
	return "[error] " + err.Error()
}

func (m ConsoleUI) Init() tea.Cmd {
	cmds := []tea.Cmd{textarea.Blink, waitForScene(m.sceneChanged)}
	if m.sending {
		cmds = append(cmds, m.sendCommand("look"), progressTick())
	}
	return tea.Batch(cmds...)
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		svCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.logViewport, vpCmd = m.logViewport.Update(msg)
		m.statusViewport, svCmd = m.statusViewport.Update(msg)
		return m, tea.Batch(vpCmd, svCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		logWidth := int(float64(m.width)*0.7) - 4
		statusWidth := m.width - logWidth - 6

		m.logViewport.Width = logWidth - 2
		m.logViewport.Height = m.height - 7
		m.statusViewport.Width = statusWidth - 2
		m.statusViewport.Height = m.height - 4
		m.textarea.SetWidth(logWidth - 4)

		m.ready = true
		m.writeLogContent()
		m.writeSidebar()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyCtrlY:
			m.copyImage()
			m.writeLogContent()
			return m, nil
		case tea.KeyEnter:
			if m.inputDisabled() {
				return m, nil
			}

			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}
			m.textarea.Reset()

			if strings.HasPrefix(input, "/") {
				return m.handleCommand(input)
			}

			m.appendLog(logUser, input)
			m.sending = true
			m.writeLogContent()
			tick := m.startTicking()
			return m, tea.Batch(m.sendCommand(input), tick)
		}

	case commandResultMsg:
		m.sending = false
		cmd := m.applyCommandResult(msg)
		m.writeLogContent()
		m.writeSidebar()
		return m, cmd

	case sceneChangedMsg:
		if m.session != nil {
			m.scene = m.session.View()
		}
		m.setInputEnabled(!m.inputDisabled())
		m.writeSidebar()

		cmds := []tea.Cmd{waitForScene(m.sceneChanged)}
		if m.scene.Loading {
			cmds = append(cmds, m.startTicking())
		}
		return m, tea.Batch(cmds...)

	case sceneSyncedMsg:
		if msg.outcome == scenesync.OutcomeFailed {
			slog.Debug("Scene image unavailable, keeping the previous one", "player_id", m.playerID)
		}
		if msg.batch != nil {
			return m, waitForPrefetch(msg.batch)
		}
		return m, nil

	case prefetchDoneMsg:
		m.prefetched = &msg.result
		m.writeSidebar()
		return m, nil

	case progressTickMsg:
		if m.sending || m.scene.Loading {
			m.progressTick++
			m.writeLogContent()
			m.writeSidebar()
			return m, progressTick()
		}
		m.ticking = false
		return m, nil
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.logViewport, vpCmd = m.logViewport.Update(msg)
	m.statusViewport, svCmd = m.statusViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, svCmd)
}

// inputDisabled is true while a command is in flight or the foreground
// scene is loading.
func (m ConsoleUI) inputDisabled() bool {
	return m.sending || m.scene.Loading
}

func (m *ConsoleUI) setInputEnabled(enabled bool) {
	if enabled {
		m.textarea.Placeholder = PlaceHolderText
		m.textarea.Focus()
		return
	}
	m.textarea.Placeholder = LoadingText
	m.textarea.Blur()
}

func (m *ConsoleUI) startTicking() tea.Cmd {
	if m.ticking {
		return nil
	}
	m.ticking = true
	m.progressTick = 0
	return progressTick()
}

// applyCommandResult logs the reply and starts the scene sync for its state.
func (m *ConsoleUI) applyCommandResult(msg commandResultMsg) tea.Cmd {
	if msg.err != nil {
		slog.Error("Command failed", "error", msg.err)
		m.appendLog(logError, errorLine(msg.err))
		return nil
	}

	resp := msg.resp
	for _, line := range resp.Messages {
		m.appendLog(logGame, line)
	}
	if !resp.OK || resp.Error != "" {
		reason := resp.Error
		if reason == "" {
			reason = "command failed"
		}
		m.appendLog(logError, "[error] "+reason)
	}

	snap := resp.Snapshot()
	if snap == nil {
		return nil
	}
	m.snapshot = snap

	if id := snap.PlayerID(); id != "" && id != m.playerID {
		m.playerID = id
		if err := savePlayerID(m.config.StateDir, id); err != nil {
			slog.Warn("Could not save player id", "error", err)
		}
	}
	if m.session == nil || m.session.PlayerID() != m.playerID {
		m.attachSession()
	}
	return syncScene(m.session, snap)
}

func (m ConsoleUI) handleCommand(input string) (tea.Model, tea.Cmd) {
	cmd := strings.ToLower(strings.TrimSpace(input))

	switch cmd {
	case "/help":
		m.appendLog(logInfo, `Console commands:
• /help - Show this help
• /image - Save the current scene image to the state directory
• /copy - Copy the current image reference (also Ctrl+Y)
• /player - Show your player id
• /cache - Show scene cache statistics
Anything else is sent to the game.`)

	case "/image":
		m.saveImage()

	case "/copy":
		m.copyImage()

	case "/player":
		if m.playerID == "" {
			m.appendLog(logInfo, "No player yet. Send a command to join.")
		} else {
			m.appendLog(logInfo, "Player id: "+m.playerID)
		}

	case "/cache":
		stats := m.engine.cache.Stats()
		m.appendLog(logInfo, fmt.Sprintf("Scene cache: %d entries, %d hits, %d misses, %d generated, %d shared, %d failed",
			m.engine.cache.Len(), stats.Hits, stats.Misses, stats.ProducerCalls, stats.SharedWaits, stats.Failures))

	default:
		m.appendLog(logError, "[error] unknown console command "+cmd)
	}

	m.writeLogContent()
	return m, nil
}

func (m *ConsoleUI) copyImage() {
	if !m.scene.HasImage() {
		m.appendLog(logError, "[error] no scene image to copy")
		return
	}
	if err := clipboard.WriteAll(m.scene.Image); err != nil {
		m.appendLog(logError, "[error] copy failed: "+err.Error())
		return
	}
	m.appendLog(logInfo, "Image reference copied to the clipboard.")
}

func (m *ConsoleUI) saveImage() {
	if !m.scene.HasImage() {
		m.appendLog(logError, "[error] no scene image to save")
		return
	}
	path, err := saveSceneImage(m.config.StateDir, m.scene.CurrentKey, m.scene.Image)
	if errors.Is(err, errNotDataURI) {
		m.appendLog(logInfo, "Image is hosted at "+m.scene.Image)
		return
	}
	if err != nil {
		m.appendLog(logError, "[error] "+err.Error())
		return
	}
	m.appendLog(logInfo, "Saved scene image to "+path)
}

func (m ConsoleUI) sendCommand(text string) tea.Cmd {
	game, playerID := m.game, m.playerID
	return func() tea.Msg {
		resp, err := game.SendCommand(context.Background(), text, playerID)
		return commandResultMsg{resp: resp, err: err}
	}
}

// syncScene applies the snapshot and reports once the foreground scene settles.
func syncScene(sess *session.Session, snap *scene.Snapshot) tea.Cmd {
	return func() tea.Msg {
		outcome, batch := sess.Sync(context.Background(), snap)
		return sceneSyncedMsg{outcome: outcome, batch: batch}
	}
}

func waitForScene(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return sceneChangedMsg{}
	}
}

func waitForPrefetch(batch *prefetch.Batch) tea.Cmd {
	return func() tea.Msg {
		return prefetchDoneMsg{result: batch.Wait()}
	}
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				if m.inputDisabled() {
					return m, nil
				}
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit?"))
	content.WriteString("\n\n")
	content.WriteString("Your player id is saved. Running the console again resumes where you left off.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	logWidth := int(float64(m.width)*0.7) - 4
	statusWidth := m.width - logWidth - 6

	logPanel := logPanelStyle.Width(logWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.logViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", logWidth-4)),
			m.textarea.View(),
		),
	)

	statusPanel := statusPanelStyle.Width(statusWidth).Height(m.height - 2).Render(
		m.statusViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, logPanel, statusPanel)
}

// renderProgressBar creates an animated progress bar for loading states
func renderProgressBar(width, tick int) string {
	usable := width
	if usable > 80 {
		usable = 80
	} else if usable < 10 {
		usable = 10
	}

	const totalFrames = 40
	frame := tick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		if i < filled {
			bar.WriteString("█")
		} else if i == filled && frame%4 < 2 {
			bar.WriteString("▓") // Blinking effect at the progress point
		} else {
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

// progressTick creates a command that sends a progress tick message
func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
