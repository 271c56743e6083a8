package cli

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/pshapiro/cubealarm"
	"github.com/pshapiro/cubealarm/internal/storage"
)

var watchRecord bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch cube moves and state in real time",
	Long: `Start an interactive TUI that connects to the configured cube and shows
its moves and solved state as they happen.

With --record, the session and every move and state change are written to
the event database for later inspection with 'cubealarm sessions'.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchRecord, "record", false, "Record the session to the database")
	rootCmd.AddCommand(watchCmd)
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	solvedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("82"))

	moveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// faceStyles colors each face letter of the facelet display.
var faceStyles = map[byte]lipgloss.Style{
	'U': lipgloss.NewStyle().Foreground(lipgloss.Color("15")),  // white
	'R': lipgloss.NewStyle().Foreground(lipgloss.Color("196")), // red
	'F': lipgloss.NewStyle().Foreground(lipgloss.Color("40")),  // green
	'D': lipgloss.NewStyle().Foreground(lipgloss.Color("226")), // yellow
	'L': lipgloss.NewStyle().Foreground(lipgloss.Color("208")), // orange
	'B': lipgloss.NewStyle().Foreground(lipgloss.Color("33")),  // blue
}

// Messages
type tickMsg time.Time
type cubeMoveMsg cubealarm.Move
type cubeStateMsg cubealarm.State
type cubePhaseMsg string
type cubeDisconnectMsg struct{}

type watchModel struct {
	mon    *cubealarm.Monitor
	events chan tea.Msg

	// Recording
	sessions  *storage.SessionRepository
	eventRepo *storage.EventRepository
	sessionID string
	started   time.Time

	phase     string
	connected bool
	haveState bool
	state     cubealarm.State
	solved    bool
	moves     []cubealarm.Move

	width    int
	height   int
	err      error
	quitting bool
}

func newWatchModel(mon *cubealarm.Monitor, db *storage.DB) *watchModel {
	m := &watchModel{
		mon:     mon,
		events:  make(chan tea.Msg, 64),
		started: time.Now(),
	}
	if db != nil {
		m.sessions = storage.NewSessionRepository(db)
		m.eventRepo = storage.NewEventRepository(db)
	}

	// Callbacks run on the monitor goroutine; hand everything to the TUI
	// through the channel and drop on overflow.
	post := func(msg tea.Msg) {
		select {
		case m.events <- msg:
		default:
		}
	}
	mon.OnMove(func(mv cubealarm.Move) { post(cubeMoveMsg(mv)) })
	mon.OnState(func(st cubealarm.State) { post(cubeStateMsg(st)) })
	mon.OnPhaseChange(func(p string) { post(cubePhaseMsg(p)) })
	mon.OnDisconnect(func() { post(cubeDisconnectMsg{}) })
	return m
}

func (m *watchModel) Init() tea.Cmd {
	return tea.Batch(m.listen(), m.tickCmd())
}

func (m *watchModel) listen() tea.Cmd {
	return func() tea.Msg {
		return <-m.events
	}
}

func (m *watchModel) tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *watchModel) nowMs() int64 {
	return time.Since(m.started).Milliseconds()
}

func (m *watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			m.endSession()
			return m, tea.Quit
		case "r":
			if err := m.mon.RequestState(); err != nil {
				m.err = err
			}
		case "b":
			if err := m.mon.RequestBattery(); err != nil {
				m.err = err
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		return m, m.tickCmd()

	case cubeMoveMsg:
		m.connected = true
		m.moves = append(m.moves, cubealarm.Move(msg))
		if m.eventRepo != nil && m.sessionID != "" {
			if _, err := m.eventRepo.RecordMove(m.sessionID, m.nowMs(), cubealarm.Move(msg).String(), int64(len(m.moves))); err != nil {
				m.err = err
			}
		}
		return m, m.listen()

	case cubeStateMsg:
		st := cubealarm.State(msg)
		wasSolved := m.solved
		m.connected = true
		m.haveState = true
		m.state = st
		m.solved = st.IsSolved()
		if m.sessions != nil && m.sessionID == "" {
			id, err := m.sessions.Create(addressLabel(), m.nowMs())
			if err != nil {
				m.err = err
			} else {
				m.sessionID = id
			}
		}
		if m.eventRepo != nil && m.sessionID != "" {
			if _, err := m.eventRepo.RecordState(m.sessionID, m.nowMs(), st.Facelets(), m.solved); err != nil {
				m.err = err
			}
			if m.solved && !wasSolved {
				if _, err := m.eventRepo.RecordMarker(m.sessionID, m.nowMs(), storage.EventTypeSolved); err != nil {
					m.err = err
				}
			}
		}
		return m, m.listen()

	case cubePhaseMsg:
		m.phase = string(msg)
		if m.phase == "ready" {
			m.connected = true
		}
		return m, m.listen()

	case cubeDisconnectMsg:
		m.connected = false
		m.haveState = false
		if m.eventRepo != nil && m.sessionID != "" {
			if _, err := m.eventRepo.RecordMarker(m.sessionID, m.nowMs(), storage.EventTypeDisconnect); err != nil {
				m.err = err
			}
		}
		return m, m.listen()
	}

	return m, nil
}

func (m *watchModel) endSession() {
	if m.sessions != nil && m.sessionID != "" {
		if err := m.sessions.End(m.sessionID, m.nowMs()); err != nil {
			m.err = err
		}
	}
}

func (m *watchModel) View() string {
	if m.quitting {
		out := "Goodbye!\n"
		if m.sessionID != "" {
			out += fmt.Sprintf("Session recorded: %s\n", m.sessionID)
		}
		return out
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("cubealarm watch"))
	b.WriteString("\n\n")

	switch {
	case m.connected && m.solved:
		b.WriteString(solvedStyle.Render("SOLVED"))
	case m.connected:
		b.WriteString(statusStyle.Render("Connected, scrambled"))
	case m.phase != "" && m.phase != "idle":
		b.WriteString(statusStyle.Render("Searching for cube... (" + m.phase + ")"))
	default:
		b.WriteString(statusStyle.Render("Searching for cube..."))
	}
	b.WriteString("\n\n")

	if m.haveState {
		b.WriteString(renderFacelets(m.state.Facelets()))
		b.WriteString("\n")
	}

	if len(m.moves) > 0 {
		b.WriteString(fmt.Sprintf("Moves: %d\n", len(m.moves)))
		start := 0
		if len(m.moves) > 20 {
			start = len(m.moves) - 20
			b.WriteString("... ")
		}
		var notations []string
		for i := start; i < len(m.moves); i++ {
			notations = append(notations, m.moves[i].String())
		}
		b.WriteString(moveStyle.Render(strings.Join(notations, " ")))
		b.WriteString("\n")
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("Keys: r=refresh state  b=battery  q=quit"))
	b.WriteString("\n")

	return b.String()
}

// renderFacelets draws the 54-sticker string as six colored rows of nine.
func renderFacelets(f string) string {
	if len(f) != 54 {
		return f
	}
	var b strings.Builder
	for face := 0; face < 6; face++ {
		b.WriteString(fmt.Sprintf("%c: ", f[face*9+4]))
		for i := 0; i < 9; i++ {
			c := f[face*9+i]
			if style, ok := faceStyles[c]; ok {
				b.WriteString(style.Render(string(c)))
			} else {
				b.WriteByte(c)
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// addressLabel returns the cube address the running command resolved.
var addressLabel = func() string { return address }

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	addressLabel = func() string { return cfg.Cube.Address }

	var db *storage.DB
	if watchRecord {
		db, err = openDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()
	}

	mon, err := newMonitor(cfg)
	if err != nil {
		return err
	}
	defer mon.Close()

	model := newWatchModel(mon, db)
	if err := mon.Start(); err != nil {
		return err
	}

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
