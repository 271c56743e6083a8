package cubealarm

import (
	"sync"
	"time"

	"github.com/pshapiro/cubealarm/internal/ble"
	"github.com/pshapiro/cubealarm/internal/gan"
)

// Telemetry types re-exported from the protocol decoder.
type (
	Move  = gan.Move
	State = gan.CubeState
)

// MoveUnknown is delivered to OnMove when older firmware reports a turn
// without saying which face moved.
const MoveUnknown = gan.MoveUnknown

// Monitor owns one cube session. It runs a single service goroutine that
// serializes transport events, user calls and the periodic session tick, so
// the session logic never needs locks and callbacks never race.
//
// Configure callbacks before Start; they fire on the service goroutine and
// must not block.
type Monitor struct {
	cfg     *config
	session *ble.Session
	clock   ble.Clock

	events chan ble.Event
	calls  chan func()
	done   chan struct{}
	wg     sync.WaitGroup

	// lastPhase is touched only by the service goroutine.
	lastPhase ble.SessionState

	mu        sync.Mutex
	started   bool
	closed    bool
	last      State
	haveState bool
	solved    bool

	onMove       func(Move)
	onState      func(State)
	onSolved     func()
	onDisconnect func()
	onPhase      func(string)
}

// eventPump redirects transport callbacks, which may arrive on arbitrary
// goroutines, into the monitor's event channel. The session's own handler
// registration is intercepted; the service loop delivers to it instead.
type eventPump struct {
	ble.Transport
	events chan ble.Event
	done   chan struct{}
}

func (p *eventPump) SetEventHandler(func(ble.Event)) {
	p.Transport.SetEventHandler(func(e ble.Event) {
		select {
		case p.events <- e:
		case <-p.done:
		}
	})
}

// New creates a monitor for the cube at addr using the host Bluetooth
// adapter. The monitor is idle until Start.
func New(addr string, opts ...Option) (*Monitor, error) {
	tr, err := ble.NewAdapter()
	if err != nil {
		return nil, err
	}
	return newMonitor(addr, tr, opts...), nil
}

// newMonitor wires a monitor over any transport. Tests supply fakes.
func newMonitor(addr string, tr ble.Transport, opts ...Option) *Monitor {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	m := &Monitor{
		cfg:    cfg,
		clock:  ble.NewClock(),
		events: make(chan ble.Event, 128),
		calls:  make(chan func(), 16),
		done:   make(chan struct{}),
	}

	sc := ble.DefaultSessionConfig(addr)
	sc.Scan = cfg.scan
	sc.WriteMode = cfg.writeMode
	if cfg.retryBudget > 0 {
		sc.Dispatcher.RetryBudget = cfg.retryBudget
	}
	if cfg.notifyDepth > 0 {
		sc.NotifyQueueDepth = cfg.notifyDepth
	}
	if cfg.logger != nil {
		sc.Logger = cfg.logger
	}

	pump := &eventPump{Transport: tr, events: m.events, done: m.done}
	m.session = ble.NewSession(sc, pump)
	m.session.OnEvent = m.handleTelemetry
	m.session.OnDisconnect = m.handleDisconnect
	return m
}

// OnMove registers a callback for each face turn. Legacy frames that omit
// the face deliver MoveUnknown.
func (m *Monitor) OnMove(fn func(Move)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onMove = fn
}

// OnState registers a callback for each decoded full cube state.
func (m *Monitor) OnState(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onState = fn
}

// OnSolved registers a callback fired on each transition into the solved
// state. It does not refire while the cube stays solved.
func (m *Monitor) OnSolved(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSolved = fn
}

// OnDisconnect registers a callback for connection loss. The monitor keeps
// scanning and reconnects on its own; the callback is informational.
func (m *Monitor) OnDisconnect(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDisconnect = fn
}

// OnPhaseChange registers a callback for connection bring-up phases
// ("scanning", "connecting", ..., "ready"). Useful for status displays.
func (m *Monitor) OnPhaseChange(fn func(phase string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onPhase = fn
}

// Start launches the service loop.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.started {
		return ErrAlreadyStarted
	}
	m.started = true
	m.wg.Add(1)
	go m.run()
	return nil
}

// Close stops the service loop. The monitor cannot be restarted.
func (m *Monitor) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	started := m.started
	m.mu.Unlock()

	close(m.done)
	if started {
		m.wg.Wait()
	}
	return nil
}

// LastState returns the most recent decoded cube state, if any.
func (m *Monitor) LastState() (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, m.haveState
}

// Solved reports whether the last decoded state was solved.
func (m *Monitor) Solved() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.solved
}

// RequestState asks the cube for its full state. The request is delivered
// once the session is ready.
func (m *Monitor) RequestState() error {
	return m.do(func() { m.session.Submit(gan.RequestFacelets(), m.clock.Now()) })
}

// RequestBattery asks the cube for its battery level.
func (m *Monitor) RequestBattery() error {
	return m.do(func() { m.session.Submit(gan.RequestBattery(), m.clock.Now()) })
}

// RequestHardware asks the cube for its hardware and firmware info.
func (m *Monitor) RequestHardware() error {
	return m.do(func() { m.session.Submit(gan.RequestHardware(), m.clock.Now()) })
}

// MarkSolved tells the cube to adopt its current arrangement as the solved
// reference state.
func (m *Monitor) MarkSolved() error {
	return m.do(func() { m.session.Submit(gan.RequestReset(), m.clock.Now()) })
}

// TriggerAlarm starts the configured sounder. When the alarm is due is the
// caller's business; solving the cube (or StopAlarm) silences it.
func (m *Monitor) TriggerAlarm() error {
	return m.do(func() {
		if s := m.cfg.sounder; s != nil {
			s.Start()
		}
	})
}

// StopAlarm silences the sounder without requiring a solve.
func (m *Monitor) StopAlarm() error {
	return m.do(func() {
		if s := m.cfg.sounder; s != nil {
			s.Stop()
		}
	})
}

// do hands fn to the service goroutine.
func (m *Monitor) do(fn func()) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if !m.started {
		m.mu.Unlock()
		return ErrNotReady
	}
	m.mu.Unlock()

	select {
	case m.calls <- fn:
		return nil
	case <-m.done:
		return ErrClosed
	}
}

func (m *Monitor) run() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case e := <-m.events:
			m.session.HandleEvent(e)
		case fn := <-m.calls:
			fn()
		case <-ticker.C:
			m.session.Tick(m.clock.Now())
			m.checkPhase()
		}
	}
}

// checkPhase surfaces bring-up phase transitions after each tick.
func (m *Monitor) checkPhase() {
	phase := m.session.State()
	if phase == m.lastPhase {
		return
	}
	m.lastPhase = phase

	m.mu.Lock()
	fn := m.onPhase
	m.mu.Unlock()
	if fn != nil {
		fn(phase.String())
	}
	if phase == ble.StateReady && m.cfg.alarmOnConnect && m.cfg.sounder != nil {
		m.cfg.sounder.Start()
	}
}

// handleTelemetry runs on the service goroutine for every decoded frame.
func (m *Monitor) handleTelemetry(ev gan.Event) {
	m.mu.Lock()
	onMove, onState, onSolved := m.onMove, m.onState, m.onSolved
	sounder := m.cfg.sounder

	var fireSolved bool
	switch ev.Kind {
	case gan.KindState:
		m.last = ev.State
		m.haveState = true
		fireSolved = ev.Solved && !m.solved
		m.solved = ev.Solved
	}
	m.mu.Unlock()

	switch ev.Kind {
	case gan.KindMove:
		if onMove != nil {
			onMove(ev.Move.Move)
		}
	case gan.KindMoveLegacy:
		if onMove != nil {
			onMove(MoveUnknown)
		}
	case gan.KindState:
		if onState != nil {
			onState(ev.State)
		}
		if fireSolved {
			if sounder != nil {
				sounder.Stop()
			}
			if onSolved != nil {
				onSolved()
			}
		}
	}
}

func (m *Monitor) handleDisconnect() {
	m.mu.Lock()
	fn := m.onDisconnect
	m.haveState = false
	m.solved = false
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}
