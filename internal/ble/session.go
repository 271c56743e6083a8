package ble

import (
	"log/slog"
	"strings"

	"github.com/pshapiro/cubealarm/internal/gan"
)

// SessionState is the bring-up phase of a cube connection.
type SessionState int

const (
	StateIdle SessionState = iota
	StateScanning
	StateConnecting
	StateServiceDiscovery
	StateCharacteristicDiscovery
	StateCccdEnable
	StateReady
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateConnecting:
		return "connecting"
	case StateServiceDiscovery:
		return "service-discovery"
	case StateCharacteristicDiscovery:
		return "characteristic-discovery"
	case StateCccdEnable:
		return "cccd-enable"
	case StateReady:
		return "ready"
	}
	return "unknown"
}

// SessionConfig configures a Session.
type SessionConfig struct {
	// Target is the cube's address. Scanning matches against it and the
	// session keys are derived from it.
	Target string

	Scan      ScanParams
	WriteMode WriteMode

	// NotifyQueueDepth bounds the buffered notification queue. Frames
	// arriving on a full queue are dropped and counted.
	NotifyQueueDepth int

	// NotifyDrainPerTick caps decode work per tick.
	NotifyDrainPerTick int

	// CooldownMs is the gate between transport operations.
	CooldownMs int32

	// BringupTimeoutMs bounds the wait for notification-enable
	// confirmation. Some stacks never report it; after the deadline the
	// session proceeds to ready regardless.
	BringupTimeoutMs int32

	Dispatcher DispatcherConfig

	Logger *slog.Logger
}

// DefaultSessionConfig returns the tuning used by the alarm firmware.
func DefaultSessionConfig(target string) SessionConfig {
	return SessionConfig{
		Target:             target,
		WriteMode:          WriteUnacknowledged,
		NotifyQueueDepth:   32,
		NotifyDrainPerTick: 4,
		CooldownMs:         30,
		BringupTimeoutMs:   2000,
		Dispatcher:         DefaultDispatcherConfig(),
	}
}

// Session drives one cube connection from scan to ready and keeps it
// serviced. It is not safe for concurrent use: the owner must serialize
// HandleEvent and Tick onto a single goroutine.
//
// HandleEvent only records; every transport operation is issued from Tick.
// This keeps the session correct on stacks that deliver events from a
// context where starting the next operation deadlocks or corrupts state.
type Session struct {
	cfg  SessionConfig
	tr   Transport
	disp *Dispatcher
	log  *slog.Logger

	// OnEvent receives every decoded telemetry event. Optional.
	OnEvent func(gan.Event)

	// OnDisconnect fires once per connection loss, before the session
	// resets for the next scan. Optional.
	OnDisconnect func()

	state SessionState
	conn  ConnHandle
	keys  gan.SessionKeys

	foundAddr     string
	scanDone      bool
	connected     bool
	connectFailed bool
	dropped       bool

	svcRanges []HandleRange
	svcDone   bool

	charQueue []HandleRange
	charBusy  bool
	charDone  bool

	cmdHandle   uint16
	stateHandle uint16

	cccdQueue       []uint16
	notifyConfirmed bool
	bringupDeadline Ticks

	notifyQ     [][]byte
	notifyDrops uint32
	frameErrors uint32

	gate Ticks
}

// NewSession creates a session over tr. It does nothing until Tick runs.
func NewSession(cfg SessionConfig, tr Transport) *Session {
	if cfg.NotifyQueueDepth <= 0 {
		cfg.NotifyQueueDepth = 32
	}
	if cfg.NotifyDrainPerTick <= 0 {
		cfg.NotifyDrainPerTick = 4
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Session{
		cfg:  cfg,
		tr:   tr,
		disp: NewDispatcher(cfg.Dispatcher),
		log:  cfg.Logger,
	}
	tr.SetEventHandler(s.HandleEvent)
	return s
}

// State returns the current bring-up phase.
func (s *Session) State() SessionState {
	return s.state
}

// DroppedNotifications reports frames discarded on a full queue.
func (s *Session) DroppedNotifications() uint32 {
	return s.notifyDrops
}

// Submit queues a command for delivery once the session is ready.
func (s *Session) Submit(payload []byte, now Ticks) {
	s.disp.Submit(payload, now)
}

// HandleEvent records a transport event. It never issues transport
// operations; Tick acts on what was recorded.
func (s *Session) HandleEvent(e Event) {
	switch e.Type {
	case EventScanResult:
		if strings.EqualFold(e.Addr, s.cfg.Target) {
			s.foundAddr = e.Addr
		}
	case EventScanDone:
		s.scanDone = true
	case EventConnected:
		s.conn = e.Conn
		s.connected = true
	case EventConnectFailed:
		s.connectFailed = true
	case EventDisconnected:
		s.dropped = true
	case EventServiceResult:
		s.svcRanges = append(s.svcRanges, HandleRange{Start: e.Start, End: e.End})
	case EventServiceDone:
		s.svcDone = true
	case EventCharacteristicResult:
		uuid := strings.ToLower(e.UUID)
		switch uuid {
		case gan.CommandCharUUID:
			s.cmdHandle = e.ValueHandle
		case gan.StateCharUUID:
			s.stateHandle = e.ValueHandle
		}
		// Subscribe to every notify-capable characteristic, not only the
		// state char: firmware variants stream from extra handles. The
		// state char is queued even when the stack misreports its
		// properties; its confirmation still gates readiness.
		if e.Properties&(PropertyNotify|PropertyIndicate) != 0 || uuid == gan.StateCharUUID {
			s.cccdQueue = append(s.cccdQueue, e.ValueHandle)
		}
	case EventCharacteristicDone:
		s.charDone = true
	case EventNotificationEnabled:
		if e.ValueHandle == s.stateHandle {
			s.notifyConfirmed = true
		}
	case EventNotify:
		if e.ValueHandle != s.stateHandle {
			return
		}
		if len(s.notifyQ) >= s.cfg.NotifyQueueDepth {
			s.notifyDrops++
			return
		}
		frame := make([]byte, len(e.Data))
		copy(frame, e.Data)
		s.notifyQ = append(s.notifyQ, frame)
	}
}

// Tick advances the session. It drains a bounded number of buffered
// notifications, then issues at most one transport operation for the
// current phase, honoring the cooldown gate.
func (s *Session) Tick(now Ticks) {
	if s.dropped {
		s.log.Info("connection lost", "state", s.state)
		if s.OnDisconnect != nil {
			s.OnDisconnect()
		}
		s.reset()
	}

	s.drainNotifications(now)

	if !reached(now, s.gate) {
		return
	}

	switch s.state {
	case StateIdle:
		if err := s.tr.StartScan(s.cfg.Scan); err != nil {
			s.armGate(now)
			return
		}
		s.log.Debug("scan started", "target", s.cfg.Target)
		s.state = StateScanning

	case StateScanning:
		if s.foundAddr != "" {
			_ = s.tr.StopScan()
			if err := s.tr.Connect(s.foundAddr); err != nil {
				s.armGate(now)
				return
			}
			s.log.Info("cube found, connecting", "addr", s.foundAddr)
			s.state = StateConnecting
			s.armGate(now)
		} else if s.scanDone {
			// Scan window elapsed without a match; go around again.
			s.scanDone = false
			s.state = StateIdle
		}

	case StateConnecting:
		if s.connectFailed {
			s.log.Warn("connect failed, rescanning")
			s.reset()
			return
		}
		if !s.connected {
			return
		}
		keys, err := gan.DeriveKeys(s.cfg.Target)
		if err != nil {
			s.log.Error("key derivation failed", "err", err)
			_ = s.tr.Disconnect(s.conn)
			s.reset()
			return
		}
		s.keys = keys
		if err := s.tr.DiscoverServices(s.conn); err != nil {
			s.armGate(now)
			return
		}
		s.state = StateServiceDiscovery
		s.armGate(now)

	case StateServiceDiscovery:
		if !s.svcDone {
			return
		}
		s.charQueue = s.svcRanges
		s.state = StateCharacteristicDiscovery

	case StateCharacteristicDiscovery:
		if s.charBusy {
			if !s.charDone {
				return
			}
			s.charBusy, s.charDone = false, false
		}
		if s.cmdHandle != 0 && s.stateHandle != 0 {
			// Both handles known; any remaining ranges are irrelevant.
			s.charQueue = nil
			s.bringupDeadline = now.Add(s.cfg.BringupTimeoutMs)
			s.state = StateCccdEnable
			return
		}
		if len(s.charQueue) == 0 {
			s.log.Error("bring-up aborted", "err", ErrDiscoveryIncomplete)
			_ = s.tr.Disconnect(s.conn)
			s.reset()
			return
		}
		r := s.charQueue[0]
		if err := s.tr.DiscoverCharacteristics(s.conn, r.Start, r.End); err != nil {
			s.armGate(now)
			return
		}
		s.charQueue = s.charQueue[1:]
		s.charBusy = true
		s.armGate(now)

	case StateCccdEnable:
		if len(s.cccdQueue) > 0 {
			h := s.cccdQueue[0]
			if err := s.tr.EnableNotifications(s.conn, h); err != nil {
				s.armGate(now)
				return
			}
			s.cccdQueue = s.cccdQueue[1:]
			s.armGate(now)
			return
		}
		if s.notifyConfirmed || reached(now, s.bringupDeadline) {
			if !s.notifyConfirmed {
				s.log.Warn("notification enable unconfirmed, proceeding")
			}
			s.log.Info("session ready", "addr", s.cfg.Target)
			s.state = StateReady
			s.disp.Submit(gan.RequestFacelets(), now)
		}

	case StateReady:
		s.disp.Tick(now, s.gate, func(payload []byte) error {
			enc, err := gan.Encrypt(payload, s.keys)
			if err != nil {
				return err
			}
			err = s.tr.WriteCharacteristic(s.conn, s.cmdHandle, enc, s.cfg.WriteMode)
			if err == nil {
				s.armGate(now)
			}
			return err
		})
	}
}

func (s *Session) drainNotifications(now Ticks) {
	budget := s.cfg.NotifyDrainPerTick
	for budget > 0 && len(s.notifyQ) > 0 {
		frame := s.notifyQ[0]
		s.notifyQ = s.notifyQ[1:]
		budget--

		plain, err := gan.Decrypt(frame, s.keys)
		if err != nil {
			s.frameErrors++
			s.log.Debug("undecryptable frame", "len", len(frame), "err", err)
			continue
		}
		ev, err := gan.ParseFrame(plain)
		if err != nil {
			s.frameErrors++
			s.log.Debug("malformed frame", "err", err)
			continue
		}
		if ev.Kind == gan.KindMove || ev.Kind == gan.KindMoveLegacy {
			// The move stream says the state changed but not what it is
			// now; follow up with a rate-limited full-state poll.
			s.disp.SchedulePoll(now)
		}
		if s.OnEvent != nil {
			s.OnEvent(ev)
		}
	}
}

// armGate starts the cooldown between transport operations. A busy failure
// uses the same gate: the step stays current and retries on a later tick.
func (s *Session) armGate(now Ticks) {
	s.gate = now.Add(s.cfg.CooldownMs)
}

// reset returns the session to the idle phase for a fresh scan. All
// per-connection state is discarded, including queued commands.
func (s *Session) reset() {
	s.state = StateIdle
	s.conn = 0
	s.keys = gan.SessionKeys{}
	s.foundAddr = ""
	s.scanDone = false
	s.connected = false
	s.connectFailed = false
	s.dropped = false
	s.svcRanges = nil
	s.svcDone = false
	s.charQueue = nil
	s.charBusy = false
	s.charDone = false
	s.cmdHandle = 0
	s.stateHandle = 0
	s.cccdQueue = nil
	s.notifyConfirmed = false
	s.notifyQ = nil
	s.disp.Reset()
}
