package camera

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
)

// State tracks where a Session is in its lifecycle.
type State int

const (
	StateClosed State = iota
	StateOpened
	StateFormatSet
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpened:
		return "opened"
	case StateFormatSet:
		return "format_set"
	case StateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// OpenFunc opens a capture backend and returns it together with a
// human-readable device label.
type OpenFunc func(ctx context.Context) (Backend, string, error)

// Callbacks are invoked by the Session as the stream changes state.
// Nil members are skipped. OnFrame runs on the pump goroutine and must
// not block. Lifecycle callbacks run with no session lock held, so they
// may call back into the Session.
type Callbacks struct {
	OnFrame        func(image.Image)
	OnConnected    func()
	OnDisconnected func()
	OnError        func(string)
}

// Session owns one camera from open through teardown. All methods are
// safe for concurrent use; teardown methods are idempotent and never
// panic, whatever state they find.
type Session struct {
	mu sync.Mutex

	open      OpenFunc
	callbacks Callbacks
	preferred []Format
	logger    *slog.Logger

	state    State
	released bool
	backend  Backend
	device   string
	format   Format
	dec      *decoder
	pump     *pump
}

func NewSession(open OpenFunc, preferred []Format, cb Callbacks, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		open:      open,
		callbacks: cb,
		preferred: preferred,
		logger:    logger,
		state:     StateClosed,
	}
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Device reports the label of the open device, or "" when closed.
func (s *Session) Device() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device
}

// Format reports the negotiated format. Zero until Negotiate succeeds.
func (s *Session) Format() Format {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

// Open acquires a backend via the session's OpenFunc.
func (s *Session) Open(ctx context.Context) error {
	var notify func()
	defer runNotify(&notify)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return ErrClosed
	}
	if s.state != StateClosed {
		return fmt.Errorf("already open (state %s)", s.state)
	}

	backend, device, err := s.open(ctx)
	if err != nil {
		notify = s.reportError(fmt.Sprintf("open failed: %v", err))
		return err
	}

	s.backend = backend
	s.device = device
	s.state = StateOpened
	s.logger.Info("camera opened", "device", device)
	return nil
}

// Negotiate picks a format the device accepts, trying the session's
// preferred formats before the built-in ladder.
func (s *Session) Negotiate() error {
	var notify func()
	defer runNotify(&notify)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateOpened && s.state != StateFormatSet {
		return fmt.Errorf("cannot negotiate in state %s", s.state)
	}

	format, err := Negotiate(s.backend, s.preferred, s.logger)
	if err != nil {
		notify = s.reportError(fmt.Sprintf("negotiation failed on %s: %v", s.device, err))
		return err
	}

	s.format = format
	// Renegotiation keeps the existing decoder so the dimension lock
	// survives; only teardown clears it.
	if s.dec == nil {
		s.dec = newDecoder(format, s.logger)
	} else {
		s.dec.setFormat(format)
	}
	s.state = StateFormatSet
	return nil
}

// Start begins streaming and launches the frame pump. After a Stop the
// previously negotiated format is reused; Negotiate is not required
// again.
func (s *Session) Start() error {
	var notify func()
	defer runNotify(&notify)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateFormatSet {
		return fmt.Errorf("cannot start in state %s", s.state)
	}

	if err := s.backend.StartStreaming(); err != nil {
		notify = s.reportError(fmt.Sprintf("streaming start failed on %s: %v", s.device, err))
		return err
	}

	s.pump = newPump(s.backend, s.dec, s.callbacks.OnFrame, s.logger)
	s.pump.start()
	s.state = StateStreaming
	s.logger.Info("streaming started",
		"device", s.device,
		"width", s.format.Width,
		"height", s.format.Height,
		"format", FourCCName(s.format.FourCC))

	notify = s.callbacks.OnConnected
	return nil
}

// Stop halts streaming. The pump is joined before any native teardown
// so no frame callback races the device going away. No-op unless
// streaming.
func (s *Session) Stop() {
	var notify func()
	defer runNotify(&notify)

	s.mu.Lock()
	defer s.mu.Unlock()
	notify = s.stopLocked()
}

// stopLocked returns the disconnect notification for the caller to run
// once the mutex is released, or nil when nothing was streaming.
func (s *Session) stopLocked() func() {
	if s.state != StateStreaming {
		return nil
	}

	s.pump.stopAndJoin()
	s.pump = nil

	if err := s.backend.StopStreaming(); err != nil {
		s.logger.Warn("streaming stop failed", "device", s.device, "error", err)
	}

	s.state = StateFormatSet
	s.logger.Info("streaming stopped", "device", s.device)

	return s.callbacks.OnDisconnected
}

// Close tears the session all the way down. Every step runs even when
// an earlier one fails; safe to call in any state, any number of times.
func (s *Session) Close() {
	var notify func()
	defer runNotify(&notify)

	s.mu.Lock()
	defer s.mu.Unlock()
	notify = s.closeLocked()
}

func (s *Session) closeLocked() func() {
	notify := s.stopLocked()

	if s.backend != nil {
		if err := s.backend.Close(); err != nil {
			s.logger.Warn("device close failed", "device", s.device, "error", err)
		}
		s.backend = nil
	}

	if s.dec != nil {
		s.dec.reset()
		s.dec = nil
	}

	s.device = ""
	s.format = Format{}
	s.state = StateClosed
	return notify
}

// Release closes the session and retires it. A released Session rejects
// further Opens. No-op when nothing was ever opened.
func (s *Session) Release() {
	var notify func()
	defer runNotify(&notify)

	s.mu.Lock()
	defer s.mu.Unlock()
	notify = s.closeLocked()
	s.released = true
}

// reportError logs msg and returns the OnError notification for the
// caller to run after unlocking.
func (s *Session) reportError(msg string) func() {
	s.logger.Error(msg)
	if s.callbacks.OnError == nil {
		return nil
	}
	return func() { s.callbacks.OnError(msg) }
}

// runNotify fires a deferred callback once the session mutex is back
// off. Callbacks may call into the session again, so they must never
// run under the lock.
func runNotify(notify *func()) {
	if *notify != nil {
		(*notify)()
	}
}
