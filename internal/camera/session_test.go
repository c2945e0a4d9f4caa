package camera

import (
	"context"
	"errors"
	"image"
	"image/color"
	"log/slog"
	"testing"
	"time"
)

func acceptAll(width, height int, fourcc uint32) bool { return true }

func openerFor(backend Backend) OpenFunc {
	return func(ctx context.Context) (Backend, string, error) {
		return backend, "/dev/video0", nil
	}
}

func TestSessionLifecycle(t *testing.T) {
	backend := &fakeBackend{accept: acceptAll}

	var connected, disconnected int
	s := NewSession(openerFor(backend), nil, Callbacks{
		OnConnected:    func() { connected++ },
		OnDisconnected: func() { disconnected++ },
	}, slog.Default())

	if s.State() != StateClosed {
		t.Fatalf("initial state = %s, want closed", s.State())
	}

	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if s.State() != StateOpened {
		t.Errorf("state after Open = %s", s.State())
	}
	if s.Device() != "/dev/video0" {
		t.Errorf("Device() = %q", s.Device())
	}

	if err := s.Negotiate(); err != nil {
		t.Fatalf("Negotiate() error = %v", err)
	}
	if s.State() != StateFormatSet {
		t.Errorf("state after Negotiate = %s", s.State())
	}

	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if s.State() != StateStreaming {
		t.Errorf("state after Start = %s", s.State())
	}
	if connected != 1 {
		t.Errorf("OnConnected fired %d times, want 1", connected)
	}

	s.Close()
	if s.State() != StateClosed {
		t.Errorf("state after Close = %s", s.State())
	}
	if disconnected != 1 {
		t.Errorf("OnDisconnected fired %d times, want 1", disconnected)
	}

	_, _, starts, stops, closes := backend.snapshot()
	if starts != 1 || stops != 1 || closes != 1 {
		t.Errorf("backend calls start=%d stop=%d close=%d, want 1 each", starts, stops, closes)
	}
}

func TestSessionStopStartReusesFormat(t *testing.T) {
	backend := &fakeBackend{accept: acceptAll}
	s := NewSession(openerFor(backend), nil, Callbacks{}, slog.Default())

	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Negotiate(); err != nil {
		t.Fatalf("Negotiate() error = %v", err)
	}
	format := s.Format()

	if err := s.Start(); err != nil {
		t.Fatalf("first Start() error = %v", err)
	}
	s.Stop()
	if s.State() != StateFormatSet {
		t.Fatalf("state after Stop = %s, want format_set", s.State())
	}

	// A restart must not renegotiate.
	negotiated := len(backend.setFormatCalls)
	if err := s.Start(); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	if len(backend.setFormatCalls) != negotiated {
		t.Errorf("restart issued %d extra SetFormat calls", len(backend.setFormatCalls)-negotiated)
	}
	if s.Format() != format {
		t.Errorf("format changed across restart: %+v != %+v", s.Format(), format)
	}
	s.Close()
}

func TestSessionTeardownIdempotent(t *testing.T) {
	backend := &fakeBackend{accept: acceptAll}
	s := NewSession(openerFor(backend), nil, Callbacks{}, slog.Default())

	// Teardown before anything was opened must be a silent no-op.
	s.Stop()
	s.Close()

	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Negotiate(); err != nil {
		t.Fatalf("Negotiate() error = %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	s.Close()
	s.Close()
	s.Stop()

	_, _, _, _, closes := backend.snapshot()
	if closes != 1 {
		t.Errorf("backend closed %d times, want 1", closes)
	}
}

func TestSessionReleaseRetires(t *testing.T) {
	opened := false
	s := NewSession(func(ctx context.Context) (Backend, string, error) {
		opened = true
		return &fakeBackend{accept: acceptAll}, "/dev/video0", nil
	}, nil, Callbacks{}, slog.Default())

	s.Release()
	if err := s.Open(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("Open() after Release error = %v, want ErrClosed", err)
	}
	if opened {
		t.Error("released session still opened a device")
	}
}

func TestSessionOutOfOrderCalls(t *testing.T) {
	backend := &fakeBackend{accept: acceptAll}
	s := NewSession(openerFor(backend), nil, Callbacks{}, slog.Default())

	if err := s.Negotiate(); err == nil {
		t.Error("Negotiate() before Open succeeded")
	}
	if err := s.Start(); err == nil {
		t.Error("Start() before Negotiate succeeded")
	}

	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Open(context.Background()); err == nil {
		t.Error("second Open() succeeded")
	}
	if err := s.Start(); err == nil {
		t.Error("Start() before Negotiate succeeded")
	}
	s.Close()
}

// The shipped callbacks read Session.Device() and Session.State(), so
// lifecycle callbacks must run with the session mutex released.
func TestSessionCallbacksReenterSession(t *testing.T) {
	backend := &fakeBackend{accept: acceptAll}

	var s *Session
	var connectedDevice, disconnectedDevice string
	s = NewSession(openerFor(backend), nil, Callbacks{
		OnConnected:    func() { connectedDevice = s.Device() },
		OnDisconnected: func() { disconnectedDevice = s.Device() },
	}, slog.Default())

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := s.Open(context.Background()); err != nil {
			t.Errorf("Open() error = %v", err)
			return
		}
		if err := s.Negotiate(); err != nil {
			t.Errorf("Negotiate() error = %v", err)
			return
		}
		if err := s.Start(); err != nil {
			t.Errorf("Start() error = %v", err)
			return
		}
		s.Stop()
		s.Close()
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lifecycle blocked: callback calling into the session deadlocked")
	}

	if connectedDevice != "/dev/video0" {
		t.Errorf("OnConnected saw device %q, want /dev/video0", connectedDevice)
	}
	if disconnectedDevice != "/dev/video0" {
		t.Errorf("OnDisconnected saw device %q, want /dev/video0", disconnectedDevice)
	}
}

func TestSessionErrorCallbackReentersSession(t *testing.T) {
	openErr := errors.New("no camera")
	var s *Session
	seen := State(-1)
	s = NewSession(func(ctx context.Context) (Backend, string, error) {
		return nil, "", openErr
	}, nil, Callbacks{
		OnError: func(string) { seen = s.State() },
	}, slog.Default())

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := s.Open(context.Background()); !errors.Is(err, openErr) {
			t.Errorf("Open() error = %v, want %v", err, openErr)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Open() blocked: OnError calling into the session deadlocked")
	}
	if seen != StateClosed {
		t.Errorf("OnError saw state %s, want closed", seen)
	}
}

func waitFrame(t *testing.T, frames chan image.Image) image.Image {
	t.Helper()
	select {
	case img := <-frames:
		return img
	case <-time.After(2 * time.Second):
		t.Fatal("no frame delivered")
		return nil
	}
}

func TestSessionRenegotiateKeepsDimensionLock(t *testing.T) {
	backend := &fakeBackend{accept: acceptAll}
	frames := make(chan image.Image, 1)
	s := NewSession(openerFor(backend), nil, Callbacks{
		OnFrame: func(img image.Image) {
			select {
			case frames <- img:
			default:
			}
		},
	}, slog.Default())

	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Negotiate(); err != nil {
		t.Fatalf("Negotiate() error = %v", err)
	}

	backend.pushFrame(encodeJPEG(t, 64, 48, color.White))
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	first := waitFrame(t, frames)
	if b := first.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Fatalf("first frame %dx%d, want 64x48", b.Dx(), b.Dy())
	}
	s.Stop()

	if err := s.Negotiate(); err != nil {
		t.Fatalf("renegotiate error = %v", err)
	}
	backend.pushFrame(encodeJPEG(t, 80, 60, color.White))
	if err := s.Start(); err != nil {
		t.Fatalf("restart error = %v", err)
	}
	second := waitFrame(t, frames)
	if b := second.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Errorf("frame after renegotiation %dx%d, want locked 64x48", b.Dx(), b.Dy())
	}
	s.Close()
}

func TestSessionOpenErrorReported(t *testing.T) {
	openErr := errors.New("enumeration failed")
	var reported string
	s := NewSession(func(ctx context.Context) (Backend, string, error) {
		return nil, "", openErr
	}, nil, Callbacks{
		OnError: func(msg string) { reported = msg },
	}, slog.Default())

	if err := s.Open(context.Background()); !errors.Is(err, openErr) {
		t.Fatalf("Open() error = %v, want %v", err, openErr)
	}
	if reported == "" {
		t.Error("OnError was not invoked")
	}
	if s.State() != StateClosed {
		t.Errorf("state after failed Open = %s, want closed", s.State())
	}
}
