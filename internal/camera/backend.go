// Package camera implements the capture pipeline: a backend contract for
// the V4L2 and UVC bulk paths, deterministic format negotiation, a
// throttled frame pump, and the frame decoder with its dimension lock.
package camera

import "errors"

// FourCC codes understood by the capture backends.
const (
	FourCCMJPG uint32 = 0x47504A4D // 'MJPG'
	FourCCYUYV uint32 = 0x56595559 // 'YUYV'
)

// Sentinel errors surfaced by the capture pipeline. Compare with errors.Is.
var (
	// ErrNoFrame means the backend has no filled buffer ready yet; poll again.
	ErrNoFrame = errors.New("no frame available")

	// ErrPermissionDenied means the device node or USB handle was refused.
	// This is terminal for the device: retrying without an environment
	// change will not succeed.
	ErrPermissionDenied = errors.New("device access denied")

	// ErrNoDevice means no usable capture device was found.
	ErrNoDevice = errors.New("no capture device found")

	// ErrFormatExhausted means every negotiation candidate was rejected.
	ErrFormatExhausted = errors.New("no supported capture format")

	// ErrClosed means the session has been closed or released.
	ErrClosed = errors.New("session closed")
)

// Backend is the minimal capture surface shared by the V4L2 and UVC bulk
// paths. The backend is chosen once at open time; nothing dispatches per
// call. Implementations are driven from a single goroutine.
//
// GetFrame returns a payload that stays valid until the matching
// ReleaseFrame; it returns ErrNoFrame when nothing is ready yet.
type Backend interface {
	SetFormat(width, height int, fourcc uint32) error
	StartStreaming() error
	StopStreaming() error
	GetFrame() ([]byte, error)
	ReleaseFrame() error
	Close() error
}
