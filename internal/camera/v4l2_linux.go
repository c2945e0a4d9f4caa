//go:build linux

package camera

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/smazurov/camnode/pkg/linuxav/v4l2"
)

// v4l2Backend adapts a linuxav v4l2.Device to the Backend contract and
// translates its errors into the package sentinels.
type v4l2Backend struct {
	dev *v4l2.Device
}

// OpenV4L2 opens the video node at path as a capture backend.
func OpenV4L2(path string) (Backend, error) {
	dev, err := v4l2.Open(path)
	if err != nil {
		return nil, mapDeviceError(err)
	}
	return &v4l2Backend{dev: dev}, nil
}

// OpenV4L2FD adopts an already-open descriptor, e.g. one handed over by
// a process that performed the open and permission checks itself.
func OpenV4L2FD(fd int) (Backend, error) {
	dev, err := v4l2.OpenFD(fd)
	if err != nil {
		return nil, mapDeviceError(err)
	}
	return &v4l2Backend{dev: dev}, nil
}

func (b *v4l2Backend) SetFormat(width, height int, fourcc uint32) error {
	return b.dev.SetFormat(width, height, fourcc)
}

func (b *v4l2Backend) StartStreaming() error {
	return b.dev.StartStreaming()
}

func (b *v4l2Backend) StopStreaming() error {
	return b.dev.StopStreaming()
}

func (b *v4l2Backend) GetFrame() ([]byte, error) {
	frame, err := b.dev.GetFrame()
	if err != nil {
		if errors.Is(err, v4l2.ErrNoFrame) {
			return nil, ErrNoFrame
		}
		return nil, err
	}
	return frame, nil
}

func (b *v4l2Backend) ReleaseFrame() error {
	return b.dev.ReleaseFrame()
}

func (b *v4l2Backend) Close() error {
	return b.dev.Close()
}

// mapDeviceError folds open failures into the package sentinels so
// callers can distinguish "ask for permission" from "device is gone".
func mapDeviceError(err error) error {
	switch {
	case errors.Is(err, syscall.EACCES), errors.Is(err, syscall.EPERM):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, err)
	case errors.Is(err, syscall.ENOENT), errors.Is(err, syscall.ENODEV), errors.Is(err, syscall.ENXIO):
		return fmt.Errorf("%w: %s", ErrNoDevice, err)
	}
	return err
}
