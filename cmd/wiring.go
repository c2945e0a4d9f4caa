// Package cmd holds the CLI subcommands and the glue between the
// capture session and the event bus.
package cmd

import (
	"context"
	"image"
	"time"

	"github.com/smazurov/camnode/internal/camera"
	"github.com/smazurov/camnode/internal/config"
	"github.com/smazurov/camnode/internal/events"
)

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// NewBusCallbacks builds session callbacks that publish lifecycle
// changes and decoded frames onto the event bus. device resolves the
// label of whatever node the session currently holds.
func NewBusCallbacks(bus *events.Bus, device func() string) camera.Callbacks {
	// Sequence and lock tracking only ever run on the pump goroutine.
	var sequence uint64
	var lockWidth, lockHeight int

	return camera.Callbacks{
		OnFrame: func(img image.Image) {
			size := img.Bounds().Size()
			if size.X != lockWidth || size.Y != lockHeight {
				lockWidth, lockHeight = size.X, size.Y
				bus.Publish(events.DimensionLockedEvent{
					Width:     lockWidth,
					Height:    lockHeight,
					Timestamp: timestamp(),
				})
			}
			sequence++
			bus.Publish(events.FrameEvent{Image: img, Sequence: sequence})
		},
		OnConnected: func() {
			bus.Publish(events.CameraConnectedEvent{
				Backend:   backendLabel(device()),
				Device:    device(),
				Timestamp: timestamp(),
			})
		},
		OnDisconnected: func() {
			lockWidth, lockHeight = 0, 0
			bus.Publish(events.CameraDisconnectedEvent{
				Device:    device(),
				Timestamp: timestamp(),
			})
		},
		OnError: func(msg string) {
			bus.Publish(events.CameraErrorEvent{
				Device:    device(),
				Message:   msg,
				Timestamp: timestamp(),
			})
		},
	}
}

func backendLabel(device string) string {
	if device == "usb-bulk" {
		return "uvc"
	}
	return "v4l2"
}

// PreferredFormats turns persisted camera definitions into the ordered
// list the format negotiator tries first.
func PreferredFormats(manager *config.CameraManager) []camera.Format {
	formats, _, _ := capturePlan(manager.GetCameras(), "")
	return formats
}

// RunCapture walks a session from closed to streaming.
func RunCapture(ctx context.Context, session *camera.Session) error {
	if err := session.Open(ctx); err != nil {
		return err
	}
	if err := session.Negotiate(); err != nil {
		session.Close()
		return err
	}
	if err := session.Start(); err != nil {
		session.Close()
		return err
	}
	return nil
}
