package events

import "image"

// Event type constants for kelindar/event.
const (
	TypeDeviceDiscovery uint32 = iota + 1
	TypeCameraConnected
	TypeCameraDisconnected
	TypeCameraError
	TypeDimensionLocked
	TypeFrame
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// DeviceDiscoveryEvent represents device hotplug events.
type DeviceDiscoveryEvent struct {
	Path      string `json:"path" example:"/dev/video0" doc:"Path to the video device"`
	Name      string `json:"name" example:"HD Webcam" doc:"Device product name"`
	Action    string `json:"action" example:"added" doc:"Action type: added, removed"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceDiscoveryEvent.
func (e DeviceDiscoveryEvent) Type() uint32 { return TypeDeviceDiscovery }

// CameraConnectedEvent is published when a capture session reaches the
// streaming state.
type CameraConnectedEvent struct {
	Backend   string `json:"backend" example:"v4l2" doc:"Capture backend: v4l2 or uvc"`
	Device    string `json:"device" example:"/dev/video2" doc:"Device path or USB address"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CameraConnectedEvent.
func (e CameraConnectedEvent) Type() uint32 { return TypeCameraConnected }

// CameraDisconnectedEvent is published when a capture session shuts down.
type CameraDisconnectedEvent struct {
	Device    string `json:"device" example:"/dev/video2" doc:"Device path or USB address"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CameraDisconnectedEvent.
func (e CameraDisconnectedEvent) Type() uint32 { return TypeCameraDisconnected }

// CameraErrorEvent represents a capture failure surfaced to consumers.
type CameraErrorEvent struct {
	Device    string `json:"device" example:"/dev/video2" doc:"Device path or USB address"`
	Message   string `json:"message" example:"Streaming start failed" doc:"Error message"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CameraErrorEvent.
func (e CameraErrorEvent) Type() uint32 { return TypeCameraError }

// DimensionLockedEvent is published once per session when the first decoded
// frame fixes the output dimensions.
type DimensionLockedEvent struct {
	Width     int    `json:"width" example:"640" doc:"Locked frame width"`
	Height    int    `json:"height" example:"480" doc:"Locked frame height"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DimensionLockedEvent.
func (e DimensionLockedEvent) Type() uint32 { return TypeDimensionLocked }

// FrameEvent carries a decoded frame to display consumers.
type FrameEvent struct {
	Image    image.Image
	Sequence uint64
}

// Type returns the event type identifier for FrameEvent.
func (e FrameEvent) Type() uint32 { return TypeFrame }
