package server

import (
	"github.com/smazurov/camnode/internal/logging"
	"github.com/smazurov/camnode/internal/metrics"
	"github.com/smazurov/camnode/internal/usb"
)

// HealthData is the health check payload.
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Health status"`
	Message string `json:"message" example:"API is healthy" doc:"Health message"`
}

type HealthResponse struct {
	Body HealthData
}

// StatusData reports the capture session and its counters.
type StatusData struct {
	State  string               `json:"state" example:"streaming" doc:"Capture session state"`
	Device string               `json:"device,omitempty" example:"/dev/video2" doc:"Device in use"`
	Width  int                  `json:"width,omitempty" example:"640" doc:"Negotiated frame width"`
	Height int                  `json:"height,omitempty" example:"480" doc:"Negotiated frame height"`
	Format string               `json:"format,omitempty" example:"MJPG" doc:"Negotiated pixel format"`
	Stats  metrics.CaptureStats `json:"stats" doc:"Capture pipeline counters"`
}

type StatusResponse struct {
	Body StatusData
}

// DevicesData lists USB devices seen on the bus.
type DevicesData struct {
	Devices []usb.DeviceInfo `json:"devices" doc:"Devices found on the USB bus"`
}

type DevicesResponse struct {
	Body DevicesData
}

// VersionData mirrors version.Info for the API.
type VersionData struct {
	Version   string `json:"version" example:"1.0.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc123" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2026-01-15T10:00:00Z" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.24" doc:"Go toolchain version"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Build platform"`
}

type VersionResponse struct {
	Body VersionData
}

// LogsData returns the in-memory log history.
type LogsData struct {
	Entries []logging.LogEntry `json:"entries" doc:"Buffered log entries, oldest first"`
}

type LogsResponse struct {
	Body LogsData
}
