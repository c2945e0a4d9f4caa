package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/camnode/internal/camera"
	"github.com/smazurov/camnode/internal/events"
	"github.com/smazurov/camnode/internal/logging"
	"github.com/smazurov/camnode/internal/metrics"
	"github.com/smazurov/camnode/internal/usb"
	"github.com/smazurov/camnode/internal/version"
)

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
	}, func(ctx context.Context, input *struct{}) (*HealthResponse, error) {
		return &HealthResponse{
			Body: HealthData{
				Status:  "ok",
				Message: "API is healthy",
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
	}, func(ctx context.Context, input *struct{}) (*VersionResponse, error) {
		info := version.Get()
		return &VersionResponse{
			Body: VersionData{
				Version:   info.Version,
				GitCommit: info.GitCommit,
				BuildDate: info.BuildDate,
				GoVersion: info.GoVersion,
				Platform:  info.Platform,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Capture Status",
		Description: "Current session state, negotiated format and pipeline counters",
		Tags:        []string{"capture"},
	}, func(ctx context.Context, input *struct{}) (*StatusResponse, error) {
		data := StatusData{
			State: camera.StateClosed.String(),
			Stats: metrics.GetCaptureStats(),
		}
		if s.session != nil {
			data.State = s.session.State().String()
			data.Device = s.session.Device()
			if format := s.session.Format(); format.FourCC != 0 {
				data.Width = format.Width
				data.Height = format.Height
				data.Format = camera.FourCCName(format.FourCC)
			}
		}
		return &StatusResponse{Body: data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "List Devices",
		Description: "Enumerate USB devices and flag the ones exposing a video function",
		Tags:        []string{"devices"},
	}, func(ctx context.Context, input *struct{}) (*DevicesResponse, error) {
		devices, err := s.listDevs(s.logger)
		if err != nil {
			return nil, huma.Error500InternalServerError("device enumeration failed", err)
		}
		if devices == nil {
			devices = []usb.DeviceInfo{}
		}
		return &DevicesResponse{Body: DevicesData{Devices: devices}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Log History",
		Description: "Recent log entries from the in-memory ring buffer",
		Tags:        []string{"logs"},
	}, func(ctx context.Context, input *struct{}) (*LogsResponse, error) {
		var entries []logging.LogEntry
		if buffer := logging.GetBuffer(); buffer != nil {
			entries = buffer.ReadAll()
		}
		return &LogsResponse{Body: LogsData{Entries: entries}}, nil
	})

	s.registerEventRoutes()
}

// registerEventRoutes streams lifecycle and discovery events over SSE.
func (s *Server) registerEventRoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Event Stream",
		Description: "Real-time camera lifecycle and device discovery events via Server-Sent Events",
		Tags:        []string{"events"},
	}, map[string]any{
		"device_discovery":    events.DeviceDiscoveryEvent{},
		"camera_connected":    events.CameraConnectedEvent{},
		"camera_disconnected": events.CameraDisconnectedEvent{},
		"camera_error":        events.CameraErrorEvent{},
		"dimension_locked":    events.DimensionLockedEvent{},
	}, func(ctx context.Context, input *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubs := []func(){
			events.SubscribeToChannel[events.DeviceDiscoveryEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.CameraConnectedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.CameraDisconnectedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.CameraErrorEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.DimensionLockedEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsubscribe := range unsubs {
				unsubscribe()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
