// Package server exposes the HTTP surface: a Huma v2 JSON API under
// /api, the Prometheus scrape endpoint, and a raw multipart MJPEG
// preview.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/smazurov/camnode/internal/camera"
	"github.com/smazurov/camnode/internal/events"
	"github.com/smazurov/camnode/internal/logging"
	"github.com/smazurov/camnode/internal/usb"
)

// DeviceLister enumerates candidate camera hardware for /api/devices.
type DeviceLister func(logger *slog.Logger) ([]usb.DeviceInfo, error)

// Options configures the HTTP server.
type Options struct {
	Session           *camera.Session
	EventBus          *events.Bus
	ListDevices       DeviceLister
	PrometheusHandler http.Handler
}

type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	session    *camera.Session
	eventBus   *events.Bus
	listDevs   DeviceLister
	logger     *slog.Logger
}

func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	config := huma.DefaultConfig("CamNode API", "1.0.0")
	config.Info.Description = "USB camera acquisition and preview API"
	config.Servers = []*huma.Server{}

	api := humago.New(mux, config)

	s := &Server{
		api:      api,
		mux:      mux,
		session:  opts.Session,
		eventBus: opts.EventBus,
		listDevs: opts.ListDevices,
		logger:   logging.GetLogger("server"),
	}
	if s.listDevs == nil {
		s.listDevs = usb.ListDevices
	}

	api.UseMiddleware(httpLoggingMiddleware)

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}
	mux.HandleFunc("GET /preview", s.handlePreview)

	s.registerRoutes()
	return s
}

// GetMux returns the underlying ServeMux for additional setup.
func (s *Server) GetMux() *http.ServeMux {
	return s.mux
}

func (s *Server) Start(addr string) error {
	s.logger.Info("starting API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}
	return s.httpServer.ListenAndServe()
}

// Stop shuts the server down without waiting for open connections;
// preview streams would otherwise hold shutdown open forever.
func (s *Server) Stop() error {
	s.logger.Info("stopping API server")
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

// httpLoggingMiddleware logs requests, picking the level from the
// response status.
func httpLoggingMiddleware(ctx huma.Context, next func(huma.Context)) {
	start := time.Now()
	logger := logging.GetLogger("http")

	method := ctx.Method()
	path := ctx.URL().Path

	next(ctx)

	status := ctx.Status()
	attrs := []slog.Attr{
		slog.String("method", method),
		slog.String("path", path),
		slog.String("remote_addr", ctx.RemoteAddr()),
		slog.Int("status", status),
		slog.Duration("duration", time.Since(start)),
	}

	message := "HTTP request completed"
	switch {
	case status >= 500:
		logger.LogAttrs(ctx.Context(), slog.LevelError, message, attrs...)
	case status >= 400:
		logger.LogAttrs(ctx.Context(), slog.LevelWarn, message, attrs...)
	default:
		logger.LogAttrs(ctx.Context(), slog.LevelInfo, message, attrs...)
	}
}
