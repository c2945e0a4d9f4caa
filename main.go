package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smazurov/camnode/cmd"
	"github.com/smazurov/camnode/internal/camera"
	"github.com/smazurov/camnode/internal/config"
	"github.com/smazurov/camnode/internal/events"
	"github.com/smazurov/camnode/internal/logging"
	"github.com/smazurov/camnode/internal/server"
	"github.com/smazurov/camnode/internal/usb"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Listen string `help:"Address to serve the API on" short:"l" default:":8090" toml:"server.listen" env:"SERVER_LISTEN"`

	// Camera settings
	Device            string `help:"Pin capture to a single device node or /dev/v4l/by-id name" default:"" toml:"camera.device" env:"CAMERA_DEVICE"`
	CamerasConfigFile string `help:"Camera definitions file" default:"cameras.toml" toml:"camera.config_file" env:"CAMERAS_CONFIG_FILE"`

	// Logging settings
	LoggingLevel  string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingCamera string `help:"Camera pipeline logging level" default:"info" toml:"logging.camera" env:"LOGGING_CAMERA"`
	LoggingUSB    string `help:"USB discovery logging level" default:"info" toml:"logging.usb" env:"LOGGING_USB"`
	LoggingV4L2   string `help:"V4L2 backend logging level" default:"info" toml:"logging.v4l2" env:"LOGGING_V4L2"`
	LoggingServer string `help:"API server logging level" default:"info" toml:"logging.server" env:"LOGGING_SERVER"`
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, nil); loadErr != nil {
			logging.GetLogger("main").Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"camera": opts.LoggingCamera,
				"usb":    opts.LoggingUSB,
				"v4l2":   opts.LoggingV4L2,
				"server": opts.LoggingServer,
			},
		})

		logger := logging.GetLogger("main")

		eventBus := events.New()

		cameraManager := config.NewCameraManager(opts.CamerasConfigFile)
		if err := cameraManager.Load(); err != nil {
			logger.Warn("Failed to load camera definitions", "error", err)
		}

		var candidates []string
		if opts.Device != "" {
			candidates = []string{opts.Device}
		}

		var session *camera.Session
		callbacks := cmd.NewBusCallbacks(eventBus, func() string {
			if session == nil {
				return ""
			}
			return session.Device()
		})
		session = camera.NewSession(
			usb.CameraOpener(candidates, logging.GetLogger("usb")),
			cmd.PreferredFormats(cameraManager),
			callbacks,
			logging.GetLogger("camera"),
		)

		srv := server.NewServer(&server.Options{
			Session:           session,
			EventBus:          eventBus,
			PrometheusHandler: promhttp.Handler(),
		})

		watcher, watchErr := usb.NewWatcher(eventBus, func(devPath string) {
			if devPath != "" && session.Device() == devPath {
				logger.Warn("Active camera detached, tearing session down", "device", devPath)
				session.Close()
			}
		}, logging.GetLogger("usb"))
		if watchErr != nil {
			logger.Warn("Hotplug monitoring unavailable", "error", watchErr)
		}

		ctx, cancel := context.WithCancel(context.Background())

		hooks.OnStart(func() {
			if watcher != nil {
				go func() {
					if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
						logger.Warn("Hotplug watcher stopped", "error", err)
					}
				}()
			}

			go func() {
				if err := cmd.RunCapture(ctx, session); err != nil {
					logger.Error("Capture pipeline failed to start", "error", err)
				}
			}()

			if opts.Listen == "" {
				logger.Info("API serving disabled")
				<-ctx.Done()
				return
			}

			logger.Info("Starting HTTP server", "addr", opts.Listen)
			if startErr := srv.Start(opts.Listen); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			cancel()
			if stopErr := srv.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
			if watcher != nil {
				if closeErr := watcher.Close(); closeErr != nil {
					logger.Warn("Error closing hotplug watcher", "error", closeErr)
				}
			}
			session.Release()
		})
	})

	cli.Root().AddCommand(cmd.CreateDevicesCmd())
	cli.Root().AddCommand(cmd.CreateStreamCmd())

	cli.Run()
}
