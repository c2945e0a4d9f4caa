package cmd

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/camnode/internal/camera"
	"github.com/smazurov/camnode/internal/config"
	"github.com/smazurov/camnode/internal/events"
	"github.com/smazurov/camnode/internal/logging"
	"github.com/smazurov/camnode/internal/usb"
)

// CreateStreamCmd creates the stream command.
func CreateStreamCmd() *cobra.Command {
	var configFile string
	var device string
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "stream [camera-id]",
		Short: "Run a headless capture session",
		Long: `Opens a camera, negotiates a format and pumps frames without serving the HTTP API. ` +
			`Camera preferences are loaded from cameras.toml and the session restarts when the file changes.`,
		Args: cobra.MaximumNArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			loggingConfig := logging.Config{
				Level:  "info",
				Format: "text",
			}
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)
			logger := logging.GetLogger("camera")

			cameraID := ""
			if len(args) == 1 {
				cameraID = args[0]
			}

			manager := config.NewCameraManager(configFile)
			if err := manager.Load(); err != nil {
				logger.Warn("Failed to load camera definitions", "error", err, "config", configFile)
			}

			preferred, candidates, found := capturePlan(manager.GetCameras(), cameraID)
			if cameraID != "" && !found {
				logger.Error("Camera not found", "camera_id", cameraID)
				os.Exit(1)
			}
			if device != "" {
				candidates = []string{device}
			}

			bus := events.New()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			var mu sync.Mutex
			var session *camera.Session

			startSession := func(preferred []camera.Format, candidates []string) {
				mu.Lock()
				defer mu.Unlock()

				if session != nil {
					session.Release()
				}

				var sess *camera.Session
				callbacks := NewBusCallbacks(bus, func() string {
					if sess == nil {
						return ""
					}
					return sess.Device()
				})
				sess = camera.NewSession(
					usb.CameraOpener(candidates, logging.GetLogger("usb")),
					preferred,
					callbacks,
					logger,
				)
				if err := RunCapture(ctx, sess); err != nil {
					logger.Error("Capture failed", "error", err)
				}
				session = sess
			}

			startSession(preferred, candidates)

			// Fresh manager per reload so stale in-memory state never
			// leaks into the new plan.
			camerasLoader := func(path string) (map[string]config.CameraConfig, error) {
				m := config.NewCameraManager(path)
				if err := m.Load(); err != nil {
					return nil, err
				}
				return m.GetCameras(), nil
			}

			watcher := config.NewConfigWatcher(
				configFile,
				camerasLoader,
				logger,
				config.WithDebounce[map[string]config.CameraConfig](1500*time.Millisecond),
			)

			watcher.OnReload(func(cameras map[string]config.CameraConfig) {
				newPreferred, newCandidates, exists := capturePlan(cameras, cameraID)
				if cameraID != "" && !exists {
					logger.Warn("Camera removed from config, shutting down")
					cancel()
					return
				}
				if device != "" {
					newCandidates = []string{device}
				}
				logger.Info("Camera definitions changed, restarting capture")
				startSession(newPreferred, newCandidates)
			})

			if err := watcher.Start(); err != nil {
				logger.Warn("Failed to start config watcher, hot-reload disabled", "error", err)
			} else {
				defer func() { _ = watcher.Stop() }()
			}

			<-ctx.Done()

			mu.Lock()
			if session != nil {
				session.Release()
			}
			mu.Unlock()

			logger.Info("Stream command exiting")
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "cameras.toml", "Path to camera definitions file")
	cmd.Flags().StringVar(&device, "device", "", "Pin capture to a single device node or /dev/v4l/by-id name")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Use JSON log format")

	return cmd
}

// capturePlan derives the negotiation preferences and device candidates
// from camera definitions. With a camera ID the plan pins to that
// definition; otherwise every enabled camera contributes, sorted by ID.
func capturePlan(cameras map[string]config.CameraConfig, cameraID string) ([]camera.Format, []string, bool) {
	if cameraID != "" {
		cam, exists := cameras[cameraID]
		if !exists {
			return nil, nil, false
		}
		var candidates []string
		if cam.Device != "" {
			candidates = []string{cam.Device}
		}
		return []camera.Format{formatFor(cam)}, candidates, true
	}

	ids := make([]string, 0, len(cameras))
	for id, cam := range cameras {
		if cam.Enabled {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var formats []camera.Format
	for _, id := range ids {
		formats = append(formats, formatFor(cameras[id]))
	}
	return formats, nil, true
}

func formatFor(cam config.CameraConfig) camera.Format {
	fourcc := camera.FourCCMJPG
	if cam.Format == "yuyv" {
		fourcc = camera.FourCCYUYV
	}
	return camera.Format{
		Width:  cam.Width,
		Height: cam.Height,
		FourCC: fourcc,
	}
}
