//go:build linux

// Package usb finds cameras and decides how to reach them. Discovery
// walks the USB descriptor tree for video-class hardware, the
// permission gate verifies the device node is actually usable, and the
// watcher turns kernel uevents into bus events.
package usb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/gousb"
	"golang.org/x/sys/unix"

	"github.com/smazurov/camnode/internal/camera"
	"github.com/smazurov/camnode/internal/uvc"
	"github.com/smazurov/camnode/pkg/linuxav/v4l2"
)

const (
	classVideo         gousb.Class = 0x0e
	classMiscellaneous gousb.Class = 0xef
)

// DeviceInfo describes one USB device that looks like a camera.
type DeviceInfo struct {
	Bus       int    `json:"bus"`
	Address   int    `json:"address"`
	VendorID  string `json:"vendor_id"`
	ProductID string `json:"product_id"`
	Class     string `json:"class"`
	IsCamera  bool   `json:"is_camera"`
}

// isCameraDesc reports whether the descriptor carries a video function.
// Device class 0x0e is video outright; 0xef (miscellaneous) marks the
// interface-association devices UVC cameras register as, so it counts
// as a candidate too. Anything else is scanned for a video interface.
func isCameraDesc(desc *gousb.DeviceDesc) bool {
	if desc.Class == classVideo || desc.Class == classMiscellaneous {
		return true
	}
	for _, cfg := range desc.Configs {
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				if alt.Class == classVideo {
					return true
				}
			}
		}
	}
	return false
}

// ListDevices enumerates the bus without opening anything. The visitor
// passed to OpenDevices always declines, so it only sees descriptors.
func ListDevices(logger *slog.Logger) ([]DeviceInfo, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	var infos []DeviceInfo
	_, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		infos = append(infos, DeviceInfo{
			Bus:       desc.Bus,
			Address:   desc.Address,
			VendorID:  desc.Vendor.String(),
			ProductID: desc.Product.String(),
			Class:     desc.Class.String(),
			IsCamera:  isCameraDesc(desc),
		})
		return false
	})
	if err != nil {
		return nil, fmt.Errorf("enumerating USB bus: %w", err)
	}

	if logger != nil {
		cameras := 0
		for _, info := range infos {
			if info.IsCamera {
				cameras++
			}
		}
		logger.Debug("USB bus enumerated", "devices", len(infos), "cameras", cameras)
	}
	return infos, nil
}

// CheckAccess verifies the calling process may read and write the
// device node before any open is attempted.
func CheckAccess(path string) error {
	err := unix.Access(path, unix.R_OK|unix.W_OK)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
		return fmt.Errorf("%w: %s", camera.ErrPermissionDenied, path)
	case errors.Is(err, unix.ENOENT):
		return fmt.Errorf("%w: %s", camera.ErrNoDevice, path)
	default:
		return fmt.Errorf("access check for %s: %w", path, err)
	}
}

// defaultNodeOrder mirrors the enumeration quirk where the capture node
// of a freshly plugged camera usually lands on the higher minor while
// the lower ones expose metadata only.
var defaultNodeOrder = []string{"/dev/video2", "/dev/video3", "/dev/video1", "/dev/video0"}

// CameraOpener builds a camera.OpenFunc that works through the given
// device nodes, falling back to raw bulk transfers when no node opens.
// An empty candidates list uses the default node order; a configured
// device pins the search to that single node. Candidates without a
// leading slash are treated as stable /dev/v4l/by-id names.
func CameraOpener(candidates []string, logger *slog.Logger) camera.OpenFunc {
	if logger == nil {
		logger = slog.Default()
	}
	if len(candidates) == 0 {
		candidates = defaultNodeOrder
	}

	return func(ctx context.Context) (camera.Backend, string, error) {
		var errs []error
		for _, path := range candidates {
			if ctx.Err() != nil {
				return nil, "", ctx.Err()
			}

			// Candidates that are not paths are stable /dev/v4l/by-id
			// names; resolve them fresh on every attempt so a replugged
			// camera is found on whatever node it came back as.
			if !strings.HasPrefix(path, "/") {
				resolved, err := v4l2.GetDevicePathByID(path)
				if err != nil {
					logger.Debug("device ID not resolvable", "id", path, "error", err)
					errs = append(errs, err)
					continue
				}
				path = resolved
			}

			if err := CheckAccess(path); err != nil {
				// Permission problems are worth surfacing over a plain
				// missing node.
				if errors.Is(err, camera.ErrPermissionDenied) {
					logger.Warn("device node not accessible", "path", path, "error", err)
				}
				errs = append(errs, err)
				continue
			}

			backend, err := camera.OpenV4L2(path)
			if err != nil {
				logger.Debug("device node rejected", "path", path, "error", err)
				errs = append(errs, err)
				continue
			}
			return backend, path, nil
		}

		logger.Info("no V4L2 node usable, trying bulk transfer fallback")
		dev, err := uvc.Open(logger)
		if err != nil {
			errs = append(errs, err)
			return nil, "", fmt.Errorf("no camera reachable: %w", errors.Join(errs...))
		}
		return dev, "usb-bulk", nil
	}
}
