package uvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/gousb"

	"github.com/smazurov/camnode/internal/camera"
)

const (
	classVideo            gousb.Class = 0x0e
	subclassVideoStreaming            = 0x02

	// bmRequestType: class request to an interface, host-to-device and
	// device-to-host respectively.
	requestTypeSet = 0x21
	requestTypeGet = 0xa1

	requestSetCur = 0x01
	requestGetCur = 0x81

	// wValue for the probe and commit controls, selector in the high
	// byte.
	selectorProbe  = 0x0100
	selectorCommit = 0x0200

	bulkReadTimeout = 1000 * time.Millisecond
)

// Device streams video over a bulk IN endpoint. It implements
// camera.Backend so sessions can fall back to it when no V4L2 node is
// usable.
type Device struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface
	ep   *gousb.InEndpoint

	ifnum int
	epNum int

	control StreamingControl
	buf     []byte
	logger  *slog.Logger
}

// Open claims the first USB video-class device it finds.
func Open(logger *slog.Logger) (*Device, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "uvc")

	ctx := gousb.NewContext()

	devs, err := ctx.OpenDevices(isVideoDevice)
	if err != nil && len(devs) == 0 {
		ctx.Close()
		return nil, fmt.Errorf("enumerating video devices: %w", err)
	}
	if len(devs) == 0 {
		ctx.Close()
		return nil, fmt.Errorf("%w: no USB video-class device present", camera.ErrNoDevice)
	}

	// Only the first device is used; release the rest.
	for _, dev := range devs[1:] {
		dev.Close()
	}
	dev := devs[0]

	d := &Device{ctx: ctx, dev: dev, logger: logger}
	if err := d.locateStreamingEndpoint(); err != nil {
		dev.Close()
		ctx.Close()
		return nil, err
	}

	// The uvcvideo driver may hold the interface even without a usable
	// node.
	if err := dev.SetAutoDetach(true); err != nil {
		d.logger.Warn("kernel driver auto-detach unavailable", "error", err)
	}

	logger.Info("bulk video device opened",
		"vendor", dev.Desc.Vendor.String(),
		"product", dev.Desc.Product.String(),
		"interface", d.ifnum,
		"endpoint", d.epNum)
	return d, nil
}

func isVideoDevice(desc *gousb.DeviceDesc) bool {
	if desc.Class == classVideo {
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

// locateStreamingEndpoint finds the VideoStreaming interface and its
// first bulk IN endpoint. Isochronous-only devices are rejected.
func (d *Device) locateStreamingEndpoint() error {
	for _, cfg := range d.dev.Desc.Configs {
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				if alt.Class != classVideo || alt.SubClass != subclassVideoStreaming {
					continue
				}
				for _, ep := range alt.Endpoints {
					if ep.Direction == gousb.EndpointDirectionIn && ep.TransferType == gousb.TransferTypeBulk {
						d.ifnum = alt.Number
						d.epNum = ep.Number
						return nil
					}
				}
			}
		}
	}
	return fmt.Errorf("%w: no bulk video streaming endpoint", camera.ErrNoDevice)
}

// SetFormat negotiates streaming parameters through the probe and
// commit dance. Whatever the device proposes in response to the probe
// is committed unchanged.
func (d *Device) SetFormat(width, height int, fourcc uint32) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d", width, height)
	}

	probe := StreamingControl{
		FormatIndex:   1,
		FrameIndex:    1,
		FrameInterval: 333333, // 30 fps in 100ns units
	}
	payload, _ := probe.MarshalBinary()

	if _, err := d.dev.Control(requestTypeSet, requestSetCur, selectorProbe, uint16(d.ifnum), payload); err != nil {
		return fmt.Errorf("probe set failed: %w", err)
	}

	reply := make([]byte, streamingControlLen)
	if _, err := d.dev.Control(requestTypeGet, requestGetCur, selectorProbe, uint16(d.ifnum), reply); err != nil {
		return fmt.Errorf("probe get failed: %w", err)
	}
	if err := d.control.UnmarshalBinary(reply); err != nil {
		return err
	}

	if _, err := d.dev.Control(requestTypeSet, requestSetCur, selectorCommit, uint16(d.ifnum), reply); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}

	d.buf = make([]byte, width*height*2)
	d.logger.Debug("streaming parameters committed",
		"format_index", d.control.FormatIndex,
		"frame_index", d.control.FrameIndex,
		"max_payload", d.control.MaxPayloadTransferSize)
	return nil
}

func (d *Device) StartStreaming() error {
	if d.buf == nil {
		return errors.New("no format committed")
	}

	cfg, err := d.dev.Config(1)
	if err != nil {
		return fmt.Errorf("selecting configuration: %w", err)
	}
	intf, err := cfg.Interface(d.ifnum, 0)
	if err != nil {
		cfg.Close()
		return fmt.Errorf("claiming streaming interface %d: %w", d.ifnum, err)
	}
	ep, err := intf.InEndpoint(d.epNum)
	if err != nil {
		intf.Close()
		cfg.Close()
		return fmt.Errorf("opening endpoint 0x%02x: %w", d.epNum|0x80, err)
	}

	d.cfg = cfg
	d.intf = intf
	d.ep = ep
	return nil
}

// GetFrame reads one bulk transfer. A timed-out or empty read means the
// device had nothing to send yet.
func (d *Device) GetFrame() ([]byte, error) {
	if d.ep == nil {
		return nil, errors.New("not streaming")
	}

	ctx, cancel := context.WithTimeout(context.Background(), bulkReadTimeout)
	defer cancel()

	n, err := d.ep.ReadContext(ctx, d.buf)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, gousb.TransferTimedOut) {
			return nil, camera.ErrNoFrame
		}
		return nil, fmt.Errorf("bulk read failed: %w", err)
	}
	if n <= 0 {
		return nil, camera.ErrNoFrame
	}
	return d.buf[:n], nil
}

// ReleaseFrame is a no-op: bulk transfers have no buffer to requeue.
func (d *Device) ReleaseFrame() error {
	return nil
}

func (d *Device) StopStreaming() error {
	if d.intf != nil {
		d.intf.Close()
		d.intf = nil
		d.ep = nil
	}
	if d.cfg != nil {
		if err := d.cfg.Close(); err != nil {
			d.logger.Warn("configuration release failed", "error", err)
		}
		d.cfg = nil
	}
	return nil
}

func (d *Device) Close() error {
	var errs []error
	if err := d.StopStreaming(); err != nil {
		errs = append(errs, err)
	}
	if d.dev != nil {
		if err := d.dev.Close(); err != nil {
			errs = append(errs, err)
		}
		d.dev = nil
	}
	if d.ctx != nil {
		if err := d.ctx.Close(); err != nil {
			errs = append(errs, err)
		}
		d.ctx = nil
	}
	return errors.Join(errs...)
}
