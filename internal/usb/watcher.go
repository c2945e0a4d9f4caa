//go:build linux

package usb

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/smazurov/camnode/internal/events"
	"github.com/smazurov/camnode/pkg/linuxav/hotplug"
)

// Watcher relays kernel hotplug events for video devices onto the event
// bus. When the node an active session holds disappears, onRemove fires
// so the owner can tear the session down instead of waiting for reads
// to fail.
type Watcher struct {
	monitor  *hotplug.Monitor
	bus      *events.Bus
	onRemove func(devPath string)
	logger   *slog.Logger
}

func NewWatcher(bus *events.Bus, onRemove func(string), logger *slog.Logger) (*Watcher, error) {
	monitor, err := hotplug.NewMonitor()
	if err != nil {
		return nil, err
	}
	monitor.AddSubsystemFilter(hotplug.SubsystemVideo4Linux)
	monitor.AddSubsystemFilter(hotplug.SubsystemUSB)

	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		monitor:  monitor,
		bus:      bus,
		onRemove: onRemove,
		logger:   logger,
	}, nil
}

// Run blocks until ctx is cancelled or the netlink socket fails.
func (w *Watcher) Run(ctx context.Context) error {
	ch := make(chan hotplug.Event, 16)

	errCh := make(chan error, 1)
	go func() {
		errCh <- w.monitor.Run(ctx, ch)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case ev := <-ch:
			w.handle(ev)
		}
	}
}

func (w *Watcher) handle(ev hotplug.Event) {
	if ev.Subsystem != hotplug.SubsystemVideo4Linux {
		return
	}

	node := devNode(ev)
	w.logger.Debug("video device event",
		"action", ev.Action,
		"node", node,
		"path", ev.DevPath)

	w.bus.Publish(events.DeviceDiscoveryEvent{
		Path:      node,
		Name:      ev.DevName,
		Action:    ev.Action,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})

	if ev.Action == hotplug.ActionRemove && w.onRemove != nil && node != "" {
		w.onRemove(node)
	}
}

// devNode maps a uevent to its /dev node. DEVPATH is a sysfs path, so
// only DEVNAME (relative to /dev, e.g. "video2") identifies the node a
// session could be holding.
func devNode(ev hotplug.Event) string {
	if ev.DevName == "" {
		return ""
	}
	if strings.HasPrefix(ev.DevName, "/") {
		return ev.DevName
	}
	return "/dev/" + ev.DevName
}

func (w *Watcher) Close() error {
	return w.monitor.Close()
}
