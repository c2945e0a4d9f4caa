package cmd

import (
	"image"
	"testing"
	"time"

	"github.com/smazurov/camnode/internal/camera"
	"github.com/smazurov/camnode/internal/config"
	"github.com/smazurov/camnode/internal/events"
)

func TestCapturePlanPinnedCamera(t *testing.T) {
	cameras := map[string]config.CameraConfig{
		"front": {ID: "front", Device: "/dev/video2", Width: 1280, Height: 720, Format: "yuyv", Enabled: true},
		"rear":  {ID: "rear", Width: 640, Height: 480, Format: "mjpeg", Enabled: true},
	}

	formats, candidates, found := capturePlan(cameras, "front")
	if !found {
		t.Fatal("capturePlan() did not find camera front")
	}
	want := camera.Format{Width: 1280, Height: 720, FourCC: camera.FourCCYUYV}
	if len(formats) != 1 || formats[0] != want {
		t.Errorf("formats = %+v, want [%+v]", formats, want)
	}
	if len(candidates) != 1 || candidates[0] != "/dev/video2" {
		t.Errorf("candidates = %v, want [/dev/video2]", candidates)
	}
}

func TestCapturePlanMissingCamera(t *testing.T) {
	if _, _, found := capturePlan(map[string]config.CameraConfig{}, "ghost"); found {
		t.Fatal("capturePlan() claimed to find a camera in an empty config")
	}
}

func TestCapturePlanEnabledSorted(t *testing.T) {
	cameras := map[string]config.CameraConfig{
		"b": {ID: "b", Width: 640, Height: 480, Format: "mjpeg", Enabled: true},
		"a": {ID: "a", Width: 1920, Height: 1080, Format: "yuyv", Enabled: true},
		"c": {ID: "c", Width: 320, Height: 240, Format: "mjpeg", Enabled: false},
	}

	formats, _, _ := capturePlan(cameras, "")
	if len(formats) != 2 {
		t.Fatalf("got %d formats, want 2 enabled", len(formats))
	}
	if formats[0].Width != 1920 || formats[1].Width != 640 {
		t.Errorf("formats not sorted by camera ID: %+v", formats)
	}
}

func TestBusCallbacksPublishFrames(t *testing.T) {
	bus := events.New()

	frames := make(chan events.FrameEvent, 4)
	locks := make(chan events.DimensionLockedEvent, 4)
	defer bus.Subscribe(func(ev events.FrameEvent) { frames <- ev })()
	defer bus.Subscribe(func(ev events.DimensionLockedEvent) { locks <- ev })()

	callbacks := NewBusCallbacks(bus, func() string { return "/dev/video2" })

	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	callbacks.OnFrame(img)
	callbacks.OnFrame(img)

	for i := uint64(1); i <= 2; i++ {
		select {
		case ev := <-frames:
			if ev.Sequence != i {
				t.Errorf("sequence = %d, want %d", ev.Sequence, i)
			}
		case <-time.After(time.Second):
			t.Fatalf("frame %d not published", i)
		}
	}

	// The lock event fires once for a steady size.
	select {
	case ev := <-locks:
		if ev.Width != 64 || ev.Height != 48 {
			t.Errorf("lock = %dx%d, want 64x48", ev.Width, ev.Height)
		}
	case <-time.After(time.Second):
		t.Fatal("dimension lock event not published")
	}
	select {
	case <-locks:
		t.Fatal("second lock event for an unchanged size")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusCallbacksLifecycleEvents(t *testing.T) {
	bus := events.New()

	connected := make(chan events.CameraConnectedEvent, 1)
	errored := make(chan events.CameraErrorEvent, 1)
	defer bus.Subscribe(func(ev events.CameraConnectedEvent) { connected <- ev })()
	defer bus.Subscribe(func(ev events.CameraErrorEvent) { errored <- ev })()

	callbacks := NewBusCallbacks(bus, func() string { return "usb-bulk" })
	callbacks.OnConnected()
	callbacks.OnError("probe failed")

	select {
	case ev := <-connected:
		if ev.Backend != "uvc" || ev.Device != "usb-bulk" {
			t.Errorf("unexpected connected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("connected event not published")
	}

	select {
	case ev := <-errored:
		if ev.Message != "probe failed" {
			t.Errorf("unexpected error event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("error event not published")
	}
}
