// Package metrics provides Prometheus metrics for the capture pipeline.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "camnode",
		Subsystem: "capture",
		Name:      "frames_delivered_total",
		Help:      "Decoded frames delivered to consumers",
	})

	framesResized = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "camnode",
		Subsystem: "capture",
		Name:      "frames_resized_total",
		Help:      "Frames forced to the locked dimensions",
	})

	decodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "camnode",
		Subsystem: "capture",
		Name:      "decode_failures_total",
		Help:      "Frames dropped because decoding failed",
	})

	emptyPolls = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "camnode",
		Subsystem: "capture",
		Name:      "empty_polls_total",
		Help:      "Backend polls that returned no frame",
	})

	lockedWidth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "camnode",
		Subsystem: "capture",
		Name:      "locked_width",
		Help:      "Width the dimension lock settled on, 0 while unlocked",
	})

	lockedHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "camnode",
		Subsystem: "capture",
		Name:      "locked_height",
		Help:      "Height the dimension lock settled on, 0 while unlocked",
	})

	// Local cache for API status access.
	captureCache   CaptureStats
	captureCacheMu sync.RWMutex
)

// CaptureStats holds current capture counters for the status API.
type CaptureStats struct {
	FramesDelivered uint64 `json:"frames_delivered"`
	FramesResized   uint64 `json:"frames_resized"`
	DecodeFailures  uint64 `json:"decode_failures"`
	EmptyPolls      uint64 `json:"empty_polls"`
	LockedWidth     int    `json:"locked_width"`
	LockedHeight    int    `json:"locked_height"`
}

// IncFramesDelivered counts a frame handed to consumers.
func IncFramesDelivered() {
	framesDelivered.Inc()
	captureCacheMu.Lock()
	captureCache.FramesDelivered++
	captureCacheMu.Unlock()
}

// IncFramesResized counts a frame resized to the locked dimensions.
func IncFramesResized() {
	framesResized.Inc()
	captureCacheMu.Lock()
	captureCache.FramesResized++
	captureCacheMu.Unlock()
}

// IncDecodeFailures counts a frame dropped due to a decode error.
func IncDecodeFailures() {
	decodeFailures.Inc()
	captureCacheMu.Lock()
	captureCache.DecodeFailures++
	captureCacheMu.Unlock()
}

// IncEmptyPolls counts a poll that found no frame ready.
func IncEmptyPolls() {
	emptyPolls.Inc()
	captureCacheMu.Lock()
	captureCache.EmptyPolls++
	captureCacheMu.Unlock()
}

// SetLockedSize records the dimensions the lock settled on. Zeroes mean
// the lock was cleared.
func SetLockedSize(width, height int) {
	lockedWidth.Set(float64(width))
	lockedHeight.Set(float64(height))
	captureCacheMu.Lock()
	captureCache.LockedWidth = width
	captureCache.LockedHeight = height
	captureCacheMu.Unlock()
}

// GetCaptureStats returns a snapshot of the capture counters.
func GetCaptureStats() CaptureStats {
	captureCacheMu.RLock()
	defer captureCacheMu.RUnlock()
	return captureCache
}
