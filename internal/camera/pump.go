package camera

import (
	"errors"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/camnode/internal/metrics"
)

// minFrameInterval throttles the pump to ~30 fps. The backend is polled
// at most once per interval; the worker sleeps out the remainder instead
// of spinning.
const minFrameInterval = 33 * time.Millisecond

// pump drives a Backend from a single goroutine: poll, decode, deliver.
// An empty poll or a decode failure just waits for the next tick.
type pump struct {
	backend Backend
	decoder *decoder
	onFrame func(image.Image)
	logger  *slog.Logger

	interval time.Duration

	// Injectable clock for tests.
	now   func() time.Time
	sleep func(time.Duration)

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func newPump(backend Backend, dec *decoder, onFrame func(image.Image), logger *slog.Logger) *pump {
	return &pump{
		backend:  backend,
		decoder:  dec,
		onFrame:  onFrame,
		logger:   logger,
		interval: minFrameInterval,
		now:      time.Now,
		sleep:    time.Sleep,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (p *pump) start() {
	go p.run()
}

// stopAndJoin signals the worker and waits for it to exit. Callers must
// not tear the backend down until this returns.
func (p *pump) stopAndJoin() {
	p.stopOnce.Do(func() { close(p.stop) })
	<-p.done
}

func (p *pump) run() {
	defer close(p.done)

	var lastPoll time.Time
	for {
		select {
		case <-p.stop:
			return
		default:
		}

		if !lastPoll.IsZero() {
			if wait := p.interval - p.now().Sub(lastPoll); wait > 0 {
				p.sleep(wait)
				continue
			}
		}
		lastPoll = p.now()

		frame, err := p.backend.GetFrame()
		if err != nil {
			if errors.Is(err, ErrNoFrame) {
				metrics.IncEmptyPolls()
			} else {
				p.logger.Warn("frame read failed", "error", err)
			}
			continue
		}

		img, decErr := p.decoder.decode(frame)

		// Hand the buffer back before delivery so the driver keeps filling
		// the pool while the consumer works.
		if relErr := p.backend.ReleaseFrame(); relErr != nil {
			p.logger.Warn("buffer requeue failed", "error", relErr)
		}

		if decErr != nil {
			metrics.IncDecodeFailures()
			p.logger.Debug("frame dropped", "error", decErr)
			continue
		}

		metrics.IncFramesDelivered()
		if p.onFrame != nil {
			p.onFrame(img)
		}
	}
}
