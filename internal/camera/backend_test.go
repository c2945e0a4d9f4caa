package camera

import (
	"sync"
)

// fakeBackend is a scripted Backend for tests. accept decides which
// SetFormat calls succeed; frames is a FIFO of buffers handed out by
// GetFrame, with ErrNoFrame once drained.
type fakeBackend struct {
	mu sync.Mutex

	accept func(width, height int, fourcc uint32) bool
	frames [][]byte

	setFormatCalls []Format
	getFrameCalls  int
	releaseCalls   int
	startCalls     int
	stopCalls      int
	closeCalls     int

	startErr error
}

func (f *fakeBackend) SetFormat(width, height int, fourcc uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setFormatCalls = append(f.setFormatCalls, Format{Width: width, Height: height, FourCC: fourcc})
	if f.accept != nil && !f.accept(width, height, fourcc) {
		return ErrFormatExhausted
	}
	return nil
}

func (f *fakeBackend) StartStreaming() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	return f.startErr
}

func (f *fakeBackend) StopStreaming() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	return nil
}

func (f *fakeBackend) GetFrame() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getFrameCalls++
	if len(f.frames) == 0 {
		return nil, ErrNoFrame
	}
	frame := f.frames[0]
	f.frames = f.frames[1:]
	return frame, nil
}

func (f *fakeBackend) ReleaseFrame() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releaseCalls++
	return nil
}

func (f *fakeBackend) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	return nil
}

func (f *fakeBackend) pushFrame(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, data)
}

func (f *fakeBackend) snapshot() (getFrame, release, start, stop, closed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getFrameCalls, f.releaseCalls, f.startCalls, f.stopCalls, f.closeCalls
}
