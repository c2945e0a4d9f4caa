//go:build linux

package v4l2

import (
	"errors"
	"fmt"
	"log/slog"
	"syscall"
	"unsafe"
)

// ErrNoFrame is returned by GetFrame when no filled buffer is ready yet.
// Callers should back off and poll again rather than treat it as a failure.
var ErrNoFrame = errors.New("no frame available")

const (
	requestedBufferCount = 4
	minimumBufferCount   = 2
)

// Device is an open V4L2 capture device using memory-mapped streaming I/O.
//
// The usual call sequence is Open (or OpenFD), SetFormat, StartStreaming,
// then GetFrame/ReleaseFrame pairs until StopStreaming or Close. Device is
// not safe for concurrent use; drive it from a single goroutine.
type Device struct {
	fd        int
	path      string
	buffers   [][]byte
	last      int // index of the last dequeued buffer, -1 when none held
	streaming bool
	logger    *slog.Logger
}

// Open opens the video device at path and verifies it supports capture
// with streaming I/O. The descriptor is opened non-blocking so GetFrame
// polls instead of stalling the caller.
func Open(path string) (*Device, error) {
	fd, err := open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	dev, err := OpenFD(fd)
	if err != nil {
		close(fd)
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	dev.path = path
	return dev, nil
}

// OpenFD wraps an already-open descriptor, e.g. one handed over by a
// device manager that performed the open and permission checks itself.
// The descriptor must be open for read/write in non-blocking mode.
// On error the caller keeps ownership of the descriptor.
func OpenFD(fd int) (*Device, error) {
	cap := v4l2Capability{}
	if err := ioctl(fd, vidiocQuerycap, unsafe.Pointer(&cap)); err != nil {
		return nil, fmt.Errorf("failed to query capabilities: %w", err)
	}

	caps := cap.capabilities
	if caps&v4l2CapDeviceCaps != 0 {
		caps = cap.deviceCaps
	}

	if caps&v4l2CapVideoCapture == 0 {
		return nil, fmt.Errorf("device %q is not a video capture device", cstr(cap.card[:]))
	}
	if caps&v4l2CapStreaming == 0 {
		return nil, fmt.Errorf("device %q does not support streaming I/O", cstr(cap.card[:]))
	}

	return &Device{
		fd:     fd,
		last:   -1,
		logger: slog.With("component", "linuxav"),
	}, nil
}

// Path returns the device path, or an empty string for descriptor-wrapped devices.
func (d *Device) Path() string {
	return d.path
}

// SetFormat negotiates the capture format. It fails when the driver
// rejects the format outright or silently adjusts it to something else,
// so callers can fall through a candidate list deterministically.
func (d *Device) SetFormat(width, height int, pixelFormat uint32) error {
	format := v4l2Format{typ: v4l2BufTypeVideoCapture}
	format.pix.width = uint32(width)
	format.pix.height = uint32(height)
	format.pix.pixelformat = pixelFormat
	format.pix.field = v4l2FieldNone

	if err := ioctl(d.fd, vidiocSFmt, unsafe.Pointer(&format)); err != nil {
		return fmt.Errorf("failed to set format %s %dx%d: %w",
			FormatFourCC(pixelFormat), width, height, err)
	}

	// Drivers may accept the ioctl but adjust the format. Treat that as
	// a rejection of this candidate.
	if format.pix.pixelformat != pixelFormat ||
		format.pix.width != uint32(width) || format.pix.height != uint32(height) {
		return fmt.Errorf("driver adjusted format to %s %dx%d, wanted %s %dx%d",
			FormatFourCC(format.pix.pixelformat), format.pix.width, format.pix.height,
			FormatFourCC(pixelFormat), width, height)
	}

	d.logger.Debug("format set",
		"device", d.path,
		"format", FormatFourCC(pixelFormat),
		"width", width,
		"height", height,
		"sizeimage", format.pix.sizeimage)
	return nil
}

// StartStreaming requests a buffer pool, memory-maps it, queues every
// buffer, and turns the stream on. SetFormat must have been called first.
func (d *Device) StartStreaming() error {
	if d.streaming {
		return nil
	}

	req := v4l2RequestBuffers{
		count:  requestedBufferCount,
		typ:    v4l2BufTypeVideoCapture,
		memory: v4l2MemoryMmap,
	}
	if err := ioctl(d.fd, vidiocReqbufs, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("failed to request buffers: %w", err)
	}
	if req.count < minimumBufferCount {
		d.releaseBuffers()
		return fmt.Errorf("insufficient buffer memory: got %d buffers, need %d",
			req.count, minimumBufferCount)
	}

	d.buffers = make([][]byte, 0, req.count)
	for i := uint32(0); i < req.count; i++ {
		buf := v4l2Buffer{
			index:  i,
			typ:    v4l2BufTypeVideoCapture,
			memory: v4l2MemoryMmap,
		}
		if err := ioctl(d.fd, vidiocQuerybuf, unsafe.Pointer(&buf)); err != nil {
			d.unmapBuffers()
			d.releaseBuffers()
			return fmt.Errorf("failed to query buffer %d: %w", i, err)
		}

		data, err := syscall.Mmap(d.fd, int64(buf.offset), int(buf.length),
			syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
		if err != nil {
			d.unmapBuffers()
			d.releaseBuffers()
			return fmt.Errorf("failed to mmap buffer %d: %w", i, err)
		}
		d.buffers = append(d.buffers, data)
	}

	for i := range d.buffers {
		buf := v4l2Buffer{
			index:  uint32(i),
			typ:    v4l2BufTypeVideoCapture,
			memory: v4l2MemoryMmap,
		}
		if err := ioctl(d.fd, vidiocQbuf, unsafe.Pointer(&buf)); err != nil {
			d.unmapBuffers()
			d.releaseBuffers()
			return fmt.Errorf("failed to queue buffer %d: %w", i, err)
		}
	}

	typ := int32(v4l2BufTypeVideoCapture)
	if err := ioctl(d.fd, vidiocStreamon, unsafe.Pointer(&typ)); err != nil {
		d.unmapBuffers()
		d.releaseBuffers()
		return fmt.Errorf("failed to start streaming: %w", err)
	}

	d.streaming = true
	d.last = -1
	d.logger.Debug("streaming started", "device", d.path, "buffers", len(d.buffers))
	return nil
}

// GetFrame dequeues the next filled buffer and returns its payload.
// Returns ErrNoFrame when the driver has nothing ready yet. The returned
// slice aliases the mapped buffer and is only valid until ReleaseFrame.
func (d *Device) GetFrame() ([]byte, error) {
	if !d.streaming {
		return nil, fmt.Errorf("device is not streaming")
	}

	buf := v4l2Buffer{
		typ:    v4l2BufTypeVideoCapture,
		memory: v4l2MemoryMmap,
	}
	if err := ioctl(d.fd, vidiocDqbuf, unsafe.Pointer(&buf)); err != nil {
		if errors.Is(err, syscall.EAGAIN) {
			return nil, ErrNoFrame
		}
		return nil, fmt.Errorf("failed to dequeue buffer: %w", err)
	}

	if int(buf.index) >= len(d.buffers) {
		return nil, fmt.Errorf("driver returned invalid buffer index %d", buf.index)
	}
	d.last = int(buf.index)

	data := d.buffers[buf.index]
	n := int(buf.bytesused)
	if n > len(data) {
		n = len(data)
	}
	return data[:n], nil
}

// ReleaseFrame requeues the buffer returned by the previous GetFrame so
// the driver can refill it. Calling it without a held frame is a no-op.
func (d *Device) ReleaseFrame() error {
	if d.last < 0 {
		return nil
	}

	buf := v4l2Buffer{
		index:  uint32(d.last),
		typ:    v4l2BufTypeVideoCapture,
		memory: v4l2MemoryMmap,
	}
	d.last = -1
	if err := ioctl(d.fd, vidiocQbuf, unsafe.Pointer(&buf)); err != nil {
		return fmt.Errorf("failed to requeue buffer %d: %w", buf.index, err)
	}
	return nil
}

// StopStreaming turns the stream off and releases the buffer pool.
// Each teardown step runs even if an earlier one fails, so a wedged
// driver still gets its mappings released.
func (d *Device) StopStreaming() error {
	if !d.streaming {
		return nil
	}
	d.streaming = false
	d.last = -1

	var errs []error

	typ := int32(v4l2BufTypeVideoCapture)
	if err := ioctl(d.fd, vidiocStreamoff, unsafe.Pointer(&typ)); err != nil {
		d.logger.Warn("stream off failed", "device", d.path, "error", err)
		errs = append(errs, fmt.Errorf("failed to stop streaming: %w", err))
	}

	if err := d.unmapBuffers(); err != nil {
		errs = append(errs, err)
	}
	d.releaseBuffers()

	return errors.Join(errs...)
}

// Close stops streaming if needed and closes the descriptor, including
// descriptors adopted via OpenFD.
func (d *Device) Close() error {
	if d.fd < 0 {
		return nil
	}

	var errs []error
	if d.streaming {
		if err := d.StopStreaming(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := close(d.fd); err != nil {
		errs = append(errs, fmt.Errorf("failed to close device: %w", err))
	}
	d.fd = -1
	return errors.Join(errs...)
}

// unmapBuffers unmaps every mapped buffer, continuing past failures.
func (d *Device) unmapBuffers() error {
	var errs []error
	for i, data := range d.buffers {
		if data == nil {
			continue
		}
		if err := syscall.Munmap(data); err != nil {
			d.logger.Warn("munmap failed", "device", d.path, "buffer", i, "error", err)
			errs = append(errs, fmt.Errorf("failed to unmap buffer %d: %w", i, err))
		}
	}
	d.buffers = nil
	return errors.Join(errs...)
}

// releaseBuffers asks the driver to free the buffer pool. Failures are
// ignored: the pool is released implicitly when the descriptor closes.
func (d *Device) releaseBuffers() {
	req := v4l2RequestBuffers{
		count:  0,
		typ:    v4l2BufTypeVideoCapture,
		memory: v4l2MemoryMmap,
	}
	_ = ioctl(d.fd, vidiocReqbufs, unsafe.Pointer(&req))
}
