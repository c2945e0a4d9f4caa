package camera

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"

	xdraw "golang.org/x/image/draw"

	"github.com/smazurov/camnode/internal/metrics"
)

const yuyvJPEGQuality = 80

// isJPEG reports whether the payload starts with a JPEG SOI marker.
// Payload sniffing, not the negotiated tag, decides the decode path:
// some devices deliver MJPEG regardless of what was committed.
func isJPEG(data []byte) bool {
	return len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8
}

// decoder turns raw frame payloads into images and pins the output
// dimensions to those of the first frame it decodes.
type decoder struct {
	width  int // negotiated capture size, used for the YUYV repack
	height int
	lockW  int // 0 until the first decode locks the output size
	lockH  int
	logger *slog.Logger
}

func newDecoder(format Format, logger *slog.Logger) *decoder {
	return &decoder{
		width:  format.Width,
		height: format.Height,
		logger: logger,
	}
}

// decode produces an image at the locked dimensions, establishing the
// lock on the first call.
func (d *decoder) decode(data []byte) (image.Image, error) {
	var img image.Image
	var err error

	if isJPEG(data) {
		img, err = jpeg.Decode(bytes.NewReader(data))
	} else {
		img, err = decodeYUYV(data, d.width, d.height)
	}
	if err != nil {
		return nil, err
	}

	return d.applyLock(img), nil
}

// applyLock records the first decoded size and forces every later frame
// to match it, so a mid-stream renegotiation can never change what
// consumers see.
func (d *decoder) applyLock(img image.Image) image.Image {
	b := img.Bounds()

	if d.lockW == 0 {
		d.lockW, d.lockH = b.Dx(), b.Dy()
		metrics.SetLockedSize(d.lockW, d.lockH)
		d.logger.Info("locked frame size", "width", d.lockW, "height", d.lockH)
		return img
	}

	if b.Dx() == d.lockW && b.Dy() == d.lockH {
		return img
	}

	d.logger.Debug("frame size mismatch, resizing",
		"got_width", b.Dx(), "got_height", b.Dy(),
		"want_width", d.lockW, "want_height", d.lockH)
	metrics.IncFramesResized()

	dst := image.NewRGBA(image.Rect(0, 0, d.lockW, d.lockH))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// setFormat updates the capture size used by the YUYV repack. The
// dimension lock is left alone, so frames after a renegotiation still
// come out at the locked size.
func (d *decoder) setFormat(format Format) {
	d.width = format.Width
	d.height = format.Height
}

// reset clears the dimension lock. Only full teardown calls this.
func (d *decoder) reset() {
	d.lockW, d.lockH = 0, 0
	metrics.SetLockedSize(0, 0)
}

// decodeYUYV repacks packed 4:2:2 YUYV into planar 4:2:0 and round-trips
// it through a quality-80 JPEG, so both decode paths hand out frames
// with identical characteristics.
func decodeYUYV(data []byte, width, height int) (image.Image, error) {
	need := width * height * 2
	if len(data) < need {
		return nil, fmt.Errorf("yuyv payload too short: got %d bytes, need %d", len(data), need)
	}
	if width%2 != 0 || height%2 != 0 {
		return nil, fmt.Errorf("yuyv dimensions must be even, got %dx%d", width, height)
	}

	img := image.NewYCbCr(image.Rect(0, 0, width, height), image.YCbCrSubsampleRatio420)

	for y := 0; y < height; y++ {
		row := data[y*width*2:]
		for x := 0; x < width; x += 2 {
			// Each YUYV macropixel is Y0 U Y1 V for two horizontal pixels.
			y0 := row[x*2]
			u := row[x*2+1]
			y1 := row[x*2+2]
			v := row[x*2+3]

			img.Y[y*img.YStride+x] = y0
			img.Y[y*img.YStride+x+1] = y1

			// Chroma is subsampled vertically from even rows.
			if y%2 == 0 {
				ci := (y/2)*img.CStride + x/2
				img.Cb[ci] = u
				img.Cr[ci] = v
			}
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: yuyvJPEGQuality}); err != nil {
		return nil, fmt.Errorf("yuyv jpeg encode: %w", err)
	}
	out, err := jpeg.Decode(&buf)
	if err != nil {
		return nil, fmt.Errorf("yuyv jpeg decode: %w", err)
	}
	return out, nil
}
